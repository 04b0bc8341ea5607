package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/tombstone/internal/ir"
)

// goldenDir holds golden traces relative to the test's package directory.
const goldenDir = "testdata/golden"

// Snapshot renders a scenario trace as canonical JSON, the content of its
// golden file. Empty event fields are left out.
func Snapshot(scenarioName string, result *Result) ([]byte, error) {
	events := make(ir.IRArray, len(result.Trace))
	for i, ev := range result.Trace {
		obj := ir.IRObject{
			"seq":  ir.IRInt(ev.Seq),
			"type": ir.IRString(ev.Type),
		}
		if ev.Operation != "" {
			obj["operation"] = ir.IRString(ev.Operation)
		}
		if ev.Args != nil {
			obj["args"] = ev.Args
		}
		if ev.Outcome != "" {
			obj["outcome"] = ir.IRString(ev.Outcome)
		}
		if ev.Result != nil {
			obj["result"] = ev.Result
		}
		events[i] = obj
	}

	return ir.MarshalCanonical(ir.IRObject{
		"scenario_name": ir.IRString(scenarioName),
		"trace":         events,
	})
}

// RunWithGolden runs scenario and compares its trace with
// testdata/golden/<name>.golden. Regenerate with:
//
//	go test ./internal/harness -update
//
// A mismatch fails t; the returned error is for scenarios that could not run.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result's trace with its golden file.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	trace, err := Snapshot(scenarioName, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir(goldenDir),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, trace)
	return nil
}
