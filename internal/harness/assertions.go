package harness

import (
	"context"
	"fmt"
	"strings"

	"github.com/roach88/tombstone/internal/ir"
	"github.com/roach88/tombstone/internal/rewrite"
	"github.com/roach88/tombstone/internal/sqlhost"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nStore executions:\n")
		for _, event := range e.Trace {
			if event.Type == EventExecute {
				fmt.Fprintf(&buf, "  [%d] %s %s\n", event.Seq, event.Operation, render(event.Args))
			}
		}
	}

	return buf.String()
}

// assertTraceContains checks that an operation reached the store with
// args matching the assertion (subset match).
func assertTraceContains(trace []TraceEvent, assertion Assertion) error {
	want, err := irObject(assertion.Args)
	if err != nil {
		return fmt.Errorf("trace_contains: invalid args: %w", err)
	}

	for _, event := range trace {
		if event.Type == EventExecute && event.Operation == assertion.Operation && matchSubset(event.Args, want) {
			return nil
		}
	}

	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: fmt.Sprintf("%s with args %s", assertion.Operation, render(want)),
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceOrder checks that operations reached the store in the given order.
// Operations don't need to be consecutive (intervening executions are allowed).
func assertTraceOrder(trace []TraceEvent, assertion Assertion) error {
	next := 0
	for _, event := range trace {
		if next == len(assertion.Operations) {
			break
		}
		if event.Type == EventExecute && event.Operation == assertion.Operations[next] {
			next++
		}
	}

	if next < len(assertion.Operations) {
		return &AssertionError{
			Type:     AssertTraceOrder,
			Expected: fmt.Sprintf("operations in order: %v", assertion.Operations),
			Actual:   fmt.Sprintf("%s not found after %v", assertion.Operations[next], assertion.Operations[:next]),
			Trace:    trace,
		}
	}
	return nil
}

// assertTraceCount checks that an operation reached the store exactly
// the specified number of times.
func assertTraceCount(trace []TraceEvent, assertion Assertion) error {
	count := 0
	for _, event := range trace {
		if event.Type == EventExecute && event.Operation == assertion.Operation {
			count++
		}
	}

	if count != assertion.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d executions of %s", assertion.Count, assertion.Operation),
			Actual:   fmt.Sprintf("%d executions", count),
			Trace:    trace,
		}
	}
	return nil
}

// assertFinalState reads a row without the extension, so soft deleted rows
// are visible, and compares it with the expected values (subset match).
func assertFinalState(ctx context.Context, client *sqlhost.Client, assertion Assertion) error {
	where, err := irObject(assertion.Where)
	if err != nil {
		return fmt.Errorf("final_state: invalid where: %w", err)
	}

	row, err := client.Invoke(ctx, assertion.Model, rewrite.FetchFirst, ir.IRObject{"where": where})
	if err != nil {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("read %s", assertion.Model),
			Actual:   fmt.Sprintf("query error: %v", err),
		}
	}

	_, missing := row.(ir.IRNull)
	if assertion.Expect == nil {
		if !missing {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("no %s row where %s", assertion.Model, render(where)),
				Actual:   render(row),
			}
		}
		return nil
	}

	if missing {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("%s row where %s", assertion.Model, render(where)),
			Actual:   "row not found",
		}
	}

	want, err := irObject(assertion.Expect)
	if err != nil {
		return fmt.Errorf("final_state: invalid expect: %w", err)
	}
	if !matchSubset(row, want) {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: render(want),
			Actual:   render(row),
		}
	}
	return nil
}

// matchSubset reports whether actual contains expected.
// Objects match when every expected key matches; extra keys in actual are
// ignored. Lists match element-wise and must have the same length.
func matchSubset(actual, expected ir.IRValue) bool {
	switch want := expected.(type) {
	case ir.IRObject:
		got, ok := actual.(ir.IRObject)
		if !ok {
			return false
		}
		for k, v := range want {
			if v == nil {
				continue
			}
			gv, exists := got[k]
			if !exists || gv == nil {
				return false
			}
			if !matchSubset(gv, v) {
				return false
			}
		}
		return true
	case ir.IRArray:
		got, ok := actual.(ir.IRArray)
		if !ok || len(got) != len(want) {
			return false
		}
		for i := range want {
			if !matchSubset(got[i], want[i]) {
				return false
			}
		}
		return true
	default:
		return ir.Equal(actual, expected)
	}
}

// AssertionContext provides context for evaluating assertions.
type AssertionContext struct {
	Client *sqlhost.Client
	Ctx    context.Context
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
// The actx parameter provides store access for final_state assertions.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertTraceContains:
			err = assertTraceContains(result.Trace, assertion)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, assertion)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, assertion)
		case AssertFinalState:
			if actx == nil || actx.Client == nil {
				err = fmt.Errorf("assertion[%d]: final_state requires a store", i)
			} else {
				err = assertFinalState(actx.Ctx, actx.Client, assertion)
			}
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
