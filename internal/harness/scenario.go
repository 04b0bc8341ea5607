package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/tombstone/internal/ir"
	"github.com/roach88/tombstone/internal/rewrite"
)

// Scenario defines a soft-delete conformance scenario.
// A scenario seeds a fresh database, runs operations through the
// soft-delete extension, and asserts on what reached the store and what
// came back.
type Scenario struct {
	// Name uniquely identifies this scenario.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Config is the CUE configuration directory (models + softDelete).
	// Relative paths are resolved against the scenario file location.
	Config string `yaml:"config"`

	// Seed contains operations executed directly against the store before
	// the steps, bypassing the extension. They are not traced.
	Seed []Operation `yaml:"seed,omitempty"`

	// Steps run through the extension in order.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final trace and state.
	// Supported types: trace_contains, trace_order, trace_count, final_state
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// Operation is one model operation.
type Operation struct {
	Model string         `yaml:"model"`
	Verb  string         `yaml:"verb"`
	Args  map[string]any `yaml:"args,omitempty"`
}

// Name returns the "Model.verb" form used in traces.
func (o Operation) Name() string {
	return o.Model + "." + o.Verb
}

// Step is one operation issued through the extension.
type Step struct {
	Operation `yaml:",inline"`

	// Expect validates the step's outcome.
	// If nil, the step must succeed and its value is not checked.
	Expect *Expect `yaml:"expect,omitempty"`
}

// Expect specifies the expected outcome of a step.
// At most one of Error and Result/Count may be set.
type Expect struct {
	// Result is matched against the returned value. Objects match as a
	// subset, lists must have the same length, scalars must be equal.
	Result any `yaml:"result,omitempty"`

	// Error is the expected error code (see ErrorCode).
	Error string `yaml:"error,omitempty"`

	// Count is the expected length of a returned list, or the count of a
	// batch result.
	Count *int `yaml:"count,omitempty"`
}

// Assertion validates trace or final state.
type Assertion struct {
	// Type specifies the assertion type:
	// - "trace_contains": an operation reached the store with args
	// - "trace_order": operations reached the store in order
	// - "trace_count": an operation reached the store exactly N times
	// - "final_state": a stored row matches, read without the extension
	Type string `yaml:"type"`

	// Operation is "Model.verb" (used by trace_contains, trace_count).
	Operation string `yaml:"operation,omitempty"`

	// Args are the expected arguments (used by trace_contains).
	// Subset match - only specified fields are validated.
	Args map[string]any `yaml:"args,omitempty"`

	// Operations is the expected order (used by trace_order).
	Operations []string `yaml:"operations,omitempty"`

	// Count is the expected number of occurrences (used by trace_count).
	Count int `yaml:"count,omitempty"`

	// Model is the model to read (used by final_state).
	Model string `yaml:"model,omitempty"`

	// Where selects the row (used by final_state).
	Where map[string]any `yaml:"where,omitempty"`

	// Expect contains expected field values (used by final_state).
	// Subset match. An absent expect asserts that no row matches.
	Expect map[string]any `yaml:"expect,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertFinalState    = "final_state"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	scenario, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}

	// Resolve the config directory relative to the scenario BEFORE validation
	if scenario.Config != "" && !filepath.IsAbs(scenario.Config) {
		scenario.Config = filepath.Join(filepath.Dir(path), scenario.Config)
	}

	if err := validateScenario(scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	if _, err := os.Stat(scenario.Config); err != nil {
		return nil, fmt.Errorf("invalid scenario: config directory not found: %s", scenario.Config)
	}

	return scenario, nil
}

// ParseScenario decodes scenario YAML without validating it.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict field validation catches typos like "step:" vs "steps:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if s.Config == "" {
		return fmt.Errorf("config is required")
	}

	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for i, op := range s.Seed {
		if err := validateOperation(op); err != nil {
			return fmt.Errorf("seed[%d]: %w", i, err)
		}
	}

	for i, step := range s.Steps {
		if err := validateOperation(step.Operation); err != nil {
			return fmt.Errorf("steps[%d]: %w", i, err)
		}
		if e := step.Expect; e != nil && e.Error != "" && (e.Result != nil || e.Count != nil) {
			return fmt.Errorf("steps[%d].expect: error cannot be combined with result or count", i)
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

func validateOperation(op Operation) error {
	if op.Model == "" {
		return fmt.Errorf("model is required")
	}
	if _, ok := rewrite.ParseVerb(op.Verb); !ok {
		return fmt.Errorf("unknown verb %q", op.Verb)
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertTraceContains:
		if a.Operation == "" {
			return fmt.Errorf("assertions[%d]: operation is required for trace_contains", index)
		}
	case AssertTraceOrder:
		if len(a.Operations) == 0 {
			return fmt.Errorf("assertions[%d]: operations list is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Operation == "" {
			return fmt.Errorf("assertions[%d]: operation is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertFinalState:
		if a.Model == "" {
			return fmt.Errorf("assertions[%d]: model is required for final_state", index)
		}
		if len(a.Where) == 0 {
			return fmt.Errorf("assertions[%d]: where is required for final_state", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}

// irObject converts YAML-decoded args to an IRObject.
func irObject(m map[string]any) (ir.IRObject, error) {
	if m == nil {
		return ir.IRObject{}, nil
	}
	v, err := ir.FromGo(m)
	if err != nil {
		return nil, err
	}
	return v.(ir.IRObject), nil
}
