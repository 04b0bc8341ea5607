package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/tombstone/internal/compiler"
	"github.com/roach88/tombstone/internal/dispatch"
	"github.com/roach88/tombstone/internal/ir"
	"github.com/roach88/tombstone/internal/rewrite"
	"github.com/roach88/tombstone/internal/sqlhost"
	"github.com/roach88/tombstone/internal/testutil"
)

// Error codes reported for non-blocking failures.
const (
	CodeNotFound   = "NOT_FOUND"
	CodeQueryError = "QUERY_ERROR"
	CodeError      = "ERROR"
)

// Harness is the test execution engine.
// It runs scenarios against a fresh store with a fixed clock and operation id.
type Harness struct {
	client    *sqlhost.Client
	logger    *slog.Logger
	result    *Result
	recording bool
}

// Option configures a scenario run.
type Option func(*Harness)

// WithLogger routes extension logs to l. Logs are discarded by default.
func WithLogger(l *slog.Logger) Option {
	return func(h *Harness) {
		h.logger = l
	}
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
// Execution flow:
// 1. Load and compile the config directory
// 2. Open the store and register the extension on every model
// 3. Execute seed operations directly against the store
// 4. Execute steps through the extension, validating expect clauses
// 5. Evaluate assertions
//
// A returned error means the scenario could not be executed at all; step
// and assertion failures are reported in the result.
func Run(scenario *Scenario, opts ...Option) (*Result, error) {
	ctx := context.Background()

	cfg, err := compiler.LoadDir(scenario.Config, testutil.NewFixedClock())
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	h := &Harness{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		result: NewResult(),
	}
	for _, opt := range opts {
		opt(h)
	}

	client, err := sqlhost.Open(":memory:", cfg.Facts, sqlhost.WithRecorder(h.record))
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer client.Close()
	h.client = client

	engine := rewrite.NewEngine(cfg.Policies, cfg.Facts)
	dispatch.Register(client, engine,
		dispatch.WithLogger(h.logger),
		dispatch.WithIDGenerator(testutil.NewFixedIDGenerator("scenario")),
	)

	if err := h.executeSeed(ctx, scenario.Seed); err != nil {
		return nil, fmt.Errorf("failed to execute seed: %w", err)
	}

	if err := h.executeSteps(ctx, scenario.Steps); err != nil {
		return nil, fmt.Errorf("failed to execute steps: %w", err)
	}

	actx := &AssertionContext{Client: client, Ctx: ctx}
	for _, msg := range EvaluateAssertions(h.result, scenario.Assertions, actx) {
		h.result.AddError(msg)
	}

	return h.result, nil
}

// record is the store recorder; it traces executions made by steps.
func (h *Harness) record(model string, verb rewrite.Verb, args ir.IRValue) {
	if !h.recording {
		return
	}
	h.result.AddExecuteTrace(model+"."+string(verb), args)
}

// executeSeed runs seed operations without the extension.
// Seed operations must succeed.
func (h *Harness) executeSeed(ctx context.Context, seed []Operation) error {
	for i, op := range seed {
		args, err := irObject(op.Args)
		if err != nil {
			return fmt.Errorf("seed %d: failed to convert args: %w", i, err)
		}
		verb, _ := rewrite.ParseVerb(op.Verb)
		if _, err := h.client.Invoke(ctx, op.Model, verb, args); err != nil {
			return fmt.Errorf("seed %d (%s): %w", i, op.Name(), err)
		}
	}
	return nil
}

// executeSteps runs every step through the extension.
func (h *Harness) executeSteps(ctx context.Context, steps []Step) error {
	for i, step := range steps {
		args, err := irObject(step.Args)
		if err != nil {
			return fmt.Errorf("step %d: failed to convert args: %w", i, err)
		}
		verb, _ := rewrite.ParseVerb(step.Verb)

		h.result.AddInvokeTrace(step.Name(), args.Clone())

		h.recording = true
		value, err := h.client.Do(ctx, step.Model, verb, args)
		h.recording = false

		if err != nil {
			code := ErrorCode(err)
			h.result.AddCompleteTrace(code, nil)
			h.checkError(i, step, code, err)
			continue
		}

		h.result.AddCompleteTrace(OutcomeOK, value)
		if err := h.checkValue(i, step, value); err != nil {
			return err
		}

		h.logger.Info("step completed", "step", i, "operation", step.Name())
	}
	return nil
}

func (h *Harness) checkError(i int, step Step, code string, err error) {
	if step.Expect == nil || step.Expect.Error == "" {
		h.result.AddError(fmt.Sprintf("steps[%d] %s: unexpected error: %v", i, step.Name(), err))
		return
	}
	if step.Expect.Error != code {
		h.result.AddError(fmt.Sprintf("steps[%d] %s: expected error %s, got %s (%v)",
			i, step.Name(), step.Expect.Error, code, err))
	}
}

func (h *Harness) checkValue(i int, step Step, value ir.IRValue) error {
	if step.Expect == nil {
		return nil
	}
	e := step.Expect
	if e.Error != "" {
		h.result.AddError(fmt.Sprintf("steps[%d] %s: expected error %s, got success", i, step.Name(), e.Error))
		return nil
	}
	if e.Result != nil {
		want, err := ir.FromGo(e.Result)
		if err != nil {
			return fmt.Errorf("step %d: failed to convert expected result: %w", i, err)
		}
		if !matchSubset(value, want) {
			h.result.AddError(fmt.Sprintf("steps[%d] %s: result mismatch\n  Expected: %s\n  Actual: %s",
				i, step.Name(), render(want), render(value)))
		}
	}
	if e.Count != nil {
		n, ok := countOf(value)
		if !ok {
			h.result.AddError(fmt.Sprintf("steps[%d] %s: count expected but result is %s", i, step.Name(), render(value)))
		} else if n != *e.Count {
			h.result.AddError(fmt.Sprintf("steps[%d] %s: expected count %d, got %d", i, step.Name(), *e.Count, n))
		}
	}
	return nil
}

// ErrorCode classifies an operation error for expect clauses and traces.
// Blocked rewrites report their block code.
func ErrorCode(err error) string {
	var be *rewrite.BlockedError
	switch {
	case errors.As(err, &be):
		return string(be.Code)
	case sqlhost.IsNotFound(err):
		return CodeNotFound
	case sqlhost.IsQueryError(err):
		return CodeQueryError
	default:
		return CodeError
	}
}

// countOf returns a list length, a batch count, or a count result.
func countOf(v ir.IRValue) (int, bool) {
	switch val := v.(type) {
	case ir.IRArray:
		return len(val), true
	case ir.IRInt:
		return int(val), true
	case ir.IRObject:
		if n, ok := val["count"].(ir.IRInt); ok {
			return int(n), true
		}
	}
	return 0, false
}

func render(v ir.IRValue) string {
	b, err := ir.MarshalCanonical(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}
