package harness

import "github.com/roach88/tombstone/internal/ir"

// Trace event types.
const (
	// EventInvoke is an operation as the scenario issued it.
	EventInvoke = "invoke"

	// EventExecute is an operation as it reached the store, after rewriting.
	EventExecute = "execute"

	// EventComplete is the value or error code a step finished with.
	EventComplete = "complete"
)

// OutcomeOK is the outcome of a step that returned without error.
const OutcomeOK = "ok"

// TraceEvent is one entry of a scenario trace.
type TraceEvent struct {
	Type      string     `json:"type"`
	Seq       int64      `json:"seq"`
	Operation string     `json:"operation,omitempty"` // "Model.verb"
	Args      ir.IRValue `json:"args,omitempty"`
	Outcome   string     `json:"outcome,omitempty"`
	Result    ir.IRValue `json:"result,omitempty"`
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if every expect clause and assertion matched.
	Pass bool `json:"pass"`

	// Trace contains invocations, store executions and completions in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

func (r *Result) add(e TraceEvent) {
	e.Seq = int64(len(r.Trace) + 1)
	r.Trace = append(r.Trace, e)
}

// AddInvokeTrace records an operation issued by the scenario.
func (r *Result) AddInvokeTrace(operation string, args ir.IRValue) {
	r.add(TraceEvent{Type: EventInvoke, Operation: operation, Args: args})
}

// AddExecuteTrace records an operation that reached the store.
func (r *Result) AddExecuteTrace(operation string, args ir.IRValue) {
	r.add(TraceEvent{Type: EventExecute, Operation: operation, Args: args})
}

// AddCompleteTrace records how a step finished.
func (r *Result) AddCompleteTrace(outcome string, result ir.IRValue) {
	r.add(TraceEvent{Type: EventComplete, Outcome: outcome, Result: result})
}
