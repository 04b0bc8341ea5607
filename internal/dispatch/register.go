package dispatch

import (
	"context"

	"github.com/roach88/tombstone/internal/ir"
	"github.com/roach88/tombstone/internal/rewrite"
)

// Interceptor wraps every operation of one model, root or nested.
type Interceptor = func(ctx context.Context, d rewrite.Descriptor, query Query) (ir.IRValue, error)

// Host is a data-access client exposing an interception point.
type Host interface {
	Invoker

	// Models lists the models the host can execute operations on.
	Models() []string

	// Intercept installs fn in front of every operation on model.
	Intercept(model string, fn Interceptor)
}

// Register installs a shim over engine on every model of host and returns it.
//
// Every model is wrapped, configured or not, so nested filters and writes
// that reach a configured model are rewritten even when the root model is
// not. Operations that touch no configured model pass through unchanged.
func Register(host Host, engine *rewrite.Engine, opts ...Option) *Shim {
	shim := NewShim(engine, host, opts...)
	for _, model := range host.Models() {
		host.Intercept(model, shim.Handle)
	}
	return shim
}
