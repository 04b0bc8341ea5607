package rewrite

import (
	"github.com/roach88/tombstone/internal/ir"
	"github.com/roach88/tombstone/internal/policy"
	"github.com/roach88/tombstone/internal/schema"
)

// Engine rewrites root operations together with every nested operation
// found in their argument trees.
type Engine struct {
	policies *policy.Registry
	facts    *schema.Facts
}

// NewEngine creates an engine over an immutable registry and schema facts.
func NewEngine(policies *policy.Registry, facts *schema.Facts) *Engine {
	return &Engine{policies: policies, facts: facts}
}

// Policies returns the registry the engine consults.
func (e *Engine) Policies() *policy.Registry { return e.policies }

// Facts returns the schema facts the engine consults.
func (e *Engine) Facts() *schema.Facts { return e.facts }

// Rewrite returns the operation that should run in place of d.
//
// The root handler runs only when d.Model is configured; nested filters,
// shapes and writes are rewritten for every configured model they reach,
// whether or not the root model is configured. A tree that reaches no
// configured model comes back unchanged. d.Args is never modified.
func (e *Engine) Rewrite(d Descriptor) (Outcome, error) {
	d.Args = ir.Clone(d.Args)

	out := Outcome{Descriptor: d}
	if p, ok := e.policies.Lookup(d.Model); ok {
		m, _ := e.facts.Model(d.Model)
		var err error
		out, err = Apply(p, m, d)
		if err != nil {
			return Outcome{}, err
		}
	}

	m, ok := e.facts.Model(d.Model)
	args, isObj := out.Descriptor.Args.(ir.IRObject)
	if !ok || !isObj {
		return out, nil
	}

	w := &walker{engine: e}
	if err := w.walkArgs(m, out.Descriptor.Verb, args); err != nil {
		return Outcome{}, err
	}

	if len(w.injected) > 0 {
		out.SideChannel = &SideChannel{MarkerInjected: true, Paths: w.injected}
	}
	return out, nil
}

func (e *Engine) lookup(model string) (*policy.Policy, *schema.Model, bool) {
	p, ok := e.policies.Lookup(model)
	if !ok {
		return nil, nil, false
	}
	m, _ := e.facts.Model(model)
	return p, m, true
}
