package reconcile

import (
	"github.com/roach88/tombstone/internal/ir"
	"github.com/roach88/tombstone/internal/policy"
	"github.com/roach88/tombstone/internal/rewrite"
	"github.com/roach88/tombstone/internal/schema"
)

// Reconciler post-processes results of rewritten operations.
type Reconciler struct {
	policies *policy.Registry
	facts    *schema.Facts
}

// New creates a reconciler over the same registry and facts as the engine.
func New(policies *policy.Registry, facts *schema.Facts) *Reconciler {
	return &Reconciler{policies: policies, facts: facts}
}

// Reconcile returns the value the caller of d should see.
//
// d is the operation as issued by the caller and side the side-channel of
// its rewrite (nil when nothing was injected). The result is returned
// unchanged when d does not return records or its shape reaches no to-one
// relation of a configured model. Reconcile never fails and never modifies
// result in place.
func (r *Reconciler) Reconcile(d rewrite.Descriptor, side *rewrite.SideChannel, result ir.IRValue) ir.IRValue {
	if !d.Verb.ReturnsRecords() || result == nil {
		return result
	}
	m, ok := r.facts.Model(d.Model)
	if !ok {
		return result
	}
	args, ok := d.Args.(ir.IRObject)
	if !ok {
		return result
	}
	s := shapeOf(args)
	if !r.reachesConfiguredToOne(m, s, 0) {
		return result
	}

	out := ir.Clone(result)
	r.value(m, s, side, out, "")
	return out
}

// shape is the include and select subtrees of one level.
type shape struct {
	include ir.IRObject
	sel     ir.IRObject
}

func shapeOf(v ir.IRValue) shape {
	obj, ok := v.(ir.IRObject)
	if !ok {
		return shape{}
	}
	var s shape
	s.include, _ = obj.Object("include")
	s.sel, _ = obj.Object("select")
	return s
}

// relations yields the relation keys requested at this level with their
// shape values. A key present in both include and select resolves to the
// include value.
func (s shape) relations(m *schema.Model) []requested {
	var out []requested
	seen := map[string]bool{}
	for _, tree := range []ir.IRObject{s.include, s.sel} {
		for _, key := range tree.SortedKeys() {
			if seen[key] || !ir.Truthy(tree[key]) {
				continue
			}
			rel, ok := m.Relation(key)
			if !ok {
				continue
			}
			seen[key] = true
			out = append(out, requested{key: key, rel: rel, value: tree[key]})
		}
	}
	return out
}

type requested struct {
	key   string
	rel   schema.Relation
	value ir.IRValue
}

// maxDepth bounds the pre-check on self-referencing shapes.
const maxDepth = 32

func (r *Reconciler) reachesConfiguredToOne(m *schema.Model, s shape, depth int) bool {
	if depth > maxDepth {
		return false
	}
	for _, req := range s.relations(m) {
		if !req.rel.IsList() {
			if _, ok := r.policies.Lookup(req.rel.Model); ok {
				return true
			}
		}
		target, ok := r.facts.Model(req.rel.Model)
		if ok && r.reachesConfiguredToOne(target, shapeOf(req.value), depth+1) {
			return true
		}
	}
	return false
}

// value reconciles a record or a list of records of model m in place.
func (r *Reconciler) value(m *schema.Model, s shape, side *rewrite.SideChannel, v ir.IRValue, path string) {
	switch val := v.(type) {
	case ir.IRArray:
		for _, elem := range val {
			if rec, ok := elem.(ir.IRObject); ok {
				r.record(m, s, side, rec, path)
			}
		}
	case ir.IRObject:
		r.record(m, s, side, val, path)
	}
}

func (r *Reconciler) record(m *schema.Model, s shape, side *rewrite.SideChannel, rec ir.IRObject, path string) {
	for _, req := range s.relations(m) {
		key := req.key
		target, ok := r.facts.Model(req.rel.Model)
		if !ok {
			continue
		}
		relPath := key
		if path != "" {
			relPath = path + "." + key
		}
		nested := shapeOf(req.value)

		if req.rel.IsList() {
			r.value(target, nested, side, rec[key], relPath)
			continue
		}

		related, ok := rec[key].(ir.IRObject)
		if !ok {
			continue
		}
		p, configured := r.policies.Lookup(req.rel.Model)
		if configured && p.IsDeleted(related[p.Field]) {
			rec[key] = ir.IRNull{}
			continue
		}
		r.record(target, nested, side, related, relPath)
		if configured && side.Injected(relPath) {
			delete(related, p.Field)
		}
	}
}
