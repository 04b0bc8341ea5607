package rewrite

import (
	"github.com/roach88/tombstone/internal/ir"
	"github.com/roach88/tombstone/internal/policy"
	"github.com/roach88/tombstone/internal/schema"
)

// passUpdateThroughKey marks an update produced by rewriting a nested
// to-one "delete: true". The update handler strips it and lets the update
// through even when to-one updates are otherwise blocked.
const passUpdateThroughKey = "__passUpdateThrough"

// Handler rewrites one descriptor of a configured model. m may be nil when
// the model is unknown to the schema facts.
type Handler func(p *policy.Policy, m *schema.Model, d Descriptor) (Outcome, error)

var handlers = map[Verb]Handler{
	Delete:            handleDelete,
	DeleteMany:        handleDeleteMany,
	Update:            handleUpdate,
	UpdateMany:        handleUpdateMany,
	Upsert:            handleUpsert,
	FetchOne:          uniqueFetch(FetchFirst),
	FetchOneOrThrow:   uniqueFetch(FetchFirstOrThrow),
	FetchFirst:        handleRead,
	FetchFirstOrThrow: handleRead,
	FetchMany:         handleRead,
	Count:             handleRead,
	Aggregate:         handleRead,
	GroupBy:           handleRead,
	FilterClause:      handleFilterClause,
	IncludeClause:     handleShapeClause,
	SelectClause:      handleShapeClause,
}

// Apply runs the handler registered for d.Verb. Verbs without a handler
// (create, createMany) pass through unchanged.
func Apply(p *policy.Policy, m *schema.Model, d Descriptor) (Outcome, error) {
	h, ok := handlers[d.Verb]
	if !ok {
		return passThrough(d)
	}
	return h(p, m, d)
}

// handleDelete turns a delete into an update of the marker field.
func handleDelete(p *policy.Policy, _ *schema.Model, d Descriptor) (Outcome, error) {
	// Falsy args include the nested "delete: false".
	if !ir.Truthy(d.Args) {
		return passThrough(d)
	}
	if b, ok := d.Args.(ir.IRBool); ok && bool(b) {
		return Outcome{Descriptor: with(d, Update, ir.IRObject{
			passUpdateThroughKey: ir.IRBool(true),
			p.Field:              p.Deleted(),
		})}, nil
	}

	args, isObj := d.Args.(ir.IRObject)
	hasWhere := isObj && ir.Truthy(args["where"])
	// A root delete without where is left for the store to reject.
	if d.Scope == nil && !hasWhere {
		return passThrough(d)
	}

	var where ir.IRValue = d.Args
	if hasWhere {
		where = args["where"]
	}
	return Outcome{Descriptor: with(d, Update, ir.IRObject{
		"where": where,
		"data":  ir.IRObject{p.Field: p.Deleted()},
	})}, nil
}

// handleDeleteMany turns a deleteMany into an updateMany that marks every
// not-yet-deleted match. Absent args are treated as an empty filter.
func handleDeleteMany(p *policy.Policy, _ *schema.Model, d Descriptor) (Outcome, error) {
	where := ir.IRObject{}
	if args, ok := d.Args.(ir.IRObject); ok {
		if _, hasWhere := args["where"]; hasWhere {
			if w, ok := args.Object("where"); ok {
				where = w.Clone()
			}
		} else {
			where = args.Clone()
		}
	}
	return Outcome{Descriptor: with(d, UpdateMany, ir.IRObject{
		"where": p.DefaultExclude(where),
		"data":  ir.IRObject{p.Field: p.Deleted()},
	})}, nil
}

// handleUpdate blocks updates through to-one relations, which could touch
// a soft-deleted record, unless the policy allows them or the update came
// from a rewritten delete.
func handleUpdate(p *policy.Policy, _ *schema.Model, d Descriptor) (Outcome, error) {
	args, _ := d.Args.(ir.IRObject)
	passing := ir.Truthy(args[passUpdateThroughKey])

	if d.Scope != nil && !d.Scope.RelationIsList && !p.AllowToOneUpdates && !passing {
		return Outcome{}, blockedThrough(ErrCodeToOneUpdate, d)
	}
	if _, marked := args[passUpdateThroughKey]; marked {
		stripped := args.Clone()
		delete(stripped, passUpdateThroughKey)
		return Outcome{Descriptor: with(d, d.Verb, stripped)}, nil
	}
	return passThrough(d)
}

// handleUpdateMany excludes deleted records from the rows an updateMany
// touches. Absent args are left for the store to reject.
func handleUpdateMany(p *policy.Policy, _ *schema.Model, d Descriptor) (Outcome, error) {
	return defaultExcludeWhere(p, d, false)
}

// handleUpsert blocks upserts through to-one relations regardless of
// AllowToOneUpdates: the update branch has the same hazard.
func handleUpsert(_ *policy.Policy, _ *schema.Model, d Descriptor) (Outcome, error) {
	if d.Scope != nil && !d.Scope.RelationIsList {
		return Outcome{}, blockedThrough(ErrCodeToOneUpsert, d)
	}
	return passThrough(d)
}

// handleRead injects the marker predicate into where. Absent args are
// treated as {}.
func handleRead(p *policy.Policy, _ *schema.Model, d Descriptor) (Outcome, error) {
	return defaultExcludeWhere(p, d, true)
}

// uniqueFetch rewrites a unique-key fetch into a first-match fetch with the
// marker predicate, since a unique lookup cannot carry extra filters.
func uniqueFetch(target Verb) Handler {
	return func(p *policy.Policy, m *schema.Model, d Descriptor) (Outcome, error) {
		args, ok := d.Args.(ir.IRObject)
		if !ok {
			return passThrough(d)
		}
		where, ok := args.Object("where")
		if !ok || m == nil {
			return passThrough(d)
		}

		var unique bool
		var group string
		for _, key := range where.SortedKeys() {
			if !where.Has(key) {
				continue
			}
			if m.IsUniqueField(key) {
				unique = true
			}
			if m.IsUniqueGroup(key) {
				unique = true
				if group == "" {
					group = key
				}
			}
		}
		if !unique {
			return passThrough(d)
		}
		if group != "" {
			if p.AllowCompoundUniqueWhere {
				return passThrough(d)
			}
			return Outcome{}, &BlockedError{Code: ErrCodeCompoundUnique, Model: d.Model, Field: group}
		}

		out := args.Clone()
		out["where"] = p.DefaultExclude(where.Clone())
		return Outcome{Descriptor: with(d, target, out)}, nil
	}
}

// handleFilterClause rewrites a relation filter clause. Clauses without a
// relation scope are plain conditions and stay untouched.
//
// Under "every" the clause is widened to {OR: [{marker: {not: false}}, clause]}:
// every related record is either deleted or satisfies the clause. Injecting
// the plain predicate would make parents whose related records are all
// deleted fail the filter.
func handleFilterClause(p *policy.Policy, _ *schema.Model, d Descriptor) (Outcome, error) {
	if d.Scope == nil {
		return passThrough(d)
	}
	clause, ok := d.Args.(ir.IRObject)
	if !ok {
		return passThrough(d)
	}

	if d.Scope.ListModifier == ModifierEvery {
		if isWidened(p, clause) {
			return passThrough(d)
		}
		if !p.HasMarker(clause) {
			return Outcome{Descriptor: with(d, d.Verb, ir.IRObject{
				"OR": ir.Arr(widenedMarker(p), clause),
			})}, nil
		}
	}
	return Outcome{Descriptor: with(d, d.Verb, p.DefaultExclude(clause.Clone()))}, nil
}

// handleShapeClause rewrites the value of a relation key in include or
// select. To-many relations get the marker predicate in their where.
// To-one relations cannot be filtered; when they narrow the selection the
// marker field is added so the reconciler can null out deleted targets.
func handleShapeClause(p *policy.Policy, _ *schema.Model, d Descriptor) (Outcome, error) {
	if d.Scope == nil {
		return passThrough(d)
	}

	if !d.Scope.RelationIsList {
		shape, ok := d.Args.(ir.IRObject)
		if !ok {
			return passThrough(d)
		}
		sel, ok := shape.Object("select")
		if !ok || ir.Truthy(sel[p.Field]) {
			return passThrough(d)
		}
		out := shape.Clone()
		sel = sel.Clone()
		sel[p.Field] = ir.IRBool(true)
		out["select"] = sel
		return Outcome{
			Descriptor:  with(d, d.Verb, out),
			SideChannel: &SideChannel{MarkerInjected: true},
		}, nil
	}

	switch v := d.Args.(type) {
	case ir.IRBool:
		if !v {
			return passThrough(d)
		}
		return Outcome{Descriptor: with(d, d.Verb, ir.IRObject{
			"where": p.DefaultExclude(nil),
		})}, nil
	case ir.IRObject:
		out := v.Clone()
		where, _ := out.Object("where")
		out["where"] = p.DefaultExclude(where)
		return Outcome{Descriptor: with(d, d.Verb, out)}, nil
	default:
		return passThrough(d)
	}
}

// defaultExcludeWhere returns d with where[marker] defaulted to "not
// deleted". When absentAsEmpty is false, absent args pass through.
func defaultExcludeWhere(p *policy.Policy, d Descriptor, absentAsEmpty bool) (Outcome, error) {
	var args ir.IRObject
	switch v := d.Args.(type) {
	case nil, ir.IRNull:
		if !absentAsEmpty {
			return passThrough(d)
		}
		args = ir.IRObject{}
	case ir.IRObject:
		args = v.Clone()
	default:
		// Malformed; the store reports it.
		return passThrough(d)
	}

	where, _ := args.Object("where")
	args["where"] = p.DefaultExclude(where)
	return Outcome{Descriptor: with(d, d.Verb, args)}, nil
}

// isWidened reports whether clause already has the shape produced by the
// "every" widening, so a second rewrite leaves it alone.
func isWidened(p *policy.Policy, clause ir.IRObject) bool {
	if len(clause) != 1 {
		return false
	}
	or, ok := clause["OR"].(ir.IRArray)
	if !ok || len(or) != 2 {
		return false
	}
	return ir.Equal(or[0], widenedMarker(p))
}

// widenedMarker is the first OR branch of a widened "every" clause: records
// that are deleted pass.
func widenedMarker(p *policy.Policy) ir.IRObject {
	return ir.IRObject{p.Field: ir.IRObject{"not": p.NotDeleted()}}
}
