package rewrite

import (
	"github.com/roach88/tombstone/internal/ir"
	"github.com/roach88/tombstone/internal/schema"
)

// Relation filter keywords and logical combinators recognised in where trees.
var (
	listModifiers  = []Modifier{ModifierSome, ModifierEvery, ModifierNo}
	toOneModifiers = []string{"is", "isNot"}
	combinators    = []string{"AND", "OR", "NOT"}
)

// Nested write keys rewritten inside data payloads, in processing order.
// Existing update-like items are handled before deletes are merged into them.
var nestedWrites = []Verb{Update, UpdateMany, Upsert, Delete, DeleteMany}

// walker rewrites the argument tree of one operation in place. The tree
// must already be a private copy.
type walker struct {
	engine   *Engine
	injected []string
}

func (w *walker) walkArgs(m *schema.Model, verb Verb, args ir.IRObject) error {
	if where, ok := args.Object("where"); ok {
		w.walkWhere(m, verb, where)
	}
	for _, key := range []string{"include", "select"} {
		if shape, ok := args.Object(key); ok {
			if err := w.walkShape(m, verb, clauseVerb(key), shape, ""); err != nil {
				return err
			}
		}
	}

	switch verb {
	case Update:
		if data, ok := args.Object("data"); ok {
			return w.walkData(m, verb, data)
		}
	case Upsert:
		if data, ok := args.Object("update"); ok {
			return w.walkData(m, verb, data)
		}
	}
	return nil
}

// walkWhere rewrites relation filters below where. The clause itself is
// handled by the caller.
func (w *walker) walkWhere(m *schema.Model, verb Verb, where ir.IRObject) {
	for _, key := range where.SortedKeys() {
		val := where[key]

		if isCombinator(key) {
			switch v := val.(type) {
			case ir.IRObject:
				w.walkWhere(m, verb, v)
			case ir.IRArray:
				for _, elem := range v {
					if obj, ok := elem.(ir.IRObject); ok {
						w.walkWhere(m, verb, obj)
					}
				}
			}
			continue
		}

		rel, ok := m.Relation(key)
		if !ok {
			continue
		}
		filter, ok := val.(ir.IRObject)
		if !ok {
			continue
		}
		target, ok := w.engine.facts.Model(rel.Model)
		if !ok {
			continue
		}
		scope := Scope{
			ParentModel:    m.Name,
			ParentVerb:     verb,
			Relation:       key,
			RelationIsList: rel.IsList(),
		}

		if rel.IsList() {
			for _, mod := range listModifiers {
				if clause, ok := filter.Object(string(mod)); ok {
					s := scope
					s.ListModifier = mod
					filter[string(mod)] = w.filterClause(target, s, clause)
				}
			}
			continue
		}

		if hasAnyKey(filter, toOneModifiers) {
			for _, mod := range toOneModifiers {
				if clause, ok := filter.Object(mod); ok {
					filter[mod] = w.filterClause(target, scope, clause)
				}
			}
			continue
		}
		where[key] = w.filterClause(target, scope, filter)
	}
}

// filterClause rewrites the nested relations of clause and then the clause
// itself when its model is configured.
func (w *walker) filterClause(m *schema.Model, scope Scope, clause ir.IRObject) ir.IRValue {
	w.walkWhere(m, FilterClause, clause)

	p, facts, ok := w.engine.lookup(m.Name)
	if !ok {
		return clause
	}
	out, err := Apply(p, facts, Descriptor{Model: m.Name, Verb: FilterClause, Args: clause, Scope: &scope})
	if err != nil {
		return clause
	}
	return out.Descriptor.Args
}

// walkShape rewrites every relation key of an include or select tree and
// recurses into the nested where, include and select of each value.
func (w *walker) walkShape(m *schema.Model, verb, kind Verb, shape ir.IRObject, path string) error {
	for _, key := range shape.SortedKeys() {
		rel, ok := m.Relation(key)
		if !ok {
			continue
		}
		target, ok := w.engine.facts.Model(rel.Model)
		if !ok {
			continue
		}
		relPath := joinPath(path, key)

		if p, facts, ok := w.engine.lookup(rel.Model); ok {
			out, err := Apply(p, facts, Descriptor{
				Model: rel.Model,
				Verb:  kind,
				Args:  shape[key],
				Scope: &Scope{
					ParentModel:    m.Name,
					ParentVerb:     verb,
					Relation:       key,
					RelationIsList: rel.IsList(),
				},
			})
			if err != nil {
				return err
			}
			shape[key] = out.Descriptor.Args
			if out.SideChannel != nil && out.SideChannel.MarkerInjected {
				w.injected = append(w.injected, relPath)
			}
		}

		value, ok := shape[key].(ir.IRObject)
		if !ok {
			continue
		}
		if where, ok := value.Object("where"); ok {
			w.walkWhere(target, kind, where)
		}
		for _, sub := range []string{"include", "select"} {
			if nested, ok := value.Object(sub); ok {
				if err := w.walkShape(target, kind, clauseVerb(sub), nested, relPath); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// walkData rewrites nested writes in a data payload of model m.
func (w *walker) walkData(m *schema.Model, verb Verb, data ir.IRObject) error {
	for _, key := range data.SortedKeys() {
		rel, ok := m.Relation(key)
		if !ok {
			continue
		}
		ops, ok := data[key].(ir.IRObject)
		if !ok {
			continue
		}
		target, ok := w.engine.facts.Model(rel.Model)
		if !ok {
			continue
		}
		scope := Scope{
			ParentModel:    m.Name,
			ParentVerb:     verb,
			Relation:       key,
			RelationIsList: rel.IsList(),
		}
		if err := w.walkNestedWrites(target, scope, ops); err != nil {
			return err
		}
	}
	return nil
}

// walkNestedWrites applies the verb handlers to each nested write literal
// under one relation. Items whose verb changes move to the new verb's key,
// keeping single-or-list form: a list merges with existing items.
func (w *walker) walkNestedWrites(m *schema.Model, scope Scope, ops ir.IRObject) error {
	p, facts, configured := w.engine.lookup(m.Name)

	for _, op := range nestedWrites {
		raw, present := ops[string(op)]
		if !present || raw == nil {
			continue
		}
		items, isList := raw.(ir.IRArray)
		if !isList {
			items = ir.IRArray{raw}
		}

		var kept ir.IRArray
		moved := map[Verb]ir.IRArray{}
		for _, item := range items {
			d := Descriptor{Model: m.Name, Verb: op, Args: item, Scope: &scope}
			if configured {
				out, err := Apply(p, facts, d)
				if err != nil {
					return err
				}
				// "delete: true" lands as a marked update; run the update
				// handler so the marker is consumed.
				if out.Descriptor.Verb != op && passesUpdateThrough(out.Descriptor.Args) {
					if out, err = Apply(p, facts, out.Descriptor); err != nil {
						return err
					}
				}
				d = out.Descriptor
			}
			if err := w.walkNestedArgs(m, scope, d); err != nil {
				return err
			}
			if d.Verb == op {
				kept = append(kept, d.Args)
			} else {
				moved[d.Verb] = append(moved[d.Verb], d.Args)
			}
		}

		switch {
		case len(kept) == 0:
			delete(ops, string(op))
		case isList:
			ops[string(op)] = kept
		default:
			ops[string(op)] = kept[0]
		}
		for _, verb := range nestedWrites {
			if added, ok := moved[verb]; ok {
				ops[string(verb)] = mergeItems(ops[string(verb)], added, isList)
			}
		}
	}
	return nil
}

// walkNestedArgs descends into the filters and payloads of one nested write.
func (w *walker) walkNestedArgs(m *schema.Model, scope Scope, d Descriptor) error {
	args, ok := d.Args.(ir.IRObject)
	if !ok {
		return nil
	}
	if where, ok := args.Object("where"); ok {
		w.walkWhere(m, d.Verb, where)
	}

	switch d.Verb {
	case Update:
		// To-many updates are {where, data}; to-one updates may be the
		// data itself.
		if data, ok := args.Object("data"); ok {
			return w.walkData(m, d.Verb, data)
		}
		if !scope.RelationIsList {
			return w.walkData(m, d.Verb, args)
		}
	case Upsert:
		if data, ok := args.Object("update"); ok {
			return w.walkData(m, d.Verb, data)
		}
	}
	return nil
}

// mergeItems appends added to an existing single-or-list value. The result
// is a list when either side was one.
func mergeItems(existing ir.IRValue, added ir.IRArray, asList bool) ir.IRValue {
	switch v := existing.(type) {
	case nil:
		if !asList && len(added) == 1 {
			return added[0]
		}
		return added
	case ir.IRArray:
		return append(v, added...)
	default:
		return append(ir.IRArray{v}, added...)
	}
}

func passesUpdateThrough(args ir.IRValue) bool {
	obj, ok := args.(ir.IRObject)
	return ok && ir.Truthy(obj[passUpdateThroughKey])
}

func clauseVerb(key string) Verb {
	if key == "include" {
		return IncludeClause
	}
	return SelectClause
}

func isCombinator(key string) bool {
	for _, c := range combinators {
		if key == c {
			return true
		}
	}
	return false
}

func hasAnyKey(obj ir.IRObject, keys []string) bool {
	for _, k := range keys {
		if _, ok := obj[k]; ok {
			return true
		}
	}
	return false
}

func joinPath(path, key string) string {
	if path == "" {
		return key
	}
	return path + "." + key
}
