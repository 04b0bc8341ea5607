package sqlhost

import (
	"context"

	"github.com/roach88/tombstone/internal/ir"
	"github.com/roach88/tombstone/internal/rewrite"
)

// Related loads one relation of the record matching a unique where, the way
// a chained relation fetch does. It issues a single fetchOne of model that
// selects only the relation and routes it through model's interceptor, so
// an installed extension sees and rewrites it like any other read.
//
// shape is the relation's select value: true, or an object with where,
// select, include, orderBy, take and skip. nil means true. A missing parent
// yields null for to-one relations and an empty list for to-many relations.
func (c *Client) Related(ctx context.Context, model string, where ir.IRObject, relation string, shape ir.IRValue) (ir.IRValue, error) {
	m, ok := c.facts.Model(model)
	if !ok {
		return nil, invalid(model, "unknown model")
	}
	rel, ok := m.Relation(relation)
	if !ok {
		return nil, invalid(model, "unknown relation %q", relation)
	}
	if shape == nil {
		shape = ir.IRBool(true)
	}

	parent, err := c.Do(ctx, model, rewrite.FetchOne, ir.IRObject{
		"where":  where,
		"select": ir.IRObject{relation: shape},
	})
	if err != nil {
		return nil, err
	}

	if rec, ok := parent.(ir.IRObject); ok {
		if v, ok := rec[relation]; ok && v != nil {
			return v, nil
		}
	}
	if rel.IsList() {
		return ir.IRArray{}, nil
	}
	return ir.IRNull{}, nil
}
