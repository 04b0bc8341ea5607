package sqlhost

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/roach88/tombstone/internal/ir"
	"github.com/roach88/tombstone/internal/rewrite"
	"github.com/roach88/tombstone/internal/schema"
)

// nestedWrites are the nested write keys update data may carry on a
// relation, in execution order.
var nestedWrites = []string{"create", "update", "updateMany", "upsert", "delete", "deleteMany"}

// write runs one write operation in a transaction. Nested writes commit or
// roll back with the root write.
func (c *Client) write(ctx context.Context, m *schema.Model, verb rewrite.Verb, args ir.IRObject) (ir.IRValue, error) {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, failed(m.Name, "begin transaction", err)
	}
	defer tx.Rollback() // No-op if committed

	result, err := c.writeTx(ctx, tx, m, verb, args)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, failed(m.Name, "commit", err)
	}
	return result, nil
}

func (c *Client) writeTx(ctx context.Context, tx *sql.Tx, m *schema.Model, verb rewrite.Verb, args ir.IRObject) (ir.IRValue, error) {
	switch verb {
	case rewrite.Create:
		data, ok := args.Object("data")
		if !ok {
			return nil, invalid(m.Name, "create requires a data object")
		}
		pk, err := c.insert(ctx, tx, m, data)
		if err != nil {
			return nil, err
		}
		return c.byKey(ctx, tx, m, pk, args)

	case rewrite.CreateMany:
		var items ir.IRArray
		switch data := args["data"].(type) {
		case ir.IRArray:
			items = data
		case ir.IRObject:
			items = ir.IRArray{data}
		default:
			return nil, invalid(m.Name, "createMany requires data")
		}
		for _, item := range items {
			data, ok := item.(ir.IRObject)
			if !ok {
				return nil, invalid(m.Name, "createMany data entries must be objects, got %T", item)
			}
			if _, err := c.insert(ctx, tx, m, data); err != nil {
				return nil, err
			}
		}
		return counted(int64(len(items))), nil

	case rewrite.Update:
		where, data, err := whereAndData(m, verb, args, "data")
		if err != nil {
			return nil, err
		}
		row, err := c.first(ctx, tx, m, where)
		if err != nil {
			return nil, err
		}
		if row == nil {
			return nil, &NotFoundError{Model: m.Name, Verb: verb}
		}
		pk, err := c.updateRow(ctx, tx, m, row, data)
		if err != nil {
			return nil, err
		}
		return c.byKey(ctx, tx, m, pk, args)

	case rewrite.UpdateMany:
		data, ok := args.Object("data")
		if !ok {
			return nil, invalid(m.Name, "updateMany requires a data object")
		}
		n, err := c.updateWhere(ctx, tx, m, args["where"], data)
		if err != nil {
			return nil, err
		}
		return counted(n), nil

	case rewrite.Upsert:
		where, update, err := whereAndData(m, verb, args, "update")
		if err != nil {
			return nil, err
		}
		create, ok := args.Object("create")
		if !ok {
			return nil, invalid(m.Name, "upsert requires a create object")
		}
		pk, err := c.upsert(ctx, tx, m, where, create, update, nil)
		if err != nil {
			return nil, err
		}
		return c.byKey(ctx, tx, m, pk, args)

	case rewrite.Delete:
		where, ok := args.Object("where")
		if !ok {
			return nil, invalid(m.Name, "delete requires a where object")
		}
		row, err := c.first(ctx, tx, m, where)
		if err != nil {
			return nil, err
		}
		if row == nil {
			return nil, &NotFoundError{Model: m.Name, Verb: verb}
		}
		record, err := c.shape(ctx, tx, m, row, args)
		if err != nil {
			return nil, err
		}
		if err := c.deleteKey(ctx, tx, m, row[m.PrimaryKey()]); err != nil {
			return nil, err
		}
		return record, nil

	case rewrite.DeleteMany:
		n, err := c.deleteWhere(ctx, tx, m, args["where"])
		if err != nil {
			return nil, err
		}
		return counted(n), nil
	}
	return nil, invalid(m.Name, "unsupported write verb %q", verb)
}

func whereAndData(m *schema.Model, verb rewrite.Verb, args ir.IRObject, dataKey string) (ir.IRObject, ir.IRObject, error) {
	where, ok := args.Object("where")
	if !ok {
		return nil, nil, invalid(m.Name, "%s requires a where object", verb)
	}
	data, ok := args.Object(dataKey)
	if !ok {
		return nil, nil, invalid(m.Name, "%s requires a %s object", verb, dataKey)
	}
	return where, data, nil
}

func counted(n int64) ir.IRObject {
	return ir.IRObject{"count": ir.IRInt(n)}
}

// insert creates one record and its nested writes, returning its primary key.
func (c *Client) insert(ctx context.Context, tx *sql.Tx, m *schema.Model, data ir.IRObject) (ir.IRValue, error) {
	var (
		cols   []string
		marks  []string
		params []any
	)
	rels := ir.IRObject{}
	for _, key := range data.SortedKeys() {
		v := data[key]
		if v == nil {
			continue
		}
		if _, ok := m.Field(key); ok {
			p, err := toParam(m.Name, v)
			if err != nil {
				return nil, err
			}
			cols = append(cols, quote(key))
			marks = append(marks, "?")
			params = append(params, p)
			continue
		}
		if _, ok := m.Relation(key); ok {
			rels[key] = v
			continue
		}
		return nil, invalid(m.Name, "unknown field %q in data", key)
	}

	query := fmt.Sprintf("INSERT INTO %s DEFAULT VALUES", quote(m.Name))
	if len(cols) > 0 {
		query = fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
			quote(m.Name), strings.Join(cols, ", "), strings.Join(marks, ", "))
	}
	res, err := tx.ExecContext(ctx, query, params...)
	if err != nil {
		return nil, failed(m.Name, "insert", err)
	}

	pk := data[m.PrimaryKey()]
	if pk == nil {
		id, err := res.LastInsertId()
		if err != nil {
			return nil, failed(m.Name, "read inserted id", err)
		}
		pk = ir.IRInt(id)
	}

	if len(rels) > 0 {
		row, err := c.rowByKey(ctx, tx, m, pk)
		if err != nil {
			return nil, err
		}
		if err := c.nested(ctx, tx, m, row, rels); err != nil {
			return nil, err
		}
	}
	return pk, nil
}

// updateRow applies data to one row: scalar assignments first, then nested
// writes on relations. It returns the row's primary key after the update.
func (c *Client) updateRow(ctx context.Context, tx *sql.Tx, m *schema.Model, row ir.IRObject, data ir.IRObject) (ir.IRValue, error) {
	pkName := m.PrimaryKey()
	pk := row[pkName]

	sets, params, rels, err := assignments(m, data)
	if err != nil {
		return nil, err
	}
	if len(sets) > 0 {
		query := fmt.Sprintf("UPDATE %s SET %s WHERE %s = ?", quote(m.Name), strings.Join(sets, ", "), quote(pkName))
		p, _ := toParam(m.Name, pk)
		if _, err := tx.ExecContext(ctx, query, append(params, p)...); err != nil {
			return nil, failed(m.Name, "update", err)
		}
		if v, ok := data[pkName]; ok && isScalar(v) {
			pk = v
		}
	}

	if len(rels) > 0 {
		updated, err := c.rowByKey(ctx, tx, m, pk)
		if err != nil {
			return nil, err
		}
		if err := c.nested(ctx, tx, m, updated, rels); err != nil {
			return nil, err
		}
	}
	return pk, nil
}

// updateWhere applies scalar data to every row matching where.
func (c *Client) updateWhere(ctx context.Context, tx *sql.Tx, m *schema.Model, where ir.IRValue, data ir.IRObject) (int64, error) {
	sets, params, rels, err := assignments(m, data)
	if err != nil {
		return 0, err
	}
	if len(rels) > 0 {
		return 0, invalid(m.Name, "updateMany data cannot carry nested writes")
	}
	if len(sets) == 0 {
		return c.count(ctx, tx, m, ir.IRObject{"where": where})
	}

	b := newBuilder(c.facts)
	alias := b.alias()
	cond, err := b.whereArg(m, alias, ir.IRObject{"where": where})
	if err != nil {
		return 0, err
	}
	query := fmt.Sprintf("UPDATE %s AS %s SET %s WHERE %s", quote(m.Name), alias, strings.Join(sets, ", "), cond)
	res, err := tx.ExecContext(ctx, query, append(params, b.params...)...)
	if err != nil {
		return 0, failed(m.Name, "update rows", err)
	}
	return res.RowsAffected()
}

// assignments compiles the scalar part of update data to SET clauses and
// returns the relation part separately.
//
// A scalar value may be a plain value or one of {set: v}, {increment: n},
// {decrement: n}.
func assignments(m *schema.Model, data ir.IRObject) ([]string, []any, ir.IRObject, error) {
	var (
		sets   []string
		params []any
	)
	rels := ir.IRObject{}
	for _, key := range data.SortedKeys() {
		v := data[key]
		if v == nil {
			continue
		}
		if _, ok := m.Relation(key); ok {
			rels[key] = v
			continue
		}
		if _, ok := m.Field(key); !ok {
			return nil, nil, nil, invalid(m.Name, "unknown field %q in data", key)
		}

		expr := quote(key) + " = ?"
		if op, ok := v.(ir.IRObject); ok {
			if len(op) != 1 {
				return nil, nil, nil, invalid(m.Name, "update of %q takes exactly one operation", key)
			}
			switch {
			case op.Has("set"):
				v = op["set"]
			case op.Has("increment"):
				expr, v = quote(key)+" = "+quote(key)+" + ?", op["increment"]
			case op.Has("decrement"):
				expr, v = quote(key)+" = "+quote(key)+" - ?", op["decrement"]
			default:
				return nil, nil, nil, invalid(m.Name, "unknown update operation on %q", key)
			}
		}
		p, err := toParam(m.Name, v)
		if err != nil {
			return nil, nil, nil, err
		}
		sets = append(sets, expr)
		params = append(params, p)
	}
	return sets, params, rels, nil
}

// upsert updates the first row matching where, or creates one.
// link, when set, is merged into created data.
func (c *Client) upsert(ctx context.Context, tx *sql.Tx, m *schema.Model, where ir.IRValue, create, update ir.IRObject, link ir.IRObject) (ir.IRValue, error) {
	row, err := c.first(ctx, tx, m, where)
	if err != nil {
		return nil, err
	}
	if row != nil {
		return c.updateRow(ctx, tx, m, row, update)
	}
	data := create.Clone()
	for k, v := range link {
		data[k] = v
	}
	return c.insert(ctx, tx, m, data)
}

func (c *Client) deleteKey(ctx context.Context, tx *sql.Tx, m *schema.Model, pk ir.IRValue) error {
	p, err := toParam(m.Name, pk)
	if err != nil {
		return err
	}
	query := fmt.Sprintf("DELETE FROM %s WHERE %s = ?", quote(m.Name), quote(m.PrimaryKey()))
	if _, err := tx.ExecContext(ctx, query, p); err != nil {
		return failed(m.Name, "delete", err)
	}
	return nil
}

func (c *Client) deleteWhere(ctx context.Context, tx *sql.Tx, m *schema.Model, where ir.IRValue) (int64, error) {
	b := newBuilder(c.facts)
	alias := b.alias()
	cond, err := b.whereArg(m, alias, ir.IRObject{"where": where})
	if err != nil {
		return 0, err
	}
	res, err := tx.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s AS %s WHERE %s", quote(m.Name), alias, cond), b.params...)
	if err != nil {
		return 0, failed(m.Name, "delete rows", err)
	}
	return res.RowsAffected()
}

// nested runs the nested writes in rels for the parent row.
//
// Related rows are those whose To column equals the parent's From column.
// Writes that need a related row fail with NotFoundError when none matches.
func (c *Client) nested(ctx context.Context, tx *sql.Tx, m *schema.Model, row ir.IRObject, rels ir.IRObject) error {
	for _, key := range rels.SortedKeys() {
		rel, _ := m.Relation(key)
		target, ok := c.facts.Model(rel.Model)
		if !ok {
			return invalid(m.Name, "relation %q targets unknown model %q", key, rel.Model)
		}
		ops, ok := rels[key].(ir.IRObject)
		if !ok {
			return invalid(m.Name, "nested write on %q must be an object, got %T", key, rels[key])
		}
		for _, op := range ops.SortedKeys() {
			if !isNestedWrite(op) {
				return invalid(m.Name, "unsupported nested write %q on %q", op, key)
			}
		}

		parentKey := row[rel.From]
		_, orphan := parentKey.(ir.IRNull)
		link := ir.IRObject{rel.To: parentKey}

		// find returns the first related row matching where, if any.
		find := func(where ir.IRValue) (ir.IRObject, error) {
			if orphan {
				return nil, nil
			}
			return c.first(ctx, tx, target, linked(rel, parentKey, where))
		}
		mustFind := func(verb rewrite.Verb, where ir.IRValue) (ir.IRObject, error) {
			found, err := find(where)
			if err == nil && found == nil {
				err = &NotFoundError{Model: target.Name, Verb: verb}
			}
			return found, err
		}

		for _, op := range nestedWrites {
			for _, item := range items(ops[op]) {
				obj, isObj := item.(ir.IRObject)
				var err error
				switch op {
				case "create":
					if !isObj {
						return invalid(m.Name, "nested create on %q must be an object", key)
					}
					data := obj.Clone()
					for k, v := range link {
						data[k] = v
					}
					_, err = c.insert(ctx, tx, target, data)

				case "update":
					if !isObj {
						return invalid(m.Name, "nested update on %q must be an object", key)
					}
					// To-one updates may be the data itself.
					data, hasData := obj.Object("data")
					if !hasData && !rel.IsList() {
						data = obj
					}
					if data == nil {
						return invalid(m.Name, "nested update on %q requires data", key)
					}
					var found ir.IRObject
					if found, err = mustFind(rewrite.Update, obj["where"]); err == nil {
						_, err = c.updateRow(ctx, tx, target, found, data)
					}

				case "updateMany":
					data, hasData := obj.Object("data")
					if !hasData {
						return invalid(m.Name, "nested updateMany on %q requires data", key)
					}
					if !orphan {
						_, err = c.updateWhere(ctx, tx, target, linked(rel, parentKey, obj["where"]), data)
					}

				case "upsert":
					create, hasCreate := obj.Object("create")
					update, hasUpdate := obj.Object("update")
					if !hasCreate || !hasUpdate {
						return invalid(m.Name, "nested upsert on %q requires create and update", key)
					}
					if orphan {
						_, err = c.insert(ctx, tx, target, create)
						break
					}
					_, err = c.upsert(ctx, tx, target, linked(rel, parentKey, obj["where"]), create, update, link)

				case "delete":
					var where ir.IRValue
					switch {
					case isObj:
						where = obj
					case ir.Truthy(item) && !rel.IsList():
					default:
						continue
					}
					var found ir.IRObject
					if found, err = mustFind(rewrite.Delete, where); err == nil {
						err = c.deleteKey(ctx, tx, target, found[target.PrimaryKey()])
					}

				case "deleteMany":
					if !orphan {
						var where ir.IRValue
						if isObj {
							where = obj
						}
						_, err = c.deleteWhere(ctx, tx, target, linked(rel, parentKey, where))
					}
				}
				if err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func isNestedWrite(op string) bool {
	for _, w := range nestedWrites {
		if op == w {
			return true
		}
	}
	return false
}

// items returns a single-or-list nested write value as a list.
func items(v ir.IRValue) ir.IRArray {
	switch val := v.(type) {
	case nil:
		return nil
	case ir.IRArray:
		return val
	default:
		return ir.IRArray{val}
	}
}

func isScalar(v ir.IRValue) bool {
	switch v.(type) {
	case ir.IRString, ir.IRInt, ir.IRBool:
		return true
	}
	return false
}

// first returns the first raw row matching where, or nil.
func (c *Client) first(ctx context.Context, q querier, m *schema.Model, where ir.IRValue) (ir.IRObject, error) {
	args := ir.IRObject{"take": ir.IRInt(1)}
	if where != nil {
		args["where"] = where
	}
	rows, err := c.rows(ctx, q, m, args)
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return rows[0], nil
}

func (c *Client) rowByKey(ctx context.Context, q querier, m *schema.Model, pk ir.IRValue) (ir.IRObject, error) {
	row, err := c.first(ctx, q, m, ir.IRObject{m.PrimaryKey(): pk})
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, invalid(m.Name, "record %v vanished during write", pk)
	}
	return row, nil
}

// byKey returns the record with primary key pk, shaped by args.
func (c *Client) byKey(ctx context.Context, q querier, m *schema.Model, pk ir.IRValue, args ir.IRObject) (ir.IRValue, error) {
	row, err := c.rowByKey(ctx, q, m, pk)
	if err != nil {
		return nil, err
	}
	return c.shape(ctx, q, m, row, args)
}
