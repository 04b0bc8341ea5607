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

func (c *Client) read(ctx context.Context, q querier, m *schema.Model, verb rewrite.Verb, args ir.IRObject) (ir.IRValue, error) {
	switch verb {
	case rewrite.FetchOne, rewrite.FetchOneOrThrow:
		if _, ok := args.Object("where"); !ok {
			return nil, invalid(m.Name, "%s requires a where object", verb)
		}
		return c.fetchSingle(ctx, q, m, verb, args, verb == rewrite.FetchOneOrThrow)
	case rewrite.FetchFirst, rewrite.FetchFirstOrThrow:
		return c.fetchSingle(ctx, q, m, verb, args, verb == rewrite.FetchFirstOrThrow)
	case rewrite.FetchMany:
		return c.fetch(ctx, q, m, args)
	case rewrite.Count:
		n, err := c.count(ctx, q, m, args)
		if err != nil {
			return nil, err
		}
		return ir.IRInt(n), nil
	case rewrite.Aggregate:
		return c.aggregate(ctx, q, m, args)
	case rewrite.GroupBy:
		return c.groupBy(ctx, q, m, args)
	}
	return nil, invalid(m.Name, "unsupported read verb %q", verb)
}

func (c *Client) fetchSingle(ctx context.Context, q querier, m *schema.Model, verb rewrite.Verb, args ir.IRObject, orThrow bool) (ir.IRValue, error) {
	first := args.Clone()
	first["take"] = ir.IRInt(1)

	records, err := c.fetch(ctx, q, m, first)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		if orThrow {
			return nil, &NotFoundError{Model: m.Name, Verb: verb}
		}
		return ir.IRNull{}, nil
	}
	return records[0], nil
}

// fetch returns the shaped records matching args.
func (c *Client) fetch(ctx context.Context, q querier, m *schema.Model, args ir.IRObject) (ir.IRArray, error) {
	rows, err := c.rows(ctx, q, m, args)
	if err != nil {
		return nil, err
	}

	records := make(ir.IRArray, 0, len(rows))
	for _, row := range rows {
		record, err := c.shape(ctx, q, m, row, args)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, nil
}

// rows returns the raw rows matching the where, orderBy, take and skip of
// args, every scalar field decoded.
func (c *Client) rows(ctx context.Context, q querier, m *schema.Model, args ir.IRObject) ([]ir.IRObject, error) {
	b := newBuilder(c.facts)
	alias := b.alias()

	where, err := b.whereArg(m, alias, args)
	if err != nil {
		return nil, err
	}
	order, err := orderBy(m, alias, args["orderBy"])
	if err != nil {
		return nil, err
	}

	cols := make([]string, len(m.Fields))
	for i, f := range m.Fields {
		cols[i] = alias + "." + quote(f.Name)
	}
	query := fmt.Sprintf("SELECT %s FROM %s AS %s WHERE %s ORDER BY %s",
		strings.Join(cols, ", "), quote(m.Name), alias, where, order)

	limit, err := paging(m, args)
	if err != nil {
		return nil, err
	}
	query += limit

	rs, err := q.QueryContext(ctx, query, b.params...)
	if err != nil {
		return nil, failed(m.Name, "query rows", err)
	}
	defer rs.Close()

	var out []ir.IRObject
	for rs.Next() {
		row, err := scanRow(rs, m.Fields)
		if err != nil {
			return nil, failed(m.Name, "scan row", err)
		}
		out = append(out, row)
	}
	if err := rs.Err(); err != nil {
		return nil, failed(m.Name, "iterate rows", err)
	}
	return out, nil
}

// whereArg compiles args.where. An absent or null where matches every row.
func (b *builder) whereArg(m *schema.Model, alias string, args ir.IRObject) (string, error) {
	switch w := args["where"].(type) {
	case nil, ir.IRNull:
		return "1", nil
	case ir.IRObject:
		return b.where(m, alias, w)
	default:
		return "", invalid(m.Name, "where must be an object, got %T", w)
	}
}

// orderBy compiles an orderBy object or list. The primary key always ends
// the ordering.
func orderBy(m *schema.Model, alias string, v ir.IRValue) (string, error) {
	var specs ir.IRArray
	switch o := v.(type) {
	case nil:
	case ir.IRObject:
		specs = ir.IRArray{o}
	case ir.IRArray:
		specs = o
	default:
		return "", invalid(m.Name, "orderBy must be an object or a list, got %T", v)
	}

	pk := m.PrimaryKey()
	var parts []string
	seen := map[string]bool{}
	for _, spec := range specs {
		obj, ok := spec.(ir.IRObject)
		if !ok {
			return "", invalid(m.Name, "orderBy entries must be objects, got %T", spec)
		}
		for _, key := range obj.SortedKeys() {
			if _, ok := m.Field(key); !ok {
				return "", invalid(m.Name, "unknown orderBy field %q", key)
			}
			dir, _ := obj[key].(ir.IRString)
			switch dir {
			case "asc", "desc":
			default:
				return "", invalid(m.Name, "orderBy %q must be \"asc\" or \"desc\"", key)
			}
			parts = append(parts, fmt.Sprintf("%s.%s %s", alias, quote(key), strings.ToUpper(string(dir))))
			seen[key] = true
		}
	}
	if !seen[pk] {
		parts = append(parts, fmt.Sprintf("%s.%s ASC", alias, quote(pk)))
	}
	return strings.Join(parts, ", "), nil
}

// paging compiles take and skip. Values are validated integers, so they
// are formatted inline.
func paging(m *schema.Model, args ir.IRObject) (string, error) {
	count := func(key string) (int64, bool, error) {
		switch v := args[key].(type) {
		case nil:
			return 0, false, nil
		case ir.IRInt:
			if v < 0 {
				return 0, false, invalid(m.Name, "%s must not be negative", key)
			}
			return int64(v), true, nil
		default:
			return 0, false, invalid(m.Name, "%s must be an integer, got %T", key, v)
		}
	}

	take, hasTake, err := count("take")
	if err != nil {
		return "", err
	}
	skip, hasSkip, err := count("skip")
	if err != nil {
		return "", err
	}

	switch {
	case hasTake && hasSkip:
		return fmt.Sprintf(" LIMIT %d OFFSET %d", take, skip), nil
	case hasTake:
		return fmt.Sprintf(" LIMIT %d", take), nil
	case hasSkip:
		return fmt.Sprintf(" LIMIT -1 OFFSET %d", skip), nil
	}
	return "", nil
}

// shape projects a raw row through the select or include of args, loading
// requested relations.
func (c *Client) shape(ctx context.Context, q querier, m *schema.Model, row ir.IRObject, args ir.IRObject) (ir.IRObject, error) {
	sel, hasSelect := args.Object("select")
	inc, hasInclude := args.Object("include")
	if hasSelect && hasInclude {
		return nil, invalid(m.Name, "select and include cannot be combined")
	}

	out := ir.IRObject{}
	requested := inc
	if hasSelect {
		requested = sel
	} else {
		for _, f := range m.Fields {
			out[f.Name] = row[f.Name]
		}
	}

	for _, key := range requested.SortedKeys() {
		v := requested[key]
		if !ir.Truthy(v) {
			continue
		}
		if _, ok := m.Field(key); ok {
			if !hasSelect {
				return nil, invalid(m.Name, "include of scalar field %q", key)
			}
			out[key] = row[key]
			continue
		}
		rel, ok := m.Relation(key)
		if !ok {
			return nil, invalid(m.Name, "unknown field %q in shape", key)
		}

		nested := ir.IRObject{}
		switch nv := v.(type) {
		case ir.IRBool:
		case ir.IRObject:
			nested = nv
		default:
			return nil, invalid(m.Name, "shape of %q must be a boolean or an object, got %T", key, v)
		}
		related, err := c.related(ctx, q, m, rel, row, nested)
		if err != nil {
			return nil, err
		}
		out[key] = related
	}
	return out, nil
}

// related loads the records of rel for row, shaped by args. A to-one
// relation with no related record yields null.
func (c *Client) related(ctx context.Context, q querier, m *schema.Model, rel schema.Relation, row ir.IRObject, args ir.IRObject) (ir.IRValue, error) {
	target, ok := c.facts.Model(rel.Model)
	if !ok {
		return nil, invalid(m.Name, "relation %q targets unknown model %q", rel.Name, rel.Model)
	}

	key := row[rel.From]
	if _, isNull := key.(ir.IRNull); isNull || key == nil {
		if rel.IsList() {
			return ir.IRArray{}, nil
		}
		return ir.IRNull{}, nil
	}

	scoped := args.Clone()
	scoped["where"] = linked(rel, key, args["where"])
	if !rel.IsList() {
		scoped["take"] = ir.IRInt(1)
	}

	records, err := c.fetch(ctx, q, target, scoped)
	if err != nil {
		return nil, err
	}
	if rel.IsList() {
		return records, nil
	}
	if len(records) == 0 {
		return ir.IRNull{}, nil
	}
	return records[0], nil
}

// linked narrows where to the rows related through rel to the parent key.
func linked(rel schema.Relation, key ir.IRValue, where ir.IRValue) ir.IRObject {
	link := ir.IRObject{rel.To: key}
	switch w := where.(type) {
	case nil, ir.IRNull:
		return link
	default:
		return ir.IRObject{"AND": ir.IRArray{link, w}}
	}
}

func (c *Client) count(ctx context.Context, q querier, m *schema.Model, args ir.IRObject) (int64, error) {
	b := newBuilder(c.facts)
	alias := b.alias()
	where, err := b.whereArg(m, alias, args)
	if err != nil {
		return 0, err
	}

	var n int64
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s AS %s WHERE %s", quote(m.Name), alias, where)
	if err := queryRow(ctx, q, query, b.params).Scan(&n); err != nil {
		return 0, failed(m.Name, "count rows", err)
	}
	return n, nil
}

// aggregate computes _count, _min and _max over the rows matching where.
//
//	{where: {...}, _count: true, _min: {id: true}, _max: {id: true}}
//	→ {_count: 3, _min: {id: 1}, _max: {id: 7}}
func (c *Client) aggregate(ctx context.Context, q querier, m *schema.Model, args ir.IRObject) (ir.IRValue, error) {
	b := newBuilder(c.facts)
	alias := b.alias()
	where, err := b.whereArg(m, alias, args)
	if err != nil {
		return nil, err
	}

	type column struct {
		fn    string
		field schema.Field
	}
	var (
		exprs []string
		cols  []column
	)
	if ir.Truthy(args["_count"]) {
		exprs = append(exprs, "COUNT(*)")
		cols = append(cols, column{fn: "_count", field: schema.Field{Type: schema.FieldInt}})
	}
	for _, fn := range []string{"_min", "_max"} {
		fields, ok := args.Object(fn)
		if !ok {
			continue
		}
		for _, name := range fields.SortedKeys() {
			if !ir.Truthy(fields[name]) {
				continue
			}
			f, ok := m.Field(name)
			if !ok {
				return nil, invalid(m.Name, "unknown field %q in %s", name, fn)
			}
			exprs = append(exprs, fmt.Sprintf("%s(%s.%s)", strings.ToUpper(fn[1:]), alias, quote(name)))
			cols = append(cols, column{fn: fn, field: f})
		}
	}

	out := ir.IRObject{}
	if len(exprs) == 0 {
		return out, nil
	}

	query := fmt.Sprintf("SELECT %s FROM %s AS %s WHERE %s", strings.Join(exprs, ", "), quote(m.Name), alias, where)
	raw := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range raw {
		ptrs[i] = &raw[i]
	}
	if err := queryRow(ctx, q, query, b.params).Scan(ptrs...); err != nil {
		return nil, failed(m.Name, "aggregate rows", err)
	}

	for i, col := range cols {
		v := decode(col.field, raw[i])
		if col.fn == "_count" {
			out["_count"] = v
			continue
		}
		group, _ := out.Object(col.fn)
		if group == nil {
			group = ir.IRObject{}
			out[col.fn] = group
		}
		group[col.field.Name] = v
	}
	return out, nil
}

// groupBy groups the rows matching where by the fields in by.
//
//	{by: ["authorId"], _count: true} → [{authorId: 1, _count: 2}, ...]
func (c *Client) groupBy(ctx context.Context, q querier, m *schema.Model, args ir.IRObject) (ir.IRValue, error) {
	var by []schema.Field
	switch v := args["by"].(type) {
	case ir.IRString:
		f, ok := m.Field(string(v))
		if !ok {
			return nil, invalid(m.Name, "unknown groupBy field %q", v)
		}
		by = append(by, f)
	case ir.IRArray:
		for _, item := range v {
			name, _ := item.(ir.IRString)
			f, ok := m.Field(string(name))
			if !ok {
				return nil, invalid(m.Name, "unknown groupBy field %v", item)
			}
			by = append(by, f)
		}
	}
	if len(by) == 0 {
		return nil, invalid(m.Name, "groupBy requires by")
	}

	b := newBuilder(c.facts)
	alias := b.alias()
	where, err := b.whereArg(m, alias, args)
	if err != nil {
		return nil, err
	}

	cols := make([]string, len(by))
	for i, f := range by {
		cols[i] = alias + "." + quote(f.Name)
	}
	list := strings.Join(cols, ", ")
	query := fmt.Sprintf("SELECT %s, COUNT(*) FROM %s AS %s WHERE %s GROUP BY %s ORDER BY %s",
		list, quote(m.Name), alias, where, list, list)

	rs, err := q.QueryContext(ctx, query, b.params...)
	if err != nil {
		return nil, failed(m.Name, "group rows", err)
	}
	defer rs.Close()

	countAll := false
	if obj, ok := args.Object("_count"); ok {
		countAll = ir.Truthy(obj["_all"])
	}

	fields := append(append([]schema.Field{}, by...), schema.Field{Name: "_count", Type: schema.FieldInt})
	groups := ir.IRArray{}
	for rs.Next() {
		row, err := scanRow(rs, fields)
		if err != nil {
			return nil, failed(m.Name, "scan group", err)
		}
		switch {
		case countAll:
			row["_count"] = ir.IRObject{"_all": row["_count"]}
		case !ir.Truthy(args["_count"]):
			delete(row, "_count")
		}
		groups = append(groups, row)
	}
	if err := rs.Err(); err != nil {
		return nil, failed(m.Name, "iterate groups", err)
	}
	return groups, nil
}

func queryRow(ctx context.Context, q querier, query string, params []any) *sql.Row {
	switch db := q.(type) {
	case *sql.Tx:
		return db.QueryRowContext(ctx, query, params...)
	case *sql.DB:
		return db.QueryRowContext(ctx, query, params...)
	}
	panic(fmt.Sprintf("sqlhost: unsupported querier %T", q))
}

// scanRow scans the current row into an object keyed by field name.
func scanRow(rs *sql.Rows, fields []schema.Field) (ir.IRObject, error) {
	raw := make([]any, len(fields))
	ptrs := make([]any, len(fields))
	for i := range raw {
		ptrs[i] = &raw[i]
	}
	if err := rs.Scan(ptrs...); err != nil {
		return nil, err
	}

	row := make(ir.IRObject, len(fields))
	for i, f := range fields {
		row[f.Name] = decode(f, raw[i])
	}
	return row, nil
}

// decode converts a driver value to a tree value of the field's type.
func decode(f schema.Field, v any) ir.IRValue {
	switch val := v.(type) {
	case nil:
		return ir.IRNull{}
	case int64:
		if f.Type == schema.FieldBoolean {
			return ir.IRBool(val != 0)
		}
		return ir.IRInt(val)
	case bool:
		return ir.IRBool(val)
	case float64:
		return ir.IRInt(int64(val))
	case []byte:
		return ir.IRString(string(val))
	case string:
		return ir.IRString(val)
	default:
		return ir.IRString(fmt.Sprint(val))
	}
}
