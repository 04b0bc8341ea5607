package sqlhost

import (
	"fmt"
	"strings"

	"github.com/roach88/tombstone/internal/ir"
	"github.com/roach88/tombstone/internal/schema"
)

// builder compiles where trees to parameterized SQL.
//
// Fragments are emitted left to right and params are appended in the same
// order, so the params of a compiled fragment line up with its placeholders.
type builder struct {
	facts  *schema.Facts
	params []any
	n      int
}

func newBuilder(facts *schema.Facts) *builder {
	return &builder{facts: facts}
}

// alias returns a fresh table alias.
func (b *builder) alias() string {
	a := fmt.Sprintf("t%d", b.n)
	b.n++
	return a
}

func (b *builder) bind(model string, v ir.IRValue) error {
	p, err := toParam(model, v)
	if err != nil {
		return err
	}
	b.params = append(b.params, p)
	return nil
}

// where compiles a where object of model m whose table is aliased as alias.
// An empty where compiles to "1".
//
// Supported keys:
//   - AND, OR, NOT (object or list of objects)
//   - scalar fields: a value, null, or an operator object
//   - compound unique groups: an object of group field values
//   - to-one relations: is, isNot, null, or a plain where object
//   - to-many relations: some, every, none
func (b *builder) where(m *schema.Model, alias string, where ir.IRObject) (string, error) {
	var parts []string
	for _, key := range where.SortedKeys() {
		v := where[key]
		if v == nil {
			continue
		}

		var (
			sql string
			err error
		)
		switch {
		case key == "AND":
			sql, err = b.combine(m, alias, key, v, " AND ", "1", false)
		case key == "OR":
			sql, err = b.combine(m, alias, key, v, " OR ", "0", false)
		case key == "NOT":
			// Every listed clause must fail.
			sql, err = b.combine(m, alias, key, v, " AND ", "1", true)
		default:
			sql, err = b.key(m, alias, key, v)
		}
		if err != nil {
			return "", err
		}
		parts = append(parts, sql)
	}
	return conjoin(parts, " AND ", "1"), nil
}

func (b *builder) combine(m *schema.Model, alias, key string, v ir.IRValue, sep, empty string, negate bool) (string, error) {
	var clauses ir.IRArray
	switch c := v.(type) {
	case ir.IRObject:
		clauses = ir.IRArray{c}
	case ir.IRArray:
		clauses = c
	default:
		return "", invalid(m.Name, "%s must be an object or a list, got %T", key, v)
	}

	parts := make([]string, 0, len(clauses))
	for _, clause := range clauses {
		obj, ok := clause.(ir.IRObject)
		if !ok {
			return "", invalid(m.Name, "%s entries must be objects, got %T", key, clause)
		}
		sql, err := b.where(m, alias, obj)
		if err != nil {
			return "", err
		}
		if negate {
			sql = negated(sql)
		}
		parts = append(parts, sql)
	}
	return conjoin(parts, sep, empty), nil
}

func (b *builder) key(m *schema.Model, alias, key string, v ir.IRValue) (string, error) {
	if f, ok := m.Field(key); ok {
		return b.field(m, alias+"."+quote(f.Name), v)
	}
	if rel, ok := m.Relation(key); ok {
		return b.relation(m, alias, rel, v)
	}
	if fields, ok := m.GroupFields(key); ok {
		values, ok := v.(ir.IRObject)
		if !ok {
			return "", invalid(m.Name, "compound unique %q must be an object, got %T", key, v)
		}
		parts := make([]string, 0, len(fields))
		for _, f := range fields {
			sql, err := b.field(m, alias+"."+quote(f), values[f])
			if err != nil {
				return "", err
			}
			parts = append(parts, sql)
		}
		return conjoin(parts, " AND ", "1"), nil
	}
	return "", invalid(m.Name, "unknown field %q in where", key)
}

// field compiles the condition on one column.
func (b *builder) field(m *schema.Model, col string, v ir.IRValue) (string, error) {
	switch val := v.(type) {
	case nil:
		return "1", nil
	case ir.IRNull:
		return col + " IS NULL", nil
	case ir.IRObject:
		return b.operators(m, col, val)
	default:
		if err := b.bind(m.Name, val); err != nil {
			return "", err
		}
		return col + " = ?", nil
	}
}

func (b *builder) operators(m *schema.Model, col string, ops ir.IRObject) (string, error) {
	var parts []string
	for _, op := range ops.SortedKeys() {
		v := ops[op]
		if v == nil {
			continue
		}

		var sql string
		switch op {
		case "equals":
			if _, nested := v.(ir.IRObject); nested {
				return "", invalid(m.Name, "equals must be a scalar or null")
			}
			s, err := b.field(m, col, v)
			if err != nil {
				return "", err
			}
			sql = s
		case "not":
			switch nv := v.(type) {
			case ir.IRNull:
				sql = col + " IS NOT NULL"
			case ir.IRObject:
				s, err := b.operators(m, col, nv)
				if err != nil {
					return "", err
				}
				sql = negated(s)
			default:
				// IS NOT treats NULL as a distinct value.
				if err := b.bind(m.Name, nv); err != nil {
					return "", err
				}
				sql = col + " IS NOT ?"
			}
		case "in", "notIn":
			list, ok := v.(ir.IRArray)
			if !ok {
				return "", invalid(m.Name, "%s must be a list, got %T", op, v)
			}
			if len(list) == 0 {
				sql = map[string]string{"in": "0", "notIn": "1"}[op]
				break
			}
			marks := make([]string, len(list))
			for i, item := range list {
				if err := b.bind(m.Name, item); err != nil {
					return "", err
				}
				marks[i] = "?"
			}
			kw := " IN "
			if op == "notIn" {
				kw = " NOT IN "
			}
			sql = col + kw + "(" + strings.Join(marks, ", ") + ")"
		case "lt", "lte", "gt", "gte":
			if err := b.bind(m.Name, v); err != nil {
				return "", err
			}
			sql = col + " " + comparisons[op] + " ?"
		case "contains", "startsWith", "endsWith":
			s, ok := v.(ir.IRString)
			if !ok {
				return "", invalid(m.Name, "%s must be a string, got %T", op, v)
			}
			pattern := escapeLike(string(s))
			switch op {
			case "contains":
				pattern = "%" + pattern + "%"
			case "startsWith":
				pattern = pattern + "%"
			case "endsWith":
				pattern = "%" + pattern
			}
			b.params = append(b.params, pattern)
			sql = col + ` LIKE ? ESCAPE '\'`
		default:
			return "", invalid(m.Name, "unknown filter operator %q", op)
		}
		parts = append(parts, sql)
	}
	return conjoin(parts, " AND ", "1"), nil
}

var comparisons = map[string]string{"lt": "<", "lte": "<=", "gt": ">", "gte": ">="}

// relation compiles a relation filter as a correlated EXISTS subquery.
func (b *builder) relation(m *schema.Model, alias string, rel schema.Relation, v ir.IRValue) (string, error) {
	target, ok := b.facts.Model(rel.Model)
	if !ok {
		return "", invalid(m.Name, "relation %q targets unknown model %q", rel.Name, rel.Model)
	}

	if rel.IsList() {
		filter, ok := v.(ir.IRObject)
		if !ok {
			return "", invalid(m.Name, "to-many filter %q must be an object, got %T", rel.Name, v)
		}
		var parts []string
		for _, mod := range filter.SortedKeys() {
			if filter[mod] == nil {
				continue
			}
			sub, ok := filter[mod].(ir.IRObject)
			if !ok {
				return "", invalid(m.Name, "%s.%s must be an object", rel.Name, mod)
			}
			var sql string
			var err error
			switch mod {
			case "some":
				sql, err = b.exists(alias, target, rel, sub, false)
			case "none":
				sql, err = b.exists(alias, target, rel, sub, false)
				sql = "NOT " + sql
			case "every":
				sql, err = b.exists(alias, target, rel, sub, true)
				sql = "NOT " + sql
			default:
				return "", invalid(m.Name, "unknown to-many modifier %q on %q", mod, rel.Name)
			}
			if err != nil {
				return "", err
			}
			parts = append(parts, sql)
		}
		return conjoin(parts, " AND ", "1"), nil
	}

	switch filter := v.(type) {
	case ir.IRNull:
		sql, err := b.exists(alias, target, rel, nil, false)
		return "NOT " + sql, err
	case ir.IRObject:
		_, hasIs := filter["is"]
		_, hasIsNot := filter["isNot"]
		if !hasIs && !hasIsNot {
			return b.exists(alias, target, rel, filter, false)
		}
		var parts []string
		for _, mod := range []string{"is", "isNot"} {
			var sql string
			var err error
			switch sub := filter[mod].(type) {
			case nil:
				continue
			case ir.IRNull:
				sql, err = b.exists(alias, target, rel, nil, false)
				if mod == "is" {
					sql = "NOT " + sql
				}
			case ir.IRObject:
				sql, err = b.exists(alias, target, rel, sub, false)
				if mod == "isNot" {
					sql = "NOT " + sql
				}
			default:
				return "", invalid(m.Name, "%s.%s must be an object or null", rel.Name, mod)
			}
			if err != nil {
				return "", err
			}
			parts = append(parts, sql)
		}
		return conjoin(parts, " AND ", "1"), nil
	default:
		return "", invalid(m.Name, "to-one filter %q must be an object or null, got %T", rel.Name, v)
	}
}

// exists builds EXISTS over the related rows of rel. With negate, it
// matches related rows failing sub, which is how "every" is expressed.
func (b *builder) exists(parent string, target *schema.Model, rel schema.Relation, sub ir.IRObject, negate bool) (string, error) {
	child := b.alias()
	sql := fmt.Sprintf("EXISTS (SELECT 1 FROM %s AS %s WHERE %s.%s = %s.%s",
		quote(target.Name), child, child, quote(rel.To), parent, quote(rel.From))
	if sub != nil {
		cond, err := b.where(target, child, sub)
		if err != nil {
			return "", err
		}
		if negate {
			cond = negated(cond)
		}
		sql += " AND " + cond
	}
	return sql + ")", nil
}

// negated inverts a condition, counting an unknown (NULL) result as false
// before inverting.
func negated(cond string) string {
	return "NOT COALESCE((" + cond + "), 0)"
}

func conjoin(parts []string, sep, empty string) string {
	switch len(parts) {
	case 0:
		return empty
	case 1:
		return parts[0]
	}
	return "(" + strings.Join(parts, ")"+sep+"(") + ")"
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// toParam converts a scalar tree value to a driver parameter.
func toParam(model string, v ir.IRValue) (any, error) {
	switch val := v.(type) {
	case ir.IRNull:
		return nil, nil
	case ir.IRString:
		return string(val), nil
	case ir.IRInt:
		return int64(val), nil
	case ir.IRBool:
		return bool(val), nil
	default:
		return nil, invalid(model, "expected a scalar value, got %T", v)
	}
}
