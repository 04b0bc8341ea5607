package compiler

import (
	"fmt"

	"cuelang.org/go/cue"

	"github.com/roach88/tombstone/internal/schema"
)

// CompileModel parses a CUE value into a schema model.
//
// The CUE value should be the model struct itself, e.g.:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`model: User: { fields: { ... } }`)
//	m, err := CompileModel(v.LookupPath(cue.ParsePath("model.User")))
//
// Fields keep their declaration order. Relations are checked against other
// models only when the models are combined by CompileSchema.
func CompileModel(v cue.Value) (*schema.Model, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	m := &schema.Model{}

	// Model name from struct label (the path selector)
	labels := v.Path().Selectors()
	if len(labels) > 0 {
		m.Name = labels[len(labels)-1].String()
	}

	// Parse fields (required, at least one)
	fieldsVal := v.LookupPath(cue.ParsePath("fields"))
	if !fieldsVal.Exists() {
		return nil, &CompileError{
			Field:   "fields",
			Message: "fields are required",
			Pos:     v.Pos(),
		}
	}
	iter, err := fieldsVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for iter.Next() {
		field, err := parseField(iter.Label(), iter.Value())
		if err != nil {
			return nil, err
		}
		m.Fields = append(m.Fields, field)
	}
	if len(m.Fields) == 0 {
		return nil, &CompileError{
			Field:   "fields",
			Message: "at least one field is required",
			Pos:     fieldsVal.Pos(),
		}
	}

	// Parse compound unique constraints (optional)
	uniqueVal := v.LookupPath(cue.ParsePath("unique"))
	if uniqueVal.Exists() {
		m.Unique, err = parseUnique(uniqueVal)
		if err != nil {
			return nil, err
		}
	}

	// Parse relations (optional)
	relationsVal := v.LookupPath(cue.ParsePath("relations"))
	if relationsVal.Exists() {
		m.Relations, err = parseRelations(relationsVal)
		if err != nil {
			return nil, err
		}
	}

	return m, nil
}

// CompileSchema compiles every model under v (the "model" struct) and
// builds schema facts from them.
func CompileSchema(v cue.Value) (*schema.Facts, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	iter, err := v.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var models []schema.Model
	for iter.Next() {
		m, err := CompileModel(iter.Value())
		if err != nil {
			return nil, err
		}
		models = append(models, *m)
	}

	facts, err := schema.New(models...)
	if err != nil {
		return nil, &CompileError{Field: "model", Message: err.Error(), Pos: v.Pos()}
	}
	return facts, nil
}

func parseField(name string, v cue.Value) (schema.Field, error) {
	field := schema.Field{Name: name}

	typ, err := requiredString(v, "type", "fields."+name+".type")
	if err != nil {
		return field, err
	}
	switch ft := schema.FieldType(typ); ft {
	case schema.FieldInt, schema.FieldString, schema.FieldBoolean, schema.FieldTimestamp:
		field.Type = ft
	default:
		return field, &CompileError{
			Field:   "type",
			Message: fmt.Sprintf("field %q has unsupported type %q (want int, string, boolean or timestamp)", name, typ),
			Pos:     v.Pos(),
		}
	}

	for _, flag := range []struct {
		label string
		dst   *bool
	}{
		{"id", &field.ID},
		{"unique", &field.Unique},
		{"optional", &field.Optional},
	} {
		if *flag.dst, _, err = optionalBool(v, flag.label); err != nil {
			return field, err
		}
	}
	return field, nil
}

func parseUnique(v cue.Value) ([][]string, error) {
	var groups [][]string

	iter, err := v.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for iter.Next() {
		fieldIter, err := iter.Value().List()
		if err != nil {
			return nil, formatCUEError(err)
		}
		var group []string
		for fieldIter.Next() {
			name, err := fieldIter.Value().String()
			if err != nil {
				return nil, formatCUEError(err)
			}
			group = append(group, name)
		}
		if len(group) < 2 {
			return nil, &CompileError{
				Field:   "unique",
				Message: "compound unique constraints need at least two fields",
				Pos:     iter.Value().Pos(),
			}
		}
		groups = append(groups, group)
	}
	return groups, nil
}

func parseRelations(v cue.Value) (map[string]schema.Relation, error) {
	relations := make(map[string]schema.Relation)

	iter, err := v.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for iter.Next() {
		name := iter.Label()
		relVal := iter.Value()
		path := "relations." + name

		rel := schema.Relation{Name: name, Cardinality: schema.ToOne}
		if rel.Model, err = requiredString(relVal, "model", path+".model"); err != nil {
			return nil, err
		}
		if rel.From, err = requiredString(relVal, "from", path+".from"); err != nil {
			return nil, err
		}
		if rel.To, err = requiredString(relVal, "to", path+".to"); err != nil {
			return nil, err
		}
		list, _, err := optionalBool(relVal, "list")
		if err != nil {
			return nil, err
		}
		if list {
			rel.Cardinality = schema.ToMany
		}
		relations[name] = rel
	}
	return relations, nil
}

func requiredString(v cue.Value, label, field string) (string, error) {
	s, ok, err := optionalString(v, label)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", &CompileError{
			Field:   field,
			Message: field + " is required",
			Pos:     v.Pos(),
		}
	}
	return s, nil
}

func optionalString(v cue.Value, label string) (string, bool, error) {
	val := v.LookupPath(cue.ParsePath(label))
	if !val.Exists() {
		return "", false, nil
	}
	s, err := val.String()
	if err != nil {
		return "", false, formatCUEError(err)
	}
	return s, true, nil
}

func optionalBool(v cue.Value, label string) (bool, bool, error) {
	val := v.LookupPath(cue.ParsePath(label))
	if !val.Exists() {
		return false, false, nil
	}
	b, err := val.Bool()
	if err != nil {
		return false, false, formatCUEError(err)
	}
	return b, true, nil
}
