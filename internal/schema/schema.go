package schema

import (
	"fmt"
	"slices"
	"strings"
)

// Cardinality tags a relation as yielding at most one record or a sequence.
type Cardinality int

const (
	// ToOne relations cannot carry their own filter predicate.
	ToOne Cardinality = iota
	// ToMany relations yield an ordered sequence of records.
	ToMany
)

func (c Cardinality) String() string {
	if c == ToMany {
		return "toMany"
	}
	return "toOne"
}

// FieldType is the storage type of a scalar field.
type FieldType string

const (
	FieldInt       FieldType = "int"
	FieldString    FieldType = "string"
	FieldBoolean   FieldType = "boolean"
	FieldTimestamp FieldType = "timestamp"
)

// Field describes one scalar column of a model.
type Field struct {
	Name     string
	Type     FieldType
	ID       bool // primary key
	Unique   bool
	Optional bool
}

// Relation describes a navigable relation from one model to another.
//
// From names the column on the owning model and To the column on the
// related model that must be equal for two records to be related.
// For Post.author: From "authorId", To "id". For User.posts: From "id", To "authorId".
type Relation struct {
	Name        string
	Model       string
	Cardinality Cardinality
	From        string
	To          string
}

// IsList reports whether the relation is list-valued.
func (r Relation) IsList() bool {
	return r.Cardinality == ToMany
}

// Model is the schema description of one model.
type Model struct {
	Name      string
	Fields    []Field
	Unique    [][]string // compound unique constraints
	Relations map[string]Relation

	uniqueFields []string
	uniqueGroups []string
}

// Field returns the scalar field with the given name.
func (m *Model) Field(name string) (Field, bool) {
	for _, f := range m.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Relation returns the relation with the given name.
func (m *Model) Relation(name string) (Relation, bool) {
	r, ok := m.Relations[name]
	return r, ok
}

// PrimaryKey returns the name of the ID field, or "" if none is declared.
func (m *Model) PrimaryKey() string {
	for _, f := range m.Fields {
		if f.ID {
			return f.Name
		}
	}
	return ""
}

// UniqueFields returns the single-field unique keys (ID and @unique fields).
func (m *Model) UniqueFields() []string {
	return m.uniqueFields
}

// UniqueGroups returns the compound unique group names.
func (m *Model) UniqueGroups() []string {
	return m.uniqueGroups
}

// IsUniqueField reports whether key is a single-field unique key.
func (m *Model) IsUniqueField(key string) bool {
	return slices.Contains(m.uniqueFields, key)
}

// IsUniqueGroup reports whether key names a compound unique group.
func (m *Model) IsUniqueGroup(key string) bool {
	return slices.Contains(m.uniqueGroups, key)
}

// GroupFields returns the fields of the compound unique group named key.
func (m *Model) GroupFields(key string) ([]string, bool) {
	for _, group := range m.Unique {
		if GroupName(group...) == key {
			return group, true
		}
	}
	return nil, false
}

// GroupName is the deterministic name of a compound unique constraint:
// its field names joined by "_" in declaration order.
func GroupName(fields ...string) string {
	return strings.Join(fields, "_")
}

// Facts is the process-wide lookup of schema facts keyed by model name.
type Facts struct {
	models map[string]*Model
	order  []string
}

// New validates the given models and builds the lookup.
//
// Validation checks that model names are unique, that every relation
// targets a known model, and that relation join columns exist.
func New(models ...Model) (*Facts, error) {
	f := &Facts{models: make(map[string]*Model, len(models))}

	for i := range models {
		m := models[i]
		if m.Name == "" {
			return nil, fmt.Errorf("model %d: name is required", i)
		}
		if _, dup := f.models[m.Name]; dup {
			return nil, fmt.Errorf("model %q declared twice", m.Name)
		}
		m.uniqueFields = nil
		m.uniqueGroups = nil
		rels := make(map[string]Relation, len(m.Relations))
		for k, r := range m.Relations {
			rels[k] = r
		}
		m.Relations = rels
		for _, field := range m.Fields {
			if field.ID || field.Unique {
				m.uniqueFields = append(m.uniqueFields, field.Name)
			}
		}
		for _, group := range m.Unique {
			for _, name := range group {
				if _, ok := m.Field(name); !ok {
					return nil, fmt.Errorf("model %q: unique group references unknown field %q", m.Name, name)
				}
			}
			m.uniqueGroups = append(m.uniqueGroups, GroupName(group...))
		}
		f.models[m.Name] = &m
		f.order = append(f.order, m.Name)
	}

	for _, name := range f.order {
		m := f.models[name]
		for relName, rel := range m.Relations {
			target, ok := f.models[rel.Model]
			if !ok {
				return nil, fmt.Errorf("model %q: relation %q targets unknown model %q", name, relName, rel.Model)
			}
			if _, ok := m.Field(rel.From); !ok {
				return nil, fmt.Errorf("model %q: relation %q: unknown local field %q", name, relName, rel.From)
			}
			if _, ok := target.Field(rel.To); !ok {
				return nil, fmt.Errorf("model %q: relation %q: unknown field %q on %q", name, relName, rel.To, rel.Model)
			}
			if rel.Name == "" {
				rel.Name = relName
				m.Relations[relName] = rel
			}
		}
	}

	return f, nil
}

// Model returns the facts for a model.
func (f *Facts) Model(name string) (*Model, bool) {
	if f == nil {
		return nil, false
	}
	m, ok := f.models[name]
	return m, ok
}

// Relation looks up relation field on model.
func (f *Facts) Relation(model, field string) (Relation, bool) {
	m, ok := f.Model(model)
	if !ok {
		return Relation{}, false
	}
	return m.Relation(field)
}

// Models returns model names in declaration order.
func (f *Facts) Models() []string {
	if f == nil {
		return nil
	}
	return slices.Clone(f.order)
}
