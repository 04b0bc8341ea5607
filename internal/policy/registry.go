package policy

import (
	"fmt"
	"sort"
)

// Override is a partial policy. Nil fields inherit from the default policy.
type Override struct {
	Field                    *string
	Encode                   Encoder
	AllowToOneUpdates        *bool
	AllowCompoundUniqueWhere *bool
}

// Setting is the per-model entry of a registry mapping: the model is either
// disabled, enabled with the default policy, or enabled with an override.
type Setting struct {
	enabled  bool
	override *Override
}

// Enabled configures a model with the default policy.
func Enabled() Setting { return Setting{enabled: true} }

// Disabled leaves a model untouched. It is equivalent to omitting the model.
func Disabled() Setting { return Setting{} }

// WithOverride configures a model with the default policy merged with o.
func WithOverride(o Override) Setting { return Setting{enabled: true, override: &o} }

// IsEnabled reports whether the setting configures the model.
func (s Setting) IsEnabled() bool { return s.enabled }

// Resolve returns the effective policy of the setting: def merged with the
// override, field by field.
func (s Setting) Resolve(def Policy) Policy {
	p := def
	if s.override == nil {
		return p
	}
	o := s.override
	if o.Field != nil {
		p.Field = *o.Field
	}
	if o.Encode != nil {
		p.Encode = o.Encode
	}
	if o.AllowToOneUpdates != nil {
		p.AllowToOneUpdates = *o.AllowToOneUpdates
	}
	if o.AllowCompoundUniqueWhere != nil {
		p.AllowCompoundUniqueWhere = *o.AllowCompoundUniqueWhere
	}
	return p
}

// Registry maps model names to their effective policies.
type Registry struct {
	policies map[string]*Policy
}

// NewRegistry builds the effective policy of every enabled model.
//
// The default policy must name a marker field and an encoder even when no
// model uses it unchanged; the same holds for every merged policy.
func NewRegistry(def Policy, models map[string]Setting) (*Registry, error) {
	if err := def.validate(""); err != nil {
		return nil, err
	}

	r := &Registry{policies: make(map[string]*Policy, len(models))}
	for name, setting := range models {
		if !setting.enabled {
			continue
		}
		p := setting.Resolve(def)
		if err := p.validate(name); err != nil {
			return nil, err
		}
		r.policies[name] = &p
	}
	return r, nil
}

// MustRegistry is NewRegistry that panics on error. Intended for tests and
// package-level fixtures.
func MustRegistry(def Policy, models map[string]Setting) *Registry {
	r, err := NewRegistry(def, models)
	if err != nil {
		panic(fmt.Sprintf("policy.MustRegistry: %v", err))
	}
	return r
}

// Lookup returns the policy of model, or false when the model is not
// configured for soft delete.
func (r *Registry) Lookup(model string) (*Policy, bool) {
	if r == nil {
		return nil, false
	}
	p, ok := r.policies[model]
	return p, ok
}

// Models returns the configured model names in sorted order.
func (r *Registry) Models() []string {
	if r == nil {
		return nil
	}
	names := make([]string, 0, len(r.policies))
	for name := range r.policies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of configured models.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.policies)
}
