package compiler

import (
	"fmt"

	"cuelang.org/go/cue"

	"github.com/roach88/tombstone/internal/policy"
)

// CompilePolicies parses the softDelete struct into a policy registry.
//
// The default policy starts from policy.Default and is overridden by
// softDelete.default. Each entry of softDelete.models is either a bool
// (enable with the default, or disable) or a struct of overrides merged
// onto the default policy. Encoders are named: "boolean" or "timestamp";
// clock feeds the timestamp encoder and may be nil.
//
// Registry validation errors are returned as *policy.ConfigError.
func CompilePolicies(v cue.Value, clock policy.Clock) (*policy.Registry, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	def := policy.Default()
	defaultVal := v.LookupPath(cue.ParsePath("default"))
	if defaultVal.Exists() {
		o, err := parseOverride(defaultVal, "softDelete.default", clock)
		if err != nil {
			return nil, err
		}
		def = policy.WithOverride(o).Resolve(def)
	}

	settings := make(map[string]policy.Setting)
	modelsVal := v.LookupPath(cue.ParsePath("models"))
	if modelsVal.Exists() {
		iter, err := modelsVal.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for iter.Next() {
			name := iter.Label()
			setting, err := parseSetting(iter.Value(), name, clock)
			if err != nil {
				return nil, err
			}
			settings[name] = setting
		}
	}

	return policy.NewRegistry(def, settings)
}

func parseSetting(v cue.Value, model string, clock policy.Clock) (policy.Setting, error) {
	if enabled, err := v.Bool(); err == nil {
		if enabled {
			return policy.Enabled(), nil
		}
		return policy.Disabled(), nil
	}

	if v.IncompleteKind() != cue.StructKind {
		return policy.Setting{}, &CompileError{
			Field:   "softDelete.models." + model,
			Message: "must be a bool or a struct of policy overrides",
			Pos:     v.Pos(),
		}
	}
	o, err := parseOverride(v, "softDelete.models."+model, clock)
	if err != nil {
		return policy.Setting{}, err
	}
	return policy.WithOverride(o), nil
}

// parseOverride reads the optional policy keys of a struct.
func parseOverride(v cue.Value, path string, clock policy.Clock) (policy.Override, error) {
	var o policy.Override

	iter, err := v.Fields()
	if err != nil {
		return o, formatCUEError(err)
	}
	for iter.Next() {
		switch label := iter.Label(); label {
		case "field", "encoder", "allowToOneUpdates", "allowCompoundUniqueWhere":
		default:
			return o, &CompileError{
				Field:   path + "." + label,
				Message: fmt.Sprintf("unknown policy key %q", label),
				Pos:     iter.Value().Pos(),
			}
		}
	}

	if field, ok, err := optionalString(v, "field"); err != nil {
		return o, err
	} else if ok {
		o.Field = &field
	}

	if name, ok, err := optionalString(v, "encoder"); err != nil {
		return o, err
	} else if ok {
		enc, err := policy.EncoderByName(name, clock)
		if err != nil {
			return o, &CompileError{Field: path + ".encoder", Message: err.Error(), Pos: v.Pos()}
		}
		o.Encode = enc
	}

	if b, ok, err := optionalBool(v, "allowToOneUpdates"); err != nil {
		return o, err
	} else if ok {
		o.AllowToOneUpdates = &b
	}

	if b, ok, err := optionalBool(v, "allowCompoundUniqueWhere"); err != nil {
		return o, err
	} else if ok {
		o.AllowCompoundUniqueWhere = &b
	}

	return o, nil
}
