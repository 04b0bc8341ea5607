package compiler

import (
	"fmt"

	"github.com/roach88/tombstone/internal/ir"
	"github.com/roach88/tombstone/internal/schema"
)

// Validation error codes (E200-E299)
const (
	ErrUnknownModel       = "E201" // softDelete names a model the schema lacks
	ErrMissingMarker      = "E202" // marker field is not a field of the model
	ErrMarkerTypeMismatch = "E203" // encoder output does not fit the marker type
	ErrMarkerNotNullable  = "E204" // encoder writes null into a required field
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate cross-checks the policies of cfg against its schema facts.
// Returns all errors found (does not fail-fast).
//
// Each configured model must exist and carry its marker field, and the
// values the encoder writes must fit the field's type.
func Validate(cfg *Config) []ValidationError {
	var errs []ValidationError

	for _, name := range cfg.Policies.Models() {
		p, _ := cfg.Policies.Lookup(name)
		path := "softDelete.models." + name

		m, ok := cfg.Facts.Model(name)
		if !ok {
			errs = append(errs, ValidationError{
				Field:   path,
				Message: fmt.Sprintf("model %q is not declared", name),
				Code:    ErrUnknownModel,
			})
			continue
		}

		f, ok := m.Field(p.Field)
		if !ok {
			errs = append(errs, ValidationError{
				Field:   path + ".field",
				Message: fmt.Sprintf("model %q has no marker field %q", name, p.Field),
				Code:    ErrMissingMarker,
			})
			continue
		}

		for _, v := range []ir.IRValue{p.NotDeleted(), p.Deleted()} {
			if _, isNull := v.(ir.IRNull); isNull {
				if !f.Optional && f.Type != schema.FieldTimestamp {
					errs = append(errs, ValidationError{
						Field:   path + ".field",
						Message: fmt.Sprintf("encoder writes null into required field %s.%s", name, f.Name),
						Code:    ErrMarkerNotNullable,
					})
				}
				continue
			}
			if !fits(f.Type, v) {
				errs = append(errs, ValidationError{
					Field:   path + ".encoder",
					Message: fmt.Sprintf("encoder value %T does not fit %s field %s.%s", v, f.Type, name, f.Name),
					Code:    ErrMarkerTypeMismatch,
				})
				break
			}
		}
	}

	return errs
}

func fits(t schema.FieldType, v ir.IRValue) bool {
	switch v.(type) {
	case ir.IRBool:
		return t == schema.FieldBoolean
	case ir.IRString:
		return t == schema.FieldString || t == schema.FieldTimestamp
	case ir.IRInt:
		return t == schema.FieldInt
	}
	return false
}
