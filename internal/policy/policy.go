package policy

import (
	"fmt"
	"time"

	"github.com/roach88/tombstone/internal/ir"
)

// DefaultField is the marker field used when no configuration names one.
const DefaultField = "deleted"

// Encoder converts the intent "deleted" (true) or "not deleted" (false)
// into the value stored in the marker field.
type Encoder func(deleted bool) ir.IRValue

// BoolEncoder stores the intent as a boolean.
func BoolEncoder(deleted bool) ir.IRValue {
	return ir.IRBool(deleted)
}

// Clock supplies the current time to timestamp encoders.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

// Now returns time.Now.
func (SystemClock) Now() time.Time { return time.Now() }

// TimestampEncoder stores "deleted" as an RFC 3339 UTC timestamp read from
// clock and "not deleted" as null.
func TimestampEncoder(clock Clock) Encoder {
	if clock == nil {
		clock = SystemClock{}
	}
	return func(deleted bool) ir.IRValue {
		if !deleted {
			return ir.IRNull{}
		}
		return ir.IRString(clock.Now().UTC().Format(time.RFC3339))
	}
}

// Encoder names accepted in configuration files.
const (
	EncoderBoolean   = "boolean"
	EncoderTimestamp = "timestamp"
)

// EncoderByName resolves a configured encoder name.
func EncoderByName(name string, clock Clock) (Encoder, error) {
	switch name {
	case EncoderBoolean:
		return BoolEncoder, nil
	case EncoderTimestamp:
		return TimestampEncoder(clock), nil
	default:
		return nil, &ConfigError{
			Code:    ErrCodeUnknownEncoder,
			Message: fmt.Sprintf("unknown encoder %q (want %q or %q)", name, EncoderBoolean, EncoderTimestamp),
		}
	}
}

// Policy is the effective soft-delete configuration of one model.
type Policy struct {
	// Field is the marker field name.
	Field string

	// Encode builds marker values.
	Encode Encoder

	// AllowToOneUpdates permits nested updates through to-one relations.
	AllowToOneUpdates bool

	// AllowCompoundUniqueWhere lets unique fetches keyed by a compound
	// unique group pass through without the marker predicate.
	AllowCompoundUniqueWhere bool
}

// Default returns the built-in default policy: a boolean "deleted" field
// with both safety toggles off.
func Default() Policy {
	return Policy{
		Field:  DefaultField,
		Encode: BoolEncoder,
	}
}

// NotDeleted returns the marker value meaning "not deleted".
func (p *Policy) NotDeleted() ir.IRValue {
	return p.Encode(false)
}

// Deleted returns the marker value meaning "deleted".
func (p *Policy) Deleted() ir.IRValue {
	return p.Encode(true)
}

// IsDeleted reports whether a stored marker value marks its record deleted.
//
// A value is deleted when it is truthy and differs from the "not deleted"
// encoding, which covers both boolean and timestamp markers.
func (p *Policy) IsDeleted(v ir.IRValue) bool {
	return ir.Truthy(v) && !ir.Equal(v, p.NotDeleted())
}

// HasMarker reports whether obj carries a marker condition. An undefined or
// null marker counts as no condition.
func (p *Policy) HasMarker(obj ir.IRObject) bool {
	switch obj[p.Field].(type) {
	case nil, ir.IRNull:
		return false
	}
	return true
}

// DefaultExclude sets the marker field of obj to the "not deleted"
// encoding unless obj already carries a marker condition. A non-null value,
// including one asking for deleted records, is never overwritten. obj is
// modified in place and returned; a nil obj yields a new object.
func (p *Policy) DefaultExclude(obj ir.IRObject) ir.IRObject {
	if obj == nil {
		obj = ir.IRObject{}
	}
	if !p.HasMarker(obj) {
		obj[p.Field] = p.NotDeleted()
	}
	return obj
}

func (p *Policy) validate(model string) error {
	if p.Field == "" {
		return &ConfigError{Code: ErrCodeMissingField, Model: model, Message: "marker field is required"}
	}
	if p.Encode == nil {
		return &ConfigError{Code: ErrCodeMissingEncoder, Model: model, Message: "marker encoder is required"}
	}
	return nil
}
