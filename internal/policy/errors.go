package policy

import (
	"errors"
	"fmt"
)

// ConfigError reports an invalid soft-delete configuration. Configuration
// errors are fatal at setup and never recovered.
type ConfigError struct {
	Code ConfigErrorCode

	// Model is empty for errors in the default policy.
	Model string

	Message string
}

// ConfigErrorCode categorizes configuration errors.
type ConfigErrorCode string

const (
	// ErrCodeMissingField indicates an effective policy without a marker field.
	ErrCodeMissingField ConfigErrorCode = "MISSING_FIELD"

	// ErrCodeMissingEncoder indicates an effective policy without an encoder.
	ErrCodeMissingEncoder ConfigErrorCode = "MISSING_ENCODER"

	// ErrCodeUnknownEncoder indicates a configured encoder name that does not exist.
	ErrCodeUnknownEncoder ConfigErrorCode = "UNKNOWN_ENCODER"
)

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Model != "" {
		return fmt.Sprintf("%s: model %s: %s", e.Code, e.Model, e.Message)
	}
	return fmt.Sprintf("%s: default policy: %s", e.Code, e.Message)
}

// IsConfigError reports whether err is a ConfigError with the given code.
// An empty code matches any ConfigError.
func IsConfigError(err error, code ConfigErrorCode) bool {
	var ce *ConfigError
	if !errors.As(err, &ce) {
		return false
	}
	return code == "" || ce.Code == code
}
