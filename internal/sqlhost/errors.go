package sqlhost

import (
	"errors"
	"fmt"

	"github.com/roach88/tombstone/internal/rewrite"
)

// NotFoundError reports that an operation requiring a record matched none.
// Returned by the *OrThrow fetches and by update/delete of a single record.
type NotFoundError struct {
	Model string
	Verb  rewrite.Verb
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s.%s: record not found", e.Model, e.Verb)
}

// QueryError reports an argument tree the client cannot execute, or a
// failure from the database while executing it.
type QueryError struct {
	Model   string
	Message string
	Err     error
}

func (e *QueryError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Model, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Model, e.Message)
}

func (e *QueryError) Unwrap() error {
	return e.Err
}

// IsNotFound reports whether err is or wraps a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// IsQueryError reports whether err is or wraps a QueryError.
func IsQueryError(err error) bool {
	var qe *QueryError
	return errors.As(err, &qe)
}

func invalid(model, format string, args ...any) error {
	return &QueryError{Model: model, Message: fmt.Sprintf(format, args...)}
}

func failed(model, message string, err error) error {
	return &QueryError{Model: model, Message: message, Err: err}
}
