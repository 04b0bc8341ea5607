package rewrite

import (
	"errors"
	"fmt"
)

// BlockedError reports an operation the engine refuses to run because it
// could read or mutate a soft-deleted record. It is raised before anything
// executes and is never retried.
type BlockedError struct {
	Code BlockedCode

	// Model is the model of the blocked operation.
	Model string

	// ParentModel and Relation locate a nested operation.
	ParentModel string
	Relation    string

	// Field is the compound unique group for CompoundUniqueQueryBlocked.
	Field string
}

// BlockedCode categorizes blocked operations.
type BlockedCode string

const (
	// ErrCodeToOneUpdate indicates an update through a to-one relation.
	ErrCodeToOneUpdate BlockedCode = "TO_ONE_RELATION_UPDATE_BLOCKED"

	// ErrCodeToOneUpsert indicates an upsert through a to-one relation.
	ErrCodeToOneUpsert BlockedCode = "TO_ONE_RELATION_UPSERT_BLOCKED"

	// ErrCodeCompoundUnique indicates a unique fetch keyed by a compound
	// unique group while allowCompoundUniqueWhere is off.
	ErrCodeCompoundUnique BlockedCode = "COMPOUND_UNIQUE_QUERY_BLOCKED"
)

// Error implements the error interface.
func (e *BlockedError) Error() string {
	switch e.Code {
	case ErrCodeToOneUpdate:
		return fmt.Sprintf("%s: update of model %q through %q found; updates of soft deleted models through a to-one relation are not supported because they can update a soft deleted record",
			e.Code, e.Model, e.ParentModel+"."+e.Relation)
	case ErrCodeToOneUpsert:
		return fmt.Sprintf("%s: upsert of model %q through %q found; upserts of soft deleted models through a to-one relation are not supported because they can update a soft deleted record",
			e.Code, e.Model, e.ParentModel+"."+e.Relation)
	case ErrCodeCompoundUnique:
		return fmt.Sprintf("%s: query of model %q through compound unique field %q found; set allowCompoundUniqueWhere to let it pass through unfiltered",
			e.Code, e.Model, e.Field)
	default:
		return fmt.Sprintf("%s: model %q", e.Code, e.Model)
	}
}

// IsBlocked reports whether err is a BlockedError with the given code.
// An empty code matches any BlockedError. Uses errors.As to handle wrapped errors.
func IsBlocked(err error, code BlockedCode) bool {
	var be *BlockedError
	if !errors.As(err, &be) {
		return false
	}
	return code == "" || be.Code == code
}

func blockedThrough(code BlockedCode, d Descriptor) *BlockedError {
	return &BlockedError{
		Code:        code,
		Model:       d.Model,
		ParentModel: d.Scope.ParentModel,
		Relation:    d.Scope.Relation,
	}
}
