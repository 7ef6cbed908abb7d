package core

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation classifies every *ValidationError for errors.Is checks.
	ErrValidation = errors.New("validation failed")
	// ErrCorruptCollection is returned when a stored collection cannot be decoded.
	ErrCorruptCollection = errors.New("corrupt collection")
	// ErrDuplicateID is returned by add operations in strict id mode.
	ErrDuplicateID = errors.New("duplicate id")
	// ErrEmptyActionRequired is returned when a consumption would empty a batch
	// and the caller has not chosen between deleting and retaining it.
	ErrEmptyActionRequired = errors.New("batch would be emptied: choose delete or retain")
)

// ValidationError describes rejected input. No state is mutated when one is returned.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// Is lets errors.Is(err, ErrValidation) match any validation error.
func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

func invalid(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// ErrNotFound is returned by single-record lookups and workflows that require
// an existing record. Plain updates and deletes never return it.
type ErrNotFound struct {
	Entity EntityType
	ID     string
}

func (e ErrNotFound) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}
