package database

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// ConflictError reports a unique-constraint violation on a named field. The
// storage layer raises it so orchestration code never inspects vendor error
// shapes.
type ConflictError struct {
	Field string
	cause error
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("conflict on %s: %v", e.Field, e.cause)
}

func (e *ConflictError) Unwrap() error { return e.cause }

// ConflictFor converts a gorm duplicate-key error into a ConflictError tagged
// with the field the caller was writing. Other errors pass through unchanged.
func ConflictFor(err error, field string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return &ConflictError{Field: field, cause: err}
	}
	return err
}

// AsConflict extracts a ConflictError from an error chain.
func AsConflict(err error) (*ConflictError, bool) {
	var conflict *ConflictError
	if errors.As(err, &conflict) {
		return conflict, true
	}
	return nil, false
}
