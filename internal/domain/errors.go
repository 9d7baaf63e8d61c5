package domain

import (
	"errors"
	"fmt"
)

// ErrInvalidStateTransition is returned when an operation targets an entity
// that is not in the state the operation requires. No mutation happens.
var ErrInvalidStateTransition = errors.New("invalid state transition")

// ValidationError reports a rejected input: non-positive amount, missing
// required reference, and similar. It is never retried and never partially
// applied.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Reason)
}

// NewValidationError builds a ValidationError for a single field.
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
