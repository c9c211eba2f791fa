package patterns

import (
	"errors"
	"fmt"

	"notaria/pkg/models"
)

// ErrValidationFailed is returned when a candidate value fails the format or
// checksum validator of its field type. It never aborts an extraction: the
// candidate is either dropped or kept with an invalid status.
var ErrValidationFailed = errors.New("value failed validation")

// ValidationError describes which value failed which validator.
type ValidationError struct {
	// Type is the field type whose validator rejected the value.
	Type models.FieldType

	// Value is the rejected candidate.
	Value string

	// Err is the underlying error, normally ErrValidationFailed.
	Err error
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("patterns: %s %q: %v", e.Type, e.Value, e.Err)
}

// Unwrap returns the underlying error for error unwrapping.
func (e *ValidationError) Unwrap() error {
	return e.Err
}
