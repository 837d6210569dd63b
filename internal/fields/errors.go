package fields

import (
	"errors"
	"fmt"
)

// Common field extraction errors
var (
	// ErrConfiguration is returned when the category vocabulary or the OCR
	// confidence threshold is missing or out of range.
	ErrConfiguration = errors.New("invalid field extraction configuration")

	// ErrMalformedInput is returned when an OCR detection does not carry a
	// usable bounding box, text and confidence.
	ErrMalformedInput = errors.New("malformed OCR detection")
)

// FieldError wraps errors with the operation and the offending detection.
type FieldError struct {
	// Op is the operation that failed (e.g., "Extract").
	Op string

	// Err is the underlying error.
	Err error

	// Details provides additional context about the failure.
	Details string
}

// Error implements the error interface.
func (e *FieldError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("fields: %s failed: %s: %v", e.Op, e.Details, e.Err)
	}
	return fmt.Sprintf("fields: %s failed: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for error unwrapping.
func (e *FieldError) Unwrap() error {
	return e.Err
}

// Is implements error matching for Go 1.13+ error handling.
func (e *FieldError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

func newFieldError(op string, err error, details string) *FieldError {
	return &FieldError{Op: op, Err: err, Details: details}
}
