package table

import (
	"errors"
	"fmt"
)

// Common table reconstruction errors
var (
	// ErrInterpolation is returned when the observed categories cannot support a
	// linear fit (fewer than two distinct canonical positions, or an unknown label).
	ErrInterpolation = errors.New("category interpolation failed")

	// ErrProcessing is the coarse error reported by IdentifyRows for any failure
	// inside row identification.
	ErrProcessing = errors.New("error during row processing")
)

// ProcessingError wraps errors with additional context about the step that failed.
type ProcessingError struct {
	// Op is the operation that failed (e.g., "CompleteCategories").
	Op string

	// Err is the underlying error.
	Err error

	// Details provides additional context about the failure.
	Details string
}

// Error implements the error interface.
func (e *ProcessingError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("table: %s failed: %s: %v", e.Op, e.Details, e.Err)
	}
	return fmt.Sprintf("table: %s failed: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for error unwrapping.
func (e *ProcessingError) Unwrap() error {
	return e.Err
}

// Is implements error matching for Go 1.13+ error handling.
func (e *ProcessingError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewProcessingError creates a new ProcessingError.
func NewProcessingError(op string, err error, details string) *ProcessingError {
	return &ProcessingError{
		Op:      op,
		Err:     err,
		Details: details,
	}
}
