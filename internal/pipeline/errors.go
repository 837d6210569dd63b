package pipeline

import (
	"errors"
	"fmt"

	"licensetable/internal/detector"
)

// Common pipeline errors
var (
	// ErrImageNotFound is returned when the input image path does not exist.
	ErrImageNotFound = detector.ErrImageNotFound

	// ErrModelLoad is returned when the detector or the OCR engine cannot be loaded.
	ErrModelLoad = errors.New("an error occurred while loading models")

	// ErrPipeline is returned for any failure while processing an image.
	ErrPipeline = errors.New("failed to complete detail extraction pipeline")
)

// PipelineError wraps errors with the stage that failed.
type PipelineError struct {
	// Op is the stage that failed (e.g., "Detect", "Recognize", "IdentifyRows").
	Op string

	// Err is the underlying error.
	Err error

	// Details provides additional context about the failure.
	Details string
}

// Error implements the error interface.
func (e *PipelineError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("pipeline: %s failed: %s: %v", e.Op, e.Details, e.Err)
	}
	return fmt.Sprintf("pipeline: %s failed: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for error unwrapping.
func (e *PipelineError) Unwrap() error {
	return e.Err
}

// Is implements error matching for Go 1.13+ error handling.
func (e *PipelineError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// stageError tags err with kind so callers can match both the coarse kind and
// the original cause.
func stageError(op string, kind, err error, details string) error {
	return &PipelineError{Op: op, Err: fmt.Errorf("%w: %w", kind, err), Details: details}
}
