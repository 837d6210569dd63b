package detector

import (
	"errors"
	"fmt"
)

// Common detector errors
var (
	// ErrImageNotFound is returned when the input image path does not exist.
	ErrImageNotFound = errors.New("image not found")

	// ErrDetectionFailed is returned when the inference service call fails or
	// its response cannot be decoded.
	ErrDetectionFailed = errors.New("table detection failed")

	// ErrModelLoad is returned when the inference service is not reachable or
	// reports itself unhealthy.
	ErrModelLoad = errors.New("failed to load detection model")
)

// DetectorError wraps errors with additional context about the detection failure.
type DetectorError struct {
	// Op is the operation that failed (e.g., "Predict", "LoadImage").
	Op string

	// Err is the underlying error.
	Err error

	// Details provides additional context about the failure.
	Details string
}

// Error implements the error interface.
func (e *DetectorError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("detector: %s failed: %s: %v", e.Op, e.Details, e.Err)
	}
	return fmt.Sprintf("detector: %s failed: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for error unwrapping.
func (e *DetectorError) Unwrap() error {
	return e.Err
}

// Is implements error matching for Go 1.13+ error handling.
func (e *DetectorError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// WrapDetectorError wraps an error as a DetectorError if it isn't already one.
func WrapDetectorError(op string, err error, details string) error {
	if err == nil {
		return nil
	}

	var detErr *DetectorError
	if errors.As(err, &detErr) {
		return err
	}

	return &DetectorError{Op: op, Err: err, Details: details}
}
