package operations

import (
	"context"
	"errors"
	"fmt"

	apperrors "rfmseg/internal/errors"
)

// StepError attributes a failure to the step that produced it. It unwraps to
// the underlying error so the error kind survives.
type StepError struct {
	StepID string
	Err    error
}

// Error implements the error interface
func (e *StepError) Error() string {
	if e == nil {
		return "unknown step error"
	}
	return fmt.Sprintf("step %s: %v", e.StepID, e.Err)
}

// Unwrap returns the underlying error
func (e *StepError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewStepError wraps err with the failing step ID. Context errors become
// cancellation errors.
func NewStepError(stepID string, err error) *StepError {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		if !apperrors.IsType(err, apperrors.ErrTypeCancelled) {
			err = apperrors.NewCancelledError("operations."+stepID, err)
		}
	}
	return &StepError{StepID: stepID, Err: err}
}

// FailedStep returns the ID of the step err is attributed to, if any
func FailedStep(err error) (string, bool) {
	var se *StepError
	if errors.As(err, &se) {
		return se.StepID, true
	}
	return "", false
}
