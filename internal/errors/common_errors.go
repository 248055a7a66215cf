package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorType represents the type of error
type ErrorType string

const (
	ErrTypeInput      ErrorType = "INPUT"
	ErrTypeValidation ErrorType = "VALIDATION"
	ErrTypeNumeric    ErrorType = "NUMERIC"
	ErrTypeConfig     ErrorType = "CONFIG"
	ErrTypeStorage    ErrorType = "STORAGE"
	ErrTypeCancelled  ErrorType = "CANCELLED"
)

// Sentinels for errors.Is checks against the error type of an AppError
var (
	ErrInput      = &AppError{Type: ErrTypeInput}
	ErrValidation = &AppError{Type: ErrTypeValidation}
	ErrNumeric    = &AppError{Type: ErrTypeNumeric}
	ErrConfig     = &AppError{Type: ErrTypeConfig}
	ErrStorage    = &AppError{Type: ErrTypeStorage}
	ErrCancelled  = &AppError{Type: ErrTypeCancelled}
)

// AppError represents an application-specific error
type AppError struct {
	Type    ErrorType
	Op      string
	Message string
	Cause   error
	Context map[string]interface{}
}

// Error implements the error interface
func (e *AppError) Error() string {
	prefix := fmt.Sprintf("[%s]", e.Type)
	if e.Op != "" {
		prefix = fmt.Sprintf("[%s] %s", e.Type, e.Op)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.Message)
}

// Unwrap allows errors.Is and errors.As to work with AppError
func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is matches any AppError of the same type, so callers can test against the sentinels
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Type == e.Type && (t.Op == "" || t.Op == e.Op)
}

// WithContext adds context to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// NewAppError creates a new application error
func NewAppError(errType ErrorType, op, message string, cause error) *AppError {
	return &AppError{
		Type:    errType,
		Op:      op,
		Message: message,
		Cause:   cause,
		Context: make(map[string]interface{}),
	}
}

// NewInputError reports a missing file, missing column or unparsable value
func NewInputError(op, message string, cause error) *AppError {
	return NewAppError(ErrTypeInput, op, message, cause)
}

// NewValidationError reports data that violates an upstream invariant
func NewValidationError(op, message string) *AppError {
	return NewAppError(ErrTypeValidation, op, message, nil)
}

// NewNumericError reports a computation that would produce NaN or an undefined value
func NewNumericError(op, message string) *AppError {
	return NewAppError(ErrTypeNumeric, op, message, nil)
}

// NewConfigError reports invalid configuration
func NewConfigError(op, message string, cause error) *AppError {
	return NewAppError(ErrTypeConfig, op, message, cause)
}

// NewStorageError reports a failure writing an output table
func NewStorageError(op, message string, cause error) *AppError {
	return NewAppError(ErrTypeStorage, op, message, cause)
}

// NewCancelledError reports a run aborted through its context
func NewCancelledError(op string, cause error) *AppError {
	return NewAppError(ErrTypeCancelled, op, "run cancelled", cause)
}

// TypeOf returns the ErrorType of the first AppError in the chain, or "" if none
func TypeOf(err error) ErrorType {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Type
	}
	return ""
}

// IsType checks whether err carries an AppError of the given type
func IsType(err error, errType ErrorType) bool {
	return TypeOf(err) == errType
}
