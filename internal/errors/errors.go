package errors

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/render"
)

// APIError represents a structured error response of the status endpoints
type APIError struct {
	StatusCode int         `json:"status_code"`
	ErrorCode  string      `json:"error_code"`
	Message    string      `json:"message"`
	Details    interface{} `json:"details,omitempty"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	return e.Message
}

// Render implements the render.Renderer interface for chi/render
func (e *APIError) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, e.StatusCode)
	return nil
}

// New creates a new APIError with the given parameters
func New(statusCode int, errorCode, message string) *APIError {
	return &APIError{
		StatusCode: statusCode,
		ErrorCode:  errorCode,
		Message:    message,
	}
}

// FromError maps a run failure onto an APIError. Data and configuration problems
// surface as 422, everything else as 500.
func FromError(err error) *APIError {
	if err == nil {
		return nil
	}
	switch TypeOf(err) {
	case ErrTypeInput:
		return &APIError{StatusCode: http.StatusUnprocessableEntity, ErrorCode: "INPUT_ERROR", Message: "Input table rejected", Details: err.Error()}
	case ErrTypeValidation:
		return &APIError{StatusCode: http.StatusUnprocessableEntity, ErrorCode: "VALIDATION_FAILED", Message: "Data validation failed", Details: err.Error()}
	case ErrTypeNumeric:
		return &APIError{StatusCode: http.StatusUnprocessableEntity, ErrorCode: "NUMERIC_ERROR", Message: "Degenerate numeric input", Details: err.Error()}
	case ErrTypeConfig:
		return &APIError{StatusCode: http.StatusUnprocessableEntity, ErrorCode: "CONFIG_ERROR", Message: "Invalid configuration", Details: err.Error()}
	case ErrTypeCancelled:
		return &APIError{StatusCode: http.StatusServiceUnavailable, ErrorCode: "CANCELLED", Message: "Run cancelled", Details: err.Error()}
	default:
		return &APIError{StatusCode: http.StatusInternalServerError, ErrorCode: "RUN_FAILED", Message: "Run failed", Details: err.Error()}
	}
}

// ErrorResponse represents a standard error response
type ErrorResponse struct {
	Success bool      `json:"success"`
	Error   *APIError `json:"error"`
}

// Render implements the render.Renderer interface
func (e *ErrorResponse) Render(w http.ResponseWriter, r *http.Request) error {
	return e.Error.Render(w, r)
}

// NewErrorResponse creates a new error response
func NewErrorResponse(err *APIError) *ErrorResponse {
	return &ErrorResponse{
		Success: false,
		Error:   err,
	}
}

// WriteError writes an error response to the HTTP response writer
func WriteError(w http.ResponseWriter, err *APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.StatusCode)
	json.NewEncoder(w).Encode(NewErrorResponse(err))
}
