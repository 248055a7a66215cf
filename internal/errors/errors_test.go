package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *AppError
		expected string
	}{
		{
			name:     "with op and cause",
			err:      NewInputError("rfm", "open transactions", fmt.Errorf("no such file")),
			expected: "[INPUT] rfm: open transactions: no such file",
		},
		{
			name:     "without op",
			err:      NewAppError(ErrTypeNumeric, "", "zero variance", nil),
			expected: "[NUMERIC]: zero variance",
		},
		{
			name:     "validation",
			err:      NewValidationError("rfm", "negative recency"),
			expected: "[VALIDATION] rfm: negative recency",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.Error())
		})
	}
}

func TestAppError_Is(t *testing.T) {
	err := fmt.Errorf("features step: %w", NewNumericError("features", "zero variance in Recency"))

	assert.True(t, stderrors.Is(err, ErrNumeric))
	assert.False(t, stderrors.Is(err, ErrValidation))
	assert.True(t, stderrors.Is(err, &AppError{Type: ErrTypeNumeric, Op: "features"}))
	assert.False(t, stderrors.Is(err, &AppError{Type: ErrTypeNumeric, Op: "rfm"}))
	assert.Equal(t, ErrTypeNumeric, TypeOf(err))
	assert.True(t, IsType(err, ErrTypeNumeric))
	assert.Equal(t, ErrorType(""), TypeOf(fmt.Errorf("plain")))
}

func TestAppError_Unwrap(t *testing.T) {
	cause := fmt.Errorf("disk full")
	err := NewStorageError("tabular", "write rfm table", cause)

	assert.True(t, stderrors.Is(err, cause))
	err.WithContext("path", "out.csv")
	assert.Equal(t, "out.csv", err.Context["path"])
}

func TestFromError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"input", NewInputError("rfm", "missing column", nil), http.StatusUnprocessableEntity, "INPUT_ERROR"},
		{"validation", NewValidationError("rfm", "negative recency"), http.StatusUnprocessableEntity, "VALIDATION_FAILED"},
		{"numeric", NewNumericError("features", "zero variance"), http.StatusUnprocessableEntity, "NUMERIC_ERROR"},
		{"config", NewConfigError("config", "bad k", nil), http.StatusUnprocessableEntity, "CONFIG_ERROR"},
		{"cancelled", NewCancelledError("evaluation", nil), http.StatusServiceUnavailable, "CANCELLED"},
		{"plain", fmt.Errorf("boom"), http.StatusInternalServerError, "RUN_FAILED"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			apiErr := FromError(tt.err)
			require.NotNil(t, apiErr)
			assert.Equal(t, tt.status, apiErr.StatusCode)
			assert.Equal(t, tt.code, apiErr.ErrorCode)
		})
	}

	assert.Nil(t, FromError(nil))
}

func TestWriteError(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, FromError(NewValidationError("rfm", "negative recency")))

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), `"error_code":"VALIDATION_FAILED"`)
	assert.Contains(t, rec.Body.String(), `"success":false`)
}
