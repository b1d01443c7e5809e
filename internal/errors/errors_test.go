package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConstructors(t *testing.T) {
	cause := errors.New("boom")

	tests := []struct {
		name   string
		err    *AppError
		typ    ErrorType
		status int
	}{
		{"validation", NewValidationError("bad input", cause), ErrorTypeValidation, http.StatusBadRequest},
		{"network", NewNetworkError("fetch failed", cause), ErrorTypeNetwork, http.StatusBadGateway},
		{"processing", NewProcessingError("empty image", cause), ErrorTypeProcessing, http.StatusUnprocessableEntity},
		{"timeout", NewTimeoutError("too slow", cause), ErrorTypeTimeout, http.StatusGatewayTimeout},
		{"internal", NewInternalError("write failed", cause), ErrorTypeInternal, http.StatusInternalServerError},
		{"not found", NewNotFoundError("no such file", cause), ErrorTypeNotFound, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.typ, tt.err.Type)
			assert.Equal(t, tt.status, tt.err.StatusCode)
			assert.ErrorIs(t, tt.err, cause)
			assert.Contains(t, tt.err.Error(), "caused by: boom")
		})
	}
}

func TestWrappedAppError(t *testing.T) {
	appErr := NewValidationError("invalid date", nil)
	wrapped := fmt.Errorf("inspect: %w", appErr)

	assert.True(t, IsType(wrapped, ErrorTypeValidation))
	assert.False(t, IsType(wrapped, ErrorTypeInternal))
	assert.Equal(t, http.StatusBadRequest, GetStatusCode(wrapped))

	got, ok := As(wrapped)
	assert.True(t, ok)
	assert.Same(t, appErr, got)
}

func TestPlainError(t *testing.T) {
	err := errors.New("plain")

	assert.False(t, IsType(err, ErrorTypeValidation))
	assert.Equal(t, http.StatusInternalServerError, GetStatusCode(err))
	_, ok := As(err)
	assert.False(t, ok)
}

func TestWithDetails(t *testing.T) {
	base := NewValidationError("unsupported file type", nil)
	detailed := base.WithDetails("allowed: png")

	assert.Equal(t, "allowed: png", detailed.Details)
	assert.Empty(t, base.Details)
	assert.Equal(t, "validation: unsupported file type", detailed.Error())
}
