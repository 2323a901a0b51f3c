package apierrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorTypeString(t *testing.T) {
	tests := []struct {
		errType ErrorType
		want    string
	}{
		{ErrorTypeRateLimit, "rate_limit"},
		{ErrorTypeTransient, "transient"},
		{ErrorTypeAuth, "auth"},
		{ErrorTypeNotFound, "not_found"},
		{ErrorTypeValidation, "validation"},
		{ErrorTypeContentPolicy, "content_policy"},
		{ErrorTypeGeneration, "generation"},
		{ErrorTypeUnknown, "unknown"},
		{ErrorType(99), "invalid"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.errType.String())
		})
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		errType   ErrorType
		retryable bool
	}{
		{ErrorTypeRateLimit, true},
		{ErrorTypeTransient, true},
		{ErrorTypeAuth, false},
		{ErrorTypeNotFound, false},
		{ErrorTypeValidation, false},
		{ErrorTypeContentPolicy, false},
		{ErrorTypeGeneration, false},
		{ErrorTypeUnknown, false},
	}

	for _, tt := range tests {
		t.Run(tt.errType.String(), func(t *testing.T) {
			err := NewError(tt.errType, "test")
			assert.Equal(t, tt.retryable, err.IsRetryable())
		})
	}
}

func TestClassifyStatus(t *testing.T) {
	tests := []struct {
		status int
		want   ErrorType
	}{
		{401, ErrorTypeAuth},
		{403, ErrorTypeAuth},
		{404, ErrorTypeNotFound},
		{429, ErrorTypeRateLimit},
		{500, ErrorTypeTransient},
		{502, ErrorTypeTransient},
		{503, ErrorTypeTransient},
		{400, ErrorTypeValidation},
		{409, ErrorTypeValidation},
		{200, ErrorTypeUnknown},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d", tt.status), func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyStatus(tt.status))
		})
	}
}

func TestTypeOfUnwrapsWrappedErrors(t *testing.T) {
	inner := NewErrorWithStatus(ErrorTypeNotFound, 404, "deal not found")
	wrapped := fmt.Errorf("fetch deal: %w", inner)

	assert.Equal(t, ErrorTypeNotFound, TypeOf(wrapped))
	assert.True(t, Is(wrapped, ErrorTypeNotFound))
	assert.False(t, Retryable(wrapped))
}

func TestTypeOfUnclassified(t *testing.T) {
	assert.Equal(t, ErrorTypeUnknown, TypeOf(errors.New("plain")))
	assert.False(t, Retryable(errors.New("plain")))
}

func TestErrorMessageFormats(t *testing.T) {
	withMessage := NewError(ErrorTypeAuth, "bad credentials")
	assert.Equal(t, "upstream error (auth): bad credentials", withMessage.Error())

	withCause := &Error{Type: ErrorTypeTransient, Err: errors.New("EOF")}
	assert.Equal(t, "upstream error (transient): EOF", withCause.Error())
	assert.ErrorIs(t, withCause, withCause.Err)

	withStatus := &Error{Type: ErrorTypeRateLimit, StatusCode: 429}
	assert.Equal(t, "upstream error (rate_limit): status 429", withStatus.Error())
}
