package errors

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCategorize_KeepsCategoryAndCause(t *testing.T) {
	cause := fmt.Errorf("connection reset by peer")
	err := Categorize(cause, "model stream interrupted", ErrTransport)

	assert.True(t, errors.Is(err, ErrTransport))
	assert.True(t, errors.Is(err, cause))
	assert.Contains(t, err.Error(), "model stream interrupted")
	assert.Contains(t, err.Error(), "connection reset by peer")
	assert.Nil(t, Categorize(nil, "noop", ErrTransport))
}

func TestDefaultErrorMapper_Category(t *testing.T) {
	m := NewDefaultErrorMapper()

	tests := []struct {
		err  error
		want string
	}{
		{Categorize(errors.New("eof"), "stream", ErrTransport), "ErrTransport"},
		{fmt.Errorf("handshake: %w", ErrConnection), "ErrConnection"},
		{fmt.Errorf("call: %w", ErrInvocation), "ErrInvocation"},
		{MalformedFragment("index -1"), "ErrMalformedFragment"},
		{InvalidState("turn in progress"), "ErrInvalidState"},
		{fmt.Errorf("%w: call_9", ErrUnknownToolCall), "ErrUnknownToolCall"},
		{fmt.Errorf("%w after 3 turns", ErrMaxTurns), "ErrMaxTurns"},
		{errors.New("boom"), "Unknown"},
		{nil, ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, m.Category(tt.err))
	}
}

func TestDefaultErrorMapper_MapError(t *testing.T) {
	m := NewDefaultErrorMapper()

	categorized := Categorize(errors.New("eof"), "stream", ErrTransport)
	assert.Same(t, categorized, m.MapError(categorized))

	assert.True(t, errors.Is(m.MapError(errors.New("429 Too Many Requests")), ErrTransient))
	assert.True(t, errors.Is(m.MapError(errors.New("tool does not exist")), ErrNotFound))
	assert.True(t, errors.Is(m.MapError(context.DeadlineExceeded), ErrTransient))
	assert.True(t, errors.Is(m.MapError(errors.New("weird")), ErrInternal))
	assert.Equal(t, context.Canceled, m.MapError(context.Canceled))
	assert.Nil(t, m.MapError(nil))
}

func TestIsRetryable_HardFailuresAreNotRetried(t *testing.T) {
	assert.False(t, IsRetryable(Categorize(fmt.Errorf("blip: %w", ErrTransient), "stream", ErrTransport)))
	assert.False(t, IsRetryable(fmt.Errorf("x: %w", ErrConnection)))
	assert.False(t, IsRetryable(context.Canceled))
	assert.True(t, IsRetryable(fmt.Errorf("rate limited: %w", ErrTransient)))
	assert.False(t, IsRetryable(nil))
}
