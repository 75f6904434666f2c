package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestWithBackoff_SucceedsAfterRetries(t *testing.T) {
	attempts := 0
	err := WithBackoff(context.Background(), NoDelayConfig(5), zap.NewNop(), "op", func() error {
		attempts++
		if attempts < 3 {
			return errors.New("transient")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestWithBackoff_ExhaustsRetries(t *testing.T) {
	attempts := 0
	err := WithBackoff(context.Background(), NoDelayConfig(3), zap.NewNop(), "op", func() error {
		attempts++
		return errors.New("still broken")
	})

	require.Error(t, err)
	assert.Equal(t, 3, attempts)
	assert.Contains(t, err.Error(), "after 3 attempts")
}

func TestWithBackoff_PermanentStopsImmediately(t *testing.T) {
	attempts := 0
	sentinel := errors.New("no such flip")
	err := WithBackoff(context.Background(), NoDelayConfig(5), zap.NewNop(), "op", func() error {
		attempts++
		return Permanent(sentinel)
	})

	require.Error(t, err)
	assert.Equal(t, 1, attempts)
	assert.ErrorIs(t, err, sentinel)
}

func TestWithBackoff_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := WithBackoff(ctx, NoDelayConfig(3), zap.NewNop(), "op", func() error {
		t.Fatal("fn must not run after cancellation")
		return nil
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCalculateBackoff_CapsAtMaxDelay(t *testing.T) {
	cfg := Config{
		MaxRetries:   10,
		InitialDelay: time.Second,
		MaxDelay:     4 * time.Second,
		Multiplier:   2.0,
	}
	assert.Equal(t, time.Second, calculateBackoff(cfg, 1))
	assert.Equal(t, 2*time.Second, calculateBackoff(cfg, 2))
	assert.Equal(t, 4*time.Second, calculateBackoff(cfg, 3))
	assert.Equal(t, 4*time.Second, calculateBackoff(cfg, 8))
}

func TestRetryable(t *testing.T) {
	assert.False(t, Retryable(nil))
	assert.False(t, Retryable(Permanent(errors.New("x"))))
	assert.False(t, Retryable(context.Canceled))
	assert.True(t, Retryable(errors.New("transient")))
}
