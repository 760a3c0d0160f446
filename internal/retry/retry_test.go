package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastConfig(attempts int) Config {
	return Config{
		MaxAttempts: attempts,
		BaseDelay:   time.Millisecond,
		MaxDelay:    5 * time.Millisecond,
		Multiplier:  2.0,
	}
}

func TestDoSucceedsFirstAttempt(t *testing.T) {
	calls := 0
	got, err := Do(context.Background(), fastConfig(3), func() (string, error) {
		calls++
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, 1, calls)
}

func TestDoRetriesThenSucceeds(t *testing.T) {
	calls := 0
	got, err := Do(context.Background(), fastConfig(3), func() (int, error) {
		calls++
		if calls < 3 {
			return 0, errors.New("transient")
		}
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, got)
	assert.Equal(t, 3, calls)
}

func TestDoExhaustsAttempts(t *testing.T) {
	boom := errors.New("service down")
	calls := 0
	_, err := Do(context.Background(), fastConfig(3), func() (int, error) {
		calls++
		return 0, boom
	})
	require.Error(t, err)
	assert.Equal(t, 3, calls)

	var attemptErr *AttemptError
	require.ErrorAs(t, err, &attemptErr)
	assert.Equal(t, 3, attemptErr.Attempts)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "3 attempts")
	assert.Contains(t, err.Error(), "service down")
}

func TestDoStopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	_, err := Do(ctx, fastConfig(5), func() (int, error) {
		calls++
		cancel()
		return 0, errors.New("transient")
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestBackoffExponential(t *testing.T) {
	cfg := Config{BaseDelay: 2 * time.Second, Multiplier: 2.0, MaxAttempts: 5}

	assert.Equal(t, 2*time.Second, Backoff(cfg, 0))
	assert.Equal(t, 4*time.Second, Backoff(cfg, 1))
	assert.Equal(t, 8*time.Second, Backoff(cfg, 2))
}

func TestBackoffCapped(t *testing.T) {
	cfg := Config{BaseDelay: 2 * time.Second, MaxDelay: 5 * time.Second, Multiplier: 2.0, MaxAttempts: 5}
	assert.Equal(t, 5*time.Second, Backoff(cfg, 3))
}
