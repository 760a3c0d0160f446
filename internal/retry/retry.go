// Package retry provides a bounded retry-with-backoff combinator shared by
// the stages that call flaky external services (embedding, reasoning).
package retry

import (
	"context"
	"fmt"
	"time"
)

// Config configures exponential backoff retry behavior.
type Config struct {
	MaxAttempts int           // Total attempts, including the first
	BaseDelay   time.Duration // Delay before the second attempt
	MaxDelay    time.Duration // Cap on the backoff delay; 0 means uncapped
	Multiplier  float64       // Backoff multiplier per attempt
}

// DefaultConfig returns the policy used for external service calls:
// three attempts with exponential backoff starting at 2s.
func DefaultConfig() Config {
	return Config{
		MaxAttempts: 3,
		BaseDelay:   2000 * time.Millisecond,
		MaxDelay:    30 * time.Second,
		Multiplier:  2.0,
	}
}

// normalize fills in zero values so partially specified configs behave.
func (c Config) normalize() Config {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 1
	}
	if c.Multiplier <= 0 {
		c.Multiplier = 2.0
	}
	return c
}

// AttemptError wraps the last failure after every attempt was exhausted,
// naming the attempt count.
type AttemptError struct {
	Attempts int
	Last     error
}

func (e *AttemptError) Error() string {
	return fmt.Sprintf("failed after %d attempts: %v", e.Attempts, e.Last)
}

func (e *AttemptError) Unwrap() error {
	return e.Last
}

// Do executes fn up to config.MaxAttempts times, sleeping
// BaseDelay * Multiplier^attempt between attempts (attempt indexed from 0).
// Retry is skipped on context cancellation. On exhaustion it returns an
// *AttemptError wrapping the last underlying error.
func Do[T any](ctx context.Context, config Config, fn func() (T, error)) (T, error) {
	config = config.normalize()

	var lastErr error
	var zero T
	backoff := config.BaseDelay

	for attempt := 0; attempt < config.MaxAttempts; attempt++ {
		result, err := fn()
		if err == nil {
			return result, nil
		}

		lastErr = err

		// Don't retry on context cancellation.
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}

		if attempt < config.MaxAttempts-1 {
			select {
			case <-ctx.Done():
				return zero, ctx.Err()
			case <-time.After(backoff):
				backoff = time.Duration(float64(backoff) * config.Multiplier)
				if config.MaxDelay > 0 && backoff > config.MaxDelay {
					backoff = config.MaxDelay
				}
			}
		}
	}

	return zero, &AttemptError{Attempts: config.MaxAttempts, Last: lastErr}
}

// Backoff returns the delay scheduled before the given retry, with attempt
// indexed from 0. Exposed so the queue can apply the same policy to
// job-level redelivery.
func Backoff(config Config, attempt int) time.Duration {
	config = config.normalize()
	d := config.BaseDelay
	for i := 0; i < attempt; i++ {
		d = time.Duration(float64(d) * config.Multiplier)
		if config.MaxDelay > 0 && d > config.MaxDelay {
			return config.MaxDelay
		}
	}
	return d
}
