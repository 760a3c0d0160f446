package reasoner

import (
	"context"
	"fmt"

	"github.com/ShristiC7/Contract-Intelligence-Engine/internal/retry"
	"github.com/ShristiC7/Contract-Intelligence-Engine/pkg/types"
)

// RetryingReasoner wraps a ReasoningClient with bounded retry and exponential
// backoff. Only this stage retries in-process; earlier stages rely on
// queue-level redelivery of the whole job.
type RetryingReasoner struct {
	client ReasoningClient
	config retry.Config
}

// NewRetrying wraps client with the given retry policy. A zero-valued config
// falls back to the default policy.
func NewRetrying(client ReasoningClient, config retry.Config) *RetryingReasoner {
	if config.MaxAttempts <= 0 {
		config = retry.DefaultConfig()
	}
	return &RetryingReasoner{client: client, config: config}
}

// Analyze attempts the underlying call up to the configured maximum, sleeping
// baseDelay * 2^attempt between attempts. On exhaustion the error names the
// attempt count and the last underlying failure.
func (r *RetryingReasoner) Analyze(ctx context.Context, req Request) (*types.ReasoningOutput, error) {
	out, err := retry.Do(ctx, r.config, func() (*types.ReasoningOutput, error) {
		return r.client.Analyze(ctx, req)
	})
	if err != nil {
		return nil, fmt.Errorf("reasoning: %w", err)
	}
	return out, nil
}
