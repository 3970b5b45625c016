package llm

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/xaenox/storebot/internal/clock"
)

// Policy decides whether a failed backend call is retried and how long to
// wait before the next attempt.
type Policy struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

func DefaultPolicy() Policy {
	return Policy{
		MaxRetries: 3,
		BaseDelay:  500 * time.Millisecond,
		MaxDelay:   30 * time.Second,
	}
}

// ShouldRetry is true for transient failures while attempts remain.
// attempt is zero-based: the first retry follows attempt 0.
func (p Policy) ShouldRetry(attempt int, err error) bool {
	if attempt >= p.MaxRetries {
		return false
	}
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Transient()
}

// Delay computes the backoff before the retry that follows attempt.
// Exponential (base * 2^attempt) capped at MaxDelay, plus jitter of up to
// a quarter of the computed delay. An explicit retry-after hint from the
// backend overrides the computation.
func (p Policy) Delay(attempt int, retryAfter time.Duration) time.Duration {
	if retryAfter > 0 {
		return retryAfter
	}
	delay := p.BaseDelay << uint(attempt)
	if delay > p.MaxDelay || delay <= 0 {
		delay = p.MaxDelay
	}
	jitter := time.Duration(rand.Int63n(int64(delay)/4 + 1))
	return delay + jitter
}

// Executor runs backend calls under the retry policy. The backoff sleep is
// the single intentional blocking point in the core.
type Executor struct {
	client Client
	policy Policy
	clock  clock.Clock
	logger *zap.Logger
}

func NewExecutor(client Client, policy Policy, clk clock.Clock, logger *zap.Logger) *Executor {
	return &Executor{
		client: client,
		policy: policy,
		clock:  clk,
		logger: logger,
	}
}

// Chat invokes the backend, retrying transient failures per the policy.
// It returns the result and the number of retries performed. After the
// last transient failure the error is ErrBackendUnavailable.
func (e *Executor) Chat(ctx context.Context, messages []Message, tools []Tool) (*ChatResult, int, error) {
	var lastErr error
	attempt := 0
	for ; ; attempt++ {
		result, err := e.client.Chat(ctx, messages, tools)
		if err == nil {
			return result, attempt, nil
		}
		lastErr = err

		if !e.policy.ShouldRetry(attempt, err) {
			break
		}

		var retryAfter time.Duration
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			retryAfter = apiErr.RetryAfter
		}
		delay := e.policy.Delay(attempt, retryAfter)
		e.logger.Warn("backend call failed, retrying",
			zap.Int("attempt", attempt+1),
			zap.Duration("delay", delay),
			zap.Error(err))
		if err := e.clock.Sleep(ctx, delay); err != nil {
			return nil, attempt, err
		}
	}

	var apiErr *APIError
	if errors.As(lastErr, &apiErr) && apiErr.Transient() {
		return nil, attempt, fmt.Errorf("%w: %v", ErrBackendUnavailable, lastErr)
	}
	return nil, attempt, lastErr
}
