package webhook

import (
	"time"

	"github.com/ferriqa/ferriqa/internal/backoff"
	"github.com/ferriqa/ferriqa/internal/models"
)

const (
	DefaultInitialDelay      = time.Second
	DefaultBackoffMultiplier = 2
)

// RetryPolicy decides whether a failed attempt is retried and after how long.
// It is pure: no clocks, no I/O, so tests can pin the whole table.
type RetryPolicy struct {
	backoff backoff.Backoff
}

func NewRetryPolicy(initialDelay time.Duration, multiplier int) *RetryPolicy {
	if initialDelay <= 0 {
		initialDelay = DefaultInitialDelay
	}
	if multiplier <= 0 {
		multiplier = DefaultBackoffMultiplier
	}
	if multiplier == 1 {
		return &RetryPolicy{backoff: &backoff.ConstantBackoff{Interval: initialDelay}}
	}
	return &RetryPolicy{backoff: &backoff.ExponentialBackoff{Interval: initialDelay, Base: multiplier}}
}

// Delay returns the wait before attempt+1, i.e. initialDelay × multiplier^(attempt−1).
func (p *RetryPolicy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return p.backoff.Duration(attempt - 1)
}

// ShouldRetry reports whether a failed attempt is worth repeating. Server-side
// and throttling statuses retry; other client errors do not. Transport failures
// retry only when the condition can plausibly clear on its own: endpoint-not-found,
// refused connections and TLS problems are operator-fixable, not transient.
func (p *RetryPolicy) ShouldRetry(statusCode int, transportErr *models.TransportError) bool {
	if statusCode > 0 {
		return statusCode >= 500 || statusCode == 408 || statusCode == 429
	}
	if transportErr == nil {
		return false
	}
	switch transportErr.Kind {
	case models.TransportErrorTimeout,
		models.TransportErrorConnectionReset,
		models.TransportErrorNetworkUnreachable,
		models.TransportErrorNetwork:
		return true
	default:
		return false
	}
}

func (p *RetryPolicy) IsFinalFailure(attempt, maxAttempts int) bool {
	return attempt >= maxAttempts
}
