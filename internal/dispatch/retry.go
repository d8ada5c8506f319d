package dispatch

import (
	"math/rand"
	"time"
)

// Inline send retries use a short schedule; the request is being held open
// while the fan-out runs.
var retrySchedule = []time.Duration{
	1 * time.Second,
	2 * time.Second,
	5 * time.Second,
}

// RetryStrategy implements backoff with jitter for transient send failures.
// MaxRetries of zero disables retries entirely.
type RetryStrategy struct {
	MaxRetries int
	Schedule   []time.Duration
}

// NewRetryStrategy creates a RetryStrategy with the default schedule and
// the given maximum retry count.
func NewRetryStrategy(maxRetries int) *RetryStrategy {
	return &RetryStrategy{
		MaxRetries: maxRetries,
		Schedule:   retrySchedule,
	}
}

// ShouldRetry returns true if the attempt has not exhausted its retry budget.
func (r *RetryStrategy) ShouldRetry(retryCount int) bool {
	return retryCount < r.MaxRetries
}

// NextBackoff returns the backoff duration for the given retry attempt with
// jitter applied. Jitter is calculated as: base * (0.5 + rand * 0.5).
func (r *RetryStrategy) NextBackoff(retryCount int) time.Duration {
	idx := retryCount
	if idx >= len(r.Schedule) {
		idx = len(r.Schedule) - 1
	}

	base := r.Schedule[idx]
	jitter := 0.5 + rand.Float64()*0.5
	return time.Duration(float64(base) * jitter)
}
