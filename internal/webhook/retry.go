package webhook

import (
	"math/rand"
	"time"
)

// DefaultMaxAttempts bounds delivery attempts per webhook.
const DefaultMaxAttempts = 5

// retryJitter is the ±fraction of jitter applied to each delay.
const retryJitter = 0.2

// retryTiers maps the attempt that just failed (1-based) to the wait
// before the next try: 30s, 2m, 10m, 1h, 6h.
var retryTiers = []time.Duration{
	30 * time.Second,
	2 * time.Minute,
	10 * time.Minute,
	1 * time.Hour,
	6 * time.Hour,
}

// NextRetryDelay returns the backoff after the given failed attempt,
// jittered so endpoints that failed together do not retry together.
func NextRetryDelay(attempt int) time.Duration {
	idx := attempt - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(retryTiers) {
		idx = len(retryTiers) - 1
	}

	base := retryTiers[idx]
	jitter := (rand.Float64()*2 - 1) * retryJitter * float64(base)
	return time.Duration(float64(base) + jitter)
}

// NextRetryAt returns the wall-clock time of the next try.
func NextRetryAt(attempt int) time.Time {
	return time.Now().Add(NextRetryDelay(attempt))
}

// IsExhausted reports whether the attempt budget is spent.
func IsExhausted(attemptCount, maxAttempts int) bool {
	return attemptCount >= maxAttempts
}

// RetryTiers returns a copy of the backoff schedule.
func RetryTiers() []time.Duration {
	return append([]time.Duration{}, retryTiers...)
}
