package retry

import (
	"errors"
	"math/rand/v2"
	"time"

	"github.com/ahrav/go-refinery/internal/llm/configuration"
	llmerrors "github.com/ahrav/go-refinery/internal/llm/errors"
)

// calculateBackoff computes the retry delay using exponential backoff with
// full jitter. Provider Retry-After guidance takes precedence over the
// computed delay when present.
func (r *retryMiddleware) calculateBackoff(attempt int, err error) time.Duration {
	if retryAfter := extractRetryAfter(err); retryAfter > 0 {
		return retryAfter
	}
	return ExponentialBackoff(attempt, r.config)
}

// extractRetryAfter returns a provider-specified retry delay from an error,
// or zero when the error carries no guidance.
func extractRetryAfter(err error) time.Duration {
	var provider llmerrors.RetryAfterProvider
	if errors.As(err, &provider) {
		return provider.GetRetryAfter()
	}
	return 0
}

// ExponentialBackoff calculates the delay before retry number attempt using
// the configured initial interval, multiplier, and cap, with optional full
// jitter. Thread-safe via math/rand/v2. Returns zero for non-positive
// attempt numbers.
func ExponentialBackoff(attempt int, config configuration.RetryConfig) time.Duration {
	if attempt <= 0 {
		return 0
	}

	backoff := config.InitialInterval
	if backoff <= 0 {
		backoff = time.Millisecond // Minimum 1ms to prevent hot looping.
	}
	for i := 1; i < attempt; i++ {
		multiplier := config.Multiplier
		if multiplier < 1.0 {
			multiplier = 1.0
		}
		backoff = time.Duration(float64(backoff) * multiplier)
		if backoff > config.MaxInterval {
			backoff = config.MaxInterval
			break
		}
	}

	if config.UseJitter {
		// Full jitter: random between 0 and the calculated backoff.
		jitterMs := rand.Int64N(backoff.Milliseconds() + 1) // #nosec G404 -- non-cryptographic jitter
		return time.Duration(jitterMs) * time.Millisecond
	}

	return backoff
}
