// Package retry provides transport-level retry middleware for the LLM
// client. It re-sends requests that failed with transient errors (rate
// limits, timeouts, provider outages) using exponential backoff with full
// jitter, honoring provider Retry-After guidance. It never alters the
// request: prompt-level retry with feedback is the refine package's concern.
package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/ahrav/go-refinery/internal/llm/configuration"
	llmerrors "github.com/ahrav/go-refinery/internal/llm/errors"
	"github.com/ahrav/go-refinery/internal/llm/transport"
)

var (
	// Configuration validation errors.
	errMaxAttemptsInvalid     = errors.New("maxAttempts must be greater than 0")
	errInitialIntervalInvalid = errors.New("initialInterval must be greater than 0")
	errMaxIntervalInvalid     = errors.New("maxInterval must be >= initialInterval")
	errMultiplierInvalid      = errors.New("multiplier must be >= 1.0")

	// Runtime errors.
	errContextCancelledDuringRetry = errors.New("context cancelled during retry")
)

// retryMiddleware implements retry with exponential backoff for transient
// transport failures.
type retryMiddleware struct {
	config configuration.RetryConfig
	logger *slog.Logger
	stats  *retryStats
}

// NewMiddleware creates retry middleware with the given configuration.
func NewMiddleware(cfg configuration.RetryConfig) (transport.Middleware, error) {
	if cfg.MaxAttempts <= 0 {
		return nil, fmt.Errorf("%w, got %d", errMaxAttemptsInvalid, cfg.MaxAttempts)
	}
	if cfg.InitialInterval <= 0 {
		return nil, fmt.Errorf("%w, got %v", errInitialIntervalInvalid, cfg.InitialInterval)
	}
	if cfg.MaxInterval < cfg.InitialInterval {
		return nil, fmt.Errorf("%w, MaxInterval: %v, InitialInterval: %v",
			errMaxIntervalInvalid, cfg.MaxInterval, cfg.InitialInterval)
	}
	if cfg.Multiplier < 1.0 {
		return nil, fmt.Errorf("%w, got %f", errMultiplierInvalid, cfg.Multiplier)
	}

	rm := &retryMiddleware{
		config: cfg,
		logger: slog.Default().With("component", "retry"),
		stats:  &retryStats{},
	}
	return rm.middleware(), nil
}

// middleware returns the retry middleware function.
func (r *retryMiddleware) middleware() transport.Middleware {
	return func(next transport.Handler) transport.Handler {
		return transport.HandlerFunc(func(ctx context.Context, req *transport.Request) (*transport.Response, error) {
			var lastErr error
			startTime := time.Now()

			// Fail fast if the context is already cancelled.
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			default:
			}

			for attempt := 1; attempt <= r.config.MaxAttempts; attempt++ {
				if r.config.MaxElapsedTime > 0 && time.Since(startTime) > r.config.MaxElapsedTime {
					r.logger.Warn("max elapsed time exceeded",
						"elapsed", time.Since(startTime),
						"attempts", attempt-1,
						"last_error", lastErr)
					break
				}

				resp, err := next.Handle(ctx, req)
				r.stats.totalAttempts.Add(1)

				if err == nil {
					if attempt > 1 {
						r.stats.successfulRetries.Add(1)
						r.logger.Info("request succeeded after retry",
							"attempt", attempt,
							"provider", req.Provider,
							"model", req.Model)
					}
					return resp, nil
				}

				// Never retry errors that will always fail.
				if !isRetryable(err) {
					r.logger.Debug("non-retryable error",
						"error", err,
						"attempt", attempt,
						"provider", req.Provider)
					return nil, err
				}

				lastErr = err

				if attempt == r.config.MaxAttempts {
					break
				}

				backoff := r.calculateBackoff(attempt, err)

				// Don't let the backoff push us past the overall time budget.
				if r.config.MaxElapsedTime > 0 && time.Since(startTime)+backoff > r.config.MaxElapsedTime {
					r.logger.Warn("backoff would exceed max elapsed time",
						"elapsed", time.Since(startTime),
						"backoff", backoff,
						"attempts", attempt)
					break
				}

				r.logger.Debug("retrying after backoff",
					"attempt", attempt,
					"backoff", backoff,
					"error", err,
					"provider", req.Provider)

				select {
				case <-time.After(backoff):
				case <-ctx.Done():
					return nil, fmt.Errorf("%w: %w", errContextCancelledDuringRetry, ctx.Err())
				}
			}

			r.stats.failedRetries.Add(1)
			attempts, succeeded, failed := r.stats.snapshot()
			r.logger.Warn("retries exhausted",
				"provider", req.Provider,
				"model", req.Model,
				"total_attempts", attempts,
				"successful_retries", succeeded,
				"failed_retries", failed,
				"last_error", lastErr)
			return nil, fmt.Errorf("%w after %d attempts: %w",
				llmerrors.ErrMaxRetriesExceeded, r.config.MaxAttempts, lastErr)
		})
	}
}

// isRetryable evaluates error types to determine retry eligibility. Covers
// classified provider errors, local rate limits, network failures, and
// timeouts; authentication and validation failures are never retried.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}

	var providerErr *llmerrors.ProviderError
	if errors.As(err, &providerErr) {
		return providerErr.IsRetryable()
	}

	if errors.Is(err, llmerrors.ErrRateLimitExceeded) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	return false
}
