package retry //nolint:testpackage // Exercises unexported retryable classification

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-refinery/internal/llm/configuration"
	llmerrors "github.com/ahrav/go-refinery/internal/llm/errors"
	"github.com/ahrav/go-refinery/internal/llm/transport"
)

func fastConfig() configuration.RetryConfig {
	return configuration.RetryConfig{
		MaxAttempts:     3,
		InitialInterval: time.Millisecond,
		MaxInterval:     5 * time.Millisecond,
		Multiplier:      2.0,
		UseJitter:       false,
	}
}

func rateLimitError() error {
	return &llmerrors.ProviderError{
		Provider:   "openai",
		StatusCode: http.StatusTooManyRequests,
		Type:       llmerrors.ErrorTypeRateLimit,
	}
}

// TestNewMiddleware_Validation verifies invalid configurations are rejected
// at construction.
func TestNewMiddleware_Validation(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*configuration.RetryConfig)
	}{
		{name: "zero max attempts", modify: func(c *configuration.RetryConfig) { c.MaxAttempts = 0 }},
		{name: "zero initial interval", modify: func(c *configuration.RetryConfig) { c.InitialInterval = 0 }},
		{name: "max below initial", modify: func(c *configuration.RetryConfig) { c.MaxInterval = c.InitialInterval / 2 }},
		{name: "multiplier below one", modify: func(c *configuration.RetryConfig) { c.Multiplier = 0.5 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := fastConfig()
			tt.modify(&cfg)
			_, err := NewMiddleware(cfg)
			assert.Error(t, err)
		})
	}
}

// TestMiddleware_RetriesTransientThenSucceeds verifies transient failures
// are retried and the eventual success is returned.
func TestMiddleware_RetriesTransientThenSucceeds(t *testing.T) {
	mw, err := NewMiddleware(fastConfig())
	require.NoError(t, err)

	calls := 0
	handler := mw(transport.HandlerFunc(func(context.Context, *transport.Request) (*transport.Response, error) {
		calls++
		if calls < 3 {
			return nil, rateLimitError()
		}
		return &transport.Response{Content: "ok"}, nil
	}))

	resp, err := handler.Handle(context.Background(), &transport.Request{Prompt: "hello"})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Content)
	assert.Equal(t, 3, calls)
}

// TestMiddleware_ExhaustsAttempts verifies persistent transient failures end
// with ErrMaxRetriesExceeded wrapping the last error.
func TestMiddleware_ExhaustsAttempts(t *testing.T) {
	mw, err := NewMiddleware(fastConfig())
	require.NoError(t, err)

	calls := 0
	handler := mw(transport.HandlerFunc(func(context.Context, *transport.Request) (*transport.Response, error) {
		calls++
		return nil, rateLimitError()
	}))

	_, err = handler.Handle(context.Background(), &transport.Request{Prompt: "hello"})
	require.Error(t, err)
	assert.ErrorIs(t, err, llmerrors.ErrMaxRetriesExceeded)
	assert.Equal(t, 3, calls)

	var perr *llmerrors.ProviderError
	assert.ErrorAs(t, err, &perr)
}

// TestMiddleware_NonRetryableFailsFast verifies permanent errors are
// returned after a single attempt.
func TestMiddleware_NonRetryableFailsFast(t *testing.T) {
	mw, err := NewMiddleware(fastConfig())
	require.NoError(t, err)

	authErr := &llmerrors.ProviderError{
		Provider:   "openai",
		StatusCode: http.StatusUnauthorized,
		Type:       llmerrors.ErrorTypeAuth,
	}

	calls := 0
	handler := mw(transport.HandlerFunc(func(context.Context, *transport.Request) (*transport.Response, error) {
		calls++
		return nil, authErr
	}))

	_, err = handler.Handle(context.Background(), &transport.Request{Prompt: "hello"})
	require.Error(t, err)
	assert.NotErrorIs(t, err, llmerrors.ErrMaxRetriesExceeded)
	assert.Equal(t, 1, calls)
}

// TestMiddleware_ContextCancellation verifies cancellation during backoff
// aborts the loop promptly.
func TestMiddleware_ContextCancellation(t *testing.T) {
	cfg := fastConfig()
	cfg.InitialInterval = time.Second
	cfg.MaxInterval = time.Second
	mw, err := NewMiddleware(cfg)
	require.NoError(t, err)

	handler := mw(transport.HandlerFunc(func(context.Context, *transport.Request) (*transport.Response, error) {
		return nil, rateLimitError()
	}))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	_, err = handler.Handle(ctx, &transport.Request{Prompt: "hello"})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

// TestIsRetryable verifies classification across error families.
func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "rate limit provider error", err: rateLimitError(), want: true},
		{
			name: "auth provider error",
			err:  &llmerrors.ProviderError{StatusCode: 401, Type: llmerrors.ErrorTypeAuth},
			want: false,
		},
		{name: "local rate limit sentinel", err: llmerrors.ErrRateLimitExceeded, want: true},
		{name: "deadline exceeded", err: context.DeadlineExceeded, want: true},
		{name: "generic error", err: errors.New("boom"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isRetryable(tt.err))
		})
	}
}

// TestExponentialBackoff verifies growth, capping, and the Retry-After
// override.
func TestExponentialBackoff(t *testing.T) {
	cfg := configuration.RetryConfig{
		InitialInterval: 100 * time.Millisecond,
		MaxInterval:     time.Second,
		Multiplier:      2.0,
		UseJitter:       false,
	}

	assert.Equal(t, time.Duration(0), ExponentialBackoff(0, cfg))
	assert.Equal(t, 100*time.Millisecond, ExponentialBackoff(1, cfg))
	assert.Equal(t, 200*time.Millisecond, ExponentialBackoff(2, cfg))
	assert.Equal(t, 400*time.Millisecond, ExponentialBackoff(3, cfg))
	assert.Equal(t, time.Second, ExponentialBackoff(10, cfg), "capped at MaxInterval")

	cfg.UseJitter = true
	for i := 0; i < 20; i++ {
		d := ExponentialBackoff(3, cfg)
		assert.GreaterOrEqual(t, d, time.Duration(0))
		assert.LessOrEqual(t, d, 400*time.Millisecond)
	}
}

// TestCalculateBackoff_RetryAfterPrecedence verifies provider guidance
// overrides the computed delay.
func TestCalculateBackoff_RetryAfterPrecedence(t *testing.T) {
	rm := &retryMiddleware{config: fastConfig()}

	withGuidance := &llmerrors.ProviderError{
		StatusCode: http.StatusTooManyRequests,
		Type:       llmerrors.ErrorTypeRateLimit,
		RetryAfter: 3,
	}
	assert.Equal(t, 3*time.Second, rm.calculateBackoff(1, withGuidance))

	assert.Equal(t, time.Millisecond, rm.calculateBackoff(1, rateLimitError()))
}
