// Package llm provides a unified, resilient HTTP client for Large Language
// Model providers. It assembles a middleware pipeline around a provider-
// agnostic core handler:
//
//	logging -> cache -> rate limit -> retry -> circuit breaker -> HTTP
//
// with adapters for OpenAI, Anthropic, and Google. The client performs
// single prompt completions; turning typed signatures into prompts and
// retrying on low feedback scores happen upstream in the refine package.
package llm

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/ahrav/go-refinery/internal/llm/cache"
	"github.com/ahrav/go-refinery/internal/llm/circuitbreaker"
	"github.com/ahrav/go-refinery/internal/llm/configuration"
	"github.com/ahrav/go-refinery/internal/llm/providers"
	"github.com/ahrav/go-refinery/internal/llm/ratelimit"
	"github.com/ahrav/go-refinery/internal/llm/retry"
	"github.com/ahrav/go-refinery/internal/llm/transport"
)

// HTTP transport tuning constants.
const (
	defaultMaxIdleConns    = 100
	defaultIdleConnTimeout = 90 * time.Second
	defaultTLSTimeout      = 10 * time.Second
)

// Client performs one model completion per call through the full middleware
// pipeline. Implementations are safe for concurrent use.
type Client interface {
	// Complete sends a fully rendered prompt request to its provider and
	// returns the normalized response.
	Complete(ctx context.Context, req *transport.Request) (*transport.Response, error)

	// Close releases background resources held by the pipeline, such as the
	// rate limiter's cleanup goroutine. The client must not be used after
	// Close.
	Close() error
}

// client implements Client with the assembled middleware pipeline.
type client struct {
	config  *configuration.Config
	handler transport.Handler
	stop    func() // releases pipeline background resources, nil when none
}

// NewClient creates an LLM client from configuration. A nil cfg uses
// DefaultConfig. The context bounds cache connection probing only; it is not
// retained.
func NewClient(ctx context.Context, cfg *configuration.Config) (Client, error) {
	if cfg == nil {
		cfg = configuration.DefaultConfig()
	}

	router, err := providers.NewRouter(cfg.Providers)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize router: %w", err)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Transport: &http.Transport{
				Proxy:                 http.ProxyFromEnvironment,
				MaxIdleConns:          defaultMaxIdleConns,
				IdleConnTimeout:       defaultIdleConnTimeout,
				TLSHandshakeTimeout:   defaultTLSTimeout,
				ExpectContinueTimeout: 1 * time.Second,
			},
			Timeout: cfg.HTTPTimeout,
		}
	}

	coreHandler := transport.NewHTTPHandler(httpClient, router)

	retryMiddleware, err := retry.NewMiddleware(cfg.Retry)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize retry middleware: %w", err)
	}

	rateLimitMiddleware, stopRateLimit := ratelimit.NewMiddleware(cfg.RateLimit)

	// Order matters: logging observes the logical call, the cache prevents
	// repeat work before rate limiting applies, retry wraps only the HTTP
	// attempt so cached hits are never throttled or retried, and the
	// breaker sits innermost so every attempt consults provider health.
	middlewares := []transport.Middleware{
		NewLoggingMiddleware(cfg.Observability, nil),
		cache.NewMiddleware(ctx, cfg.Cache, nil),
		rateLimitMiddleware,
		retryMiddleware,
	}
	if cfg.CircuitBreaker.Enabled {
		middlewares = append(middlewares, circuitbreaker.NewMiddleware(circuitbreaker.NewRegistry(cfg.CircuitBreaker)))
	}

	return &client{
		config:  cfg,
		handler: transport.Chain(coreHandler, middlewares...),
		stop:    stopRateLimit,
	}, nil
}

// NewClientWithHandler creates a client around an explicit handler,
// bypassing pipeline assembly. Intended for tests and embedders that supply
// their own transport.
func NewClientWithHandler(cfg *configuration.Config, handler transport.Handler) Client {
	if cfg == nil {
		cfg = configuration.DefaultConfig()
	}
	return &client{config: cfg, handler: handler}
}

// Close implements Client. Safe to call multiple times.
func (c *client) Close() error {
	if c.stop != nil {
		c.stop()
	}
	return nil
}

// Complete implements Client. Requests missing a provider, model, or
// generation parameters inherit the configured defaults, and an idempotency
// key is derived when absent so caching works without caller involvement.
func (c *client) Complete(ctx context.Context, req *transport.Request) (*transport.Response, error) {
	if req.Provider == "" {
		req.Provider = c.config.DefaultProvider
	}
	if req.Model == "" {
		req.Model = c.config.DefaultModel
	}
	if req.MaxTokens == 0 {
		req.MaxTokens = c.config.MaxTokens
	}
	if req.Temperature == 0 {
		req.Temperature = c.config.Temperature
	}

	if req.IdempotencyKey == "" {
		key, err := transport.GenerateIdemKey(req)
		if err != nil {
			return nil, fmt.Errorf("failed to derive idempotency key: %w", err)
		}
		req.IdempotencyKey = key.String()
	}

	return c.handler.Handle(ctx, req)
}
