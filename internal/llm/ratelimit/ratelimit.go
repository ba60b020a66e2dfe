// Package ratelimit provides a local token-bucket rate limiting middleware
// for the LLM request pipeline. Limiters are keyed per provider:model and
// cleaned up after a TTL of disuse to prevent unbounded growth in
// long-running processes.
package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/ahrav/go-refinery/internal/llm/configuration"
	llmerrors "github.com/ahrav/go-refinery/internal/llm/errors"
	"github.com/ahrav/go-refinery/internal/llm/transport"
)

const (
	// cleanupInterval determines how often stale limiters are swept.
	cleanupInterval = 1 * time.Hour

	// limiterTTL is how long an unused limiter survives before cleanup.
	limiterTTL = 1 * time.Hour
)

// timedLimiter wraps a rate limiter with an atomically updated last-use
// timestamp, enabling TTL cleanup without holding locks on the hot path.
type timedLimiter struct {
	limiter  *rate.Limiter
	lastUsed atomic.Int64 // Unix nanoseconds
}

// rateLimitMiddleware enforces per-key request rates with token buckets.
// All operations are thread-safe.
type rateLimitMiddleware struct {
	mu       sync.RWMutex
	limiters map[string]*timedLimiter

	tokensPerSecond float64
	burstSize       int

	logger  *slog.Logger
	stopCh  chan struct{}
	stopped sync.Once
}

// NewMiddleware creates a local rate limiting middleware. The returned stop
// function terminates the background cleanup goroutine; callers owning the
// pipeline lifecycle should invoke it on shutdown. When the config disables
// limiting, the middleware is a passthrough and stop is a no-op.
func NewMiddleware(cfg configuration.RateLimitConfig) (transport.Middleware, func()) {
	if !cfg.Enabled {
		return func(next transport.Handler) transport.Handler { return next }, func() {}
	}

	tokensPerSecond := cfg.TokensPerSecond
	if tokensPerSecond <= 0 {
		tokensPerSecond = configuration.DefaultTokensPerSecond
	}
	burst := cfg.BurstSize
	if burst <= 0 {
		burst = configuration.DefaultBurstSize
	}

	rl := &rateLimitMiddleware{
		limiters:        make(map[string]*timedLimiter),
		tokensPerSecond: tokensPerSecond,
		burstSize:       burst,
		logger:          slog.Default().With("component", "ratelimit"),
		stopCh:          make(chan struct{}),
	}

	go rl.cleanupLoop()

	return rl.middleware(), rl.Stop
}

// middleware returns the rate limiting middleware function. Requests that
// cannot immediately obtain a token wait, bounded by the caller's context.
func (rl *rateLimitMiddleware) middleware() transport.Middleware {
	return func(next transport.Handler) transport.Handler {
		return transport.HandlerFunc(func(ctx context.Context, req *transport.Request) (*transport.Response, error) {
			limiter := rl.limiterFor(req.Provider + ":" + req.Model)

			if err := limiter.Wait(ctx); err != nil {
				return nil, fmt.Errorf("%w: %s/%s: %w",
					llmerrors.ErrRateLimitExceeded, req.Provider, req.Model, err)
			}

			return next.Handle(ctx, req)
		})
	}
}

// limiterFor returns the limiter for a key, creating it on first use.
func (rl *rateLimitMiddleware) limiterFor(key string) *rate.Limiter {
	now := time.Now().UnixNano()

	rl.mu.RLock()
	tl, ok := rl.limiters[key]
	rl.mu.RUnlock()
	if ok {
		tl.lastUsed.Store(now)
		return tl.limiter
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()
	// Re-check under the write lock: another goroutine may have created it.
	if tl, ok = rl.limiters[key]; ok {
		tl.lastUsed.Store(now)
		return tl.limiter
	}

	tl = &timedLimiter{limiter: rate.NewLimiter(rate.Limit(rl.tokensPerSecond), rl.burstSize)}
	tl.lastUsed.Store(now)
	rl.limiters[key] = tl
	return tl.limiter
}

// cleanupLoop periodically removes limiters that have been idle past TTL.
func (rl *rateLimitMiddleware) cleanupLoop() {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanup()
		case <-rl.stopCh:
			return
		}
	}
}

// cleanup removes stale limiters.
func (rl *rateLimitMiddleware) cleanup() {
	cutoff := time.Now().Add(-limiterTTL).UnixNano()

	rl.mu.Lock()
	defer rl.mu.Unlock()
	for key, tl := range rl.limiters {
		if tl.lastUsed.Load() < cutoff {
			delete(rl.limiters, key)
		}
	}
}

// Stop terminates the background cleanup goroutine. Safe to call multiple times.
func (rl *rateLimitMiddleware) Stop() {
	rl.stopped.Do(func() { close(rl.stopCh) })
}
