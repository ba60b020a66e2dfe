// Package cache provides Redis-backed, success-only caching middleware for
// LLM responses. Entries are keyed by the request's idempotency key so
// equivalent requests are served from cache instead of re-invoking the
// provider. Redis failures degrade gracefully: the request proceeds
// uncached, it never fails because the cache is down.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ahrav/go-refinery/internal/llm/configuration"
	"github.com/ahrav/go-refinery/internal/llm/transport"
)

const (
	// Redis connection defaults.
	defaultPoolSize   = 10
	connectionTimeout = 5 * time.Second
)

// entry is the persisted cache record for one successful response.
type entry struct {
	Content            string                    `json:"content"`
	FinishReason       transport.FinishReason    `json:"finish_reason"`
	ProviderRequestIDs []string                  `json:"provider_request_ids,omitempty"`
	Usage              transport.NormalizedUsage `json:"usage"`
	RawBody            []byte                    `json:"raw_body,omitempty"`
	StoredAtUnixMs     int64                     `json:"stored_at_ms"`
}

// cacheMiddleware implements Redis-based caching for LLM responses.
// All operations are thread-safe.
type cacheMiddleware struct {
	client  *redis.Client
	ttl     time.Duration
	enabled bool

	logger *slog.Logger

	// Metrics counters accessed atomically.
	hits   atomic.Int64
	misses atomic.Int64
	errors atomic.Int64
}

// NewMiddleware creates a caching middleware for LLM responses. If client is
// nil and caching is enabled, a Redis client is created from cfg; a failed
// connection check disables caching rather than failing construction.
func NewMiddleware(ctx context.Context, cfg configuration.CacheConfig, client *redis.Client) transport.Middleware {
	logger := slog.Default().With("component", "cache")

	if client == nil && cfg.Enabled {
		client = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			PoolSize: defaultPoolSize,
		})

		timeoutCtx, cancel := context.WithTimeout(ctx, connectionTimeout)
		defer cancel()

		if err := client.Ping(timeoutCtx).Err(); err != nil {
			logger.Warn("redis connection failed, cache disabled", "error", err)
			cfg.Enabled = false
		}
	}

	cm := &cacheMiddleware{
		client:  client,
		ttl:     cfg.TTL,
		enabled: cfg.Enabled,
		logger:  logger,
	}

	return cm.middleware()
}

// middleware returns the caching middleware function. Requests without an
// idempotency key bypass the cache entirely.
func (c *cacheMiddleware) middleware() transport.Middleware {
	return func(next transport.Handler) transport.Handler {
		return transport.HandlerFunc(func(ctx context.Context, req *transport.Request) (*transport.Response, error) {
			if !c.enabled || req.IdempotencyKey == "" {
				return next.Handle(ctx, req)
			}

			key := transport.CacheKey(req.Provider, transport.IdemKey(req.IdempotencyKey))

			if resp, ok := c.lookup(ctx, key); ok {
				c.hits.Add(1)
				c.logger.Debug("cache hit",
					"key", key,
					"provider", req.Provider,
					"model", req.Model)
				return resp, nil
			}
			c.misses.Add(1)

			resp, err := next.Handle(ctx, req)
			if err != nil {
				return nil, err
			}

			// Success-only caching: failures are never persisted.
			c.store(ctx, key, resp)
			return resp, nil
		})
	}
}

// lookup fetches and decodes a cached response. Any Redis or decode error
// counts as a miss.
func (c *cacheMiddleware) lookup(ctx context.Context, key string) (*transport.Response, bool) {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.errors.Add(1)
			c.logger.Warn("cache lookup failed", "key", key, "error", err)
		}
		return nil, false
	}

	var e entry
	if err := json.Unmarshal(data, &e); err != nil {
		c.errors.Add(1)
		c.logger.Warn("cache entry corrupt", "key", key, "error", err)
		return nil, false
	}

	return &transport.Response{
		Content:            e.Content,
		FinishReason:       e.FinishReason,
		ProviderRequestIDs: e.ProviderRequestIDs,
		Usage:              e.Usage,
		RawBody:            e.RawBody,
	}, true
}

// store persists a successful response with the configured TTL. Failures
// are logged and ignored.
func (c *cacheMiddleware) store(ctx context.Context, key string, resp *transport.Response) {
	e := entry{
		Content:            resp.Content,
		FinishReason:       resp.FinishReason,
		ProviderRequestIDs: resp.ProviderRequestIDs,
		Usage:              resp.Usage,
		RawBody:            resp.RawBody,
		StoredAtUnixMs:     time.Now().UnixMilli(),
	}

	data, err := json.Marshal(e)
	if err != nil {
		c.errors.Add(1)
		c.logger.Warn("cache encode failed", "key", key, "error", err)
		return
	}

	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.errors.Add(1)
		c.logger.Warn("cache store failed", "key", key, "error", err)
	}
}
