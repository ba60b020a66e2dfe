// Package configuration holds the LLM client configuration: provider
// endpoints and credentials, resilience parameters, and observability
// options, with YAML file loading and environment-based secret resolution.
package configuration

import (
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
)

// validate is the package-level validator instance used for config validation.
var validate = validator.New(validator.WithRequiredStructEnabled())

// Config holds the complete configuration for the LLM client.
type Config struct {
	// HTTP client configuration.
	HTTPTimeout time.Duration `koanf:"http_timeout"`
	HTTPClient  *http.Client  `koanf:"-"`

	// Providers maps provider name to its configuration.
	Providers map[string]ProviderConfig `koanf:"providers" validate:"required,min=1"`

	// DefaultProvider and DefaultModel select the target when a request
	// does not specify one.
	DefaultProvider string `koanf:"default_provider" validate:"required"`
	DefaultModel    string `koanf:"default_model" validate:"required"`

	// Generation defaults applied to requests that leave them unset.
	MaxTokens   int64   `koanf:"max_tokens" validate:"min=0"`
	Temperature float64 `koanf:"temperature"`

	// Retry configures transport-level retry of transient failures.
	Retry RetryConfig `koanf:"retry"`

	// RateLimit configures the local token-bucket limiter.
	RateLimit RateLimitConfig `koanf:"rate_limit"`

	// CircuitBreaker configures per-provider failure isolation.
	CircuitBreaker CircuitBreakerConfig `koanf:"circuit_breaker"`

	// Cache configures the Redis-backed response cache.
	Cache CacheConfig `koanf:"cache"`

	// Observability configures request logging.
	Observability ObservabilityConfig `koanf:"observability"`
}

// Validate checks configuration invariants.
func (c *Config) Validate() error { return validate.Struct(c) }

// ProviderConfig holds provider-specific configuration and authentication.
type ProviderConfig struct {
	Endpoint string `koanf:"endpoint"`

	// APIKey is resolved from APIKeyEnv at load time; never serialized.
	APIKey    string `koanf:"-"`
	APIKeyEnv string `koanf:"api_key_env"`

	Timeout time.Duration     `koanf:"timeout"`
	Headers map[string]string `koanf:"headers"`
}

// RetryConfig controls transport retry of transient failures. This is
// distinct from the feedback-driven retry loop: transport retry re-sends the
// same request after rate limits and outages, it never alters the prompt.
type RetryConfig struct {
	MaxAttempts     int           `koanf:"max_attempts"`     // Maximum attempts including the first
	MaxElapsedTime  time.Duration `koanf:"max_elapsed_time"` // Total time budget for all attempts
	InitialInterval time.Duration `koanf:"initial_interval"` // Starting backoff duration
	MaxInterval     time.Duration `koanf:"max_interval"`     // Maximum backoff duration
	Multiplier      float64       `koanf:"multiplier"`       // Exponential backoff multiplier
	UseJitter       bool          `koanf:"use_jitter"`       // Enable full jitter randomization
}

// RateLimitConfig controls the local token-bucket rate limiter.
type RateLimitConfig struct {
	Enabled         bool    `koanf:"enabled"`
	TokensPerSecond float64 `koanf:"tokens_per_second"`
	BurstSize       int     `koanf:"burst_size"`
}

// CircuitBreakerConfig controls per-provider circuit breaking. A breaker
// opens after FailureThreshold consecutive failures, stays open for
// OpenTimeout, then admits up to HalfOpenProbes trial requests before
// closing again.
type CircuitBreakerConfig struct {
	Enabled          bool          `koanf:"enabled"`
	FailureThreshold int           `koanf:"failure_threshold"`
	OpenTimeout      time.Duration `koanf:"open_timeout"`
	HalfOpenProbes   int           `koanf:"half_open_probes"`
}

// CacheConfig controls the success-only response cache.
type CacheConfig struct {
	Enabled       bool          `koanf:"enabled"`
	RedisAddr     string        `koanf:"redis_addr"`
	RedisPassword string        `koanf:"-"`
	RedisDB       int           `koanf:"redis_db"`
	TTL           time.Duration `koanf:"ttl"`
}

// ObservabilityConfig controls structured request logging.
type ObservabilityConfig struct {
	LogRequests   bool `koanf:"log_requests"`
	RedactPrompts bool `koanf:"redact_prompts"` // Log prompt lengths, not contents
}
