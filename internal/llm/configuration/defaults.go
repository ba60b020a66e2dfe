package configuration

import "time"

// HTTP constants.
const (
	DefaultHTTPTimeout = 30 * time.Second
)

// Retry constants.
const (
	DefaultMaxAttempts       = 3
	DefaultMaxElapsedTime    = 45 * time.Second
	DefaultInitialInterval   = 250 * time.Millisecond
	DefaultMaxInterval       = 5 * time.Second
	DefaultBackoffMultiplier = 2.0
)

// Rate limiting constants.
const (
	DefaultTokensPerSecond = 10
	DefaultBurstSize       = 20
)

// Circuit breaker constants.
const (
	DefaultFailureThreshold = 5
	DefaultOpenTimeout      = 30 * time.Second
	DefaultHalfOpenProbes   = 2
)

// Cache and generation constants.
const (
	DefaultCacheTTL    = 24 * time.Hour
	DefaultMaxTokens   = 1000
	DefaultTemperature = 0.0
)

// Default provider endpoints and API key environment variables.
const (
	DefaultOpenAIKeyEnv    = "OPENAI_API_KEY"
	DefaultAnthropicKeyEnv = "ANTHROPIC_API_KEY"
	DefaultGoogleKeyEnv    = "GOOGLE_API_KEY"
)

// DefaultConfig returns a production-ready configuration with sensible
// defaults: all three providers wired to their standard endpoints with API
// keys resolved from conventional environment variables, transport retry and
// local rate limiting enabled, caching disabled until a Redis address is
// configured.
func DefaultConfig() *Config {
	return &Config{
		HTTPTimeout: DefaultHTTPTimeout,
		Providers: map[string]ProviderConfig{
			"openai":    {APIKeyEnv: DefaultOpenAIKeyEnv},
			"anthropic": {APIKeyEnv: DefaultAnthropicKeyEnv},
			"google":    {APIKeyEnv: DefaultGoogleKeyEnv},
		},
		DefaultProvider: "anthropic",
		DefaultModel:    "claude-3-5-haiku-20241022",
		MaxTokens:       DefaultMaxTokens,
		Temperature:     DefaultTemperature,
		Retry: RetryConfig{
			MaxAttempts:     DefaultMaxAttempts,
			MaxElapsedTime:  DefaultMaxElapsedTime,
			InitialInterval: DefaultInitialInterval,
			MaxInterval:     DefaultMaxInterval,
			Multiplier:      DefaultBackoffMultiplier,
			UseJitter:       true,
		},
		RateLimit: RateLimitConfig{
			Enabled:         true,
			TokensPerSecond: DefaultTokensPerSecond,
			BurstSize:       DefaultBurstSize,
		},
		CircuitBreaker: CircuitBreakerConfig{
			Enabled:          true,
			FailureThreshold: DefaultFailureThreshold,
			OpenTimeout:      DefaultOpenTimeout,
			HalfOpenProbes:   DefaultHalfOpenProbes,
		},
		Cache: CacheConfig{
			Enabled: false,
			TTL:     DefaultCacheTTL,
		},
		Observability: ObservabilityConfig{
			LogRequests:   true,
			RedactPrompts: true,
		},
	}
}
