// Package circuitbreaker isolates failing providers so a broken endpoint
// cannot absorb the whole request budget. Each provider:model pair gets its
// own breaker.
package circuitbreaker

import (
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/ahrav/go-refinery/internal/llm/configuration"
	llmerrors "github.com/ahrav/go-refinery/internal/llm/errors"
)

// ErrCircuitOpen is returned when a request is rejected because its
// provider's breaker is open.
var ErrCircuitOpen = errors.New("circuit breaker open")

// State is the breaker state machine position.
type State int32

const (
	// StateClosed admits all requests.
	StateClosed State = iota
	// StateOpen rejects all requests until the open timeout elapses.
	StateOpen
	// StateHalfOpen admits a limited number of probe requests.
	StateHalfOpen
)

// String returns the conventional state name.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// breaker tracks failures for one provider:model pair.
type breaker struct {
	mu sync.Mutex

	state        State
	failures     int       // consecutive failures while closed
	openedAt     time.Time // when the breaker last opened
	probesInUse  int       // outstanding half-open probes
	probesPassed int       // successful probes this half-open cycle

	threshold   int
	openTimeout time.Duration
	maxProbes   int
}

// allow reports whether a request may proceed and reserves a probe slot when
// half-open.
func (b *breaker) allow(now time.Time) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return true
	case StateOpen:
		if now.Sub(b.openedAt) < b.jitteredTimeout() {
			return false
		}
		b.state = StateHalfOpen
		b.probesInUse = 1
		b.probesPassed = 0
		return true
	case StateHalfOpen:
		if b.probesInUse >= b.maxProbes {
			return false
		}
		b.probesInUse++
		return true
	default:
		return false
	}
}

// jitteredTimeout spreads reopen times so breakers sharing a failed
// dependency do not probe in lockstep.
func (b *breaker) jitteredTimeout() time.Duration {
	jitter := time.Duration(rand.Int64N(int64(b.openTimeout)/10 + 1))
	return b.openTimeout + jitter
}

// recordSuccess transitions half-open toward closed and clears the failure
// count.
func (b *breaker) recordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateHalfOpen:
		b.probesPassed++
		if b.probesInUse > 0 {
			b.probesInUse--
		}
		if b.probesPassed >= b.maxProbes {
			b.state = StateClosed
			b.failures = 0
			b.probesInUse = 0
		}
	case StateClosed:
		b.failures = 0
	case StateOpen:
		// Late success from a request admitted before the trip. Ignored.
	}
}

// releaseProbe frees a half-open probe slot when the request outcome says
// nothing about provider health. Every admitted probe must end in exactly one
// of recordSuccess, recordFailure, or releaseProbe, or the slot stays
// reserved and the breaker wedges in half-open.
func (b *breaker) releaseProbe() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateHalfOpen && b.probesInUse > 0 {
		b.probesInUse--
	}
}

// recordFailure counts the failure and opens the breaker at the threshold.
// Any failure while half-open reopens immediately.
func (b *breaker) recordFailure(now time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateHalfOpen:
		b.state = StateOpen
		b.openedAt = now
		b.probesInUse = 0
	case StateClosed:
		b.failures++
		if b.failures >= b.threshold {
			b.state = StateOpen
			b.openedAt = now
		}
	case StateOpen:
	}
}

// currentState returns the state for logging.
func (b *breaker) currentState() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Registry holds one breaker per provider:model key.
type Registry struct {
	mu       sync.RWMutex
	breakers map[string]*breaker

	config configuration.CircuitBreakerConfig
	logger *slog.Logger
}

// NewRegistry creates a breaker registry with the given configuration.
func NewRegistry(cfg configuration.CircuitBreakerConfig) *Registry {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = configuration.DefaultFailureThreshold
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = configuration.DefaultOpenTimeout
	}
	if cfg.HalfOpenProbes <= 0 {
		cfg.HalfOpenProbes = configuration.DefaultHalfOpenProbes
	}
	return &Registry{
		breakers: make(map[string]*breaker),
		config:   cfg,
		logger:   slog.Default().With("component", "circuit_breaker"),
	}
}

// forKey returns the breaker for a provider:model key, creating it on first
// use.
func (r *Registry) forKey(key string) *breaker {
	r.mu.RLock()
	b, ok := r.breakers[key]
	r.mu.RUnlock()
	if ok {
		return b
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok = r.breakers[key]; ok {
		return b
	}
	b = &breaker{
		threshold:   r.config.FailureThreshold,
		openTimeout: r.config.OpenTimeout,
		maxProbes:   r.config.HalfOpenProbes,
	}
	r.breakers[key] = b
	return b
}

// countable reports whether err should trip the breaker. Client-side
// conditions like validation and auth failures do not indicate provider
// health.
func countable(err error) bool {
	var pe *llmerrors.ProviderError
	if errors.As(err, &pe) {
		switch pe.Type {
		case llmerrors.ErrorTypeAuth,
			llmerrors.ErrorTypePermission,
			llmerrors.ErrorTypeValidation,
			llmerrors.ErrorTypeContent:
			return false
		}
		return true
	}
	// Network and timeout errors without provider classification count.
	return true
}

// State returns the current state for a provider:model key.
func (r *Registry) State(provider, model string) State {
	return r.forKey(key(provider, model)).currentState()
}

func key(provider, model string) string {
	return fmt.Sprintf("%s:%s", provider, model)
}
