package circuitbreaker

import (
	"context"
	"fmt"
	"time"

	"github.com/ahrav/go-refinery/internal/llm/transport"
)

// NewMiddleware returns transport middleware that consults the registry
// before each request and records the outcome after. Rejected requests fail
// fast with ErrCircuitOpen and never reach the wire.
func NewMiddleware(registry *Registry) transport.Middleware {
	return func(next transport.Handler) transport.Handler {
		return transport.HandlerFunc(func(ctx context.Context, req *transport.Request) (*transport.Response, error) {
			b := registry.forKey(key(req.Provider, req.Model))

			now := time.Now()
			if !b.allow(now) {
				registry.logger.WarnContext(ctx, "request rejected by circuit breaker",
					"provider", req.Provider,
					"model", req.Model,
					"state", b.currentState().String())
				return nil, fmt.Errorf("%w: provider %q model %q", ErrCircuitOpen, req.Provider, req.Model)
			}

			resp, err := next.Handle(ctx, req)
			if err != nil {
				if countable(err) {
					b.recordFailure(time.Now())
				} else {
					b.releaseProbe()
				}
				return nil, err
			}

			b.recordSuccess()
			return resp, nil
		})
	}
}
