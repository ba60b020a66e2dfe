package llm

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/ahrav/go-refinery/internal/llm/configuration"
	llmerrors "github.com/ahrav/go-refinery/internal/llm/errors"
	"github.com/ahrav/go-refinery/internal/llm/transport"
)

// loggingMiddleware provides structured observability for the LLM request
// lifecycle: request/response logging, latency, usage, and error
// classification, with configurable prompt redaction.
type loggingMiddleware struct {
	logger        *slog.Logger
	enabled       bool
	redactPrompts bool
}

// NewLoggingMiddleware creates observability middleware with structured
// logging. A nil logger falls back to slog.Default.
func NewLoggingMiddleware(cfg configuration.ObservabilityConfig, logger *slog.Logger) transport.Middleware {
	if logger == nil {
		logger = slog.Default().With("component", "llm")
	}

	lm := &loggingMiddleware{
		logger:        logger,
		enabled:       cfg.LogRequests,
		redactPrompts: cfg.RedactPrompts,
	}
	return lm.middleware()
}

// middleware returns the logging middleware function. Every request gets a
// trace ID for correlation if the caller did not supply one.
func (m *loggingMiddleware) middleware() transport.Middleware {
	return func(next transport.Handler) transport.Handler {
		return transport.HandlerFunc(func(ctx context.Context, req *transport.Request) (*transport.Response, error) {
			if req.TraceID == "" {
				req.TraceID = uuid.New().String()
			}

			if !m.enabled {
				return next.Handle(ctx, req)
			}

			m.logRequest(ctx, req)

			start := time.Now()
			resp, err := next.Handle(ctx, req)
			duration := time.Since(start)

			if err != nil {
				m.logError(ctx, req, err, duration)
			} else {
				m.logSuccess(ctx, req, resp, duration)
			}

			return resp, err
		})
	}
}

// logRequest captures request data with configurable content redaction.
func (m *loggingMiddleware) logRequest(ctx context.Context, req *transport.Request) {
	fields := []any{
		"trace_id", req.TraceID,
		"provider", req.Provider,
		"model", req.Model,
		"max_tokens", req.MaxTokens,
		"temperature", req.Temperature,
	}
	if m.redactPrompts {
		fields = append(fields, "prompt_len", len(req.Prompt), "system_len", len(req.SystemPrompt))
	} else {
		fields = append(fields, "prompt", req.Prompt, "system", req.SystemPrompt)
	}
	m.logger.DebugContext(ctx, "llm request", fields...)
}

// logSuccess records a completed request with usage metrics.
func (m *loggingMiddleware) logSuccess(ctx context.Context, req *transport.Request, resp *transport.Response, d time.Duration) {
	m.logger.InfoContext(ctx, "llm request completed",
		"trace_id", req.TraceID,
		"provider", req.Provider,
		"model", req.Model,
		"duration_ms", d.Milliseconds(),
		"finish_reason", resp.FinishReason,
		"prompt_tokens", resp.Usage.PromptTokens,
		"completion_tokens", resp.Usage.CompletionTokens)
}

// logError records a failed request with the classified error type.
func (m *loggingMiddleware) logError(ctx context.Context, req *transport.Request, err error, d time.Duration) {
	errType := llmerrors.ErrorTypeUnknown
	var providerErr *llmerrors.ProviderError
	if errors.As(err, &providerErr) {
		errType = providerErr.Type
	}

	m.logger.ErrorContext(ctx, "llm request failed",
		"trace_id", req.TraceID,
		"provider", req.Provider,
		"model", req.Model,
		"duration_ms", d.Milliseconds(),
		"error_type", errType,
		"error", err)
}
