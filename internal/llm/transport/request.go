// Package transport defines the normalized request/response types and the
// composable handler pipeline shared by all LLM providers. Provider adapters
// translate these types to and from provider-specific HTTP payloads;
// middleware wraps the pipeline with caching, rate limiting, retry, and
// logging concerns.
package transport

import (
	"net/http"
	"time"
)

// Request is a normalized model invocation across all providers. The prompt
// is fully rendered before it reaches the transport layer: signature
// formatting, demonstrations, and hint augmentation all happen upstream in
// the prompt adapter.
type Request struct {
	// Provider identifies which LLM service to use ("openai"|"anthropic"|"google").
	Provider string `json:"provider"`

	// Model specifies the exact model version to use.
	Model string `json:"model"`

	// SystemPrompt carries task instructions to the model.
	SystemPrompt string `json:"system_prompt,omitempty"`

	// Prompt is the rendered user message.
	Prompt string `json:"prompt"`

	// Generation parameters control model behavior.
	MaxTokens   int64   `json:"max_tokens"`
	Temperature float64 `json:"temperature"`

	// Control fields for resilience and observability.
	Timeout        time.Duration     `json:"timeout"`
	IdempotencyKey string            `json:"idempotency_key"`
	TraceID        string            `json:"trace_id"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

// Response is the normalized output from any provider.
type Response struct {
	// Content is the generated text.
	Content string `json:"content"`

	// FinishReason indicates why generation stopped.
	FinishReason FinishReason `json:"finish_reason"`

	// ProviderRequestIDs enables cross-system correlation.
	ProviderRequestIDs []string `json:"provider_request_ids"`

	// Usage tracks resource consumption.
	Usage NormalizedUsage `json:"usage"`

	// Headers preserves raw response headers for debugging.
	Headers http.Header `json:"-"`

	// RawBody preserves the original response for audit.
	RawBody []byte `json:"raw_body"`
}

// NormalizedUsage provides consistent usage metrics across all providers.
type NormalizedUsage struct {
	PromptTokens     int64 `json:"prompt_tokens"`
	CompletionTokens int64 `json:"completion_tokens"`
	TotalTokens      int64 `json:"total_tokens"`
	LatencyMs        int64 `json:"latency_ms"`
}

// FinishReason normalizes provider-specific completion reasons.
type FinishReason string

const (
	// FinishStop indicates natural completion.
	FinishStop FinishReason = "stop"

	// FinishLength indicates the token limit was reached.
	FinishLength FinishReason = "length"

	// FinishContentFilter indicates content was blocked by safety filters.
	FinishContentFilter FinishReason = "content_filter"

	// FinishUnknown indicates an unrecognized completion reason.
	FinishUnknown FinishReason = "unknown"
)
