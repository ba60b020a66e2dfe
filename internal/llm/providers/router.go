// Package providers implements provider-specific HTTP adapters for OpenAI,
// Anthropic, and Google, plus a router that selects the adapter for a
// request. Adapters translate normalized transport requests into each
// provider's wire format and parse responses back, classifying HTTP errors
// for the retry middleware.
package providers

import (
	"fmt"

	"github.com/ahrav/go-refinery/internal/llm/configuration"
	llmerrors "github.com/ahrav/go-refinery/internal/llm/errors"
	"github.com/ahrav/go-refinery/internal/llm/transport"
)

// Supported LLM provider identifiers. These constants must match the
// provider names used in configuration.
const (
	ProviderOpenAI    = "openai"    // OpenAI GPT models
	ProviderAnthropic = "anthropic" // Anthropic Claude models
	ProviderGoogle    = "google"    // Google Gemini models
)

// Router selects the appropriate provider adapter for request routing.
type Router interface {
	// Pick selects the adapter for the specified provider and model.
	// Returns an error if the provider is unknown or not configured.
	Pick(provider, model string) (transport.ProviderAdapter, error)
}

// NewRouter creates a router with adapters for each configured provider.
func NewRouter(configs map[string]configuration.ProviderConfig) (Router, error) {
	adapters := make(map[string]transport.ProviderAdapter, len(configs))

	for name, cfg := range configs {
		var adapter transport.ProviderAdapter
		switch name {
		case ProviderOpenAI:
			adapter = NewOpenAIAdapter(cfg)
		case ProviderAnthropic:
			adapter = NewAnthropicAdapter(cfg)
		case ProviderGoogle:
			adapter = NewGoogleAdapter(cfg)
		default:
			return nil, fmt.Errorf("%w: %s", llmerrors.ErrUnknownProvider, name)
		}
		adapters[name] = adapter
	}

	return &router{adapters: adapters}, nil
}

// router implements Router with a provider adapter registry.
type router struct {
	adapters map[string]transport.ProviderAdapter
}

// Pick selects the adapter for the given provider name. The model argument
// is accepted for future per-model routing but does not affect selection.
func (r *router) Pick(provider, _ string) (transport.ProviderAdapter, error) {
	adapter, ok := r.adapters[provider]
	if !ok {
		return nil, fmt.Errorf("%w: %s", llmerrors.ErrUnknownProvider, provider)
	}
	return adapter, nil
}
