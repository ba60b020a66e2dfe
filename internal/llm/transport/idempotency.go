package transport

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
)

// CanonicalVersion defines the canonicalization format version. Increment
// when canonicalization logic changes so stale cache entries stop matching.
const CanonicalVersion = "v1"

// canonicalPayload is the normalized, stable form of a logical request. It
// is the sole input to idempotency-key hashing and must be deterministic
// across equivalent requests.
type canonicalPayload struct {
	Provider    string  `json:"provider"`
	Model       string  `json:"model"`
	System      string  `json:"system,omitempty"`
	Prompt      string  `json:"prompt"`
	MaxTokens   int64   `json:"max_tokens,omitempty"`
	Temperature float64 `json:"temperature,omitempty"`
	Version     string  `json:"version"`
}

// IdemKey is a deterministic SHA-256 hex identifier for a request payload.
// Equivalent requests generate identical keys for cache deduplication.
type IdemKey string

// String returns the string representation of the idempotency key.
func (k IdemKey) String() string { return string(k) }

// GenerateIdemKey derives the idempotency key for a request. Text fields are
// normalized (trimmed, LF line endings) so incidental formatting variation
// does not defeat deduplication.
func GenerateIdemKey(req *Request) (IdemKey, error) {
	payload := canonicalPayload{
		Provider:    strings.ToLower(strings.TrimSpace(req.Provider)),
		Model:       strings.TrimSpace(req.Model),
		System:      normalizeText(req.SystemPrompt),
		Prompt:      normalizeText(req.Prompt),
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		Version:     CanonicalVersion,
	}

	jsonBytes, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal canonical payload: %w", err)
	}

	hash := sha256.Sum256(jsonBytes)
	return IdemKey(hex.EncodeToString(hash[:])), nil
}

// CacheKey constructs the complete cache key for a request, namespaced under
// llm:{provider}:{idemkey} for per-provider cache management.
func CacheKey(provider string, key IdemKey) string {
	return fmt.Sprintf("llm:%s:%s", provider, key)
}

// normalizeText normalizes text content for consistent hash generation.
func normalizeText(text string) string {
	text = strings.TrimSpace(text)
	text = strings.ReplaceAll(text, "\r\n", "\n")
	return text
}
