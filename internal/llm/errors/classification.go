package errors

import "strings"

// codePatterns maps substrings of provider error codes to error types.
// Checked in order; the first match wins.
var codePatterns = []struct {
	substr string
	typ    ErrorType
}{
	{"rate", ErrorTypeRateLimit},
	{"limit", ErrorTypeRateLimit},
	{"timeout", ErrorTypeTimeout},
	{"auth", ErrorTypeAuth},
	{"unauthorized", ErrorTypeAuth},
	{"permission", ErrorTypePermission},
	{"forbidden", ErrorTypePermission},
	{"quota", ErrorTypeQuota},
	{"content_filter", ErrorTypeContent},
	{"safety", ErrorTypeContent},
}

// classifyCode maps a provider-specific error code string to an ErrorType.
// Returns false when the code carries no classification signal.
func classifyCode(errorCode string) (ErrorType, bool) {
	if errorCode == "" {
		return ErrorTypeUnknown, false
	}
	lower := strings.ToLower(errorCode)
	for _, p := range codePatterns {
		if strings.Contains(lower, p.substr) {
			return p.typ, true
		}
	}
	return ErrorTypeUnknown, false
}

// IsRetryable reports whether an error type represents a transient failure.
func (t ErrorType) IsRetryable() bool {
	switch t {
	case ErrorTypeTimeout, ErrorTypeRateLimit, ErrorTypeNetwork, ErrorTypeProvider:
		return true
	default:
		return false
	}
}
