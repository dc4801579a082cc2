package llm

import (
	"fmt"
	"net/http"
)

// ProviderError is returned when the completion API responds with a non-200
// status.
type ProviderError struct {
	// Type is the provider error type, e.g. "invalid_request_error".
	Type       string
	Message    string
	StatusCode int
}

func (e *ProviderError) Error() string {
	if e.Type != "" {
		return fmt.Sprintf("llm: HTTP %d: %s: %s", e.StatusCode, e.Type, e.Message)
	}
	return fmt.Sprintf("llm: HTTP %d: %s", e.StatusCode, e.Message)
}

// IsRateLimited reports whether the provider rejected the call with 429.
func (e *ProviderError) IsRateLimited() bool {
	return e.StatusCode == http.StatusTooManyRequests
}

// Retryable reports whether repeating the same request may succeed.
func (e *ProviderError) Retryable() bool {
	return e.IsRateLimited() || e.StatusCode >= http.StatusInternalServerError
}
