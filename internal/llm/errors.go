package llm

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/helixir/gap-analysis-service/internal/concurrency"
)

// ErrMalformedResponse is returned when a completion cannot be decoded into
// the expected JSON shape.
var ErrMalformedResponse = errors.New("malformed AI response")

// ErrEmptyResponse is returned when a provider answers without any text.
var ErrEmptyResponse = errors.New("empty AI response")

// APIError represents an error returned by an LLM provider API.
type APIError struct {
	// Provider is the name of the LLM provider (e.g., "gemini", "anthropic").
	Provider string
	// StatusCode is the HTTP status code returned by the API.
	StatusCode int
	// Message is the error message from the API.
	Message string
	// Type is the error type classification from the API.
	Type string
	// Code is the provider-specific error code (if available).
	Code string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Type != "" {
		return fmt.Sprintf("%s: API error (status %d, type %s): %s", e.Provider, e.StatusCode, e.Type, e.Message)
	}
	return fmt.Sprintf("%s: API error (status %d): %s", e.Provider, e.StatusCode, e.Message)
}

// IsTransient returns true if the error may succeed on retry: rate limiting
// (429), server errors (5xx) and network errors (StatusCode 0, no HTTP
// response was received).
func (e *APIError) IsTransient() bool {
	return e.StatusCode == 0 ||
		e.StatusCode == http.StatusTooManyRequests ||
		e.StatusCode >= 500
}

// classify marks non-transient provider errors as permanent so the retry
// policy gives up on them immediately.
func classify(err error) error {
	var apiErr *APIError
	if errors.As(err, &apiErr) && !apiErr.IsTransient() {
		return concurrency.Permanent(err)
	}
	return err
}

// errorType returns a low-cardinality label for metrics.
func errorType(err error) string {
	var apiErr *APIError
	switch {
	case errors.Is(err, ErrMalformedResponse):
		return "malformed"
	case errors.Is(err, ErrEmptyResponse):
		return "empty"
	case errors.As(err, &apiErr):
		if apiErr.StatusCode == http.StatusTooManyRequests {
			return "rate_limited"
		}
		if apiErr.StatusCode == 0 {
			return "network"
		}
		return "api_error"
	default:
		return "unknown"
	}
}
