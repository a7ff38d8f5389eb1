package protocol

import (
	"errors"
	"fmt"
)

// Sentinel errors for callers to match with errors.Is.
var (
	ErrAuth            = errors.New("authentication failed")
	ErrContextOverflow = errors.New("context window exceeded")
	ErrRateLimited     = errors.New("rate limited")

	// ErrMalformedResponse marks a 200 response whose body could not be
	// turned into a completion (bad JSON, no choices). Providers emit these
	// transiently under load, so the invocation layer retries them.
	ErrMalformedResponse = errors.New("malformed completion response")
)

// APIError is a non-200 response from the chat-completion endpoint.
type APIError struct {
	StatusCode int
	Type       string
	Code       string
	Message    string

	// overflow is set when the body reports an exhausted context window.
	overflow bool
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("API error (HTTP %d)", e.StatusCode)
	}
	return fmt.Sprintf("API error (HTTP %d): %s", e.StatusCode, e.Message)
}

// Is lets errors.Is match ErrRateLimited on a 429 and ErrContextOverflow
// on a classified overflow.
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrRateLimited:
		return e.StatusCode == 429
	case ErrContextOverflow:
		return e.overflow
	}
	return false
}
