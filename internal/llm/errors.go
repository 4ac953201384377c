package llm

import (
	"errors"
	"fmt"
	"time"
)

// Terminal errors are never retried; the remaining taxonomy members are
// either retryable or a deferral.
var (
	ErrInvalidCredential  = errors.New("llm: invalid API credential")
	ErrServiceUnavailable = errors.New("llm: service unavailable")
	ErrCancelled          = errors.New("llm: request cancelled")
)

// TransportError wraps a network-level failure, including a per-call
// timeout. Retryable.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string { return fmt.Sprintf("llm: transport: %v", e.Err) }
func (e *TransportError) Unwrap() error { return e.Err }

// ModelNotFoundError is terminal: the configured model does not exist on
// the endpoint.
type ModelNotFoundError struct {
	Message string
}

func (e *ModelNotFoundError) Error() string { return "llm: model not found: " + e.Message }

// RequestTooLargeError is terminal and signals the caller to shrink the
// input. Tokens is the endpoint's reported size, zero when unparseable.
type RequestTooLargeError struct {
	Tokens int
}

func (e *RequestTooLargeError) Error() string {
	return fmt.Sprintf("llm: request too large: %d tokens", e.Tokens)
}

// RateLimitedError is retryable. RetryAfter is zero when the endpoint did
// not supply a Retry-After header.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("llm: rate limited, retry after %s", e.RetryAfter)
	}
	return "llm: rate limited"
}

// APIError carries an endpoint error body that maps to no specific
// taxonomy member. Terminal.
type APIError struct {
	Message string
	Code    string
	Status  int
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("llm: api error (%s): %s", e.Code, e.Message)
	}
	return "llm: api error: " + e.Message
}

// MalformedError is terminal: the endpoint returned 2xx but the body did
// not decode as a chat completion.
type MalformedError struct {
	Body string
	Err  error
}

func (e *MalformedError) Error() string { return fmt.Sprintf("llm: malformed response: %v", e.Err) }
func (e *MalformedError) Unwrap() error { return e.Err }

// Retryable reports whether an error is worth another attempt. Only
// transport failures, remote rate limiting, and service unavailability
// qualify.
func Retryable(err error) bool {
	var te *TransportError
	if errors.As(err, &te) {
		return true
	}
	var re *RateLimitedError
	if errors.As(err, &re) {
		return true
	}
	return errors.Is(err, ErrServiceUnavailable)
}
