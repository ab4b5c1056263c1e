package upstream

import (
	"errors"
	"fmt"
	"time"
)

// NotFoundError is returned when the repository does not exist or is private.
// Private repositories are reported identically so their existence does not leak.
type NotFoundError struct {
	// Repository is the requested owner/repo key
	Repository string
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("repository %q not found", e.Repository)
}

// RateLimitedError is returned when GitHub answers 403.
type RateLimitedError struct {
	// ResetAt is when the upstream quota resets, zero if unknown
	ResetAt time.Time

	// Message is the error message from GitHub
	Message string
}

// Error implements the error interface.
func (e *RateLimitedError) Error() string {
	if !e.ResetAt.IsZero() {
		return fmt.Sprintf("github rate limit exceeded (resets at %s): %s",
			e.ResetAt.UTC().Format(time.RFC3339), e.Message)
	}
	return fmt.Sprintf("github rate limit exceeded: %s", e.Message)
}

// APIError is returned for any non-success status not covered by a more
// specific error type.
type APIError struct {
	// Code is the HTTP status code
	Code int

	// Message is the error message from GitHub
	Message string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("github api error (status %d): %s", e.Code, e.Message)
}

// NetworkError represents a transport failure: DNS, connection, TLS,
// timeout, or a body that could not be read or decoded.
type NetworkError struct {
	// Cause is the underlying transport error
	Cause error
}

// Error implements the error interface.
func (e *NetworkError) Error() string {
	return fmt.Sprintf("github request failed: %v", e.Cause)
}

// Unwrap returns the underlying error for error chain support.
func (e *NetworkError) Unwrap() error {
	return e.Cause
}

// AuthError is returned when GitHub rejects the configured token (HTTP 401).
type AuthError struct {
	// Message is the error message from GitHub
	Message string
}

// Error implements the error interface.
func (e *AuthError) Error() string {
	return fmt.Sprintf("github authentication failed: %s", e.Message)
}

// CircuitOpenError is returned without contacting GitHub while the circuit
// breaker is open.
type CircuitOpenError struct {
	// RetryAt is when the breaker will admit a probe, zero if unknown
	RetryAt time.Time
}

// Error implements the error interface.
func (e *CircuitOpenError) Error() string {
	return "github is temporarily unavailable (circuit open)"
}

// InvalidKeyError is returned for keys that are not of the form owner/repo.
type InvalidKeyError struct {
	Key string
}

// Error implements the error interface.
func (e *InvalidKeyError) Error() string {
	return fmt.Sprintf("invalid repository %q: expected owner/repo", e.Key)
}

// tripsBreaker reports whether err says something about GitHub's health.
// Client-side 4xx problems, auth failures and missing repositories do not.
func tripsBreaker(err error) bool {
	var (
		netErr  *NetworkError
		rateErr *RateLimitedError
		apiErr  *APIError
	)
	switch {
	case errors.As(err, &netErr), errors.As(err, &rateErr):
		return true
	case errors.As(err, &apiErr):
		return apiErr.Code >= 500
	default:
		return false
	}
}

// isTerminal reports whether err should be cached as Exhausted immediately.
func isTerminal(err error) bool {
	var notFound *NotFoundError
	return errors.As(err, &notFound)
}

// outcomeLabel maps an error to a bounded metrics label.
func outcomeLabel(err error) string {
	var (
		notFound *NotFoundError
		rateErr  *RateLimitedError
		apiErr   *APIError
		netErr   *NetworkError
		authErr  *AuthError
		openErr  *CircuitOpenError
	)
	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &notFound):
		return "not_found"
	case errors.As(err, &rateErr):
		return "rate_limited"
	case errors.As(err, &apiErr):
		if apiErr.Code >= 500 {
			return "server_error"
		}
		return "client_error"
	case errors.As(err, &netErr):
		return "network_error"
	case errors.As(err, &authErr):
		return "auth_error"
	case errors.As(err, &openErr):
		return "circuit_open"
	default:
		return "error"
	}
}
