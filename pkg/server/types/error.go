package types

import (
	"encoding/json"
	"net/http"
)

// ErrorResponse is the JSON body of every error the service returns.
//
//	{"error": "not_found", "message": "repository \"a/b\" not found", "status": 404}
type ErrorResponse struct {
	// Error is a stable machine-readable code.
	Error string `json:"error"`

	// Message is a human-readable description.
	Message string `json:"message"`

	// Status repeats the HTTP status code.
	Status int `json:"status"`
}

// Error codes.
const (
	CodeInvalidRequest     = "invalid_request"
	CodeNotFound           = "not_found"
	CodeRateLimitExceeded  = "rate_limit_exceeded"
	CodeUpstreamRateLimit  = "upstream_rate_limited"
	CodeUpstreamAuth       = "upstream_auth_failed"
	CodeUpstreamError      = "upstream_error"
	CodeServiceUnavailable = "service_unavailable"
	CodeGatewayTimeout     = "gateway_timeout"
	CodeGenerationFailed   = "generation_failed"
	CodeInternalError      = "internal_error"
	CodeMethodNotAllowed   = "method_not_allowed"
)

// NewErrorResponse creates an error body.
func NewErrorResponse(status int, code, message string) *ErrorResponse {
	return &ErrorResponse{Error: code, Message: message, Status: status}
}

// NewInvalidRequestError creates a 400 error body.
func NewInvalidRequestError(message string) *ErrorResponse {
	return NewErrorResponse(http.StatusBadRequest, CodeInvalidRequest, message)
}

// NewServerError creates a 500 error body.
func NewServerError(message string) *ErrorResponse {
	return NewErrorResponse(http.StatusInternalServerError, CodeInternalError, message)
}

// Write sends e as JSON with its status code. Error responses are never
// cached by intermediaries.
func (e *ErrorResponse) Write(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(e.Status)
	_ = json.NewEncoder(w).Encode(e)
}
