// Package middleware provides the HTTP middleware of the card server.
//
// The server wraps every route with, from the outside in:
//
//	RecoveryMiddleware      panic -> 500 JSON
//	ServerHeaderMiddleware  Server: glim/<version>
//	RequestIDMiddleware     X-Request-ID, context correlation
//	LoggingMiddleware       one log line per request
//
// Card routes additionally get tracing, MetricsMiddleware and
// AdmissionMiddleware, which checks the client's IP against the rate
// limiter before any upstream or rendering work starts.
package middleware
