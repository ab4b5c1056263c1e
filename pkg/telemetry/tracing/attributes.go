package tracing

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys shared by the service's spans. Standard HTTP keys follow
// OpenTelemetry semantic conventions; service-specific keys use the
// "glim." namespace.
const (
	AttrRequestID  = "glim.request_id"
	AttrClient     = "glim.client"
	AttrRepository = "glim.repository"
	AttrTheme      = "glim.theme"
	AttrAdmission  = "glim.admission"
	AttrCacheTier  = "glim.cache.tier"
	AttrStatusCode = "http.response.status_code"
	AttrErrorType  = "error.type"
)

// SetRequestAttributes sets request identity attributes on a span.
func SetRequestAttributes(span trace.Span, requestID, client string) {
	attrs := make([]attribute.KeyValue, 0, 2)
	if requestID != "" {
		attrs = append(attrs, attribute.String(AttrRequestID, requestID))
	}
	if client != "" {
		attrs = append(attrs, attribute.String(AttrClient, client))
	}
	span.SetAttributes(attrs...)
}

// SetCardAttributes sets the requested card on a span.
func SetCardAttributes(span trace.Span, repository, theme string) {
	span.SetAttributes(
		attribute.String(AttrRepository, repository),
		attribute.String(AttrTheme, theme),
	)
}

// SetResponseAttributes records how a request ended. tier is the cache
// tier that served the card, or empty when no card was served.
func SetResponseAttributes(span trace.Span, status int, tier, errorType string) {
	attrs := []attribute.KeyValue{attribute.Int(AttrStatusCode, status)}
	if tier != "" {
		attrs = append(attrs, attribute.String(AttrCacheTier, tier))
	}
	if errorType != "" {
		attrs = append(attrs, attribute.String(AttrErrorType, errorType))
	}
	span.SetAttributes(attrs...)
}

// AddEvent adds a named event to a span.
func AddEvent(span trace.Span, name string, attrs ...attribute.KeyValue) {
	span.AddEvent(name, trace.WithAttributes(attrs...))
}
