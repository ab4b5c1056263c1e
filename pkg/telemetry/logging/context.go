package logging

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/trace"
)

// Context keys for common log fields.
type contextKey string

const (
	// RequestIDKey is the context key for request IDs.
	RequestIDKey contextKey = "request_id"

	// ClientKey is the context key for the rate-limited client identity.
	ClientKey contextKey = "client"

	// RepositoryKey is the context key for the requested owner/repo.
	RepositoryKey contextKey = "repository"
)

// WithRequestID adds a request ID to the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// GetRequestID retrieves the request ID from the context.
func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		return requestID
	}
	return ""
}

// WithClient adds the client identity to the context.
func WithClient(ctx context.Context, client string) context.Context {
	return context.WithValue(ctx, ClientKey, client)
}

// GetClient retrieves the client identity from the context.
func GetClient(ctx context.Context) string {
	if client, ok := ctx.Value(ClientKey).(string); ok {
		return client
	}
	return ""
}

// WithRepository adds the requested repository to the context.
func WithRepository(ctx context.Context, repository string) context.Context {
	return context.WithValue(ctx, RepositoryKey, repository)
}

// GetRepository retrieves the requested repository from the context.
func GetRepository(ctx context.Context) string {
	if repo, ok := ctx.Value(RepositoryKey).(string); ok {
		return repo
	}
	return ""
}

// contextAttrs extracts common fields from context for logging. The trace
// and span IDs come from the active OpenTelemetry span, if it is sampled.
func contextAttrs(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}

	var attrs []slog.Attr
	if requestID := GetRequestID(ctx); requestID != "" {
		attrs = append(attrs, slog.String(string(RequestIDKey), requestID))
	}
	if client := GetClient(ctx); client != "" {
		attrs = append(attrs, slog.String(string(ClientKey), client))
	}
	if repo := GetRepository(ctx); repo != "" {
		attrs = append(attrs, slog.String(string(RepositoryKey), repo))
	}
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() && sc.IsSampled() {
		attrs = append(attrs,
			slog.String("trace_id", sc.TraceID().String()),
			slog.String("span_id", sc.SpanID().String()),
		)
	}
	return attrs
}

// contextHandler adds context fields to every record logged through a
// *Context method.
type contextHandler struct {
	inner slog.Handler
}

func newContextHandler(inner slog.Handler) *contextHandler {
	return &contextHandler{inner: inner}
}

func (h *contextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *contextHandler) Handle(ctx context.Context, r slog.Record) error {
	if attrs := contextAttrs(ctx); len(attrs) > 0 {
		r = r.Clone()
		r.AddAttrs(attrs...)
	}
	return h.inner.Handle(ctx, r)
}

func (h *contextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &contextHandler{inner: h.inner.WithAttrs(attrs)}
}

func (h *contextHandler) WithGroup(name string) slog.Handler {
	return &contextHandler{inner: h.inner.WithGroup(name)}
}
