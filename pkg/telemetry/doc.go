// Package telemetry groups the service's observability packages.
//
//   - logging: slog construction, runtime level changes and token redaction
//   - metrics: Prometheus collectors for HTTP, admission, upstream and cache
//   - tracing: OpenTelemetry tracer setup and HTTP propagation
//   - health: liveness, readiness, version and status endpoints
package telemetry
