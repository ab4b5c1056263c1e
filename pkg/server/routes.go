package server

import (
	"net/http"

	"glim-hq/cards/pkg/limits/ratelimit"
	"glim-hq/cards/pkg/server/middleware"
	"glim-hq/cards/pkg/telemetry/health"
	"glim-hq/cards/pkg/telemetry/tracing"
)

// Route names used for metrics labels and span names.
const (
	RouteIndex   = "index"
	RouteCard    = "card"
	RouteStatus  = "status"
	RouteHealth  = "health"
	RouteReady   = "ready"
	RouteVersion = "version"
	RouteMetrics = "metrics"
)

// Handler returns the complete handler: routes plus the middleware chain.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	hc := s.config.Telemetry.Health

	s.route(mux, "GET /{$}", RouteIndex, http.HandlerFunc(s.handleIndex))
	s.route(mux, "GET /{owner}/{repo}", RouteCard, middleware.Chain(
		http.HandlerFunc(s.handleCard),
		middleware.AdmissionMiddleware(s.deps.Limiter, s.config.Server.TrustForwardedFor, s.recordAdmission),
	))

	s.route(mux, "GET "+hc.LivenessPath, RouteHealth, s.checker.LivenessHandler())
	s.route(mux, "GET "+hc.ReadinessPath, RouteReady, s.checker.ReadinessHandler())
	s.route(mux, "GET "+hc.VersionPath, RouteVersion,
		health.VersionHandler(s.build.Version, s.build.Commit, s.build.BuildTime))
	s.route(mux, "GET "+hc.StatusPath, RouteStatus, health.StatusHandler(s.statusSnapshot,
		health.NewStatusGuard(hc.StatusToken, hc.HostBypass, hc.StatusRateLimit, hc.StatusBurst)))

	if s.metricsEnabled() {
		mux.Handle("GET "+s.config.Telemetry.Metrics.Path, s.deps.Metrics.Handler())
	}

	return middleware.Chain(mux,
		middleware.RecoveryMiddleware,
		middleware.ServerHeaderMiddleware(s.build.Version),
		middleware.CORSMiddleware(s.config.Server.CORSAllowedOrigins),
		middleware.RequestIDMiddleware,
		middleware.LoggingMiddleware,
	)
}

// route registers h under pattern with per-route tracing and metrics.
func (s *Server) route(mux *http.ServeMux, pattern, name string, h http.Handler) {
	if s.metricsEnabled() {
		h = middleware.MetricsMiddleware(s.deps.Metrics, name)(h)
	}
	mux.Handle(pattern, tracing.HTTPMiddleware(s.deps.Tracer, name, h))
}

func (s *Server) metricsEnabled() bool {
	return s.deps.Metrics != nil && s.deps.Metrics.Enabled()
}

func (s *Server) recordAdmission(result ratelimit.Result) {
	if s.metricsEnabled() {
		s.deps.Metrics.RecordAdmission(result)
	}
}
