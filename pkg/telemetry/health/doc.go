// Package health serves the service's probe and status endpoints.
//
// Liveness (/health) answers 200 whenever the process can serve HTTP.
// Readiness (/ready) runs the registered checks concurrently, each bounded
// by the checker's timeout, and answers 503 when any fails. The server
// registers two checks: the disk cache database answers a ping, and the
// upstream circuit breaker is not open.
//
// The status endpoint (/status) returns a JSON snapshot of the admission
// limiter and the upstream client. It is throttled with a token bucket and,
// when a token is configured, requires it as a bearer credential unless the
// request is addressed to the bypass host:
//
//	checker := health.New(cfg.CheckTimeout)
//	checker.RegisterCheck("disk_cache", cache.Ping)
//	mux.Handle(cfg.ReadinessPath, checker.ReadinessHandler())
//	mux.Handle(cfg.StatusPath, health.StatusHandler(snapshot,
//	    health.NewStatusGuard(cfg.StatusToken, cfg.HostBypass, cfg.StatusRateLimit, cfg.StatusBurst)))
package health
