/*
Package server serves repository cards over HTTP.

# Routes

	GET /                   302 to the example repository's card
	GET /{owner}/{repo}     the card; ".svg" selects the format, other
	                        suffixes are part of the name ("next.js")
	GET /health             liveness
	GET /ready              readiness: disk cache and upstream circuit
	GET /version            build information
	GET /status             limiter and upstream snapshot (token guarded)
	GET /metrics            Prometheus metrics, when enabled

Card requests accept "theme" and "scale" (or "s") query parameters. The
scale is clamped to [0.1, 3.5]; values longer than ten characters after
trailing zeros are trimmed are rejected.

# Errors

Every error is JSON:

	{"error": "not_found", "message": "repository \"a/b\" not found", "status": 404}

Missing repositories map to 404, admission denials and GitHub quota
exhaustion to 429 with Retry-After, rejected GitHub credentials to 401, an
open circuit to 503, other GitHub failures to 502, malformed requests to
400 and rendering failures to 500.

# Lifecycle

	srv, err := server.New(cfg, server.Dependencies{
	    Cards:    card.NewService(client, renderer, contentCache),
	    Limiter:  limiter,
	    Upstream: client,
	    Cache:    contentCache,
	    Metrics:  collector,
	    Tracer:   tracer.Tracer(),
	}, server.BuildInfo{Version: version})
	if err != nil {
	    return err
	}
	return srv.Start(ctx) // returns after ctx is cancelled and in-flight requests finish
*/
package server
