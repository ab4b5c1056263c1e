package middleware

import (
	"log/slog"
	"net/http"
	"time"
)

// slowRequest is the latency above which a completed request is logged at
// warn level.
const slowRequest = time.Second

// LoggingMiddleware logs one line per request with its outcome. The request
// ID and trace IDs come from the context.
//
//	{
//	  "level": "INFO",
//	  "msg": "request completed",
//	  "request_id": "0b6c1a5e-...",
//	  "method": "GET",
//	  "path": "/xevion/glim.svg",
//	  "status": 200,
//	  "bytes": 1843,
//	  "latency_ms": 12
//	}
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := newResponseWriter(w)

		next.ServeHTTP(rw, r)

		latency := time.Since(start)
		level := slog.LevelInfo
		switch {
		case rw.statusCode >= 500:
			level = slog.LevelError
		case rw.statusCode >= 400, latency > slowRequest:
			level = slog.LevelWarn
		}

		slog.Log(r.Context(), level, "request completed",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rw.statusCode,
			"bytes", rw.bytes,
			"latency_ms", latency.Milliseconds(),
			"remote_addr", r.RemoteAddr,
			"user_agent", r.UserAgent(),
		)
	})
}
