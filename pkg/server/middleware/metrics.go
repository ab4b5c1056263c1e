package middleware

import (
	"net/http"
	"time"
)

// RequestRecorder receives per-request measurements.
// *metrics.Collector implements it.
type RequestRecorder interface {
	RequestStarted() func()
	RecordRequest(route string, code int, duration time.Duration, size int)
}

// MetricsMiddleware records the request under a fixed route name so that
// label cardinality does not grow with the repositories requested.
func MetricsMiddleware(recorder RequestRecorder, route string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			done := recorder.RequestStarted()
			defer done()

			start := time.Now()
			rw := newResponseWriter(w)
			next.ServeHTTP(rw, r)
			recorder.RecordRequest(route, rw.statusCode, time.Since(start), rw.bytes)
		})
	}
}
