package middleware

import (
	"net/http"
	"slices"
	"strings"
)

// CORS header values for the read-only card API.
const (
	corsAllowMethods  = "GET, HEAD, OPTIONS"
	corsExposeHeaders = "ETag, Retry-After, X-Cache, X-Request-ID"
	corsMaxAge        = "3600"
)

// CORSMiddleware adds Cross-Origin Resource Sharing headers for the given
// origins and answers preflight requests with 204. "*" allows any origin.
// With no origins the middleware does nothing.
//
// Example usage:
//
//	handler = CORSMiddleware([]string{"https://example.com"})(handler)
func CORSMiddleware(allowedOrigins []string) Middleware {
	wildcard := slices.Contains(allowedOrigins, "*")

	return func(next http.Handler) http.Handler {
		if len(allowedOrigins) == 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin == "" {
				next.ServeHTTP(w, r)
				return
			}

			h := w.Header()
			switch {
			case wildcard:
				h.Set("Access-Control-Allow-Origin", "*")
			case slices.Contains(allowedOrigins, origin):
				h.Set("Access-Control-Allow-Origin", origin)
				h.Add("Vary", "Origin")
			default:
				next.ServeHTTP(w, r)
				return
			}
			h.Set("Access-Control-Expose-Headers", corsExposeHeaders)

			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				h.Set("Access-Control-Allow-Methods", corsAllowMethods)
				if reqHeaders := r.Header.Get("Access-Control-Request-Headers"); reqHeaders != "" {
					h.Set("Access-Control-Allow-Headers", strings.ToLower(reqHeaders))
				}
				h.Set("Access-Control-Max-Age", corsMaxAge)
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
