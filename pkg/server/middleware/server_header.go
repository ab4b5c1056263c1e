package middleware

import "net/http"

// ServerHeaderMiddleware sets "Server: glim/<version>" on every response.
func ServerHeaderMiddleware(version string) Middleware {
	value := "glim/" + version
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Server", value)
			next.ServeHTTP(w, r)
		})
	}
}
