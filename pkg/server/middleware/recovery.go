package middleware

import (
	"errors"
	"log/slog"
	"net/http"
	"runtime/debug"

	"glim-hq/cards/pkg/server/types"
)

// RecoveryMiddleware turns a handler panic into a 500 response and logs the
// stack. Nothing is written if the handler already sent its headers.
// http.ErrAbortHandler is re-raised so the server aborts the connection.
func RecoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rw := newResponseWriter(w)
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if err, ok := rec.(error); ok && errors.Is(err, http.ErrAbortHandler) {
				panic(rec)
			}

			slog.ErrorContext(r.Context(), "panic in handler",
				"error", rec,
				"method", r.Method,
				"path", r.URL.Path,
				"stack", string(debug.Stack()),
			)
			if !rw.written {
				types.NewServerError("An internal error occurred. Please try again later.").Write(rw)
			}
		}()

		next.ServeHTTP(rw, r)
	})
}
