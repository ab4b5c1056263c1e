package middleware

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"glim-hq/cards/pkg/limits/ratelimit"
	"glim-hq/cards/pkg/server/types"
	"glim-hq/cards/pkg/telemetry/logging"
)

// Admitter decides whether a client may start a request.
// *ratelimit.Limiter implements it.
type Admitter interface {
	Check(clientKey string) ratelimit.Result
	Config() ratelimit.Config
}

// AdmissionMiddleware rejects requests with 429 when the global or the
// client's bucket is empty. The client IP is stored in the context for
// logging. record, when non-nil, is called with every decision.
func AdmissionMiddleware(admitter Admitter, trustForwarded bool, record func(ratelimit.Result)) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			client := ClientIP(r, trustForwarded)
			ctx := logging.WithClient(r.Context(), client)

			result := admitter.Check(client)
			if record != nil {
				record(result)
			}
			if result == ratelimit.Allowed {
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			slog.WarnContext(ctx, "request rejected by admission control", "result", result.String())
			w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(admitter.Config())))
			types.NewErrorResponse(
				http.StatusTooManyRequests,
				types.CodeRateLimitExceeded,
				result.Err().Error(),
			).Write(w)
		})
	}
}

// retryAfterSeconds is the wait until the next refill. Buckets earn at
// least one token per second, so a denied client can retry after one tick.
func retryAfterSeconds(cfg ratelimit.Config) int {
	return int(max(1, (cfg.RefillInterval+time.Second-1)/time.Second))
}
