package health

import (
	"context"
	"crypto/subtle"
	"net"
	"net/http"
	"strings"

	"golang.org/x/time/rate"
)

// SnapshotFunc produces the body of the status endpoint.
type SnapshotFunc func(ctx context.Context) any

// StatusGuard controls access to the status endpoint.
type StatusGuard struct {
	// Token, when non-empty, must be presented as "Authorization: Bearer <token>".
	Token string

	// HostBypass, when non-empty, lets requests addressed to this host skip
	// the token check. The port is ignored.
	HostBypass string

	// Limiter throttles the endpoint as a whole. Nil disables throttling.
	Limiter *rate.Limiter
}

// NewStatusGuard builds a guard that admits perSecond requests with the
// given burst. A non-positive perSecond disables throttling.
func NewStatusGuard(token, hostBypass string, perSecond float64, burst int) StatusGuard {
	g := StatusGuard{Token: token, HostBypass: hostBypass}
	if perSecond > 0 {
		if burst < 1 {
			burst = 1
		}
		g.Limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
	return g
}

// Authorized reports whether r may read the status endpoint.
func (g StatusGuard) Authorized(r *http.Request) bool {
	if g.Token == "" {
		return true
	}
	if g.HostBypass != "" && strings.EqualFold(hostname(r.Host), hostname(g.HostBypass)) {
		return true
	}

	scheme, presented, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(strings.TrimSpace(presented)), []byte(g.Token)) == 1
}

// StatusHandler serves snapshot as JSON behind guard. Throttled requests
// get 429 before any authorization check so the endpoint cannot be used
// to probe tokens quickly.
func StatusHandler(snapshot SnapshotFunc, guard StatusGuard) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !allowMethod(w, r) {
			return
		}
		if guard.Limiter != nil && !guard.Limiter.Allow() {
			w.Header().Set("Retry-After", "1")
			http.Error(w, "Too many requests", http.StatusTooManyRequests)
			return
		}
		if !guard.Authorized(r) {
			w.Header().Set("WWW-Authenticate", `Bearer realm="status"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		writeJSON(w, r, http.StatusOK, snapshot(r.Context()))
	}
}

func hostname(hostport string) string {
	if host, _, err := net.SplitHostPort(hostport); err == nil {
		return strings.Trim(host, "[]")
	}
	return strings.Trim(hostport, "[]")
}
