package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
	"go.opentelemetry.io/otel/trace"

	"glim-hq/cards/pkg/cache"
	"glim-hq/cards/pkg/limits/ratelimit"
	"glim-hq/cards/pkg/telemetry/logging"
	"glim-hq/cards/pkg/telemetry/tracing"
	"glim-hq/cards/pkg/upstream"
)

// slowCard is the generation latency above which a card is logged at warn.
const slowCard = time.Second

// handleIndex redirects to the example repository's card.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/"+s.config.Server.ExampleRepository, http.StatusFound)
}

// handleCard serves GET /{owner}/{repo}[.ext].
func (s *Server) handleCard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	span := trace.SpanFromContext(ctx)
	tracing.SetRequestAttributes(span, logging.GetRequestID(ctx), logging.GetClient(ctx))

	meaning, err := parseCardRequest(r.PathValue("owner"), r.PathValue("repo"), r.URL.Query())
	if err != nil {
		resp := writeError(w, err)
		tracing.SetResponseAttributes(span, resp.Status, "", resp.Error)
		return
	}

	ctx = logging.WithRepository(ctx, meaning.Repository())
	tracing.SetCardAttributes(span, meaning.Repository(), meaning.Theme)

	start := time.Now()
	entry, err := s.deps.Cards.Card(ctx, meaning)
	if err != nil {
		if errors.Is(err, context.Canceled) && r.Context().Err() != nil {
			slog.DebugContext(ctx, "client went away before the card was ready")
			return
		}
		resp := writeError(w, err)
		tracing.SetStatus(span, err)
		tracing.SetResponseAttributes(span, resp.Status, "", resp.Error)
		level := slog.LevelWarn
		if resp.Status >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		slog.Log(ctx, level, "card request failed", "status", resp.Status, "error", err)
		return
	}

	if elapsed := time.Since(start); elapsed > slowCard {
		slog.WarnContext(ctx, "slow card", "tier", entry.Tier, "duration_ms", elapsed.Milliseconds())
	}

	s.writeCard(w, r, meaning.Format.ContentType(), entry)
	tracing.SetResponseAttributes(span, http.StatusOK, entry.Tier, "")
}

// writeCard sends a card with caching headers, answering conditional
// requests with 304.
func (s *Server) writeCard(w http.ResponseWriter, r *http.Request, contentType string, entry *cache.Entry) {
	etag := fmt.Sprintf(`"%016x"`, xxhash.Sum64(entry.Data))

	h := w.Header()
	h.Set("ETag", etag)
	h.Set("Cache-Control", cacheControl(s.config.Server.CardMaxAge))
	h.Set("X-Cache", entry.Tier)
	if !entry.CreatedAt.IsZero() {
		h.Set("Last-Modified", entry.CreatedAt.UTC().Format(http.TimeFormat))
	}

	if match := r.Header.Get("If-None-Match"); match != "" && (match == etag || match == "*") {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	h.Set("Content-Type", contentType)
	h.Set("Content-Length", strconv.Itoa(len(entry.Data)))
	h.Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(http.StatusOK)
	if r.Method != http.MethodHead {
		_, _ = w.Write(entry.Data)
	}
}

func cacheControl(maxAge time.Duration) string {
	if maxAge <= 0 {
		return "no-cache"
	}
	return fmt.Sprintf("public, max-age=%d", int(maxAge/time.Second))
}

// StatusReport is the body of the status endpoint.
type StatusReport struct {
	Version   string           `json:"version"`
	Uptime    string           `json:"uptime"`
	RateLimit ratelimit.Status `json:"rate_limit"`
	Upstream  upstream.Status  `json:"upstream"`
	Cache     *cache.Stats     `json:"cache,omitempty"`
}

func (s *Server) statusSnapshot(ctx context.Context) any {
	report := StatusReport{
		Version:   s.build.Version,
		Uptime:    time.Since(s.started).Round(time.Second).String(),
		RateLimit: s.deps.Limiter.Status(),
		Upstream:  s.deps.Upstream.Status(),
	}
	if s.deps.Cache != nil {
		stats, err := s.deps.Cache.Stats(ctx)
		if err != nil {
			slog.WarnContext(ctx, "failed to read cache stats", "error", err)
		} else {
			report.Cache = &stats
		}
	}
	return report
}
