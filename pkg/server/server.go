package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"glim-hq/cards/pkg/cache"
	"glim-hq/cards/pkg/card"
	"glim-hq/cards/pkg/config"
	"glim-hq/cards/pkg/limits/ratelimit"
	"glim-hq/cards/pkg/server/middleware"
	"glim-hq/cards/pkg/telemetry/health"
	"glim-hq/cards/pkg/telemetry/metrics"
	"glim-hq/cards/pkg/upstream"
)

// CardService produces cards. *card.Service implements it.
type CardService interface {
	Card(ctx context.Context, m card.Meaning) (*cache.Entry, error)
}

// Limiter admits requests and reports its state. *ratelimit.Limiter
// implements it.
type Limiter interface {
	middleware.Admitter
	Status() ratelimit.Status
}

// UpstreamStatus reports the GitHub client's state. *upstream.Client
// implements it.
type UpstreamStatus interface {
	Status() upstream.Status
}

// ContentCache reports the content cache's state. *cache.Cache implements it.
type ContentCache interface {
	Stats(ctx context.Context) (cache.Stats, error)
	Ping(ctx context.Context) error
}

// Dependencies are the components the server is built from. Cards,
// Limiter and Upstream are required.
type Dependencies struct {
	Cards    CardService
	Limiter  Limiter
	Upstream UpstreamStatus

	// Cache is reported on /status and checked by /ready when set.
	Cache ContentCache

	// Metrics records HTTP and admission metrics and serves /metrics when
	// enabled.
	Metrics *metrics.Collector

	// Tracer creates server spans. Nil disables tracing.
	Tracer trace.Tracer
}

// BuildInfo identifies the running binary.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildTime string
}

// Server is the card HTTP server. It listens on every configured address
// with a single http.Server.
type Server struct {
	config  *config.Config
	deps    Dependencies
	build   BuildInfo
	checker *health.Checker
	started time.Time

	mu         sync.RWMutex
	httpServer *http.Server
	listeners  []net.Listener
	ready      chan struct{}
	isRunning  bool
}

// New creates a server. It registers the readiness checks for the given
// dependencies but does not listen until Start.
func New(cfg *config.Config, deps Dependencies, build BuildInfo) (*Server, error) {
	if deps.Cards == nil || deps.Limiter == nil || deps.Upstream == nil {
		return nil, errors.New("server requires a card service, a limiter and an upstream client")
	}
	if deps.Tracer == nil {
		deps.Tracer = noop.NewTracerProvider().Tracer("")
	}
	if build.Version == "" {
		build.Version = "dev"
	}

	s := &Server{
		config:  cfg,
		deps:    deps,
		build:   build,
		checker: health.New(cfg.Telemetry.Health.CheckTimeout),
		started: time.Now(),
		ready:   make(chan struct{}),
	}

	s.checker.RegisterCheck("upstream_circuit", func(context.Context) error {
		st := deps.Upstream.Status()
		if st.CircuitState != "open" {
			return nil
		}
		if st.CircuitOpenUntil != nil {
			return fmt.Errorf("circuit open until %s", st.CircuitOpenUntil.UTC().Format(time.RFC3339))
		}
		return errors.New("circuit open")
	})
	if deps.Cache != nil {
		s.checker.RegisterCheck("disk_cache", deps.Cache.Ping)
	}

	return s, nil
}

// Checker returns the readiness checker so callers can register more checks.
func (s *Server) Checker() *health.Checker {
	return s.checker
}

// Start binds every listen address and serves until ctx is cancelled or a
// listener fails, then shuts down gracefully. A bind failure closes the
// listeners already opened and is returned immediately.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return errors.New("server is already running")
	}

	addrs, err := s.config.Server.ListenAddresses()
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("invalid listen address: %w", err)
	}

	var lc net.ListenConfig
	listeners := make([]net.Listener, 0, len(addrs))
	for _, addr := range addrs {
		ln, err := lc.Listen(ctx, "tcp", addr)
		if err != nil {
			for _, l := range listeners {
				_ = l.Close()
			}
			s.mu.Unlock()
			return fmt.Errorf("failed to listen on %s: %w", addr, err)
		}
		listeners = append(listeners, ln)
	}

	sc := s.config.Server
	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadTimeout:       sc.ReadTimeout,
		ReadHeaderTimeout: sc.ReadTimeout,
		WriteTimeout:      sc.WriteTimeout,
		IdleTimeout:       sc.IdleTimeout,
		MaxHeaderBytes:    sc.MaxHeaderBytes,
		ErrorLog:          slog.NewLogLogger(slog.Default().Handler(), slog.LevelWarn),
	}
	s.listeners = listeners
	s.isRunning = true
	srv := s.httpServer
	close(s.ready)
	s.mu.Unlock()

	errCh := make(chan error, len(listeners))
	for _, ln := range listeners {
		slog.Info("listening", "address", "http://"+ln.Addr().String())
		go func() {
			if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("server error on %s: %w", ln.Addr(), err)
			}
		}()
	}

	select {
	case <-ctx.Done():
		slog.Info("context cancelled, initiating shutdown")
		return s.Shutdown(context.Background())
	case err := <-errCh:
		_ = s.Shutdown(context.Background())
		return err
	}
}

// Ready is closed once Start has bound its listeners.
func (s *Server) Ready() <-chan struct{} {
	return s.ready
}

// Addrs returns the bound listener addresses. It is empty before Start.
func (s *Server) Addrs() []net.Addr {
	s.mu.RLock()
	defer s.mu.RUnlock()
	addrs := make([]net.Addr, len(s.listeners))
	for i, ln := range s.listeners {
		addrs[i] = ln.Addr()
	}
	return addrs
}

// Shutdown stops accepting connections and waits, up to the configured
// shutdown timeout, for in-flight requests to finish.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	srv := s.httpServer
	s.mu.Unlock()

	timeout := s.config.Server.ShutdownTimeout
	slog.Info("initiating graceful shutdown", "timeout", timeout.String())

	shutdownCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("error during server shutdown", "error", err)
		_ = srv.Close()
		return fmt.Errorf("server shutdown error: %w", err)
	}
	slog.Info("server stopped")
	return nil
}

// IsRunning returns true while the server is serving.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}
