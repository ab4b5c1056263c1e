package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"glim-hq/cards/pkg/cache"
	"glim-hq/cards/pkg/card"
	"glim-hq/cards/pkg/cli"
	"glim-hq/cards/pkg/config"
	"glim-hq/cards/pkg/limits/ratelimit"
	"glim-hq/cards/pkg/server"
	"glim-hq/cards/pkg/telemetry/logging"
	"glim-hq/cards/pkg/telemetry/metrics"
	"glim-hq/cards/pkg/telemetry/tracing"
	"glim-hq/cards/pkg/upstream"
)

const configDebounce = 500 * time.Millisecond

var serveFlags struct {
	listenAddress string
	port          int
	token         string
	logLevel      string
	dryRun        bool
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the card server",
	Long: `Start the card server with the specified configuration.

The configuration file is optional. Without one the server listens on
127.0.0.1:8080 and reads GITHUB_TOKEN, PORT, HEALTHCHECK_TOKEN and
HEALTHCHECK_HOST_BYPASS from the environment. Changes to the log level in
the configuration file apply without a restart.

Examples:
  # Start with defaults
  glim serve

  # Listen on every interface, IPv4 and IPv6
  glim serve --listen 0.0.0.0,[::]

  # Validate config without starting the server
  glim serve --config /etc/glim/config.yaml --dry-run`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVarP(&serveFlags.listenAddress, "listen", "l", "", "override listen addresses (comma-separated)")
	serveCmd.Flags().IntVarP(&serveFlags.port, "port", "p", 0, "override the default port")
	serveCmd.Flags().StringVar(&serveFlags.token, "token", "", "GitHub token (prefer GITHUB_TOKEN)")
	serveCmd.Flags().StringVar(&serveFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	serveCmd.Flags().BoolVar(&serveFlags.dryRun, "dry-run", false, "validate config without starting the server")
}

// serveConfig loads the configuration and applies flag overrides.
func serveConfig() (*config.Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	if serveFlags.listenAddress != "" {
		cfg.Server.ListenAddress = serveFlags.listenAddress
	}
	if serveFlags.port != 0 {
		cfg.Server.Port = serveFlags.port
	}
	if serveFlags.token != "" {
		cfg.GitHub.Token = serveFlags.token
	}
	if serveFlags.logLevel != "" {
		cfg.Telemetry.Logging.Level = serveFlags.logLevel
	}

	if err := config.Validate(cfg); err != nil {
		return nil, cli.NewConfigError("flags", "invalid configuration", err)
	}
	return cfg, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := serveConfig()
	if err != nil {
		return err
	}

	logger, err := newLogger(&cfg.Telemetry.Logging)
	if err != nil {
		return err
	}
	slog.SetDefault(logger.Slog())

	addrs, err := cfg.Server.ListenAddresses()
	if err != nil {
		return cli.NewConfigError("server.listen_address", "invalid listen address", err)
	}
	if serveFlags.dryRun {
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Configuration valid (listen: %v)\n", addrs)
		return nil
	}

	ctx, stop := cli.SignalContext(cmd.Context())
	defer stop()

	slog.Info("starting glim",
		"version", Version,
		"commit", GitCommit,
		"config", cfgFile,
		"github_token", cfg.GitHub.Token != "",
	)
	if cfg.GitHub.Token == "" {
		slog.Warn("no GitHub token configured, upstream requests are limited to 60 per hour")
	}

	tracer, err := tracing.New(&cfg.Telemetry.Tracing, tracing.WithServiceVersion(Version))
	if err != nil {
		return cli.NewConfigError("telemetry.tracing", "failed to initialize tracing", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracer.Shutdown(shutdownCtx); err != nil {
			slog.Warn("tracer shutdown failed", "error", err)
		}
	}()

	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)

	limiter := ratelimit.NewLimiter(limiterConfig(cfg))
	limiter.Start(ctx)
	defer limiter.Stop()
	collector.TrackLimiter(limiter.Status)

	client := upstream.NewClient(upstreamConfig(cfg),
		upstream.WithObserver(collector),
		upstream.WithTracer(tracer.Tracer()),
	)
	defer client.Close()
	if cfg.GitHub.QuotaInterval > 0 {
		client.StartQuotaMonitor(ctx)
	}

	contentCache, err := cache.New(ctx, cacheConfig(cfg),
		cache.WithObserver(collector),
		cache.WithTracer(tracer.Tracer()),
	)
	if err != nil {
		return cli.NewCommandError("serve", err)
	}
	defer contentCache.Close()
	collector.TrackMemoryHitRatio(contentCache.MemoryHitRatio)

	scheduler := cache.NewScheduler(contentCache, cfg.Cache.MaintenanceSchedule)
	if err := scheduler.Start(ctx); err != nil {
		return cli.NewConfigError("cache.maintenance_schedule", "invalid schedule", err)
	}
	defer scheduler.Stop()

	renderer, err := card.NewRenderer(card.WithTracer(tracer.Tracer()))
	if err != nil {
		return cli.NewCommandError("serve", err)
	}

	srv, err := server.New(cfg, server.Dependencies{
		Cards:    card.NewService(client, renderer, contentCache),
		Limiter:  limiter,
		Upstream: client,
		Cache:    contentCache,
		Metrics:  collector,
		Tracer:   tracer.Tracer(),
	}, server.BuildInfo{
		Version:   Version,
		Commit:    GitCommit,
		BuildTime: BuildDate,
	})
	if err != nil {
		return cli.NewCommandError("serve", err)
	}

	if configFileExists() {
		watchConfig(ctx, logger)
	}

	if err := srv.Start(ctx); err != nil {
		return cli.NewCommandError("serve", err)
	}
	slog.Info("shutdown complete")
	return nil
}

// watchConfig applies log level changes from the configuration file until
// ctx is done. Other settings need a restart.
func watchConfig(ctx context.Context, logger *logging.Logger) {
	watcher, err := config.NewWatcher(cfgFile, configDebounce, logger.Slog())
	if err != nil {
		slog.Warn("configuration watcher unavailable", "error", err)
		return
	}

	go func() {
		<-ctx.Done()
		_ = watcher.Stop()
	}()
	go func() {
		err := watcher.Watch(ctx, func(cfg *config.Config) {
			level := cfg.Telemetry.Logging.Level
			if serveFlags.logLevel != "" {
				level = serveFlags.logLevel
			}
			if err := logger.SetLevel(level); err != nil {
				slog.Warn("ignoring reloaded log level", "level", level, "error", err)
			}
			slog.Info("configuration reloaded; settings other than the log level apply on restart")
		})
		if err != nil {
			slog.Warn("configuration watcher stopped", "error", err)
		}
	}()
}
