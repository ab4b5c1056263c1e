package main

import (
	"os"

	"glim-hq/cards/pkg/breaker"
	"glim-hq/cards/pkg/cache"
	"glim-hq/cards/pkg/cli"
	"glim-hq/cards/pkg/config"
	"glim-hq/cards/pkg/limits/ratelimit"
	"glim-hq/cards/pkg/telemetry/logging"
	"glim-hq/cards/pkg/upstream"
)

// loadConfig reads cfgFile, falling back to defaults when it does not
// exist. Environment overrides are applied either way.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadOrDefault(cfgFile)
	if err != nil {
		return nil, cli.NewConfigError("config", "failed to load "+cfgFile, err)
	}
	return cfg, nil
}

// configFileExists reports whether cfgFile is present and can be watched.
func configFileExists() bool {
	if cfgFile == "" {
		return false
	}
	info, err := os.Stat(cfgFile)
	return err == nil && info.Mode().IsRegular()
}

func newLogger(cfg *config.LoggingConfig) (*logging.Logger, error) {
	logger, err := logging.New(logging.Config{
		Level:        cfg.Level,
		Format:       cfg.Format,
		AddSource:    cfg.AddSource,
		RedactTokens: cfg.RedactTokens,
	})
	if err != nil {
		return nil, cli.NewConfigError("telemetry.logging", "invalid logging configuration", err)
	}
	return logger, nil
}

func upstreamConfig(cfg *config.Config) upstream.Config {
	b := cfg.Upstream.Breaker
	return upstream.Config{
		BaseURL:         cfg.GitHub.BaseURL,
		Token:           cfg.GitHub.Token,
		UserAgent:       cfg.GitHub.UserAgent,
		Timeout:         cfg.GitHub.Timeout,
		CacheTTL:        cfg.Upstream.CacheTTL,
		RetryBudget:     cfg.Upstream.RetryBudget,
		CleanupInterval: cfg.Upstream.CleanupInterval,
		QuotaInterval:   cfg.GitHub.QuotaInterval,
		Breaker: breaker.Config{
			SuccessRateThreshold: b.SuccessRateThreshold,
			MinSamples:           b.MinSamples,
			Window:               b.Window,
			ConsecutiveFailures:  b.ConsecutiveFailures,
			MinBackoff:           b.MinBackoff,
			MaxBackoff:           b.MaxBackoff,
			ProbeTimeout:         b.ProbeTimeout,
		},
	}
}

func cacheConfig(cfg *config.Config) cache.Config {
	return cache.Config{
		Dir:             cfg.Cache.Dir,
		DiskMaxBytes:    cfg.Cache.DiskMaxBytes,
		MemoryMaxCost:   cfg.Cache.MemoryMaxCost,
		MaxAge:          cfg.Cache.MaxAge,
		GenerateTimeout: cfg.Cache.GenerateTimeout,
	}
}

func limiterConfig(cfg *config.Config) ratelimit.Config {
	return ratelimit.Config{
		GlobalPerMinute: cfg.RateLimit.GlobalPerMinute,
		ClientPerMinute: cfg.RateLimit.ClientPerMinute,
		ClientMemory:    cfg.RateLimit.ClientMemory,
		RefillInterval:  cfg.RateLimit.RefillInterval,
		MaxClients:      cfg.RateLimit.MaxClients,
	}
}
