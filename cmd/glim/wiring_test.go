package main

import (
	"testing"
	"time"

	"glim-hq/cards/pkg/config"
)

func TestUpstreamConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.GitHub.Token = "ghp_test"
	cfg.GitHub.BaseURL = "http://github.test"
	cfg.Upstream.RetryBudget = 7
	cfg.Upstream.Breaker.ConsecutiveFailures = 9
	cfg.Upstream.Breaker.MaxBackoff = 2 * time.Minute

	got := upstreamConfig(cfg)
	if got.Token != "ghp_test" || got.BaseURL != "http://github.test" {
		t.Errorf("github settings not carried: %+v", got)
	}
	if got.RetryBudget != 7 {
		t.Errorf("RetryBudget = %d", got.RetryBudget)
	}
	if got.Breaker.ConsecutiveFailures != 9 || got.Breaker.MaxBackoff != 2*time.Minute {
		t.Errorf("breaker settings not carried: %+v", got.Breaker)
	}
	if got.Breaker.SuccessRateThreshold != cfg.Upstream.Breaker.SuccessRateThreshold {
		t.Errorf("SuccessRateThreshold = %v", got.Breaker.SuccessRateThreshold)
	}
}

func TestCacheAndLimiterConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Cache.Dir = "/var/cache/glim"
	cfg.Cache.MaxAge = 0
	cfg.RateLimit.ClientPerMinute = 12

	cc := cacheConfig(cfg)
	if cc.Dir != "/var/cache/glim" || cc.MaxAge != 0 {
		t.Errorf("cache config = %+v", cc)
	}
	if cc.GenerateTimeout != cfg.Cache.GenerateTimeout {
		t.Errorf("GenerateTimeout = %v", cc.GenerateTimeout)
	}

	lc := limiterConfig(cfg)
	if lc.ClientPerMinute != 12 || lc.GlobalPerMinute != cfg.RateLimit.GlobalPerMinute {
		t.Errorf("limiter config = %+v", lc)
	}
}

func TestNewLogger(t *testing.T) {
	if _, err := newLogger(&config.LoggingConfig{Level: "debug", Format: "text"}); err != nil {
		t.Errorf("newLogger() error = %v", err)
	}
	if _, err := newLogger(&config.LoggingConfig{Level: "loud"}); err == nil {
		t.Error("newLogger() accepted an unknown level")
	}
}
