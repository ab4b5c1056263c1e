package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "glim.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return path
}

// clearDeploymentEnv blanks the variables a developer machine or CI runner
// may already export. Empty values are ignored by the loader.
func clearDeploymentEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{"GITHUB_TOKEN", "PORT", "HEALTHCHECK_TOKEN", "HEALTHCHECK_HOST_BYPASS"} {
		t.Setenv(name, "")
	}
}

func TestLoadConfig_ValidFile(t *testing.T) {
	path := writeConfig(t, `
server:
  listen_address: "0.0.0.0,[::1]:9000"
  read_timeout: "20s"

github:
  token: "ghp_test"
  timeout: "5s"

upstream:
  retry_budget: 5
  breaker:
    success_rate_threshold: 0.5

cache:
  dir: "/var/cache/glim"

telemetry:
  logging:
    level: "debug"
    format: "text"
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Server.ReadTimeout != 20*time.Second {
		t.Errorf("expected read timeout %v, got %v", 20*time.Second, cfg.Server.ReadTimeout)
	}
	if cfg.GitHub.Token != "ghp_test" {
		t.Errorf("expected token %q, got %q", "ghp_test", cfg.GitHub.Token)
	}
	if cfg.Upstream.RetryBudget != 5 {
		t.Errorf("expected retry budget 5, got %d", cfg.Upstream.RetryBudget)
	}
	if cfg.Upstream.Breaker.SuccessRateThreshold != 0.5 {
		t.Errorf("expected success rate 0.5, got %v", cfg.Upstream.Breaker.SuccessRateThreshold)
	}
	if cfg.Upstream.Breaker.MinSamples != DefaultBreakerMinSamples {
		t.Errorf("expected default min samples, got %d", cfg.Upstream.Breaker.MinSamples)
	}
	if cfg.Cache.Dir != "/var/cache/glim" {
		t.Errorf("expected cache dir %q, got %q", "/var/cache/glim", cfg.Cache.Dir)
	}
	if cfg.Telemetry.Logging.Level != "debug" {
		t.Errorf("expected logging level %q, got %q", "debug", cfg.Telemetry.Logging.Level)
	}

	addrs, err := cfg.Server.ListenAddresses()
	if err != nil {
		t.Fatalf("ListenAddresses() error = %v", err)
	}
	if strings.Join(addrs, " ") != "0.0.0.0:8080 [::1]:9000" {
		t.Errorf("unexpected listen addresses %q", addrs)
	}
}

func TestLoadConfig_ExplicitZeroValuesWin(t *testing.T) {
	path := writeConfig(t, `
server:
  trust_forwarded_for: false
github:
  quota_interval: 0s
cache:
  max_age: 0s
  maintenance_schedule: ""
telemetry:
  metrics:
    enabled: false
  logging:
    redact_tokens: false
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Server.TrustForwardedFor {
		t.Error("trust_forwarded_for: false was overridden")
	}
	if cfg.GitHub.QuotaInterval != 0 {
		t.Errorf("quota_interval = %v, want 0", cfg.GitHub.QuotaInterval)
	}
	if cfg.Cache.MaxAge != 0 {
		t.Errorf("max_age = %v, want 0", cfg.Cache.MaxAge)
	}
	if cfg.Cache.MaintenanceSchedule != "" {
		t.Errorf("maintenance_schedule = %q, want empty", cfg.Cache.MaintenanceSchedule)
	}
	if cfg.Telemetry.Metrics.Enabled {
		t.Error("metrics.enabled: false was overridden")
	}
	if cfg.Telemetry.Logging.RedactTokens {
		t.Error("redact_tokens: false was overridden")
	}
}

func TestLoadConfig_FileNotFound(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected os.ErrNotExist in chain, got %v", err)
	}
}

func TestLoadConfig_MalformedYAML(t *testing.T) {
	path := writeConfig(t, "server:\n  listen_address: [unterminated\n")

	_, err := LoadConfig(path)
	if err == nil {
		t.Fatal("expected error for malformed YAML")
	}
	if !strings.Contains(err.Error(), "failed to parse") {
		t.Errorf("expected parse error, got %v", err)
	}
}

func TestLoadConfig_ValidationFailure(t *testing.T) {
	path := writeConfig(t, `
telemetry:
  logging:
    level: "verbose"
upstream:
  breaker:
    min_backoff: 2m
    max_backoff: 1m
`)

	_, err := LoadConfig(path)
	var verr ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	for _, field := range []string{"telemetry.logging.level", "upstream.breaker.max_backoff"} {
		if !verr.Has(field) {
			t.Errorf("expected error for %s in %v", field, verr)
		}
	}
}

func TestLoadConfigWithEnvOverrides(t *testing.T) {
	clearDeploymentEnv(t)
	path := writeConfig(t, `
github:
  token: "from-file"
`)

	t.Setenv("GITHUB_TOKEN", "from-env")
	t.Setenv("PORT", "9090")
	t.Setenv("HEALTHCHECK_TOKEN", "secret")
	t.Setenv("HEALTHCHECK_HOST_BYPASS", "internal.local")
	t.Setenv("GLIM_SERVER_LISTEN_ADDRESS", "0.0.0.0")
	t.Setenv("GLIM_UPSTREAM_CACHE_TTL", "10m")
	t.Setenv("GLIM_RATE_LIMIT_CLIENT_PER_MINUTE", "5")
	t.Setenv("GLIM_TELEMETRY_METRICS_ENABLED", "false")
	t.Setenv("GLIM_CACHE_MAINTENANCE_SCHEDULE", "")

	cfg, err := LoadConfigWithEnvOverrides(path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.GitHub.Token != "from-env" {
		t.Errorf("expected token from env, got %q", cfg.GitHub.Token)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("expected port 9090, got %d", cfg.Server.Port)
	}
	if cfg.Telemetry.Health.StatusToken != "secret" || cfg.Telemetry.Health.HostBypass != "internal.local" {
		t.Errorf("health overrides not applied: %+v", cfg.Telemetry.Health)
	}
	if cfg.Upstream.CacheTTL != 10*time.Minute {
		t.Errorf("expected cache TTL 10m, got %v", cfg.Upstream.CacheTTL)
	}
	if cfg.RateLimit.ClientPerMinute != 5 {
		t.Errorf("expected client capacity 5, got %d", cfg.RateLimit.ClientPerMinute)
	}
	if cfg.Telemetry.Metrics.Enabled {
		t.Error("expected metrics disabled")
	}
	if cfg.Cache.MaintenanceSchedule != "" {
		t.Errorf("expected maintenance disabled, got %q", cfg.Cache.MaintenanceSchedule)
	}

	addrs, err := cfg.Server.ListenAddresses()
	if err != nil || len(addrs) != 1 || addrs[0] != "0.0.0.0:9090" {
		t.Errorf("ListenAddresses() = %v, %v", addrs, err)
	}
}

func TestLoadConfigWithEnvOverrides_InvalidEnvValues(t *testing.T) {
	clearDeploymentEnv(t)
	path := writeConfig(t, "")

	t.Setenv("PORT", "eighty")
	t.Setenv("GLIM_UPSTREAM_CACHE_TTL", "soon")

	cfg, err := LoadConfigWithEnvOverrides(path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if cfg.Server.Port != DefaultPort {
		t.Errorf("unparseable PORT changed port to %d", cfg.Server.Port)
	}
	if cfg.Upstream.CacheTTL != DefaultUpstreamCacheTTL {
		t.Errorf("unparseable duration changed TTL to %v", cfg.Upstream.CacheTTL)
	}
}

func TestLoadOrDefault(t *testing.T) {
	clearDeploymentEnv(t)
	t.Setenv("GITHUB_TOKEN", "ghp_env")

	for _, path := range []string{"", filepath.Join(t.TempDir(), "absent.yaml")} {
		cfg, err := LoadOrDefault(path)
		if err != nil {
			t.Fatalf("LoadOrDefault(%q) error = %v", path, err)
		}
		if cfg.GitHub.Token != "ghp_env" {
			t.Errorf("LoadOrDefault(%q) ignored environment", path)
		}
		if cfg.Server.Port != DefaultPort {
			t.Errorf("LoadOrDefault(%q) port = %d", path, cfg.Server.Port)
		}
	}

	bad := writeConfig(t, "telemetry:\n  logging:\n    format: xml\n")
	if _, err := LoadOrDefault(bad); err == nil {
		t.Error("LoadOrDefault() accepted an invalid file")
	}
}

func TestParseAddresses(t *testing.T) {
	tests := []struct {
		name    string
		list    string
		want    []string
		wantErr bool
	}{
		{"bare host", "127.0.0.1", []string{"127.0.0.1:8080"}, false},
		{"host and port", "0.0.0.0:3000", []string{"0.0.0.0:3000"}, false},
		{"bare port", ":3000", []string{"127.0.0.1:3000"}, false},
		{"port number", "3000", []string{"127.0.0.1:3000"}, false},
		{"hostname", "localhost", []string{"localhost:8080"}, false},
		{"ipv6", "::1", []string{"[::1]:8080"}, false},
		{"bracketed ipv6", "[::1]", []string{"[::1]:8080"}, false},
		{"ipv6 with port", "[::]:80", []string{"[::]:80"}, false},
		{"list", "127.0.0.1, [::1]:81 ,", []string{"127.0.0.1:8080", "[::1]:81"}, false},
		{"empty", " , ", nil, true},
		{"port out of range", "0.0.0.0:70000", nil, true},
		{"bad port", "0.0.0.0:http", nil, true},
		{"zero port", ":0", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseAddresses(tt.list, 8080)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseAddresses(%q) error = %v, wantErr %v", tt.list, err, tt.wantErr)
			}
			if strings.Join(got, " ") != strings.Join(tt.want, " ") {
				t.Errorf("ParseAddresses(%q) = %q, want %q", tt.list, got, tt.want)
			}
		})
	}
}
