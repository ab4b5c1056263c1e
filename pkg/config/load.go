package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// LoadConfig loads configuration from a YAML file at the specified path.
// The file is decoded over DefaultConfig, remaining zero values get their
// defaults and the result is validated. Environment variables are not
// consulted; use LoadConfigWithEnvOverrides for that.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	cfg, err := parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func parse(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	ApplyDefaults(cfg)
	return cfg, nil
}

// LoadConfigWithEnvOverrides loads configuration from a YAML file and applies
// environment variable overrides. Environment variables follow the naming
// convention GLIM_SECTION_FIELD (e.g., GLIM_SERVER_LISTEN_ADDRESS), and the
// service also honors GITHUB_TOKEN, PORT, HEALTHCHECK_TOKEN and
// HEALTHCHECK_HOST_BYPASS. Environment variables always take precedence over
// file-based configuration.
//
// The loading sequence is:
// 1. Load YAML from file
// 2. Apply default values
// 3. Apply environment variable overrides
// 4. Validate final configuration
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed after environment overrides: %w", err)
	}

	return cfg, nil
}

// LoadOrDefault behaves like LoadConfigWithEnvOverrides, except that an
// empty path or a missing file yields the defaults plus environment
// overrides. The service runs without a configuration file.
func LoadOrDefault(path string) (*Config, error) {
	if path != "" {
		cfg, err := LoadConfigWithEnvOverrides(path)
		if err == nil || !errors.Is(err, fs.ErrNotExist) {
			return cfg, err
		}
	}

	cfg := DefaultConfig()
	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed after environment overrides: %w", err)
	}
	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables use the format GLIM_SECTION_FIELD.
func applyEnvOverrides(cfg *Config) {
	// Variables shared with the deployment environment.
	if val := os.Getenv("GITHUB_TOKEN"); val != "" {
		cfg.GitHub.Token = val
	}
	if val := os.Getenv("PORT"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			cfg.Server.Port = i
		}
	}
	if val := os.Getenv("HEALTHCHECK_TOKEN"); val != "" {
		cfg.Telemetry.Health.StatusToken = val
	}
	if val := os.Getenv("HEALTHCHECK_HOST_BYPASS"); val != "" {
		cfg.Telemetry.Health.HostBypass = val
	}

	// Server overrides
	if val := os.Getenv("GLIM_SERVER_LISTEN_ADDRESS"); val != "" {
		cfg.Server.ListenAddress = val
	}
	if val := os.Getenv("GLIM_SERVER_PORT"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			cfg.Server.Port = i
		}
	}
	envDuration("GLIM_SERVER_READ_TIMEOUT", &cfg.Server.ReadTimeout)
	envDuration("GLIM_SERVER_WRITE_TIMEOUT", &cfg.Server.WriteTimeout)
	envDuration("GLIM_SERVER_SHUTDOWN_TIMEOUT", &cfg.Server.ShutdownTimeout)
	envDuration("GLIM_SERVER_CARD_MAX_AGE", &cfg.Server.CardMaxAge)
	if val := os.Getenv("GLIM_SERVER_TRUST_FORWARDED_FOR"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Server.TrustForwardedFor = b
		}
	}

	// GitHub overrides
	if val := os.Getenv("GLIM_GITHUB_TOKEN"); val != "" {
		cfg.GitHub.Token = val
	}
	if val := os.Getenv("GLIM_GITHUB_BASE_URL"); val != "" {
		cfg.GitHub.BaseURL = val
	}
	envDuration("GLIM_GITHUB_TIMEOUT", &cfg.GitHub.Timeout)
	envDuration("GLIM_GITHUB_QUOTA_INTERVAL", &cfg.GitHub.QuotaInterval)

	// Upstream overrides
	envDuration("GLIM_UPSTREAM_CACHE_TTL", &cfg.Upstream.CacheTTL)
	if val := os.Getenv("GLIM_UPSTREAM_RETRY_BUDGET"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			cfg.Upstream.RetryBudget = i
		}
	}

	// Rate limit overrides
	if val := os.Getenv("GLIM_RATE_LIMIT_GLOBAL_PER_MINUTE"); val != "" {
		if i, err := strconv.ParseInt(val, 10, 64); err == nil {
			cfg.RateLimit.GlobalPerMinute = i
		}
	}
	if val := os.Getenv("GLIM_RATE_LIMIT_CLIENT_PER_MINUTE"); val != "" {
		if i, err := strconv.ParseInt(val, 10, 64); err == nil {
			cfg.RateLimit.ClientPerMinute = i
		}
	}
	envDuration("GLIM_RATE_LIMIT_CLIENT_MEMORY", &cfg.RateLimit.ClientMemory)

	// Cache overrides
	if val := os.Getenv("GLIM_CACHE_DIR"); val != "" {
		cfg.Cache.Dir = val
	}
	if val := os.Getenv("GLIM_CACHE_DISK_MAX_BYTES"); val != "" {
		if i, err := strconv.ParseInt(val, 10, 64); err == nil {
			cfg.Cache.DiskMaxBytes = i
		}
	}
	envDuration("GLIM_CACHE_MAX_AGE", &cfg.Cache.MaxAge)
	if val, ok := os.LookupEnv("GLIM_CACHE_MAINTENANCE_SCHEDULE"); ok {
		cfg.Cache.MaintenanceSchedule = val
	}

	// Telemetry overrides
	if val := os.Getenv("GLIM_TELEMETRY_LOGGING_LEVEL"); val != "" {
		cfg.Telemetry.Logging.Level = val
	}
	if val := os.Getenv("GLIM_TELEMETRY_LOGGING_FORMAT"); val != "" {
		cfg.Telemetry.Logging.Format = val
	}
	if val := os.Getenv("GLIM_TELEMETRY_METRICS_ENABLED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Telemetry.Metrics.Enabled = b
		}
	}
	if val := os.Getenv("GLIM_TELEMETRY_TRACING_ENABLED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Telemetry.Tracing.Enabled = b
		}
	}
	if val := os.Getenv("GLIM_TELEMETRY_TRACING_ENDPOINT"); val != "" {
		cfg.Telemetry.Tracing.Endpoint = val
	}
	if val := os.Getenv("GLIM_TELEMETRY_TRACING_SAMPLE_RATIO"); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			cfg.Telemetry.Tracing.SampleRatio = f
		}
	}
}

func envDuration(name string, dst *time.Duration) {
	if val := os.Getenv(name); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			*dst = d
		}
	}
}

// ListenAddresses expands ListenAddress into host:port pairs. A bare host
// takes Port, and a bare port (":9000" or "9000") takes DefaultHost.
func (s ServerConfig) ListenAddresses() ([]string, error) {
	return ParseAddresses(s.ListenAddress, s.Port)
}

// ParseAddresses splits a comma-separated address list and fills in
// missing hosts and ports.
func ParseAddresses(list string, defaultPort int) ([]string, error) {
	var addrs []string
	for _, part := range strings.Split(list, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		addr, err := normalizeAddress(part, defaultPort)
		if err != nil {
			return nil, err
		}
		addrs = append(addrs, addr)
	}
	if len(addrs) == 0 {
		return nil, fmt.Errorf("no listen address in %q", list)
	}
	return addrs, nil
}

func normalizeAddress(addr string, defaultPort int) (string, error) {
	if port, err := strconv.Atoi(strings.TrimPrefix(addr, ":")); err == nil {
		if err := checkPort(port); err != nil {
			return "", fmt.Errorf("invalid address %q: %w", addr, err)
		}
		return net.JoinHostPort(DefaultHost, strconv.Itoa(port)), nil
	}

	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		// No port: a hostname, an IPv4 address, or a bare or bracketed IPv6
		// address.
		host = strings.TrimSuffix(strings.TrimPrefix(addr, "["), "]")
		if strings.ContainsAny(host, "[]") {
			return "", fmt.Errorf("invalid address %q", addr)
		}
		return net.JoinHostPort(host, strconv.Itoa(defaultPort)), nil
	}

	port, err := strconv.Atoi(portStr)
	if err != nil {
		return "", fmt.Errorf("invalid port in address %q", addr)
	}
	if err := checkPort(port); err != nil {
		return "", fmt.Errorf("invalid address %q: %w", addr, err)
	}
	if host == "" {
		host = DefaultHost
	}
	return net.JoinHostPort(host, portStr), nil
}

func checkPort(port int) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("port %d out of range 1-65535", port)
	}
	return nil
}
