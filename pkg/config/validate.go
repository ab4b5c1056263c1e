package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// FieldError represents a validation error for a specific configuration field.
type FieldError struct {
	// Field is the dotted path to the configuration field (e.g., "server.listen_address").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError represents one or more validation errors in a configuration.
// It implements the error interface and provides access to all field errors.
type ValidationError struct {
	// Errors contains all validation errors found in the configuration.
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "configuration validation failed with %d errors:\n", len(e.Errors))
	for _, err := range e.Errors {
		fmt.Fprintf(&sb, "  - %s\n", err.Error())
	}
	return sb.String()
}

// Has reports whether field failed validation.
func (e ValidationError) Has(field string) bool {
	for _, fe := range e.Errors {
		if fe.Field == field {
			return true
		}
	}
	return false
}

// Validate validates the entire configuration and returns a ValidationError
// if any validation rules fail. It returns nil if the configuration is valid.
// All validation errors are collected and returned together.
func Validate(cfg *Config) error {
	var errs []FieldError

	errs = append(errs, validateServer(&cfg.Server)...)
	errs = append(errs, validateGitHub(&cfg.GitHub)...)
	errs = append(errs, validateUpstream(&cfg.Upstream)...)
	errs = append(errs, validateRateLimit(&cfg.RateLimit)...)
	errs = append(errs, validateCache(&cfg.Cache)...)
	errs = append(errs, validateTelemetry(&cfg.Telemetry)...)

	// Cards are rendered inside the request, so the response deadline has
	// to outlast a render.
	if cfg.Server.WriteTimeout > 0 && cfg.Cache.GenerateTimeout > 0 &&
		cfg.Server.WriteTimeout <= cfg.Cache.GenerateTimeout {
		errs = append(errs, FieldError{
			Field:   "server.write_timeout",
			Message: fmt.Sprintf("write timeout %v must exceed cache.generate_timeout %v", cfg.Server.WriteTimeout, cfg.Cache.GenerateTimeout),
		})
	}

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}

	return nil
}

func validateServer(cfg *ServerConfig) []FieldError {
	var errs []FieldError

	if cfg.Port < 1 || cfg.Port > 65535 {
		errs = append(errs, FieldError{
			Field:   "server.port",
			Message: fmt.Sprintf("port %d out of range 1-65535", cfg.Port),
		})
	} else if _, err := cfg.ListenAddresses(); err != nil {
		errs = append(errs, FieldError{
			Field:   "server.listen_address",
			Message: err.Error(),
		})
	}

	errs = append(errs, positive("server.read_timeout", cfg.ReadTimeout)...)
	errs = append(errs, positive("server.write_timeout", cfg.WriteTimeout)...)
	errs = append(errs, positive("server.idle_timeout", cfg.IdleTimeout)...)
	errs = append(errs, positive("server.shutdown_timeout", cfg.ShutdownTimeout)...)

	if cfg.MaxHeaderBytes < 1024 {
		errs = append(errs, FieldError{
			Field:   "server.max_header_bytes",
			Message: "max header bytes must be at least 1024",
		})
	}
	if cfg.CardMaxAge < 0 {
		errs = append(errs, FieldError{
			Field:   "server.card_max_age",
			Message: "card max age must be non-negative",
		})
	}

	owner, repo, ok := strings.Cut(cfg.ExampleRepository, "/")
	if !ok || owner == "" || repo == "" || strings.Contains(repo, "/") {
		errs = append(errs, FieldError{
			Field:   "server.example_repository",
			Message: fmt.Sprintf("invalid repository %q: must be owner/repo", cfg.ExampleRepository),
		})
	}

	return errs
}

func validateGitHub(cfg *GitHubConfig) []FieldError {
	var errs []FieldError

	u, err := url.Parse(cfg.BaseURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		errs = append(errs, FieldError{
			Field:   "github.base_url",
			Message: fmt.Sprintf("invalid base URL %q: must be an absolute http(s) URL", cfg.BaseURL),
		})
	}
	if strings.TrimSpace(cfg.UserAgent) == "" {
		errs = append(errs, FieldError{
			Field:   "github.user_agent",
			Message: "user agent is required",
		})
	}
	errs = append(errs, positive("github.timeout", cfg.Timeout)...)
	if cfg.QuotaInterval < 0 {
		errs = append(errs, FieldError{
			Field:   "github.quota_interval",
			Message: "quota interval must be non-negative",
		})
	}

	return errs
}

func validateUpstream(cfg *UpstreamConfig) []FieldError {
	var errs []FieldError

	errs = append(errs, positive("upstream.cache_ttl", cfg.CacheTTL)...)
	errs = append(errs, positive("upstream.cleanup_interval", cfg.CleanupInterval)...)
	if cfg.RetryBudget < 1 {
		errs = append(errs, FieldError{
			Field:   "upstream.retry_budget",
			Message: "retry budget must be at least 1",
		})
	}

	b := &cfg.Breaker
	if b.SuccessRateThreshold <= 0 || b.SuccessRateThreshold > 1.0 {
		errs = append(errs, FieldError{
			Field:   "upstream.breaker.success_rate_threshold",
			Message: "success rate threshold must be in (0.0, 1.0]",
		})
	}
	if b.MinSamples < 1 {
		errs = append(errs, FieldError{
			Field:   "upstream.breaker.min_samples",
			Message: "min samples must be at least 1",
		})
	}
	if b.ConsecutiveFailures < 1 {
		errs = append(errs, FieldError{
			Field:   "upstream.breaker.consecutive_failures",
			Message: "consecutive failures must be at least 1",
		})
	}
	errs = append(errs, positive("upstream.breaker.window", b.Window)...)
	errs = append(errs, positive("upstream.breaker.min_backoff", b.MinBackoff)...)
	errs = append(errs, positive("upstream.breaker.probe_timeout", b.ProbeTimeout)...)
	if b.MaxBackoff < b.MinBackoff {
		errs = append(errs, FieldError{
			Field:   "upstream.breaker.max_backoff",
			Message: fmt.Sprintf("max backoff %v is less than min backoff %v", b.MaxBackoff, b.MinBackoff),
		})
	}

	return errs
}

func validateRateLimit(cfg *RateLimitConfig) []FieldError {
	var errs []FieldError

	if cfg.GlobalPerMinute < 1 {
		errs = append(errs, FieldError{
			Field:   "rate_limit.global_per_minute",
			Message: "global capacity must be at least 1",
		})
	}
	if cfg.ClientPerMinute < 1 {
		errs = append(errs, FieldError{
			Field:   "rate_limit.client_per_minute",
			Message: "client capacity must be at least 1",
		})
	}
	errs = append(errs, positive("rate_limit.client_memory", cfg.ClientMemory)...)
	errs = append(errs, positive("rate_limit.refill_interval", cfg.RefillInterval)...)
	if cfg.RefillInterval > time.Minute {
		errs = append(errs, FieldError{
			Field:   "rate_limit.refill_interval",
			Message: "refill interval must not exceed 1m",
		})
	}
	if cfg.MaxClients < 1 {
		errs = append(errs, FieldError{
			Field:   "rate_limit.max_clients",
			Message: "max clients must be at least 1",
		})
	}

	return errs
}

func validateCache(cfg *CacheConfig) []FieldError {
	var errs []FieldError

	if strings.TrimSpace(cfg.Dir) == "" {
		errs = append(errs, FieldError{
			Field:   "cache.dir",
			Message: "cache directory is required",
		})
	}
	if cfg.DiskMaxBytes < 1 {
		errs = append(errs, FieldError{
			Field:   "cache.disk_max_bytes",
			Message: "disk capacity must be positive",
		})
	}
	if cfg.MemoryMaxCost < 1 {
		errs = append(errs, FieldError{
			Field:   "cache.memory_max_cost",
			Message: "memory capacity must be positive",
		})
	}
	if cfg.MaxAge < 0 {
		errs = append(errs, FieldError{
			Field:   "cache.max_age",
			Message: "max age must be non-negative",
		})
	}
	errs = append(errs, positive("cache.generate_timeout", cfg.GenerateTimeout)...)

	if cfg.MaintenanceSchedule != "" {
		if _, err := cron.ParseStandard(cfg.MaintenanceSchedule); err != nil {
			errs = append(errs, FieldError{
				Field:   "cache.maintenance_schedule",
				Message: fmt.Sprintf("invalid cron expression %q: %v", cfg.MaintenanceSchedule, err),
			})
		}
	}

	return errs
}

func validateTelemetry(cfg *TelemetryConfig) []FieldError {
	var errs []FieldError

	// Validate logging level
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if cfg.Logging.Level == "" {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.level",
			Message: "logging level is required",
		})
	} else if !validLevels[strings.ToLower(cfg.Logging.Level)] {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.level",
			Message: fmt.Sprintf("invalid logging level %q: must be 'debug', 'info', 'warn', or 'error'", cfg.Logging.Level),
		})
	}

	// Validate logging format
	validFormats := map[string]bool{"json": true, "text": true}
	if cfg.Logging.Format == "" {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.format",
			Message: "logging format is required",
		})
	} else if !validFormats[cfg.Logging.Format] {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.format",
			Message: fmt.Sprintf("invalid logging format %q: must be 'json' or 'text'", cfg.Logging.Format),
		})
	}

	if cfg.Metrics.Enabled {
		errs = append(errs, validPath("telemetry.metrics.path", cfg.Metrics.Path)...)
	}

	// Validate tracing configuration
	if cfg.Tracing.Enabled && cfg.Tracing.Endpoint == "" {
		errs = append(errs, FieldError{
			Field:   "telemetry.tracing.endpoint",
			Message: "tracing endpoint is required when tracing is enabled",
		})
	}
	validSamplers := map[string]bool{"always": true, "never": true, "ratio": true}
	if !validSamplers[cfg.Tracing.Sampler] {
		errs = append(errs, FieldError{
			Field:   "telemetry.tracing.sampler",
			Message: fmt.Sprintf("invalid sampler %q: must be 'always', 'never', or 'ratio'", cfg.Tracing.Sampler),
		})
	}
	if cfg.Tracing.SampleRatio < 0 || cfg.Tracing.SampleRatio > 1.0 {
		errs = append(errs, FieldError{
			Field:   "telemetry.tracing.sample_ratio",
			Message: "sample ratio must be between 0.0 and 1.0",
		})
	}

	// Validate health endpoints
	h := &cfg.Health
	errs = append(errs, validPath("telemetry.health.liveness_path", h.LivenessPath)...)
	errs = append(errs, validPath("telemetry.health.readiness_path", h.ReadinessPath)...)
	errs = append(errs, validPath("telemetry.health.version_path", h.VersionPath)...)
	errs = append(errs, validPath("telemetry.health.status_path", h.StatusPath)...)

	if h.CheckTimeout <= 0 {
		errs = append(errs, FieldError{
			Field:   "telemetry.health.check_timeout",
			Message: "check timeout must be positive",
		})
	}
	if h.CheckTimeout > 60*time.Second {
		errs = append(errs, FieldError{
			Field:   "telemetry.health.check_timeout",
			Message: "check timeout exceeds reasonable limit (60s)",
		})
	}
	if h.StatusRateLimit <= 0 {
		errs = append(errs, FieldError{
			Field:   "telemetry.health.status_rate_limit",
			Message: "status rate limit must be positive",
		})
	}
	if h.StatusBurst < 1 {
		errs = append(errs, FieldError{
			Field:   "telemetry.health.status_burst",
			Message: "status burst must be at least 1",
		})
	}

	return errs
}

func positive(field string, d time.Duration) []FieldError {
	if d > 0 {
		return nil
	}
	return []FieldError{{Field: field, Message: "must be positive"}}
}

func validPath(field, path string) []FieldError {
	if path == "" {
		return []FieldError{{Field: field, Message: "path is required"}}
	}
	if path[0] != '/' {
		return []FieldError{{Field: field, Message: "path must start with /"}}
	}
	return nil
}
