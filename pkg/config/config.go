package config

import "time"

// Config is the root configuration structure for the card service.
type Config struct {
	// Server contains HTTP server configuration including listen address,
	// timeouts and response caching headers.
	Server ServerConfig `yaml:"server"`

	// GitHub contains the upstream API endpoint and credentials.
	GitHub GitHubConfig `yaml:"github"`

	// Upstream contains the outcome cache and circuit breaker settings
	// applied to GitHub requests.
	Upstream UpstreamConfig `yaml:"upstream"`

	// RateLimit contains admission control settings.
	RateLimit RateLimitConfig `yaml:"rate_limit"`

	// Cache contains the rendered card cache settings.
	Cache CacheConfig `yaml:"cache"`

	// Telemetry contains configuration for observability including logging,
	// metrics, tracing and health endpoints.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ServerConfig contains configuration for the HTTP server.
type ServerConfig struct {
	// ListenAddress is one or more comma-separated addresses to listen on.
	// Format: "host:port[,host:port...]". A bare host takes the default
	// port and a bare ":port" or port number takes the default host.
	// Default: "127.0.0.1" (on Port)
	ListenAddress string `yaml:"listen_address"`

	// Port is the default port for listen addresses that omit one.
	// Default: 8080
	Port int `yaml:"port"`

	// ReadTimeout is the maximum duration for reading the entire request.
	// Default: 10s
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout is the maximum duration before timing out writes of the
	// response. It must exceed the card generation timeout.
	// Default: 45s
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// IdleTimeout is the maximum amount of time to wait for the next request
	// when keep-alives are enabled.
	// Default: 120s
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown.
	// Default: 30s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// MaxHeaderBytes limits request header size.
	// Default: 65536
	MaxHeaderBytes int `yaml:"max_header_bytes"`

	// CardMaxAge is the Cache-Control max-age sent with successful cards.
	// Default: 1h
	CardMaxAge time.Duration `yaml:"card_max_age"`

	// TrustForwardedFor makes the first X-Forwarded-For hop the client
	// identity for rate limiting. Enable only behind a trusted proxy.
	// Default: true
	TrustForwardedFor bool `yaml:"trust_forwarded_for"`

	// ExampleRepository is where GET / redirects.
	// Default: "Xevion/glim"
	ExampleRepository string `yaml:"example_repository"`

	// CORSAllowedOrigins lists the origins allowed to fetch cards from
	// scripts. "*" allows any origin; an empty list disables CORS headers.
	// Default: ["*"]
	CORSAllowedOrigins []string `yaml:"cors_allowed_origins"`
}

// GitHubConfig contains the upstream API configuration.
type GitHubConfig struct {
	// BaseURL is the GitHub REST API root.
	// Default: "https://api.github.com"
	BaseURL string `yaml:"base_url"`

	// Token is sent as a bearer token. Usually supplied through the
	// GITHUB_TOKEN environment variable rather than the file.
	Token string `yaml:"token"`

	// UserAgent is sent with every request.
	// Default: "glim-card-service"
	UserAgent string `yaml:"user_agent"`

	// Timeout bounds each request end to end.
	// Default: 10s
	Timeout time.Duration `yaml:"timeout"`

	// QuotaInterval is how often /rate_limit is polled. Zero disables the
	// quota monitor.
	// Default: 1m
	QuotaInterval time.Duration `yaml:"quota_interval"`
}

// UpstreamConfig contains resilience settings for GitHub requests.
type UpstreamConfig struct {
	// CacheTTL applies to every cached outcome.
	// Default: 30m
	CacheTTL time.Duration `yaml:"cache_ttl"`

	// RetryBudget is the number of retryable failures allowed per repository
	// before its error is cached as exhausted.
	// Default: 3
	RetryBudget int `yaml:"retry_budget"`

	// CleanupInterval is how often expired outcomes are purged.
	// Default: 5m
	CleanupInterval time.Duration `yaml:"cleanup_interval"`

	// Breaker contains circuit breaker settings.
	Breaker BreakerConfig `yaml:"breaker"`
}

// BreakerConfig contains circuit breaker settings.
type BreakerConfig struct {
	// SuccessRateThreshold opens the circuit when the success rate over
	// Window falls below it.
	// Default: 0.8
	SuccessRateThreshold float64 `yaml:"success_rate_threshold"`

	// MinSamples is the minimum number of calls in Window before the
	// success rate is evaluated.
	// Default: 10
	MinSamples int `yaml:"min_samples"`

	// Window is the trailing success-rate window.
	// Default: 30s
	Window time.Duration `yaml:"window"`

	// ConsecutiveFailures opens the circuit after this many failures in a row.
	// Default: 5
	ConsecutiveFailures int `yaml:"consecutive_failures"`

	// MinBackoff and MaxBackoff bound the open-state delay.
	// Default: 10s and 60s
	MinBackoff time.Duration `yaml:"min_backoff"`
	MaxBackoff time.Duration `yaml:"max_backoff"`

	// ProbeTimeout frees the half-open probe slot if a probe never reports.
	// Default: 30s
	ProbeTimeout time.Duration `yaml:"probe_timeout"`
}

// RateLimitConfig contains admission control settings.
type RateLimitConfig struct {
	// GlobalPerMinute is the capacity of the shared bucket.
	// Default: 300
	GlobalPerMinute int64 `yaml:"global_per_minute"`

	// ClientPerMinute is the capacity of each client's bucket.
	// Default: 30
	ClientPerMinute int64 `yaml:"client_per_minute"`

	// ClientMemory is how long an idle client's bucket is remembered.
	// Default: 1h
	ClientMemory time.Duration `yaml:"client_memory"`

	// RefillInterval is the background refill period.
	// Default: 1s
	RefillInterval time.Duration `yaml:"refill_interval"`

	// MaxClients bounds the number of remembered clients.
	// Default: 10000
	MaxClients int `yaml:"max_clients"`
}

// CacheConfig contains the rendered card cache settings.
type CacheConfig struct {
	// Dir holds the disk tier's files and index.
	// Default: "data/cache"
	Dir string `yaml:"dir"`

	// DiskMaxBytes bounds the disk tier.
	// Default: 1073741824 (1GiB)
	DiskMaxBytes int64 `yaml:"disk_max_bytes"`

	// MemoryMaxCost is the memory tier's budget in weight units.
	// Default: 134217728
	MemoryMaxCost int64 `yaml:"memory_max_cost"`

	// MaxAge expires cards this long after rendering so that star counts
	// refresh. Zero keeps cards until evicted.
	// Default: 1h
	MaxAge time.Duration `yaml:"max_age"`

	// GenerateTimeout bounds one render, including the GitHub fetch.
	// Default: 30s
	GenerateTimeout time.Duration `yaml:"generate_timeout"`

	// MaintenanceSchedule is a cron expression for expiry and index
	// checkpointing. Empty disables scheduled maintenance.
	// Default: "*/15 * * * *"
	MaintenanceSchedule string `yaml:"maintenance_schedule"`
}

// TelemetryConfig contains configuration for observability.
type TelemetryConfig struct {
	// Logging contains logging configuration.
	Logging LoggingConfig `yaml:"logging"`

	// Metrics contains metrics collection configuration.
	Metrics MetricsConfig `yaml:"metrics"`

	// Tracing contains distributed tracing configuration.
	Tracing TracingConfig `yaml:"tracing"`

	// Health contains health and status endpoint configuration.
	Health HealthConfig `yaml:"health"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level to emit.
	// Options: "debug", "info", "warn", "error"
	// Default: "info"
	Level string `yaml:"level"`

	// Format controls the log output format.
	// Options: "json", "text"
	// Default: "json"
	Format string `yaml:"format"`

	// AddSource includes file and line number in log entries.
	// Default: false
	AddSource bool `yaml:"add_source"`

	// RedactTokens masks GitHub tokens and bearer credentials in log
	// attributes.
	// Default: true
	RedactTokens bool `yaml:"redact_tokens"`
}

// MetricsConfig contains metrics collection configuration.
type MetricsConfig struct {
	// Enabled controls whether metrics collection is active.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// Path is the HTTP path for the Prometheus metrics endpoint.
	// Default: "/metrics"
	Path string `yaml:"path"`

	// Namespace is the metric name prefix.
	// Default: "glim"
	Namespace string `yaml:"namespace"`
}

// TracingConfig contains distributed tracing configuration.
type TracingConfig struct {
	// Enabled controls whether distributed tracing is active.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Sampler determines the sampling strategy.
	// Options: "always", "never", "ratio"
	// Default: "ratio"
	Sampler string `yaml:"sampler"`

	// SampleRatio is the fraction of traces to sample (0.0 to 1.0).
	// Default: 0.1
	SampleRatio float64 `yaml:"sample_ratio"`

	// Endpoint is the OTLP gRPC collector endpoint.
	// Example: "localhost:4317"
	Endpoint string `yaml:"endpoint"`

	// ServiceName is the service name in traces.
	// Default: "glim"
	ServiceName string `yaml:"service_name"`

	// Insecure disables TLS for the collector connection.
	// Default: true
	Insecure bool `yaml:"insecure"`

	// Timeout is the export timeout.
	// Default: 10s
	Timeout time.Duration `yaml:"timeout"`
}

// HealthConfig contains health check endpoint configuration.
type HealthConfig struct {
	// LivenessPath is the path for the liveness probe endpoint.
	// Default: "/health"
	LivenessPath string `yaml:"liveness_path"`

	// ReadinessPath is the path for the readiness probe endpoint.
	// Default: "/ready"
	ReadinessPath string `yaml:"readiness_path"`

	// VersionPath is the path for the version information endpoint.
	// Default: "/version"
	VersionPath string `yaml:"version_path"`

	// StatusPath serves rate limiter and upstream state as JSON.
	// Default: "/status"
	StatusPath string `yaml:"status_path"`

	// CheckTimeout is the timeout for individual readiness checks.
	// Default: 5s
	CheckTimeout time.Duration `yaml:"check_timeout"`

	// StatusToken, when set, is required as a bearer token on the status
	// endpoint. Read from HEALTHCHECK_TOKEN.
	StatusToken string `yaml:"status_token"`

	// HostBypass lets requests whose Host matches skip the status token
	// (e.g. an internal hostname used by the orchestrator). Read from
	// HEALTHCHECK_HOST_BYPASS.
	HostBypass string `yaml:"host_bypass"`

	// StatusRateLimit is the status endpoint's request budget per second.
	// Default: 5
	StatusRateLimit float64 `yaml:"status_rate_limit"`

	// StatusBurst is the status endpoint's burst size.
	// Default: 10
	StatusBurst int `yaml:"status_burst"`
}
