package config

import "time"

// Default values for configuration fields.
const (
	// Server defaults
	DefaultHost              = "127.0.0.1"
	DefaultPort              = 8080
	DefaultListenAddress     = DefaultHost
	DefaultReadTimeout       = 10 * time.Second
	DefaultWriteTimeout      = 45 * time.Second
	DefaultIdleTimeout       = 120 * time.Second
	DefaultShutdownTimeout   = 30 * time.Second
	DefaultMaxHeaderBytes    = 65536
	DefaultCardMaxAge        = time.Hour
	DefaultExampleRepository = "Xevion/glim"

	// GitHub defaults
	DefaultGitHubBaseURL   = "https://api.github.com"
	DefaultGitHubUserAgent = "glim-card-service"
	DefaultGitHubTimeout   = 10 * time.Second
	DefaultQuotaInterval   = time.Minute

	// Upstream defaults
	DefaultUpstreamCacheTTL        = 30 * time.Minute
	DefaultUpstreamRetryBudget     = 3
	DefaultUpstreamCleanupInterval = 5 * time.Minute

	// Breaker defaults
	DefaultBreakerSuccessRate         = 0.8
	DefaultBreakerMinSamples          = 10
	DefaultBreakerWindow              = 30 * time.Second
	DefaultBreakerConsecutiveFailures = 5
	DefaultBreakerMinBackoff          = 10 * time.Second
	DefaultBreakerMaxBackoff          = 60 * time.Second
	DefaultBreakerProbeTimeout        = 30 * time.Second

	// Rate limit defaults
	DefaultGlobalPerMinute = 300
	DefaultClientPerMinute = 30
	DefaultClientMemory    = time.Hour
	DefaultRefillInterval  = time.Second
	DefaultMaxClients      = 10000

	// Cache defaults
	DefaultCacheDir                 = "data/cache"
	DefaultCacheDiskMaxBytes        = 1 << 30
	DefaultCacheMemoryMaxCost       = 128 << 20
	DefaultCacheMaxAge              = time.Hour
	DefaultCacheGenerateTimeout     = 30 * time.Second
	DefaultCacheMaintenanceSchedule = "*/15 * * * *"

	// Telemetry defaults
	DefaultLoggingLevel       = "info"
	DefaultLoggingFormat      = "json"
	DefaultMetricsEnabled     = true
	DefaultPrometheusPath     = "/metrics"
	DefaultMetricsNamespace   = "glim"
	DefaultTracingEnabled     = false
	DefaultTracingSampler     = "ratio"
	DefaultTracingSampleRatio = 0.1
	DefaultTracingServiceName = "glim"
	DefaultTracingTimeout     = 10 * time.Second

	// Health defaults
	DefaultLivenessPath    = "/health"
	DefaultReadinessPath   = "/ready"
	DefaultVersionPath     = "/version"
	DefaultStatusPath      = "/status"
	DefaultCheckTimeout    = 5 * time.Second
	DefaultStatusRateLimit = 5.0
	DefaultStatusBurst     = 10
)

// DefaultConfig returns a configuration with every field at its default.
// Files are decoded on top of it, so settings a file omits keep these
// values while settings it gives explicitly, including false and zero, win.
func DefaultConfig() *Config {
	cfg := &Config{
		Server: ServerConfig{
			TrustForwardedFor:  true,
			CORSAllowedOrigins: []string{"*"},
		},
		GitHub: GitHubConfig{
			QuotaInterval: DefaultQuotaInterval,
		},
		Cache: CacheConfig{
			MaxAge:              DefaultCacheMaxAge,
			MaintenanceSchedule: DefaultCacheMaintenanceSchedule,
		},
		Telemetry: TelemetryConfig{
			Logging: LoggingConfig{
				RedactTokens: true,
			},
			Metrics: MetricsConfig{
				Enabled: DefaultMetricsEnabled,
			},
			Tracing: TracingConfig{
				Enabled:  DefaultTracingEnabled,
				Insecure: true,
			},
		},
	}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults applies default values to a Config struct.
// It sets defaults for any fields that have zero values and for which zero
// is not meaningful. This function is idempotent.
func ApplyDefaults(cfg *Config) {
	// Server defaults
	if cfg.Server.ListenAddress == "" {
		cfg.Server.ListenAddress = DefaultListenAddress
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = DefaultPort
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = DefaultReadTimeout
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = DefaultWriteTimeout
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = DefaultShutdownTimeout
	}
	if cfg.Server.MaxHeaderBytes == 0 {
		cfg.Server.MaxHeaderBytes = DefaultMaxHeaderBytes
	}
	if cfg.Server.CardMaxAge == 0 {
		cfg.Server.CardMaxAge = DefaultCardMaxAge
	}
	if cfg.Server.ExampleRepository == "" {
		cfg.Server.ExampleRepository = DefaultExampleRepository
	}

	// GitHub defaults
	if cfg.GitHub.BaseURL == "" {
		cfg.GitHub.BaseURL = DefaultGitHubBaseURL
	}
	if cfg.GitHub.UserAgent == "" {
		cfg.GitHub.UserAgent = DefaultGitHubUserAgent
	}
	if cfg.GitHub.Timeout == 0 {
		cfg.GitHub.Timeout = DefaultGitHubTimeout
	}

	// Upstream defaults
	if cfg.Upstream.CacheTTL == 0 {
		cfg.Upstream.CacheTTL = DefaultUpstreamCacheTTL
	}
	if cfg.Upstream.RetryBudget == 0 {
		cfg.Upstream.RetryBudget = DefaultUpstreamRetryBudget
	}
	if cfg.Upstream.CleanupInterval == 0 {
		cfg.Upstream.CleanupInterval = DefaultUpstreamCleanupInterval
	}
	applyBreakerDefaults(&cfg.Upstream.Breaker)

	// Rate limit defaults
	if cfg.RateLimit.GlobalPerMinute == 0 {
		cfg.RateLimit.GlobalPerMinute = DefaultGlobalPerMinute
	}
	if cfg.RateLimit.ClientPerMinute == 0 {
		cfg.RateLimit.ClientPerMinute = DefaultClientPerMinute
	}
	if cfg.RateLimit.ClientMemory == 0 {
		cfg.RateLimit.ClientMemory = DefaultClientMemory
	}
	if cfg.RateLimit.RefillInterval == 0 {
		cfg.RateLimit.RefillInterval = DefaultRefillInterval
	}
	if cfg.RateLimit.MaxClients == 0 {
		cfg.RateLimit.MaxClients = DefaultMaxClients
	}

	// Cache defaults
	if cfg.Cache.Dir == "" {
		cfg.Cache.Dir = DefaultCacheDir
	}
	if cfg.Cache.DiskMaxBytes == 0 {
		cfg.Cache.DiskMaxBytes = DefaultCacheDiskMaxBytes
	}
	if cfg.Cache.MemoryMaxCost == 0 {
		cfg.Cache.MemoryMaxCost = DefaultCacheMemoryMaxCost
	}
	if cfg.Cache.GenerateTimeout == 0 {
		cfg.Cache.GenerateTimeout = DefaultCacheGenerateTimeout
	}

	// Telemetry defaults
	if cfg.Telemetry.Logging.Level == "" {
		cfg.Telemetry.Logging.Level = DefaultLoggingLevel
	}
	if cfg.Telemetry.Logging.Format == "" {
		cfg.Telemetry.Logging.Format = DefaultLoggingFormat
	}
	if cfg.Telemetry.Metrics.Path == "" {
		cfg.Telemetry.Metrics.Path = DefaultPrometheusPath
	}
	if cfg.Telemetry.Metrics.Namespace == "" {
		cfg.Telemetry.Metrics.Namespace = DefaultMetricsNamespace
	}
	if cfg.Telemetry.Tracing.Sampler == "" {
		cfg.Telemetry.Tracing.Sampler = DefaultTracingSampler
	}
	if cfg.Telemetry.Tracing.SampleRatio == 0 {
		cfg.Telemetry.Tracing.SampleRatio = DefaultTracingSampleRatio
	}
	if cfg.Telemetry.Tracing.ServiceName == "" {
		cfg.Telemetry.Tracing.ServiceName = DefaultTracingServiceName
	}
	if cfg.Telemetry.Tracing.Timeout == 0 {
		cfg.Telemetry.Tracing.Timeout = DefaultTracingTimeout
	}

	// Health defaults
	h := &cfg.Telemetry.Health
	if h.LivenessPath == "" {
		h.LivenessPath = DefaultLivenessPath
	}
	if h.ReadinessPath == "" {
		h.ReadinessPath = DefaultReadinessPath
	}
	if h.VersionPath == "" {
		h.VersionPath = DefaultVersionPath
	}
	if h.StatusPath == "" {
		h.StatusPath = DefaultStatusPath
	}
	if h.CheckTimeout == 0 {
		h.CheckTimeout = DefaultCheckTimeout
	}
	if h.StatusRateLimit == 0 {
		h.StatusRateLimit = DefaultStatusRateLimit
	}
	if h.StatusBurst == 0 {
		h.StatusBurst = DefaultStatusBurst
	}
}

func applyBreakerDefaults(b *BreakerConfig) {
	if b.SuccessRateThreshold == 0 {
		b.SuccessRateThreshold = DefaultBreakerSuccessRate
	}
	if b.MinSamples == 0 {
		b.MinSamples = DefaultBreakerMinSamples
	}
	if b.Window == 0 {
		b.Window = DefaultBreakerWindow
	}
	if b.ConsecutiveFailures == 0 {
		b.ConsecutiveFailures = DefaultBreakerConsecutiveFailures
	}
	if b.MinBackoff == 0 {
		b.MinBackoff = DefaultBreakerMinBackoff
	}
	if b.MaxBackoff == 0 {
		b.MaxBackoff = DefaultBreakerMaxBackoff
	}
	if b.ProbeTimeout == 0 {
		b.ProbeTimeout = DefaultBreakerProbeTimeout
	}
}
