package metrics

import (
	"time"

	"glim-hq/cards/pkg/breaker"
	"glim-hq/cards/pkg/cache"
	"glim-hq/cards/pkg/config"
	"glim-hq/cards/pkg/limits/ratelimit"
	"glim-hq/cards/pkg/upstream"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Collector owns every Prometheus metric the service exports. It is passed
// to the upstream client and the card cache as their Observer, and to the
// HTTP middleware for request and admission metrics.
//
// When metrics are disabled every Record and Observe method is a no-op, so
// callers never need to check.
type Collector struct {
	config   *config.MetricsConfig
	registry *prometheus.Registry

	http      *HTTPMetrics
	admission *AdmissionMetrics
	upstream  *UpstreamMetrics
	cache     *CacheMetrics
}

var (
	_ upstream.Observer = (*Collector)(nil)
	_ cache.Observer    = (*Collector)(nil)
)

// NewCollector creates a new metrics collector with the specified configuration
// and Prometheus registry. If registry is nil, a new registry is created with
// the Go runtime and process collectors.
//
// Example:
//
//	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
//	client := upstream.NewClient(ucfg, upstream.WithObserver(collector))
func NewCollector(cfg *config.MetricsConfig, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	if cfg.Namespace == "" {
		cfg.Namespace = config.DefaultMetricsNamespace
	}

	return &Collector{
		config:    cfg,
		registry:  registry,
		http:      NewHTTPMetrics(cfg, registry),
		admission: NewAdmissionMetrics(cfg, registry),
		upstream:  NewUpstreamMetrics(cfg, registry),
		cache:     NewCacheMetrics(cfg, registry),
	}
}

// Enabled reports whether metrics are being collected.
func (c *Collector) Enabled() bool {
	return c.config.Enabled
}

// RecordRequest records a completed HTTP request.
//
// Parameters:
//   - route: Route name (e.g., "card", "index", "status")
//   - code: HTTP status code written
//   - duration: Time from first byte read to handler return
//   - size: Response body size in bytes
func (c *Collector) RecordRequest(route string, code int, duration time.Duration, size int) {
	if !c.config.Enabled {
		return
	}

	c.http.RecordRequest(route, code, duration, size)
}

// RequestStarted increments the in-flight gauge. The returned function
// decrements it.
func (c *Collector) RequestStarted() func() {
	if !c.config.Enabled {
		return func() {}
	}

	c.http.inFlight.Inc()
	return c.http.inFlight.Dec
}

// RecordAdmission records a rate limiter decision.
func (c *Collector) RecordAdmission(result ratelimit.Result) {
	if !c.config.Enabled {
		return
	}

	c.admission.RecordDecision(result)
}

// TrackLimiter exports limiter state as scrape-time gauges.
func (c *Collector) TrackLimiter(status func() ratelimit.Status) {
	if !c.config.Enabled {
		return
	}

	c.admission.Track(status)
}

// TrackMemoryHitRatio exports the memory tier's hit ratio as a scrape-time gauge.
func (c *Collector) TrackMemoryHitRatio(ratio func() float64) {
	if !c.config.Enabled {
		return
	}

	c.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: c.config.Namespace,
			Subsystem: "cache",
			Name:      "memory_hit_ratio",
			Help:      "Hit ratio of the in-memory tier since start",
		},
		ratio,
	))
}

// ObserveFetch implements upstream.Observer.
func (c *Collector) ObserveFetch(source, outcome string, latency time.Duration) {
	if !c.config.Enabled {
		return
	}

	c.upstream.RecordFetch(source, outcome, latency)
}

// ObserveBreakerTransition implements upstream.Observer.
func (c *Collector) ObserveBreakerTransition(from, to breaker.State) {
	if !c.config.Enabled {
		return
	}

	c.upstream.RecordTransition(from, to)
}

// ObserveQuota implements upstream.Observer.
func (c *Collector) ObserveQuota(limit, remaining int) {
	if !c.config.Enabled {
		return
	}

	c.upstream.UpdateQuota(limit, remaining)
}

// ObserveLookup implements cache.Observer.
func (c *Collector) ObserveLookup(tier string, hit bool) {
	if !c.config.Enabled {
		return
	}

	c.cache.RecordLookup(tier, hit)
}

// ObserveGeneration implements cache.Observer.
func (c *Collector) ObserveGeneration(outcome string, latency time.Duration) {
	if !c.config.Enabled {
		return
	}

	c.cache.RecordGeneration(outcome, latency)
}

// ObserveEviction implements cache.Observer.
func (c *Collector) ObserveEviction(tier string) {
	if !c.config.Enabled {
		return
	}

	c.cache.RecordEviction(tier)
}

// ObserveDiskUsage implements cache.Observer.
func (c *Collector) ObserveDiskUsage(bytes int64, entries int) {
	if !c.config.Enabled {
		return
	}

	c.cache.UpdateDisk(bytes, entries)
}

// Registry returns the Prometheus registry used by this collector.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}
