package metrics

import (
	"time"

	"glim-hq/cards/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// CacheMetrics tracks the rendered card cache.
//
// Metrics:
//   - glim_cache_lookups_total: Lookups by tier and result (hit, miss)
//   - glim_cache_generations_total: Card renders by outcome
//   - glim_cache_generation_duration_seconds: Render latency, including the GitHub fetch
//   - glim_cache_evictions_total: Evictions by tier
//   - glim_cache_disk_bytes: Bytes held by the disk tier
//   - glim_cache_disk_entries: Entries held by the disk tier
type CacheMetrics struct {
	lookupsTotal       *prometheus.CounterVec
	generationsTotal   *prometheus.CounterVec
	generationDuration prometheus.Histogram
	evictionsTotal     *prometheus.CounterVec
	diskBytes          prometheus.Gauge
	diskEntries        prometheus.Gauge
}

// NewCacheMetrics creates and registers cache metrics with the provided registry.
func NewCacheMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *CacheMetrics {
	cm := &CacheMetrics{
		lookupsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: "cache",
				Name:      "lookups_total",
				Help:      "Total number of cache lookups by tier and result",
			},
			[]string{"tier", "result"},
		),

		generationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: "cache",
				Name:      "generations_total",
				Help:      "Total number of card generations by outcome",
			},
			[]string{"outcome"},
		),

		generationDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: "cache",
				Name:      "generation_duration_seconds",
				Help:      "Duration of card generations in seconds",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
		),

		evictionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: "cache",
				Name:      "evictions_total",
				Help:      "Total number of cache evictions by tier",
			},
			[]string{"tier"},
		),

		diskBytes: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Subsystem: "cache",
				Name:      "disk_bytes",
				Help:      "Bytes of card data held by the disk tier",
			},
		),

		diskEntries: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Subsystem: "cache",
				Name:      "disk_entries",
				Help:      "Number of cards held by the disk tier",
			},
		),
	}

	registry.MustRegister(
		cm.lookupsTotal,
		cm.generationsTotal,
		cm.generationDuration,
		cm.evictionsTotal,
		cm.diskBytes,
		cm.diskEntries,
	)

	return cm
}

// RecordLookup records a hit or miss in tier.
func (cm *CacheMetrics) RecordLookup(tier string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	cm.lookupsTotal.WithLabelValues(tier, result).Inc()
}

// RecordGeneration records one render.
func (cm *CacheMetrics) RecordGeneration(outcome string, latency time.Duration) {
	cm.generationsTotal.WithLabelValues(outcome).Inc()
	cm.generationDuration.Observe(latency.Seconds())
}

// RecordEviction records an entry leaving tier to make room.
func (cm *CacheMetrics) RecordEviction(tier string) {
	cm.evictionsTotal.WithLabelValues(tier).Inc()
}

// UpdateDisk sets the disk tier gauges.
func (cm *CacheMetrics) UpdateDisk(bytes int64, entries int) {
	cm.diskBytes.Set(float64(bytes))
	cm.diskEntries.Set(float64(entries))
}
