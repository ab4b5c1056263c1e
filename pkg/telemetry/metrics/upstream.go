package metrics

import (
	"time"

	"glim-hq/cards/pkg/breaker"
	"glim-hq/cards/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// UpstreamMetrics tracks GitHub API access.
//
// Metrics:
//   - glim_upstream_fetches_total: Fetches by source (cache, upstream) and outcome
//   - glim_upstream_fetch_duration_seconds: Fetch latency by source
//   - glim_upstream_circuit_state: 0=closed, 1=open, 2=half-open
//   - glim_upstream_circuit_transitions_total: State changes by from/to
//   - glim_upstream_quota_limit / glim_upstream_quota_remaining: Core API quota
type UpstreamMetrics struct {
	fetchesTotal       *prometheus.CounterVec
	fetchDuration      *prometheus.HistogramVec
	circuitState       prometheus.Gauge
	circuitTransitions *prometheus.CounterVec
	quotaLimit         prometheus.Gauge
	quotaRemaining     prometheus.Gauge
}

// NewUpstreamMetrics creates and registers upstream metrics with the provided registry.
func NewUpstreamMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *UpstreamMetrics {
	um := &UpstreamMetrics{
		fetchesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: "upstream",
				Name:      "fetches_total",
				Help:      "Total number of repository fetches by source and outcome",
			},
			[]string{"source", "outcome"},
		),

		fetchDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: "upstream",
				Name:      "fetch_duration_seconds",
				Help:      "Duration of repository fetches in seconds",
				Buckets:   []float64{0.001, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"source"},
		),

		circuitState: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Subsystem: "upstream",
				Name:      "circuit_state",
				Help:      "Circuit breaker state (0=closed, 1=open, 2=half-open)",
			},
		),

		circuitTransitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: "upstream",
				Name:      "circuit_transitions_total",
				Help:      "Total number of circuit breaker state changes",
			},
			[]string{"from", "to"},
		),

		quotaLimit: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Subsystem: "upstream",
				Name:      "quota_limit",
				Help:      "GitHub core API request limit per hour",
			},
		),

		quotaRemaining: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Subsystem: "upstream",
				Name:      "quota_remaining",
				Help:      "GitHub core API requests remaining in the current window",
			},
		),
	}

	registry.MustRegister(
		um.fetchesTotal,
		um.fetchDuration,
		um.circuitState,
		um.circuitTransitions,
		um.quotaLimit,
		um.quotaRemaining,
	)

	return um
}

// RecordFetch records one fetch.
func (um *UpstreamMetrics) RecordFetch(source, outcome string, latency time.Duration) {
	um.fetchesTotal.WithLabelValues(source, outcome).Inc()
	um.fetchDuration.WithLabelValues(source).Observe(latency.Seconds())
}

// RecordTransition records a circuit state change.
func (um *UpstreamMetrics) RecordTransition(from, to breaker.State) {
	um.circuitTransitions.WithLabelValues(from.String(), to.String()).Inc()
	um.circuitState.Set(float64(to))
}

// UpdateQuota sets the quota gauges.
func (um *UpstreamMetrics) UpdateQuota(limit, remaining int) {
	um.quotaLimit.Set(float64(limit))
	um.quotaRemaining.Set(float64(remaining))
}
