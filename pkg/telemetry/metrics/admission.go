package metrics

import (
	"glim-hq/cards/pkg/config"
	"glim-hq/cards/pkg/limits/ratelimit"

	"github.com/prometheus/client_golang/prometheus"
)

// AdmissionMetrics tracks rate limiting.
//
// Metrics:
//   - glim_ratelimit_decisions_total: Admission decisions by result
//   - glim_ratelimit_global_remaining: Tokens left in the shared bucket
//   - glim_ratelimit_active_clients: Remembered client buckets
//
// The gauges are read from the limiter at scrape time.
type AdmissionMetrics struct {
	cfg       *config.MetricsConfig
	registry  *prometheus.Registry
	decisions *prometheus.CounterVec
}

// NewAdmissionMetrics creates and registers admission metrics with the provided registry.
func NewAdmissionMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *AdmissionMetrics {
	am := &AdmissionMetrics{
		cfg:      cfg,
		registry: registry,
		decisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: "ratelimit",
				Name:      "decisions_total",
				Help:      "Total number of admission decisions by result",
			},
			[]string{"result"},
		),
	}

	registry.MustRegister(am.decisions)

	// Pre-create every label so dashboards see zeros before the first denial.
	for _, r := range []ratelimit.Result{ratelimit.Allowed, ratelimit.GlobalLimitExceeded, ratelimit.ClientLimitExceeded} {
		am.decisions.WithLabelValues(r.String())
	}

	return am
}

// RecordDecision records one admission check.
func (am *AdmissionMetrics) RecordDecision(result ratelimit.Result) {
	am.decisions.WithLabelValues(result.String()).Inc()
}

// Track registers scrape-time gauges reading from status.
func (am *AdmissionMetrics) Track(status func() ratelimit.Status) {
	am.registry.MustRegister(
		prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Namespace: am.cfg.Namespace,
				Subsystem: "ratelimit",
				Name:      "global_remaining",
				Help:      "Tokens remaining in the shared bucket",
			},
			func() float64 { return float64(status().GlobalRemaining) },
		),
		prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Namespace: am.cfg.Namespace,
				Subsystem: "ratelimit",
				Name:      "active_clients",
				Help:      "Number of remembered client buckets",
			},
			func() float64 { return float64(status().ActiveClients) },
		),
	)
}
