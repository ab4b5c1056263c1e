package metrics

import (
	"strconv"
	"time"

	"glim-hq/cards/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// HTTPMetrics tracks served requests.
//
// Metrics:
//   - glim_http_requests_total: Requests by route and status code
//   - glim_http_request_duration_seconds: Latency by route
//   - glim_http_response_size_bytes: Body size by route
//   - glim_http_requests_in_flight: Requests currently being served
//
// route is the registered pattern name ("card", "index", "health", ...),
// never the raw path, so cardinality stays fixed.
type HTTPMetrics struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	responseSize    *prometheus.HistogramVec
	inFlight        prometheus.Gauge
}

// NewHTTPMetrics creates and registers HTTP metrics with the provided registry.
func NewHTTPMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *HTTPMetrics {
	hm := &HTTPMetrics{
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total number of HTTP requests by route and status code",
			},
			[]string{"route", "code"},
		),

		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "Duration of HTTP requests in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"route"},
		),

		responseSize: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: "http",
				Name:      "response_size_bytes",
				Help:      "Size of HTTP response bodies in bytes",
				Buckets:   prometheus.ExponentialBuckets(256, 2, 10), // 256B to 128KB
			},
			[]string{"route"},
		),

		inFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Subsystem: "http",
				Name:      "requests_in_flight",
				Help:      "Number of HTTP requests currently being served",
			},
		),
	}

	registry.MustRegister(
		hm.requestsTotal,
		hm.requestDuration,
		hm.responseSize,
		hm.inFlight,
	)

	return hm
}

// RecordRequest records a completed request.
func (hm *HTTPMetrics) RecordRequest(route string, code int, duration time.Duration, size int) {
	hm.requestsTotal.WithLabelValues(route, strconv.Itoa(code)).Inc()
	hm.requestDuration.WithLabelValues(route).Observe(duration.Seconds())
	if size > 0 {
		hm.responseSize.WithLabelValues(route).Observe(float64(size))
	}
}
