// Package metrics provides Prometheus metrics collection for the card service.
//
// # Overview
//
// A single Collector owns a registry and four metric groups:
//
//   - HTTP: requests by route and code, latency, response size, in-flight
//   - Admission: rate limiter decisions and bucket gauges
//   - Upstream: GitHub fetches, circuit breaker state, API quota
//   - Cache: lookups per tier, renders, evictions, disk usage
//
// All names are prefixed with the configured namespace ("glim" by default).
//
// # Usage
//
//	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
//
//	client := upstream.NewClient(ucfg, upstream.WithObserver(collector))
//	cards, err := cache.New(ctx, ccfg, cache.WithObserver(collector))
//	collector.TrackLimiter(limiter.Status)
//
//	mux.Handle(cfg.Telemetry.Metrics.Path, collector.Handler())
//
// # Useful Queries
//
// Memory tier hit rate over five minutes:
//
//	sum(rate(glim_cache_lookups_total{tier="memory",result="hit"}[5m]))
//	  / sum(rate(glim_cache_lookups_total{tier="memory"}[5m]))
//
// Share of requests rejected by the rate limiter:
//
//	sum(rate(glim_ratelimit_decisions_total{result!="allowed"}[5m]))
//	  / sum(rate(glim_ratelimit_decisions_total[5m]))
package metrics
