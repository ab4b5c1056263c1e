// Package tracing provides OpenTelemetry distributed tracing for the card service.
//
// # Overview
//
// When enabled, spans are batched and exported over OTLP gRPC. When
// disabled, every component receives a noop tracer and nothing is exported.
//
// A card request produces this span tree:
//
//	GET card                 (HTTPMiddleware, server span)
//	└── cache.get_or_create
//	    ├── upstream.fetch   (only on a cache miss)
//	    └── card.render
//
// # Trace Context Propagation
//
// Incoming W3C traceparent headers are honored, so the service joins traces
// started by a CDN or proxy in front of it:
//
//	traceparent: 00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01
//
// # Sampling Strategies
//
//   - always: Sample all traces (development/debugging)
//   - never: Sample no traces
//   - ratio: Sample a fraction of root traces (production)
//
// # Usage
//
//	tracer, err := tracing.New(&cfg.Telemetry.Tracing, tracing.WithServiceVersion(version))
//	if err != nil {
//	    return err
//	}
//	defer tracer.Shutdown(context.Background())
//
//	client := upstream.NewClient(ucfg, upstream.WithTracer(tracer.Tracer()))
package tracing
