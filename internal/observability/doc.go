// Package observability provides logging, metrics, and tracing
// functionality for avafields.
//
// # Logging
//
// The Logger interface provides structured logging on top of zap:
//
//	logger, err := observability.NewLogger(observability.LogConfig{Level: "info", Format: "json"})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer logger.Sync()
//
//	logger.Info("fields parsed",
//	    observability.String("fields", raw),
//	    observability.Int("status", 200),
//	)
//
// Libraries accept a Logger and fall back to NopLogger when given nil.
//
// # Metrics
//
// Metrics owns the Prometheus registry exposed on /metrics. Packages with
// their own collectors register them onto it via MustRegister.
//
// # Tracing
//
// NewTracer installs an OpenTelemetry tracer provider with an OTLP gRPC
// exporter when tracing is enabled.
package observability
