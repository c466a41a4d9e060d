// Package tracing configures OpenTelemetry tracing for sentinel.
//
// New builds an OTLP gRPC exporter from config.TracingConfig and installs the
// resulting provider globally. The rules and workflow packages obtain their
// tracers through otel.Tracer, so once the provider is installed evaluations,
// transitions and escalation sweeps are exported without further wiring.
//
//	tracer, err := tracing.New(&cfg.Telemetry.Tracing, version)
//	if err != nil {
//		return err
//	}
//	defer tracer.Shutdown(context.Background())
//
// Sampling is parent based with an always, never or ratio root sampler.
package tracing
