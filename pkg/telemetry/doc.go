// Package telemetry groups sentinel's observability packages.
//
//   - logging: slog setup with redaction of secrets and personal data
//   - metrics: Prometheus collector for rules, workflows, escalation and delivery
//   - tracing: OpenTelemetry provider with an OTLP gRPC exporter
//   - health: liveness and readiness probes served next to the metrics endpoint
//
// `sentinel run` wires all four from config.TelemetryConfig.
package telemetry
