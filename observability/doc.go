// Package observability wires OpenTelemetry tracing and metrics.
//
//	shutdown, err := observability.Setup(ctx, cfg.Observability, "intentd", version.Version, cfg.Environment)
//	defer shutdown(ctx)
//
//	metrics, err := observability.NewMetrics(observability.Meter("intentd"))
//	metrics.RecordExecution(ctx, "completed", elapsed)
//
// Handler attempts are traced with StartNodeSpan and EndSpan. A nil
// *Metrics records nothing.
package observability
