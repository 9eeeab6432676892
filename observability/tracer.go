package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/kbukum/intentflow/logger"
)

const instrumentationName = "github.com/kbukum/intentflow"

// Span attribute keys.
const (
	AttrExecutionID = "intent.execution_id"
	AttrNodeID      = "intent.node_id"
	AttrIntentType  = "intent.type"
	AttrAttempt     = "intent.attempt"
)

// initTracer installs a batching OTLP tracer provider and the W3C
// propagators as globals.
func initTracer(ctx context.Context, cfg Config, res *resource.Resource) (*sdktrace.TracerProvider, error) {
	opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	exporter, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating trace exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler(cfg.SampleRate)),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	logger.Info("tracer initialized", logger.Fields("endpoint", cfg.Endpoint, "sample_rate", cfg.SampleRate))
	return tp, nil
}

func sampler(rate float64) sdktrace.Sampler {
	switch {
	case rate >= 1.0:
		return sdktrace.AlwaysSample()
	case rate <= 0:
		return sdktrace.NeverSample()
	default:
		return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(rate))
	}
}

func newResource(service, version, environment string) (*resource.Resource, error) {
	return resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(service),
			semconv.ServiceVersion(version),
			semconv.DeploymentEnvironment(environment),
		),
	)
}

// NodeSpan identifies one handler attempt.
type NodeSpan struct {
	ExecutionID string
	NodeID      string
	IntentType  string
	Attempt     int
}

func (n NodeSpan) attributes() []attribute.KeyValue {
	attrs := []attribute.KeyValue{attribute.String(AttrIntentType, n.IntentType)}
	if n.ExecutionID != "" {
		attrs = append(attrs, attribute.String(AttrExecutionID, n.ExecutionID))
	}
	if n.NodeID != "" {
		attrs = append(attrs, attribute.String(AttrNodeID, n.NodeID))
	}
	if n.Attempt > 0 {
		attrs = append(attrs, attribute.Int(AttrAttempt, n.Attempt))
	}
	return attrs
}

// StartNodeSpan starts a client span for one handler attempt using the
// global tracer provider.
func StartNodeSpan(ctx context.Context, name string, n NodeSpan) (context.Context, trace.Span) {
	return otel.Tracer(instrumentationName).Start(ctx, name,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(n.attributes()...),
	)
}

// EndSpan marks span failed when err is non-nil, then ends it.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
