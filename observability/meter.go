package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"

	"github.com/kbukum/intentflow/logger"
)

// initMeter installs a periodic OTLP meter provider as the global
// provider.
func initMeter(ctx context.Context, cfg Config, res *resource.Resource) (*sdkmetric.MeterProvider, error) {
	opts := []otlpmetrichttp.Option{otlpmetrichttp.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}
	exporter, err := otlpmetrichttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating metric exporter: %w", err)
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(cfg.MetricInterval))
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader), sdkmetric.WithResource(res))
	otel.SetMeterProvider(mp)

	logger.Info("meter initialized", logger.Fields("endpoint", cfg.Endpoint, "interval", cfg.MetricInterval.String()))
	return mp, nil
}

// Meter returns a named meter from the global provider.
func Meter(name string) metric.Meter {
	return otel.Meter(name)
}

// Metrics holds the instruments recorded by the engine and the HTTP server.
// A nil *Metrics records nothing.
type Metrics struct {
	requestTotal      metric.Int64Counter
	requestDuration   metric.Float64Histogram
	requestActive     metric.Int64UpDownCounter
	executionTotal    metric.Int64Counter
	executionDuration metric.Float64Histogram
	nodeTotal         metric.Int64Counter
	nodeDuration      metric.Float64Histogram
	retryTotal        metric.Int64Counter
	errorTotal        metric.Int64Counter
}

// NewMetrics creates the instruments on meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	var m Metrics
	var err error
	counter := func(dst *metric.Int64Counter, name, desc string) {
		if err == nil {
			*dst, err = meter.Int64Counter(name, metric.WithDescription(desc))
			if err != nil {
				err = fmt.Errorf("creating %s counter: %w", name, err)
			}
		}
	}
	histogram := func(dst *metric.Float64Histogram, name, desc string) {
		if err == nil {
			*dst, err = meter.Float64Histogram(name, metric.WithDescription(desc), metric.WithUnit("s"))
			if err != nil {
				err = fmt.Errorf("creating %s histogram: %w", name, err)
			}
		}
	}

	counter(&m.requestTotal, "http.request.total", "Total number of HTTP requests")
	histogram(&m.requestDuration, "http.request.duration", "Duration of HTTP requests in seconds")
	counter(&m.executionTotal, "intent.execution.total", "Executions by overall status")
	histogram(&m.executionDuration, "intent.execution.duration", "Wall-clock duration of executions in seconds")
	counter(&m.nodeTotal, "intent.node.total", "Handler calls by intent type and outcome")
	histogram(&m.nodeDuration, "intent.node.duration", "Duration of handler calls in seconds")
	counter(&m.retryTotal, "intent.retry.total", "Scheduled retries by intent type")
	counter(&m.errorTotal, "error.total", "Errors by type and component")
	if err != nil {
		return nil, err
	}

	m.requestActive, err = meter.Int64UpDownCounter("http.request.active",
		metric.WithDescription("Number of in-flight HTTP requests"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating http.request.active counter: %w", err)
	}
	return &m, nil
}

// RecordRequestStart increments the in-flight request count.
func (m *Metrics) RecordRequestStart(ctx context.Context) {
	if m == nil {
		return
	}
	m.requestActive.Add(ctx, 1)
}

// RecordRequestEnd decrements in-flight requests and records the request.
func (m *Metrics) RecordRequestEnd(ctx context.Context, method, route string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	attrs := []attribute.KeyValue{
		attribute.String("method", method),
		attribute.String("route", route),
	}
	m.requestActive.Add(ctx, -1)
	m.requestTotal.Add(ctx, 1, metric.WithAttributes(append(attrs, attribute.Int("status", status))...))
	m.requestDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// RecordExecution records a finished execution.
func (m *Metrics) RecordExecution(ctx context.Context, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.executionTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
	m.executionDuration.Record(ctx, duration.Seconds())
}

// RecordNode records one handler call.
func (m *Metrics) RecordNode(ctx context.Context, intentType, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.nodeTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("intent_type", intentType),
		attribute.String("status", status),
	))
	m.nodeDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String("intent_type", intentType),
	))
}

// RecordRetry counts a scheduled retry.
func (m *Metrics) RecordRetry(ctx context.Context, intentType string) {
	if m == nil {
		return
	}
	m.retryTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("intent_type", intentType)))
}

// RecordError records an error by type and component.
func (m *Metrics) RecordError(ctx context.Context, errType, component string) {
	if m == nil {
		return
	}
	m.errorTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("type", errType),
		attribute.String("component", component),
	))
}
