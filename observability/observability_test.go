package observability

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

func TestConfigDefaultsAndValidate(t *testing.T) {
	var cfg Config
	cfg.ApplyDefaults()
	if cfg.Endpoint != "localhost:4318" || cfg.SampleRate != 1.0 || cfg.MetricInterval != 15*time.Second {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	cfg.SampleRate = 1.5
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for sample rate above 1")
	}
}

func TestSetupDisabled(t *testing.T) {
	shutdown, err := Setup(context.Background(), Config{}, "intentd", "dev", "test")
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("shutdown: %v", err)
	}
}

func TestSampler(t *testing.T) {
	tests := []struct {
		rate float64
		want string
	}{
		{1.0, "AlwaysOnSampler"},
		{0, "AlwaysOffSampler"},
		{-1, "AlwaysOffSampler"},
	}
	for _, tt := range tests {
		if got := sampler(tt.rate).Description(); got != tt.want {
			t.Errorf("sampler(%v) = %q, want %q", tt.rate, got, tt.want)
		}
	}
}

func TestMetricsRecord(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	metrics, err := NewMetrics(mp.Meter("test"))
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}

	ctx := context.Background()
	metrics.RecordExecution(ctx, "completed", 20*time.Millisecond)
	metrics.RecordNode(ctx, "token-trade", "ok", 5*time.Millisecond)
	metrics.RecordRetry(ctx, "token-trade")
	metrics.RecordRetry(ctx, "token-trade")
	metrics.RecordRequestStart(ctx)
	metrics.RecordRequestEnd(ctx, "POST", "/v1/executions", 200, time.Millisecond)

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	got := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if sum, ok := m.Data.(metricdata.Sum[int64]); ok {
				for _, dp := range sum.DataPoints {
					got[m.Name] += dp.Value
				}
			}
		}
	}
	want := map[string]int64{
		"intent.execution.total": 1,
		"intent.node.total":      1,
		"intent.retry.total":     2,
		"http.request.total":     1,
		"http.request.active":    0,
	}
	for name, v := range want {
		if got[name] != v {
			t.Errorf("%s = %d, want %d", name, got[name], v)
		}
	}
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	ctx := context.Background()
	m.RecordExecution(ctx, "failed", time.Second)
	m.RecordNode(ctx, "transfer", "error", time.Second)
	m.RecordRetry(ctx, "transfer")
	m.RecordError(ctx, "handler", "transfer")
	m.RecordRequestStart(ctx)
	m.RecordRequestEnd(ctx, "GET", "/health", 200, time.Second)
}

func TestNewMetricsNoop(t *testing.T) {
	if _, err := NewMetrics(noop.NewMeterProvider().Meter("test")); err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
}

func TestNodeSpan(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	defer otel.SetTracerProvider(prev)

	_, span := StartNodeSpan(context.Background(), "intent.token-trade", NodeSpan{
		ExecutionID: "exec-1", NodeID: "buy", IntentType: "token-trade", Attempt: 2,
	})
	EndSpan(span, errors.New("insufficient funds"))

	_, ok := StartNodeSpan(context.Background(), "intent.price-alert", NodeSpan{IntentType: "price-alert"})
	EndSpan(ok, nil)

	ended := sr.Ended()
	if len(ended) != 2 {
		t.Fatalf("ended spans = %d, want 2", len(ended))
	}
	failed := ended[0]
	if failed.Name() != "intent.token-trade" || failed.SpanKind() != trace.SpanKindClient {
		t.Errorf("span = %q kind %v", failed.Name(), failed.SpanKind())
	}
	attrs := map[string]string{}
	for _, kv := range failed.Attributes() {
		attrs[string(kv.Key)] = kv.Value.Emit()
	}
	want := map[string]string{AttrExecutionID: "exec-1", AttrNodeID: "buy", AttrIntentType: "token-trade", AttrAttempt: "2"}
	for k, v := range want {
		if attrs[k] != v {
			t.Errorf("%s = %q, want %q", k, attrs[k], v)
		}
	}
	if failed.Status().Code != codes.Error || len(failed.Events()) != 1 {
		t.Errorf("status = %+v, events = %d", failed.Status(), len(failed.Events()))
	}

	if len(ended[1].Attributes()) != 1 || ended[1].Status().Code != codes.Unset {
		t.Errorf("ok span = %v %+v", ended[1].Attributes(), ended[1].Status())
	}
}

