package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/kbukum/intentflow/dag"
	"github.com/kbukum/intentflow/dag/testutil"
	apperrors "github.com/kbukum/intentflow/errors"
	"github.com/kbukum/intentflow/handler/webhook"
	"github.com/kbukum/intentflow/logger"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"dry run", Config{DryRun: true}, false},
		{"fixtures imply dry run", Config{Fixtures: "fixtures.yaml"}, false},
		{"webhook only", Config{Webhooks: map[dag.IntentType]webhook.Config{
			dag.TypeTransfer: {URL: "https://bank.example.com/transfer"},
		}}, false},
		{"nothing bound", Config{}, true},
		{"bad webhook", Config{DryRun: true, Webhooks: map[dag.IntentType]webhook.Config{
			dag.TypeTransfer: {URL: "bank"},
		}}, true},
		{"negative attempt timeout", Config{DryRun: true, Middleware: MiddlewareConfig{AttemptTimeout: -time.Second}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.cfg.ApplyDefaults()
			if err := tt.cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestNewRegistryWebhookReplacesStatic(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"status":"filled","venue":"webhook"}`))
	}))
	defer srv.Close()

	cfg := Config{
		DryRun: true,
		Webhooks: map[dag.IntentType]webhook.Config{
			dag.TypeTokenTrade: {URL: srv.URL},
		},
	}
	cfg.ApplyDefaults()
	reg, err := NewRegistry(cfg, WithLogger(logger.Nop()), WithTracing())
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	for _, typ := range dag.KnownTypes {
		if !reg.Has(typ) {
			t.Errorf("type %s not registered", typ)
		}
	}

	resp := runDraft(t, reg, testutil.NewDraft().
		Node("sentiment", dag.TypeSentimentCheck).
		Node("trade", dag.TypeTokenTrade).After("sentiment").
		Draft())
	trade, _ := resp.Node("trade")
	result, ok := trade.Result.(map[string]any)
	if trade.Status != dag.StatusSucceeded || !ok || result["venue"] != "webhook" {
		t.Errorf("trade = %+v", trade)
	}
	sentiment, _ := resp.Node("sentiment")
	if dry, _ := sentiment.Result.(map[string]any); dry["dry_run"] != true {
		t.Errorf("sentiment result = %#v", sentiment.Result)
	}
}

func TestNewRegistryLoadsFixtures(t *testing.T) {
	cfg := Config{Fixtures: writeFixtures(t)}
	cfg.ApplyDefaults()
	reg, err := NewRegistry(cfg)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	resp := runDraft(t, reg, testutil.NewDraft().Node("sentiment", dag.TypeSentimentCheck).Draft())
	sent, _ := resp.Node("sentiment")
	if result, _ := sent.Result.(map[string]any); result["label"] != "bullish" {
		t.Errorf("sentiment = %+v", sent)
	}

	cfg.Fixtures = "/does/not/exist.yaml"
	if _, err := NewRegistry(cfg); err == nil {
		t.Error("expected error for missing fixtures")
	}
}

func TestCircuitBreakerMiddleware(t *testing.T) {
	cfg := Config{
		DryRun: true,
		Middleware: MiddlewareConfig{
			CircuitBreaker: CircuitBreakerConfig{Enabled: true, MaxFailures: 2, OpenTimeout: time.Hour},
		},
	}
	cfg.ApplyDefaults()
	reg, err := NewRegistry(cfg)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	// Replace the dry-run transfer handler with one that always fails
	// retryably so the breaker counts it.
	reg.RegisterFunc(dag.TypeTransfer, func(context.Context, map[string]any) (any, error) {
		return nil, apperrors.ExternalServiceError("bank", nil)
	})
	h, _ := reg.Lookup(dag.TypeTransfer)

	for i := 0; i < 2; i++ {
		if _, err := h.Execute(context.Background(), nil); apperrors.CodeOf(err) != apperrors.ErrCodeExternalService {
			t.Fatalf("call %d err = %v", i+1, err)
		}
	}
	_, err = h.Execute(context.Background(), nil)
	if apperrors.CodeOf(err) != apperrors.ErrCodeServiceUnavailable || !apperrors.IsRetryable(err) {
		t.Errorf("open breaker err = %v", err)
	}
}

func TestAttemptTimeoutMiddleware(t *testing.T) {
	cfg := Config{DryRun: true, Middleware: MiddlewareConfig{AttemptTimeout: 10 * time.Millisecond}}
	cfg.ApplyDefaults()
	reg, err := NewRegistry(cfg)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	reg.RegisterFunc(dag.TypeReminder, func(ctx context.Context, _ map[string]any) (any, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	h, _ := reg.Lookup(dag.TypeReminder)
	_, err = h.Execute(context.Background(), nil)
	if apperrors.CodeOf(err) != apperrors.ErrCodeTimeout || !apperrors.IsRetryable(err) {
		t.Errorf("err = %v, want retryable TIMEOUT", err)
	}
}

// --- test helpers ---

func writeFixtures(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fixtures.yaml")
	if err := os.WriteFile(path, []byte(fixturesYAML), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func runDraft(t *testing.T, reg *dag.Registry, d *dag.Draft) *dag.Response {
	t.Helper()
	e, err := dag.NewEngine(dag.Config{PoolSize: 8}, reg)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = e.Close(context.Background()) })
	resp, err := e.Run(context.Background(), d)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	return resp
}
