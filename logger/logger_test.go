package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"
)

// --- test helpers ---

func jsonLogger(level string) (*Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	l := NewWithWriter(&Config{Level: level, Format: FormatJSON}, "intentflow", &buf)
	return l, &buf
}

func lastEntry(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	var entry map[string]interface{}
	if err := json.Unmarshal([]byte(lines[len(lines)-1]), &entry); err != nil {
		t.Fatalf("invalid log line %q: %v", lines[len(lines)-1], err)
	}
	return entry
}

func TestNewDefault(t *testing.T) {
	l := NewDefault("test-svc")
	if l == nil {
		t.Fatal("expected non-nil logger")
	}
	if l.service != "test-svc" {
		t.Errorf("expected service 'test-svc', got %q", l.service)
	}
}

func TestNewWithWriter_JSONFields(t *testing.T) {
	l, buf := jsonLogger("debug")
	l.Info("node dispatched", NodeFields("exec-1", "b", "token-trade"))

	entry := lastEntry(t, buf)
	if entry["message"] != "node dispatched" {
		t.Errorf("unexpected message: %v", entry["message"])
	}
	if entry[FieldExecutionID] != "exec-1" || entry[FieldNodeID] != "b" || entry[FieldIntentType] != "token-trade" {
		t.Errorf("missing node fields: %v", entry)
	}
	if entry["service"] != "intentflow" {
		t.Errorf("expected service field, got %v", entry["service"])
	}
}

func TestLevelFiltering(t *testing.T) {
	l, buf := jsonLogger("warn")
	l.Info("hidden")
	if buf.Len() != 0 {
		t.Fatalf("expected info to be filtered, got %q", buf.String())
	}
	l.Warn("shown")
	if lastEntry(t, buf)["level"] != "warn" {
		t.Error("expected warn entry")
	}
}

func TestInvalidLevelFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&Config{Level: "loud", Format: FormatJSON}, "", &buf)
	l.Debug("hidden")
	l.Info("shown")
	if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), "shown") {
		t.Errorf("unexpected output: %q", buf.String())
	}
}

func TestWithContext(t *testing.T) {
	l, buf := jsonLogger("info")
	ctx := ContextWithExecutionID(context.Background(), "exec-9")
	ctx = ContextWithRequestID(ctx, "req-1")
	ctx = ContextWithUserID(ctx, "user-7")

	l.WithContext(ctx).Info("hello")
	entry := lastEntry(t, buf)
	if entry[FieldExecutionID] != "exec-9" || entry[FieldRequestID] != "req-1" || entry[FieldUserID] != "user-7" {
		t.Errorf("expected context ids in entry, got %v", entry)
	}
	if RequestIDFromContext(ctx) != "req-1" || UserIDFromContext(ctx) != "user-7" {
		t.Error("context accessors returned wrong values")
	}
}

func TestWithComponentAndError(t *testing.T) {
	l, buf := jsonLogger("info")
	l.WithComponent("scheduler").WithError(fmt.Errorf("boom")).Error("failed")
	entry := lastEntry(t, buf)
	if entry[FieldComponent] != "scheduler" {
		t.Errorf("expected component, got %v", entry[FieldComponent])
	}
	if entry["error"] != "boom" {
		t.Errorf("expected error field, got %v", entry["error"])
	}
}

func TestConsoleFormat(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&Config{Level: "info", Format: FormatConsole, NoColor: true}, "intentflow", &buf)
	l.Info("ready", Fields("port", 8080))
	out := buf.String()
	if !strings.Contains(out, "[INT][INF]") {
		t.Errorf("expected service and level tags, got %q", out)
	}
	if !strings.Contains(out, "ready") || !strings.Contains(out, "port:") {
		t.Errorf("expected message and field, got %q", out)
	}
}

func TestNop(t *testing.T) {
	Nop().Error("discarded", Fields("k", "v"))
}

func TestGlobalLogger(t *testing.T) {
	l := NewDefault("custom")
	SetGlobalLogger(l)
	if GetGlobalLogger() != l {
		t.Error("expected SetGlobalLogger to set the global logger")
	}
	globalLogger = nil
	if GetGlobalLogger() == nil {
		t.Fatal("expected default global logger to be created")
	}
	Init(Config{Level: "error", Format: FormatJSON}, "init")
	Info("suppressed")
}

func TestRegisterAndGet(t *testing.T) {
	l := NewDefault("custom-component")
	Register("my-component", l)
	if Get("my-component") != l {
		t.Error("expected Get to return the registered logger")
	}
	if Get("unregistered-component") == nil {
		t.Fatal("expected non-nil logger for unregistered component")
	}
}

func TestConfig(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()
	if cfg.Level != "info" || cfg.Format != FormatConsole || cfg.Output != "stdout" || !cfg.Timestamp {
		t.Errorf("unexpected defaults: %+v", cfg)
	}

	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"valid", Config{Level: "info", Format: "json", Output: "stdout"}, false},
		{"valid console", Config{Level: "debug", Format: "console", Output: "stderr"}, false},
		{"invalid level", Config{Level: "bad", Format: "json", Output: "stdout"}, true},
		{"invalid format", Config{Level: "info", Format: "xml", Output: "stdout"}, true},
		{"invalid output", Config{Level: "info", Format: "json", Output: "file"}, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.Validate()
			if (err != nil) != tc.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}

func TestFields(t *testing.T) {
	tests := []struct {
		name     string
		input    []interface{}
		expected map[string]interface{}
	}{
		{"key-value pairs", []interface{}{"op", "save", "id", 42}, map[string]interface{}{"op": "save", "id": 42}},
		{"odd number of args", []interface{}{"op", "save", "trailing"}, map[string]interface{}{"op": "save"}},
		{"non-string key skipped", []interface{}{123, "value", "key", "val"}, map[string]interface{}{"key": "val"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			result := Fields(tc.input...)
			if len(result) != len(tc.expected) {
				t.Fatalf("expected %d fields, got %d", len(tc.expected), len(result))
			}
			for k, v := range tc.expected {
				if result[k] != v {
					t.Errorf("Fields[%q] = %v, expected %v", k, result[k], v)
				}
			}
		})
	}
}

func TestHelperFields(t *testing.T) {
	err := fmt.Errorf("something broke")
	if f := ErrorFields("dispatch", err); f[FieldOperation] != "dispatch" || f[FieldError] != "something broke" {
		t.Errorf("unexpected error fields: %v", f)
	}
	if f := DurationFields("execute", 150*time.Millisecond); f[FieldDuration] != int64(150) {
		t.Errorf("unexpected duration fields: %v", f)
	}
	if f := MergeWithError(nil, err); f[FieldError] != "something broke" {
		t.Errorf("unexpected merged error: %v", f)
	}
	if f := MergeWithDuration(map[string]interface{}{"op": "q"}, 200*time.Millisecond); f[FieldDuration] != int64(200) || f["op"] != "q" {
		t.Errorf("unexpected merged duration: %v", f)
	}
}
