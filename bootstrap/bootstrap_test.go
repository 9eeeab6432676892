package bootstrap

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/kbukum/intentflow/component"
	"github.com/kbukum/intentflow/config"
	"github.com/kbukum/intentflow/logger"
)

type testConfig struct {
	config.ServiceConfig
}

type mockComponent struct {
	name     string
	startErr error
	stopErr  error
	health   component.Health
	started  bool
	stopped  bool
}

func (m *mockComponent) Name() string { return m.name }
func (m *mockComponent) Start(ctx context.Context) error {
	m.started = true
	return m.startErr
}
func (m *mockComponent) Stop(ctx context.Context) error {
	m.stopped = true
	return m.stopErr
}
func (m *mockComponent) Health(ctx context.Context) component.Health { return m.health }
func (m *mockComponent) Describe() component.Description {
	return component.Description{Type: "test", Details: "in-memory", Port: 8080}
}

func TestNewAppValidatesConfig(t *testing.T) {
	if _, err := NewApp(&testConfig{}); err == nil {
		t.Error("expected error for missing name")
	}

	app, _ := newTestApp(t)
	if app.Name != "intentd" || app.Version != "1.2.3" {
		t.Errorf("app = %s %s", app.Name, app.Version)
	}
	if app.Cfg.Environment != "development" {
		t.Errorf("defaults not applied: %q", app.Cfg.Environment)
	}
}

func TestRunTaskLifecycle(t *testing.T) {
	app, out := newTestApp(t)
	c := &mockComponent{name: "redis", health: component.Health{Name: "redis", Status: component.StatusHealthy}}
	app.RegisterComponent(c)

	var events []string
	app.OnStart("warmup", func(context.Context) error { events = append(events, "start"); return nil })
	app.OnStop("tracing", func(context.Context) error {
		if c.stopped {
			t.Error("components stopped before stop hooks")
		}
		events = append(events, "stop tracing")
		return nil
	})
	app.OnStop("metrics", func(context.Context) error {
		events = append(events, "stop metrics")
		return fmt.Errorf("flush failed")
	})

	err := app.RunTask(context.Background(), func(ctx context.Context) error {
		if !c.started {
			t.Error("task ran before components started")
		}
		events = append(events, "task")
		return nil
	})
	if err == nil || !strings.Contains(err.Error(), `stop hook "metrics": flush failed`) {
		t.Fatalf("RunTask err = %v", err)
	}
	if fmt.Sprint(events) != "[start task stop metrics stop tracing]" {
		t.Errorf("events = %v", events)
	}
	if !c.stopped {
		t.Error("component not stopped")
	}
	if s := out.String(); !strings.Contains(s, "intentd 1.2.3") || !strings.Contains(s, "✓ redis") || !strings.Contains(s, ":8080") {
		t.Errorf("summary = %q", s)
	}
}

func TestRunTaskErrors(t *testing.T) {
	t.Run("task error wins", func(t *testing.T) {
		app, _ := newTestApp(t)
		app.RegisterComponent(&mockComponent{name: "x", stopErr: fmt.Errorf("stop")})
		err := app.RunTask(context.Background(), func(context.Context) error { return fmt.Errorf("task") })
		if err == nil || err.Error() != "task" {
			t.Errorf("err = %v", err)
		}
	})
	t.Run("start hook failure", func(t *testing.T) {
		app, _ := newTestApp(t)
		c := &mockComponent{name: "x"}
		app.RegisterComponent(c)
		app.OnStart("warmup", func(context.Context) error { return fmt.Errorf("cold") })
		err := app.RunTask(context.Background(), func(context.Context) error { return nil })
		if err == nil || err.Error() != `start hook "warmup": cold` {
			t.Errorf("err = %v", err)
		}
		if !c.stopped {
			t.Error("component not stopped after failed start hook")
		}
	})
	t.Run("start failure", func(t *testing.T) {
		app, _ := newTestApp(t)
		ran := false
		app.RegisterComponent(&mockComponent{name: "x", startErr: fmt.Errorf("refused")})
		err := app.RunTask(context.Background(), func(context.Context) error { ran = true; return nil })
		if err == nil || !strings.Contains(err.Error(), "refused") {
			t.Errorf("err = %v", err)
		}
		if ran {
			t.Error("task ran after failed start")
		}
	})
}

func TestRunStopsOnContextCancel(t *testing.T) {
	app, _ := newTestApp(t)
	c := &mockComponent{name: "x", health: component.Health{Name: "x", Status: component.StatusHealthy}}
	app.RegisterComponent(c)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := app.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !c.stopped {
		t.Error("component not stopped")
	}
}

func TestReadyCheck(t *testing.T) {
	app, _ := newTestApp(t)
	app.RegisterComponent(&mockComponent{name: "ok", health: component.Health{Name: "ok", Status: component.StatusHealthy}})
	app.RegisterComponent(&mockComponent{name: "redis", health: component.Health{
		Name: "redis", Status: component.StatusUnhealthy, Message: "dial tcp: refused",
	}})
	err := app.ReadyCheck(context.Background())
	if err == nil || !strings.Contains(err.Error(), "redis=unhealthy (dial tcp: refused)") {
		t.Errorf("err = %v", err)
	}
}

// --- test helpers ---

func newTestApp(t *testing.T) (*App[*testConfig], *bytes.Buffer) {
	t.Helper()
	cfg := &testConfig{ServiceConfig: config.ServiceConfig{Name: "intentd", Version: "1.2.3"}}
	var out bytes.Buffer
	app, err := NewApp(cfg, WithLogger(logger.Nop()), WithSummaryOutput(&out), WithShutdownTimeout(time.Second))
	if err != nil {
		t.Fatalf("NewApp: %v", err)
	}
	return app, &out
}
