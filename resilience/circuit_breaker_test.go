package resilience

import (
	"errors"
	"testing"
	"time"
)

var errDown = errors.New("down")

func newTestBreaker(maxFailures int) (*CircuitBreaker, *time.Time) {
	now := time.Unix(0, 0)
	cb := NewCircuitBreaker(CircuitBreakerConfig{Name: "test", MaxFailures: maxFailures, OpenTimeout: time.Minute})
	cb.now = func() time.Time { return now }
	return cb, &now
}

func TestCircuitBreaker_OpensAfterMaxFailures(t *testing.T) {
	cb, _ := newTestBreaker(2)
	for i := 0; i < 2; i++ {
		if err := cb.Execute(func() error { return errDown }); !errors.Is(err, errDown) {
			t.Fatalf("expected errDown, got %v", err)
		}
	}
	if cb.State() != StateOpen {
		t.Fatalf("expected open, got %s", cb.State())
	}
	called := false
	if err := cb.Execute(func() error { called = true; return nil }); !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("expected ErrCircuitOpen, got %v", err)
	}
	if called {
		t.Error("fn must not run while open")
	}
}

func TestCircuitBreaker_HalfOpenRecovery(t *testing.T) {
	cb, now := newTestBreaker(1)
	_ = cb.Execute(func() error { return errDown })
	*now = now.Add(time.Minute)

	if cb.State() != StateHalfOpen {
		t.Fatalf("expected half-open after timeout, got %s", cb.State())
	}
	if err := cb.Execute(func() error { return nil }); err != nil {
		t.Fatalf("probe should pass: %v", err)
	}
	if cb.State() != StateClosed {
		t.Errorf("expected closed after successful probe, got %s", cb.State())
	}
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	cb, now := newTestBreaker(3)
	for i := 0; i < 3; i++ {
		_ = cb.Execute(func() error { return errDown })
	}
	*now = now.Add(time.Minute)
	_ = cb.Execute(func() error { return errDown })
	if cb.State() != StateOpen {
		t.Errorf("expected open after failed probe, got %s", cb.State())
	}
}

func TestCircuitBreaker_IsFailureFilter(t *testing.T) {
	business := errors.New("insufficient funds")
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		MaxFailures: 1,
		IsFailure:   func(err error) bool { return !errors.Is(err, business) },
	})
	_ = cb.Execute(func() error { return business })
	if cb.State() != StateClosed {
		t.Errorf("filtered errors must not trip the breaker, got %s", cb.State())
	}
}

func TestCircuitBreaker_StateChanges(t *testing.T) {
	var transitions []string
	cb, now := newTestBreaker(1)
	cb.cfg.Name = "exchange"
	cb.cfg.OnStateChange = func(name string, from, to State) {
		transitions = append(transitions, name+":"+from.String()+"->"+to.String())
	}

	_ = cb.Execute(func() error { return errDown })
	*now = now.Add(time.Minute)
	_ = cb.Execute(func() error { return nil })

	want := []string{"exchange:closed->open", "exchange:open->half-open", "exchange:half-open->closed"}
	if len(transitions) != len(want) {
		t.Fatalf("transitions = %v, want %v", transitions, want)
	}
	for i := range want {
		if transitions[i] != want[i] {
			t.Errorf("transition %d = %q, want %q", i, transitions[i], want[i])
		}
	}
}

func TestCircuitBreaker_HalfOpenAdmitsLimitedProbes(t *testing.T) {
	cb, now := newTestBreaker(1)
	_ = cb.Execute(func() error { return errDown })
	*now = now.Add(time.Minute)

	if err := cb.Allow(); err != nil {
		t.Fatalf("first probe rejected: %v", err)
	}
	if err := cb.Allow(); !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("second concurrent probe = %v, want ErrCircuitOpen", err)
	}
	cb.Record(nil)
	if cb.State() != StateClosed {
		t.Errorf("state = %s, want closed", cb.State())
	}
}

func TestStateString(t *testing.T) {
	for s, want := range map[State]string{StateClosed: "closed", StateOpen: "open", StateHalfOpen: "half-open", State(9): "unknown"} {
		if s.String() != want {
			t.Errorf("State(%d) = %q, want %q", int(s), s.String(), want)
		}
	}
}
