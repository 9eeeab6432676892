package dag

import (
	"errors"
	"testing"
	"time"

	apperrors "github.com/kbukum/intentflow/errors"
)

func TestRetryCoordinatorNext(t *testing.T) {
	c := NewRetryCoordinator(DefaultRetryPolicy(), map[IntentType]RetryPolicy{
		TypeTransfer: {MaxRetries: 0, BaseBackoff: time.Second, Multiplier: 2},
		TypePriceAlert: {
			MaxRetries: 5, BaseBackoff: 10 * time.Millisecond, Multiplier: 2,
			RetryableCodes: []apperrors.ErrorCode{apperrors.ErrCodeRateLimited},
		},
	})
	c.rand = func() float64 { return 0.5 }

	unavailable := apperrors.ServiceUnavailable("exchange")
	tests := []struct {
		name      string
		typ       IntentType
		attempts  int
		err       error
		wantRetry bool
		wantDelay time.Duration
	}{
		{"first failure", TypeTokenTrade, 1, unavailable, true, 500 * time.Millisecond},
		{"second failure", TypeTokenTrade, 2, unavailable, true, time.Second},
		{"third failure", TypeTokenTrade, 3, unavailable, true, 2 * time.Second},
		{"retries exhausted", TypeTokenTrade, 4, unavailable, false, 0},
		{"insufficient funds", TypeTokenTrade, 1, apperrors.InsufficientFunds("ETH"), false, 0},
		{"untagged error", TypeTokenTrade, 1, errors.New("boom"), false, 0},
		{"type with zero retries", TypeTransfer, 1, unavailable, false, 0},
		{"code outside allow list", TypePriceAlert, 1, unavailable, false, 0},
		{"code in allow list", TypePriceAlert, 1, apperrors.RateLimited(), true, 10 * time.Millisecond},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			delay, ok := c.Next(tt.typ, tt.attempts, tt.err)
			if ok != tt.wantRetry {
				t.Fatalf("retry = %v, want %v", ok, tt.wantRetry)
			}
			if ok && delay != tt.wantDelay {
				t.Errorf("delay = %v, want %v", delay, tt.wantDelay)
			}
		})
	}
}

func TestRetryJitterBounds(t *testing.T) {
	c := NewRetryCoordinator(DefaultRetryPolicy(), nil)
	for range 200 {
		d, ok := c.Next(TypeReminder, 1, apperrors.ConnectionFailed("x"))
		if !ok {
			t.Fatal("expected a retry")
		}
		if d < 400*time.Millisecond || d > 600*time.Millisecond {
			t.Fatalf("delay %v outside 500ms ±20%%", d)
		}
	}
}

func TestRetryPolicyValidate(t *testing.T) {
	if err := DefaultRetryPolicy().Validate(); err != nil {
		t.Fatalf("default policy invalid: %v", err)
	}
	bad := []RetryPolicy{
		{MaxRetries: -1, Multiplier: 1},
		{Multiplier: 0.5},
		{Multiplier: 2, Jitter: 1},
		{Multiplier: 2, BaseBackoff: time.Second, MaxBackoff: time.Millisecond},
	}
	for i, p := range bad {
		if err := p.Validate(); err == nil {
			t.Errorf("policy %d: expected error", i)
		}
	}
}
