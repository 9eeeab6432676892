package dag

import (
	"fmt"
	"slices"
	"time"

	apperrors "github.com/kbukum/intentflow/errors"
	"github.com/kbukum/intentflow/resilience"
)

// RetryPolicy controls how failed attempts of one intent type are retried.
type RetryPolicy struct {
	// MaxRetries is the number of attempts after the first one.
	MaxRetries  int           `yaml:"max_retries" mapstructure:"max_retries"`
	BaseBackoff time.Duration `yaml:"base_backoff" mapstructure:"base_backoff"`
	Multiplier  float64       `yaml:"multiplier" mapstructure:"multiplier"`
	// Jitter randomizes each delay by up to this fraction in either direction.
	Jitter     float64       `yaml:"jitter" mapstructure:"jitter"`
	MaxBackoff time.Duration `yaml:"max_backoff" mapstructure:"max_backoff"`
	// RetryableCodes restricts retries to these codes. Empty accepts every
	// error tagged retryable.
	RetryableCodes []apperrors.ErrorCode `yaml:"retryable_codes" mapstructure:"retryable_codes"`
}

// DefaultRetryPolicy returns 3 retries starting at 500ms, doubling, with
// 20% jitter.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:  3,
		BaseBackoff: 500 * time.Millisecond,
		Multiplier:  2,
		Jitter:      0.2,
		MaxBackoff:  30 * time.Second,
	}
}

// Validate checks the policy for nonsensical values.
func (p RetryPolicy) Validate() error {
	switch {
	case p.MaxRetries < 0:
		return fmt.Errorf("max_retries must not be negative")
	case p.BaseBackoff < 0:
		return fmt.Errorf("base_backoff must not be negative")
	case p.Multiplier < 1:
		return fmt.Errorf("multiplier must be at least 1")
	case p.Jitter < 0 || p.Jitter >= 1:
		return fmt.Errorf("jitter must be in [0, 1)")
	case p.MaxBackoff > 0 && p.MaxBackoff < p.BaseBackoff:
		return fmt.Errorf("max_backoff must not be below base_backoff")
	}
	return nil
}

// Retryable reports whether err qualifies for another attempt under p.
func (p RetryPolicy) Retryable(err error) bool {
	appErr, ok := apperrors.AsAppError(err)
	if !ok || !appErr.Retryable {
		return false
	}
	return len(p.RetryableCodes) == 0 || slices.Contains(p.RetryableCodes, appErr.Code)
}

func (p RetryPolicy) backoff() resilience.Backoff {
	return resilience.Backoff{
		Base:       p.BaseBackoff,
		Multiplier: p.Multiplier,
		Max:        p.MaxBackoff,
		Jitter:     p.Jitter,
	}
}

// RetryCoordinator decides whether and when a failed node runs again. It
// never sleeps; the scheduler arms a timer for the returned delay.
type RetryCoordinator struct {
	def     RetryPolicy
	perType map[IntentType]RetryPolicy
	// rand overrides jitter randomness in tests.
	rand func() float64
}

// NewRetryCoordinator creates a coordinator with a default policy and
// optional per-type overrides.
func NewRetryCoordinator(def RetryPolicy, perType map[IntentType]RetryPolicy) *RetryCoordinator {
	c := &RetryCoordinator{def: def, perType: make(map[IntentType]RetryPolicy, len(perType))}
	for t, p := range perType {
		c.perType[t] = p
	}
	return c
}

// Policy returns the policy in effect for t.
func (c *RetryCoordinator) Policy(t IntentType) RetryPolicy {
	if p, ok := c.perType[t]; ok {
		return p
	}
	return c.def
}

// Next is called after attempt number attempts failed with err. It returns
// the delay before the next attempt, or false when the node has failed for
// good.
func (c *RetryCoordinator) Next(t IntentType, attempts int, err error) (time.Duration, bool) {
	p := c.Policy(t)
	if attempts > p.MaxRetries || !p.Retryable(err) {
		return 0, false
	}
	b := p.backoff()
	b.Rand = c.rand
	return b.Delay(attempts), true
}
