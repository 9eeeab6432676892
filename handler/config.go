package handler

import (
	"fmt"
	"time"

	"github.com/kbukum/intentflow/dag"
	"github.com/kbukum/intentflow/handler/webhook"
)

// Config selects the handler bound to each intent type.
type Config struct {
	// DryRun binds the static handler to every built-in type. Webhooks
	// still replace it for the types they name.
	DryRun bool `yaml:"dry_run" mapstructure:"dry_run"`
	// Fixtures is a YAML file of static outcomes. Setting it implies DryRun.
	Fixtures   string                            `yaml:"fixtures" mapstructure:"fixtures"`
	Webhooks   map[dag.IntentType]webhook.Config `yaml:"webhooks" mapstructure:"webhooks"`
	Middleware MiddlewareConfig                  `yaml:"middleware" mapstructure:"middleware"`
}

// MiddlewareConfig enables per-type resilience wrappers.
type MiddlewareConfig struct {
	// AttemptTimeout bounds one handler call. 0 leaves only the execution
	// deadline.
	AttemptTimeout time.Duration        `yaml:"attempt_timeout" mapstructure:"attempt_timeout"`
	CircuitBreaker CircuitBreakerConfig `yaml:"circuit_breaker" mapstructure:"circuit_breaker"`
	RateLimit      RateLimitConfig      `yaml:"rate_limit" mapstructure:"rate_limit"`
	Bulkhead       BulkheadConfig       `yaml:"bulkhead" mapstructure:"bulkhead"`
}

type CircuitBreakerConfig struct {
	Enabled          bool          `yaml:"enabled" mapstructure:"enabled"`
	MaxFailures      int           `yaml:"max_failures" mapstructure:"max_failures"`
	OpenTimeout      time.Duration `yaml:"open_timeout" mapstructure:"open_timeout"`
	HalfOpenMaxCalls int           `yaml:"half_open_max_calls" mapstructure:"half_open_max_calls"`
}

type RateLimitConfig struct {
	Enabled bool    `yaml:"enabled" mapstructure:"enabled"`
	Rate    float64 `yaml:"rate" mapstructure:"rate"`
	Burst   int     `yaml:"burst" mapstructure:"burst"`
}

type BulkheadConfig struct {
	Enabled       bool          `yaml:"enabled" mapstructure:"enabled"`
	MaxConcurrent int           `yaml:"max_concurrent" mapstructure:"max_concurrent"`
	MaxWait       time.Duration `yaml:"max_wait" mapstructure:"max_wait"`
}

// ApplyDefaults fills zero values of enabled sections and of every webhook.
func (c *Config) ApplyDefaults() {
	if c.Fixtures != "" {
		c.DryRun = true
	}
	for t, wh := range c.Webhooks {
		wh.ApplyDefaults()
		c.Webhooks[t] = wh
	}
	m := &c.Middleware
	if m.CircuitBreaker.Enabled {
		if m.CircuitBreaker.MaxFailures <= 0 {
			m.CircuitBreaker.MaxFailures = 5
		}
		if m.CircuitBreaker.OpenTimeout <= 0 {
			m.CircuitBreaker.OpenTimeout = 30 * time.Second
		}
		if m.CircuitBreaker.HalfOpenMaxCalls <= 0 {
			m.CircuitBreaker.HalfOpenMaxCalls = 1
		}
	}
	if m.RateLimit.Enabled {
		if m.RateLimit.Rate <= 0 {
			m.RateLimit.Rate = 10
		}
		if m.RateLimit.Burst <= 0 {
			m.RateLimit.Burst = max(1, int(m.RateLimit.Rate))
		}
	}
	if m.Bulkhead.Enabled && m.Bulkhead.MaxConcurrent <= 0 {
		m.Bulkhead.MaxConcurrent = 10
	}
}

// Validate checks that at least one handler is configured and that every
// webhook is usable.
func (c *Config) Validate() error {
	if !c.DryRun && len(c.Webhooks) == 0 {
		return fmt.Errorf("handlers: enable dry_run or configure at least one webhook")
	}
	for t, wh := range c.Webhooks {
		if t == "" {
			return fmt.Errorf("handlers: webhook with empty intent type")
		}
		if err := wh.Validate(); err != nil {
			return fmt.Errorf("handlers.webhooks.%s: %w", t, err)
		}
	}
	if c.Middleware.AttemptTimeout < 0 {
		return fmt.Errorf("handlers.middleware: attempt_timeout must not be negative")
	}
	return nil
}
