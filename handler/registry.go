package handler

import (
	"fmt"

	"github.com/kbukum/intentflow/dag"
	apperrors "github.com/kbukum/intentflow/errors"
	"github.com/kbukum/intentflow/handler/webhook"
	"github.com/kbukum/intentflow/logger"
	"github.com/kbukum/intentflow/observability"
	"github.com/kbukum/intentflow/resilience"
)

// RegistryOption configures NewRegistry.
type RegistryOption func(*registryOptions)

type registryOptions struct {
	log      *logger.Logger
	metrics  *observability.Metrics
	tracing  bool
	webhooks []webhook.Option
}

// WithLogger logs every handler call.
func WithLogger(l *logger.Logger) RegistryOption {
	return func(o *registryOptions) { o.log = l }
}

// WithMetrics records handler metrics.
func WithMetrics(m *observability.Metrics) RegistryOption {
	return func(o *registryOptions) { o.metrics = m }
}

// WithTracing opens a span around every handler call.
func WithTracing() RegistryOption {
	return func(o *registryOptions) { o.tracing = true }
}

// WithWebhookOptions passes options to every webhook handler.
func WithWebhookOptions(opts ...webhook.Option) RegistryOption {
	return func(o *registryOptions) { o.webhooks = append(o.webhooks, opts...) }
}

// NewRegistry builds a handler registry from cfg. cfg must have defaults
// applied. Middleware runs outermost first: logging, tracing, metrics,
// circuit breaker, bulkhead, rate limit, attempt timeout.
func NewRegistry(cfg Config, opts ...RegistryOption) (*dag.Registry, error) {
	o := &registryOptions{}
	for _, opt := range opts {
		opt(o)
	}

	reg := dag.NewRegistry(middleware(cfg.Middleware, o)...)
	if cfg.DryRun {
		var fixtures *Fixtures
		if cfg.Fixtures != "" {
			f, err := LoadFixtures(cfg.Fixtures)
			if err != nil {
				return nil, fmt.Errorf("handlers: %w", err)
			}
			fixtures = f
		}
		NewStatic(fixtures).Register(reg)
	}
	if err := webhook.Register(reg, cfg.Webhooks, o.webhooks...); err != nil {
		return nil, fmt.Errorf("handlers: %w", err)
	}
	return reg, nil
}

func middleware(cfg MiddlewareConfig, o *registryOptions) []dag.Middleware {
	var mw []dag.Middleware
	log := logger.Nop()
	if o.log != nil {
		log = o.log.WithComponent("handler")
		mw = append(mw, dag.WithLogging(log))
	}
	if o.tracing {
		mw = append(mw, dag.WithTracing("intent"))
	}
	if o.metrics != nil {
		mw = append(mw, dag.WithMetrics(o.metrics))
	}
	if cb := cfg.CircuitBreaker; cb.Enabled {
		mw = append(mw, dag.WithCircuitBreaker(resilience.CircuitBreakerConfig{
			MaxFailures:      cb.MaxFailures,
			OpenTimeout:      cb.OpenTimeout,
			HalfOpenMaxCalls: cb.HalfOpenMaxCalls,
			IsFailure:        apperrors.IsRetryable,
			OnStateChange: func(intentType string, from, to resilience.State) {
				log.Warn("Circuit breaker state changed", logger.Fields(
					logger.FieldIntentType, intentType, "from", from.String(), "to", to.String()))
			},
		}))
	}
	if bh := cfg.Bulkhead; bh.Enabled {
		mw = append(mw, dag.WithBulkhead(resilience.BulkheadConfig{
			MaxConcurrent: bh.MaxConcurrent,
			MaxWait:       bh.MaxWait,
		}))
	}
	if rl := cfg.RateLimit; rl.Enabled {
		mw = append(mw, dag.WithRateLimit(resilience.RateLimiterConfig{Rate: rl.Rate, Burst: rl.Burst}))
	}
	if cfg.AttemptTimeout > 0 {
		mw = append(mw, dag.WithAttemptTimeout(cfg.AttemptTimeout))
	}
	return mw
}
