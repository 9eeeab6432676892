package dag

import (
	"context"
	"errors"
	"time"

	apperrors "github.com/kbukum/intentflow/errors"
	"github.com/kbukum/intentflow/resilience"
)

// WithCircuitBreaker gives every intent type its own breaker. Only
// retryable errors count as failures unless cfg.IsFailure says otherwise.
// While the breaker is open calls fail with a retryable ServiceUnavailable
// without reaching the handler.
func WithCircuitBreaker(cfg resilience.CircuitBreakerConfig) Middleware {
	return func(t IntentType, next Handler) Handler {
		c := cfg
		c.Name = string(t)
		if c.IsFailure == nil {
			c.IsFailure = apperrors.IsRetryable
		}
		cb := resilience.NewCircuitBreaker(c)
		return HandlerFunc(func(ctx context.Context, params map[string]any) (any, error) {
			if err := cb.Allow(); err != nil {
				return nil, apperrors.ServiceUnavailable(string(t) + " handler").WithCause(err)
			}
			result, err := next.Execute(ctx, params)
			cb.Record(err)
			return result, err
		})
	}
}

// WithRateLimit gives every intent type its own token bucket. Calls wait
// for a token until their context ends.
func WithRateLimit(cfg resilience.RateLimiterConfig) Middleware {
	return func(t IntentType, next Handler) Handler {
		c := cfg
		c.Name = string(t)
		rl := resilience.NewRateLimiter(c)
		return HandlerFunc(func(ctx context.Context, params map[string]any) (any, error) {
			if err := rl.Wait(ctx); err != nil {
				return nil, contextError(ctx, string(t))
			}
			return next.Execute(ctx, params)
		})
	}
}

// WithBulkhead caps concurrent calls per intent type. A rejected call fails
// with a retryable RateLimited error.
func WithBulkhead(cfg resilience.BulkheadConfig) Middleware {
	return func(t IntentType, next Handler) Handler {
		c := cfg
		c.Name = string(t)
		bh := resilience.NewBulkhead(c)
		return HandlerFunc(func(ctx context.Context, params map[string]any) (any, error) {
			var result any
			var callErr error
			err := bh.Execute(ctx, func() error {
				result, callErr = next.Execute(ctx, params)
				return nil
			})
			switch {
			case errors.Is(err, resilience.ErrBulkheadFull), errors.Is(err, resilience.ErrBulkheadTimeout):
				return nil, apperrors.RateLimited().WithCause(err).WithDetail("intent_type", string(t))
			case err != nil:
				return nil, contextError(ctx, string(t))
			}
			return result, callErr
		})
	}
}

// WithAttemptTimeout bounds each handler call. An attempt that runs out of
// time fails with a retryable Timeout, leaving the execution deadline to
// bound the whole run.
func WithAttemptTimeout(d time.Duration) Middleware {
	return func(t IntentType, next Handler) Handler {
		return HandlerFunc(func(ctx context.Context, params map[string]any) (any, error) {
			attemptCtx, cancel := context.WithTimeout(ctx, d)
			defer cancel()
			result, err := next.Execute(attemptCtx, params)
			if err != nil && ctx.Err() == nil && errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
				return nil, apperrors.Timeout("attempt of " + string(t)).WithCause(err)
			}
			return result, err
		})
	}
}

// contextError converts the end of ctx into an AppError.
func contextError(ctx context.Context, op string) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return apperrors.Timeout(op)
	}
	return apperrors.Canceled(op)
}
