package dag

import (
	"context"
	"time"

	"github.com/kbukum/intentflow/logger"
	"github.com/kbukum/intentflow/observability"
)

// WithTracing opens a span named "{prefix}.{intent type}" around every
// handler call.
func WithTracing(prefix string) Middleware {
	return func(t IntentType, next Handler) Handler {
		spanName := prefix + "." + string(t)
		return HandlerFunc(func(ctx context.Context, params map[string]any) (any, error) {
			call, _ := CallFromContext(ctx)
			ctx, span := observability.StartNodeSpan(ctx, spanName, observability.NodeSpan{
				ExecutionID: call.ExecutionID,
				NodeID:      call.NodeID,
				IntentType:  string(t),
				Attempt:     call.Attempt,
			})
			result, err := next.Execute(ctx, params)
			observability.EndSpan(span, err)
			return result, err
		})
	}
}

// WithMetrics records the count, outcome and duration of handler calls.
func WithMetrics(metrics *observability.Metrics) Middleware {
	return func(t IntentType, next Handler) Handler {
		return HandlerFunc(func(ctx context.Context, params map[string]any) (any, error) {
			start := time.Now()
			result, err := next.Execute(ctx, params)

			status := "ok"
			if err != nil {
				status = "error"
				metrics.RecordError(ctx, "handler", string(t))
			}
			metrics.RecordNode(ctx, string(t), status, time.Since(start))
			return result, err
		})
	}
}

// WithLogging logs every handler call: debug on success, error on failure.
func WithLogging(log *logger.Logger) Middleware {
	return func(t IntentType, next Handler) Handler {
		return HandlerFunc(func(ctx context.Context, params map[string]any) (any, error) {
			start := time.Now()
			result, err := next.Execute(ctx, params)

			fields := logger.MergeWithDuration(logger.Fields(
				logger.FieldIntentType, string(t),
			), time.Since(start))
			if err != nil {
				log.WithContext(ctx).Error("intent handler failed", logger.MergeWithError(fields, err))
			} else {
				log.WithContext(ctx).Debug("intent handler completed", fields)
			}
			return result, err
		})
	}
}
