package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/intentflow/observability"
)

// Metrics records in-flight requests, request counts and durations. The
// route label is the matched pattern so ids do not explode cardinality.
func Metrics(m *observability.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		start := time.Now()
		m.RecordRequestStart(ctx)
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.RecordRequestEnd(ctx, c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}
