package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"eduquiz-platform/internal/telemetry"
)

// MetricsMiddleware records request count and duration per route outcome.
func MetricsMiddleware(metrics *telemetry.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := "success"
		if c.Writer.Status() >= 400 {
			status = "error"
		}

		metrics.RecordRequest(c.Request.Method, c.FullPath(), status, duration)
	}
}
