package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/zacode-app/zacode-auth/pkg/metrics"
)

// Metrics tracks in-flight requests and observes per-route latency. The route
// template is used as the path label so /api/v1/auth/verify-otp and friends
// stay low-cardinality; unmatched routes fall into a single bucket.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		metrics.RequestsInFlight.Inc()
		start := time.Now()

		c.Next()

		metrics.RequestsInFlight.Dec()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())
		metrics.APILatency.WithLabelValues(c.Request.Method, path, status).
			Observe(time.Since(start).Seconds())
	}
}
