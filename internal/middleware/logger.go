package middleware

import (
	"log"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mailit/tracking-gateway/internal/metrics"
)

// Logger writes one line per request and feeds the latency histogram.
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}

		metrics.RequestDuration.
			WithLabelValues(c.Request.Method, route, strconv.Itoa(status)).
			Observe(latency.Seconds())

		log.Printf("%s %s %d %v [%s]",
			c.Request.Method,
			c.Request.URL.Path,
			status,
			latency,
			CorrelationID(c),
		)
	}
}
