package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const correlationIDKey = "correlation_id"

// RequestID tags every request with a correlation ID, honoring one
// supplied by the caller. The ID is echoed back in the response and
// attached to every error envelope and log line.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}

		c.Set(correlationIDKey, id)
		c.Header("X-Request-ID", id)
		c.Next()
	}
}

// CorrelationID returns the request's correlation ID, or empty when the
// middleware did not run.
func CorrelationID(c *gin.Context) string {
	return c.GetString(correlationIDKey)
}
