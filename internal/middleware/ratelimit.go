package middleware

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mailit/tracking-gateway/internal/metrics"
	"github.com/mailit/tracking-gateway/internal/ratelimit"
)

// QuotaLimit enforces the tenant's daily request quota. One token per
// request regardless of payload size. Batch create is excluded from
// this middleware; its handler checks batch size before spending a
// token.
func QuotaLimit(limiter *ratelimit.Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		tenant := TenantFrom(c)
		if tenant == nil {
			c.Next()
			return
		}

		err := limiter.CheckQuota(tenant)

		if !tenant.Plan.Unlimited() {
			c.Header("X-RateLimit-Limit", strconv.Itoa(tenant.Plan.RequestsPerDay()))
			c.Header("X-RateLimit-Remaining", strconv.Itoa(limiter.Remaining(tenant)))
			c.Header("X-RateLimit-Reset", strconv.FormatInt(limiter.ResetAt().Unix(), 10))
		}

		var quotaErr *ratelimit.QuotaError
		if errors.As(err, &quotaErr) {
			metrics.QuotaRejections.WithLabelValues(string(tenant.Plan)).Inc()
			retryAfter := quotaErr.RetryAfter(time.Now())
			c.Header("Retry-After", strconv.Itoa(retryAfter))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": gin.H{
					"code":           "QUOTA_EXCEEDED",
					"message":        "daily request quota exceeded",
					"correlation_id": CorrelationID(c),
				},
				"retry_after": retryAfter,
			})
			return
		}

		c.Next()
	}
}
