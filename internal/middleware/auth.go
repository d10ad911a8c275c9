package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/mailit/tracking-gateway/internal/models"
	"github.com/mailit/tracking-gateway/internal/service"
)

const tenantKey = "tenant"

// APIKeyAuth authenticates tenant requests via the X-API-Key header and
// stores the verified tenant in the request context.
func APIKeyAuth(auth *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		apiKey := c.GetHeader("X-API-Key")
		if apiKey == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": gin.H{
					"code":           "MISSING_API_KEY",
					"message":        "X-API-Key header is required",
					"correlation_id": CorrelationID(c),
				},
			})
			return
		}

		tenant, err := auth.VerifyAPIKey(c.Request.Context(), apiKey)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": gin.H{
					"code":           "INVALID_API_KEY",
					"message":        "invalid API key",
					"correlation_id": CorrelationID(c),
				},
			})
			return
		}

		c.Set(tenantKey, tenant)
		c.Next()
	}
}

// TenantFrom returns the authenticated tenant, or nil outside the
// authenticated route group.
func TenantFrom(c *gin.Context) *models.Tenant {
	value, ok := c.Get(tenantKey)
	if !ok {
		return nil
	}
	tenant, _ := value.(*models.Tenant)
	return tenant
}

// AdminAuth authenticates admin-plane requests with a bearer JWT.
func AdminAuth(admin *service.AdminService) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": gin.H{
					"code":           "MISSING_TOKEN",
					"message":        "Authorization: Bearer token is required",
					"correlation_id": CorrelationID(c),
				},
			})
			return
		}

		email, err := admin.ValidateToken(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": gin.H{
					"code":           "INVALID_TOKEN",
					"message":        "invalid or expired token",
					"correlation_id": CorrelationID(c),
				},
			})
			return
		}

		c.Set("admin_email", email)
		c.Next()
	}
}
