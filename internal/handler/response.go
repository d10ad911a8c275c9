package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/mailit/tracking-gateway/internal/middleware"
	"github.com/mailit/tracking-gateway/internal/service"
	"github.com/mailit/tracking-gateway/internal/upstream"
)

func respondError(c *gin.Context, status int, code, message string) {
	c.JSON(status, gin.H{
		"error": gin.H{
			"code":           code,
			"message":        message,
			"correlation_id": middleware.CorrelationID(c),
		},
	})
}

// respondServiceError maps service and upstream errors onto the
// standard envelope.
func respondServiceError(c *gin.Context, err error) {
	var verr *service.ValidationError
	var unavailable *upstream.UnavailableError
	var upErr *upstream.Error

	switch {
	case errors.Is(err, service.ErrNotFound):
		respondError(c, http.StatusNotFound, "NOT_FOUND", "tracking not found")
	case errors.Is(err, service.ErrForbidden):
		respondError(c, http.StatusForbidden, "FORBIDDEN", "tracking belongs to another tenant")
	case errors.Is(err, service.ErrTenantNotFound):
		respondError(c, http.StatusNotFound, "NOT_FOUND", "tenant not found")
	case errors.As(err, &verr):
		respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", verr.Message)
	case errors.As(err, &unavailable):
		c.Header("Retry-After", strconv.FormatInt(unavailable.RetryAfter, 10))
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": gin.H{
				"code":           "UPSTREAM_UNAVAILABLE",
				"message":        unavailable.Message,
				"correlation_id": middleware.CorrelationID(c),
			},
			"retry_after": unavailable.RetryAfter,
		})
	case errors.As(err, &upErr):
		respondError(c, upErr.HTTPStatus, upErr.Code, upErr.Message)
	default:
		respondError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
	}
}
