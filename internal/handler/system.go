package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mailit/tracking-gateway/internal/circuitbreaker"
)

type pinger interface {
	Ping(ctx context.Context) error
}

type breakerReader interface {
	Breaker() circuitbreaker.Metrics
}

// SystemHandler serves health and readiness endpoints.
type SystemHandler struct {
	db       pinger
	cache    pinger
	upstream breakerReader
}

func NewSystemHandler(db, cache pinger, upstream breakerReader) *SystemHandler {
	return &SystemHandler{db: db, cache: cache, upstream: upstream}
}

// Health reports dependency status. The upstream entry reflects the
// circuit breaker, not a live probe; an open circuit degrades the
// response to 503.
func (h *SystemHandler) Health(c *gin.Context) {
	ctx := c.Request.Context()
	healthy := true

	dbStatus := "up"
	if err := h.db.Ping(ctx); err != nil {
		dbStatus = "down"
		healthy = false
	}

	cacheStatus := "up"
	if h.cache != nil {
		if err := h.cache.Ping(ctx); err != nil {
			cacheStatus = "down"
			healthy = false
		}
	}

	breaker := h.upstream.Breaker()
	upstreamStatus := "up"
	if breaker.State == circuitbreaker.StateOpen {
		upstreamStatus = "down"
		healthy = false
	}

	status := http.StatusOK
	overall := "healthy"
	if !healthy {
		status = http.StatusServiceUnavailable
		overall = "degraded"
	}

	c.JSON(status, gin.H{
		"status": overall,
		"checks": gin.H{
			"postgres": dbStatus,
			"redis":    cacheStatus,
			"upstream": gin.H{
				"status":          upstreamStatus,
				"circuit_breaker": breaker.State.String(),
				"failure_count":   breaker.FailureCount,
			},
		},
	})
}
