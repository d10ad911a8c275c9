package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mailit/tracking-gateway/internal/metrics"
	"github.com/mailit/tracking-gateway/internal/middleware"
	"github.com/mailit/tracking-gateway/internal/ratelimit"
	"github.com/mailit/tracking-gateway/internal/service"
)

// TrackingHandler exposes the tenant-facing tracking API.
type TrackingHandler struct {
	svc     *service.TrackingService
	limiter *ratelimit.Limiter
}

func NewTrackingHandler(svc *service.TrackingService, limiter *ratelimit.Limiter) *TrackingHandler {
	return &TrackingHandler{svc: svc, limiter: limiter}
}

type batchCreateRequest struct {
	Trackings []service.ShipmentInput `json:"trackings" binding:"required,min=1,dive"`
}

// CreateBatch registers up to a plan-dependent number of shipments.
// The batch size check runs before the quota check so an oversized
// batch never spends a token; both run here instead of the quota
// middleware because the size is only known after parsing the body.
func (h *TrackingHandler) CreateBatch(c *gin.Context) {
	var req batchCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "trackings is required and each item needs tracking_number and courier_code")
		return
	}

	tenant := middleware.TenantFrom(c)

	if err := h.limiter.CheckBatchSize(tenant, len(req.Trackings)); err != nil {
		var sizeErr *ratelimit.BatchSizeError
		if errors.As(err, &sizeErr) {
			metrics.BatchSizeRejections.WithLabelValues(string(tenant.Plan)).Inc()
			respondError(c, http.StatusBadRequest, "BATCH_TOO_LARGE", sizeErr.Error())
			return
		}
		respondServiceError(c, err)
		return
	}

	if err := h.limiter.CheckQuota(tenant); err != nil {
		var quotaErr *ratelimit.QuotaError
		if errors.As(err, &quotaErr) {
			metrics.QuotaRejections.WithLabelValues(string(tenant.Plan)).Inc()
			retryAfter := quotaErr.RetryAfter(time.Now())
			c.Header("Retry-After", strconv.Itoa(retryAfter))
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error": gin.H{
					"code":           "QUOTA_EXCEEDED",
					"message":        "daily request quota exceeded",
					"correlation_id": middleware.CorrelationID(c),
				},
				"retry_after": retryAfter,
			})
			return
		}
		respondServiceError(c, err)
		return
	}

	result, err := h.svc.CreateBatch(c.Request.Context(), tenant, req.Trackings)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	status := http.StatusBadRequest
	if result.Success() {
		status = http.StatusCreated
	}

	c.JSON(status, gin.H{
		"success": result.Success(),
		"created": result.Created,
		"failed":  result.Failed,
	})
}

func (h *TrackingHandler) Get(c *gin.Context) {
	tenant := middleware.TenantFrom(c)

	detail, err := h.svc.Get(c.Request.Context(), tenant, c.Param("trackingId"))
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, detail)
}

type batchGetRequest struct {
	TrackingIDs []string `json:"tracking_ids" binding:"required,min=1"`
}

func (h *TrackingHandler) BatchGet(c *gin.Context) {
	var req batchGetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "tracking_ids is required")
		return
	}

	tenant := middleware.TenantFrom(c)

	details, err := h.svc.GetBatch(c.Request.Context(), tenant, req.TrackingIDs)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"trackings": details})
}

func (h *TrackingHandler) List(c *gin.Context) {
	tenant := middleware.TenantFrom(c)

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	size, _ := strconv.Atoi(c.DefaultQuery("size", "20"))

	result, err := h.svc.List(c.Request.Context(), tenant, c.Query("status"), page, size)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *TrackingHandler) Delete(c *gin.Context) {
	tenant := middleware.TenantFrom(c)

	if err := h.svc.Delete(c.Request.Context(), tenant, c.Param("trackingId")); err != nil {
		respondServiceError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

type detectCourierRequest struct {
	TrackingNumber string `json:"tracking_number" binding:"required"`
}

func (h *TrackingHandler) DetectCourier(c *gin.Context) {
	var req detectCourierRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "tracking_number is required")
		return
	}

	couriers, err := h.svc.DetectCourier(c.Request.Context(), req.TrackingNumber)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"couriers": couriers})
}
