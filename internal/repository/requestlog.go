package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/mailit/tracking-gateway/internal/models"
	"github.com/mailit/tracking-gateway/internal/storage"
)

type RequestLogRepository struct {
	db *storage.Postgres
}

func NewRequestLogRepository(db *storage.Postgres) *RequestLogRepository {
	return &RequestLogRepository{db: db}
}

// InsertBatch writes a batch of request logs in one statement; called by
// the async request-log worker.
func (r *RequestLogRepository) InsertBatch(ctx context.Context, logs []models.RequestLog) error {
	if len(logs) == 0 {
		return nil
	}
	return r.db.DB.WithContext(ctx).Create(&logs).Error
}

// TenantUsage is an aggregated view of one tenant's traffic.
type TenantUsage struct {
	TenantID       *uuid.UUID `json:"tenant_id"`
	Requests       int64      `json:"requests"`
	ErrorRequests  int64      `json:"error_requests"`
	AvgResponseMs  float64    `json:"avg_response_ms"`
	LastRequestAt  time.Time  `json:"last_request_at"`
}

// UsageSince aggregates request counts per tenant from the given instant.
func (r *RequestLogRepository) UsageSince(ctx context.Context, since time.Time) ([]TenantUsage, error) {
	var usage []TenantUsage
	err := r.db.DB.WithContext(ctx).
		Model(&models.RequestLog{}).
		Select(`tenant_id,
			COUNT(*) AS requests,
			COUNT(*) FILTER (WHERE status_code >= 400) AS error_requests,
			AVG(response_time_ms) AS avg_response_ms,
			MAX(timestamp) AS last_request_at`).
		Where("timestamp >= ?", since).
		Group("tenant_id").
		Order("requests DESC").
		Scan(&usage).Error

	return usage, err
}
