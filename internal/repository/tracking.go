package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mailit/tracking-gateway/internal/models"
	"github.com/mailit/tracking-gateway/internal/status"
	"github.com/mailit/tracking-gateway/internal/storage"
)

type TrackingRepository struct {
	db *storage.Postgres
}

func NewTrackingRepository(db *storage.Postgres) *TrackingRepository {
	return &TrackingRepository{db: db}
}

func (r *TrackingRepository) Create(ctx context.Context, record *models.TrackingRecord) error {
	return r.db.DB.WithContext(ctx).Create(record).Error
}

// Exists reports whether a non-deleted record already holds the
// (tenant, trackingNumber, courierCode) idempotency key.
func (r *TrackingRepository) Exists(ctx context.Context, tenantID uuid.UUID, trackingNumber, courierCode string) (bool, error) {
	var count int64
	err := r.db.DB.WithContext(ctx).
		Model(&models.TrackingRecord{}).
		Where("tenant_id = ? AND tracking_number = ? AND courier_code = ?",
			tenantID, trackingNumber, courierCode).
		Count(&count).Error

	return count > 0, err
}

// FindByTrackingID returns the non-deleted record for an opaque
// tracking ID regardless of owner; the service layer decides between
// not-found and forbidden.
func (r *TrackingRepository) FindByTrackingID(ctx context.Context, trackingID string) (*models.TrackingRecord, error) {
	var record models.TrackingRecord
	err := r.db.DB.WithContext(ctx).
		Where("tracking_id = ?", trackingID).
		First(&record).Error

	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}

	return &record, err
}

func (r *TrackingRepository) FindByTrackingIDs(ctx context.Context, tenantID uuid.UUID, trackingIDs []string) ([]models.TrackingRecord, error) {
	var records []models.TrackingRecord
	err := r.db.DB.WithContext(ctx).
		Where("tenant_id = ? AND tracking_id IN ?", tenantID, trackingIDs).
		Find(&records).Error

	return records, err
}

func (r *TrackingRepository) ListByTenant(ctx context.Context, tenantID uuid.UUID, filter status.Status, offset, limit int) ([]models.TrackingRecord, int64, error) {
	query := r.db.DB.WithContext(ctx).
		Model(&models.TrackingRecord{}).
		Where("tenant_id = ?", tenantID)

	if filter != "" {
		query = query.Where("status = ?", filter)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var records []models.TrackingRecord
	err := query.
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&records).Error

	return records, total, err
}

func (r *TrackingRepository) UpdateStatus(ctx context.Context, id uuid.UUID, newStatus status.Status) error {
	return r.db.DB.WithContext(ctx).
		Model(&models.TrackingRecord{}).
		Where("id = ?", id).
		Update("status", newStatus).Error
}

// SoftDelete marks a record deleted; gorm.DeletedAt keeps the row for
// audit while excluding it from normal queries.
func (r *TrackingRepository) SoftDelete(ctx context.Context, id uuid.UUID) error {
	return r.db.DB.WithContext(ctx).
		Where("id = ?", id).
		Delete(&models.TrackingRecord{}).Error
}
