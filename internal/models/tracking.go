package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mailit/tracking-gateway/internal/status"
)

// TrackingRecord maps a tenant-scoped shipment (tracking number + courier
// code) to the opaque tracking ID exposed to clients and the upstream
// provider's correlation ID.
//
// gorm.DeletedAt gives soft-delete semantics: deleted rows are excluded
// from normal queries but retained for audit.
type TrackingRecord struct {
	ID                 uuid.UUID      `gorm:"type:uuid;primary_key" json:"-"`
	TrackingID         string         `gorm:"uniqueIndex;not null;size:32" json:"tracking_id"`
	TenantID           uuid.UUID      `gorm:"type:uuid;index:idx_tenant_shipment;not null" json:"-"`
	TrackingNumber     string         `gorm:"index:idx_tenant_shipment;not null" json:"tracking_number"`
	CourierCode        string         `gorm:"index:idx_tenant_shipment;not null;size:100" json:"courier_code"`
	UpstreamID         string         `gorm:"size:64" json:"-"`
	Status             status.Status  `gorm:"size:50" json:"status"`
	OrderID            string         `json:"order_id,omitempty"`
	OriginCountry      string         `gorm:"size:2" json:"origin_country,omitempty"`
	DestinationCountry string         `gorm:"size:2" json:"destination_country,omitempty"`
	CreatedAt          time.Time      `json:"created_at"`
	UpdatedAt          time.Time      `json:"updated_at"`
	DeletedAt          gorm.DeletedAt `gorm:"index" json:"-"`
}

func (r *TrackingRecord) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

func (TrackingRecord) TableName() string {
	return "tracking_records"
}
