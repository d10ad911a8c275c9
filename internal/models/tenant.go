package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Tenant is an authenticated API caller.
//
// API keys follow the Stripe-style split: a short plain-text prefix kept
// for log correlation (e.g. "sk_live_ab12cd") and a bcrypt hash of the
// full key for verification. The full key is never stored.
type Tenant struct {
	ID        uuid.UUID  `gorm:"type:uuid;primary_key" json:"id"`
	Name      string     `gorm:"not null" json:"name"`
	KeyPrefix string     `gorm:"index;not null;size:16" json:"key_prefix"`
	KeyHash   string     `gorm:"size:60" json:"-"`
	Plan      UsagePlan  `gorm:"not null;default:'free';size:50" json:"plan"`
	IsActive  bool       `gorm:"default:true" json:"is_active"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

func (t *Tenant) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}

// Expired reports whether the tenant's key has passed its expiry.
func (t *Tenant) Expired(now time.Time) bool {
	return t.ExpiresAt != nil && t.ExpiresAt.Before(now)
}

func (Tenant) TableName() string {
	return "tenants"
}
