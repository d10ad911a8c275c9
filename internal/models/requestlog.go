package models

import (
	"time"

	"github.com/google/uuid"
)

// RequestLog is one audited API request, written asynchronously by the
// request-log worker and read by the admin usage summary.
type RequestLog struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	Timestamp      time.Time  `gorm:"index" json:"timestamp"`
	TenantID       *uuid.UUID `gorm:"type:uuid;index" json:"tenant_id,omitempty"`
	CorrelationID  string     `gorm:"size:64" json:"correlation_id"`
	Method         string     `gorm:"size:10" json:"method"`
	Path           string     `json:"path"`
	StatusCode     int        `json:"status_code"`
	ResponseTimeMs int        `json:"response_time_ms"`
	IPAddress      string     `gorm:"size:45" json:"ip_address"`
	UserAgent      string     `json:"user_agent"`
}

func (RequestLog) TableName() string {
	return "request_logs"
}
