package models

import (
	"time"

	"github.com/google/uuid"
)

// Represents one recorded API request. Append-only; rows are never updated.
type APIUsage struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	Timestamp      time.Time `gorm:"index" json:"timestamp"`
	APIKeyID       uuid.UUID `gorm:"type:uuid;index;not null" json:"api_key_id"`
	Endpoint       string    `gorm:"index" json:"endpoint"`
	Method         string    `json:"method"`
	StatusCode     int       `gorm:"index" json:"status_code"`
	ResponseTimeMs int       `json:"response_time_ms"`
	RequestBytes   int64     `json:"request_bytes"`
	ResponseBytes  int64     `json:"response_bytes"`
	IPAddress      string    `json:"ip_address"`
	UserAgent      string    `json:"user_agent"`
	Region         string    `gorm:"index" json:"region,omitempty"`
}

func (APIUsage) TableName() string {
	return "api_usage"
}
