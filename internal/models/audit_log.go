package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Audit actions recorded by the platform.
const (
	AuditActionKeyIssued  = "api_key.issued"
	AuditActionKeyUpdated = "api_key.updated"
	AuditActionKeyRevoked = "api_key.revoked"
)

type AuditLog struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	Timestamp time.Time `gorm:"index" json:"timestamp"`
	Actor     string    `gorm:"index" json:"actor"`
	Action    string    `gorm:"index;not null" json:"action"`
	Resource  string    `json:"resource"`

	// Detail carries action-specific context as a JSON document.
	Detail string `gorm:"type:text" json:"detail,omitempty"`
}

func (a *AuditLog) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.Timestamp.IsZero() {
		a.Timestamp = time.Now().UTC()
	}
	return nil
}

func (AuditLog) TableName() string {
	return "audit_logs"
}
