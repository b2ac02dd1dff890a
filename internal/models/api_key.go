package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Lifecycle status of an API key. Keys are never physically deleted;
// revocation flips the status.
const (
	KeyStatusActive    = "active"
	KeyStatusSuspended = "suspended"
	KeyStatusRevoked   = "revoked"
)

type APIKey struct {
	ID      uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	KeyHash string    `gorm:"uniqueIndex;not null" json:"-"`
	Name    string    `gorm:"not null" json:"name"`
	OwnerID string    `gorm:"index" json:"owner_id"`

	// Scopes is the JSON-encoded scope set. Use SetScopes/ScopeSet.
	// Serialized as-is so cached copies keep their scopes.
	Scopes string `gorm:"type:text" json:"scopes"`

	Tier string `gorm:"default:'free'" json:"tier"`

	// Rate limits snapshotted from the tier table at issuance time.
	// Later tier-table edits do not change issued keys.
	RequestsPerMinute int `gorm:"not null" json:"requests_per_minute"`
	RequestsPerHour   int `gorm:"not null" json:"requests_per_hour"`
	RequestsPerDay    int `gorm:"not null" json:"requests_per_day"`
	BurstLimit        int `json:"burst_limit"`
	ConcurrentLimit   int `json:"concurrent_limit"`

	Status     string     `gorm:"default:'active';index" json:"status"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

func (a *APIKey) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}

func (APIKey) TableName() string {
	return "api_keys"
}

func (a *APIKey) SetScopes(scopes []string) {
	if scopes == nil {
		scopes = []string{}
	}
	data, _ := json.Marshal(scopes)
	a.Scopes = string(data)
}

// ScopeSet decodes the stored scope list. A corrupt or empty column
// decodes to no scopes.
func (a *APIKey) ScopeSet() []string {
	if a.Scopes == "" {
		return nil
	}
	var scopes []string
	if err := json.Unmarshal([]byte(a.Scopes), &scopes); err != nil {
		return nil
	}
	return scopes
}

func (a *APIKey) HasScope(scope string) bool {
	for _, s := range a.ScopeSet() {
		if s == scope {
			return true
		}
	}
	return false
}

func (a *APIKey) IsExpired(now time.Time) bool {
	return a.ExpiresAt != nil && now.After(*a.ExpiresAt)
}
