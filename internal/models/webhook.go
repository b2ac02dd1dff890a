package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Registered outbound webhook endpoint. Retry policy fields are
// configuration for the dispatcher; no delivery happens here.
type WebhookEndpoint struct {
	ID      uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	OwnerID string    `gorm:"index;not null" json:"owner_id"`
	URL     string    `gorm:"not null" json:"url"`

	// Events is the JSON-encoded list of subscribed event names.
	Events string `gorm:"type:text" json:"-"`

	Secret string `json:"-"`

	MaxRetries        int     `gorm:"default:3" json:"max_retries"`
	BackoffMultiplier float64 `gorm:"default:2" json:"backoff_multiplier"`
	BackoffCapSeconds int     `gorm:"default:300" json:"backoff_cap_seconds"`

	FailureCount int       `gorm:"default:0" json:"failure_count"`
	Active       bool      `gorm:"default:true" json:"active"`
	CreatedAt    time.Time `json:"created_at"`
}

func (w *WebhookEndpoint) BeforeCreate(tx *gorm.DB) error {
	if w.ID == uuid.Nil {
		w.ID = uuid.New()
	}
	return nil
}

func (WebhookEndpoint) TableName() string {
	return "webhook_endpoints"
}

func (w *WebhookEndpoint) SetEvents(events []string) {
	if events == nil {
		events = []string{}
	}
	data, _ := json.Marshal(events)
	w.Events = string(data)
}

func (w *WebhookEndpoint) EventList() []string {
	if w.Events == "" {
		return nil
	}
	var events []string
	if err := json.Unmarshal([]byte(w.Events), &events); err != nil {
		return nil
	}
	return events
}
