package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event types recorded against a lead's lifecycle.
const (
	EventLeadCreated        = "lead.created"
	EventLeadRouted         = "lead.routed"
	EventLeadDeliveryFailed = "lead.delivery_failed"
)

type Event struct {
	ID        uuid.UUID       `json:"id"`
	LeadID    uuid.UUID       `json:"lead_id"`
	EventType string          `json:"event_type"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}
