package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Outbox entry statuses. Entries are written inside the routing transaction
// so a routed lead always has a durable delivery record, and retried by the
// outbox sweep job until delivered or attempts are exhausted.
const (
	OutboxStatusPending   = "pending"
	OutboxStatusDelivered = "delivered"
	OutboxStatusFailed    = "failed"
)

type OutboxEntry struct {
	ID            uuid.UUID       `json:"id"`
	LeadID        uuid.UUID       `json:"lead_id"`
	LenderID      uuid.UUID       `json:"lender_id"`
	WebhookURL    string          `json:"webhook_url"`
	Payload       json.RawMessage `json:"payload"`
	Status        string          `json:"status"`
	Attempts      int             `json:"attempts"`
	NextAttemptAt time.Time       `json:"next_attempt_at"`
	LastError     *string         `json:"last_error"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// WebhookEnvelope is the fixed JSON envelope posted to a lender's webhook.
type WebhookEnvelope struct {
	Event string `json:"event"`
	Lead  *Lead  `json:"lead"`
}
