package models

import (
	"time"

	"github.com/google/uuid"
)

// Payout statuses. A payout is created as "pending" when a partner-attributed
// lead is routed; later transitions are handled by the billing system.
const (
	PayoutStatusPending = "pending"
	PayoutStatusPaid    = "paid"
	PayoutStatusFailed  = "failed"
)

type Payout struct {
	ID        uuid.UUID `json:"id"`
	PartnerID string    `json:"partner_id"`
	LeadID    uuid.UUID `json:"lead_id"`
	Amount    float64   `json:"amount"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

type Partner struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// PartnerStats is the aggregate view returned by GET /leads?partner=...
type PartnerStats struct {
	PartnerID      string  `json:"partner_id"`
	TotalLeads     int     `json:"total_leads"`
	RoutedLeads    int     `json:"routed_leads"`
	PendingPayouts float64 `json:"pending_payouts"`
	RecentLeads    []Lead  `json:"recent_leads"`
}
