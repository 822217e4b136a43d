package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Lender is an entity eligible to receive routed leads. TargetStates may
// contain the wildcard "*" to accept any state. CurrentLeadsToday is
// incremented only through the router's conditional UPDATE so the daily cap
// holds under concurrent submissions.
type Lender struct {
	ID                uuid.UUID      `json:"id"`
	Name              string         `json:"name"`
	Active            bool           `json:"active"`
	BidAmount         float64        `json:"bid_amount"`
	QualityMinimum    QualityTier    `json:"quality_minimum"`
	TargetStates      pq.StringArray `json:"target_states"`
	TargetLoanTypes   pq.StringArray `json:"target_loan_types"`
	MinLoanAmount     float64        `json:"min_loan_amount"`
	MaxLoanAmount     float64        `json:"max_loan_amount"`
	MaxLeadsPerDay    int            `json:"max_leads_per_day"`
	CurrentLeadsToday int            `json:"current_leads_today"`
	WebhookURL        string         `json:"webhook_url"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
}

// AcceptsState reports whether the lender targets the given state.
func (l *Lender) AcceptsState(state string) bool {
	for _, s := range l.TargetStates {
		if s == "*" || s == state {
			return true
		}
	}
	return false
}

// AcceptsLoanType reports whether the lender targets the given loan type.
func (l *Lender) AcceptsLoanType(loanType string) bool {
	for _, t := range l.TargetLoanTypes {
		if t == loanType {
			return true
		}
	}
	return false
}
