package models

import (
	"time"

	"github.com/google/uuid"
)

// Lead statuses. A lead is created as "new" and moves to "contacted" exactly
// once, when the router records a winning lender.
const (
	LeadStatusNew       = "new"
	LeadStatusContacted = "contacted"
)

// QualityTier is the ordinal lead quality classification. Tiers are compared
// by rank (low=1, medium=2, high=3), never by raw score.
type QualityTier string

const (
	QualityLow    QualityTier = "low"
	QualityMedium QualityTier = "medium"
	QualityHigh   QualityTier = "high"
)

// Rank returns the ordinal rank of the tier. Unknown tiers rank lowest.
func (q QualityTier) Rank() int {
	switch q {
	case QualityHigh:
		return 3
	case QualityMedium:
		return 2
	case QualityLow:
		return 1
	default:
		return 0
	}
}

type Lead struct {
	ID uuid.UUID `json:"id"`

	// Contact information
	Email     string  `json:"email"`
	Phone     *string `json:"phone"`
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`

	// Loan details
	HomePrice          float64  `json:"home_price"`
	LoanAmount         float64  `json:"loan_amount"`
	DownPayment        *float64 `json:"down_payment"`
	DownPaymentPercent *float64 `json:"down_payment_percent"`
	CreditScore        *int     `json:"credit_score"`
	PropertyType       *string  `json:"property_type"`
	PropertyUse        *string  `json:"property_use"`
	State              string   `json:"state"`
	ZipCode            *string  `json:"zip_code"`
	LoanType           *string  `json:"loan_type"`
	LoanTerm           *int     `json:"loan_term"`
	InterestRate       *float64 `json:"interest_rate"`
	MonthlyPayment     *float64 `json:"monthly_payment"`

	// Attribution
	Calculator  *string `json:"calculator"`
	PartnerID   *string `json:"partner_id"`
	UTMSource   *string `json:"utm_source"`
	UTMMedium   *string `json:"utm_medium"`
	UTMCampaign *string `json:"utm_campaign"`

	// Computed quality
	Quality      QualityTier `json:"quality"`
	QualityScore int         `json:"quality_score"`

	// Routing outcome, populated once by the router
	Status          string     `json:"status"`
	RoutedLenderID  *uuid.UUID `json:"routed_lender_id"`
	LenderBid       *float64   `json:"lender_bid"`
	PartnerPayout   *float64   `json:"partner_payout"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
