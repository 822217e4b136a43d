package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rateflow/rateflow-backend/config"
	"github.com/rateflow/rateflow-backend/models"
	"github.com/rateflow/rateflow-backend/shared"
	"github.com/sirupsen/logrus"
)

// CreateLeadInput is the lead submission payload.
type CreateLeadInput struct {
	Email          string   `json:"email"`
	Phone          *string  `json:"phone"`
	FirstName      *string  `json:"firstName"`
	LastName       *string  `json:"lastName"`
	HomePrice      *float64 `json:"homePrice"`
	LoanAmount     *float64 `json:"loanAmount"`
	DownPayment    *float64 `json:"downPayment"`
	CreditScore    *int     `json:"creditScore"`
	PropertyType   *string  `json:"propertyType"`
	PropertyUse    *string  `json:"propertyUse"`
	State          string   `json:"state"`
	ZipCode        *string  `json:"zipCode"`
	LoanType       *string  `json:"loanType"`
	LoanTerm       *int     `json:"loanTerm"`
	InterestRate   *float64 `json:"interestRate"`
	MonthlyPayment *float64 `json:"monthlyPayment"`
	Calculator     *string  `json:"calculator"`
	PartnerID      *string  `json:"partnerId"`
	UTMSource      *string  `json:"utmSource"`
	UTMMedium      *string  `json:"utmMedium"`
	UTMCampaign    *string  `json:"utmCampaign"`
}

// Validate returns a ValidationError listing every missing required field,
// or nil when the input is acceptable. No side effects are performed on
// invalid input.
func (in *CreateLeadInput) Validate() *shared.ValidationError {
	var missing []string

	if strings.TrimSpace(in.Email) == "" || !strings.Contains(in.Email, "@") {
		missing = append(missing, "email")
	}
	if in.HomePrice == nil {
		missing = append(missing, "homePrice")
	}
	if in.LoanAmount == nil {
		missing = append(missing, "loanAmount")
	}
	if strings.TrimSpace(in.State) == "" {
		missing = append(missing, "state")
	}

	if len(missing) > 0 {
		return shared.NewValidationError(missing...)
	}
	return nil
}

// LeadStatusProjection is the narrow public view served by GET /leads?id=...
type LeadStatusProjection struct {
	LeadID       uuid.UUID          `json:"leadId"`
	Status       string             `json:"status"`
	Quality      models.QualityTier `json:"quality"`
	QualityScore int                `json:"qualityScore"`
	CreatedAt    time.Time          `json:"createdAt"`
}

// LeadService persists leads and exposes the storage queries the routing
// pipeline depends on.
type LeadService struct {
	DB      *sql.DB
	Scoring *ScoringService
	metrics *shared.ServiceMetrics
}

func NewLeadService(db *sql.DB, scoring *ScoringService) *LeadService {
	return &LeadService{
		DB:      db,
		Scoring: scoring,
		metrics: shared.NewServiceMetrics("lead-service"),
	}
}

// CreateLead derives down-payment figures, scores the submission, and inserts
// the lead row with status "new". Down payment percent is always recomputed
// from home price and down payment, never trusted from the caller.
func (s *LeadService) CreateLead(ctx context.Context, input *CreateLeadInput) (*models.Lead, error) {
	startTime := time.Now()

	downPayment := input.DownPayment
	if downPayment == nil && input.HomePrice != nil && input.LoanAmount != nil {
		derived := *input.HomePrice - *input.LoanAmount
		downPayment = &derived
	}

	var downPaymentPercent *float64
	if downPayment != nil && input.HomePrice != nil && *input.HomePrice > 0 {
		pct := *downPayment / *input.HomePrice * 100
		downPaymentPercent = &pct
	}

	result := s.Scoring.ScoreLead(LeadScoreInput{
		Phone:       input.Phone,
		FirstName:   input.FirstName,
		LastName:    input.LastName,
		CreditScore: input.CreditScore,
		LoanAmount:  input.LoanAmount,
		HomePrice:   input.HomePrice,
		DownPayment: downPayment,
		ZipCode:     input.ZipCode,
	})

	lead := &models.Lead{
		ID:                 uuid.New(),
		Email:              input.Email,
		Phone:              input.Phone,
		FirstName:          input.FirstName,
		LastName:           input.LastName,
		HomePrice:          *input.HomePrice,
		LoanAmount:         *input.LoanAmount,
		DownPayment:        downPayment,
		DownPaymentPercent: downPaymentPercent,
		CreditScore:        input.CreditScore,
		PropertyType:       input.PropertyType,
		PropertyUse:        input.PropertyUse,
		State:              strings.ToUpper(strings.TrimSpace(input.State)),
		ZipCode:            input.ZipCode,
		LoanType:           input.LoanType,
		LoanTerm:           input.LoanTerm,
		InterestRate:       input.InterestRate,
		MonthlyPayment:     input.MonthlyPayment,
		Calculator:         input.Calculator,
		PartnerID:          input.PartnerID,
		UTMSource:          input.UTMSource,
		UTMMedium:          input.UTMMedium,
		UTMCampaign:        input.UTMCampaign,
		Quality:            result.Quality,
		QualityScore:       result.Score,
		Status:             models.LeadStatusNew,
		CreatedAt:          time.Now(),
		UpdatedAt:          time.Now(),
	}

	query := `
		INSERT INTO leads (
			id, email, phone, first_name, last_name,
			home_price, loan_amount, down_payment, down_payment_percent,
			credit_score, property_type, property_use, state, zip_code,
			loan_type, loan_term, interest_rate, monthly_payment,
			calculator, partner_id, utm_source, utm_medium, utm_campaign,
			quality, quality_score, status, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
			$15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28
		)
	`
	_, err := s.DB.ExecContext(ctx, query,
		lead.ID, lead.Email, lead.Phone, lead.FirstName, lead.LastName,
		lead.HomePrice, lead.LoanAmount, lead.DownPayment, lead.DownPaymentPercent,
		lead.CreditScore, lead.PropertyType, lead.PropertyUse, lead.State, lead.ZipCode,
		lead.LoanType, lead.LoanTerm, lead.InterestRate, lead.MonthlyPayment,
		lead.Calculator, lead.PartnerID, lead.UTMSource, lead.UTMMedium, lead.UTMCampaign,
		lead.Quality, lead.QualityScore, lead.Status, lead.CreatedAt, lead.UpdatedAt,
	)
	if err != nil {
		s.metrics.RecordRequest(false, time.Since(startTime))
		return nil, shared.WrapError(err, shared.ErrorCategoryDatabase, "LEAD_INSERT_FAILED", "lead-service", "CreateLead", true)
	}

	if err := s.RecordEvent(ctx, s.DB, lead.ID, models.EventLeadCreated, map[string]interface{}{
		"quality":       lead.Quality,
		"quality_score": lead.QualityScore,
		"partner_id":    lead.PartnerID,
	}); err != nil {
		logrus.WithError(err).Warn("Failed to record lead.created event")
	}

	s.metrics.RecordRequest(true, time.Since(startTime))
	logrus.WithFields(logrus.Fields{
		"lead_id":       lead.ID,
		"quality":       lead.Quality,
		"quality_score": lead.QualityScore,
		"state":         lead.State,
	}).Info("Lead created")

	return lead, nil
}

// GetLeadStatus returns the narrow public projection of a single lead, or
// nil when no lead exists with the given id.
func (s *LeadService) GetLeadStatus(ctx context.Context, id uuid.UUID) (*LeadStatusProjection, error) {
	query := `
		SELECT id, status, quality, quality_score, created_at
		FROM leads WHERE id = $1
	`
	var projection LeadStatusProjection
	err := s.DB.QueryRowContext(ctx, query, id).Scan(
		&projection.LeadID, &projection.Status, &projection.Quality,
		&projection.QualityScore, &projection.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, shared.WrapError(err, shared.ErrorCategoryDatabase, "LEAD_QUERY_FAILED", "lead-service", "GetLeadStatus", true)
	}

	return &projection, nil
}

// GetCandidateLenders returns the pre-filtered routing candidate pool:
// active lenders under their daily cap, ordered by bid descending with
// lender id as the deterministic tie-break, capped to limit.
func (s *LeadService) GetCandidateLenders(ctx context.Context, cfg *config.RoutingConfig) ([]models.Lender, error) {
	query := `
		SELECT id, name, active, bid_amount, quality_minimum,
		       target_states, target_loan_types, min_loan_amount, max_loan_amount,
		       max_leads_per_day, current_leads_today, webhook_url
		FROM lenders
		WHERE active = true AND current_leads_today < max_leads_per_day
		ORDER BY bid_amount DESC, id ASC
		LIMIT $1
	`
	rows, err := s.DB.QueryContext(ctx, query, cfg.CandidateLimit)
	if err != nil {
		return nil, shared.WrapError(err, shared.ErrorCategoryDatabase, "LENDER_QUERY_FAILED", "lead-service", "GetCandidateLenders", true)
	}
	defer rows.Close()

	var lenders []models.Lender
	for rows.Next() {
		var lender models.Lender
		if err := rows.Scan(
			&lender.ID, &lender.Name, &lender.Active, &lender.BidAmount, &lender.QualityMinimum,
			&lender.TargetStates, &lender.TargetLoanTypes, &lender.MinLoanAmount, &lender.MaxLoanAmount,
			&lender.MaxLeadsPerDay, &lender.CurrentLeadsToday, &lender.WebhookURL,
		); err != nil {
			return nil, fmt.Errorf("failed to scan lender row: %w", err)
		}
		lenders = append(lenders, lender)
	}

	return lenders, rows.Err()
}

// GetPartnerStats returns the partner aggregate view: lead totals, the sum
// of pending payouts, and the last 10 leads.
func (s *LeadService) GetPartnerStats(ctx context.Context, partnerID string) (*models.PartnerStats, error) {
	stats := &models.PartnerStats{PartnerID: partnerID}

	totalsQuery := `
		SELECT COUNT(*), COUNT(*) FILTER (WHERE status = 'contacted')
		FROM leads WHERE partner_id = $1
	`
	if err := s.DB.QueryRowContext(ctx, totalsQuery, partnerID).Scan(&stats.TotalLeads, &stats.RoutedLeads); err != nil {
		return nil, shared.WrapError(err, shared.ErrorCategoryDatabase, "PARTNER_STATS_FAILED", "lead-service", "GetPartnerStats", true)
	}

	payoutQuery := `
		SELECT COALESCE(SUM(amount), 0)
		FROM payouts WHERE partner_id = $1 AND status = 'pending'
	`
	if err := s.DB.QueryRowContext(ctx, payoutQuery, partnerID).Scan(&stats.PendingPayouts); err != nil {
		return nil, shared.WrapError(err, shared.ErrorCategoryDatabase, "PARTNER_STATS_FAILED", "lead-service", "GetPartnerStats", true)
	}

	recentQuery := `
		SELECT id, email, state, loan_amount, quality, quality_score, status, created_at
		FROM leads WHERE partner_id = $1
		ORDER BY created_at DESC
		LIMIT 10
	`
	rows, err := s.DB.QueryContext(ctx, recentQuery, partnerID)
	if err != nil {
		return nil, shared.WrapError(err, shared.ErrorCategoryDatabase, "PARTNER_STATS_FAILED", "lead-service", "GetPartnerStats", true)
	}
	defer rows.Close()

	for rows.Next() {
		var lead models.Lead
		if err := rows.Scan(
			&lead.ID, &lead.Email, &lead.State, &lead.LoanAmount,
			&lead.Quality, &lead.QualityScore, &lead.Status, &lead.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan recent lead row: %w", err)
		}
		stats.RecentLeads = append(stats.RecentLeads, lead)
	}

	return stats, rows.Err()
}

// RecordEvent appends a lifecycle event for a lead. It accepts any execer so
// the router can record events inside its transaction.
func (s *LeadService) RecordEvent(ctx context.Context, execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}, leadID uuid.UUID, eventType string, payload map[string]interface{}) error {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal event payload: %w", err)
	}

	_, err = execer.ExecContext(ctx,
		`INSERT INTO events (id, lead_id, event_type, payload, created_at) VALUES ($1, $2, $3, $4, $5)`,
		uuid.New(), leadID, eventType, payloadJSON, time.Now(),
	)
	return err
}
