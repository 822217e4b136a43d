package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/rateflow/rateflow-backend/config"
	"github.com/rateflow/rateflow-backend/models"
	"github.com/rateflow/rateflow-backend/shared"
	"github.com/sirupsen/logrus"
)

// errCapacityExhausted signals that a lender's remaining daily capacity was
// consumed by a concurrent submission between the candidate query and the
// conditional increment. The router falls through to the next candidate.
var errCapacityExhausted = errors.New("lender daily capacity exhausted")

// RoutingOutcome reports the result of routing a lead.
type RoutingOutcome struct {
	Routed          bool
	Lender          *models.Lender
	PayoutAmount    *float64
	OutboxID        *uuid.UUID
	MatchingLenders int
}

// RouterService selects the winning lender for a scored lead and records the
// routing as a single atomic unit: counter increment, lead update, payout
// insert, outbox insert, and routed event all commit together or not at all.
type RouterService struct {
	DB      *sql.DB
	Matcher *MatcherService
	Leads   *LeadService
	cfg     *config.RoutingConfig
	metrics *shared.ServiceMetrics
}

func NewRouterService(db *sql.DB, matcher *MatcherService, leads *LeadService, cfg *config.RoutingConfig) *RouterService {
	if cfg == nil {
		cfg = config.DefaultRoutingConfig()
	}
	return &RouterService{
		DB:      db,
		Matcher: matcher,
		Leads:   leads,
		cfg:     cfg,
		metrics: shared.NewServiceMetrics("router-service"),
	}
}

// ComputePayout returns the partner share of a winning bid, rounded half
// away from zero to cents.
func (s *RouterService) ComputePayout(bidAmount float64) float64 {
	return math.Round(bidAmount*s.cfg.PartnerSplit*100) / 100
}

// RouteLead matches the lead against the candidate pool and routes it to the
// first eligible lender whose capacity still holds. The candidate pool is
// expected pre-sorted by bid descending with id as tie-break, so the first
// successful candidate is the highest eligible bidder.
func (s *RouterService) RouteLead(ctx context.Context, lead *models.Lead, candidates []models.Lender) (*RoutingOutcome, error) {
	startTime := time.Now()

	eligible := s.Matcher.MatchLenders(lead, candidates)
	outcome := &RoutingOutcome{MatchingLenders: len(eligible)}

	if len(eligible) == 0 {
		logrus.WithFields(logrus.Fields{
			"lead_id":    lead.ID,
			"candidates": len(candidates),
		}).Info("No eligible lender for lead, leaving queued")
		s.metrics.RecordRequest(true, time.Since(startTime))
		return outcome, nil
	}

	for i := range eligible {
		lender := eligible[i]

		outboxID, err := s.routeToLender(ctx, lead, &lender)
		if err == errCapacityExhausted {
			logrus.WithFields(logrus.Fields{
				"lead_id":   lead.ID,
				"lender_id": lender.ID,
			}).Debug("Lender capacity consumed concurrently, trying next candidate")
			continue
		}
		if err != nil {
			s.metrics.RecordRequest(false, time.Since(startTime))
			return nil, err
		}

		payout := s.ComputePayout(lender.BidAmount)
		lead.Status = models.LeadStatusContacted
		lead.RoutedLenderID = &lender.ID
		lead.LenderBid = &lender.BidAmount
		if lead.PartnerID != nil {
			lead.PartnerPayout = &payout
			outcome.PayoutAmount = &payout
		}

		outcome.Routed = true
		outcome.Lender = &lender
		outcome.OutboxID = &outboxID

		logrus.WithFields(logrus.Fields{
			"lead_id":    lead.ID,
			"lender_id":  lender.ID,
			"lender_bid": lender.BidAmount,
			"partner_id": lead.PartnerID,
		}).Info("Lead routed to lender")

		s.metrics.RecordRequest(true, time.Since(startTime))
		return outcome, nil
	}

	// Every eligible lender lost its capacity to concurrent submissions.
	logrus.WithField("lead_id", lead.ID).Info("All eligible lenders at capacity, leaving queued")
	s.metrics.RecordRequest(true, time.Since(startTime))
	return outcome, nil
}

// routeToLender performs the routing mutations for one lender inside a single
// transaction. The conditional increment guards the daily cap: zero rows
// affected means the capacity check failed and nothing is written.
func (s *RouterService) routeToLender(ctx context.Context, lead *models.Lead, lender *models.Lender) (uuid.UUID, error) {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return uuid.Nil, shared.WrapError(err, shared.ErrorCategoryDatabase, "ROUTING_TX_BEGIN_FAILED", "router-service", "routeToLender", true)
	}
	defer tx.Rollback()

	incrementQuery := `
		UPDATE lenders
		SET current_leads_today = current_leads_today + 1, updated_at = $2
		WHERE id = $1 AND active = true AND current_leads_today < max_leads_per_day
	`
	result, err := tx.ExecContext(ctx, incrementQuery, lender.ID, time.Now())
	if err != nil {
		return uuid.Nil, shared.WrapError(err, shared.ErrorCategoryDatabase, "COUNTER_INCREMENT_FAILED", "router-service", "routeToLender", true)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return uuid.Nil, errCapacityExhausted
	}

	payout := s.ComputePayout(lender.BidAmount)
	var partnerPayout *float64
	if lead.PartnerID != nil {
		partnerPayout = &payout
	}

	leadUpdateQuery := `
		UPDATE leads
		SET routed_lender_id = $2, lender_bid = $3, partner_payout = $4,
		    status = $5, updated_at = $6
		WHERE id = $1
	`
	if _, err := tx.ExecContext(ctx, leadUpdateQuery,
		lead.ID, lender.ID, lender.BidAmount, partnerPayout,
		models.LeadStatusContacted, time.Now(),
	); err != nil {
		return uuid.Nil, shared.WrapError(err, shared.ErrorCategoryDatabase, "LEAD_UPDATE_FAILED", "router-service", "routeToLender", true)
	}

	if lead.PartnerID != nil {
		payoutQuery := `
			INSERT INTO payouts (id, partner_id, lead_id, amount, status, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)
		`
		if _, err := tx.ExecContext(ctx, payoutQuery,
			uuid.New(), *lead.PartnerID, lead.ID, payout, models.PayoutStatusPending, time.Now(),
		); err != nil {
			return uuid.Nil, shared.WrapError(err, shared.ErrorCategoryDatabase, "PAYOUT_INSERT_FAILED", "router-service", "routeToLender", true)
		}
	}

	outboxID, err := s.insertOutboxEntry(ctx, tx, lead, lender)
	if err != nil {
		return uuid.Nil, err
	}

	if err := s.Leads.RecordEvent(ctx, tx, lead.ID, models.EventLeadRouted, map[string]interface{}{
		"lender_id":  lender.ID,
		"lender_bid": lender.BidAmount,
		"payout":     partnerPayout,
	}); err != nil {
		return uuid.Nil, shared.WrapError(err, shared.ErrorCategoryDatabase, "EVENT_INSERT_FAILED", "router-service", "routeToLender", true)
	}

	if err := tx.Commit(); err != nil {
		return uuid.Nil, shared.WrapError(err, shared.ErrorCategoryDatabase, "ROUTING_TX_COMMIT_FAILED", "router-service", "routeToLender", true)
	}

	return outboxID, nil
}

// insertOutboxEntry writes the durable delivery record inside the routing
// transaction so a routed lead can never lack one.
func (s *RouterService) insertOutboxEntry(ctx context.Context, tx *sql.Tx, lead *models.Lead, lender *models.Lender) (uuid.UUID, error) {
	routed := *lead
	routed.Status = models.LeadStatusContacted
	routed.RoutedLenderID = &lender.ID
	routed.LenderBid = &lender.BidAmount

	envelope := models.WebhookEnvelope{Event: "lead.new", Lead: &routed}
	payload, err := json.Marshal(envelope)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to marshal webhook envelope: %w", err)
	}

	outboxID := uuid.New()
	query := `
		INSERT INTO webhook_outbox (
			id, lead_id, lender_id, webhook_url, payload,
			status, attempts, next_attempt_at, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, 0, $7, $8, $9)
	`
	if _, err := tx.ExecContext(ctx, query,
		outboxID, lead.ID, lender.ID, lender.WebhookURL, payload,
		models.OutboxStatusPending, time.Now(), time.Now(), time.Now(),
	); err != nil {
		return uuid.Nil, shared.WrapError(err, shared.ErrorCategoryDatabase, "OUTBOX_INSERT_FAILED", "router-service", "insertOutboxEntry", true)
	}

	return outboxID, nil
}
