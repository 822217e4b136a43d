package services

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rateflow/rateflow-backend/config"
	"github.com/rateflow/rateflow-backend/database"
	"github.com/rateflow/rateflow-backend/models"
	"github.com/rateflow/rateflow-backend/shared"
	"github.com/sirupsen/logrus"
)

// DeliveryService delivers routed leads to lender webhooks from the durable
// outbox. Delivery is best-effort from the caller's point of view: a failed
// attempt is recorded for retry and never fails the lead submission.
type DeliveryService struct {
	DB      *sql.DB
	Redis   *database.RedisClient
	factory *shared.HTTPClientFactory
	Leads   *LeadService
	cfg     *config.RoutingConfig
	metrics *shared.ServiceMetrics
}

func NewDeliveryService(db *sql.DB, redis *database.RedisClient, leads *LeadService, cfg *config.RoutingConfig) *DeliveryService {
	if cfg == nil {
		cfg = config.DefaultRoutingConfig()
	}
	return &DeliveryService{
		DB:      db,
		Redis:   redis,
		factory: shared.NewHTTPClientFactory(cfg.WebhookTimeout),
		Leads:   leads,
		cfg:     cfg,
		metrics: shared.NewServiceMetrics("delivery-service"),
	}
}

// AttemptImmediate makes the inline first delivery attempt after routing and
// returns the resulting outbox status. Errors are absorbed into the returned
// status; the submission response path never fails on delivery.
func (s *DeliveryService) AttemptImmediate(ctx context.Context, outboxID uuid.UUID) string {
	entry, err := s.getEntry(ctx, outboxID)
	if err != nil {
		logrus.WithError(err).WithField("outbox_id", outboxID).Warn("Failed to load outbox entry for immediate delivery")
		return models.OutboxStatusPending
	}
	if entry == nil {
		return models.OutboxStatusPending
	}

	if err := s.Deliver(ctx, entry); err != nil {
		return entry.Status
	}
	return models.OutboxStatusDelivered
}

// Deliver posts the entry's payload to the lender webhook and records the
// outcome. On failure the entry is rescheduled with exponential backoff, or
// marked failed once attempts are exhausted. entry is updated in place.
func (s *DeliveryService) Deliver(ctx context.Context, entry *models.OutboxEntry) error {
	startTime := time.Now()

	err := s.post(ctx, entry)
	if err == nil {
		if markErr := s.markDelivered(ctx, entry); markErr != nil {
			logrus.WithError(markErr).WithField("outbox_id", entry.ID).Error("Webhook delivered but outbox update failed")
		}
		s.metrics.RecordRequest(true, time.Since(startTime))
		logrus.WithFields(logrus.Fields{
			"outbox_id": entry.ID,
			"lead_id":   entry.LeadID,
			"lender_id": entry.LenderID,
			"attempts":  entry.Attempts,
		}).Info("Webhook delivered")
		return nil
	}

	s.metrics.RecordRequest(false, time.Since(startTime))
	if markErr := s.markFailedAttempt(ctx, entry, err); markErr != nil {
		logrus.WithError(markErr).WithField("outbox_id", entry.ID).Error("Failed to record webhook delivery failure")
	}

	logrus.WithError(err).WithFields(logrus.Fields{
		"outbox_id": entry.ID,
		"lead_id":   entry.LeadID,
		"lender_id": entry.LenderID,
		"attempts":  entry.Attempts,
		"status":    entry.Status,
	}).Warn("Webhook delivery failed")

	return shared.WrapError(err, shared.ErrorCategoryDelivery, "WEBHOOK_DELIVERY_FAILED", "delivery-service", "Deliver", true)
}

// SweepDue delivers every pending outbox entry whose next attempt is due.
// A per-entry Redis lock keeps overlapping sweeps from double-sending.
func (s *DeliveryService) SweepDue(ctx context.Context) (int, error) {
	query := `
		SELECT id, lead_id, lender_id, webhook_url, payload,
		       status, attempts, next_attempt_at, last_error
		FROM webhook_outbox
		WHERE status = 'pending' AND next_attempt_at <= $1
		ORDER BY next_attempt_at ASC
		LIMIT 100
	`
	rows, err := s.DB.QueryContext(ctx, query, time.Now())
	if err != nil {
		return 0, shared.WrapError(err, shared.ErrorCategoryDatabase, "OUTBOX_QUERY_FAILED", "delivery-service", "SweepDue", true)
	}
	defer rows.Close()

	var entries []models.OutboxEntry
	for rows.Next() {
		var entry models.OutboxEntry
		if err := rows.Scan(
			&entry.ID, &entry.LeadID, &entry.LenderID, &entry.WebhookURL, &entry.Payload,
			&entry.Status, &entry.Attempts, &entry.NextAttemptAt, &entry.LastError,
		); err != nil {
			return 0, fmt.Errorf("failed to scan outbox row: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return 0, err
	}

	delivered := 0
	for i := range entries {
		entry := &entries[i]

		var lockKey string
		if s.Redis != nil {
			lockKey = "outbox:lock:" + entry.ID.String()
			acquired, lockErr := s.Redis.AcquireLock(ctx, lockKey, s.cfg.WebhookTimeout+5*time.Second)
			if lockErr != nil {
				logrus.WithError(lockErr).WithField("outbox_id", entry.ID).Warn("Outbox lock acquisition failed, skipping entry")
				continue
			}
			if !acquired {
				continue
			}
		}

		if err := s.Deliver(ctx, entry); err == nil {
			delivered++
		}

		if s.Redis != nil {
			if unlockErr := s.Redis.ReleaseLock(ctx, lockKey); unlockErr != nil {
				logrus.WithError(unlockErr).WithField("outbox_id", entry.ID).Debug("Outbox lock release failed")
			}
		}
	}

	return delivered, nil
}

func (s *DeliveryService) post(ctx context.Context, entry *models.OutboxEntry) error {
	reqCtx, cancel := context.WithTimeout(ctx, s.cfg.WebhookTimeout)
	defer cancel()

	request, err := http.NewRequestWithContext(reqCtx, http.MethodPost, entry.WebhookURL, bytes.NewReader(entry.Payload))
	if err != nil {
		return fmt.Errorf("failed to build webhook request: %w", err)
	}
	request.Header.Set("Content-Type", "application/json")
	request.Header.Set("X-RateFlow-Event", "lead.new")
	request.Header.Set("X-RateFlow-Delivery", entry.ID.String())

	client := s.factory.Client(s.cfg.WebhookTimeout)
	response, err := client.Do(request)
	if err != nil {
		return err
	}
	defer response.Body.Close()

	if response.StatusCode < 200 || response.StatusCode >= 300 {
		return fmt.Errorf("webhook returned HTTP %d", response.StatusCode)
	}

	return nil
}

func (s *DeliveryService) getEntry(ctx context.Context, id uuid.UUID) (*models.OutboxEntry, error) {
	query := `
		SELECT id, lead_id, lender_id, webhook_url, payload,
		       status, attempts, next_attempt_at, last_error
		FROM webhook_outbox WHERE id = $1
	`
	var entry models.OutboxEntry
	err := s.DB.QueryRowContext(ctx, query, id).Scan(
		&entry.ID, &entry.LeadID, &entry.LenderID, &entry.WebhookURL, &entry.Payload,
		&entry.Status, &entry.Attempts, &entry.NextAttemptAt, &entry.LastError,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func (s *DeliveryService) markDelivered(ctx context.Context, entry *models.OutboxEntry) error {
	entry.Attempts++
	entry.Status = models.OutboxStatusDelivered

	_, err := s.DB.ExecContext(ctx,
		`UPDATE webhook_outbox SET status = $2, attempts = $3, updated_at = $4 WHERE id = $1`,
		entry.ID, entry.Status, entry.Attempts, time.Now(),
	)
	return err
}

// markFailedAttempt bumps the attempt counter and either reschedules the
// entry with exponential backoff or marks it failed once attempts are
// exhausted. Exhaustion also records a lead.delivery_failed event so
// operators can see leads whose lender was never notified.
func (s *DeliveryService) markFailedAttempt(ctx context.Context, entry *models.OutboxEntry, deliveryErr error) error {
	entry.Attempts++
	errMsg := deliveryErr.Error()
	entry.LastError = &errMsg

	if entry.Attempts >= s.cfg.MaxAttempts {
		entry.Status = models.OutboxStatusFailed

		if _, err := s.DB.ExecContext(ctx,
			`UPDATE webhook_outbox SET status = $2, attempts = $3, last_error = $4, updated_at = $5 WHERE id = $1`,
			entry.ID, entry.Status, entry.Attempts, errMsg, time.Now(),
		); err != nil {
			return err
		}

		if err := s.Leads.RecordEvent(ctx, s.DB, entry.LeadID, models.EventLeadDeliveryFailed, map[string]interface{}{
			"lender_id": entry.LenderID,
			"attempts":  entry.Attempts,
			"error":     errMsg,
		}); err != nil {
			logrus.WithError(err).Warn("Failed to record lead.delivery_failed event")
		}
		return nil
	}

	backoff := s.cfg.RetryBaseBackoff * time.Duration(1<<uint(entry.Attempts-1))
	entry.NextAttemptAt = time.Now().Add(backoff)

	_, err := s.DB.ExecContext(ctx,
		`UPDATE webhook_outbox SET attempts = $2, next_attempt_at = $3, last_error = $4, updated_at = $5 WHERE id = $1`,
		entry.ID, entry.Attempts, entry.NextAttemptAt, errMsg, time.Now(),
	)
	return err
}
