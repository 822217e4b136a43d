package handlers

import (
	"crypto/subtle"
	"database/sql"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/rateflow/rateflow-backend/models"
	"github.com/rateflow/rateflow-backend/services"
	"github.com/sirupsen/logrus"
)

// pqArray makes a nil-safe text[] parameter from a slice.
func pqArray(values []string) pq.StringArray {
	if values == nil {
		return pq.StringArray{}
	}
	return pq.StringArray(values)
}

// AdminHandler exposes the operator surface: lender management, daily
// counter reset, and outbox inspection. All routes sit behind the admin
// token middleware.
type AdminHandler struct {
	DB       *sql.DB
	Delivery *services.DeliveryService
}

func NewAdminHandler(db *sql.DB, delivery *services.DeliveryService) *AdminHandler {
	return &AdminHandler{DB: db, Delivery: delivery}
}

// RequireAdminToken guards admin routes with a constant-time token check
// against the X-Admin-Token header.
func RequireAdminToken(token string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if token == "" {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"success": false,
				"error":   "Admin API not configured",
			})
		}
		provided := c.Get("X-Admin-Token")
		if subtle.ConstantTimeCompare([]byte(provided), []byte(token)) != 1 {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"success": false,
				"error":   "Unauthorized",
			})
		}
		return c.Next()
	}
}

type lenderInput struct {
	Name            string   `json:"name"`
	Active          *bool    `json:"active"`
	BidAmount       float64  `json:"bidAmount"`
	QualityMinimum  string   `json:"qualityMinimum"`
	TargetStates    []string `json:"targetStates"`
	TargetLoanTypes []string `json:"targetLoanTypes"`
	MinLoanAmount   float64  `json:"minLoanAmount"`
	MaxLoanAmount   float64  `json:"maxLoanAmount"`
	MaxLeadsPerDay  int      `json:"maxLeadsPerDay"`
	WebhookURL      string   `json:"webhookUrl"`
}

func (in *lenderInput) validate() []string {
	var missing []string
	if in.Name == "" {
		missing = append(missing, "name")
	}
	if in.BidAmount <= 0 {
		missing = append(missing, "bidAmount")
	}
	if in.WebhookURL == "" {
		missing = append(missing, "webhookUrl")
	}
	if in.MaxLeadsPerDay <= 0 {
		missing = append(missing, "maxLeadsPerDay")
	}
	return missing
}

// CreateLender registers a new lender.
func (h *AdminHandler) CreateLender(c *fiber.Ctx) error {
	var input lenderInput
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "Invalid request body",
		})
	}
	if missing := input.validate(); len(missing) > 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success":       false,
			"error":         "Missing required fields",
			"missingFields": missing,
		})
	}

	lender := models.Lender{
		ID:              uuid.New(),
		Name:            input.Name,
		Active:          true,
		BidAmount:       input.BidAmount,
		QualityMinimum:  models.QualityTier(input.QualityMinimum),
		TargetStates:    input.TargetStates,
		TargetLoanTypes: input.TargetLoanTypes,
		MinLoanAmount:   input.MinLoanAmount,
		MaxLoanAmount:   input.MaxLoanAmount,
		MaxLeadsPerDay:  input.MaxLeadsPerDay,
		WebhookURL:      input.WebhookURL,
		CreatedAt:       time.Now(),
		UpdatedAt:       time.Now(),
	}
	if input.Active != nil {
		lender.Active = *input.Active
	}
	if lender.QualityMinimum == "" {
		lender.QualityMinimum = models.QualityLow
	}
	if len(lender.TargetStates) == 0 {
		lender.TargetStates = []string{"*"}
	}
	// target_loan_types is NOT NULL; an omitted field stays an empty set
	// rather than becoming SQL NULL.
	lender.TargetLoanTypes = pqArray(lender.TargetLoanTypes)
	if lender.MaxLoanAmount == 0 {
		lender.MaxLoanAmount = 10_000_000
	}

	query := `
		INSERT INTO lenders (
			id, name, active, bid_amount, quality_minimum,
			target_states, target_loan_types, min_loan_amount, max_loan_amount,
			max_leads_per_day, current_leads_today, webhook_url, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, 0, $11, $12, $13)
	`
	_, err := h.DB.ExecContext(c.Context(), query,
		lender.ID, lender.Name, lender.Active, lender.BidAmount, lender.QualityMinimum,
		lender.TargetStates, lender.TargetLoanTypes, lender.MinLoanAmount, lender.MaxLoanAmount,
		lender.MaxLeadsPerDay, lender.WebhookURL, lender.CreatedAt, lender.UpdatedAt,
	)
	if err != nil {
		logrus.WithError(err).Error("Lender insert failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"error":   "Failed to create lender",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"data":    lender,
	})
}

// ListLenders returns all lenders with their live daily counters.
func (h *AdminHandler) ListLenders(c *fiber.Ctx) error {
	query := `
		SELECT id, name, active, bid_amount, quality_minimum,
		       target_states, target_loan_types, min_loan_amount, max_loan_amount,
		       max_leads_per_day, current_leads_today, webhook_url, created_at, updated_at
		FROM lenders
		ORDER BY bid_amount DESC, id ASC
	`
	rows, err := h.DB.QueryContext(c.Context(), query)
	if err != nil {
		logrus.WithError(err).Error("Lender query failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"error":   "Failed to fetch lenders",
		})
	}
	defer rows.Close()

	lenders := make([]models.Lender, 0)
	for rows.Next() {
		var lender models.Lender
		if err := rows.Scan(
			&lender.ID, &lender.Name, &lender.Active, &lender.BidAmount, &lender.QualityMinimum,
			&lender.TargetStates, &lender.TargetLoanTypes, &lender.MinLoanAmount, &lender.MaxLoanAmount,
			&lender.MaxLeadsPerDay, &lender.CurrentLeadsToday, &lender.WebhookURL,
			&lender.CreatedAt, &lender.UpdatedAt,
		); err != nil {
			logrus.WithError(err).Error("Lender scan failed")
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"success": false,
				"error":   "Failed to fetch lenders",
			})
		}
		lenders = append(lenders, lender)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"count":   len(lenders),
		"data":    lenders,
	})
}

// UpdateLender applies a partial update to one lender.
func (h *AdminHandler) UpdateLender(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "Invalid lender id",
		})
	}

	var input lenderInput
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "Invalid request body",
		})
	}

	query := `
		UPDATE lenders SET
			name = COALESCE(NULLIF($2, ''), name),
			active = COALESCE($3, active),
			bid_amount = CASE WHEN $4 > 0 THEN $4 ELSE bid_amount END,
			quality_minimum = COALESCE(NULLIF($5, ''), quality_minimum),
			target_states = CASE WHEN cardinality($6::text[]) > 0 THEN $6 ELSE target_states END,
			target_loan_types = CASE WHEN cardinality($7::text[]) > 0 THEN $7 ELSE target_loan_types END,
			max_leads_per_day = CASE WHEN $8 > 0 THEN $8 ELSE max_leads_per_day END,
			webhook_url = COALESCE(NULLIF($9, ''), webhook_url),
			updated_at = NOW()
		WHERE id = $1
	`
	result, err := h.DB.ExecContext(c.Context(), query,
		id, input.Name, input.Active, input.BidAmount, input.QualityMinimum,
		pqArray(input.TargetStates), pqArray(input.TargetLoanTypes),
		input.MaxLeadsPerDay, input.WebhookURL,
	)
	if err != nil {
		logrus.WithError(err).Error("Lender update failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"error":   "Failed to update lender",
		})
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"success": false,
			"error":   "Lender not found",
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Lender updated",
	})
}

// ResetCounters zeroes every lender's daily routed-lead counter. Also run on
// schedule by the counter reset job.
func (h *AdminHandler) ResetCounters(c *fiber.Ctx) error {
	result, err := h.DB.ExecContext(c.Context(),
		`UPDATE lenders SET current_leads_today = 0, updated_at = NOW() WHERE current_leads_today > 0`)
	if err != nil {
		logrus.WithError(err).Error("Counter reset failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"error":   "Failed to reset counters",
		})
	}

	affected, _ := result.RowsAffected()
	logrus.WithField("lenders_reset", affected).Info("Daily lender counters reset via admin endpoint")

	return c.JSON(fiber.Map{
		"success":      true,
		"lendersReset": affected,
	})
}

// ListOutbox returns recent webhook outbox entries, optionally filtered by
// ?status=pending|delivered|failed.
func (h *AdminHandler) ListOutbox(c *fiber.Ctx) error {
	status := c.Query("status")

	query := `
		SELECT id, lead_id, lender_id, webhook_url, payload, status,
		       attempts, next_attempt_at, last_error, created_at, updated_at
		FROM webhook_outbox
		WHERE ($1 = '' OR status = $1)
		ORDER BY created_at DESC
		LIMIT 100
	`
	rows, err := h.DB.QueryContext(c.Context(), query, status)
	if err != nil {
		logrus.WithError(err).Error("Outbox query failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"error":   "Failed to fetch outbox entries",
		})
	}
	defer rows.Close()

	entries := make([]models.OutboxEntry, 0)
	for rows.Next() {
		var entry models.OutboxEntry
		if err := rows.Scan(
			&entry.ID, &entry.LeadID, &entry.LenderID, &entry.WebhookURL, &entry.Payload,
			&entry.Status, &entry.Attempts, &entry.NextAttemptAt, &entry.LastError,
			&entry.CreatedAt, &entry.UpdatedAt,
		); err != nil {
			logrus.WithError(err).Error("Outbox scan failed")
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"success": false,
				"error":   "Failed to fetch outbox entries",
			})
		}
		entries = append(entries, entry)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"count":   len(entries),
		"data":    entries,
	})
}

// SweepOutbox manually triggers one outbox sweep pass.
func (h *AdminHandler) SweepOutbox(c *fiber.Ctx) error {
	delivered, err := h.Delivery.SweepDue(c.Context())
	if err != nil {
		logrus.WithError(err).Error("Manual outbox sweep failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"error":   "Outbox sweep failed",
		})
	}

	return c.JSON(fiber.Map{
		"success":   true,
		"delivered": delivered,
	})
}
