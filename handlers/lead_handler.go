package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rateflow/rateflow-backend/config"
	"github.com/rateflow/rateflow-backend/services"
	"github.com/sirupsen/logrus"
)

// LeadHandler exposes lead submission and the two read views: per-lead
// status and per-partner stats.
type LeadHandler struct {
	Leads    *services.LeadService
	Router   *services.RouterService
	Delivery *services.DeliveryService
	Email    *services.EmailService
	Config   *config.RoutingConfig
}

func NewLeadHandler(leads *services.LeadService, router *services.RouterService, delivery *services.DeliveryService, email *services.EmailService, cfg *config.RoutingConfig) *LeadHandler {
	return &LeadHandler{
		Leads:    leads,
		Router:   router,
		Delivery: delivery,
		Email:    email,
		Config:   cfg,
	}
}

// SubmitLead runs the full pipeline: validate, score, persist, match, route,
// and attempt webhook delivery. Routing and delivery problems never fail the
// submission once the lead row is stored.
func (h *LeadHandler) SubmitLead(c *fiber.Ctx) error {
	var input services.CreateLeadInput
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "Invalid request body",
		})
	}

	if validationErr := input.Validate(); validationErr != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success":       false,
			"error":         validationErr.Error(),
			"missingFields": validationErr.MissingFields,
		})
	}

	lead, err := h.Leads.CreateLead(c.Context(), &input)
	if err != nil {
		logrus.WithError(err).Error("Lead creation failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"error":   "Failed to store lead",
		})
	}

	response := fiber.Map{
		"success":         true,
		"leadId":          lead.ID,
		"quality":         lead.Quality,
		"qualityScore":    lead.QualityScore,
		"status":          "queued",
		"routing":         nil,
		"payout":          nil,
		"matchingLenders": 0,
	}

	candidates, err := h.Leads.GetCandidateLenders(c.Context(), h.Config)
	if err != nil {
		logrus.WithError(err).WithField("lead_id", lead.ID).Warn("Candidate lender query failed, lead stored unrouted")
		return c.JSON(response)
	}

	outcome, err := h.Router.RouteLead(c.Context(), lead, candidates)
	if err != nil {
		logrus.WithError(err).WithField("lead_id", lead.ID).Warn("Routing failed, lead stored unrouted")
		return c.JSON(response)
	}

	response["matchingLenders"] = outcome.MatchingLenders

	if outcome.Routed {
		response["status"] = "routed"
		response["routing"] = fiber.Map{
			"lenderId":   outcome.Lender.ID,
			"lenderName": outcome.Lender.Name,
			"bidAmount":  outcome.Lender.BidAmount,
		}
		if lead.PartnerID != nil && outcome.PayoutAmount != nil {
			response["payout"] = fiber.Map{
				"partnerId": *lead.PartnerID,
				"amount":    *outcome.PayoutAmount,
				"status":    "pending",
			}
		}
		if outcome.OutboxID != nil {
			response["deliveryStatus"] = h.Delivery.AttemptImmediate(c.Context(), *outcome.OutboxID)
		}
	}

	h.Email.SendLeadConfirmation(c.Context(), lead)

	return c.JSON(response)
}

// GetLeads dispatches on query parameter: ?id= returns a single lead's
// public status, ?partner= returns partner aggregates.
func (h *LeadHandler) GetLeads(c *fiber.Ctx) error {
	if idParam := c.Query("id"); idParam != "" {
		id, err := uuid.Parse(idParam)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"success": false,
				"error":   "Invalid lead id",
			})
		}

		projection, err := h.Leads.GetLeadStatus(c.Context(), id)
		if err != nil {
			logrus.WithError(err).Error("Lead status query failed")
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"success": false,
				"error":   "Failed to fetch lead",
			})
		}
		if projection == nil {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"success": false,
				"error":   "Lead not found",
			})
		}

		return c.JSON(fiber.Map{
			"success": true,
			"data":    projection,
		})
	}

	if partnerID := c.Query("partner"); partnerID != "" {
		stats, err := h.Leads.GetPartnerStats(c.Context(), partnerID)
		if err != nil {
			logrus.WithError(err).Error("Partner stats query failed")
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"success": false,
				"error":   "Failed to fetch partner stats",
			})
		}

		return c.JSON(fiber.Map{
			"success": true,
			"data":    stats,
		})
	}

	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"success": false,
		"error":   "Provide either id or partner query parameter",
	})
}
