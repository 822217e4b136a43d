package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rateflow/rateflow-backend/services"
	"github.com/rateflow/rateflow-backend/shared"
	"github.com/sirupsen/logrus"
)

type RateHandler struct {
	Rates *services.RateService
}

func NewRateHandler(rates *services.RateService) *RateHandler {
	return &RateHandler{Rates: rates}
}

// GetCurrentRates returns the latest weekly average for every tracked
// product.
func (h *RateHandler) GetCurrentRates(c *fiber.Ctx) error {
	snapshot, err := h.Rates.GetCurrentRates(c.Context())
	if err != nil {
		logrus.WithError(err).Error("Failed to fetch current rates")
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"success": false,
			"error":   "Rates temporarily unavailable",
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    snapshot,
	})
}

// GetRateHistory returns weekly observations for one product, newest first.
// Accepts ?product= and ?weeks= query parameters.
func (h *RateHandler) GetRateHistory(c *fiber.Ctx) error {
	product := c.Query("product", "30_year_fixed")
	weeks := c.QueryInt("weeks", 52)

	rates, err := h.Rates.GetRateHistory(c.Context(), product, weeks)
	if err != nil {
		var svcErr *shared.ServiceError
		if errors.As(err, &svcErr) && svcErr.Category == shared.ErrorCategoryValidation {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"success": false,
				"error":   svcErr.Message,
			})
		}
		logrus.WithError(err).WithField("product", product).Error("Failed to fetch rate history")
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"success": false,
			"error":   "Failed to fetch rate history",
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"product": product,
		"data":    rates,
	})
}
