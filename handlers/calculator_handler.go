package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rateflow/rateflow-backend/models"
	"github.com/rateflow/rateflow-backend/services"
)

type CalculatorHandler struct {
	Calculators *services.CalculatorService
}

func NewCalculatorHandler(calculators *services.CalculatorService) *CalculatorHandler {
	return &CalculatorHandler{Calculators: calculators}
}

// Amortize computes monthly payment and totals for a fixed-rate loan, with
// an optional full schedule.
func (h *CalculatorHandler) Amortize(c *fiber.Ctx) error {
	var req models.AmortizationRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "Invalid request body",
		})
	}

	result, err := h.Calculators.Amortize(&req)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    result,
	})
}

// CompareARM projects an adjustable-rate mortgage against a fixed
// alternative.
func (h *CalculatorHandler) CompareARM(c *fiber.Ctx) error {
	var req models.ARMComparisonRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "Invalid request body",
		})
	}

	result, err := h.Calculators.CompareARM(&req)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    result,
	})
}
