package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/marketscout/backend/internal/analytics"
)

type AnalyticsHandler struct {
	engine *analytics.Engine
}

func NewAnalyticsHandler(engine *analytics.Engine) *AnalyticsHandler {
	return &AnalyticsHandler{engine: engine}
}

func (h *AnalyticsHandler) Trend(c *fiber.Ctx) error {
	report, err := h.engine.Trend(c.Context(), tenantID(c), c.QueryInt("window_days", 30))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(report)
}

func (h *AnalyticsHandler) Overview(c *fiber.Ctx) error {
	overview, err := h.engine.Overview(c.Context(), tenantID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(overview)
}

func (h *AnalyticsHandler) Opportunities(c *fiber.Ctx) error {
	ranking, err := h.engine.RankOpportunities(c.Context(), tenantID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(ranking)
}

func (h *AnalyticsHandler) Snapshot(c *fiber.Ctx) error {
	var req struct {
		WindowDays int `json:"window_days"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}

	snapshot, err := h.engine.Snapshot(c.Context(), tenantID(c), req.WindowDays)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(snapshot)
}
