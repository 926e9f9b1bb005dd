package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/marketscout/backend/internal/notify"
)

type NotificationsHandler struct {
	svc *notify.Service
}

func NewNotificationsHandler(svc *notify.Service) *NotificationsHandler {
	return &NotificationsHandler{svc: svc}
}

func (h *NotificationsHandler) Create(c *fiber.Ctx) error {
	var req struct {
		UserID    string `json:"user_id"`
		Type      string `json:"type"`
		Title     string `json:"title"`
		Message   string `json:"message"`
		SignalID  string `json:"signal_id"`
		DossierID string `json:"dossier_id"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}

	n, err := h.svc.Notify(c.Context(), tenantID(c), req.UserID, req.Type, req.Title, req.Message, notify.Refs{
		SignalID:  req.SignalID,
		DossierID: req.DossierID,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(n)
}

func (h *NotificationsHandler) Digest(c *fiber.Ctx) error {
	userID := c.Query("user_id")
	windowDays, _ := strconv.Atoi(c.Query("window_days", "1"))

	report, err := h.svc.Digest(c.Context(), tenantID(c), userID, windowDays)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(report)
}

func (h *NotificationsHandler) MarkRead(c *fiber.Ctx) error {
	if err := h.svc.MarkRead(c.Context(), tenantID(c), c.Params("id")); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *NotificationsHandler) MarkAllRead(c *fiber.Ctx) error {
	var req struct {
		UserID string `json:"user_id"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}

	updated, err := h.svc.MarkAllRead(c.Context(), tenantID(c), req.UserID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"updated": updated})
}
