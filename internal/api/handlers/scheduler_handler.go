package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/marketscout/backend/internal/scheduler"
	"github.com/marketscout/backend/internal/storage/models"
)

type SchedulerHandler struct {
	svc *scheduler.Service
}

func NewSchedulerHandler(svc *scheduler.Service) *SchedulerHandler {
	return &SchedulerHandler{svc: svc}
}

func (h *SchedulerHandler) CreateTask(c *fiber.Ctx) error {
	var req struct {
		Name      string   `json:"name"`
		ScanType  string   `json:"scan_type"`
		Cadence   string   `json:"cadence"`
		SourceIDs []string `json:"source_ids"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}

	task, err := h.svc.CreateTask(c.Context(), tenantID(c), req.Name, req.ScanType, req.Cadence, req.SourceIDs)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(task)
}

func (h *SchedulerHandler) ListTasks(c *fiber.Ctx) error {
	tasks, err := h.svc.ListTasks(c.Context(), tenantID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"tasks": tasks})
}

func (h *SchedulerHandler) GetTask(c *fiber.Ctx) error {
	task, err := h.svc.GetTask(c.Context(), tenantID(c), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(task)
}

func (h *SchedulerHandler) Trigger(c *fiber.Ctx) error {
	task, err := h.svc.Trigger(c.Context(), tenantID(c), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(task)
}

func (h *SchedulerHandler) RecordOutcome(c *fiber.Ctx) error {
	var req struct {
		Status  string `json:"status"`
		Summary string `json:"summary"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}

	err := h.svc.RecordOutcome(c.Context(), tenantID(c), c.Params("id"), models.TaskStatus(req.Status), req.Summary)
	if err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *SchedulerHandler) Pause(c *fiber.Ctx) error {
	if err := h.svc.Pause(c.Context(), tenantID(c), c.Params("id")); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *SchedulerHandler) Resume(c *fiber.Ctx) error {
	if err := h.svc.Resume(c.Context(), tenantID(c), c.Params("id")); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *SchedulerHandler) DeleteTask(c *fiber.Ctx) error {
	if err := h.svc.DeleteTask(c.Context(), tenantID(c), c.Params("id")); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *SchedulerHandler) Health(c *fiber.Ctx) error {
	report, err := h.svc.Health(c.Context(), tenantID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(report)
}
