package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/marketscout/backend/pkg/errs"
	"github.com/marketscout/backend/pkg/logger"
)

// TenantHeader is resolved by the upstream auth layer; the core only
// requires that it is present.
const TenantHeader = "X-Tenant-ID"

func tenantID(c *fiber.Ctx) string {
	return c.Get(TenantHeader)
}

// respondError maps the error taxonomy onto HTTP statuses. Callers
// always get a structured kind and message, never a stack trace.
func respondError(c *fiber.Ctx, err error) error {
	kind := errs.KindOf(err)

	status := fiber.StatusInternalServerError
	switch kind {
	case errs.KindValidation:
		status = fiber.StatusBadRequest
	case errs.KindNotFound:
		status = fiber.StatusNotFound
	case errs.KindAlreadyRunning:
		status = fiber.StatusConflict
	case errs.KindUpstream:
		status = fiber.StatusServiceUnavailable
	}

	if status == fiber.StatusInternalServerError {
		logger.Error("Request failed", zap.Error(err))
		return c.Status(status).JSON(fiber.Map{
			"error": "internal error",
			"kind":  string(kind),
		})
	}

	return c.Status(status).JSON(fiber.Map{
		"error": err.Error(),
		"kind":  string(kind),
	})
}
