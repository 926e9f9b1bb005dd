package validation

import (
	"regexp"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Tenant IDs are slugs or UUIDs issued at provisioning time. Anything
// outside this alphabet is rejected before it reaches a query.
var tenantIDPattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_-]{0,63}$`)

type Config struct {
	MaxBodySize         int
	AllowedContentTypes []string
	ExemptPaths         []string
	Logger              *zap.Logger
}

// Middleware enforces the tenant header and basic request hygiene on
// every API route. Health and metrics endpoints are exempt.
func Middleware(cfg Config) fiber.Handler {
	if cfg.MaxBodySize == 0 {
		cfg.MaxBodySize = 2 * 1024 * 1024
	}
	if len(cfg.AllowedContentTypes) == 0 {
		cfg.AllowedContentTypes = []string{"application/json"}
	}
	if len(cfg.ExemptPaths) == 0 {
		cfg.ExemptPaths = []string{"/health", "/metrics"}
	}

	return func(c *fiber.Ctx) error {
		path := c.Path()
		for _, exempt := range cfg.ExemptPaths {
			if strings.HasPrefix(path, exempt) {
				return c.Next()
			}
		}

		tenant := c.Get("X-Tenant-ID")
		if tenant == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "X-Tenant-ID header is required",
			})
		}
		if !tenantIDPattern.MatchString(tenant) {
			cfg.Logger.Warn("Rejected malformed tenant id",
				zap.String("ip", c.IP()),
				zap.String("path", path),
			)
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Invalid tenant id",
			})
		}
		c.Locals("tenant_id", tenant)

		if c.Method() == "POST" || c.Method() == "PUT" {
			contentType := c.Get("Content-Type")
			if contentType != "" && !websocketUpgrade(c) {
				allowed := false
				for _, allowedType := range cfg.AllowedContentTypes {
					if strings.Contains(contentType, allowedType) {
						allowed = true
						break
					}
				}
				if !allowed {
					return c.Status(fiber.StatusUnsupportedMediaType).JSON(fiber.Map{
						"error": "Unsupported content type",
					})
				}
			}

			if len(c.Body()) > cfg.MaxBodySize {
				return c.Status(fiber.StatusRequestEntityTooLarge).JSON(fiber.Map{
					"error": "Request body exceeds maximum size",
				})
			}
		}

		return c.Next()
	}
}

func websocketUpgrade(c *fiber.Ctx) bool {
	return strings.EqualFold(c.Get("Upgrade"), "websocket")
}
