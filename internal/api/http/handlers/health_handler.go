package handlers

import (
	"github.com/gofiber/fiber/v2"
)

// HealthHandler exposes liveness and readiness probes.
type HealthHandler struct {
	version string
}

// NewHealthHandler constructs the handler.
func NewHealthHandler(version string) *HealthHandler {
	return &HealthHandler{version: version}
}

// Live handles GET /health/live.
func (h *HealthHandler) Live(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok", "version": h.version})
}

// Ready handles GET /health/ready.
func (h *HealthHandler) Ready(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ready"})
}
