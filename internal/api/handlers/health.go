package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/naduri/naduri-backend/internal/services"
)

// Health reports database and collaborator status
func Health(svc *services.Services) fiber.Handler {
	return func(c *fiber.Ctx) error {
		status := svc.Health.Check(c.UserContext())
		code := fiber.StatusOK
		if status.Status == services.HealthUnhealthy {
			code = fiber.StatusServiceUnavailable
		}
		return c.Status(code).JSON(status)
	}
}
