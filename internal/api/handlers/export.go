package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/naduri/naduri-backend/internal/services"
)

// ExportText returns the plain-text transcript
func ExportText(svc *services.Services) fiber.Handler {
	return func(c *fiber.Ctx) error {
		text, err := svc.Exporter.ExportText(c.UserContext(), c.Params("id"))
		if err != nil {
			return err
		}
		c.Set(fiber.HeaderContentType, fiber.MIMETextPlainCharsetUTF8)
		return c.SendString(text)
	}
}

// ExportJSON returns the session and all its turns
func ExportJSON(svc *services.Services) fiber.Handler {
	return func(c *fiber.Ctx) error {
		out, err := svc.Exporter.ExportJSON(c.UserContext(), c.Params("id"))
		if err != nil {
			return err
		}
		return c.JSON(out)
	}
}
