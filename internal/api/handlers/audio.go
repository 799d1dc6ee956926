package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/naduri/naduri-backend/internal/services"
)

// ServeAudio streams a stored recording
func ServeAudio(svc *services.Services) fiber.Handler {
	return func(c *fiber.Ctx) error {
		path, err := svc.Audio.Path(c.Params("filename"))
		if err != nil {
			return err
		}
		return c.SendFile(path)
	}
}
