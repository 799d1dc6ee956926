package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/naduri/naduri-backend/internal/services"
)

// StartSession opens a new call session
func StartSession(svc *services.Services) fiber.Handler {
	return func(c *fiber.Ctx) error {
		session, err := svc.Sessions.Create(c.UserContext(), c.FormValue("device_info"))
		if err != nil {
			return err
		}

		return c.JSON(fiber.Map{
			"session_id":     session.ID,
			"started_at_utc": session.StartedAt,
		})
	}
}

// EndSession stamps the session end time
func EndSession(svc *services.Services) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sessionID := c.FormValue("session_id")
		if sessionID == "" {
			return badRequest("session_id is required")
		}

		session, err := svc.Sessions.End(c.UserContext(), sessionID)
		if err != nil {
			return err
		}

		return c.JSON(fiber.Map{
			"session_id":   session.ID,
			"ended_at_utc": session.EndedAt,
		})
	}
}

// FinalizeSession ends the session and generates its report
func FinalizeSession(svc *services.Services) fiber.Handler {
	return func(c *fiber.Ctx) error {
		result, err := svc.Finalizer.Finalize(c.UserContext(), c.Params("id"))
		if err != nil {
			return err
		}
		return c.JSON(result)
	}
}

// GetReport returns the stored report, null before finalization
func GetReport(svc *services.Services) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sessionID := c.Params("id")
		report, err := svc.Finalizer.GetReport(c.UserContext(), sessionID)
		if err != nil {
			return err
		}

		return c.JSON(fiber.Map{
			"session_id": sessionID,
			"report":     report,
		})
	}
}
