package handlers

import (
	"fmt"
	"io"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/naduri/naduri-backend/internal/services"
)

// UserTurn ingests an uploaded user utterance
func UserTurn(svc *services.Services) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sessionID, startMs, endMs, err := turnForm(c)
		if err != nil {
			return err
		}

		header, err := c.FormFile("audio")
		if err != nil {
			return badRequest("audio file is required")
		}
		file, err := header.Open()
		if err != nil {
			return fmt.Errorf("failed to open upload: %w", err)
		}
		defer file.Close()

		data, err := io.ReadAll(file)
		if err != nil {
			return fmt.Errorf("failed to read upload: %w", err)
		}

		result, err := svc.Orchestrator.IngestUserTurn(c.UserContext(), services.UserTurnInput{
			SessionID: sessionID,
			StartMs:   startMs,
			EndMs:     endMs,
			Audio:     data,
			Filename:  header.Filename,
		})
		if err != nil {
			return err
		}
		return c.JSON(result)
	}
}

// AssistantTurn generates, synthesizes and stores the next assistant utterance
func AssistantTurn(svc *services.Services) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sessionID, startMs, endMs, err := turnForm(c)
		if err != nil {
			return err
		}

		result, err := svc.Orchestrator.IngestAssistantTurn(c.UserContext(), services.AssistantTurnInput{
			SessionID: sessionID,
			StartMs:   startMs,
			EndMs:     endMs,
		})
		if err != nil {
			return err
		}
		return c.JSON(result)
	}
}

func turnForm(c *fiber.Ctx) (string, int64, int64, error) {
	sessionID := c.FormValue("session_id")
	if sessionID == "" {
		return "", 0, 0, badRequest("session_id is required")
	}
	startMs, err := formInt(c, "start_ms")
	if err != nil {
		return "", 0, 0, err
	}
	endMs, err := formInt(c, "end_ms")
	if err != nil {
		return "", 0, 0, err
	}
	return sessionID, startMs, endMs, nil
}

func formInt(c *fiber.Ctx, key string) (int64, error) {
	raw := c.FormValue(key)
	if raw == "" {
		return 0, badRequest(key + " is required")
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, badRequest(key + " must be an integer")
	}
	return v, nil
}
