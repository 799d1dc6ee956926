package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"github.com/naduri/naduri-backend/internal/repository"
	"github.com/naduri/naduri-backend/internal/services"
	"github.com/naduri/naduri-backend/internal/storage"
)

// StatusFor maps service errors to HTTP status codes
func StatusFor(err error) int {
	var fiberErr *fiber.Error
	switch {
	case errors.As(err, &fiberErr):
		return fiberErr.Code
	case errors.Is(err, repository.ErrNotFound),
		errors.Is(err, storage.ErrNotFound),
		errors.Is(err, storage.ErrInvalidName):
		return fiber.StatusNotFound
	case errors.Is(err, services.ErrInvalidRange), errors.Is(err, services.ErrInvalidParameter):
		return fiber.StatusBadRequest
	case errors.Is(err, services.ErrCollaborator):
		return fiber.StatusBadGateway
	default:
		return fiber.StatusInternalServerError
	}
}

// ErrorHandler renders every error as {"error": msg, "code": status}
func ErrorHandler(logger *logrus.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := StatusFor(err)
		msg := err.Error()

		switch {
		case errors.Is(err, repository.ErrNotFound):
			msg = "session not found"
		case errors.Is(err, storage.ErrNotFound), errors.Is(err, storage.ErrInvalidName):
			msg = "audio not found"
		}

		if code >= fiber.StatusInternalServerError && logger != nil {
			logger.WithFields(logrus.Fields{
				"method": c.Method(),
				"path":   c.Path(),
				"status": code,
			}).WithError(err).Error("request failed")
		}

		return c.Status(code).JSON(fiber.Map{
			"error": msg,
			"code":  code,
		})
	}
}

func badRequest(msg string) error {
	return fiber.NewError(fiber.StatusBadRequest, msg)
}
