package middleware

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
)

// APIRateLimit limits all endpoints per client IP
func APIRateLimit(max int, expiration time.Duration) fiber.Handler {
	return limiter.New(limiter.Config{
		Max:        max,
		Expiration: expiration,
		Next:       skipProbes,
		KeyGenerator: func(c *fiber.Ctx) string {
			return fmt.Sprintf("api:ip:%s", c.IP())
		},
		LimitReached: func(c *fiber.Ctx) error {
			return tooManyRequests(c, "API rate limit exceeded. Please slow down your requests.")
		},
	})
}

// TurnRateLimit limits turn ingestion per session, since every turn calls the AI
// collaborators. Requests without a session id fall back to the client IP.
func TurnRateLimit(max int, expiration time.Duration) fiber.Handler {
	return limiter.New(limiter.Config{
		Max:        max,
		Expiration: expiration,
		KeyGenerator: func(c *fiber.Ctx) string {
			if sessionID := c.FormValue("session_id"); sessionID != "" {
				return fmt.Sprintf("turn:session:%s", sessionID)
			}
			return fmt.Sprintf("turn:ip:%s", c.IP())
		},
		LimitReached: func(c *fiber.Ctx) error {
			return tooManyRequests(c, "Turn rate limit exceeded. Please wait before sending more turns.")
		},
		SkipFailedRequests: true,
	})
}

func tooManyRequests(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
		"error": msg,
		"code":  fiber.StatusTooManyRequests,
	})
}

func skipProbes(c *fiber.Ctx) bool {
	return c.Path() == "/health" || c.Path() == "/metrics"
}
