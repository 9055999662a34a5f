package middleware

import (
	"log/slog"
	"strings"

	"github.com/deckforge/chainsale/backend/utils"
	"github.com/deckforge/chainsale/chainsale/config"
	"github.com/gofiber/fiber/v2"
)

// CallerRequired stores the X-Caller-ID identity in the request locals.
// Whether the caller may do anything is decided by the market's guard.
func CallerRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		caller := strings.TrimSpace(c.Get(config.CallerHeader))
		if caller == "" {
			slog.Debug("Caller required: missing header",
				slog.String("type", "http"),
				slog.String("path", c.Path()))
			return utils.SendUnauthorized(c, "Missing "+config.CallerHeader+" header")
		}

		c.Locals("caller", caller)
		return c.Next()
	}
}

// AuditLogMiddleware logs administrative actions with their outcome.
func AuditLogMiddleware(action string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		err := c.Next()

		statusCode := c.Response().StatusCode()
		success := err == nil && statusCode >= 200 && statusCode < 300

		slog.Info("Admin action completed",
			slog.String("type", "http"),
			slog.String("action", action),
			slog.String("caller", utils.CallerID(c)),
			slog.Bool("success", success),
			slog.Int("status", statusCode),
			slog.String("ip", utils.GetIPAddress(c)),
		)
		return err
	}
}
