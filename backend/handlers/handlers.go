package handlers

import (
	"context"
	"log/slog"
	"time"

	"github.com/deckforge/chainsale/backend/models"
	"github.com/deckforge/chainsale/backend/utils"
	"github.com/deckforge/chainsale/chainsale/config"
	"github.com/deckforge/chainsale/internal/domain/catalog"
	"github.com/deckforge/chainsale/internal/domain/ownership"
	"github.com/gofiber/fiber/v2"
)

// Pinger reports whether a backing service is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// WebApp represents the web application with all dependencies
type WebApp struct {
	Market  *catalog.Market
	Owners  *ownership.Registry
	DB      Pinger
	Version string
}

func requestContext(c *fiber.Ctx) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.UserContext(), config.RequestTimeout)
}

// HealthCheck reports the market and, when configured, the database.
func HealthCheck(webApp *WebApp) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := requestContext(c)
		defer cancel()

		health := models.NewHealthCheck(webApp.Version)

		if balance, err := webApp.Market.Balance(ctx); err != nil {
			health.AddComponent("market", "unhealthy", err.Error(), nil)
		} else {
			health.AddComponent("market", "healthy", "", map[string]interface{}{"balance": balance})
		}

		if webApp.DB != nil {
			start := time.Now()
			if err := webApp.DB.Ping(ctx); err != nil {
				health.AddComponent("database", "unhealthy", err.Error(), nil)
			} else {
				health.AddComponent("database", "healthy", "", map[string]interface{}{
					"latency_ms": time.Since(start).Milliseconds(),
				})
			}
		}

		status := fiber.StatusOK
		if health.Status != "healthy" {
			status = fiber.StatusServiceUnavailable
		}
		return utils.SendJSON(c, status, health)
	}
}

func logFailure(c *fiber.Ctx, operation string, err error) {
	if catalog.KindOf(err) != catalog.KindUnknown {
		return
	}
	slog.Error("Request failed",
		slog.String("type", "http"),
		slog.String("operation", operation),
		slog.String("path", c.Path()),
		slog.Any("error", err))
}
