// Package backend serves the market over HTTP.
package backend

import (
	"context"
	"log/slog"
	"time"

	"github.com/deckforge/chainsale/backend/handlers"
	"github.com/deckforge/chainsale/backend/middleware"
	"github.com/deckforge/chainsale/chainsale"
	"github.com/deckforge/chainsale/chainsale/config"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

type Server struct {
	app     *fiber.App
	limiter *middleware.RateLimiter
	address string
}

func New(cfg chainsale.APIConfig, webApp *handlers.WebApp) *Server {
	app := fiber.New(fiber.Config{
		AppName:               "ChainSale API",
		ServerHeader:          "ChainSale",
		ErrorHandler:          middleware.CustomErrorHandler,
		DisableStartupMessage: true,
	})

	window := time.Duration(cfg.RateLimitWindow) * time.Second
	if window <= 0 {
		window = time.Minute
	}
	s := &Server{
		app:     app,
		limiter: middleware.NewRateLimiter(cfg.RateLimit, window),
		address: cfg.Address,
	}

	app.Use(recover.New())
	app.Use(middleware.SecurityHeaders())
	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.AllowedOrigins,
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept," + config.CallerHeader,
	}))
	app.Use(middleware.LoggingMiddleware())

	setupRoutes(app, webApp, s.limiter)
	return s
}

func setupRoutes(app *fiber.App, webApp *handlers.WebApp, limiter *middleware.RateLimiter) {
	app.Get("/health", handlers.HealthCheck(webApp))

	api := app.Group("/api", middleware.RateLimit(limiter))
	api.Get("/params", handlers.GetParams(webApp))

	cards := api.Group("/cards")
	cards.Get("/", handlers.ListOpenCards(webApp))
	cards.Get("/:deck/:generation", handlers.GetCard(webApp))
	cards.Post("/:deck/:generation/purchase", middleware.CallerRequired(), handlers.PurchaseCard(webApp))

	tokens := api.Group("/tokens")
	tokens.Get("/:id", handlers.GetToken(webApp))
	tokens.Get("/:id/metadata", handlers.GetTokenMetadata(webApp))
	api.Get("/owners/:owner/tokens", handlers.GetOwnerTokens(webApp))

	admin := api.Group("/admin", middleware.CallerRequired())
	admin.Get("/balance", handlers.GetBalance(webApp))
	admin.Post("/listings", middleware.AuditLogMiddleware("list_card"), handlers.ListCard(webApp))
	admin.Post("/listings/generation", middleware.AuditLogMiddleware("list_generation"), handlers.ListGeneration(webApp))
	admin.Post("/listings/batch", middleware.AuditLogMiddleware("list_many"), handlers.ListBatch(webApp))
	admin.Delete("/listings/:deck/:generation", middleware.AuditLogMiddleware("cancel_listing"), handlers.CancelListing(webApp))
	admin.Put("/rarity", middleware.AuditLogMiddleware("set_rarity"), handlers.SetRarity(webApp))

	settings := admin.Group("/config")
	settings.Put("/metadata", middleware.AuditLogMiddleware("set_metadata"), handlers.SetMetadataLocator(webApp))
	settings.Put("/listing-duration", middleware.AuditLogMiddleware("set_listing_duration"), handlers.SetListingDuration(webApp))
	settings.Put("/chain-window", middleware.AuditLogMiddleware("set_chain_window"), handlers.SetChainPurchaseWindow(webApp))
	settings.Put("/chain-discount", middleware.AuditLogMiddleware("set_chain_discount"), handlers.SetChainPurchaseDiscount(webApp))
	settings.Put("/pricing", middleware.AuditLogMiddleware("set_pricing"), handlers.SetPricing(webApp))

	admin.Post("/withdraw", middleware.AuditLogMiddleware("withdraw"), handlers.Withdraw(webApp))
}

func (s *Server) App() *fiber.App {
	return s.app
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		slog.Info("Starting API server", slog.String("type", "http"), slog.String("address", s.address))
		errCh <- s.app.Listen(s.address)
	}()

	select {
	case err := <-errCh:
		s.limiter.Close()
		return err
	case <-ctx.Done():
	}

	slog.Info("Shutting down API server...", slog.String("type", "http"))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
	defer cancel()

	err := s.app.ShutdownWithContext(shutdownCtx)
	<-errCh
	s.limiter.Close()
	return err
}

// Close releases resources for a server that was never run.
func (s *Server) Close() {
	s.limiter.Close()
}
