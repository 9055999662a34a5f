package utils

import (
	"errors"
	"net/http"

	"github.com/deckforge/chainsale/backend/models"
	"github.com/deckforge/chainsale/chainsale/config"
	"github.com/deckforge/chainsale/internal/domain/catalog"
	"github.com/deckforge/chainsale/internal/domain/ownership"
	"github.com/gofiber/fiber/v2"
)

// SendJSON sends a JSON response using Fiber
func SendJSON(c *fiber.Ctx, statusCode int, data interface{}) error {
	return c.Status(statusCode).JSON(data)
}

// SendSuccess sends a successful JSON response
func SendSuccess(c *fiber.Ctx, data interface{}, message string) error {
	return SendJSON(c, http.StatusOK, models.NewSuccessResponse(data, message))
}

// SendCreated sends a created resource JSON response
func SendCreated(c *fiber.Ctx, data interface{}, message string) error {
	return SendJSON(c, http.StatusCreated, models.NewSuccessResponse(data, message))
}

// SendError sends an error JSON response
func SendError(c *fiber.Ctx, statusCode int, code, message string, details map[string]string) error {
	return SendJSON(c, statusCode, models.NewErrorResponse(code, "", message, details))
}

// SendBadRequest sends a bad request error response
func SendBadRequest(c *fiber.Ctx, message string, details map[string]string) error {
	return SendError(c, http.StatusBadRequest, "BAD_REQUEST", message, details)
}

func SendUnauthorized(c *fiber.Ctx, message string) error {
	return SendError(c, http.StatusUnauthorized, "UNAUTHORIZED", message, nil)
}

func SendNotFound(c *fiber.Ctx, message string) error {
	return SendError(c, http.StatusNotFound, "NOT_FOUND", message, nil)
}

// SendMarketError maps a market failure onto an HTTP status, keeping the
// market's own error code in the body.
func SendMarketError(c *fiber.Ctx, err error) error {
	status := StatusOf(err)
	code := catalog.Code(err)
	if errors.Is(err, ownership.ErrUnknownToken) {
		code = "UnknownToken"
	}
	message := err.Error()
	if status == http.StatusInternalServerError {
		message = "Internal Server Error"
	}
	return SendJSON(c, status, models.NewErrorResponse(code, catalog.KindOf(err).String(), message, nil))
}

func StatusOf(err error) int {
	switch {
	case errors.Is(err, catalog.ErrCardNotListed),
		errors.Is(err, catalog.ErrUnknownToken),
		errors.Is(err, ownership.ErrUnknownToken):
		return http.StatusNotFound
	case errors.Is(err, catalog.ErrInsufficientFunds):
		return http.StatusPaymentRequired
	case errors.Is(err, catalog.ErrNoEtherBalance):
		return http.StatusConflict
	}

	switch catalog.KindOf(err) {
	case catalog.KindValidation:
		return http.StatusBadRequest
	case catalog.KindLifecycle:
		return http.StatusConflict
	case catalog.KindAuthorization:
		return http.StatusForbidden
	case catalog.KindSettlement:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// CallerID returns the identity set by the caller middleware.
func CallerID(c *fiber.Ctx) string {
	caller, _ := c.Locals("caller").(string)
	return caller
}

// GetIPAddress extracts the client IP address
func GetIPAddress(c *fiber.Ctx) string {
	if xff := c.Get("X-Forwarded-For"); xff != "" {
		return xff
	}
	if xri := c.Get("X-Real-IP"); xri != "" {
		return xri
	}
	return c.IP()
}

// ClientKey identifies a client for rate limiting.
func ClientKey(c *fiber.Ctx) string {
	if caller := c.Get(config.CallerHeader); caller != "" {
		return "caller:" + caller
	}
	return "ip:" + GetIPAddress(c)
}

func GetUserAgent(c *fiber.Ctx) string {
	return c.Get("User-Agent")
}
