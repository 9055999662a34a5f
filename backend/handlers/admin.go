package handlers

import (
	"context"

	"github.com/deckforge/chainsale/backend/models"
	"github.com/deckforge/chainsale/backend/utils"
	"github.com/deckforge/chainsale/internal/domain/catalog"
	"github.com/gofiber/fiber/v2"
)

func ListCard(webApp *WebApp) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req models.ListCardRequest
		if err := c.BodyParser(&req); err != nil {
			return utils.SendBadRequest(c, "Invalid request body", nil)
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		if err := webApp.Market.ListCard(ctx, utils.CallerID(c), req.Deck, req.Generation, req.StartTime); err != nil {
			logFailure(c, "list_card", err)
			return utils.SendMarketError(c, err)
		}
		return utils.SendCreated(c, models.ListingResult{Opened: 1}, "Card listed")
	}
}

func ListGeneration(webApp *WebApp) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req models.ListGenerationRequest
		if err := c.BodyParser(&req); err != nil {
			return utils.SendBadRequest(c, "Invalid request body", nil)
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		opened, err := webApp.Market.ListGeneration(ctx, utils.CallerID(c), req.Generation, req.StartTime)
		if err != nil {
			logFailure(c, "list_generation", err)
			return utils.SendMarketError(c, err)
		}
		return utils.SendCreated(c, models.ListingResult{Opened: opened}, "Generation listed")
	}
}

func ListBatch(webApp *WebApp) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req models.ListBatchRequest
		if err := c.BodyParser(&req); err != nil {
			return utils.SendBadRequest(c, "Invalid request body", nil)
		}
		if err := webApp.Market.Authorize(utils.CallerID(c), catalog.CapabilityList); err != nil {
			return utils.SendMarketError(c, err)
		}
		if details := utils.ValidateBatchRequest(&req); details != nil {
			return utils.SendBadRequest(c, "Invalid batch", details)
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		opened, err := webApp.Market.ListMany(ctx, utils.CallerID(c), req.Decks, req.Generations, req.StartTime)
		if err != nil {
			logFailure(c, "list_many", err)
			return utils.SendMarketError(c, err)
		}
		return utils.SendCreated(c, models.ListingResult{Opened: opened}, "Cards listed")
	}
}

func CancelListing(webApp *WebApp) fiber.Handler {
	return func(c *fiber.Ctx) error {
		deck, generation, details := utils.ParseSlotParams(c)
		if details != nil {
			return utils.SendBadRequest(c, "Invalid card", details)
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		if err := webApp.Market.CancelListing(ctx, utils.CallerID(c), deck, generation); err != nil {
			logFailure(c, "cancel_listing", err)
			return utils.SendMarketError(c, err)
		}
		return utils.SendSuccess(c, nil, "Listing cancelled")
	}
}

func SetRarity(webApp *WebApp) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req models.RarityRequest
		if err := c.BodyParser(&req); err != nil {
			return utils.SendBadRequest(c, "Invalid request body", nil)
		}

		if err := webApp.Market.Authorize(utils.CallerID(c), catalog.CapabilityConfigure); err != nil {
			return utils.SendMarketError(c, err)
		}

		values := make([]catalog.Tier, len(req.Values))
		for i, v := range req.Values {
			if v < 0 || v > 255 {
				return utils.SendMarketError(c, catalog.ErrInvalidRarity)
			}
			values[i] = catalog.Tier(v)
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		if err := webApp.Market.SetRarity(ctx, utils.CallerID(c), values); err != nil {
			logFailure(c, "set_rarity", err)
			return utils.SendMarketError(c, err)
		}
		return utils.SendSuccess(c, nil, "Rarity table replaced")
	}
}

func SetMetadataLocator(webApp *WebApp) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req models.MetadataRequest
		if err := c.BodyParser(&req); err != nil {
			return utils.SendBadRequest(c, "Invalid request body", nil)
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		if err := webApp.Market.SetBaseMetadataLocator(ctx, utils.CallerID(c), req.Locator); err != nil {
			logFailure(c, "set_metadata", err)
			return utils.SendMarketError(c, err)
		}
		return utils.SendSuccess(c, nil, "Metadata locator updated")
	}
}

type settingFunc func(ctx context.Context, caller string, value int64) error

func SetListingDuration(webApp *WebApp) fiber.Handler {
	return setValue(webApp, "set_listing_duration", webApp.Market.SetListingDuration)
}

func SetChainPurchaseWindow(webApp *WebApp) fiber.Handler {
	return setValue(webApp, "set_chain_window", webApp.Market.SetChainPurchaseWindow)
}

func SetChainPurchaseDiscount(webApp *WebApp) fiber.Handler {
	return setValue(webApp, "set_chain_discount", webApp.Market.SetChainPurchaseDiscount)
}

// setValue adapts one of the market's single value setters to a PUT route.
func setValue(webApp *WebApp, operation string, set settingFunc) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req models.ValueRequest
		if err := c.BodyParser(&req); err != nil {
			return utils.SendBadRequest(c, "Invalid request body", nil)
		}
		if err := webApp.Market.Authorize(utils.CallerID(c), catalog.CapabilityConfigure); err != nil {
			return utils.SendMarketError(c, err)
		}
		if req.Value == nil {
			return utils.SendBadRequest(c, "Value is required", map[string]string{"value": "Value is required"})
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		if err := set(ctx, utils.CallerID(c), *req.Value); err != nil {
			logFailure(c, operation, err)
			return utils.SendMarketError(c, err)
		}
		return utils.SendSuccess(c, nil, "Setting updated")
	}
}

func SetPricing(webApp *WebApp) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req models.PricingRequest
		if err := c.BodyParser(&req); err != nil {
			return utils.SendBadRequest(c, "Invalid request body", nil)
		}
		if err := webApp.Market.Authorize(utils.CallerID(c), catalog.CapabilityConfigure); err != nil {
			return utils.SendMarketError(c, err)
		}
		if details := utils.ValidatePricingRequest(&req); details != nil {
			return utils.SendBadRequest(c, "Invalid pricing", details)
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		if err := webApp.Market.SetPricing(ctx, utils.CallerID(c), *req.Coefficient, *req.Constant); err != nil {
			logFailure(c, "set_pricing", err)
			return utils.SendMarketError(c, err)
		}
		return utils.SendSuccess(c, nil, "Pricing updated")
	}
}

// Withdraw pays the accumulated proceeds out to the requested destination.
func Withdraw(webApp *WebApp) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req models.WithdrawRequest
		if err := c.BodyParser(&req); err != nil {
			return utils.SendBadRequest(c, "Invalid request body", nil)
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		amount, err := webApp.Market.Withdraw(ctx, utils.CallerID(c), req.Destination)
		if err != nil {
			logFailure(c, "withdraw", err)
			return utils.SendMarketError(c, err)
		}
		return utils.SendSuccess(c, models.WithdrawResult{
			Amount:        amount,
			AmountDisplay: catalog.FormatCoins(amount),
		}, "Balance withdrawn")
	}
}

// GetBalance shows the withdrawable proceeds to callers who may withdraw them.
func GetBalance(webApp *WebApp) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := webApp.Market.Authorize(utils.CallerID(c), catalog.CapabilityWithdraw); err != nil {
			return utils.SendMarketError(c, err)
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		balance, err := webApp.Market.Balance(ctx)
		if err != nil {
			logFailure(c, "balance", err)
			return utils.SendMarketError(c, err)
		}
		return utils.SendSuccess(c, models.WithdrawResult{
			Amount:        balance,
			AmountDisplay: catalog.FormatCoins(balance),
		}, "")
	}
}
