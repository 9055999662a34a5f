package handlers

import (
	"fmt"

	"github.com/deckforge/chainsale/backend/models"
	"github.com/deckforge/chainsale/backend/utils"
	"github.com/deckforge/chainsale/internal/domain/catalog"
	"github.com/gofiber/fiber/v2"
)

// ListOpenCards returns every open listing with its current price.
func ListOpenCards(webApp *WebApp) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := requestContext(c)
		defer cancel()

		quotes, err := webApp.Market.Quotes(ctx)
		if err != nil {
			logFailure(c, "quotes", err)
			return utils.SendMarketError(c, err)
		}

		cards := make([]models.CardView, 0, len(quotes))
		for _, q := range quotes {
			cards = append(cards, models.NewCardView(q.Slot).WithQuote(q))
		}
		return utils.SendSuccess(c, cards, "")
	}
}

// GetCard returns a slot and, while it is open, its prices.
func GetCard(webApp *WebApp) fiber.Handler {
	return func(c *fiber.Ctx) error {
		deck, generation, details := utils.ParseSlotParams(c)
		if details != nil {
			return utils.SendBadRequest(c, "Invalid card", details)
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		slot, err := webApp.Market.Slot(ctx, deck, generation)
		if err != nil {
			logFailure(c, "slot", err)
			return utils.SendMarketError(c, err)
		}
		view := models.NewCardView(slot)

		switch slot.State() {
		case catalog.StateAbsent:
			return utils.SendMarketError(c, fmt.Errorf("deck %d generation %d: %w", deck, generation, catalog.ErrCardNotListed))
		case catalog.StateOpen:
			quote, err := webApp.Market.Quote(ctx, deck, generation)
			if err != nil {
				logFailure(c, "quote", err)
				return utils.SendMarketError(c, err)
			}
			view = view.WithQuote(quote)
		}
		return utils.SendSuccess(c, view, "")
	}
}

// PurchaseCard buys a card on behalf of the caller.
func PurchaseCard(webApp *WebApp) fiber.Handler {
	return func(c *fiber.Ctx) error {
		deck, generation, details := utils.ParseSlotParams(c)
		if details != nil {
			return utils.SendBadRequest(c, "Invalid card", details)
		}

		var req models.PurchaseRequest
		if err := c.BodyParser(&req); err != nil {
			return utils.SendBadRequest(c, "Invalid request body", nil)
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		receipt, err := webApp.Market.Purchase(ctx, utils.CallerID(c), deck, generation, req.Paid)
		if err != nil {
			logFailure(c, "purchase", err)
			return utils.SendMarketError(c, err)
		}
		return utils.SendCreated(c, receipt, "Card purchased")
	}
}

func GetParams(webApp *WebApp) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := requestContext(c)
		defer cancel()

		params, err := webApp.Market.Params(ctx)
		if err != nil {
			logFailure(c, "params", err)
			return utils.SendMarketError(c, err)
		}
		return utils.SendSuccess(c, params, "")
	}
}
