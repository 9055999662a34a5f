package handlers

import (
	"errors"

	"github.com/deckforge/chainsale/backend/models"
	"github.com/deckforge/chainsale/backend/utils"
	"github.com/deckforge/chainsale/internal/domain/ownership"
	"github.com/gofiber/fiber/v2"
)

func GetToken(webApp *WebApp) fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenID, err := utils.ParseTokenParam(c)
		if err != nil {
			return utils.SendBadRequest(c, err.Error(), nil)
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		ref, err := webApp.Market.ListingID(ctx, tokenID)
		if err != nil {
			logFailure(c, "listing_id", err)
			return utils.SendMarketError(c, err)
		}
		uri, err := webApp.Market.ResolveMetadata(ctx, tokenID)
		if err != nil {
			logFailure(c, "metadata", err)
			return utils.SendMarketError(c, err)
		}

		view := models.TokenView{TokenID: tokenID, Deck: ref.Deck, Generation: ref.Generation, MetadataURI: uri}
		if webApp.Owners != nil {
			token, err := webApp.Owners.OwnerOf(tokenID)
			switch {
			case err == nil:
				view.Owner = token.Owner
			case !errors.Is(err, ownership.ErrUnknownToken):
				return utils.SendMarketError(c, err)
			}
		}
		return utils.SendSuccess(c, view, "")
	}
}

// GetTokenMetadata returns the locator of the token's metadata document.
func GetTokenMetadata(webApp *WebApp) fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenID, err := utils.ParseTokenParam(c)
		if err != nil {
			return utils.SendBadRequest(c, err.Error(), nil)
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		uri, err := webApp.Market.ResolveMetadata(ctx, tokenID)
		if err != nil {
			logFailure(c, "metadata", err)
			return utils.SendMarketError(c, err)
		}
		return utils.SendSuccess(c, fiber.Map{"token_id": tokenID, "uri": uri}, "")
	}
}

func GetOwnerTokens(webApp *WebApp) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if webApp.Owners == nil {
			return utils.SendNotFound(c, "Ownership tracking is disabled")
		}
		return utils.SendSuccess(c, webApp.Owners.TokensOf(c.Params("owner")), "")
	}
}
