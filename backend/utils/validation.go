package utils

import (
	"fmt"
	"strconv"

	"github.com/deckforge/chainsale/backend/models"
	"github.com/deckforge/chainsale/chainsale/config"
	"github.com/gofiber/fiber/v2"
)

// ParseSlotParams reads the :deck and :generation route parameters. Range
// checks are left to the market so callers get its error codes.
func ParseSlotParams(c *fiber.Ctx) (deck, generation int, details map[string]string) {
	details = make(map[string]string)

	deck, err := strconv.Atoi(c.Params("deck"))
	if err != nil {
		details["deck"] = "Deck must be an integer"
	}
	generation, err = strconv.Atoi(c.Params("generation"))
	if err != nil {
		details["generation"] = "Generation must be an integer"
	}

	if len(details) == 0 {
		return deck, generation, nil
	}
	return 0, 0, details
}

func ParseTokenParam(c *fiber.Ctx) (uint64, error) {
	id, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("token id must be a positive integer")
	}
	return id, nil
}

// ValidateBatchRequest bounds the size of a batch listing request.
func ValidateBatchRequest(req *models.ListBatchRequest) map[string]string {
	details := make(map[string]string)
	if len(req.Decks) == 0 {
		details["decks"] = "At least one deck is required"
	}
	if len(req.Generations) == 0 {
		details["generations"] = "At least one generation is required"
	}
	if len(req.Decks)*len(req.Generations) > config.MaxBatchSize {
		details["batch"] = fmt.Sprintf("At most %d slots per request", config.MaxBatchSize)
	}
	if len(details) == 0 {
		return nil
	}
	return details
}

func ValidatePricingRequest(req *models.PricingRequest) map[string]string {
	details := make(map[string]string)
	if req.Coefficient == nil {
		details["coefficient"] = "Coefficient is required"
	}
	if req.Constant == nil {
		details["constant"] = "Constant is required"
	}
	if len(details) == 0 {
		return nil
	}
	return details
}
