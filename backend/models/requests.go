package models

import (
	"github.com/deckforge/chainsale/internal/domain/catalog"
)

type PurchaseRequest struct {
	// Paid is in base units.
	Paid int64 `json:"paid"`
}

type ListCardRequest struct {
	Deck       int   `json:"deck"`
	Generation int   `json:"generation"`
	StartTime  int64 `json:"start_time"`
}

type ListGenerationRequest struct {
	Generation int   `json:"generation"`
	StartTime  int64 `json:"start_time"`
}

type ListBatchRequest struct {
	Decks       []int `json:"decks"`
	Generations []int `json:"generations"`
	StartTime   int64 `json:"start_time"`
}

type RarityRequest struct {
	Values []int `json:"values"`
}

type MetadataRequest struct {
	Locator string `json:"locator"`
}

// ValueRequest carries one integer setting such as a duration or percentage.
type ValueRequest struct {
	Value *int64 `json:"value"`
}

type PricingRequest struct {
	Coefficient *int64 `json:"coefficient"`
	Constant    *int64 `json:"constant"`
}

type WithdrawRequest struct {
	Destination string `json:"destination"`
}

// CardView is a listed slot together with its current prices.
type CardView struct {
	Deck          int    `json:"deck"`
	Generation    int    `json:"generation"`
	State         string `json:"state"`
	TokenID       uint64 `json:"token_id,omitempty"`
	StartTime     int64  `json:"start_time"`
	ReservedBuyer string `json:"reserved_buyer,omitempty"`
	Tier          int    `json:"tier,omitempty"`
	Price         int64  `json:"price,omitempty"`
	PriceDisplay  string `json:"price_display,omitempty"`
	ChainPrice    int64  `json:"chain_price,omitempty"`
	Reserved      bool   `json:"reserved"`
}

func NewCardView(slot catalog.Slot) CardView {
	return CardView{
		Deck:          slot.Deck,
		Generation:    slot.Generation,
		State:         slot.State().String(),
		TokenID:       slot.TokenID,
		StartTime:     slot.StartTime,
		ReservedBuyer: slot.ReservedBuyer,
	}
}

// WithQuote fills in the prices of an open card.
func (v CardView) WithQuote(q catalog.Quote) CardView {
	v.Tier = int(q.Tier)
	v.Price = q.Price
	v.PriceDisplay = catalog.FormatCoins(q.Price)
	v.ChainPrice = q.ChainPrice
	v.Reserved = q.Reserved
	return v
}

type TokenView struct {
	TokenID     uint64 `json:"token_id"`
	Deck        int    `json:"deck"`
	Generation  int    `json:"generation"`
	Owner       string `json:"owner,omitempty"`
	MetadataURI string `json:"metadata_uri,omitempty"`
}

type ListingResult struct {
	Opened int `json:"opened"`
}

type WithdrawResult struct {
	Amount        int64  `json:"amount"`
	AmountDisplay string `json:"amount_display"`
}
