package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Listing is one deck x generation slot. TokenID and StartTime use zero for
// unset, matching the in-memory representation.
type Listing struct {
	bun.BaseModel `bun:"table:listings,alias:l"`

	Deck          int       `bun:"deck,pk"`
	Generation    int       `bun:"generation,pk"`
	TokenID       int64     `bun:"token_id,notnull,default:0"`
	StartTime     int64     `bun:"start_time,notnull,default:0"`
	ReservedBuyer string    `bun:"reserved_buyer,notnull,default:''"`
	UpdatedAt     time.Time `bun:"updated_at,notnull,default:current_timestamp"`
}

// MarketParams is a single row table holding the live configuration.
type MarketParams struct {
	bun.BaseModel `bun:"table:market_params,alias:mp"`

	ID                    int       `bun:"id,pk"`
	PriceCoefficient      int64     `bun:"price_coefficient,notnull"`
	PriceConstant         int64     `bun:"price_constant,notnull"`
	ListingDuration       int64     `bun:"listing_duration,notnull"`
	ChainPurchaseWindow   int64     `bun:"chain_purchase_window,notnull"`
	ChainPurchaseDiscount int64     `bun:"chain_purchase_discount,notnull"`
	BaseMetadataLocator   string    `bun:"base_metadata_locator,notnull,default:''"`
	UpdatedAt             time.Time `bun:"updated_at,notnull,default:current_timestamp"`
}

// RarityTable stores the flat tier array in a single row.
type RarityTable struct {
	bun.BaseModel `bun:"table:rarity_tables,alias:rt"`

	ID        int       `bun:"id,pk"`
	Tiers     []int16   `bun:"tiers,array"`
	UpdatedAt time.Time `bun:"updated_at,notnull,default:current_timestamp"`
}
