package models

import (
	"time"

	"github.com/uptrace/bun"
)

type Sale struct {
	bun.BaseModel `bun:"table:sales,alias:s"`

	TokenID    int64     `bun:"token_id,pk"`
	Deck       int       `bun:"deck,notnull"`
	Generation int       `bun:"generation,notnull"`
	Buyer      string    `bun:"buyer,notnull"`
	Tier       int16     `bun:"tier,notnull"`
	Price      int64     `bun:"price,notnull"`
	Paid       int64     `bun:"paid,notnull"`
	Refund     int64     `bun:"refund,notnull"`
	Chain      bool      `bun:"chain,notnull"`
	SoldAt     int64     `bun:"sold_at,notnull"`
	CreatedAt  time.Time `bun:"created_at,notnull,default:current_timestamp"`
}

type Withdrawal struct {
	bun.BaseModel `bun:"table:withdrawals,alias:w"`

	ID          int64     `bun:"id,pk,autoincrement"`
	Caller      string    `bun:"caller,notnull"`
	Destination string    `bun:"destination,notnull"`
	Amount      int64     `bun:"amount,notnull"`
	WithdrawnAt int64     `bun:"withdrawn_at,notnull"`
	CreatedAt   time.Time `bun:"created_at,notnull,default:current_timestamp"`
}

// PriceHistory is a periodic snapshot of an open listing's quote.
type PriceHistory struct {
	bun.BaseModel `bun:"table:price_history,alias:ph"`

	ID         int64     `bun:"id,pk,autoincrement"`
	Deck       int       `bun:"deck,notnull"`
	Generation int       `bun:"generation,notnull"`
	Tier       int16     `bun:"tier,notnull"`
	Price      int64     `bun:"price,notnull"`
	ChainPrice int64     `bun:"chain_price,notnull"`
	Reserved   bool      `bun:"reserved,notnull"`
	RecordedAt time.Time `bun:"recorded_at,notnull,default:current_timestamp"`
}
