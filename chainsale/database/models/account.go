package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Account is an off-chain payout balance credited by refunds and withdrawals.
type Account struct {
	bun.BaseModel `bun:"table:accounts,alias:acc"`

	ID        string    `bun:"id,pk"`
	Balance   int64     `bun:"balance,notnull,default:0"`
	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt time.Time `bun:"updated_at,notnull,default:current_timestamp"`
}

// AccountEntry is the ledger line behind every balance change.
type AccountEntry struct {
	bun.BaseModel `bun:"table:account_entries,alias:ae"`

	ID        int64     `bun:"id,pk,autoincrement"`
	AccountID string    `bun:"account_id,notnull"`
	Amount    int64     `bun:"amount,notnull"`
	Reason    string    `bun:"reason,notnull"`
	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp"`
}
