package repositories

import (
	"context"
	"fmt"

	"github.com/deckforge/chainsale/chainsale/database/models"
	"github.com/deckforge/chainsale/chainsale/economy/utils"
	"github.com/uptrace/bun"
)

// AccountRepository pays out refunds and withdrawals by crediting account
// balances. Called from a market settlement, it joins the transaction of the
// change being committed.
type AccountRepository struct {
	*BaseRepository
	txm *utils.EconomicTransactionManager
}

func NewAccountRepository(db *bun.DB, txm *utils.EconomicTransactionManager) *AccountRepository {
	return &AccountRepository{
		BaseRepository: NewBaseRepository(db),
		txm:            txm,
	}
}

func (r *AccountRepository) Transfer(ctx context.Context, to string, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("transfer amount must be positive, got %d", amount)
	}
	return r.txm.WithTransaction(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return r.txm.CreditAccount(ctx, tx, to, amount, "payout")
	})
}

func (r *AccountRepository) Balance(ctx context.Context, accountID string) (int64, error) {
	var account models.Account
	err := r.SelectWithTimeout(ctx, "get", "account", func(ctx context.Context) error {
		return r.db.NewSelect().Model(&account).Where("id = ?", accountID).Scan(ctx)
	})
	if IsNotFound(err) {
		return 0, nil
	}
	return account.Balance, err
}
