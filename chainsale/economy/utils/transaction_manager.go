package utils

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/deckforge/chainsale/chainsale/database/models"
	"github.com/uptrace/bun"
)

const DefaultTxTimeout = 15 * time.Second

var ErrInsufficientBalance = errors.New("insufficient balance")

// TransactionOptions configures transaction behavior
type TransactionOptions struct {
	IsolationLevel sql.IsolationLevel
	Timeout        time.Duration
}

// EconomicTransactionManager runs market writes inside database transactions
// and exposes the running transaction to nested repositories via the context.
type EconomicTransactionManager struct {
	db *bun.DB
}

func NewEconomicTransactionManager(db *bun.DB) *EconomicTransactionManager {
	return &EconomicTransactionManager{db: db}
}

// StandardTransactionOptions returns default transaction options
func StandardTransactionOptions() *TransactionOptions {
	return &TransactionOptions{
		IsolationLevel: sql.LevelReadCommitted,
		Timeout:        DefaultTxTimeout,
	}
}

// SerializableTransactionOptions is used for sales and withdrawals.
func SerializableTransactionOptions() *TransactionOptions {
	return &TransactionOptions{
		IsolationLevel: sql.LevelSerializable,
		Timeout:        DefaultTxTimeout,
	}
}

type txKey struct{}

// TxFromContext returns the transaction started by WithTransaction, if any.
func TxFromContext(ctx context.Context) (bun.Tx, bool) {
	tx, ok := ctx.Value(txKey{}).(bun.Tx)
	return tx, ok
}

// WithTransaction executes fn within a database transaction. The context
// handed to fn carries the transaction. A nested call joins the outer
// transaction instead of opening a new one.
func (etm *EconomicTransactionManager) WithTransaction(ctx context.Context, opts *TransactionOptions, fn func(context.Context, bun.Tx) error) error {
	if tx, ok := TxFromContext(ctx); ok {
		return fn(ctx, tx)
	}
	if opts == nil {
		opts = StandardTransactionOptions()
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	tx, err := etm.db.BeginTx(timeoutCtx, &sql.TxOptions{Isolation: opts.IsolationLevel})
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(context.WithValue(timeoutCtx, txKey{}, tx), tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// CreditAccount adds amount to an account, creating it on first use, and
// writes the matching ledger entry. A negative amount debits and fails if the
// balance would go below zero.
func (etm *EconomicTransactionManager) CreditAccount(ctx context.Context, tx bun.Tx, accountID string, amount int64, reason string) error {
	now := time.Now()

	if amount < 0 {
		var account models.Account
		err := tx.NewSelect().
			Model(&account).
			Column("balance").
			Where("id = ?", accountID).
			For("UPDATE").
			Scan(ctx)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("failed to get account balance: %w", err)
		}
		if account.Balance < -amount {
			return fmt.Errorf("%w (has %d, needs %d)", ErrInsufficientBalance, account.Balance, -amount)
		}
	}

	_, err := tx.NewInsert().
		Model(&models.Account{ID: accountID, Balance: amount, CreatedAt: now, UpdatedAt: now}).
		On("CONFLICT (id) DO UPDATE").
		Set("balance = acc.balance + EXCLUDED.balance").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to update balance: %w", err)
	}

	_, err = tx.NewInsert().
		Model(&models.AccountEntry{AccountID: accountID, Amount: amount, Reason: reason, CreatedAt: now}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to write ledger entry: %w", err)
	}
	return nil
}
