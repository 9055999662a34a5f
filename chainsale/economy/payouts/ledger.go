// Package payouts holds the in-memory payout ledger used when the service
// runs without a database.
package payouts

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

type Entry struct {
	Account string `json:"account"`
	Amount  int64  `json:"amount"`
}

// Ledger credits payouts to named accounts and keeps every entry.
type Ledger struct {
	mu       sync.Mutex
	balances map[string]int64
	entries  []Entry
}

func NewLedger() *Ledger {
	return &Ledger{balances: make(map[string]int64)}
}

func (l *Ledger) Transfer(_ context.Context, to string, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("transfer amount must be positive, got %d", amount)
	}

	l.mu.Lock()
	l.balances[to] += amount
	l.entries = append(l.entries, Entry{Account: to, Amount: amount})
	l.mu.Unlock()

	slog.Debug("Payout credited",
		slog.String("type", "market"),
		slog.String("account", to),
		slog.Int64("amount", amount))
	return nil
}

func (l *Ledger) Balance(_ context.Context, account string) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances[account], nil
}

func (l *Ledger) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Entry(nil), l.entries...)
}
