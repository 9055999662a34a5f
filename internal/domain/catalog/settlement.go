package catalog

import "context"

//go:generate mockgen -source=settlement.go -destination=mock/settlement.go -package=mock

// Transferer moves value out of the market: refunds to buyers and
// withdrawals to the treasury.
//
// Transfer runs while the market holds its write lock. A call back into the
// market with the ctx Transfer received fails with ErrReentrantCall; a call
// made with any other context blocks on that lock forever, so
// implementations must pass their ctx along or not call the market at all.
type Transferer interface {
	Transfer(ctx context.Context, to string, amount int64) error
}

// TransferFunc adapts a function to Transferer.
type TransferFunc func(ctx context.Context, to string, amount int64) error

func (f TransferFunc) Transfer(ctx context.Context, to string, amount int64) error {
	return f(ctx, to, amount)
}

type settlingKey struct{}

// withSettling marks ctx as belonging to a settlement running under the
// market lock. Market rejects every call made with such a context.
func withSettling(ctx context.Context) context.Context {
	return context.WithValue(ctx, settlingKey{}, true)
}

// IsSettling reports whether ctx was handed out by a running settlement.
func IsSettling(ctx context.Context) bool {
	v, _ := ctx.Value(settlingKey{}).(bool)
	return v
}
