package catalog

import "context"

//go:generate mockgen -source=events.go -destination=mock/events.go -package=mock

// SaleListener is told about every completed sale once the market lock has
// been released. It is how token ownership, brokers and announcers learn that
// a slot closed and a token was issued.
type SaleListener interface {
	HandleSale(ctx context.Context, sale Sale) error
}

type SaleListenerFunc func(ctx context.Context, sale Sale) error

func (f SaleListenerFunc) HandleSale(ctx context.Context, sale Sale) error {
	return f(ctx, sale)
}
