package catalog

import "context"

//go:generate mockgen -source=recorder.go -destination=mock/recorder.go -package=mock

// Sale describes one closed slot. It is handed to the Recorder before the
// state change is applied and to every SaleListener afterwards.
type Sale struct {
	TokenID    uint64 `json:"token_id"`
	Deck       int    `json:"deck"`
	Generation int    `json:"generation"`
	Buyer      string `json:"buyer"`
	Price      int64  `json:"price"`
	Paid       int64  `json:"paid"`
	Refund     int64  `json:"refund"`
	Chain      bool   `json:"chain"`
	Tier       Tier   `json:"tier"`
	Timestamp  int64  `json:"timestamp"`
	// Next is the listing opened for the following generation, if any.
	Next *Slot `json:"next,omitempty"`
}

type Withdrawal struct {
	Caller      string `json:"caller"`
	Destination string `json:"destination"`
	Amount      int64  `json:"amount"`
	Timestamp   int64  `json:"timestamp"`
}

// Change is the staged result of one market operation. Slots holds the final
// state of every touched slot; the other fields are set only by the
// operations that produce them.
type Change struct {
	Slots      []Slot
	Sale       *Sale
	Params     *Params
	Rarity     []Tier
	Withdrawal *Withdrawal
}

// Recorder persists a Change. settle, when non-nil, must run inside the same
// unit of work: if either fails, nothing is persisted and Commit returns the
// error. Market applies the change in memory only after Commit succeeds.
type Recorder interface {
	Commit(ctx context.Context, change Change, settle func(context.Context) error) error
}

// NopRecorder keeps nothing and only runs settle.
type NopRecorder struct{}

func (NopRecorder) Commit(ctx context.Context, _ Change, settle func(context.Context) error) error {
	if settle == nil {
		return nil
	}
	return settle(ctx)
}

// Snapshot is a persisted market state used to rebuild a Market on start.
type Snapshot struct {
	Params  *Params
	Rarity  []Tier
	Slots   []Slot
	Balance int64
}
