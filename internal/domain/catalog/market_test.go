package catalog_test

import (
	"context"
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/deckforge/chainsale/internal/domain/catalog"
	"github.com/deckforge/chainsale/internal/domain/catalog/mock"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/mock/gomock"
)

const (
	admin    = "admin"
	alice    = "alice"
	bob      = "bob"
	opensAt  = int64(1_000)
	oneCoin  = catalog.UnitsPerCoin
	tierFive = catalog.Tier(5)
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type clock struct {
	mu  sync.Mutex
	now int64
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return time.Unix(c.now, 0)
}

func (c *clock) Set(now int64) {
	c.mu.Lock()
	c.now = now
	c.mu.Unlock()
}

func flatRarity(tier catalog.Tier) []catalog.Tier {
	values := make([]catalog.Tier, catalog.RaritySize)
	for i := range values {
		values[i] = tier
	}
	return values
}

// paying always succeeds and remembers what it sent.
type paying struct {
	mu    sync.Mutex
	sent  map[string]int64
	calls int
}

func (p *paying) Transfer(_ context.Context, to string, amount int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.sent == nil {
		p.sent = make(map[string]int64)
	}
	p.sent[to] += amount
	p.calls++
	return nil
}

func newMarket(t *testing.T, transferer catalog.Transferer, opts ...catalog.Option) (*catalog.Market, *clock) {
	t.Helper()
	c := &clock{now: opensAt}
	guard := catalog.NewRoleGuard([]string{admin}, nil, nil)
	m, err := catalog.NewMarket(guard, transferer, append([]catalog.Option{catalog.WithClock(c.Now)}, opts...)...)
	require.NoError(t, err)
	require.NoError(t, m.SetRarity(context.Background(), admin, flatRarity(tierFive)))
	return m, c
}

func TestMarket_PublicPurchase(t *testing.T) {
	ctx := context.Background()
	pay := &paying{}
	m, c := newMarket(t, pay)

	require.NoError(t, m.ListCard(ctx, admin, 1, 1, opensAt))
	c.Set(opensAt + 7200)

	receipt, err := m.Purchase(ctx, alice, 1, 1, oneCoin)
	require.NoError(t, err)
	assert.Equal(t, catalog.Receipt{
		TokenID:       1,
		Price:         873_618_044,
		Refund:        oneCoin - 873_618_044,
		NextStartTime: opensAt + 7200 + catalog.DefaultChainWindow,
	}, receipt)
	assert.True(t, receipt.HasNext())
	assert.Equal(t, oneCoin-873_618_044, pay.sent[alice])

	tokenID, err := m.TokenID(ctx, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), tokenID)

	ref, err := m.ListingID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, catalog.SlotRef{Deck: 1, Generation: 1}, ref)

	next, err := m.Slot(ctx, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, catalog.StateOpen, next.State())
	assert.Equal(t, alice, next.ReservedBuyer)
	assert.Equal(t, receipt.NextStartTime, next.StartTime)

	balance, err := m.Balance(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(873_618_044), balance)

	_, err = m.Purchase(ctx, bob, 1, 1, oneCoin)
	assert.ErrorIs(t, err, catalog.ErrCardSaleHasEnded)
}

func TestMarket_ChainPurchaseWindow(t *testing.T) {
	ctx := context.Background()
	pay := &paying{}
	m, c := newMarket(t, pay)

	require.NoError(t, m.ListCard(ctx, admin, 7, 1, opensAt))
	first, err := m.Purchase(ctx, alice, 7, 1, oneCoin)
	require.NoError(t, err)

	c.Set(first.NextStartTime - 1)

	_, err = m.Purchase(ctx, bob, 7, 2, oneCoin)
	assert.ErrorIs(t, err, catalog.ErrUnauthorized)

	chain := catalog.ChainPrice(tierFive, catalog.DefaultParams())
	_, err = m.Purchase(ctx, alice, 7, 2, chain-1)
	assert.ErrorIs(t, err, catalog.ErrInsufficientFunds)

	calls := pay.calls
	second, err := m.Purchase(ctx, alice, 7, 2, chain)
	require.NoError(t, err)
	assert.True(t, second.Chain)
	assert.Equal(t, int64(850_000_000), second.Price)
	assert.Zero(t, second.Refund)
	assert.Equal(t, calls, pay.calls, "no transfer for an exact payment")
	assert.Equal(t, uint64(2), second.TokenID)
}

func TestMarket_PublicAfterWindow(t *testing.T) {
	ctx := context.Background()
	m, c := newMarket(t, &paying{})

	require.NoError(t, m.ListCard(ctx, admin, 2, 1, opensAt))
	first, err := m.Purchase(ctx, alice, 2, 1, oneCoin)
	require.NoError(t, err)

	c.Set(first.NextStartTime)
	receipt, err := m.Purchase(ctx, bob, 2, 2, oneCoin)
	require.NoError(t, err)
	assert.False(t, receipt.Chain)
	assert.Equal(t, catalog.StartPrice(tierFive, catalog.DefaultParams()), receipt.Price)
}

func TestMarket_FutureListingWithoutReservation(t *testing.T) {
	ctx := context.Background()
	m, _ := newMarket(t, &paying{})

	require.NoError(t, m.ListCard(ctx, admin, 3, 1, opensAt+100))
	_, err := m.Purchase(ctx, alice, 3, 1, oneCoin)
	assert.ErrorIs(t, err, catalog.ErrUnauthorized)
}

func TestMarket_LastGenerationOpensNothing(t *testing.T) {
	ctx := context.Background()
	m, _ := newMarket(t, &paying{})

	require.NoError(t, m.ListCard(ctx, admin, 50, 60, opensAt))
	receipt, err := m.Purchase(ctx, alice, 50, 60, oneCoin)
	require.NoError(t, err)
	assert.Equal(t, catalog.NoNextListing, receipt.NextStartTime)
	assert.False(t, receipt.HasNext())
}

func TestMarket_NextAlreadyListed(t *testing.T) {
	ctx := context.Background()
	m, _ := newMarket(t, &paying{})

	require.NoError(t, m.ListCard(ctx, admin, 4, 1, opensAt))
	require.NoError(t, m.ListCard(ctx, admin, 4, 2, opensAt+50))

	receipt, err := m.Purchase(ctx, alice, 4, 1, oneCoin)
	require.NoError(t, err)
	assert.Equal(t, opensAt+50, receipt.NextStartTime)

	next, err := m.Slot(ctx, 4, 2)
	require.NoError(t, err)
	assert.Empty(t, next.ReservedBuyer, "existing listing is left alone")
}

func TestMarket_PurchaseValidation(t *testing.T) {
	ctx := context.Background()
	m, _ := newMarket(t, &paying{})
	require.NoError(t, m.ListCard(ctx, admin, 1, 1, opensAt))

	tests := []struct {
		name       string
		buyer      string
		deck       int
		generation int
		paid       int64
		wantErr    error
	}{
		{name: "deck out of range", buyer: alice, deck: 0, generation: 1, paid: oneCoin, wantErr: catalog.ErrInvalidCard},
		{name: "generation out of range", buyer: alice, deck: 1, generation: 61, paid: oneCoin, wantErr: catalog.ErrInvalidCard},
		{name: "no buyer", buyer: "", deck: 1, generation: 1, paid: oneCoin, wantErr: catalog.ErrInvalidAccount},
		{name: "negative payment", buyer: alice, deck: 1, generation: 1, paid: -1, wantErr: catalog.ErrInvalidAmount},
		{name: "not listed", buyer: alice, deck: 1, generation: 2, paid: oneCoin, wantErr: catalog.ErrCardNotListed},
		{name: "underpaid", buyer: alice, deck: 1, generation: 1, paid: 1, wantErr: catalog.ErrInsufficientFunds},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.Purchase(ctx, tt.buyer, tt.deck, tt.generation, tt.paid)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	slot, err := m.Slot(ctx, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, catalog.StateOpen, slot.State())
}

func TestMarket_PurchaseNeedsRarity(t *testing.T) {
	ctx := context.Background()
	m, err := catalog.NewMarket(catalog.NewRoleGuard([]string{admin}, nil, nil), &paying{})
	require.NoError(t, err)

	require.NoError(t, m.ListCard(ctx, admin, 1, 1, 1))
	_, err = m.Purchase(ctx, alice, 1, 1, oneCoin)
	assert.ErrorIs(t, err, catalog.ErrRarityNotSet)
}

func TestMarket_RefundFailureRollsBack(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	transferer := mock.NewMockTransferer(ctrl)
	listener := mock.NewMockSaleListener(ctrl)

	m, c := newMarket(t, transferer, catalog.WithListeners(listener))
	require.NoError(t, m.ListCard(ctx, admin, 1, 1, opensAt))
	c.Set(opensAt + 7200)

	transferer.EXPECT().
		Transfer(gomock.Any(), alice, oneCoin-873_618_044).
		Return(errors.New("wallet rejected payment"))
	listener.EXPECT().HandleSale(gomock.Any(), gomock.Any()).Times(0)

	_, err := m.Purchase(ctx, alice, 1, 1, oneCoin)
	assert.ErrorIs(t, err, catalog.ErrEthTransferFailed)
	assert.Equal(t, catalog.KindSettlement, catalog.KindOf(err))

	slot, err := m.Slot(ctx, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, catalog.StateOpen, slot.State())

	next, err := m.Slot(ctx, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, catalog.StateAbsent, next.State())

	_, err = m.ListingID(ctx, 1)
	assert.ErrorIs(t, err, catalog.ErrUnknownToken)

	balance, _ := m.Balance(ctx)
	assert.Zero(t, balance)

	// the next successful sale still gets the first token id
	transferer.EXPECT().Transfer(gomock.Any(), alice, gomock.Any()).Return(nil)
	listener.EXPECT().HandleSale(gomock.Any(), gomock.Any()).Return(nil)
	receipt, err := m.Purchase(ctx, alice, 1, 1, oneCoin)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), receipt.TokenID)
}

func TestMarket_RecorderReceivesChange(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	recorder := mock.NewMockRecorder(ctrl)

	var changes []catalog.Change
	recorder.EXPECT().
		Commit(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, change catalog.Change, settle func(context.Context) error) error {
			changes = append(changes, change)
			if settle != nil {
				return settle(ctx)
			}
			return nil
		}).
		AnyTimes()

	m, c := newMarket(t, &paying{}, catalog.WithRecorder(recorder))
	require.NoError(t, m.ListCard(ctx, admin, 9, 59, opensAt))
	c.Set(opensAt + 10)

	receipt, err := m.Purchase(ctx, alice, 9, 59, 2*oneCoin)
	require.NoError(t, err)

	require.Len(t, changes, 3)
	price := catalog.ListingPrice(tierFive, opensAt, opensAt+10, catalog.DefaultParams())
	next := catalog.Slot{
		SlotRef: catalog.SlotRef{Deck: 9, Generation: 60},
		Listing: catalog.Listing{StartTime: opensAt + 10 + catalog.DefaultChainWindow, ReservedBuyer: alice},
	}
	want := catalog.Change{
		Slots: []catalog.Slot{
			{SlotRef: catalog.SlotRef{Deck: 9, Generation: 59}, Listing: catalog.Listing{TokenID: 1, StartTime: opensAt}},
			next,
		},
		Sale: &catalog.Sale{
			TokenID:    1,
			Deck:       9,
			Generation: 59,
			Buyer:      alice,
			Price:      price,
			Paid:       2 * oneCoin,
			Refund:     2*oneCoin - price,
			Tier:       tierFive,
			Timestamp:  opensAt + 10,
			Next:       &next,
		},
	}
	if diff := cmp.Diff(want, changes[2]); diff != "" {
		t.Errorf("purchase change mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, price, receipt.Price)
}

func TestMarket_RecorderFailureLeavesStateUntouched(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	recorder := mock.NewMockRecorder(ctrl)

	m, err := catalog.NewMarket(catalog.NewRoleGuard([]string{admin}, nil, nil), &paying{}, catalog.WithRecorder(recorder))
	require.NoError(t, err)

	recorder.EXPECT().Commit(gomock.Any(), gomock.Any(), gomock.Any()).Return(errors.New("connection reset"))

	err = m.ListCard(ctx, admin, 1, 1, opensAt)
	assert.ErrorIs(t, err, catalog.ErrCommitFailed)

	slot, err := m.Slot(ctx, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, catalog.StateAbsent, slot.State())
}

func TestMarket_ListenersSeeSale(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	failing := mock.NewMockSaleListener(ctrl)
	counting := mock.NewMockSaleListener(ctrl)

	m, _ := newMarket(t, &paying{}, catalog.WithListeners(failing, counting))
	require.NoError(t, m.ListCard(ctx, admin, 5, 5, opensAt))

	failing.EXPECT().HandleSale(gomock.Any(), gomock.Any()).Return(errors.New("broker down"))
	counting.EXPECT().
		HandleSale(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, sale catalog.Sale) error {
			assert.Equal(t, uint64(1), sale.TokenID)
			assert.Equal(t, alice, sale.Buyer)
			// the lock is released before listeners run
			_, err := m.Slot(ctx, 5, 5)
			return err
		})

	_, err := m.Purchase(ctx, alice, 5, 5, oneCoin)
	require.NoError(t, err)
}

func TestMarket_ReentrantTransferIsRejected(t *testing.T) {
	ctx := context.Background()
	var reentry error
	var m *catalog.Market
	transferer := catalog.TransferFunc(func(ctx context.Context, to string, amount int64) error {
		reentry = m.ListCard(ctx, admin, 1, 3, opensAt)
		_, readErr := m.Balance(ctx)
		assert.ErrorIs(t, readErr, catalog.ErrReentrantCall)
		return nil
	})

	m, _ = newMarket(t, transferer)
	require.NoError(t, m.ListCard(ctx, admin, 1, 1, opensAt))

	_, err := m.Purchase(ctx, alice, 1, 1, oneCoin)
	require.NoError(t, err)
	assert.ErrorIs(t, reentry, catalog.ErrReentrantCall)

	slot, err := m.Slot(ctx, 1, 3)
	require.NoError(t, err)
	assert.Equal(t, catalog.StateAbsent, slot.State())
}

func TestMarket_ConcurrentPurchasesSellOnce(t *testing.T) {
	ctx := context.Background()
	m, _ := newMarket(t, &paying{})
	require.NoError(t, m.ListCard(ctx, admin, 8, 1, opensAt))

	var wins, ended atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := m.Purchase(ctx, alice, 8, 1, oneCoin)
			switch {
			case err == nil:
				wins.Add(1)
			case errors.Is(err, catalog.ErrCardSaleHasEnded):
				ended.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
	assert.Equal(t, int32(31), ended.Load())
}

func TestMarket_Cancel(t *testing.T) {
	ctx := context.Background()
	m, _ := newMarket(t, &paying{})

	err := m.CancelListing(ctx, admin, 1, 1)
	assert.ErrorIs(t, err, catalog.ErrListingDoesNotExist)

	require.NoError(t, m.ListCard(ctx, admin, 1, 1, opensAt))
	require.NoError(t, m.CancelListing(ctx, admin, 1, 1))

	_, err = m.Purchase(ctx, alice, 1, 1, oneCoin)
	assert.ErrorIs(t, err, catalog.ErrCardNotListed)

	require.NoError(t, m.ListCard(ctx, admin, 1, 1, opensAt))
	_, err = m.Purchase(ctx, alice, 1, 1, oneCoin)
	require.NoError(t, err)

	err = m.CancelListing(ctx, admin, 1, 1)
	assert.ErrorIs(t, err, catalog.ErrCardSaleHasEnded)
}

func TestMarket_PrivilegedOperationsNeedCapability(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	guard := mock.NewMockAccessGuard(ctrl)
	guard.EXPECT().Authorize(gomock.Any(), gomock.Any()).Return(false).AnyTimes()

	m, err := catalog.NewMarket(guard, &paying{})
	require.NoError(t, err)

	calls := map[string]func() error{
		"list card":       func() error { return m.ListCard(ctx, bob, 1, 1, opensAt) },
		"list generation": func() error { _, err := m.ListGeneration(ctx, bob, 1, opensAt); return err },
		"list many":       func() error { _, err := m.ListMany(ctx, bob, []int{1}, []int{1}, opensAt); return err },
		"cancel":          func() error { return m.CancelListing(ctx, bob, 1, 1) },
		"set rarity":      func() error { return m.SetRarity(ctx, bob, flatRarity(1)) },
		"set locator":     func() error { return m.SetBaseMetadataLocator(ctx, bob, "x") },
		"set duration":    func() error { return m.SetListingDuration(ctx, bob, 10) },
		"set window":      func() error { return m.SetChainPurchaseWindow(ctx, bob, 10) },
		"set discount":    func() error { return m.SetChainPurchaseDiscount(ctx, bob, 10) },
		"set pricing":     func() error { return m.SetPricing(ctx, bob, 1, 1) },
		"withdraw":        func() error { _, err := m.Withdraw(ctx, bob, bob); return err },
	}
	for name, call := range calls {
		t.Run(name, func(t *testing.T) {
			err := call()
			assert.ErrorIs(t, err, catalog.ErrUnauthorized)
			assert.Equal(t, catalog.KindAuthorization, catalog.KindOf(err))
		})
	}
}

func TestMarket_ListCardStrict(t *testing.T) {
	ctx := context.Background()
	m, _ := newMarket(t, &paying{})

	require.NoError(t, m.ListCard(ctx, admin, 1, 1, opensAt))
	assert.ErrorIs(t, m.ListCard(ctx, admin, 1, 1, opensAt+5), catalog.ErrListingAlreadyExists)
	assert.ErrorIs(t, m.ListCard(ctx, admin, 1, 1, 0), catalog.ErrInvalidStartTime)
	assert.ErrorIs(t, m.ListCard(ctx, admin, 51, 1, opensAt), catalog.ErrInvalidCard)
}

func TestMarket_ListGeneration(t *testing.T) {
	ctx := context.Background()
	m, _ := newMarket(t, &paying{})

	require.NoError(t, m.ListCard(ctx, admin, 10, 1, opensAt+99))

	opened, err := m.ListGeneration(ctx, admin, 1, opensAt)
	require.NoError(t, err)
	assert.Equal(t, catalog.MaxDecks-1, opened)

	kept, err := m.Slot(ctx, 10, 1)
	require.NoError(t, err)
	assert.Equal(t, opensAt+99, kept.StartTime)

	opened, err = m.ListGeneration(ctx, admin, 1, opensAt)
	require.NoError(t, err)
	assert.Zero(t, opened)

	_, err = m.ListGeneration(ctx, admin, 61, opensAt)
	assert.ErrorIs(t, err, catalog.ErrInvalidGeneration)
	_, err = m.ListGeneration(ctx, admin, 2, 0)
	assert.ErrorIs(t, err, catalog.ErrInvalidStartTime)
}

func TestMarket_ListMany(t *testing.T) {
	ctx := context.Background()
	m, _ := newMarket(t, &paying{})

	_, err := m.ListMany(ctx, admin, []int{1, 2, 51}, []int{1}, opensAt)
	assert.ErrorIs(t, err, catalog.ErrInvalidDeck)
	_, err = m.ListMany(ctx, admin, []int{1}, []int{1, 0}, opensAt)
	assert.ErrorIs(t, err, catalog.ErrInvalidGeneration)

	slot, _ := m.Slot(ctx, 1, 1)
	assert.Equal(t, catalog.StateAbsent, slot.State(), "invalid batch changes nothing")

	require.NoError(t, m.ListCard(ctx, admin, 2, 2, opensAt))
	opened, err := m.ListMany(ctx, admin, []int{1, 2, 2}, []int{1, 2}, opensAt)
	require.NoError(t, err)
	assert.Equal(t, 3, opened)

	for _, ref := range []catalog.SlotRef{
		{Deck: 1, Generation: 1},
		{Deck: 1, Generation: 2},
		{Deck: 2, Generation: 1},
		{Deck: 2, Generation: 2},
	} {
		slot, err := m.Slot(ctx, ref.Deck, ref.Generation)
		require.NoError(t, err)
		assert.Equal(t, catalog.StateOpen, slot.State(), "%+v", ref)
	}
}

func TestMarket_Withdraw(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	transferer := mock.NewMockTransferer(ctrl)
	m, _ := newMarket(t, transferer)

	_, err := m.Withdraw(ctx, admin, "treasury")
	assert.ErrorIs(t, err, catalog.ErrNoEtherBalance)

	price := catalog.StartPrice(tierFive, catalog.DefaultParams())
	require.NoError(t, m.ListCard(ctx, admin, 1, 1, opensAt))
	_, err = m.Purchase(ctx, alice, 1, 1, price)
	require.NoError(t, err)

	_, err = m.Withdraw(ctx, admin, "")
	assert.ErrorIs(t, err, catalog.ErrInvalidAccount)

	transferer.EXPECT().Transfer(gomock.Any(), "treasury", price).Return(errors.New("bounced"))
	_, err = m.Withdraw(ctx, admin, "treasury")
	assert.ErrorIs(t, err, catalog.ErrEthTransferFailed)

	balance, _ := m.Balance(ctx)
	assert.Equal(t, price, balance)

	transferer.EXPECT().Transfer(gomock.Any(), "treasury", price).Return(nil)
	amount, err := m.Withdraw(ctx, admin, "treasury")
	require.NoError(t, err)
	assert.Equal(t, price, amount)

	balance, _ = m.Balance(ctx)
	assert.Zero(t, balance)
}

func TestMarket_ConfigSetters(t *testing.T) {
	ctx := context.Background()
	m, _ := newMarket(t, &paying{})

	tests := []struct {
		name    string
		call    func() error
		wantErr error
	}{
		{name: "duration", call: func() error { return m.SetListingDuration(ctx, admin, 3600) }},
		{name: "zero duration", call: func() error { return m.SetListingDuration(ctx, admin, 0) }, wantErr: catalog.ErrInvalidDuration},
		{name: "window", call: func() error { return m.SetChainPurchaseWindow(ctx, admin, 60) }},
		{name: "negative window", call: func() error { return m.SetChainPurchaseWindow(ctx, admin, -1) }, wantErr: catalog.ErrInvalidWindow},
		{name: "discount", call: func() error { return m.SetChainPurchaseDiscount(ctx, admin, 25) }},
		{name: "discount over 100", call: func() error { return m.SetChainPurchaseDiscount(ctx, admin, 120) }, wantErr: catalog.ErrInvalidDiscount},
		{name: "pricing", call: func() error { return m.SetPricing(ctx, admin, 2*oneCoin, oneCoin) }},
		{name: "negative pricing", call: func() error { return m.SetPricing(ctx, admin, -1, oneCoin) }, wantErr: catalog.ErrInvalidPricing},
		{name: "rarity tier zero", call: func() error { return m.SetRarity(ctx, admin, flatRarity(0)) }, wantErr: catalog.ErrInvalidRarity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	params, err := m.Params(ctx)
	require.NoError(t, err)
	assert.Equal(t, catalog.Params{
		PriceCoefficient:      2 * oneCoin,
		PriceConstant:         oneCoin,
		ListingDuration:       3600,
		ChainPurchaseWindow:   60,
		ChainPurchaseDiscount: 25,
	}, params)

	tier, err := m.Rarity(ctx, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, tierFive, tier, "rejected rarity keeps the old table")
}

func TestMarket_ResolveMetadata(t *testing.T) {
	ctx := context.Background()
	m, _ := newMarket(t, &paying{})
	require.NoError(t, m.SetBaseMetadataLocator(ctx, admin, "ipfs://deck-art/"))

	require.NoError(t, m.ListCard(ctx, admin, 12, 34, opensAt))
	receipt, err := m.Purchase(ctx, alice, 12, 34, oneCoin)
	require.NoError(t, err)

	locator, err := m.ResolveMetadata(ctx, receipt.TokenID)
	require.NoError(t, err)
	assert.Equal(t, "ipfs://deck-art/12/34", locator)

	require.NoError(t, m.SetBaseMetadataLocator(ctx, admin, "https://cdn.example/meta/"))
	locator, err = m.ResolveMetadata(ctx, receipt.TokenID)
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example/meta/12/34", locator)

	_, err = m.ResolveMetadata(ctx, 99)
	assert.ErrorIs(t, err, catalog.ErrUnknownToken)
}

func TestMarket_Quotes(t *testing.T) {
	ctx := context.Background()
	m, c := newMarket(t, &paying{})

	require.NoError(t, m.ListCard(ctx, admin, 1, 1, opensAt))
	_, err := m.Purchase(ctx, alice, 1, 1, oneCoin)
	require.NoError(t, err)
	require.NoError(t, m.ListCard(ctx, admin, 3, 3, opensAt))

	c.Set(opensAt + 7200)
	quotes, err := m.Quotes(ctx)
	require.NoError(t, err)
	require.Len(t, quotes, 2)

	assert.Equal(t, catalog.SlotRef{Deck: 1, Generation: 2}, quotes[0].Slot.SlotRef)
	assert.False(t, quotes[0].Reserved, "chain window is over")
	assert.Equal(t, int64(873_618_044), quotes[1].Price)
	assert.Equal(t, int64(850_000_000), quotes[1].ChainPrice)

	_, err = m.Quote(ctx, 1, 1)
	assert.ErrorIs(t, err, catalog.ErrCardSaleHasEnded)
	_, err = m.Quote(ctx, 4, 4)
	assert.ErrorIs(t, err, catalog.ErrCardNotListed)
}

func TestMarket_Restore(t *testing.T) {
	ctx := context.Background()
	m, _ := newMarket(t, &paying{})

	params := catalog.DefaultParams()
	params.BaseMetadataLocator = "ar://"
	err := m.Restore(ctx, catalog.Snapshot{
		Params: &params,
		Rarity: flatRarity(3),
		Slots: []catalog.Slot{
			{SlotRef: catalog.SlotRef{Deck: 1, Generation: 1}, Listing: catalog.Listing{TokenID: 41, StartTime: 5}},
			{SlotRef: catalog.SlotRef{Deck: 1, Generation: 2}, Listing: catalog.Listing{StartTime: 6, ReservedBuyer: alice}},
		},
		Balance: 1234,
	})
	require.NoError(t, err)

	locator, err := m.ResolveMetadata(ctx, 41)
	require.NoError(t, err)
	assert.Equal(t, "ar://1/1", locator)

	balance, _ := m.Balance(ctx)
	assert.Equal(t, int64(1234), balance)

	receipt, err := m.Purchase(ctx, alice, 1, 2, oneCoin)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), receipt.TokenID)
}

func TestMarket_ChainWindowIsBounded(t *testing.T) {
	ctx := context.Background()
	m, _ := newMarket(t, &paying{})

	assert.ErrorIs(t, m.SetChainPurchaseWindow(ctx, admin, math.MaxInt64), catalog.ErrInvalidWindow)
	assert.ErrorIs(t, m.SetChainPurchaseWindow(ctx, admin, catalog.MaxChainWindow+1), catalog.ErrInvalidWindow)
	assert.NoError(t, m.SetChainPurchaseWindow(ctx, admin, catalog.MaxChainWindow))
}

func TestMarket_NextStartOverflowRejectsPurchase(t *testing.T) {
	ctx := context.Background()
	pay := &paying{}
	m, c := newMarket(t, pay)

	require.NoError(t, m.SetChainPurchaseWindow(ctx, admin, catalog.MaxChainWindow))
	require.NoError(t, m.ListCard(ctx, admin, 1, 1, opensAt))
	c.Set(math.MaxInt64 - 10)

	_, err := m.Purchase(ctx, alice, 1, 1, oneCoin)
	assert.ErrorIs(t, err, catalog.ErrInvalidStartTime)

	next, err := m.Slot(ctx, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, catalog.StateAbsent, next.State())
	tokenID, _ := m.TokenID(ctx, 1, 1)
	assert.Zero(t, tokenID)
	assert.Zero(t, pay.calls)
}

func TestMarket_UnlistableNextLeavesNothingBehind(t *testing.T) {
	ctx := context.Background()
	pay := &paying{}
	var sales []catalog.Sale
	m, c := newMarket(t, pay, catalog.WithListeners(catalog.SaleListenerFunc(func(_ context.Context, sale catalog.Sale) error {
		sales = append(sales, sale)
		return nil
	})))

	require.NoError(t, m.SetChainPurchaseWindow(ctx, admin, 0))
	require.NoError(t, m.ListCard(ctx, admin, 1, 1, -5))
	require.NoError(t, m.ListCard(ctx, admin, 2, 1, -5))
	c.Set(0)

	// the next generation would open at zero, which no listing may use
	_, err := m.Purchase(ctx, alice, 1, 1, oneCoin)
	require.ErrorIs(t, err, catalog.ErrInvalidStartTime)

	slot, err := m.Slot(ctx, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, catalog.Listing{StartTime: -5}, slot.Listing)
	balance, _ := m.Balance(ctx)
	assert.Zero(t, balance)
	assert.Zero(t, pay.calls)
	assert.Empty(t, sales)

	require.NoError(t, m.SetChainPurchaseWindow(ctx, admin, 60))
	receipt, err := m.Purchase(ctx, bob, 2, 1, oneCoin)
	require.NoError(t, err, "a failed purchase must not burn the next token id")
	assert.Equal(t, uint64(1), receipt.TokenID)

	receipt, err = m.Purchase(ctx, alice, 1, 1, oneCoin)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), receipt.TokenID)
	assert.Equal(t, int64(60), receipt.NextStartTime)

	require.Len(t, sales, 2)
	assert.Equal(t, bob, sales[0].Buyer)
	assert.Equal(t, alice, sales[1].Buyer)
}

func TestMarket_ReservationCheckedBeforeRarity(t *testing.T) {
	ctx := context.Background()
	guard := catalog.GuardFunc(func(caller string, _ catalog.Capability) bool { return caller == admin })
	m, err := catalog.NewMarket(guard, &paying{}, catalog.WithClock(func() time.Time { return time.Unix(opensAt, 0) }))
	require.NoError(t, err)

	require.NoError(t, m.Restore(ctx, catalog.Snapshot{
		Slots: []catalog.Slot{
			{SlotRef: catalog.SlotRef{Deck: 1, Generation: 1}, Listing: catalog.Listing{TokenID: 1, StartTime: 5}},
			{SlotRef: catalog.SlotRef{Deck: 1, Generation: 2}, Listing: catalog.Listing{StartTime: opensAt + 60, ReservedBuyer: alice}},
		},
	}))

	_, err = m.Purchase(ctx, bob, 1, 2, oneCoin)
	assert.ErrorIs(t, err, catalog.ErrUnauthorized)
	_, err = m.Purchase(ctx, alice, 1, 2, oneCoin)
	assert.ErrorIs(t, err, catalog.ErrRarityNotSet)

	assert.NoError(t, m.Authorize(admin, catalog.CapabilityWithdraw))
	assert.ErrorIs(t, m.Authorize(bob, catalog.CapabilityList), catalog.ErrUnauthorized)
}
