package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/deckforge/chainsale/internal/domain/logger"
	lru "github.com/hashicorp/golang-lru"
)

// Receipt is the outcome of a successful purchase.
type Receipt struct {
	TokenID uint64 `json:"token_id"`
	Price   int64  `json:"price"`
	Refund  int64  `json:"refund"`
	Chain   bool   `json:"chain"`
	// NextStartTime is when the next generation opens to the public, or
	// NoNextListing when the deck has no open follow-up slot.
	NextStartTime int64 `json:"next_start_time"`
}

func (r Receipt) HasNext() bool {
	return r.NextStartTime != NoNextListing
}

// Quote is the current price of an open slot.
type Quote struct {
	Slot Slot `json:"slot"`
	Tier Tier `json:"tier"`
	// Price is what the public pays now. Before StartTime it is the start price.
	Price int64 `json:"price"`
	// ChainPrice is what the reserved buyer pays while Reserved is true.
	ChainPrice int64 `json:"chain_price"`
	Reserved   bool  `json:"reserved"`
}

type Option func(*Market)

func WithRecorder(recorder Recorder) Option {
	return func(m *Market) {
		m.recorder = recorder
	}
}

func WithListeners(listeners ...SaleListener) Option {
	return func(m *Market) {
		m.listeners = append(m.listeners, listeners...)
	}
}

func WithClock(now func() time.Time) Option {
	return func(m *Market) {
		m.now = now
	}
}

func WithParams(params Params) Option {
	return func(m *Market) {
		m.params = params
	}
}

// Market is the purchase coordinator. It owns the rarity table, the listing
// store and the configuration, and runs every operation under one lock so no
// caller ever observes a half applied change.
type Market struct {
	mu sync.RWMutex

	guard      AccessGuard
	transferer Transferer
	recorder   Recorder
	listeners  []SaleListener
	now        func() time.Time

	rarity    *RarityTable
	store     *Store
	params    Params
	lastToken uint64
	balance   int64

	metadata *lru.Cache
}

func NewMarket(guard AccessGuard, transferer Transferer, opts ...Option) (*Market, error) {
	if guard == nil {
		return nil, errors.New("access guard is required")
	}
	if transferer == nil {
		return nil, errors.New("transferer is required")
	}

	cache, err := lru.New(metadataCacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create metadata cache: %w", err)
	}

	m := &Market{
		guard:      guard,
		transferer: transferer,
		recorder:   NopRecorder{},
		now:        time.Now,
		rarity:     NewRarityTable(),
		store:      NewStore(),
		params:     DefaultParams(),
		metadata:   cache,
	}
	for _, opt := range opts {
		opt(m)
	}

	if err := m.params.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// Restore loads persisted state. It is meant to run once before serving.
func (m *Market) Restore(ctx context.Context, snapshot Snapshot) error {
	if err := m.lock(ctx); err != nil {
		return err
	}
	defer m.mu.Unlock()

	params := m.params
	if snapshot.Params != nil {
		params = *snapshot.Params
		if err := params.Validate(); err != nil {
			return err
		}
	}

	rarity := NewRarityTable()
	if err := rarity.Replace(snapshot.Rarity); err != nil {
		return err
	}

	store := NewStore()
	if err := store.Restore(snapshot.Slots); err != nil {
		return err
	}

	m.params = params
	m.rarity = rarity
	m.store = store
	m.lastToken = store.MaxTokenID()
	m.balance = snapshot.Balance
	m.metadata.Purge()
	return nil
}

// ListCard opens a single slot for the public at startTime. The slot must be
// Absent.
func (m *Market) ListCard(ctx context.Context, caller string, deck, generation int, startTime int64) (err error) {
	oplog := logger.NewOperationLogger("list_card",
		slog.String("caller", caller), slog.Int("deck", deck), slog.Int("generation", generation))
	defer func() { oplog.Log(err, rejected(err)) }()

	if err = m.lock(ctx); err != nil {
		return err
	}
	defer m.mu.Unlock()

	if err = m.authorize(caller, CapabilityList); err != nil {
		return err
	}
	if err = m.store.checkList(deck, generation, startTime, PolicyStrict); err != nil {
		return err
	}

	slot := Slot{
		SlotRef: SlotRef{Deck: deck, Generation: generation},
		Listing: Listing{StartTime: startTime},
	}
	if err = m.commit(ctx, Change{Slots: []Slot{slot}}, nil); err != nil {
		return err
	}
	_, err = m.store.List(deck, generation, startTime, "", PolicyStrict)
	return err
}

// ListGeneration opens generation in every deck. Slots that are already open
// or closed are skipped. It returns the number of slots opened.
func (m *Market) ListGeneration(ctx context.Context, caller string, generation int, startTime int64) (opened int, err error) {
	oplog := logger.NewOperationLogger("list_generation",
		slog.String("caller", caller), slog.Int("generation", generation))
	defer func() { oplog.Log(err, rejected(err), slog.Int("opened", opened)) }()

	decks := make([]int, MaxDecks)
	for i := range decks {
		decks[i] = i + 1
	}
	return m.listBatch(ctx, caller, decks, []int{generation}, startTime)
}

// ListMany opens every (deck, generation) pair of the cross product. Any
// invalid argument aborts the whole batch before anything changes.
func (m *Market) ListMany(ctx context.Context, caller string, decks, generations []int, startTime int64) (opened int, err error) {
	oplog := logger.NewOperationLogger("list_many",
		slog.String("caller", caller), slog.Any("decks", decks), slog.Any("generations", generations))
	defer func() { oplog.Log(err, rejected(err), slog.Int("opened", opened)) }()

	return m.listBatch(ctx, caller, decks, generations, startTime)
}

func (m *Market) listBatch(ctx context.Context, caller string, decks, generations []int, startTime int64) (int, error) {
	if err := m.lock(ctx); err != nil {
		return 0, err
	}
	defer m.mu.Unlock()

	if err := m.authorize(caller, CapabilityList); err != nil {
		return 0, err
	}
	for _, deck := range decks {
		if !validDeck(deck) {
			return 0, slotError("list batch", deck, 0, ErrInvalidDeck)
		}
	}
	for _, generation := range generations {
		if !validGeneration(generation) {
			return 0, slotError("list batch", 0, generation, ErrInvalidGeneration)
		}
	}
	if startTime == 0 {
		return 0, fmt.Errorf("list batch: %w", ErrInvalidStartTime)
	}

	seen := make(map[SlotRef]struct{})
	var slots []Slot
	for _, deck := range decks {
		for _, generation := range generations {
			ref := SlotRef{Deck: deck, Generation: generation}
			if _, ok := seen[ref]; ok {
				continue
			}
			seen[ref] = struct{}{}
			if m.store.slots[slotIndex(deck, generation)].State() != StateAbsent {
				continue
			}
			slots = append(slots, Slot{SlotRef: ref, Listing: Listing{StartTime: startTime}})
		}
	}
	if len(slots) == 0 {
		return 0, nil
	}

	if err := m.commit(ctx, Change{Slots: slots}, nil); err != nil {
		return 0, err
	}
	for _, s := range slots {
		if _, err := m.store.List(s.Deck, s.Generation, startTime, "", PolicyIdempotent); err != nil {
			return 0, err
		}
	}
	return len(slots), nil
}

// CancelListing withdraws an open, unsold slot back to Absent.
func (m *Market) CancelListing(ctx context.Context, caller string, deck, generation int) (err error) {
	oplog := logger.NewOperationLogger("cancel_listing",
		slog.String("caller", caller), slog.Int("deck", deck), slog.Int("generation", generation))
	defer func() { oplog.Log(err, rejected(err)) }()

	if err = m.lock(ctx); err != nil {
		return err
	}
	defer m.mu.Unlock()

	if err = m.authorize(caller, CapabilityCancel); err != nil {
		return err
	}
	if err = m.store.checkCancel(deck, generation); err != nil {
		return err
	}

	slot := Slot{SlotRef: SlotRef{Deck: deck, Generation: generation}}
	if err = m.commit(ctx, Change{Slots: []Slot{slot}}, nil); err != nil {
		return err
	}
	return m.store.Cancel(deck, generation)
}

// Purchase buys (deck, generation) for buyer, who attached paid units. The
// slot closes, a token is issued, any overpayment is refunded and the next
// generation opens reserved for buyer. A failed refund rolls everything back.
func (m *Market) Purchase(ctx context.Context, buyer string, deck, generation int, paid int64) (receipt Receipt, err error) {
	oplog := logger.NewOperationLogger("purchase",
		slog.String("buyer", buyer), slog.Int("deck", deck), slog.Int("generation", generation), slog.Int64("paid", paid))
	defer func() {
		oplog.Log(err, rejected(err), slog.Uint64("token_id", receipt.TokenID), slog.Int64("price", receipt.Price))
	}()

	if err = m.lock(ctx); err != nil {
		return Receipt{}, err
	}
	sale, err := m.purchase(ctx, buyer, deck, generation, paid)
	m.mu.Unlock()
	if err != nil {
		return Receipt{}, err
	}

	m.notify(ctx, sale)

	receipt = Receipt{
		TokenID: sale.TokenID,
		Price:   sale.Price,
		Refund:  sale.Refund,
		Chain:   sale.Chain,
	}
	if sale.Next != nil {
		receipt.NextStartTime = sale.Next.StartTime
	}
	return receipt, nil
}

// purchase runs with the write lock held.
func (m *Market) purchase(ctx context.Context, buyer string, deck, generation int, paid int64) (Sale, error) {
	if !validSlot(deck, generation) {
		return Sale{}, slotError("purchase", deck, generation, ErrInvalidCard)
	}
	if buyer == "" {
		return Sale{}, slotError("purchase", deck, generation, ErrInvalidAccount)
	}
	if paid < 0 {
		return Sale{}, slotError("purchase", deck, generation, ErrInvalidAmount)
	}

	listing := m.store.slots[slotIndex(deck, generation)]
	switch listing.State() {
	case StateAbsent:
		return Sale{}, slotError("purchase", deck, generation, ErrCardNotListed)
	case StateClosed:
		return Sale{}, slotError("purchase", deck, generation, ErrCardSaleHasEnded)
	}

	now := m.now().Unix()
	chain := now < listing.StartTime
	if chain && (listing.ReservedBuyer == "" || buyer != listing.ReservedBuyer) {
		return Sale{}, slotError("purchase", deck, generation, ErrUnauthorized)
	}

	tier, err := m.rarity.Lookup(deck, generation)
	if err != nil {
		return Sale{}, err
	}

	var price int64
	if chain {
		price = ChainPrice(tier, m.params)
	} else {
		price = ListingPrice(tier, listing.StartTime, now, m.params)
	}

	if paid < price {
		return Sale{}, slotError("purchase", deck, generation,
			fmt.Errorf("%w: paid %d, price %d", ErrInsufficientFunds, paid, price))
	}

	sale := Sale{
		TokenID:    m.lastToken + 1,
		Deck:       deck,
		Generation: generation,
		Buyer:      buyer,
		Price:      price,
		Paid:       paid,
		Refund:     paid - price,
		Chain:      chain,
		Tier:       tier,
		Timestamp:  now,
	}

	closed := listing
	closed.TokenID = sale.TokenID
	change := Change{
		Slots: []Slot{{SlotRef: SlotRef{Deck: deck, Generation: generation}, Listing: closed}},
		Sale:  &sale,
	}

	var opened bool
	if generation < MaxGenerations {
		next := m.store.slots[slotIndex(deck, generation+1)]
		switch next.State() {
		case StateAbsent:
			startTime := now + m.params.ChainPurchaseWindow
			if startTime < now || startTime == 0 {
				return Sale{}, slotError("purchase", deck, generation+1,
					fmt.Errorf("%w: %d plus window %d", ErrInvalidStartTime, now, m.params.ChainPurchaseWindow))
			}
			slot := Slot{
				SlotRef: SlotRef{Deck: deck, Generation: generation + 1},
				Listing: Listing{StartTime: startTime, ReservedBuyer: buyer},
			}
			sale.Next = &slot
			change.Slots = append(change.Slots, slot)
			opened = true
		case StateOpen:
			slot := Slot{SlotRef: SlotRef{Deck: deck, Generation: generation + 1}, Listing: next}
			sale.Next = &slot
		}
	}

	// Nothing below the commit may fail, so the store changes are checked first.
	if err := m.store.checkClose(deck, generation, sale.TokenID); err != nil {
		return Sale{}, err
	}

	settle := func(ctx context.Context) error {
		if sale.Refund == 0 {
			return nil
		}
		return m.transfer(ctx, buyer, sale.Refund)
	}
	if err := m.commit(ctx, change, settle); err != nil {
		return Sale{}, slotError("purchase", deck, generation, err)
	}

	if err := m.store.Close(deck, generation, sale.TokenID); err != nil {
		return Sale{}, err
	}
	if opened {
		if _, err := m.store.List(deck, generation+1, sale.Next.StartTime, buyer, PolicyIdempotent); err != nil {
			return Sale{}, err
		}
	}
	m.lastToken = sale.TokenID
	m.balance += price
	return sale, nil
}

// Withdraw sends the whole accumulated balance to destination.
func (m *Market) Withdraw(ctx context.Context, caller, destination string) (amount int64, err error) {
	oplog := logger.NewOperationLogger("withdraw",
		slog.String("caller", caller), slog.String("destination", destination))
	defer func() { oplog.Log(err, rejected(err), slog.Int64("amount", amount)) }()

	if err = m.lock(ctx); err != nil {
		return 0, err
	}
	defer m.mu.Unlock()

	if err = m.authorize(caller, CapabilityWithdraw); err != nil {
		return 0, err
	}
	if destination == "" {
		return 0, fmt.Errorf("withdraw: %w", ErrInvalidAccount)
	}
	if m.balance == 0 {
		return 0, fmt.Errorf("withdraw: %w", ErrNoEtherBalance)
	}

	amount = m.balance
	change := Change{Withdrawal: &Withdrawal{
		Caller:      caller,
		Destination: destination,
		Amount:      amount,
		Timestamp:   m.now().Unix(),
	}}
	settle := func(ctx context.Context) error {
		return m.transfer(ctx, destination, amount)
	}
	if err = m.commit(ctx, change, settle); err != nil {
		return 0, fmt.Errorf("withdraw: %w", err)
	}
	m.balance = 0
	return amount, nil
}

// SetRarity replaces the rarity table.
func (m *Market) SetRarity(ctx context.Context, caller string, values []Tier) (err error) {
	oplog := logger.NewOperationLogger("set_rarity", slog.String("caller", caller), slog.Int("values", len(values)))
	defer func() { oplog.Log(err, rejected(err)) }()

	if err = m.lock(ctx); err != nil {
		return err
	}
	defer m.mu.Unlock()

	if err = m.authorize(caller, CapabilityConfigure); err != nil {
		return err
	}
	table := NewRarityTable()
	if err = table.Replace(values); err != nil {
		return err
	}
	if err = m.commit(ctx, Change{Rarity: table.Values()}, nil); err != nil {
		return err
	}
	m.rarity = table
	return nil
}

func (m *Market) SetBaseMetadataLocator(ctx context.Context, caller, locator string) error {
	return m.updateParams(ctx, caller, "set_base_metadata_locator", func(p *Params) {
		p.BaseMetadataLocator = locator
	})
}

func (m *Market) SetListingDuration(ctx context.Context, caller string, seconds int64) error {
	return m.updateParams(ctx, caller, "set_listing_duration", func(p *Params) {
		p.ListingDuration = seconds
	})
}

func (m *Market) SetChainPurchaseWindow(ctx context.Context, caller string, seconds int64) error {
	return m.updateParams(ctx, caller, "set_chain_purchase_window", func(p *Params) {
		p.ChainPurchaseWindow = seconds
	})
}

func (m *Market) SetChainPurchaseDiscount(ctx context.Context, caller string, percent int64) error {
	return m.updateParams(ctx, caller, "set_chain_purchase_discount", func(p *Params) {
		p.ChainPurchaseDiscount = percent
	})
}

// SetPricing changes the start price curve of every future quote, including
// slots that are already open.
func (m *Market) SetPricing(ctx context.Context, caller string, coefficient, constant int64) error {
	return m.updateParams(ctx, caller, "set_pricing", func(p *Params) {
		p.PriceCoefficient = coefficient
		p.PriceConstant = constant
	})
}

func (m *Market) updateParams(ctx context.Context, caller, op string, mutate func(*Params)) (err error) {
	oplog := logger.NewOperationLogger(op, slog.String("caller", caller))
	defer func() { oplog.Log(err, rejected(err)) }()

	if err = m.lock(ctx); err != nil {
		return err
	}
	defer m.mu.Unlock()

	if err = m.authorize(caller, CapabilityConfigure); err != nil {
		return err
	}

	next := m.params
	mutate(&next)
	if err = next.Validate(); err != nil {
		return err
	}
	if err = m.commit(ctx, Change{Params: &next}, nil); err != nil {
		return err
	}

	if next.BaseMetadataLocator != m.params.BaseMetadataLocator {
		m.metadata.Purge()
	}
	m.params = next
	return nil
}

func (m *Market) Rarity(ctx context.Context, deck, generation int) (Tier, error) {
	if err := m.rlock(ctx); err != nil {
		return 0, err
	}
	defer m.mu.RUnlock()

	return m.rarity.Lookup(deck, generation)
}

// TokenID returns the token issued for a slot, or 0 while it is unsold.
func (m *Market) TokenID(ctx context.Context, deck, generation int) (uint64, error) {
	if err := m.rlock(ctx); err != nil {
		return 0, err
	}
	defer m.mu.RUnlock()

	l, err := m.store.Slot(deck, generation)
	if err != nil {
		return 0, err
	}
	return l.TokenID, nil
}

// ListingID returns the slot that produced tokenID.
func (m *Market) ListingID(ctx context.Context, tokenID uint64) (SlotRef, error) {
	if err := m.rlock(ctx); err != nil {
		return SlotRef{}, err
	}
	defer m.mu.RUnlock()

	return m.store.SlotByToken(tokenID)
}

func (m *Market) Slot(ctx context.Context, deck, generation int) (Slot, error) {
	if err := m.rlock(ctx); err != nil {
		return Slot{}, err
	}
	defer m.mu.RUnlock()

	l, err := m.store.Slot(deck, generation)
	if err != nil {
		return Slot{}, err
	}
	return Slot{SlotRef: SlotRef{Deck: deck, Generation: generation}, Listing: l}, nil
}

// Quote prices an open slot at the current time.
func (m *Market) Quote(ctx context.Context, deck, generation int) (Quote, error) {
	if err := m.rlock(ctx); err != nil {
		return Quote{}, err
	}
	defer m.mu.RUnlock()

	if !validSlot(deck, generation) {
		return Quote{}, slotError("quote", deck, generation, ErrInvalidCard)
	}
	l := m.store.slots[slotIndex(deck, generation)]
	switch l.State() {
	case StateAbsent:
		return Quote{}, slotError("quote", deck, generation, ErrCardNotListed)
	case StateClosed:
		return Quote{}, slotError("quote", deck, generation, ErrCardSaleHasEnded)
	}
	return m.quote(Slot{SlotRef: SlotRef{Deck: deck, Generation: generation}, Listing: l}, m.now().Unix())
}

// Quotes prices every open slot at the current time.
func (m *Market) Quotes(ctx context.Context) ([]Quote, error) {
	if err := m.rlock(ctx); err != nil {
		return nil, err
	}
	defer m.mu.RUnlock()

	now := m.now().Unix()
	open := m.store.Slots(StateOpen)
	quotes := make([]Quote, 0, len(open))
	for _, s := range open {
		q, err := m.quote(s, now)
		if err != nil {
			return nil, err
		}
		quotes = append(quotes, q)
	}
	return quotes, nil
}

func (m *Market) quote(s Slot, now int64) (Quote, error) {
	tier, err := m.rarity.Lookup(s.Deck, s.Generation)
	if err != nil {
		return Quote{}, err
	}
	return Quote{
		Slot:       s,
		Tier:       tier,
		Price:      ListingPrice(tier, s.StartTime, now, m.params),
		ChainPrice: ChainPrice(tier, m.params),
		Reserved:   now < s.StartTime && s.ReservedBuyer != "",
	}, nil
}

func (m *Market) Params(ctx context.Context) (Params, error) {
	if err := m.rlock(ctx); err != nil {
		return Params{}, err
	}
	defer m.mu.RUnlock()

	return m.params, nil
}

// Balance is the amount Withdraw would currently send.
func (m *Market) Balance(ctx context.Context) (int64, error) {
	if err := m.rlock(ctx); err != nil {
		return 0, err
	}
	defer m.mu.RUnlock()

	return m.balance, nil
}

// ResolveMetadata returns the metadata locator of an issued token:
// the base locator followed by "{deck}/{generation}".
func (m *Market) ResolveMetadata(ctx context.Context, tokenID uint64) (string, error) {
	if err := m.rlock(ctx); err != nil {
		return "", err
	}
	defer m.mu.RUnlock()

	if v, ok := m.metadata.Get(tokenID); ok {
		return v.(string), nil
	}

	ref, err := m.store.SlotByToken(tokenID)
	if err != nil {
		return "", err
	}
	if !validSlot(ref.Deck, ref.Generation) {
		return "", &TokenError{Op: "resolve metadata", TokenID: tokenID, Err: ErrInvalidCard}
	}

	locator := m.params.BaseMetadataLocator + strconv.Itoa(ref.Deck) + "/" + strconv.Itoa(ref.Generation)
	m.metadata.Add(tokenID, locator)
	return locator, nil
}

func (m *Market) lock(ctx context.Context) error {
	if IsSettling(ctx) {
		return ErrReentrantCall
	}
	m.mu.Lock()
	return nil
}

func (m *Market) rlock(ctx context.Context) error {
	if IsSettling(ctx) {
		return ErrReentrantCall
	}
	m.mu.RLock()
	return nil
}

// Authorize reports ErrUnauthorized unless caller holds capability. It reads
// no market state and takes no lock.
func (m *Market) Authorize(caller string, capability Capability) error {
	return m.authorize(caller, capability)
}

func (m *Market) authorize(caller string, capability Capability) error {
	if !m.guard.Authorize(caller, capability) {
		return fmt.Errorf("%s by %q: %w", capability, caller, ErrUnauthorized)
	}
	return nil
}

// transfer runs inside a settlement; the context it hands out is marked so
// that a transferer calling back into the market fails fast.
func (m *Market) transfer(ctx context.Context, to string, amount int64) error {
	if err := m.transferer.Transfer(withSettling(ctx), to, amount); err != nil {
		return fmt.Errorf("%w: %w", ErrEthTransferFailed, err)
	}
	return nil
}

func (m *Market) commit(ctx context.Context, change Change, settle func(context.Context) error) error {
	if err := m.recorder.Commit(ctx, change, settle); err != nil {
		if errors.Is(err, ErrEthTransferFailed) {
			return err
		}
		return fmt.Errorf("%w: %w", ErrCommitFailed, err)
	}
	return nil
}

func (m *Market) notify(ctx context.Context, sale Sale) {
	for _, l := range m.listeners {
		if err := l.HandleSale(ctx, sale); err != nil {
			slog.Error("Sale listener failed",
				slog.String("type", "market"),
				slog.Uint64("token_id", sale.TokenID),
				slog.Any("error", err))
		}
	}
}

// rejected reports whether err is a refusal the caller can act on, as opposed
// to a failure of the market or one of its collaborators.
func rejected(err error) bool {
	if err == nil {
		return false
	}
	switch KindOf(err) {
	case KindValidation, KindLifecycle, KindAuthorization:
		return true
	}
	return errors.Is(err, ErrInsufficientFunds) || errors.Is(err, ErrNoEtherBalance) || errors.Is(err, ErrReentrantCall)
}
