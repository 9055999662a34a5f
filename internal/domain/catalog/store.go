package catalog

// State is the lifecycle position of a slot.
type State uint8

const (
	StateAbsent State = iota
	StateOpen
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	default:
		return "absent"
	}
}

// Listing is the record kept for one slot. Zero values mean unset: token ids
// start at 1, a zero StartTime is never valid and an empty ReservedBuyer means
// nobody holds the chain purchase right.
type Listing struct {
	TokenID       uint64 `json:"token_id,omitempty"`
	StartTime     int64  `json:"start_time,omitempty"`
	ReservedBuyer string `json:"reserved_buyer,omitempty"`
}

func (l Listing) State() State {
	switch {
	case l.TokenID != 0:
		return StateClosed
	case l.StartTime != 0:
		return StateOpen
	default:
		return StateAbsent
	}
}

type SlotRef struct {
	Deck       int `json:"deck"`
	Generation int `json:"generation"`
}

// Slot is a listing together with its position.
type Slot struct {
	SlotRef
	Listing
}

// Policy selects how List treats a slot that is not Absent.
type Policy uint8

const (
	// PolicyStrict fails with ErrListingAlreadyExists.
	PolicyStrict Policy = iota
	// PolicyIdempotent leaves the slot untouched and reports no error.
	PolicyIdempotent
)

// Store is the dense deck x generation table of listings plus the reverse
// token index. It is not safe for concurrent use; Market serializes access.
type Store struct {
	slots  [RaritySize]Listing
	tokens map[uint64]SlotRef
}

func NewStore() *Store {
	return &Store{tokens: make(map[uint64]SlotRef)}
}

// List opens a slot. It reports whether the slot changed.
func (s *Store) List(deck, generation int, startTime int64, reservedBuyer string, policy Policy) (bool, error) {
	if err := s.checkList(deck, generation, startTime, policy); err != nil {
		return false, err
	}
	idx := slotIndex(deck, generation)
	if s.slots[idx].State() != StateAbsent {
		return false, nil
	}
	s.slots[idx] = Listing{StartTime: startTime, ReservedBuyer: reservedBuyer}
	return true, nil
}

// checkList runs the List validation without mutating anything.
func (s *Store) checkList(deck, generation int, startTime int64, policy Policy) error {
	if !validSlot(deck, generation) {
		return slotError("list", deck, generation, ErrInvalidCard)
	}
	if startTime == 0 {
		return slotError("list", deck, generation, ErrInvalidStartTime)
	}
	if policy == PolicyStrict && s.slots[slotIndex(deck, generation)].State() != StateAbsent {
		return slotError("list", deck, generation, ErrListingAlreadyExists)
	}
	return nil
}

func (s *Store) Cancel(deck, generation int) error {
	if err := s.checkCancel(deck, generation); err != nil {
		return err
	}
	s.slots[slotIndex(deck, generation)] = Listing{}
	return nil
}

func (s *Store) checkCancel(deck, generation int) error {
	if !validSlot(deck, generation) {
		return slotError("cancel", deck, generation, ErrInvalidCard)
	}
	switch s.slots[slotIndex(deck, generation)].State() {
	case StateAbsent:
		return slotError("cancel", deck, generation, ErrListingDoesNotExist)
	case StateClosed:
		return slotError("cancel", deck, generation, ErrCardSaleHasEnded)
	}
	return nil
}

// Close records the token issued for an open slot and indexes it.
func (s *Store) Close(deck, generation int, tokenID uint64) error {
	if err := s.checkClose(deck, generation, tokenID); err != nil {
		return err
	}
	s.slots[slotIndex(deck, generation)].TokenID = tokenID
	s.tokens[tokenID] = SlotRef{Deck: deck, Generation: generation}
	return nil
}

func (s *Store) checkClose(deck, generation int, tokenID uint64) error {
	if !validSlot(deck, generation) {
		return slotError("close", deck, generation, ErrInvalidCard)
	}
	if tokenID == 0 {
		return slotError("close", deck, generation, ErrInvalidToken)
	}
	if _, ok := s.tokens[tokenID]; ok {
		return slotError("close", deck, generation, ErrTokenAlreadyIssued)
	}

	switch s.slots[slotIndex(deck, generation)].State() {
	case StateAbsent:
		return slotError("close", deck, generation, ErrCardNotListed)
	case StateClosed:
		return slotError("close", deck, generation, ErrCardSaleHasEnded)
	}
	return nil
}

func (s *Store) Slot(deck, generation int) (Listing, error) {
	if !validSlot(deck, generation) {
		return Listing{}, slotError("slot", deck, generation, ErrInvalidCard)
	}
	return s.slots[slotIndex(deck, generation)], nil
}

func (s *Store) SlotByToken(tokenID uint64) (SlotRef, error) {
	ref, ok := s.tokens[tokenID]
	if !ok {
		return SlotRef{}, &TokenError{Op: "slot by token", TokenID: tokenID, Err: ErrUnknownToken}
	}
	return ref, nil
}

// Slots returns every slot in the given states, ordered by deck then generation.
func (s *Store) Slots(states ...State) []Slot {
	var out []Slot
	for i, l := range s.slots {
		st := l.State()
		if len(states) > 0 && !containsState(states, st) {
			continue
		}
		deck, generation := slotOf(i)
		out = append(out, Slot{SlotRef: SlotRef{Deck: deck, Generation: generation}, Listing: l})
	}
	return out
}

// Restore replaces the store content with slots, rebuilding the token index.
func (s *Store) Restore(slots []Slot) error {
	fresh := NewStore()
	for _, sl := range slots {
		if !validSlot(sl.Deck, sl.Generation) {
			return slotError("restore", sl.Deck, sl.Generation, ErrInvalidCard)
		}
		if sl.TokenID != 0 {
			if _, ok := fresh.tokens[sl.TokenID]; ok {
				return slotError("restore", sl.Deck, sl.Generation, ErrTokenAlreadyIssued)
			}
			fresh.tokens[sl.TokenID] = sl.SlotRef
		}
		fresh.slots[slotIndex(sl.Deck, sl.Generation)] = sl.Listing
	}
	*s = *fresh
	return nil
}

// MaxTokenID returns the highest issued token id, or 0.
func (s *Store) MaxTokenID() uint64 {
	var highest uint64
	for id := range s.tokens {
		if id > highest {
			highest = id
		}
	}
	return highest
}

func containsState(states []State, st State) bool {
	for _, s := range states {
		if s == st {
			return true
		}
	}
	return false
}
