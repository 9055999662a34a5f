package catalog

import "slices"

// Tier is a rarity grade between MinTier and MaxTier.
type Tier uint8

// RarityTable maps every (deck, generation) pair to a tier. It is replaced
// wholesale and only answers lookups once it holds exactly RaritySize values.
type RarityTable struct {
	tiers []Tier
}

func NewRarityTable() *RarityTable {
	return &RarityTable{}
}

// Replace overwrites the whole table. Tiers outside [MinTier, MaxTier] are
// rejected and leave the table untouched. A table of the wrong length is
// stored as given; every lookup then fails with ErrRarityNotSet.
func (t *RarityTable) Replace(values []Tier) error {
	for i, v := range values {
		if v < MinTier || v > MaxTier {
			deck, generation := slotOf(i)
			return slotError("replace rarity", deck, generation, ErrInvalidRarity)
		}
	}
	t.tiers = slices.Clone(values)
	return nil
}

func (t *RarityTable) Lookup(deck, generation int) (Tier, error) {
	if !validDeck(deck) {
		return 0, slotError("rarity", deck, generation, ErrInvalidDeck)
	}
	if !validGeneration(generation) {
		return 0, slotError("rarity", deck, generation, ErrInvalidGeneration)
	}
	if !t.Ready() {
		return 0, slotError("rarity", deck, generation, ErrRarityNotSet)
	}
	return t.tiers[slotIndex(deck, generation)], nil
}

// Ready reports whether the table holds a complete set of tiers.
func (t *RarityTable) Ready() bool {
	return len(t.tiers) == RaritySize
}

// Values returns a copy of the stored tiers.
func (t *RarityTable) Values() []Tier {
	return slices.Clone(t.tiers)
}

func validDeck(deck int) bool {
	return deck >= 1 && deck <= MaxDecks
}

func validGeneration(generation int) bool {
	return generation >= 1 && generation <= MaxGenerations
}

func validSlot(deck, generation int) bool {
	return validDeck(deck) && validGeneration(generation)
}

// slotIndex strides decks by MaxGenerations; both arguments are 1-based.
func slotIndex(deck, generation int) int {
	return (deck-1)*MaxGenerations + (generation - 1)
}

func slotOf(index int) (deck, generation int) {
	return index/MaxGenerations + 1, index%MaxGenerations + 1
}
