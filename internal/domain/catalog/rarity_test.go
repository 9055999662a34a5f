package catalog

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sequentialTiers() []Tier {
	values := make([]Tier, RaritySize)
	for i := range values {
		values[i] = Tier(i%10 + 1)
	}
	return values
}

func TestRarityTable_Lookup(t *testing.T) {
	table := NewRarityTable()
	values := sequentialTiers()
	require.NoError(t, table.Replace(values))

	for deck := 1; deck <= MaxDecks; deck++ {
		for generation := 1; generation <= MaxGenerations; generation++ {
			got, err := table.Lookup(deck, generation)
			require.NoError(t, err)
			require.Equal(t, values[(deck-1)*60+(generation-1)], got)
		}
	}
}

func TestRarityTable_LookupErrors(t *testing.T) {
	full := NewRarityTable()
	require.NoError(t, full.Replace(sequentialTiers()))

	short := NewRarityTable()
	require.NoError(t, short.Replace(sequentialTiers()[:RaritySize-1]))

	tests := []struct {
		name       string
		table      *RarityTable
		deck       int
		generation int
		wantErr    error
	}{
		{name: "deck zero", table: full, deck: 0, generation: 1, wantErr: ErrInvalidDeck},
		{name: "deck too high", table: full, deck: 51, generation: 1, wantErr: ErrInvalidDeck},
		{name: "generation zero", table: full, deck: 1, generation: 0, wantErr: ErrInvalidGeneration},
		{name: "generation too high", table: full, deck: 1, generation: 61, wantErr: ErrInvalidGeneration},
		{name: "deck checked first", table: full, deck: -1, generation: 99, wantErr: ErrInvalidDeck},
		{name: "empty table", table: NewRarityTable(), deck: 1, generation: 1, wantErr: ErrRarityNotSet},
		{name: "short table", table: short, deck: 1, generation: 1, wantErr: ErrRarityNotSet},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.table.Lookup(tt.deck, tt.generation)
			assert.ErrorIs(t, err, tt.wantErr)

			var slotErr *SlotError
			require.True(t, errors.As(err, &slotErr))
			assert.Equal(t, tt.deck, slotErr.Deck)
			assert.Equal(t, tt.generation, slotErr.Generation)
		})
	}
}

func TestRarityTable_ReplaceRejectsInvalidTier(t *testing.T) {
	table := NewRarityTable()
	require.NoError(t, table.Replace(sequentialTiers()))

	bad := sequentialTiers()
	bad[61] = 11

	err := table.Replace(bad)
	assert.ErrorIs(t, err, ErrInvalidRarity)

	var slotErr *SlotError
	require.ErrorAs(t, err, &slotErr)
	assert.Equal(t, 2, slotErr.Deck)
	assert.Equal(t, 2, slotErr.Generation)

	// the previous table survives
	got, err := table.Lookup(2, 2)
	require.NoError(t, err)
	assert.Equal(t, Tier(2), got)
}

func TestRarityTable_ValuesIsCopy(t *testing.T) {
	table := NewRarityTable()
	require.NoError(t, table.Replace(sequentialTiers()))

	values := table.Values()
	values[0] = 10

	got, err := table.Lookup(1, 1)
	require.NoError(t, err)
	assert.Equal(t, Tier(1), got)
}
