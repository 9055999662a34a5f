package ownership

import (
	"context"
	"testing"

	"github.com/deckforge/chainsale/internal/domain/catalog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_HandleSale(t *testing.T) {
	r := NewRegistry()
	ctx := context.Background()

	require.NoError(t, r.HandleSale(ctx, catalog.Sale{TokenID: 1, Buyer: "alice", Deck: 3, Generation: 1}))
	require.NoError(t, r.HandleSale(ctx, catalog.Sale{TokenID: 2, Buyer: "bob", Deck: 4, Generation: 1}))
	require.NoError(t, r.HandleSale(ctx, catalog.Sale{TokenID: 3, Buyer: "alice", Deck: 3, Generation: 2}))

	token, err := r.OwnerOf(3)
	require.NoError(t, err)
	assert.Equal(t, Token{ID: 3, Owner: "alice", Deck: 3, Generation: 2}, token)

	assert.Equal(t, []Token{
		{ID: 1, Owner: "alice", Deck: 3, Generation: 1},
		{ID: 3, Owner: "alice", Deck: 3, Generation: 2},
	}, r.TokensOf("alice"))
	assert.Empty(t, r.TokensOf("carol"))

	_, err = r.OwnerOf(9)
	assert.ErrorIs(t, err, ErrUnknownToken)
}

func TestRegistry_MintIsIdempotent(t *testing.T) {
	r := NewRegistry()
	token := Token{ID: 7, Owner: "alice", Deck: 1, Generation: 1}

	require.NoError(t, r.Mint(token))
	require.NoError(t, r.Mint(token))
	assert.Len(t, r.TokensOf("alice"), 1)

	err := r.Mint(Token{ID: 7, Owner: "mallory", Deck: 1, Generation: 1})
	assert.Error(t, err)
}
