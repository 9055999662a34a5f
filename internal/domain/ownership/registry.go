// Package ownership tracks who holds the tokens the market issues. It is fed
// by the market's sale events and never touches listing state.
package ownership

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/deckforge/chainsale/internal/domain/catalog"
)

var ErrUnknownToken = errors.New("token has no owner")

type Token struct {
	ID         uint64 `json:"id"`
	Owner      string `json:"owner"`
	Deck       int    `json:"deck"`
	Generation int    `json:"generation"`
}

type Registry struct {
	mu      sync.RWMutex
	tokens  map[uint64]Token
	byOwner map[string][]uint64
}

func NewRegistry() *Registry {
	return &Registry{
		tokens:  make(map[uint64]Token),
		byOwner: make(map[string][]uint64),
	}
}

// HandleSale mints the token of a closed slot to its buyer.
func (r *Registry) HandleSale(_ context.Context, sale catalog.Sale) error {
	return r.Mint(Token{ID: sale.TokenID, Owner: sale.Buyer, Deck: sale.Deck, Generation: sale.Generation})
}

func (r *Registry) Mint(token Token) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.tokens[token.ID]; ok {
		if existing == token {
			return nil
		}
		return fmt.Errorf("token %d already minted to %s", token.ID, existing.Owner)
	}
	r.tokens[token.ID] = token
	r.byOwner[token.Owner] = append(r.byOwner[token.Owner], token.ID)
	return nil
}

func (r *Registry) OwnerOf(tokenID uint64) (Token, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	token, ok := r.tokens[tokenID]
	if !ok {
		return Token{}, fmt.Errorf("token %d: %w", tokenID, ErrUnknownToken)
	}
	return token, nil
}

// TokensOf returns the tokens held by owner in mint order.
func (r *Registry) TokensOf(owner string) []Token {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := slices.Clone(r.byOwner[owner])
	out := make([]Token, 0, len(ids))
	for _, id := range ids {
		out = append(out, r.tokens[id])
	}
	return out
}

// Load seeds the registry from persisted sales.
func (r *Registry) Load(ctx context.Context, sales []catalog.Sale) error {
	for _, sale := range sales {
		if err := r.HandleSale(ctx, sale); err != nil {
			return err
		}
	}
	return nil
}
