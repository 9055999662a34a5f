package repositories

import (
	"context"
	"time"

	"github.com/deckforge/chainsale/chainsale/config"
	"github.com/deckforge/chainsale/chainsale/database/models"
	"github.com/deckforge/chainsale/internal/domain/catalog"
	"github.com/uptrace/bun"
)

type PriceHistoryRepository struct {
	*BaseRepository
}

func NewPriceHistoryRepository(db *bun.DB) *PriceHistoryRepository {
	return &PriceHistoryRepository{BaseRepository: NewBaseRepository(db)}
}

// Record stores one snapshot row per quote.
func (r *PriceHistoryRepository) Record(ctx context.Context, quotes []catalog.Quote) error {
	if len(quotes) == 0 {
		return nil
	}

	now := time.Now()
	rows := make([]models.PriceHistory, 0, len(quotes))
	for _, q := range quotes {
		rows = append(rows, models.PriceHistory{
			Deck:       q.Slot.Deck,
			Generation: q.Slot.Generation,
			Tier:       int16(q.Tier),
			Price:      q.Price,
			ChainPrice: q.ChainPrice,
			Reserved:   q.Reserved,
			RecordedAt: now,
		})
	}

	ctx, cancel := context.WithTimeout(ctx, config.BatchQueryTimeout)
	defer cancel()
	_, err := r.db.NewInsert().Model(&rows).Exec(ctx)
	return r.HandleError("batch_insert", "price_history", err)
}

// History returns the latest snapshots of a slot, newest first.
func (r *PriceHistoryRepository) History(ctx context.Context, deck, generation, limit int) ([]models.PriceHistory, error) {
	var rows []models.PriceHistory
	err := r.SelectWithTimeout(ctx, "list", "price_history", func(ctx context.Context) error {
		return r.db.NewSelect().
			Model(&rows).
			Where("deck = ? AND generation = ?", deck, generation).
			Order("recorded_at DESC").
			Limit(limit).
			Scan(ctx)
	})
	return rows, err
}
