package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/deckforge/chainsale/chainsale/database/models"
	"github.com/deckforge/chainsale/chainsale/economy/utils"
	"github.com/deckforge/chainsale/internal/domain/catalog"
	"github.com/uptrace/bun"
)

const singletonID = 1

// ListingRepository persists the market. It implements catalog.Recorder so
// every market change and its settlement commit in one transaction.
type ListingRepository struct {
	*BaseRepository
	txm *utils.EconomicTransactionManager
}

func NewListingRepository(db *bun.DB, txm *utils.EconomicTransactionManager) *ListingRepository {
	return &ListingRepository{
		BaseRepository: NewBaseRepository(db),
		txm:            txm,
	}
}

func (r *ListingRepository) Commit(ctx context.Context, change catalog.Change, settle func(context.Context) error) error {
	return r.txm.WithTransaction(ctx, utils.SerializableTransactionOptions(), func(ctx context.Context, tx bun.Tx) error {
		if err := r.apply(ctx, tx, change); err != nil {
			return err
		}
		if settle != nil {
			return settle(ctx)
		}
		return nil
	})
}

func (r *ListingRepository) apply(ctx context.Context, tx bun.Tx, change catalog.Change) error {
	now := time.Now()

	var upserts []models.Listing
	for _, s := range change.Slots {
		if s.State() == catalog.StateAbsent {
			_, err := tx.NewDelete().
				Model((*models.Listing)(nil)).
				Where("deck = ? AND generation = ?", s.Deck, s.Generation).
				Exec(ctx)
			if err != nil {
				return r.HandleError("delete", "listing", err)
			}
			continue
		}
		upserts = append(upserts, listingModel(s, now))
	}
	if len(upserts) > 0 {
		_, err := tx.NewInsert().
			Model(&upserts).
			On("CONFLICT (deck, generation) DO UPDATE").
			Set("token_id = EXCLUDED.token_id").
			Set("start_time = EXCLUDED.start_time").
			Set("reserved_buyer = EXCLUDED.reserved_buyer").
			Set("updated_at = EXCLUDED.updated_at").
			Exec(ctx)
		if err != nil {
			return r.HandleError("upsert", "listing", err)
		}
	}

	if change.Sale != nil {
		if _, err := tx.NewInsert().Model(saleModel(*change.Sale, now)).Exec(ctx); err != nil {
			return r.HandleErrorWithID("insert", "sale", change.Sale.TokenID, err)
		}
	}

	if change.Params != nil {
		p := change.Params
		_, err := tx.NewInsert().
			Model(&models.MarketParams{
				ID:                    singletonID,
				PriceCoefficient:      p.PriceCoefficient,
				PriceConstant:         p.PriceConstant,
				ListingDuration:       p.ListingDuration,
				ChainPurchaseWindow:   p.ChainPurchaseWindow,
				ChainPurchaseDiscount: p.ChainPurchaseDiscount,
				BaseMetadataLocator:   p.BaseMetadataLocator,
				UpdatedAt:             now,
			}).
			On("CONFLICT (id) DO UPDATE").
			Set("price_coefficient = EXCLUDED.price_coefficient").
			Set("price_constant = EXCLUDED.price_constant").
			Set("listing_duration = EXCLUDED.listing_duration").
			Set("chain_purchase_window = EXCLUDED.chain_purchase_window").
			Set("chain_purchase_discount = EXCLUDED.chain_purchase_discount").
			Set("base_metadata_locator = EXCLUDED.base_metadata_locator").
			Set("updated_at = EXCLUDED.updated_at").
			Exec(ctx)
		if err != nil {
			return r.HandleError("upsert", "market_params", err)
		}
	}

	if change.Rarity != nil {
		tiers := make([]int16, len(change.Rarity))
		for i, t := range change.Rarity {
			tiers[i] = int16(t)
		}
		_, err := tx.NewInsert().
			Model(&models.RarityTable{ID: singletonID, Tiers: tiers, UpdatedAt: now}).
			On("CONFLICT (id) DO UPDATE").
			Set("tiers = EXCLUDED.tiers").
			Set("updated_at = EXCLUDED.updated_at").
			Exec(ctx)
		if err != nil {
			return r.HandleError("upsert", "rarity_table", err)
		}
	}

	if w := change.Withdrawal; w != nil {
		_, err := tx.NewInsert().
			Model(&models.Withdrawal{
				Caller:      w.Caller,
				Destination: w.Destination,
				Amount:      w.Amount,
				WithdrawnAt: w.Timestamp,
				CreatedAt:   now,
			}).
			Exec(ctx)
		if err != nil {
			return r.HandleError("insert", "withdrawal", err)
		}
	}
	return nil
}

// Load rebuilds the persisted market state.
func (r *ListingRepository) Load(ctx context.Context) (catalog.Snapshot, error) {
	var snapshot catalog.Snapshot

	var listings []models.Listing
	err := r.SelectWithTimeout(ctx, "load", "listing", func(ctx context.Context) error {
		return r.db.NewSelect().
			Model(&listings).
			Where("token_id <> 0 OR start_time <> 0").
			Order("deck ASC", "generation ASC").
			Scan(ctx)
	})
	if err != nil {
		return snapshot, err
	}
	for _, l := range listings {
		snapshot.Slots = append(snapshot.Slots, catalog.Slot{
			SlotRef: catalog.SlotRef{Deck: l.Deck, Generation: l.Generation},
			Listing: catalog.Listing{
				TokenID:       uint64(l.TokenID),
				StartTime:     l.StartTime,
				ReservedBuyer: l.ReservedBuyer,
			},
		})
	}

	var params models.MarketParams
	err = r.SelectWithTimeout(ctx, "load", "market_params", func(ctx context.Context) error {
		return r.db.NewSelect().Model(&params).Where("id = ?", singletonID).Scan(ctx)
	})
	switch {
	case err == nil:
		snapshot.Params = &catalog.Params{
			PriceCoefficient:      params.PriceCoefficient,
			PriceConstant:         params.PriceConstant,
			ListingDuration:       params.ListingDuration,
			ChainPurchaseWindow:   params.ChainPurchaseWindow,
			ChainPurchaseDiscount: params.ChainPurchaseDiscount,
			BaseMetadataLocator:   params.BaseMetadataLocator,
		}
	case !IsNotFound(err):
		return snapshot, err
	}

	var rarity models.RarityTable
	err = r.SelectWithTimeout(ctx, "load", "rarity_table", func(ctx context.Context) error {
		return r.db.NewSelect().Model(&rarity).Where("id = ?", singletonID).Scan(ctx)
	})
	switch {
	case err == nil:
		snapshot.Rarity = make([]catalog.Tier, len(rarity.Tiers))
		for i, t := range rarity.Tiers {
			snapshot.Rarity[i] = catalog.Tier(t)
		}
	case !IsNotFound(err):
		return snapshot, err
	}

	var sold, withdrawn int64
	err = r.SelectWithTimeout(ctx, "load", "balance", func(ctx context.Context) error {
		if err := r.db.NewSelect().Model((*models.Sale)(nil)).ColumnExpr("COALESCE(SUM(price), 0)").Scan(ctx, &sold); err != nil {
			return err
		}
		return r.db.NewSelect().Model((*models.Withdrawal)(nil)).ColumnExpr("COALESCE(SUM(amount), 0)").Scan(ctx, &withdrawn)
	})
	if err != nil {
		return snapshot, err
	}
	snapshot.Balance = sold - withdrawn
	if snapshot.Balance < 0 {
		return snapshot, fmt.Errorf("persisted balance is negative: sold %d, withdrawn %d", sold, withdrawn)
	}
	return snapshot, nil
}

// Sales returns every recorded sale in token order.
func (r *ListingRepository) Sales(ctx context.Context) ([]catalog.Sale, error) {
	var rows []models.Sale
	err := r.SelectWithTimeout(ctx, "list", "sale", func(ctx context.Context) error {
		return r.db.NewSelect().Model(&rows).Order("token_id ASC").Scan(ctx)
	})
	if err != nil {
		return nil, err
	}

	sales := make([]catalog.Sale, 0, len(rows))
	for _, s := range rows {
		sales = append(sales, catalog.Sale{
			TokenID:    uint64(s.TokenID),
			Deck:       s.Deck,
			Generation: s.Generation,
			Buyer:      s.Buyer,
			Price:      s.Price,
			Paid:       s.Paid,
			Refund:     s.Refund,
			Chain:      s.Chain,
			Tier:       catalog.Tier(s.Tier),
			Timestamp:  s.SoldAt,
		})
	}
	return sales, nil
}

func listingModel(s catalog.Slot, now time.Time) models.Listing {
	return models.Listing{
		Deck:          s.Deck,
		Generation:    s.Generation,
		TokenID:       int64(s.TokenID),
		StartTime:     s.StartTime,
		ReservedBuyer: s.ReservedBuyer,
		UpdatedAt:     now,
	}
}

func saleModel(s catalog.Sale, now time.Time) *models.Sale {
	return &models.Sale{
		TokenID:    int64(s.TokenID),
		Deck:       s.Deck,
		Generation: s.Generation,
		Buyer:      s.Buyer,
		Tier:       int16(s.Tier),
		Price:      s.Price,
		Paid:       s.Paid,
		Refund:     s.Refund,
		Chain:      s.Chain,
		SoldAt:     s.Timestamp,
		CreatedAt:  now,
	}
}
