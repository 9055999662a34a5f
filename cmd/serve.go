package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/deckforge/chainsale/backend"
	"github.com/deckforge/chainsale/backend/handlers"
	"github.com/deckforge/chainsale/chainsale"
	"github.com/deckforge/chainsale/chainsale/broker"
	"github.com/deckforge/chainsale/chainsale/config"
	"github.com/deckforge/chainsale/chainsale/database"
	"github.com/deckforge/chainsale/chainsale/database/repositories"
	"github.com/deckforge/chainsale/chainsale/economy/announce"
	"github.com/deckforge/chainsale/chainsale/economy/payouts"
	"github.com/deckforge/chainsale/chainsale/economy/schedule"
	"github.com/deckforge/chainsale/chainsale/economy/utils"
	"github.com/deckforge/chainsale/chainsale/logger"
	"github.com/deckforge/chainsale/internal/domain/catalog"
	"github.com/deckforge/chainsale/internal/domain/ownership"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var serveCMD = &cobra.Command{
	Use:   "serve",
	Short: "run the market API",
	RunE: timed(func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		slog.Info("Starting ChainSale",
			slog.String("type", "sys"),
			slog.String("version", version),
			slog.String("commit", commit))

		svc, err := newService(ctx, cfg)
		if err != nil {
			return err
		}
		defer svc.Close()

		return svc.Run(ctx)
	}),
}

func init() {
	rootCmd.AddCommand(serveCMD)
}

// service holds everything serve starts, in the order it is torn down.
type service struct {
	db          *database.DB
	publisher   *broker.Publisher
	snapshotter *schedule.PriceSnapshotter
	server      *backend.Server
}

func newService(ctx context.Context, cfg *chainsale.Config) (_ *service, err error) {
	svc := &service{}
	defer func() {
		if err != nil {
			svc.Close()
		}
	}()

	startCtx, cancel := context.WithTimeout(ctx, config.StartupTimeout)
	defer cancel()

	var (
		recorder   catalog.Recorder   = catalog.NopRecorder{}
		transferer catalog.Transferer = payouts.NewLedger()
		snapshot   catalog.Snapshot
		sales      []catalog.Sale
		sink       schedule.QuoteSink = schedule.LogSink{}
		pinger     handlers.Pinger
	)

	if cfg.DB.Enabled() {
		start := time.Now()
		if svc.db, err = database.New(startCtx, dbConfig()); err != nil {
			return nil, fmt.Errorf("database connection failed: %w", err)
		}
		if err = svc.db.InitializeSchema(startCtx); err != nil {
			return nil, fmt.Errorf("failed to initialize database schema: %w", err)
		}
		slog.Info("Database connected successfully",
			slog.String("type", "db"),
			slog.String("database", cfg.DB.Database),
			slog.Duration("took", time.Since(start)))

		txm := utils.NewEconomicTransactionManager(svc.db.BunDB())
		listings := repositories.NewListingRepository(svc.db.BunDB(), txm)
		recorder = listings
		transferer = repositories.NewAccountRepository(svc.db.BunDB(), txm)
		sink = repositories.NewPriceHistoryRepository(svc.db.BunDB())
		pinger = svc.db

		if snapshot, err = listings.Load(startCtx); err != nil {
			return nil, fmt.Errorf("failed to load market state: %w", err)
		}
		if sales, err = listings.Sales(startCtx); err != nil {
			return nil, fmt.Errorf("failed to load sales: %w", err)
		}
	} else {
		slog.Warn("No database configured, market state will not survive a restart", slog.String("type", "sys"))
	}

	if err = seed(startCtx, cfg, recorder, &snapshot); err != nil {
		return nil, err
	}

	owners := ownership.NewRegistry()
	if err = owners.Load(startCtx, sales); err != nil {
		return nil, fmt.Errorf("failed to rebuild token owners: %w", err)
	}

	listeners := []catalog.SaleListener{owners}
	if cfg.Broker.URL != "" {
		if svc.publisher, err = broker.Dial(cfg.Broker.URL, cfg.Broker.Queue); err != nil {
			return nil, err
		}
		listeners = append(listeners, svc.publisher)
	}
	if cfg.Announce.Token != "" {
		listeners = append(listeners, announce.New(cfg.Announce.Token, cfg.Announce.ChannelID))
	}

	guard := catalog.NewRoleGuard(cfg.Access.Admins, cfg.Access.Listers, cfg.Access.Treasurers)
	market, err := catalog.NewMarket(guard, transferer,
		catalog.WithRecorder(recorder),
		catalog.WithListeners(listeners...),
		catalog.WithParams(cfg.Market.Params),
	)
	if err != nil {
		return nil, err
	}
	if err = market.Restore(startCtx, snapshot); err != nil {
		return nil, fmt.Errorf("failed to restore market: %w", err)
	}
	slog.Info("Market restored",
		slog.String("type", "market"),
		slog.Int("slots", len(snapshot.Slots)),
		slog.Int("sales", len(sales)),
		slog.String("balance", catalog.FormatCoins(snapshot.Balance)))

	if cfg.Schedule.PriceSnapshot != "" {
		if svc.snapshotter, err = schedule.NewPriceSnapshotter(market, sink, cfg.Schedule.PriceSnapshot); err != nil {
			return nil, err
		}
	}

	svc.server = backend.New(cfg.API, &handlers.WebApp{
		Market:  market,
		Owners:  owners,
		DB:      pinger,
		Version: version,
	})
	return svc, nil
}

// seed fills in parameters and rarity the store has never seen and persists them.
func seed(ctx context.Context, cfg *chainsale.Config, recorder catalog.Recorder, snapshot *catalog.Snapshot) error {
	var change catalog.Change

	if snapshot.Params == nil {
		params := cfg.Market.Params
		if err := params.Validate(); err != nil {
			return fmt.Errorf("invalid market config: %w", err)
		}
		change.Params = &params
		snapshot.Params = &params
	}
	if len(snapshot.Rarity) == 0 && cfg.Market.RarityFile != "" {
		tiers, err := chainsale.LoadRarity(cfg.Market.RarityFile)
		if err != nil {
			return err
		}
		change.Rarity = tiers
		snapshot.Rarity = tiers
		slog.Info("Rarity table seeded", slog.String("type", "market"), slog.String("file", cfg.Market.RarityFile))
	}

	if change.Params == nil && change.Rarity == nil {
		return nil
	}
	return recorder.Commit(ctx, change, nil)
}

// Run blocks until ctx is cancelled or a component fails.
func (s *service) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return s.server.Run(gctx)
	})

	if s.snapshotter != nil {
		s.snapshotter.Start()
		g.Go(func() error {
			<-gctx.Done()
			s.snapshotter.Stop()
			return nil
		})
	}

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	slog.Info("Shutdown complete", slog.String("type", "sys"))
	return err
}

func (s *service) Close() {
	if s.publisher != nil {
		if err := s.publisher.Close(); err != nil {
			logger.LogError("Failed to close publisher", err)
		}
	}
	if s.db != nil {
		s.db.Close()
	}
}
