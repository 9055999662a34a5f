package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/deckforge/chainsale/chainsale/config"
	"github.com/deckforge/chainsale/internal/domain/catalog"
	"github.com/robfig/cron/v3"
)

// QuoteSource yields the current price of every open listing.
type QuoteSource interface {
	Quotes(ctx context.Context) ([]catalog.Quote, error)
}

// QuoteSink persists a batch of quotes.
type QuoteSink interface {
	Record(ctx context.Context, quotes []catalog.Quote) error
}

// LogSink writes snapshots to the log when no database is configured.
type LogSink struct{}

func (LogSink) Record(_ context.Context, quotes []catalog.Quote) error {
	for _, q := range quotes {
		slog.Debug("Price snapshot",
			slog.String("type", "market"),
			slog.Int("deck", q.Slot.Deck),
			slog.Int("generation", q.Slot.Generation),
			slog.String("price", catalog.FormatCoins(q.Price)),
			slog.Bool("reserved", q.Reserved))
	}
	return nil
}

// PriceSnapshotter periodically records the open listings' prices.
type PriceSnapshotter struct {
	source QuoteSource
	sink   QuoteSink
	cron   *cron.Cron

	mu    sync.Mutex
	taken int
}

func NewPriceSnapshotter(source QuoteSource, sink QuoteSink, expr string) (*PriceSnapshotter, error) {
	s := &PriceSnapshotter{
		source: source,
		sink:   sink,
		cron:   cron.New(cron.WithSeconds()),
	}
	if _, err := s.cron.AddFunc(expr, s.run); err != nil {
		return nil, fmt.Errorf("invalid snapshot schedule %q: %w", expr, err)
	}
	return s, nil
}

func (s *PriceSnapshotter) run() {
	ctx, cancel := context.WithTimeout(context.Background(), config.SnapshotTimeout)
	defer cancel()

	if err := s.Snapshot(ctx); err != nil {
		slog.Error("Price snapshot failed",
			slog.String("type", "error"),
			slog.Any("error", err))
	}
}

// Snapshot takes one snapshot immediately.
func (s *PriceSnapshotter) Snapshot(ctx context.Context) error {
	quotes, err := s.source.Quotes(ctx)
	if err != nil {
		return fmt.Errorf("failed to quote listings: %w", err)
	}
	if err := s.sink.Record(ctx, quotes); err != nil {
		return fmt.Errorf("failed to record %d quotes: %w", len(quotes), err)
	}

	s.mu.Lock()
	s.taken++
	s.mu.Unlock()
	return nil
}

// Taken reports how many snapshots were recorded successfully.
func (s *PriceSnapshotter) Taken() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.taken
}

func (s *PriceSnapshotter) Start() {
	s.cron.Start()
	slog.Info("Price snapshotter started", slog.String("type", "sys"))
}

// Stop halts the schedule and waits for a running snapshot to finish.
func (s *PriceSnapshotter) Stop() {
	<-s.cron.Stop().Done()
	slog.Info("Price snapshotter stopped", slog.String("type", "sys"))
}
