// Command price-refresh re-validates the oldest-checked price observations,
// either as a single batch or continuously with -loop.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"github.com/dmatteo/changuito/internal/repository"
	"github.com/dmatteo/changuito/internal/scrape"
	"github.com/dmatteo/changuito/internal/vtex"
)

func main() {
	var (
		databaseURL string
		vtexHash    string
		batchSize   int
		loop        bool
		interval    time.Duration
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&vtexHash, "vtex-hash", "", "persisted query hash (or CHANGO_VTEX_HASH env)")
	flag.IntVar(&batchSize, "batch", 50, "observations to re-validate per batch")
	flag.BoolVar(&loop, "loop", false, "keep refreshing until interrupted")
	flag.DurationVar(&interval, "interval", 10*time.Minute, "pause between batches in loop mode")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if vtexHash == "" {
		vtexHash = os.Getenv("CHANGO_VTEX_HASH")
	}
	if vtexHash == "" {
		slog.Error("VTEX query hash is required: set --vtex-hash or CHANGO_VTEX_HASH")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, vtexHash, batchSize, loop, interval); err != nil {
		slog.Error("price refresh failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(ctx context.Context, databaseURL, vtexHash string, batchSize int, loop bool, interval time.Duration) error {
	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	lg, err := zap.NewProduction()
	if err != nil {
		return errors.Wrap(err, "create logger")
	}
	defer func() { _ = lg.Sync() }()

	refresher := scrape.NewRefresher(
		vtex.NewClient(vtexHash),
		repository.NewObservationRepository(pool),
		lg,
	)

	for {
		summary, err := refresher.RefreshBatch(ctx, batchSize)
		if err != nil {
			return errors.Wrap(err, "refresh batch")
		}

		slog.Info("refresh batch completed",
			slog.Int("processed", summary.Processed),
			slog.Int("updated", summary.Updated),
			slog.Int("price_changed", summary.PriceChanged),
			slog.Int("unavailable", summary.Unavailable),
			slog.Int("errored", summary.Errored),
			slog.Duration("duration", summary.Duration),
		)

		if !loop {
			return nil
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(interval):
		}
	}
}
