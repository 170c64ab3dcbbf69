// Command scrape runs one aggregation pass against one storefront, or the
// whole roster with the master first.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"github.com/dmatteo/changuito/internal/domain/storefront"
	"github.com/dmatteo/changuito/internal/repository"
	"github.com/dmatteo/changuito/internal/scrape"
	"github.com/dmatteo/changuito/internal/vtex"
)

func main() {
	var (
		databaseURL string
		vtexHash    string
		store       string
		mode        string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&vtexHash, "vtex-hash", "", "persisted query hash (or CHANGO_VTEX_HASH env)")
	flag.StringVar(&store, "store", "", "storefront name; empty scrapes the whole roster")
	flag.StringVar(&mode, "mode", "terms", "scrape mode: terms (discovery) or eans (re-probe known catalog)")
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
	if mode != string(scrape.ModeTerms) && mode != string(scrape.ModeEANs) {
		slog.Error("invalid mode", slog.String("mode", mode))
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, vtexHash, store, scrape.Mode(mode)); err != nil {
		slog.Error("scrape failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(ctx context.Context, databaseURL, vtexHash, store string, mode scrape.Mode) error {
	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	lg, err := zap.NewProduction()
	if err != nil {
		return errors.Wrap(err, "create logger")
	}
	defer func() { _ = lg.Sync() }()

	catalogRepo := repository.NewCatalogRepository(pool)
	observationRepo := repository.NewObservationRepository(pool)
	storefrontRepo := repository.NewStorefrontRepository(pool)

	orch := scrape.NewOrchestrator(vtex.NewClient(vtexHash), storefrontRepo, func(role storefront.Role) scrape.Reconciler {
		return scrape.NewReconciler(role, catalogRepo, observationRepo, lg)
	}, lg)

	targets := storefront.Roster()
	if store != "" {
		cfg, ok := storefront.Lookup(store)
		if !ok {
			return errors.Errorf("unknown storefront %q", store)
		}
		targets = []storefront.Config{cfg}
	}

	for _, target := range targets {
		terms := scrape.Terms(target.Terms)
		if mode == scrape.ModeEANs {
			terms, err = catalogRepo.ListEANs(ctx)
			if err != nil {
				return errors.Wrap(err, "list catalog eans")
			}
		}

		summary, err := orch.Run(ctx, scrape.RunConfig{
			Storefront: target,
			Terms:      terms,
			Mode:       mode,
		})
		if err != nil {
			return errors.Wrapf(err, "scrape %s", target.Name)
		}

		slog.Info("scrape completed",
			slog.String("storefront", target.Name),
			slog.String("run_id", summary.RunID),
			slog.Int("total", summary.TotalProducts),
			slog.Int("saved", summary.SavedProducts),
			slog.Int("skipped", summary.SkippedProducts),
			slog.Int("failed_terms", summary.FailedTerms),
			slog.Duration("duration", summary.Duration),
		)
	}
	return nil
}
