// Command relevance-init resets all catalog relevance scores and re-applies
// the keyword scoring rules that pin staple products to the top of listings.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/go-faster/errors"

	"github.com/dmatteo/changuito/internal/domain/catalog"
	"github.com/dmatteo/changuito/internal/repository"
)

// Higher score means higher position in listings. The limit caps how many
// matches of each keyword get the score, so one staple does not flood the
// first page.
var relevanceRules = []catalog.RelevanceRule{
	// Tier 1: essentials, high traffic.
	{Keyword: "Coca Cola", Score: 100, Limit: 2},
	{Keyword: "Arroz", Score: 90, Limit: 3},
	{Keyword: "Aceite", Score: 90, Limit: 3},
	{Keyword: "Leche", Score: 90, Limit: 3},
	{Keyword: "Fideos", Score: 90, Limit: 2},
	{Keyword: "Azucar", Score: 90, Limit: 2},
	{Keyword: "Yerba", Score: 90, Limit: 2},

	// Tier 2: popular, secondary essentials.
	{Keyword: "Galletitas", Score: 80, Limit: 2},
	{Keyword: "Pan", Score: 80, Limit: 2},
	{Keyword: "Agua", Score: 80, Limit: 2},
	{Keyword: "Cerveza", Score: 75, Limit: 2},
	{Keyword: "Vino", Score: 75, Limit: 2},
	{Keyword: "Papel Higienico", Score: 70, Limit: 2},
	{Keyword: "Detergente", Score: 70, Limit: 2},

	// Tier 3: common categories.
	{Keyword: "Yogur", Score: 60, Limit: 3},
	{Keyword: "Queso", Score: 60, Limit: 3},
	{Keyword: "Manteca", Score: 60, Limit: 1},
	{Keyword: "Jabon", Score: 50, Limit: 2},
	{Keyword: "Shampoo", Score: 50, Limit: 3},
}

func main() {
	var databaseURL string

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL); err != nil {
		slog.Error("relevance init failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("relevance init completed successfully")
}

func run(ctx context.Context, databaseURL string) error {
	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	repo := repository.NewCatalogRepository(pool)

	slog.Info("resetting relevance scores")
	if err := repo.ResetRelevance(ctx); err != nil {
		return errors.Wrap(err, "reset relevance")
	}

	for _, rule := range relevanceRules {
		updated, err := repo.ApplyRelevanceRule(ctx, rule)
		if err != nil {
			slog.Error("rule failed",
				slog.String("keyword", rule.Keyword),
				slog.String("error", err.Error()),
			)
			continue
		}
		slog.Info("rule applied",
			slog.String("keyword", rule.Keyword),
			slog.Int("score", rule.Score),
			slog.Int64("updated", updated),
		)
	}
	return nil
}
