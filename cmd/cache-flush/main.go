// Command cache-flush empties the Redis cache so the API re-reads fresh data
// from PostgreSQL, typically after a bulk scrape or schema change.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/dmatteo/changuito/internal/cache"
)

func main() {
	var redisURL string

	flag.StringVar(&redisURL, "redis-url", "", "Redis connection URL (or REDIS_URL env)")
	flag.Parse()

	if redisURL == "" {
		redisURL = os.Getenv("REDIS_URL")
	}
	if redisURL == "" {
		slog.Error("redis URL is required: set --redis-url or REDIS_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	c, err := cache.New(redisURL)
	if err != nil {
		slog.Error("connecting to redis", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer func() { _ = c.Close() }()

	if err := c.Flush(ctx); err != nil {
		slog.Error("cache flush failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("cache flushed")
}
