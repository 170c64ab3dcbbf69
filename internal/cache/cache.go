// Package cache provides a small Redis-backed key/value cache used by the
// HTTP read API. A nil *Cache is valid and behaves as an always-miss cache,
// so callers never branch on whether caching is configured.
package cache

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/redis/go-redis/v9"
)

// ErrMiss is returned by Get when the key is absent or caching is disabled.
var ErrMiss = errors.New("cache miss")

// Endpoint TTLs. Listing-style responses age out quickly, near-static
// aggregates live longer.
const (
	TTLList       = 5 * time.Minute
	TTLDetail     = 10 * time.Minute
	TTLSearch     = 2 * time.Minute
	TTLCategories = time.Hour
	TTLStats      = time.Hour
)

// Cache wraps a Redis client with the byte-slice operations the API needs.
type Cache struct {
	rdb *redis.Client
}

// New connects to Redis at the given URL. An empty URL returns a nil Cache,
// which is safe to use and never hits.
func New(url string) (*Cache, error) {
	if url == "" {
		return nil, nil
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, errors.Wrap(err, "parsing redis url")
	}
	return &Cache{rdb: redis.NewClient(opts)}, nil
}

// Get returns the cached value for key, or ErrMiss.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, error) {
	if c == nil {
		return nil, ErrMiss
	}
	val, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, errors.Wrap(err, "cache get")
	}
	return val, nil
}

// Set stores value under key with the given TTL. A nil Cache is a no-op.
func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if c == nil {
		return nil
	}
	if err := c.rdb.Set(ctx, key, value, ttl).Err(); err != nil {
		return errors.Wrap(err, "cache set")
	}
	return nil
}

// Delete removes the given keys.
func (c *Cache) Delete(ctx context.Context, keys ...string) error {
	if c == nil || len(keys) == 0 {
		return nil
	}
	if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
		return errors.Wrap(err, "cache delete")
	}
	return nil
}

// InvalidatePattern removes every key matching the glob pattern, scanning
// in batches to avoid blocking Redis.
func (c *Cache) InvalidatePattern(ctx context.Context, pattern string) error {
	if c == nil {
		return nil
	}
	iter := c.rdb.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		if err := c.rdb.Del(ctx, iter.Val()).Err(); err != nil {
			return errors.Wrap(err, "cache invalidate")
		}
	}
	if err := iter.Err(); err != nil {
		return errors.Wrap(err, "cache scan")
	}
	return nil
}

// Flush clears the whole database. Used by the cache-flush CLI.
func (c *Cache) Flush(ctx context.Context) error {
	if c == nil {
		return nil
	}
	if err := c.rdb.FlushDB(ctx).Err(); err != nil {
		return errors.Wrap(err, "cache flush")
	}
	return nil
}

// Ping reports whether Redis is reachable. A nil Cache reports healthy so
// readiness checks pass when caching is not configured.
func (c *Cache) Ping(ctx context.Context) error {
	if c == nil {
		return nil
	}
	if err := c.rdb.Ping(ctx).Err(); err != nil {
		return errors.Wrap(err, "cache ping")
	}
	return nil
}

// Close releases the underlying connection.
func (c *Cache) Close() error {
	if c == nil {
		return nil
	}
	return c.rdb.Close()
}
