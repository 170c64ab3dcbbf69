// Package api exposes the read-only HTTP surface of the price catalog:
// product listings, search, per-product detail with history, categories and
// aggregate stats, with a cache-aside layer in front of the repository.
package api

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/dmatteo/changuito/internal/domain/feed"
)

// Cache is the subset of the cache the handler needs. All values are
// pre-encoded JSON payloads.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Handler serves the read API, delegating to the feed repository and
// short-circuiting through the cache where possible.
type Handler struct {
	feed  feed.Repository
	cache Cache
	lg    *zap.Logger
}

// NewHandler constructs a Handler with the required dependencies.
func NewHandler(repo feed.Repository, cache Cache, lg *zap.Logger) *Handler {
	return &Handler{feed: repo, cache: cache, lg: lg}
}

// Register attaches all API routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/products", h.listProducts)
	mux.HandleFunc("GET /api/products/search", h.searchProducts)
	mux.HandleFunc("GET /api/products/category/{category}", h.listByCategory)
	mux.HandleFunc("GET /api/products/{ean}", h.getProduct)
	mux.HandleFunc("GET /api/categories", h.listCategories)
	mux.HandleFunc("GET /api/stats", h.getStats)
}
