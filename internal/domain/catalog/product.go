package catalog

import (
	"context"
	"time"

	"github.com/go-faster/errors"
)

// ErrNotFound is returned when a requested catalog product does not exist.
var ErrNotFound = errors.New("product not found")

// Product is the canonical, store-neutral catalog entry for a grocery
// product, keyed by its EAN (global trade item number). Descriptive fields
// are owned by the master storefront; follower storefronts only read them.
type Product struct {
	EAN         string
	Name        string
	Brand       string
	Category    string
	Description string
	ImageURL    string
	Images      []string
	ProductURL  string
	Relevance   int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// RelevanceRule assigns a relevance score to catalog entries whose name
// matches a keyword, capped at a maximum number of matches per keyword.
type RelevanceRule struct {
	Keyword string
	Score   int
	Limit   int
}

// Repository defines persistence operations for the canonical catalog.
type Repository interface {
	// Upsert creates the product or overwrites its descriptive fields,
	// keyed by EAN. Only the master storefront's writes go through here.
	Upsert(ctx context.Context, p *Product) error

	// GetByEAN returns a single product, or ErrNotFound.
	GetByEAN(ctx context.Context, ean string) (*Product, error)

	// Exists reports whether a catalog entry exists for the EAN.
	Exists(ctx context.Context, ean string) (bool, error)

	// ListEANs returns every EAN in the catalog, used to re-probe
	// storefronts for known products.
	ListEANs(ctx context.Context) ([]string, error)

	// ResetRelevance zeroes the relevance score of every product.
	ResetRelevance(ctx context.Context) error

	// ApplyRelevanceRule scores up to rule.Limit products whose name
	// matches rule.Keyword and returns the number of rows updated.
	ApplyRelevanceRule(ctx context.Context, rule RelevanceRule) (int64, error)
}
