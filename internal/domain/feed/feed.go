// Package feed models the read side of the catalog: products joined with
// their current per-storefront offers, price history, and aggregate stats.
package feed

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when no product exists for the requested EAN.
var ErrNotFound = errors.New("product not found")

// Offer is the current snapshot of one product at one storefront.
type Offer struct {
	Storefront     string
	Price          decimal.Decimal
	ListPrice      decimal.Decimal
	ReferencePrice decimal.NullDecimal
	ReferenceUnit  string
	IsAvailable    bool
	ProductURL     string
	ScrapedAt      time.Time
}

// Product is a catalog entry with its live offers attached. CheapestPrice
// and CheapestStore are derived from the available offers and unset when
// no storefront currently lists the product.
type Product struct {
	EAN           string
	Name          string
	Brand         string
	Category      string
	Description   string
	ImageURL      string
	Images        []string
	Relevance     int
	Offers        []Offer
	CheapestPrice decimal.NullDecimal
	CheapestStore string
}

// Page is one page of a product listing.
type Page struct {
	Items  []Product
	Total  int64
	Limit  int
	Offset int
}

// HistoryPoint is one recorded price change for a product at a storefront.
type HistoryPoint struct {
	Storefront string
	Price      decimal.Decimal
	ListPrice  decimal.Decimal
	ScrapedAt  time.Time
}

// Detail is a single product with its full price history.
type Detail struct {
	Product
	History []HistoryPoint
}

// Stats aggregates catalog-wide counts.
type Stats struct {
	Products      int64
	Storefronts   int64
	Offers        int64
	Available     int64
	Categories    int64
	LastScrapedAt *time.Time
}

// ListParams filters and pages a product listing. The base order is
// relevance descending then name; SortByPrice reorders the returned page by
// cheapest offer.
type ListParams struct {
	Limit       int
	Offset      int
	Category    string
	SortByPrice bool
}

// Repository defines the read operations backing the HTTP API.
type Repository interface {
	// List returns a page of products ordered by relevance then name,
	// optionally filtered by category.
	List(ctx context.Context, p ListParams) (*Page, error)

	// Search returns products whose name or brand matches the query,
	// case-insensitively.
	Search(ctx context.Context, query string, limit, offset int) (*Page, error)

	// GetDetail returns one product with offers and price history, or
	// ErrNotFound.
	GetDetail(ctx context.Context, ean string) (*Detail, error)

	// Categories returns the distinct non-empty categories in the catalog.
	Categories(ctx context.Context) ([]string, error)

	// Stats returns catalog-wide aggregate counts.
	Stats(ctx context.Context) (*Stats, error)
}
