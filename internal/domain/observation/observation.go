// Package observation models per-storefront price observations and their
// append-only price history.
package observation

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Observation is the current price snapshot of one catalog product at one
// storefront. At most one observation exists per (EAN, storefront) pair; it
// is created on first discovery and mutated on every refresh. Observations
// are never deleted — disappearance from the storefront flips IsAvailable.
type Observation struct {
	ID           int64
	ProductEAN   string
	StorefrontID int32
	// ExternalID is the storefront-local product identifier, when known.
	// It enables the fast lookup path during refresh.
	ExternalID     string
	Price          decimal.Decimal
	ListPrice      decimal.Decimal
	ReferencePrice decimal.NullDecimal
	ReferenceUnit  string
	IsAvailable    bool
	ProductURL     string
	LastCheckedAt  *time.Time
	ScrapedAt      time.Time
}

// HistoryEntry is one append-only price history row, written exactly when a
// refresh detects a price change larger than one cent.
type HistoryEntry struct {
	ID            int64
	ObservationID int64
	Price         decimal.Decimal
	ListPrice     decimal.Decimal
	ScrapedAt     time.Time
}

// Stale is the projection of an observation selected for re-validation,
// carrying just enough to drive the two lookup paths and the price
// comparison.
type Stale struct {
	ID             int64
	ProductEAN     string
	ExternalID     string
	Price          decimal.Decimal
	StorefrontID   int32
	StorefrontName string
}

// Update holds the fresh values written back to an observation after a
// successful refresh lookup.
type Update struct {
	Price          decimal.Decimal
	ListPrice      decimal.Decimal
	ReferencePrice decimal.NullDecimal
	ReferenceUnit  string
	IsAvailable    bool
	ExternalID     string
	CheckedAt      time.Time
}

// Repository defines persistence operations for price observations.
type Repository interface {
	// Upsert creates the observation for (EAN, storefront) or replaces
	// its snapshot fields, without touching price history.
	Upsert(ctx context.Context, o *Observation) error

	// ListStale returns up to limit observations across all storefronts,
	// oldest-checked first with never-checked rows leading.
	ListStale(ctx context.Context, limit int) ([]Stale, error)

	// ApplyUpdate writes fresh snapshot values to one observation.
	ApplyUpdate(ctx context.Context, id int64, u Update) error

	// MarkUnavailable flips the availability flag and stamps the checked
	// time, keeping the row.
	MarkUnavailable(ctx context.Context, id int64, checkedAt time.Time) error

	// AppendHistory inserts an immutable price history entry.
	AppendHistory(ctx context.Context, e *HistoryEntry) error
}
