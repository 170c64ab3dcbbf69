package scrape

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dmatteo/changuito/internal/domain/observation"
	"github.com/dmatteo/changuito/internal/domain/storefront"
	"github.com/dmatteo/changuito/internal/vtex"
)

// priceChangeThreshold absorbs floating point noise and sub-cent rounding:
// a history entry is appended only when the price moved by more than this.
var priceChangeThreshold = decimal.NewFromFloat(0.01)

// RefreshSummary aggregates the outcome of one refresh batch.
type RefreshSummary struct {
	Processed    int
	Updated      int
	PriceChanged int
	Unavailable  int
	Errored      int
	Skipped      int
	Duration     time.Duration
}

// Refresher re-validates already-catalogued price observations against their
// storefronts, oldest-checked first, detecting price changes and appending
// history rows.
type Refresher struct {
	client       *vtex.Client
	observations observation.Repository
	baseURL      func(storefrontName string) (string, bool)
	lg           *zap.Logger
	now          func() time.Time
}

// NewRefresher wires a Refresher using the static roster for base URL
// lookups.
func NewRefresher(client *vtex.Client, observations observation.Repository, lg *zap.Logger) *Refresher {
	return &Refresher{
		client:       client,
		observations: observations,
		baseURL:      storefront.BaseURL,
		lg:           lg,
		now:          time.Now,
	}
}

// RefreshBatch selects up to batchSize stale observations across all
// storefronts and processes them concurrently. A single item's failure is
// counted and never aborts the batch.
func (r *Refresher) RefreshBatch(ctx context.Context, batchSize int) (*RefreshSummary, error) {
	started := time.Now()

	stale, err := r.observations.ListStale(ctx, batchSize)
	if err != nil {
		return nil, errors.Wrap(err, "list stale observations")
	}
	if len(stale) == 0 {
		return &RefreshSummary{Duration: time.Since(started)}, nil
	}

	r.lg.Info("refresh batch started", zap.Int("items", len(stale)))

	var (
		mu      sync.Mutex
		summary RefreshSummary
	)
	summary.Processed = len(stale)

	g := &errgroup.Group{}
	g.SetLimit(maxConcurrentFetches)
	for _, item := range stale {
		g.Go(func() error {
			outcome := r.refreshOne(ctx, item)
			mu.Lock()
			switch outcome {
			case refreshUpdated:
				summary.Updated++
			case refreshPriceChanged:
				summary.Updated++
				summary.PriceChanged++
			case refreshUnavailable:
				summary.Unavailable++
			case refreshSkipped:
				summary.Skipped++
			case refreshErrored:
				summary.Errored++
			}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	summary.Duration = time.Since(started)
	r.lg.Info("refresh batch finished",
		zap.Int("updated", summary.Updated),
		zap.Int("price_changed", summary.PriceChanged),
		zap.Int("unavailable", summary.Unavailable),
		zap.Int("errored", summary.Errored),
		zap.Duration("took", summary.Duration),
	)
	return &summary, nil
}

type refreshOutcome int

const (
	refreshUpdated refreshOutcome = iota
	refreshPriceChanged
	refreshUnavailable
	refreshSkipped
	refreshErrored
)

// refreshOne drives the per-observation state machine: lookup by external ID
// when known, fall back to lookup by EAN, then either update the snapshot or
// mark the observation unavailable.
func (r *Refresher) refreshOne(ctx context.Context, item observation.Stale) refreshOutcome {
	baseURL, ok := r.baseURL(item.StorefrontName)
	if !ok {
		r.lg.Warn("no base URL for storefront", zap.String("storefront", item.StorefrontName))
		return refreshSkipped
	}
	source := sourceName(item.StorefrontName)

	fresh := r.lookup(ctx, baseURL, source, item)
	checkedAt := r.now()

	if fresh == nil {
		// Not found by either path: likely discontinued. Flag it,
		// keep the row.
		if err := r.observations.MarkUnavailable(ctx, item.ID, checkedAt); err != nil {
			r.lg.Error("mark unavailable", zap.Int64("observation", item.ID), zap.Error(err))
			return refreshErrored
		}
		return refreshUnavailable
	}

	// Persist the resolved external ID so the fast path is available next
	// cycle even when this cycle went through the EAN fallback.
	err := r.observations.ApplyUpdate(ctx, item.ID, observation.Update{
		Price:          fresh.Price,
		ListPrice:      fresh.ListPrice,
		ReferencePrice: fresh.ReferencePrice,
		ReferenceUnit:  fresh.ReferenceUnit,
		IsAvailable:    fresh.IsAvailable,
		ExternalID:     fresh.ExternalID,
		CheckedAt:      checkedAt,
	})
	if err != nil {
		r.lg.Error("apply refresh update", zap.Int64("observation", item.ID), zap.Error(err))
		return refreshErrored
	}

	if fresh.Price.Sub(item.Price).Abs().GreaterThan(priceChangeThreshold) {
		r.lg.Info("price changed",
			zap.String("storefront", item.StorefrontName),
			zap.String("ean", item.ProductEAN),
			zap.String("old", item.Price.String()),
			zap.String("new", fresh.Price.String()),
		)
		entry := &observation.HistoryEntry{
			ObservationID: item.ID,
			Price:         fresh.Price,
			ListPrice:     fresh.ListPrice,
			ScrapedAt:     checkedAt,
		}
		if err := r.observations.AppendHistory(ctx, entry); err != nil {
			r.lg.Error("append price history", zap.Int64("observation", item.ID), zap.Error(err))
			return refreshErrored
		}
		return refreshPriceChanged
	}
	return refreshUpdated
}

// lookup tries the external-ID fast path, then the EAN search fallback.
// Returns nil when the product cannot be resolved at the storefront.
func (r *Refresher) lookup(ctx context.Context, baseURL, source string, item observation.Stale) *vtex.Product {
	if item.ExternalID != "" {
		raw, err := r.client.LookupByID(ctx, baseURL, item.ExternalID)
		if err != nil {
			r.lg.Debug("id lookup failed", zap.String("external_id", item.ExternalID), zap.Error(err))
		} else if p := vtex.Normalize(raw, baseURL, source); p != nil {
			return p
		}
	}

	if item.ProductEAN == "" {
		return nil
	}
	raws, err := r.client.Search(ctx, baseURL, item.ProductEAN, 1)
	if err != nil {
		r.lg.Debug("ean lookup failed", zap.String("ean", item.ProductEAN), zap.Error(err))
		return nil
	}
	if len(raws) == 0 {
		return nil
	}
	p := vtex.Normalize(&raws[0], baseURL, source)
	if p == nil {
		return nil
	}
	// Full-text search is fuzzy; make sure we got the product we asked
	// for before trusting its price.
	if !eanEqual(p.EAN, item.ProductEAN) {
		return nil
	}
	return p
}

// eanEqual compares EANs as strings, then as integers to tolerate
// leading-zero formatting drift between storefronts.
func eanEqual(a, b string) bool {
	if a == b {
		return true
	}
	ai, errA := strconv.ParseInt(a, 10, 64)
	bi, errB := strconv.ParseInt(b, 10, 64)
	return errA == nil && errB == nil && ai == bi
}
