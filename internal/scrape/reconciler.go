// Package scrape contains the aggregation pipeline: per-storefront discovery
// runs, catalog reconciliation, and the recurring price refresh engine.
package scrape

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"github.com/dmatteo/changuito/internal/domain/catalog"
	"github.com/dmatteo/changuito/internal/domain/observation"
	"github.com/dmatteo/changuito/internal/domain/storefront"
	"github.com/dmatteo/changuito/internal/vtex"
)

// SaveReason classifies why a reconciliation did not persist.
type SaveReason string

const (
	// ReasonDBError marks a failed catalog or observation write.
	ReasonDBError SaveReason = "db_error"
	// ReasonInternal marks an unexpected failure inside the reconciler.
	ReasonInternal SaveReason = "exception"
	// ReasonNotInMaster marks a follower discovery whose EAN the master
	// has not catalogued.
	ReasonNotInMaster SaveReason = "not_in_master"
)

// SaveResult is the per-item disposition returned by a Reconciler.
type SaveResult struct {
	Saved  bool
	Reason SaveReason
}

// Reconciler decides how one discovered product is persisted against the
// canonical catalog. Implementations never return errors: every failure maps
// to a typed SaveResult so one bad product cannot abort a run.
type Reconciler interface {
	Reconcile(ctx context.Context, p *vtex.Product, storefrontID int32) SaveResult
}

// NewReconciler selects the reconciliation strategy for a storefront role.
func NewReconciler(
	role storefront.Role,
	products catalog.Repository,
	observations observation.Repository,
	lg *zap.Logger,
) Reconciler {
	if role == storefront.RoleMaster {
		return &masterReconciler{products: products, observations: observations, lg: lg, now: time.Now}
	}
	return &followerReconciler{products: products, observations: observations, lg: lg, now: time.Now}
}

// masterReconciler upserts the canonical catalog entry, then writes the
// price observation. Master writes overwrite descriptive fields
// unconditionally.
type masterReconciler struct {
	products     catalog.Repository
	observations observation.Repository
	lg           *zap.Logger
	now          func() time.Time
}

func (r *masterReconciler) Reconcile(ctx context.Context, p *vtex.Product, storefrontID int32) (res SaveResult) {
	defer recoverToResult(&res, r.lg, p.EAN)

	entry := &catalog.Product{
		EAN:         p.EAN,
		Name:        p.Name,
		Brand:       p.Brand,
		Description: orDefault(p.Description, p.Name),
		ImageURL:    p.Image,
		Images:      p.Images,
		ProductURL:  p.Link,
	}
	if len(p.Categories) > 0 {
		entry.Category = p.Categories[0]
	}

	if err := r.products.Upsert(ctx, entry); err != nil {
		r.lg.Error("upsert catalog product", zap.String("ean", p.EAN), zap.Error(err))
		return SaveResult{Reason: ReasonDBError}
	}

	if err := r.observations.Upsert(ctx, buildObservation(p, storefrontID, r.now())); err != nil {
		r.lg.Error("write observation", zap.String("ean", p.EAN), zap.Error(err))
		return SaveResult{Reason: ReasonDBError}
	}

	return SaveResult{Saved: true}
}

// followerReconciler only attaches prices to products the master has already
// catalogued; it never creates or mutates catalog entries.
type followerReconciler struct {
	products     catalog.Repository
	observations observation.Repository
	lg           *zap.Logger
	now          func() time.Time
}

func (r *followerReconciler) Reconcile(ctx context.Context, p *vtex.Product, storefrontID int32) (res SaveResult) {
	defer recoverToResult(&res, r.lg, p.EAN)

	exists, err := r.products.Exists(ctx, p.EAN)
	if err != nil && !errors.Is(err, catalog.ErrNotFound) {
		r.lg.Error("check catalog product", zap.String("ean", p.EAN), zap.Error(err))
		return SaveResult{Reason: ReasonDBError}
	}
	if !exists {
		return SaveResult{Reason: ReasonNotInMaster}
	}

	if err := r.observations.Upsert(ctx, buildObservation(p, storefrontID, r.now())); err != nil {
		r.lg.Error("write observation", zap.String("ean", p.EAN), zap.Error(err))
		return SaveResult{Reason: ReasonDBError}
	}

	return SaveResult{Saved: true}
}

func buildObservation(p *vtex.Product, storefrontID int32, now time.Time) *observation.Observation {
	return &observation.Observation{
		ProductEAN:     p.EAN,
		StorefrontID:   storefrontID,
		ExternalID:     p.ExternalID,
		Price:          p.Price,
		ListPrice:      p.ListPrice,
		ReferencePrice: p.ReferencePrice,
		ReferenceUnit:  p.ReferenceUnit,
		IsAvailable:    p.IsAvailable,
		ProductURL:     p.Link,
		ScrapedAt:      now,
	}
}

// recoverToResult converts a panic inside a reconciler into the typed
// "exception" disposition so the run keeps going.
func recoverToResult(res *SaveResult, lg *zap.Logger, ean string) {
	if rec := recover(); rec != nil {
		lg.Error("reconciler panic",
			zap.String("ean", ean),
			zap.Any("panic", rec),
			zap.Stack("stack"),
		)
		*res = SaveResult{Reason: ReasonInternal}
	}
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
