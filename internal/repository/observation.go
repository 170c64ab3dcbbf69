package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmatteo/changuito/internal/domain/observation"
)

const (
	upsertObservationSQL = `INSERT INTO storefront_products
			(product_ean, storefront_id, external_id, price, list_price, reference_price, reference_unit, is_available, product_url, scraped_at)
		VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, NULLIF($7, ''), $8, $9, $10)
		ON CONFLICT (product_ean, storefront_id) DO UPDATE SET
			external_id = COALESCE(EXCLUDED.external_id, storefront_products.external_id),
			price = EXCLUDED.price,
			list_price = EXCLUDED.list_price,
			reference_price = EXCLUDED.reference_price,
			reference_unit = EXCLUDED.reference_unit,
			is_available = EXCLUDED.is_available,
			product_url = EXCLUDED.product_url,
			scraped_at = EXCLUDED.scraped_at`

	listStaleSQL = `SELECT sp.id, sp.product_ean, COALESCE(sp.external_id, ''), sp.price, sp.storefront_id, s.name
		FROM storefront_products sp
		JOIN storefronts s ON s.id = sp.storefront_id
		ORDER BY sp.last_checked_at ASC NULLS FIRST
		LIMIT $1`

	applyUpdateSQL = `UPDATE storefront_products SET
			price = $2,
			list_price = $3,
			reference_price = $4,
			reference_unit = NULLIF($5, ''),
			is_available = $6,
			external_id = COALESCE(NULLIF($7, ''), external_id),
			last_checked_at = $8
		WHERE id = $1`

	markUnavailableSQL = `UPDATE storefront_products SET is_available = false, last_checked_at = $2 WHERE id = $1`

	appendHistorySQL = `INSERT INTO price_history (storefront_product_id, price, list_price, scraped_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id`
)

var _ observation.Repository = (*ObservationRepository)(nil)

// ObservationRepository implements observation.Repository backed by
// PostgreSQL.
type ObservationRepository struct {
	pool *pgxpool.Pool
}

// NewObservationRepository returns an ObservationRepository that uses the
// given pool.
func NewObservationRepository(pool *pgxpool.Pool) *ObservationRepository {
	return &ObservationRepository{pool: pool}
}

// Upsert writes the price snapshot for (EAN, storefront), creating the row
// on first discovery. An existing external id is never clobbered by an
// empty one.
func (r *ObservationRepository) Upsert(ctx context.Context, o *observation.Observation) error {
	_, err := r.pool.Exec(ctx, upsertObservationSQL,
		o.ProductEAN, o.StorefrontID, o.ExternalID,
		o.Price, o.ListPrice, o.ReferencePrice, o.ReferenceUnit,
		o.IsAvailable, o.ProductURL, o.ScrapedAt,
	)
	if err != nil {
		return fmt.Errorf("upserting observation %q/%d: %w", o.ProductEAN, o.StorefrontID, err)
	}
	return nil
}

// ListStale returns the oldest-checked observations, never-checked first.
func (r *ObservationRepository) ListStale(ctx context.Context, limit int) ([]observation.Stale, error) {
	rows, err := r.pool.Query(ctx, listStaleSQL, limit)
	if err != nil {
		return nil, fmt.Errorf("listing stale observations: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (observation.Stale, error) {
		var s observation.Stale
		err := row.Scan(&s.ID, &s.ProductEAN, &s.ExternalID, &s.Price, &s.StorefrontID, &s.StorefrontName)
		return s, err
	})
}

// ApplyUpdate writes fresh snapshot values after a successful refresh.
func (r *ObservationRepository) ApplyUpdate(ctx context.Context, id int64, u observation.Update) error {
	_, err := r.pool.Exec(ctx, applyUpdateSQL,
		id, u.Price, u.ListPrice, u.ReferencePrice, u.ReferenceUnit,
		u.IsAvailable, u.ExternalID, u.CheckedAt,
	)
	if err != nil {
		return fmt.Errorf("updating observation %d: %w", id, err)
	}
	return nil
}

// MarkUnavailable flips availability and stamps the checked time.
func (r *ObservationRepository) MarkUnavailable(ctx context.Context, id int64, checkedAt time.Time) error {
	_, err := r.pool.Exec(ctx, markUnavailableSQL, id, checkedAt)
	if err != nil {
		return fmt.Errorf("marking observation %d unavailable: %w", id, err)
	}
	return nil
}

// AppendHistory inserts one immutable price history row.
func (r *ObservationRepository) AppendHistory(ctx context.Context, e *observation.HistoryEntry) error {
	err := r.pool.QueryRow(ctx, appendHistorySQL, e.ObservationID, e.Price, e.ListPrice, e.ScrapedAt).Scan(&e.ID)
	if err != nil {
		return fmt.Errorf("appending history for observation %d: %w", e.ObservationID, err)
	}
	return nil
}
