package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmatteo/changuito/internal/domain/storefront"
)

// getOrCreateStorefrontSQL resolves a storefront id by name, creating the
// row on first encounter. The no-op DO UPDATE makes RETURNING yield the id
// on conflict as well.
const getOrCreateStorefrontSQL = `INSERT INTO storefronts (name) VALUES ($1)
	ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
	RETURNING id, name`

var _ storefront.Repository = (*StorefrontRepository)(nil)

// StorefrontRepository implements storefront.Repository backed by PostgreSQL.
type StorefrontRepository struct {
	pool *pgxpool.Pool
}

// NewStorefrontRepository returns a StorefrontRepository that uses the given
// pool.
func NewStorefrontRepository(pool *pgxpool.Pool) *StorefrontRepository {
	return &StorefrontRepository{pool: pool}
}

// GetOrCreate resolves a storefront by name, creating it lazily.
func (r *StorefrontRepository) GetOrCreate(ctx context.Context, name string) (*storefront.Storefront, error) {
	var sf storefront.Storefront
	err := r.pool.QueryRow(ctx, getOrCreateStorefrontSQL, name).Scan(&sf.ID, &sf.Name)
	if err != nil {
		return nil, fmt.Errorf("resolving storefront %q: %w", name, err)
	}
	return &sf, nil
}
