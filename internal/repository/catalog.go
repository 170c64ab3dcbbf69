package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmatteo/changuito/internal/domain/catalog"
)

const (
	upsertProductSQL = `INSERT INTO products (ean, name, brand, category, description, image_url, images, product_url)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (ean) DO UPDATE SET
			name = EXCLUDED.name,
			brand = EXCLUDED.brand,
			category = EXCLUDED.category,
			description = EXCLUDED.description,
			image_url = EXCLUDED.image_url,
			images = EXCLUDED.images,
			product_url = EXCLUDED.product_url,
			updated_at = now()`

	getProductByEANSQL = `SELECT ean, name, brand, category, description, image_url, images, product_url, relevance, created_at, updated_at
		FROM products WHERE ean = $1`

	productExistsSQL = `SELECT EXISTS (SELECT 1 FROM products WHERE ean = $1)`

	listEANsSQL = `SELECT ean FROM products ORDER BY ean`

	resetRelevanceSQL = `UPDATE products SET relevance = 0 WHERE relevance <> 0`

	applyRelevanceSQL = `UPDATE products SET relevance = $2
		WHERE ean IN (
			SELECT ean FROM products WHERE name ILIKE '%' || $1 || '%'
			ORDER BY name LIMIT $3
		)`
)

var _ catalog.Repository = (*CatalogRepository)(nil)

// CatalogRepository implements catalog.Repository backed by PostgreSQL.
type CatalogRepository struct {
	pool *pgxpool.Pool
}

// NewCatalogRepository returns a CatalogRepository that uses the given pool.
func NewCatalogRepository(pool *pgxpool.Pool) *CatalogRepository {
	return &CatalogRepository{pool: pool}
}

// Upsert creates or overwrites the catalog entry keyed by EAN.
func (r *CatalogRepository) Upsert(ctx context.Context, p *catalog.Product) error {
	_, err := r.pool.Exec(ctx, upsertProductSQL,
		p.EAN, p.Name, p.Brand, p.Category, p.Description,
		p.ImageURL, p.Images, p.ProductURL,
	)
	if err != nil {
		return fmt.Errorf("upserting product %q: %w", p.EAN, err)
	}
	return nil
}

// GetByEAN returns a single catalog entry, or catalog.ErrNotFound.
func (r *CatalogRepository) GetByEAN(ctx context.Context, ean string) (*catalog.Product, error) {
	rows, err := r.pool.Query(ctx, getProductByEANSQL, ean)
	if err != nil {
		return nil, fmt.Errorf("getting product %q: %w", ean, err)
	}

	p, err := pgx.CollectExactlyOneRow(rows, scanCatalogProduct)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, catalog.ErrNotFound
		}
		return nil, fmt.Errorf("getting product %q: %w", ean, err)
	}
	return &p, nil
}

// Exists reports whether a catalog entry exists for the EAN.
func (r *CatalogRepository) Exists(ctx context.Context, ean string) (bool, error) {
	var exists bool
	if err := r.pool.QueryRow(ctx, productExistsSQL, ean).Scan(&exists); err != nil {
		return false, fmt.Errorf("checking product %q: %w", ean, err)
	}
	return exists, nil
}

// ListEANs returns every EAN in the catalog.
func (r *CatalogRepository) ListEANs(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, listEANsSQL)
	if err != nil {
		return nil, fmt.Errorf("listing eans: %w", err)
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

// ResetRelevance zeroes every relevance score.
func (r *CatalogRepository) ResetRelevance(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, resetRelevanceSQL); err != nil {
		return fmt.Errorf("resetting relevance: %w", err)
	}
	return nil
}

// ApplyRelevanceRule scores up to rule.Limit name matches for one keyword.
func (r *CatalogRepository) ApplyRelevanceRule(ctx context.Context, rule catalog.RelevanceRule) (int64, error) {
	tag, err := r.pool.Exec(ctx, applyRelevanceSQL, rule.Keyword, rule.Score, rule.Limit)
	if err != nil {
		return 0, fmt.Errorf("applying relevance rule %q: %w", rule.Keyword, err)
	}
	return tag.RowsAffected(), nil
}

func scanCatalogProduct(row pgx.CollectableRow) (catalog.Product, error) {
	var p catalog.Product
	err := row.Scan(
		&p.EAN, &p.Name, &p.Brand, &p.Category, &p.Description,
		&p.ImageURL, &p.Images, &p.ProductURL, &p.Relevance,
		&p.CreatedAt, &p.UpdatedAt,
	)
	return p, err
}
