package repository

import (
	"context"
	"fmt"
	"sort"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmatteo/changuito/internal/domain/feed"
)

const (
	listFeedSQL = `SELECT ean, name, brand, category, description, image_url, images, relevance
		FROM products
		WHERE ($1 = '' OR category = $1)
		ORDER BY relevance DESC, name ASC
		LIMIT $2 OFFSET $3`

	countFeedSQL = `SELECT count(*) FROM products WHERE ($1 = '' OR category = $1)`

	searchFeedSQL = `SELECT ean, name, brand, category, description, image_url, images, relevance
		FROM products
		WHERE name ILIKE '%' || $1 || '%' OR brand ILIKE '%' || $1 || '%'
		ORDER BY relevance DESC, name ASC
		LIMIT $2 OFFSET $3`

	countSearchSQL = `SELECT count(*) FROM products
		WHERE name ILIKE '%' || $1 || '%' OR brand ILIKE '%' || $1 || '%'`

	getFeedProductSQL = `SELECT ean, name, brand, category, description, image_url, images, relevance
		FROM products WHERE ean = $1`

	offersForSQL = `SELECT sp.product_ean, s.name, sp.price, sp.list_price, sp.reference_price,
			COALESCE(sp.reference_unit, ''), sp.is_available, sp.product_url, sp.scraped_at
		FROM storefront_products sp
		JOIN storefronts s ON s.id = sp.storefront_id
		WHERE sp.product_ean = ANY($1)
		ORDER BY sp.product_ean, sp.price ASC`

	historyForSQL = `SELECT s.name, ph.price, ph.list_price, ph.scraped_at
		FROM price_history ph
		JOIN storefront_products sp ON sp.id = ph.storefront_product_id
		JOIN storefronts s ON s.id = sp.storefront_id
		WHERE sp.product_ean = $1
		ORDER BY ph.scraped_at DESC`

	categoriesSQL = `SELECT DISTINCT category FROM products WHERE category <> '' ORDER BY category`

	feedStatsSQL = `SELECT
			(SELECT count(*) FROM products),
			(SELECT count(*) FROM storefronts),
			(SELECT count(*) FROM storefront_products),
			(SELECT count(*) FROM storefront_products WHERE is_available),
			(SELECT count(DISTINCT category) FROM products WHERE category <> ''),
			(SELECT max(scraped_at) FROM storefront_products)`
)

var _ feed.Repository = (*FeedRepository)(nil)

// FeedRepository implements feed.Repository backed by PostgreSQL. Offers are
// attached with a second query per page rather than a fanned-out join.
type FeedRepository struct {
	pool *pgxpool.Pool
}

// NewFeedRepository returns a FeedRepository that uses the given pool.
func NewFeedRepository(pool *pgxpool.Pool) *FeedRepository {
	return &FeedRepository{pool: pool}
}

// List returns a page of products ordered by relevance then name. When
// SortByPrice is set the page is reordered by cheapest available offer,
// products without one last.
func (r *FeedRepository) List(ctx context.Context, p feed.ListParams) (*feed.Page, error) {
	rows, err := r.pool.Query(ctx, listFeedSQL, p.Category, p.Limit, p.Offset)
	if err != nil {
		return nil, fmt.Errorf("listing products: %w", err)
	}
	items, err := pgx.CollectRows(rows, scanFeedProduct)
	if err != nil {
		return nil, fmt.Errorf("listing products: %w", err)
	}

	var total int64
	if err := r.pool.QueryRow(ctx, countFeedSQL, p.Category).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting products: %w", err)
	}

	if err := r.attachOffers(ctx, items); err != nil {
		return nil, err
	}
	if p.SortByPrice {
		sortByCheapest(items)
	}
	return &feed.Page{Items: items, Total: total, Limit: p.Limit, Offset: p.Offset}, nil
}

// Search returns products whose name or brand matches the query.
func (r *FeedRepository) Search(ctx context.Context, query string, limit, offset int) (*feed.Page, error) {
	rows, err := r.pool.Query(ctx, searchFeedSQL, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("searching products: %w", err)
	}
	items, err := pgx.CollectRows(rows, scanFeedProduct)
	if err != nil {
		return nil, fmt.Errorf("searching products: %w", err)
	}

	var total int64
	if err := r.pool.QueryRow(ctx, countSearchSQL, query).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting search results: %w", err)
	}

	if err := r.attachOffers(ctx, items); err != nil {
		return nil, err
	}
	return &feed.Page{Items: items, Total: total, Limit: limit, Offset: offset}, nil
}

// GetDetail returns one product with its offers and full price history.
func (r *FeedRepository) GetDetail(ctx context.Context, ean string) (*feed.Detail, error) {
	rows, err := r.pool.Query(ctx, getFeedProductSQL, ean)
	if err != nil {
		return nil, fmt.Errorf("getting product %q: %w", ean, err)
	}
	p, err := pgx.CollectExactlyOneRow(rows, scanFeedProduct)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, feed.ErrNotFound
		}
		return nil, fmt.Errorf("getting product %q: %w", ean, err)
	}

	items := []feed.Product{p}
	if err := r.attachOffers(ctx, items); err != nil {
		return nil, err
	}

	hrows, err := r.pool.Query(ctx, historyForSQL, ean)
	if err != nil {
		return nil, fmt.Errorf("loading history for %q: %w", ean, err)
	}
	history, err := pgx.CollectRows(hrows, func(row pgx.CollectableRow) (feed.HistoryPoint, error) {
		var h feed.HistoryPoint
		err := row.Scan(&h.Storefront, &h.Price, &h.ListPrice, &h.ScrapedAt)
		return h, err
	})
	if err != nil {
		return nil, fmt.Errorf("loading history for %q: %w", ean, err)
	}

	return &feed.Detail{Product: items[0], History: history}, nil
}

// Categories returns the distinct non-empty categories in the catalog.
func (r *FeedRepository) Categories(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, categoriesSQL)
	if err != nil {
		return nil, fmt.Errorf("listing categories: %w", err)
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

// Stats returns catalog-wide aggregate counts.
func (r *FeedRepository) Stats(ctx context.Context) (*feed.Stats, error) {
	var s feed.Stats
	err := r.pool.QueryRow(ctx, feedStatsSQL).Scan(
		&s.Products, &s.Storefronts, &s.Offers, &s.Available, &s.Categories, &s.LastScrapedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("loading stats: %w", err)
	}
	return &s, nil
}

// attachOffers loads current offers for all products in items and derives
// the cheapest available one per product.
func (r *FeedRepository) attachOffers(ctx context.Context, items []feed.Product) error {
	if len(items) == 0 {
		return nil
	}
	eans := make([]string, len(items))
	index := make(map[string]int, len(items))
	for i := range items {
		eans[i] = items[i].EAN
		index[items[i].EAN] = i
	}

	rows, err := r.pool.Query(ctx, offersForSQL, eans)
	if err != nil {
		return fmt.Errorf("loading offers: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			ean string
			o   feed.Offer
		)
		if err := rows.Scan(&ean, &o.Storefront, &o.Price, &o.ListPrice,
			&o.ReferencePrice, &o.ReferenceUnit, &o.IsAvailable, &o.ProductURL, &o.ScrapedAt); err != nil {
			return fmt.Errorf("scanning offer: %w", err)
		}
		i, ok := index[ean]
		if !ok {
			continue
		}
		items[i].Offers = append(items[i].Offers, o)
		if o.IsAvailable && (!items[i].CheapestPrice.Valid || o.Price.LessThan(items[i].CheapestPrice.Decimal)) {
			items[i].CheapestPrice.Decimal = o.Price
			items[i].CheapestPrice.Valid = true
			items[i].CheapestStore = o.Storefront
		}
	}
	return rows.Err()
}

func sortByCheapest(items []feed.Product) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i].CheapestPrice, items[j].CheapestPrice
		switch {
		case a.Valid && b.Valid:
			return a.Decimal.LessThan(b.Decimal)
		case a.Valid:
			return true
		default:
			return false
		}
	})
}

func scanFeedProduct(row pgx.CollectableRow) (feed.Product, error) {
	var p feed.Product
	err := row.Scan(&p.EAN, &p.Name, &p.Brand, &p.Category, &p.Description,
		&p.ImageURL, &p.Images, &p.Relevance)
	return p, err
}
