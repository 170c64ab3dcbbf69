package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/dmatteo/changuito/internal/cache"
	"github.com/dmatteo/changuito/internal/domain/feed"
)

// memoryCache is an in-process Cache for handler tests.
type memoryCache struct {
	mu   sync.Mutex
	data map[string][]byte
	ttls map[string]time.Duration
}

func newMemoryCache() *memoryCache {
	return &memoryCache{data: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (c *memoryCache) Get(_ context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if v, ok := c.data[key]; ok {
		return v, nil
	}
	return nil, cache.ErrMiss
}

func (c *memoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	c.ttls[key] = ttl
	return nil
}

// mockFeed implements feed.Repository with overridable funcs.
type mockFeed struct {
	listFn       func(ctx context.Context, p feed.ListParams) (*feed.Page, error)
	searchFn     func(ctx context.Context, q string, limit, offset int) (*feed.Page, error)
	getDetailFn  func(ctx context.Context, ean string) (*feed.Detail, error)
	categoriesFn func(ctx context.Context) ([]string, error)
	statsFn      func(ctx context.Context) (*feed.Stats, error)

	listCalls int
}

func (m *mockFeed) List(ctx context.Context, p feed.ListParams) (*feed.Page, error) {
	m.listCalls++
	if m.listFn != nil {
		return m.listFn(ctx, p)
	}
	return &feed.Page{Items: []feed.Product{}, Limit: p.Limit, Offset: p.Offset}, nil
}

func (m *mockFeed) Search(ctx context.Context, q string, limit, offset int) (*feed.Page, error) {
	if m.searchFn != nil {
		return m.searchFn(ctx, q, limit, offset)
	}
	return &feed.Page{Items: []feed.Product{}, Limit: limit, Offset: offset}, nil
}

func (m *mockFeed) GetDetail(ctx context.Context, ean string) (*feed.Detail, error) {
	if m.getDetailFn != nil {
		return m.getDetailFn(ctx, ean)
	}
	return nil, feed.ErrNotFound
}

func (m *mockFeed) Categories(ctx context.Context) ([]string, error) {
	if m.categoriesFn != nil {
		return m.categoriesFn(ctx)
	}
	return nil, nil
}

func (m *mockFeed) Stats(ctx context.Context) (*feed.Stats, error) {
	if m.statsFn != nil {
		return m.statsFn(ctx)
	}
	return &feed.Stats{}, nil
}

func newTestServer(repo *mockFeed, c Cache) *httptest.Server {
	h := NewHandler(repo, c, zap.NewNop())
	mux := http.NewServeMux()
	h.Register(mux)
	return httptest.NewServer(mux)
}

func sampleProduct() feed.Product {
	return feed.Product{
		EAN:      "7790000000001",
		Name:     "Leche Entera 1L",
		Brand:    "La Serenisima",
		Category: "Lacteos",
		Offers: []feed.Offer{{
			Storefront:  "disco",
			Price:       decimal.NewFromInt(1500),
			ListPrice:   decimal.NewFromInt(1800),
			IsAvailable: true,
		}},
		CheapestPrice: decimal.NullDecimal{Decimal: decimal.NewFromInt(1500), Valid: true},
		CheapestStore: "disco",
	}
}

func TestListProducts(t *testing.T) {
	repo := &mockFeed{
		listFn: func(_ context.Context, p feed.ListParams) (*feed.Page, error) {
			assert.Equal(t, 20, p.Limit)
			assert.Equal(t, 0, p.Offset)
			return &feed.Page{Items: []feed.Product{sampleProduct()}, Total: 1, Limit: p.Limit}, nil
		},
	}
	mc := newMemoryCache()
	srv := newTestServer(repo, mc)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/products")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var page pagePayload
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&page))
	require.Len(t, page.Items, 1)
	assert.Equal(t, "7790000000001", page.Items[0].EAN)
	assert.Equal(t, "disco", page.Items[0].CheapestStore)
	require.Len(t, page.Items[0].Offers, 1)

	assert.Equal(t, cache.TTLList, mc.ttls["products:list:20:0:false"])
}

func TestListProductsServedFromCache(t *testing.T) {
	repo := &mockFeed{}
	mc := newMemoryCache()
	mc.data["products:list:20:0:false"] = []byte(`{"items":[],"total":42,"limit":20,"offset":0}`)

	srv := newTestServer(repo, mc)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/products")
	require.NoError(t, err)
	defer resp.Body.Close()

	var page pagePayload
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&page))
	assert.Equal(t, int64(42), page.Total)
	assert.Zero(t, repo.listCalls, "cache hit must not reach the repository")
}

func TestListProductsLimitClamped(t *testing.T) {
	repo := &mockFeed{
		listFn: func(_ context.Context, p feed.ListParams) (*feed.Page, error) {
			assert.Equal(t, 100, p.Limit)
			assert.Equal(t, 10, p.Offset)
			assert.True(t, p.SortByPrice)
			return &feed.Page{Items: []feed.Product{}}, nil
		},
	}
	srv := newTestServer(repo, newMemoryCache())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/products?limit=5000&offset=10&sort=price")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, repo.listCalls)
}

func TestSearchRejectsShortQuery(t *testing.T) {
	srv := newTestServer(&mockFeed{}, newMemoryCache())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/products/search?q=a")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Contains(t, body["error"], "2 characters")
}

func TestSearchProducts(t *testing.T) {
	repo := &mockFeed{
		searchFn: func(_ context.Context, q string, limit, offset int) (*feed.Page, error) {
			assert.Equal(t, "leche", q)
			return &feed.Page{Items: []feed.Product{sampleProduct()}, Total: 1, Limit: limit}, nil
		},
	}
	srv := newTestServer(repo, newMemoryCache())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/products/search?q=leche")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	var page pagePayload
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&page))
	assert.Equal(t, int64(1), page.Total)
}

func TestListByCategory(t *testing.T) {
	repo := &mockFeed{
		listFn: func(_ context.Context, p feed.ListParams) (*feed.Page, error) {
			assert.Equal(t, "Lacteos", p.Category)
			return &feed.Page{Items: []feed.Product{sampleProduct()}, Total: 1}, nil
		},
	}
	srv := newTestServer(repo, newMemoryCache())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/products/category/Lacteos")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestGetProductNotFound(t *testing.T) {
	srv := newTestServer(&mockFeed{}, newMemoryCache())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/products/0000000000000")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestGetProductDetail(t *testing.T) {
	repo := &mockFeed{
		getDetailFn: func(_ context.Context, ean string) (*feed.Detail, error) {
			require.Equal(t, "7790000000001", ean)
			return &feed.Detail{
				Product: sampleProduct(),
				History: []feed.HistoryPoint{{
					Storefront: "disco",
					Price:      decimal.NewFromInt(1400),
					ListPrice:  decimal.NewFromInt(1700),
					ScrapedAt:  time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC),
				}},
			}, nil
		},
	}
	mc := newMemoryCache()
	srv := newTestServer(repo, mc)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/products/7790000000001")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	var detail detailPayload
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&detail))
	assert.Equal(t, "7790000000001", detail.EAN)
	require.Len(t, detail.History, 1)
	assert.Equal(t, "disco", detail.History[0].Storefront)

	assert.Equal(t, cache.TTLDetail, mc.ttls["products:detail:7790000000001"])
}

func TestRepositoryErrorIs500(t *testing.T) {
	repo := &mockFeed{
		listFn: func(context.Context, feed.ListParams) (*feed.Page, error) {
			return nil, errors.New("db down")
		},
	}
	srv := newTestServer(repo, newMemoryCache())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/products")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestCategories(t *testing.T) {
	repo := &mockFeed{
		categoriesFn: func(context.Context) ([]string, error) {
			return []string{"Almacen", "Lacteos"}, nil
		},
	}
	srv := newTestServer(repo, newMemoryCache())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/categories")
	require.NoError(t, err)
	defer resp.Body.Close()

	var cats []string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&cats))
	assert.Equal(t, []string{"Almacen", "Lacteos"}, cats)
}

func TestStats(t *testing.T) {
	repo := &mockFeed{
		statsFn: func(context.Context) (*feed.Stats, error) {
			return &feed.Stats{Products: 12, Storefronts: 7, Offers: 40, Available: 38, Categories: 5}, nil
		},
	}
	mc := newMemoryCache()
	srv := newTestServer(repo, mc)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/stats")
	require.NoError(t, err)
	defer resp.Body.Close()

	var stats statsPayload
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&stats))
	assert.Equal(t, int64(12), stats.Products)
	assert.Equal(t, int64(7), stats.Storefronts)

	assert.Equal(t, cache.TTLStats, mc.ttls["stats"])
}
