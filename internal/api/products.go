package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/dmatteo/changuito/internal/cache"
	"github.com/dmatteo/changuito/internal/domain/feed"
)

// minSearchQuery is the shortest accepted search term.
const minSearchQuery = 2

type offerPayload struct {
	Storefront     string           `json:"storefront"`
	Price          decimal.Decimal  `json:"price"`
	ListPrice      decimal.Decimal  `json:"listPrice"`
	ReferencePrice *decimal.Decimal `json:"referencePrice"`
	ReferenceUnit  *string          `json:"referenceUnit"`
	IsAvailable    bool             `json:"isAvailable"`
	ProductURL     string           `json:"productUrl"`
	ScrapedAt      time.Time        `json:"scrapedAt"`
}

type productPayload struct {
	EAN           string           `json:"ean"`
	Name          string           `json:"name"`
	Brand         string           `json:"brand,omitempty"`
	Category      string           `json:"category,omitempty"`
	Description   string           `json:"description,omitempty"`
	ImageURL      string           `json:"imageUrl,omitempty"`
	Images        []string         `json:"images,omitempty"`
	CheapestPrice *decimal.Decimal `json:"cheapestPrice"`
	CheapestStore string           `json:"cheapestStore,omitempty"`
	Offers        []offerPayload   `json:"offers"`
}

type pagePayload struct {
	Items  []productPayload `json:"items"`
	Total  int64            `json:"total"`
	Limit  int              `json:"limit"`
	Offset int              `json:"offset"`
}

type historyPayload struct {
	Storefront string          `json:"storefront"`
	Price      decimal.Decimal `json:"price"`
	ListPrice  decimal.Decimal `json:"listPrice"`
	ScrapedAt  time.Time       `json:"scrapedAt"`
}

type detailPayload struct {
	productPayload
	History []historyPayload `json:"history"`
}

type statsPayload struct {
	Products      int64      `json:"products"`
	Storefronts   int64      `json:"storefronts"`
	Offers        int64      `json:"offers"`
	Available     int64      `json:"available"`
	Categories    int64      `json:"categories"`
	LastScrapedAt *time.Time `json:"lastScrapedAt"`
}

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	limit, offset := pageParams(r)
	sortByPrice := r.URL.Query().Get("sort") == "price"

	key := fmt.Sprintf("products:list:%d:%d:%t", limit, offset, sortByPrice)
	h.cached(w, r, key, cache.TTLList, func(ctx context.Context) (any, error) {
		page, err := h.feed.List(ctx, feed.ListParams{Limit: limit, Offset: offset, SortByPrice: sortByPrice})
		if err != nil {
			return nil, err
		}
		return toPagePayload(page), nil
	})
}

func (h *Handler) listByCategory(w http.ResponseWriter, r *http.Request) {
	category := r.PathValue("category")
	limit, offset := pageParams(r)

	key := fmt.Sprintf("products:category:%s:%d:%d", category, limit, offset)
	h.cached(w, r, key, cache.TTLList, func(ctx context.Context) (any, error) {
		page, err := h.feed.List(ctx, feed.ListParams{Limit: limit, Offset: offset, Category: category})
		if err != nil {
			return nil, err
		}
		return toPagePayload(page), nil
	})
}

func (h *Handler) searchProducts(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if len(query) < minSearchQuery {
		writeError(w, http.StatusBadRequest, "query must be at least 2 characters")
		return
	}
	limit, offset := pageParams(r)

	key := fmt.Sprintf("products:search:%s:%d:%d", query, limit, offset)
	h.cached(w, r, key, cache.TTLSearch, func(ctx context.Context) (any, error) {
		page, err := h.feed.Search(ctx, query, limit, offset)
		if err != nil {
			return nil, err
		}
		return toPagePayload(page), nil
	})
}

func (h *Handler) getProduct(w http.ResponseWriter, r *http.Request) {
	ean := r.PathValue("ean")
	key := "products:detail:" + ean

	if body, err := h.cache.Get(r.Context(), key); err == nil {
		writeRaw(w, http.StatusOK, body)
		return
	}

	detail, err := h.feed.GetDetail(r.Context(), ean)
	if errors.Is(err, feed.ErrNotFound) {
		writeError(w, http.StatusNotFound, "product not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	h.store(w, r, key, cache.TTLDetail, toDetailPayload(detail))
}

func (h *Handler) listCategories(w http.ResponseWriter, r *http.Request) {
	h.cached(w, r, "categories", cache.TTLCategories, func(ctx context.Context) (any, error) {
		return h.feed.Categories(ctx)
	})
}

func (h *Handler) getStats(w http.ResponseWriter, r *http.Request) {
	h.cached(w, r, "stats", cache.TTLStats, func(ctx context.Context) (any, error) {
		s, err := h.feed.Stats(ctx)
		if err != nil {
			return nil, err
		}
		return statsPayload{
			Products:      s.Products,
			Storefronts:   s.Storefronts,
			Offers:        s.Offers,
			Available:     s.Available,
			Categories:    s.Categories,
			LastScrapedAt: s.LastScrapedAt,
		}, nil
	})
}

func toPagePayload(page *feed.Page) pagePayload {
	items := make([]productPayload, 0, len(page.Items))
	for i := range page.Items {
		items = append(items, toProductPayload(&page.Items[i]))
	}
	return pagePayload{Items: items, Total: page.Total, Limit: page.Limit, Offset: page.Offset}
}

func toProductPayload(p *feed.Product) productPayload {
	out := productPayload{
		EAN:           p.EAN,
		Name:          p.Name,
		Brand:         p.Brand,
		Category:      p.Category,
		Description:   p.Description,
		ImageURL:      p.ImageURL,
		Images:        p.Images,
		CheapestStore: p.CheapestStore,
		Offers:        make([]offerPayload, 0, len(p.Offers)),
	}
	if p.CheapestPrice.Valid {
		out.CheapestPrice = &p.CheapestPrice.Decimal
	}
	for _, o := range p.Offers {
		op := offerPayload{
			Storefront:  o.Storefront,
			Price:       o.Price,
			ListPrice:   o.ListPrice,
			IsAvailable: o.IsAvailable,
			ProductURL:  o.ProductURL,
			ScrapedAt:   o.ScrapedAt,
		}
		if o.ReferencePrice.Valid {
			op.ReferencePrice = &o.ReferencePrice.Decimal
		}
		if o.ReferenceUnit != "" {
			unit := o.ReferenceUnit
			op.ReferenceUnit = &unit
		}
		out.Offers = append(out.Offers, op)
	}
	return out
}

func toDetailPayload(d *feed.Detail) detailPayload {
	out := detailPayload{
		productPayload: toProductPayload(&d.Product),
		History:        make([]historyPayload, 0, len(d.History)),
	}
	for _, hp := range d.History {
		out.History = append(out.History, historyPayload{
			Storefront: hp.Storefront,
			Price:      hp.Price,
			ListPrice:  hp.ListPrice,
			ScrapedAt:  hp.ScrapedAt,
		})
	}
	return out
}
