// Package vtex implements the storefront client and product normalizer for
// shops built on the VTEX commerce platform.
package vtex

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
)

const (
	searchPath = "/_v/segment/graphql/v1/"
	lookupPath = "/api/catalog_system/pub/products/search"

	persistedQuerySender   = "vtex.store-resources@0.x"
	persistedQueryProvider = "vtex.search-graphql@0.x"

	maxRetries     = 3
	defaultTimeout = 15 * time.Second

	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"
)

// Client queries VTEX storefront search endpoints. A single client is shared
// across storefronts; the base URL is passed per call.
type Client struct {
	http *http.Client
	// hash identifies the productSuggestions persisted query. The process
	// refuses to start without it (see app.LoadConfig).
	hash    string
	backoff time.Duration
}

// NewClient creates a Client for the given persisted-query hash. The
// underlying transport reuses connections across the many concurrent
// requests one aggregation run produces.
func NewClient(hash string) *Client {
	return &Client{
		http: &http.Client{
			Timeout: defaultTimeout,
			Transport: &http.Transport{
				MaxIdleConns:        50,
				MaxIdleConnsPerHost: 50,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		hash:    hash,
		backoff: time.Second,
	}
}

// searchVariables is the persisted query's variables object, transported
// base64-encoded inside the extensions parameter.
type searchVariables struct {
	ProductOriginVtex    bool     `json:"productOriginVtex"`
	SimulationBehavior   string   `json:"simulationBehavior"`
	HideUnavailableItems bool     `json:"hideUnavailableItems"`
	FullText             string   `json:"fullText"`
	Count                int      `json:"count"`
	ShippingOptions      []string `json:"shippingOptions"`
	Variant              *string  `json:"variant"`
}

type persistedQuery struct {
	Version    int    `json:"version"`
	Sha256Hash string `json:"sha256Hash"`
	Sender     string `json:"sender"`
	Provider   string `json:"provider"`
}

type searchExtensions struct {
	PersistedQuery persistedQuery `json:"persistedQuery"`
	Variables      string         `json:"variables"`
}

// searchURL builds the full persisted-query URL for one search term.
func (c *Client) searchURL(baseURL, term string, count int) (string, error) {
	vars, err := json.Marshal(searchVariables{
		ProductOriginVtex:    true,
		SimulationBehavior:   "default",
		HideUnavailableItems: true,
		FullText:             term,
		Count:                count,
		ShippingOptions:      []string{},
	})
	if err != nil {
		return "", errors.Wrap(err, "marshal variables")
	}

	ext, err := json.Marshal(searchExtensions{
		PersistedQuery: persistedQuery{
			Version:    1,
			Sha256Hash: c.hash,
			Sender:     persistedQuerySender,
			Provider:   persistedQueryProvider,
		},
		Variables: base64.StdEncoding.EncodeToString(vars),
	})
	if err != nil {
		return "", errors.Wrap(err, "marshal extensions")
	}

	q := url.Values{}
	q.Set("workspace", "master")
	q.Set("maxAge", "medium")
	q.Set("appsEtag", "remove")
	q.Set("domain", "store")
	q.Set("locale", "es-AR")
	q.Set("operationName", "productSuggestions")
	q.Set("variables", "{}")
	q.Set("extensions", string(ext))

	return strings.TrimRight(baseURL, "/") + searchPath + "?" + q.Encode(), nil
}

// Search runs the persisted-query product search for one term and returns
// the raw product payloads. A 404 or an empty suggestion list is "no
// results", not an error.
func (c *Client) Search(ctx context.Context, baseURL, term string, count int) ([]RawProduct, error) {
	u, err := c.searchURL(baseURL, term, count)
	if err != nil {
		return nil, err
	}

	body, notFound, err := c.get(ctx, u)
	if err != nil {
		return nil, errors.Wrapf(err, "search %q", term)
	}
	if notFound {
		return nil, nil
	}

	if msg, ok := graphqlError(body); ok {
		return nil, errors.Errorf("search %q: api error: %s", term, msg)
	}

	var resp searchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, errors.Wrapf(err, "search %q: decode", term)
	}
	if resp.Data == nil || resp.Data.ProductSuggestions == nil {
		return nil, nil
	}
	return resp.Data.ProductSuggestions.Products, nil
}

// LookupByID fetches a single product through the catalog_system ID filter,
// the fast path used by the refresh engine when a storefront-local ID is
// already known. Returns nil when the product is gone or inactive.
func (c *Client) LookupByID(ctx context.Context, baseURL, externalID string) (*RawProduct, error) {
	u := strings.TrimRight(baseURL, "/") + lookupPath + "?fq=productId:" + url.QueryEscape(externalID)

	body, notFound, err := c.get(ctx, u)
	if err != nil {
		return nil, errors.Wrapf(err, "lookup id %s", externalID)
	}
	if notFound {
		return nil, nil
	}

	var products []RawProduct
	if err := json.Unmarshal(body, &products); err != nil {
		return nil, errors.Wrapf(err, "lookup id %s: decode", externalID)
	}
	if len(products) == 0 {
		return nil, nil
	}
	return &products[0], nil
}

// get performs a GET with bounded retry. Network errors and 5xx responses
// are retried with exponential backoff; 404 reports notFound; any other
// status is a terminal error.
func (c *Client) get(ctx context.Context, u string) (body []byte, notFound bool, err error) {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			wait := c.backoff << (attempt - 1)
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return nil, false, ctx.Err()
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return nil, false, errors.Wrap(err, "build request")
		}
		req.Header.Set("User-Agent", userAgent)
		req.Header.Set("Accept", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		switch {
		case resp.StatusCode == http.StatusNotFound:
			resp.Body.Close()
			return nil, true, nil
		case resp.StatusCode >= 500:
			resp.Body.Close()
			lastErr = errors.Errorf("status %d", resp.StatusCode)
			continue
		case resp.StatusCode != http.StatusOK:
			resp.Body.Close()
			return nil, false, errors.Errorf("status %d", resp.StatusCode)
		}

		body, err = io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = err
			continue
		}
		return body, false, nil
	}
	return nil, false, errors.Wrap(lastErr, "retries exhausted")
}

// graphqlError probes the response for a top-level errors array without
// decoding the whole payload, returning the first error message.
func graphqlError(body []byte) (string, bool) {
	d := jx.DecodeBytes(body)
	var msg string
	found := false
	_ = d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		if string(key) != "errors" {
			return d.Skip()
		}
		return d.Arr(func(d *jx.Decoder) error {
			if found {
				return d.Skip()
			}
			return d.ObjBytes(func(d *jx.Decoder, key []byte) error {
				if string(key) != "message" || found {
					return d.Skip()
				}
				s, err := d.Str()
				if err != nil {
					return err
				}
				msg, found = s, true
				return nil
			})
		})
	})
	return msg, found
}
