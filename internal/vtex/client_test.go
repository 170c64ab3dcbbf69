package vtex

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(hash string) *Client {
	c := NewClient(hash)
	c.backoff = time.Millisecond
	return c
}

const searchBody = `{"data":{"productSuggestions":{"products":[{
	"productId":"99",
	"productName":"Arroz Largo Fino 1kg",
	"brand":"Gallo",
	"linkText":"arroz-largo-fino-1kg",
	"categories":["Almacen"],
	"items":[{
		"ean":"7790070000000",
		"measurementUnit":"un",
		"unitMultiplier":1,
		"images":[{"imageUrl":"https://img.example/arroz.jpg"}],
		"sellers":[{"sellerDefault":true,"commertialOffer":{"Price":950,"ListPrice":950,"PriceWithoutDiscount":1000,"AvailableQuantity":3}}]
	}],
	"priceRange":{"sellingPrice":{"lowPrice":950,"highPrice":950}}
}]}}}`

func TestSearchRequestShape(t *testing.T) {
	var seen *http.Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = r.Clone(context.Background())
		_, _ = w.Write([]byte(searchBody))
	}))
	defer srv.Close()

	c := testClient("abc123")
	products, err := c.Search(context.Background(), srv.URL, "arroz", 50)
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, "Arroz Largo Fino 1kg", products[0].ProductName)

	require.NotNil(t, seen)
	assert.Equal(t, "/_v/segment/graphql/v1/", seen.URL.Path)

	q := seen.URL.Query()
	assert.Equal(t, "master", q.Get("workspace"))
	assert.Equal(t, "medium", q.Get("maxAge"))
	assert.Equal(t, "remove", q.Get("appsEtag"))
	assert.Equal(t, "store", q.Get("domain"))
	assert.Equal(t, "es-AR", q.Get("locale"))
	assert.Equal(t, "productSuggestions", q.Get("operationName"))
	assert.Equal(t, "{}", q.Get("variables"))

	var ext searchExtensions
	require.NoError(t, json.Unmarshal([]byte(q.Get("extensions")), &ext))
	assert.Equal(t, 1, ext.PersistedQuery.Version)
	assert.Equal(t, "abc123", ext.PersistedQuery.Sha256Hash)
	assert.Equal(t, "vtex.store-resources@0.x", ext.PersistedQuery.Sender)
	assert.Equal(t, "vtex.search-graphql@0.x", ext.PersistedQuery.Provider)

	raw, err := base64.StdEncoding.DecodeString(ext.Variables)
	require.NoError(t, err)
	var vars searchVariables
	require.NoError(t, json.Unmarshal(raw, &vars))
	assert.Equal(t, "arroz", vars.FullText)
	assert.Equal(t, 50, vars.Count)
	assert.True(t, vars.ProductOriginVtex)
	assert.True(t, vars.HideUnavailableItems)
	assert.Equal(t, "default", vars.SimulationBehavior)
}

func TestSearchRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(searchBody))
	}))
	defer srv.Close()

	products, err := testClient("h").Search(context.Background(), srv.URL, "arroz", 10)
	require.NoError(t, err)
	assert.Len(t, products, 1)
	assert.Equal(t, int32(3), calls.Load())
}

func TestSearchRetriesExhausted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := testClient("h").Search(context.Background(), srv.URL, "arroz", 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "retries exhausted")
}

func TestSearchNotFoundMeansNoResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	products, err := testClient("h").Search(context.Background(), srv.URL, "nada", 10)
	require.NoError(t, err)
	assert.Nil(t, products)
}

func TestSearchEmptySuggestions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"data":{"productSuggestions":{"products":[]}}}`))
	}))
	defer srv.Close()

	products, err := testClient("h").Search(context.Background(), srv.URL, "nada", 10)
	require.NoError(t, err)
	assert.Empty(t, products)
}

func TestSearchGraphQLError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"errors":[{"message":"PersistedQueryNotFound"}]}`))
	}))
	defer srv.Close()

	_, err := testClient("h").Search(context.Background(), srv.URL, "arroz", 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PersistedQueryNotFound")
}

func TestSearchClientErrorIsTerminal(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := testClient("h").Search(context.Background(), srv.URL, "arroz", 10)
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load(), "4xx must not retry")
}

func TestLookupByID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/catalog_system/pub/products/search", r.URL.Path)
		assert.Equal(t, "productId:99", r.URL.Query().Get("fq"))
		_, _ = w.Write([]byte(`[{"productId":"99","productName":"Arroz"}]`))
	}))
	defer srv.Close()

	p, err := testClient("h").LookupByID(context.Background(), srv.URL, "99")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "99", p.ProductID)
}

func TestLookupByIDGone(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	p, err := testClient("h").LookupByID(context.Background(), srv.URL, "99")
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestGraphqlErrorProbe(t *testing.T) {
	msg, ok := graphqlError([]byte(`{"errors":[{"message":"boom"},{"message":"second"}]}`))
	require.True(t, ok)
	assert.Equal(t, "boom", msg)

	_, ok = graphqlError([]byte(`{"data":{}}`))
	assert.False(t, ok)
}
