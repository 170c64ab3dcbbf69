package vtex

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func rawFixture() *RawProduct {
	return &RawProduct{
		ProductID:   "12345",
		ProductName: "Leche Entera 1L",
		Brand:       "La Serenisima",
		LinkText:    "leche-entera-1l",
		Description: "Leche entera larga vida",
		Categories:  []string{"Lacteos", "Leches"},
		Items: []RawItem{{
			EAN:             "7790000000001",
			MeasurementUnit: "un",
			UnitMultiplier:  dec("1"),
			Images:          []RawImage{{ImageURL: "https://img.example/leche-1.jpg"}, {ImageURL: "https://img.example/leche-2.jpg"}},
			Sellers: []RawSeller{{
				SellerDefault: true,
				CommertialOffer: &RawOffer{
					Price:                dec("1500"),
					ListPrice:            dec("123000"),
					PriceWithoutDiscount: dec("1800"),
					AvailableQuantity:    10,
				},
			}},
		}},
		PriceRange: &RawPriceRange{
			SellingPrice: &RawPriceSpan{LowPrice: dec("1500"), HighPrice: dec("1500")},
			ListPrice:    &RawPriceSpan{LowPrice: dec("1800"), HighPrice: dec("1800")},
		},
	}
}

func TestNormalize(t *testing.T) {
	p := Normalize(rawFixture(), "https://www.disco.com.ar", "disco")
	require.NotNil(t, p)

	assert.Equal(t, "7790000000001", p.EAN)
	assert.Equal(t, "12345", p.ExternalID)
	assert.Equal(t, "disco", p.Source)
	assert.Equal(t, "Leche Entera 1L", p.Name)
	assert.Equal(t, "https://www.disco.com.ar/leche-entera-1l/p", p.Link)
	assert.Equal(t, "https://img.example/leche-1.jpg", p.Image)
	assert.Len(t, p.Images, 2)
	assert.Equal(t, []string{"Lacteos", "Leches"}, p.Categories)
	assert.True(t, p.IsAvailable)
	assert.True(t, p.Price.Equal(dec("1500")), "price %s", p.Price)
}

func TestNormalizeRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*RawProduct)
	}{
		{"no items", func(r *RawProduct) { r.Items = nil }},
		{"no images", func(r *RawProduct) { r.Items[0].Images = nil }},
		{"no price range", func(r *RawProduct) { r.PriceRange = nil }},
		{"no selling price", func(r *RawProduct) { r.PriceRange.SellingPrice = nil }},
		{"no ean", func(r *RawProduct) { r.Items[0].EAN = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := rawFixture()
			tt.mutate(raw)
			assert.Nil(t, Normalize(raw, "https://www.disco.com.ar", "disco"))
		})
	}

	t.Run("nil product", func(t *testing.T) {
		assert.Nil(t, Normalize(nil, "https://www.disco.com.ar", "disco"))
	})
}

func TestNormalizeFirstSKUOnly(t *testing.T) {
	raw := rawFixture()
	raw.Items = append(raw.Items, RawItem{
		EAN:    "7790000000999",
		Images: []RawImage{{ImageURL: "https://img.example/other.jpg"}},
	})

	p := Normalize(raw, "https://www.disco.com.ar", "disco")
	require.NotNil(t, p)
	assert.Equal(t, "7790000000001", p.EAN)
}

func TestNormalizeListPriceFromPriceWithoutDiscount(t *testing.T) {
	// The wire ListPrice (inflated on Cencosud shops) must be ignored.
	p := Normalize(rawFixture(), "https://www.disco.com.ar", "disco")
	require.NotNil(t, p)
	assert.True(t, p.ListPrice.Equal(dec("1800")), "list price %s", p.ListPrice)
}

func TestNormalizeListPriceFallsBackToPrice(t *testing.T) {
	raw := rawFixture()
	raw.Items[0].Sellers[0].CommertialOffer.PriceWithoutDiscount = decimal.Zero

	p := Normalize(raw, "https://www.disco.com.ar", "disco")
	require.NotNil(t, p)
	assert.True(t, p.ListPrice.Equal(dec("1500")))
}

func TestNormalizeDefaultSellerPreferred(t *testing.T) {
	raw := rawFixture()
	raw.Items[0].Sellers = []RawSeller{
		{
			SellerDefault:   false,
			CommertialOffer: &RawOffer{Price: dec("9999"), PriceWithoutDiscount: dec("9999"), AvailableQuantity: 1},
		},
		{
			SellerDefault:   true,
			CommertialOffer: &RawOffer{Price: dec("1400"), PriceWithoutDiscount: dec("1600"), AvailableQuantity: 5},
		},
	}

	p := Normalize(raw, "https://www.disco.com.ar", "disco")
	require.NotNil(t, p)
	assert.True(t, p.Price.Equal(dec("1400")))
	assert.True(t, p.ListPrice.Equal(dec("1600")))
}

func TestNormalizePriceRangeFallback(t *testing.T) {
	// No sellers at all: prices come from the product-level range.
	raw := rawFixture()
	raw.Items[0].Sellers = nil

	p := Normalize(raw, "https://www.disco.com.ar", "disco")
	require.NotNil(t, p)
	assert.True(t, p.Price.Equal(dec("1500")))
	assert.True(t, p.ListPrice.Equal(dec("1800")))
	assert.True(t, p.IsAvailable, "availability defaults to true without an offer")
}

func TestNormalizeReferencePrice(t *testing.T) {
	raw := rawFixture()
	raw.Items[0].UnitMultiplier = dec("1.5")
	raw.Items[0].MeasurementUnit = "lt"

	p := Normalize(raw, "https://www.disco.com.ar", "disco")
	require.NotNil(t, p)
	require.True(t, p.ReferencePrice.Valid)
	assert.True(t, p.ReferencePrice.Decimal.Equal(dec("1000")), "reference price %s", p.ReferencePrice.Decimal)
	assert.Equal(t, "lt", p.ReferenceUnit)
}

func TestNormalizeReferencePriceZeroMultiplier(t *testing.T) {
	raw := rawFixture()
	raw.Items[0].UnitMultiplier = decimal.Zero

	p := Normalize(raw, "https://www.disco.com.ar", "disco")
	require.NotNil(t, p)
	assert.False(t, p.ReferencePrice.Valid)
	assert.Empty(t, p.ReferenceUnit)
}

func TestNormalizeUnavailable(t *testing.T) {
	raw := rawFixture()
	raw.Items[0].Sellers[0].CommertialOffer.AvailableQuantity = 0

	p := Normalize(raw, "https://www.disco.com.ar", "disco")
	require.NotNil(t, p)
	assert.False(t, p.IsAvailable)
}

func TestNormalizeTrailingSlashBaseURL(t *testing.T) {
	p := Normalize(rawFixture(), "https://www.disco.com.ar/", "disco")
	require.NotNil(t, p)
	assert.Equal(t, "https://www.disco.com.ar/leche-entera-1l/p", p.Link)
}
