package vtex

import "github.com/shopspring/decimal"

// RawProduct is the slice of a VTEX product payload the normalizer consumes.
// Both the persisted-query search endpoint and the catalog_system ID filter
// return this shape.
type RawProduct struct {
	ProductID   string         `json:"productId"`
	ProductName string         `json:"productName"`
	Brand       string         `json:"brand"`
	LinkText    string         `json:"linkText"`
	Description string         `json:"description"`
	Categories  []string       `json:"categories"`
	Items       []RawItem      `json:"items"`
	PriceRange  *RawPriceRange `json:"priceRange"`
}

// RawItem is one SKU of a product.
type RawItem struct {
	EAN             string          `json:"ean"`
	MeasurementUnit string          `json:"measurementUnit"`
	UnitMultiplier  decimal.Decimal `json:"unitMultiplier"`
	Images          []RawImage      `json:"images"`
	Sellers         []RawSeller     `json:"sellers"`
}

// RawImage holds one product image URL.
type RawImage struct {
	ImageURL string `json:"imageUrl"`
}

// RawSeller is one marketplace seller of a SKU. The commertialOffer spelling
// is VTEX's, not ours.
type RawSeller struct {
	SellerDefault   bool      `json:"sellerDefault"`
	CommertialOffer *RawOffer `json:"commertialOffer"`
}

// RawOffer is a seller's commercial offer. Field names are capitalized on
// the wire.
type RawOffer struct {
	Price                decimal.Decimal `json:"Price"`
	ListPrice            decimal.Decimal `json:"ListPrice"`
	PriceWithoutDiscount decimal.Decimal `json:"PriceWithoutDiscount"`
	AvailableQuantity    int             `json:"AvailableQuantity"`
}

// RawPriceRange aggregates prices across sellers and SKUs.
type RawPriceRange struct {
	SellingPrice *RawPriceSpan `json:"sellingPrice"`
	ListPrice    *RawPriceSpan `json:"listPrice"`
}

// RawPriceSpan is a low/high price pair.
type RawPriceSpan struct {
	LowPrice  decimal.Decimal `json:"lowPrice"`
	HighPrice decimal.Decimal `json:"highPrice"`
}

// searchResponse is the GraphQL envelope of the persisted-query search.
type searchResponse struct {
	Data *struct {
		ProductSuggestions *struct {
			Products []RawProduct `json:"products"`
		} `json:"productSuggestions"`
	} `json:"data"`
}

// Product is a normalized product record: the canonical descriptive fields
// plus the price observation fields for one storefront.
type Product struct {
	EAN        string
	ExternalID string
	Source     string
	Name       string
	Link       string
	Image      string
	Images     []string

	Price          decimal.Decimal
	ListPrice      decimal.Decimal
	ReferencePrice decimal.NullDecimal
	ReferenceUnit  string
	IsAvailable    bool

	Brand       string
	Categories  []string
	Description string
}
