package vtex

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Normalize maps a raw VTEX product payload into a normalized Product for
// the given storefront, or nil when the payload is unusable. It is a pure
// function: no clock, no randomness, no I/O.
//
// A payload is rejected when it has no SKU items, the first SKU has no
// images, no price range data is present, or the SKU carries no EAN — a
// product without a global key cannot be reconciled across storefronts.
func Normalize(raw *RawProduct, baseURL, source string) *Product {
	if raw == nil || len(raw.Items) == 0 {
		return nil
	}

	// Always the first SKU.
	item := &raw.Items[0]

	if len(item.Images) == 0 {
		return nil
	}
	if raw.PriceRange == nil || raw.PriceRange.SellingPrice == nil {
		return nil
	}
	if item.EAN == "" {
		return nil
	}

	images := make([]string, len(item.Images))
	for i, img := range item.Images {
		images[i] = img.ImageURL
	}

	seller := defaultSeller(item.Sellers)

	// Prefer the seller's commercial offer over the product-level price
	// range: the range can mix values from other SKUs and sellers. The
	// wire ListPrice is unusable on some storefronts (observed inflated
	// roughly x82 on Cencosud shops), so list price comes from
	// PriceWithoutDiscount when the seller provides it.
	var price, listPrice decimal.Decimal
	if seller != nil && seller.CommertialOffer != nil {
		offer := seller.CommertialOffer
		price = offer.Price
		listPrice = offer.PriceWithoutDiscount
		if listPrice.IsZero() {
			listPrice = price
		}
	} else {
		price = raw.PriceRange.SellingPrice.LowPrice
		if lp := raw.PriceRange.ListPrice; lp != nil && !lp.LowPrice.IsZero() {
			listPrice = lp.LowPrice
		} else {
			listPrice = price
		}
	}

	// Price per base unit, e.g. a 1.5 L bottle at 1500 with multiplier
	// 1.5 yields 1000 per liter.
	var refPrice decimal.NullDecimal
	var refUnit string
	if item.UnitMultiplier.IsPositive() {
		refPrice = decimal.NullDecimal{
			Decimal: price.Div(item.UnitMultiplier),
			Valid:   true,
		}
		refUnit = item.MeasurementUnit
	}

	available := true
	if seller != nil && seller.CommertialOffer != nil {
		available = seller.CommertialOffer.AvailableQuantity > 0
	}

	return &Product{
		EAN:            item.EAN,
		ExternalID:     raw.ProductID,
		Source:         source,
		Name:           raw.ProductName,
		Link:           strings.TrimRight(baseURL, "/") + "/" + raw.LinkText + "/p",
		Image:          images[0],
		Images:         images,
		Price:          price,
		ListPrice:      listPrice,
		ReferencePrice: refPrice,
		ReferenceUnit:  refUnit,
		IsAvailable:    available,
		Brand:          raw.Brand,
		Categories:     raw.Categories,
		Description:    raw.Description,
	}
}

// defaultSeller picks the seller flagged as default, else the first one.
func defaultSeller(sellers []RawSeller) *RawSeller {
	for i := range sellers {
		if sellers[i].SellerDefault {
			return &sellers[i]
		}
	}
	if len(sellers) > 0 {
		return &sellers[0]
	}
	return nil
}
