package domain

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// CandidateProduct is one catalog search result for a staple's search term.
// It only lives for the duration of one ingestion attempt.
type CandidateProduct struct {
	ProductID   string             `json:"productId"`
	Brand       string             `json:"brand,omitempty"`
	Description string             `json:"description"`
	ImageURL    string             `json:"imageUrl,omitempty"`
	Variants    []CandidateVariant `json:"variants"`
	Raw         json.RawMessage    `json:"-"`
}

// CandidateVariant is a purchasable package size of a CandidateProduct.
type CandidateVariant struct {
	SizeText       string   `json:"size"`
	RegularPrice   *float64 `json:"regularPrice,omitempty"`
	PromoPrice     *float64 `json:"promoPrice,omitempty"`
	EffectivePrice *float64 `json:"effectivePrice,omitempty"`
}

// HasPrice reports whether any of the three price fields is set.
func (v CandidateVariant) HasPrice() bool {
	_, ok := v.Price()
	return ok
}

// Price returns the regular price, falling back to promo then effective.
func (v CandidateVariant) Price() (float64, bool) {
	switch {
	case v.RegularPrice != nil:
		return *v.RegularPrice, true
	case v.PromoPrice != nil:
		return *v.PromoPrice, true
	case v.EffectivePrice != nil:
		return *v.EffectivePrice, true
	}
	return 0, false
}

// FirstPricedVariant returns the first variant that has a price
func (p CandidateProduct) FirstPricedVariant() (CandidateVariant, bool) {
	for _, v := range p.Variants {
		if v.HasPrice() {
			return v, true
		}
	}
	return CandidateVariant{}, false
}

// Preference is the pinned identity of a tracked item's product.
// Empty fields mean no preference has been recorded yet.
type Preference struct {
	ProductID string `json:"productId,omitempty"`
	Brand     string `json:"brand,omitempty"`
	SizeLabel string `json:"sizeLabel,omitempty"`
}

// IsZero reports whether no preference field is set
func (p Preference) IsZero() bool {
	return p.ProductID == "" && p.Brand == "" && p.SizeLabel == ""
}

// Selection is the (product, variant) pair chosen by the product selector.
type Selection struct {
	Product CandidateProduct
	Variant CandidateVariant
}

// PriceCents converts the variant's dollar price to whole cents.
func (s Selection) PriceCents() (int64, bool) {
	price, ok := s.Variant.Price()
	if !ok {
		return 0, false
	}
	return decimal.NewFromFloat(price).Shift(2).Round(0).IntPart(), true
}

// SizeLabel returns the raw size text of the selected variant
func (s Selection) SizeLabel() string {
	return s.Variant.SizeText
}

// Observed returns the identity of the selection as a preference candidate.
func (s Selection) Observed() Preference {
	return Preference{
		ProductID: s.Product.ProductID,
		Brand:     s.Product.Brand,
		SizeLabel: s.Variant.SizeText,
	}
}
