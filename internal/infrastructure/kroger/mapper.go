package kroger

import (
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/basketwatch/backend/internal/domain"
)

type productsResponse struct {
	Data []json.RawMessage `json:"data"`
}

type productPayload struct {
	ProductID   string         `json:"productId"`
	Brand       string         `json:"brand"`
	Description string         `json:"description"`
	Images      []imagePayload `json:"images"`
	Items       []itemPayload  `json:"items"`
}

type imagePayload struct {
	Perspective string `json:"perspective"`
	Sizes       []struct {
		Size string `json:"size"`
		URL  string `json:"url"`
	} `json:"sizes"`
}

type itemPayload struct {
	ItemID string `json:"itemId"`
	Size   string `json:"size"`
	Price  *struct {
		Regular   *float64 `json:"regular"`
		Promo     *float64 `json:"promo"`
		Effective *float64 `json:"effective"`
	} `json:"price"`
}

type locationsResponse struct {
	Data []locationPayload `json:"data"`
}

type locationPayload struct {
	LocationID  string `json:"locationId"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Address     struct {
		AddressLine1 string `json:"addressLine1"`
		City         string `json:"city"`
		State        string `json:"state"`
		ZipCode      string `json:"zipCode"`
	} `json:"address"`
}

// MapProducts converts a /products response body into candidates, keeping
// each product's raw JSON for the snapshot audit payload.
func MapProducts(body []byte) ([]domain.CandidateProduct, error) {
	var resp productsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, eris.Wrap(err, "failed to decode products response")
	}

	products := make([]domain.CandidateProduct, 0, len(resp.Data))
	for _, raw := range resp.Data {
		var p productPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, eris.Wrap(err, "failed to decode product")
		}
		products = append(products, mapProduct(p, raw))
	}
	return products, nil
}

func mapProduct(p productPayload, raw json.RawMessage) domain.CandidateProduct {
	product := domain.CandidateProduct{
		ProductID:   p.ProductID,
		Brand:       strings.TrimSpace(p.Brand),
		Description: p.Description,
		ImageURL:    firstImageURL(p.Images),
		Variants:    make([]domain.CandidateVariant, 0, len(p.Items)),
		Raw:         raw,
	}

	for _, item := range p.Items {
		variant := domain.CandidateVariant{SizeText: item.Size}
		if item.Price != nil {
			variant.RegularPrice = item.Price.Regular
			variant.PromoPrice = item.Price.Promo
			variant.EffectivePrice = item.Price.Effective
		}
		product.Variants = append(product.Variants, variant)
	}

	return product
}

func firstImageURL(images []imagePayload) string {
	if len(images) == 0 || len(images[0].Sizes) == 0 {
		return ""
	}
	return images[0].Sizes[0].URL
}

// mapLocation converts a location payload, naming it by name, then
// description, then "Kroger", and joining the non-empty address parts.
func mapLocation(l locationPayload) *domain.Location {
	name := l.Name
	if name == "" {
		name = l.Description
	}
	if name == "" {
		name = "Kroger"
	}

	var parts []string
	for _, part := range []string{l.Address.AddressLine1, l.Address.City, l.Address.State, l.Address.ZipCode} {
		if part != "" {
			parts = append(parts, part)
		}
	}

	return &domain.Location{
		LocationID: l.LocationID,
		Name:       name,
		Address:    strings.Join(parts, ", "),
	}
}
