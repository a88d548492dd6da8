package domain

import (
	"encoding/json"
	"time"
)

// IngestStatus is the outcome recorded for one staple in one ingestion run
type IngestStatus string

const (
	IngestStatusOK        IngestStatus = "ok"
	IngestStatusNoPrice   IngestStatus = "no_price"
	IngestStatusNoProduct IngestStatus = "no_product"
	IngestStatusError     IngestStatus = "error"
)

// TrackedItem is the durable record of a staple. (Name, Unit) is unique.
// The Preferred* fields are written once from the first successful match
// and never overwritten afterwards.
type TrackedItem struct {
	ID                 string `json:"id"`
	Name               string `json:"name"`
	Category           string `json:"category"`
	Unit               string `json:"unit"`
	IsTracked          bool   `json:"isTracked"`
	SearchTerm         string `json:"searchTerm"`
	PreferredProductID string `json:"preferredProductId,omitempty"`
	PreferredBrand     string `json:"preferredBrand,omitempty"`
	PreferredSizeLabel string `json:"preferredSizeLabel,omitempty"`
}

// Preference returns the item's pinned product identity
func (t *TrackedItem) Preference() Preference {
	if t == nil {
		return Preference{}
	}
	return Preference{
		ProductID: t.PreferredProductID,
		Brand:     t.PreferredBrand,
		SizeLabel: t.PreferredSizeLabel,
	}
}

// PriceSnapshot is an immutable price observation for one item in one run
type PriceSnapshot struct {
	ID         string          `json:"id"`
	ItemID     string          `json:"itemId"`
	LocationID string          `json:"locationId"`
	StoreName  string          `json:"storeName"`
	PriceCents int64           `json:"priceCents"`
	Currency   string          `json:"currency"`
	CapturedAt time.Time       `json:"capturedAt"`
	Source     string          `json:"source"`
	RawPayload json.RawMessage `json:"rawPayload,omitempty"`
}

// BasketSnapshot is the summed price of every staple priced in one run
type BasketSnapshot struct {
	ID         string    `json:"id"`
	CapturedAt time.Time `json:"capturedAt"`
	TotalCents int64     `json:"totalCents"`
	ItemCount  int       `json:"itemCount"`
	Currency   string    `json:"currency"`
	LocationID string    `json:"locationId"`
	StoreName  string    `json:"storeName"`
	Source     string    `json:"source"`
}

// IngestLogEntry is the audit record written for every staple of every run
type IngestLogEntry struct {
	ID         string       `json:"id"`
	CapturedAt time.Time    `json:"capturedAt"`
	Term       string       `json:"term"`
	Status     IngestStatus `json:"status"`
	Message    string       `json:"message"`
	PriceCents *int64       `json:"priceCents,omitempty"`
	LocationID string       `json:"locationId"`
	StoreName  string       `json:"storeName"`
	Source     string       `json:"source"`
}

// Location is a store returned by the catalog's location lookup
type Location struct {
	LocationID string `json:"locationId"`
	Name       string `json:"name"`
	Address    string `json:"address,omitempty"`
}

// AccessToken is the OAuth2 client-credentials token for the catalog API
type AccessToken struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
	Scope       string `json:"scope"`
}
