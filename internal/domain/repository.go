package domain

import (
	"context"
	"time"
)

// CacheRepository defines the interface for caching operations
type CacheRepository interface {
	Get(ctx context.Context, key string) (interface{}, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}

// CatalogClient defines the interface for interacting with the grocery catalog API.
// Non-2xx responses are reported as *UpstreamError.
type CatalogClient interface {
	GetToken(ctx context.Context) (*AccessToken, error)
	FindNearestLocation(ctx context.Context, token string, lat, lon float64) (*Location, error)
	SearchProducts(ctx context.Context, token, locationID, term string, limit int) ([]CandidateProduct, error)
}

// IngestStore defines the persistence operations used by the ingestion run.
// Every call is an independent statement; no cross-entity transaction is implied.
type IngestStore interface {
	// FindItem returns ErrItemNotFound when no item matches (name, unit).
	FindItem(ctx context.Context, name, unit string) (*TrackedItem, error)

	// UpsertItem creates or refreshes the staple's item and records observed
	// only into preference fields that are still unset.
	UpsertItem(ctx context.Context, staple StapleDefinition, observed Preference) (*TrackedItem, error)

	InsertPriceSnapshot(ctx context.Context, snapshot *PriceSnapshot) error
	InsertBasketSnapshot(ctx context.Context, snapshot *BasketSnapshot) error
	InsertIngestLog(ctx context.Context, entry *IngestLogEntry) error
}

// EventPublisher broadcasts ingestion events to downstream consumers
type EventPublisher interface {
	Publish(ctx context.Context, subject string, v any) error
}
