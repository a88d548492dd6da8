package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/basketwatch/backend/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS items (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	category TEXT NOT NULL,
	unit TEXT NOT NULL,
	is_tracked BOOLEAN NOT NULL DEFAULT TRUE,
	search_term TEXT NOT NULL,
	preferred_product_id TEXT,
	preferred_brand TEXT,
	preferred_size_label TEXT,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	UNIQUE (name, unit)
);
CREATE TABLE IF NOT EXISTS price_snapshots (
	id TEXT PRIMARY KEY,
	item_id TEXT NOT NULL REFERENCES items(id),
	location_id TEXT NOT NULL,
	store_name TEXT NOT NULL,
	price_cents BIGINT NOT NULL,
	currency TEXT NOT NULL,
	captured_at TIMESTAMPTZ NOT NULL,
	source TEXT NOT NULL,
	raw_payload JSONB
);
CREATE TABLE IF NOT EXISTS basket_snapshots (
	id TEXT PRIMARY KEY,
	captured_at TIMESTAMPTZ NOT NULL,
	total_cents BIGINT NOT NULL,
	item_count INTEGER NOT NULL,
	currency TEXT NOT NULL,
	location_id TEXT NOT NULL,
	store_name TEXT NOT NULL,
	source TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS ingest_logs (
	id TEXT PRIMARY KEY,
	captured_at TIMESTAMPTZ NOT NULL,
	term TEXT NOT NULL,
	status TEXT NOT NULL,
	message TEXT NOT NULL,
	price_cents BIGINT,
	location_id TEXT NOT NULL,
	store_name TEXT NOT NULL,
	source TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_price_snapshots_item ON price_snapshots(item_id, captured_at);
CREATE INDEX IF NOT EXISTS idx_ingest_logs_captured ON ingest_logs(captured_at);
`

// Store implements domain.IngestStore on PostgreSQL
type Store struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

var _ domain.IngestStore = (*Store)(nil)

// Open connects to dsn with at most maxConns connections and applies the schema
func Open(ctx context.Context, dsn string, maxConns int) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, eris.Wrap(err, "parse postgres dsn")
	}
	if maxConns <= 0 {
		maxConns = 4
	}
	cfg.MaxConns = int32(maxConns)

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, eris.Wrap(err, "connect to postgres")
	}

	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "apply schema")
	}

	return &Store{pool: pool, now: time.Now}, nil
}

// Close releases the pool
func (s *Store) Close() {
	s.pool.Close()
}

const itemColumns = `id, name, category, unit, is_tracked, search_term,
	preferred_product_id, preferred_brand, preferred_size_label`

// FindItem returns the tracked item for (name, unit)
func (s *Store) FindItem(ctx context.Context, name, unit string) (*domain.TrackedItem, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+itemColumns+` FROM items WHERE name = $1 AND unit = $2`, name, unit)

	item, err := scanItem(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrItemNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "find item %q (%s)", name, unit)
	}
	return item, nil
}

// UpsertItem creates or refreshes the staple's item. Preference columns are
// only filled while NULL, in the same statement, so the first observation wins.
func (s *Store) UpsertItem(ctx context.Context, staple domain.StapleDefinition, observed domain.Preference) (*domain.TrackedItem, error) {
	now := s.now().UTC()

	row := s.pool.QueryRow(ctx, `
		INSERT INTO items AS i (id, name, category, unit, is_tracked, search_term,
			preferred_product_id, preferred_brand, preferred_size_label, created_at, updated_at)
		VALUES ($1, $2, $3, $4, TRUE, $5, NULLIF($6::text, ''), NULLIF($7::text, ''), NULLIF($8::text, ''), $9, $9)
		ON CONFLICT (name, unit) DO UPDATE SET
			category = EXCLUDED.category,
			search_term = EXCLUDED.search_term,
			is_tracked = TRUE,
			preferred_product_id = COALESCE(i.preferred_product_id, EXCLUDED.preferred_product_id),
			preferred_brand = COALESCE(i.preferred_brand, EXCLUDED.preferred_brand),
			preferred_size_label = COALESCE(i.preferred_size_label, EXCLUDED.preferred_size_label),
			updated_at = EXCLUDED.updated_at
		RETURNING `+itemColumns,
		uuid.NewString(), staple.Label, staple.Category, staple.Unit, staple.SearchTerm,
		observed.ProductID, observed.Brand, observed.SizeLabel, now,
	)

	item, err := scanItem(row)
	if err != nil {
		return nil, eris.Wrapf(err, "upsert item %q (%s)", staple.Label, staple.Unit)
	}
	return item, nil
}

// InsertPriceSnapshot appends a price observation
func (s *Store) InsertPriceSnapshot(ctx context.Context, snapshot *domain.PriceSnapshot) error {
	if snapshot.ID == "" {
		snapshot.ID = uuid.NewString()
	}

	var raw any
	if len(snapshot.RawPayload) > 0 {
		raw = string(snapshot.RawPayload)
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO price_snapshots (id, item_id, location_id, store_name, price_cents,
			currency, captured_at, source, raw_payload)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9::jsonb)`,
		snapshot.ID, snapshot.ItemID, snapshot.LocationID, snapshot.StoreName, snapshot.PriceCents,
		snapshot.Currency, snapshot.CapturedAt, snapshot.Source, raw,
	)
	return eris.Wrap(err, "insert price snapshot")
}

// InsertBasketSnapshot appends a basket total
func (s *Store) InsertBasketSnapshot(ctx context.Context, snapshot *domain.BasketSnapshot) error {
	if snapshot.ID == "" {
		snapshot.ID = uuid.NewString()
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO basket_snapshots (id, captured_at, total_cents, item_count, currency,
			location_id, store_name, source)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		snapshot.ID, snapshot.CapturedAt, snapshot.TotalCents, snapshot.ItemCount, snapshot.Currency,
		snapshot.LocationID, snapshot.StoreName, snapshot.Source,
	)
	return eris.Wrap(err, "insert basket snapshot")
}

// InsertIngestLog appends an audit entry
func (s *Store) InsertIngestLog(ctx context.Context, entry *domain.IngestLogEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO ingest_logs (id, captured_at, term, status, message, price_cents,
			location_id, store_name, source)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		entry.ID, entry.CapturedAt, entry.Term, string(entry.Status), entry.Message, entry.PriceCents,
		entry.LocationID, entry.StoreName, entry.Source,
	)
	return eris.Wrap(err, "insert ingest log")
}

func scanItem(row pgx.Row) (*domain.TrackedItem, error) {
	var (
		item                        domain.TrackedItem
		productID, brand, sizeLabel *string
	)
	if err := row.Scan(&item.ID, &item.Name, &item.Category, &item.Unit, &item.IsTracked, &item.SearchTerm,
		&productID, &brand, &sizeLabel); err != nil {
		return nil, err
	}
	item.PreferredProductID = deref(productID)
	item.PreferredBrand = deref(brand)
	item.PreferredSizeLabel = deref(sizeLabel)
	return &item, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
