package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rotisserie/eris"

	"github.com/basketwatch/backend/internal/domain"
)

const schema = `
	CREATE TABLE IF NOT EXISTS items (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		category TEXT NOT NULL,
		unit TEXT NOT NULL,
		is_tracked INTEGER NOT NULL DEFAULT 1,
		search_term TEXT NOT NULL,
		preferred_product_id TEXT,
		preferred_brand TEXT,
		preferred_size_label TEXT,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		UNIQUE (name, unit)
	);
	CREATE TABLE IF NOT EXISTS price_snapshots (
		id TEXT PRIMARY KEY,
		item_id TEXT NOT NULL REFERENCES items(id),
		location_id TEXT NOT NULL,
		store_name TEXT NOT NULL,
		price_cents INTEGER NOT NULL,
		currency TEXT NOT NULL,
		captured_at DATETIME NOT NULL,
		source TEXT NOT NULL,
		raw_payload TEXT
	);
	CREATE TABLE IF NOT EXISTS basket_snapshots (
		id TEXT PRIMARY KEY,
		captured_at DATETIME NOT NULL,
		total_cents INTEGER NOT NULL,
		item_count INTEGER NOT NULL,
		currency TEXT NOT NULL,
		location_id TEXT NOT NULL,
		store_name TEXT NOT NULL,
		source TEXT NOT NULL
	);
	CREATE TABLE IF NOT EXISTS ingest_logs (
		id TEXT PRIMARY KEY,
		captured_at DATETIME NOT NULL,
		term TEXT NOT NULL,
		status TEXT NOT NULL,
		message TEXT NOT NULL,
		price_cents INTEGER,
		location_id TEXT NOT NULL,
		store_name TEXT NOT NULL,
		source TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_price_snapshots_item ON price_snapshots(item_id, captured_at);
	CREATE INDEX IF NOT EXISTS idx_ingest_logs_captured ON ingest_logs(captured_at);
`

// Store implements domain.IngestStore on a local SQLite file
type Store struct {
	db  *sql.DB
	now func() time.Time
}

var _ domain.IngestStore = (*Store)(nil)

// Open opens (creating if needed) the database at path and applies the schema
func Open(ctx context.Context, path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, eris.Wrap(err, "failed to create database directory")
		}
	}

	db, err := sql.Open("sqlite3", "file:"+path+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, eris.Wrap(err, "failed to open database")
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, eris.Wrap(err, "failed to apply schema")
	}

	return &Store{db: db, now: time.Now}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

const itemColumns = `id, name, category, unit, is_tracked, search_term,
	preferred_product_id, preferred_brand, preferred_size_label`

// FindItem returns the tracked item for (name, unit)
func (s *Store) FindItem(ctx context.Context, name, unit string) (*domain.TrackedItem, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+itemColumns+` FROM items WHERE name = ? AND unit = ?`, name, unit)

	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
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

	row := s.db.QueryRowContext(ctx, `
		INSERT INTO items (id, name, category, unit, is_tracked, search_term,
			preferred_product_id, preferred_brand, preferred_size_label, created_at, updated_at)
		VALUES (?, ?, ?, ?, 1, ?, NULLIF(?, ''), NULLIF(?, ''), NULLIF(?, ''), ?, ?)
		ON CONFLICT (name, unit) DO UPDATE SET
			category = excluded.category,
			search_term = excluded.search_term,
			is_tracked = 1,
			preferred_product_id = COALESCE(items.preferred_product_id, excluded.preferred_product_id),
			preferred_brand = COALESCE(items.preferred_brand, excluded.preferred_brand),
			preferred_size_label = COALESCE(items.preferred_size_label, excluded.preferred_size_label),
			updated_at = excluded.updated_at
		RETURNING `+itemColumns,
		uuid.NewString(), staple.Label, staple.Category, staple.Unit, staple.SearchTerm,
		observed.ProductID, observed.Brand, observed.SizeLabel, now, now,
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

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO price_snapshots (id, item_id, location_id, store_name, price_cents,
			currency, captured_at, source, raw_payload)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		snapshot.ID, snapshot.ItemID, snapshot.LocationID, snapshot.StoreName, snapshot.PriceCents,
		snapshot.Currency, snapshot.CapturedAt.UTC(), snapshot.Source, raw,
	)
	return eris.Wrap(err, "insert price snapshot")
}

// InsertBasketSnapshot appends a basket total
func (s *Store) InsertBasketSnapshot(ctx context.Context, snapshot *domain.BasketSnapshot) error {
	if snapshot.ID == "" {
		snapshot.ID = uuid.NewString()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO basket_snapshots (id, captured_at, total_cents, item_count, currency,
			location_id, store_name, source)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		snapshot.ID, snapshot.CapturedAt.UTC(), snapshot.TotalCents, snapshot.ItemCount, snapshot.Currency,
		snapshot.LocationID, snapshot.StoreName, snapshot.Source,
	)
	return eris.Wrap(err, "insert basket snapshot")
}

// InsertIngestLog appends an audit entry
func (s *Store) InsertIngestLog(ctx context.Context, entry *domain.IngestLogEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO ingest_logs (id, captured_at, term, status, message, price_cents,
			location_id, store_name, source)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.CapturedAt.UTC(), entry.Term, string(entry.Status), entry.Message, entry.PriceCents,
		entry.LocationID, entry.StoreName, entry.Source,
	)
	return eris.Wrap(err, "insert ingest log")
}

// ListIngestLogs returns the audit entries captured at capturedAt, oldest first
func (s *Store) ListIngestLogs(ctx context.Context, capturedAt time.Time) ([]domain.IngestLogEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, captured_at, term, status, message, price_cents, location_id, store_name, source
		FROM ingest_logs WHERE captured_at = ? ORDER BY rowid`, capturedAt.UTC())
	if err != nil {
		return nil, eris.Wrap(err, "list ingest logs")
	}
	defer rows.Close()

	var entries []domain.IngestLogEntry
	for rows.Next() {
		var (
			e      domain.IngestLogEntry
			status string
			cents  sql.NullInt64
		)
		if err := rows.Scan(&e.ID, &e.CapturedAt, &e.Term, &status, &e.Message, &cents,
			&e.LocationID, &e.StoreName, &e.Source); err != nil {
			return nil, eris.Wrap(err, "scan ingest log")
		}
		e.Status = domain.IngestStatus(status)
		if cents.Valid {
			v := cents.Int64
			e.PriceCents = &v
		}
		entries = append(entries, e)
	}
	return entries, eris.Wrap(rows.Err(), "iterate ingest logs")
}

type scanner interface {
	Scan(dest ...any) error
}

func scanItem(row scanner) (*domain.TrackedItem, error) {
	var (
		item                        domain.TrackedItem
		productID, brand, sizeLabel sql.NullString
	)
	if err := row.Scan(&item.ID, &item.Name, &item.Category, &item.Unit, &item.IsTracked, &item.SearchTerm,
		&productID, &brand, &sizeLabel); err != nil {
		return nil, err
	}
	item.PreferredProductID = productID.String
	item.PreferredBrand = brand.String
	item.PreferredSizeLabel = sizeLabel.String
	return &item, nil
}
