package bootstrap

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/basketwatch/backend/config"
	"github.com/basketwatch/backend/internal/domain"
	"github.com/basketwatch/backend/internal/usecase"
)

func sqliteConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Kroger: config.KrogerConfig{
			BaseURL:     "http://127.0.0.1:1",
			Lat:         33.7756,
			Lon:         -84.3963,
			SearchLimit: 10,
		},
		Ingest: config.IngestConfig{
			MaxAttempts: 3,
			BackoffStep: 600 * time.Millisecond,
			Source:      "kroger",
			Currency:    "USD",
		},
		Database: config.DatabaseConfig{
			Driver: "sqlite",
			DSN:    filepath.Join(t.TempDir(), "nested", "basketwatch.db"),
		},
		Cache: config.CacheConfig{
			TokenTTLSlack: time.Minute,
			LocationTTL:   24 * time.Hour,
		},
	}
}

func TestNew(t *testing.T) {
	cfg := sqliteConfig(t)

	app, err := New(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer app.Close()

	assert.NotNil(t, app.Ingest)
	assert.NotNil(t, app.Search)
	assert.Nil(t, app.NATS)

	_, err = os.Stat(cfg.Database.DSN)
	assert.NoError(t, err, "sqlite file should be created")
}

func TestNewRunFailsWithoutCredentials(t *testing.T) {
	app, err := New(context.Background(), sqliteConfig(t), nil)
	require.NoError(t, err)
	defer app.Close()

	_, err = app.Ingest.Run(context.Background(), usecase.RunRequest{})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrMissingCredentials)
}

func TestOpenStore(t *testing.T) {
	t.Run("unknown driver", func(t *testing.T) {
		_, _, err := OpenStore(context.Background(), config.DatabaseConfig{Driver: "mysql", DSN: "x"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unsupported database driver")
	})

	t.Run("sqlite", func(t *testing.T) {
		store, closeStore, err := OpenStore(context.Background(), config.DatabaseConfig{
			Driver: "sqlite",
			DSN:    filepath.Join(t.TempDir(), "store.db"),
		})
		require.NoError(t, err)
		defer closeStore()

		_, err = store.FindItem(context.Background(), "Milk", "1 gal")
		assert.ErrorIs(t, err, domain.ErrItemNotFound)
	})
}

func TestCloseIsIdempotent(t *testing.T) {
	app, err := New(context.Background(), sqliteConfig(t), nil)
	require.NoError(t, err)

	app.Close()
	assert.NotPanics(t, app.Close)
}
