// Package bootstrap wires configuration into the services shared by the
// server and the CLI.
package bootstrap

import (
	"context"

	"github.com/nats-io/nats.go"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/basketwatch/backend/config"
	"github.com/basketwatch/backend/internal/domain"
	"github.com/basketwatch/backend/internal/infrastructure/cache"
	"github.com/basketwatch/backend/internal/infrastructure/events"
	"github.com/basketwatch/backend/internal/infrastructure/kroger"
	"github.com/basketwatch/backend/internal/infrastructure/postgres"
	"github.com/basketwatch/backend/internal/infrastructure/sqlite"
	"github.com/basketwatch/backend/internal/usecase"
)

// App holds the wired services. Close releases everything New opened.
type App struct {
	Config *config.Config
	Logger *zap.Logger
	Ingest *usecase.IngestService
	Search *usecase.PriceSearchService

	// NATS is nil when nats.url is empty
	NATS *nats.Conn

	closers []func()
}

// New builds the store, cache, catalog client and services from cfg
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	app := &App{Config: cfg, Logger: logger}

	store, closeStore, err := OpenStore(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	app.closers = append(app.closers, closeStore)

	var publisher domain.EventPublisher
	if cfg.NATS.URL != "" {
		nc, err := events.Connect(cfg.NATS.URL, logger)
		if err != nil {
			app.Close()
			return nil, err
		}
		app.NATS = nc
		app.closers = append(app.closers, func() {
			if err := nc.Drain(); err != nil {
				logger.Warn("nats drain failed", zap.Error(err))
			}
		})
		publisher = events.NewPublisher(nc, cfg.NATS.SubjectPrefix)
	}

	memoryCache := cache.NewMemoryCache(0)
	app.closers = append(app.closers, memoryCache.Close)

	client := kroger.NewClient(kroger.Config{
		ClientID:          cfg.Kroger.ClientID,
		ClientSecret:      cfg.Kroger.ClientSecret,
		BaseURL:           cfg.Kroger.BaseURL,
		RequestsPerSecond: cfg.Kroger.RequestsPerSecond,
		Burst:             cfg.Kroger.Burst,
	}, logger)

	lat, lon := cfg.Kroger.Lat, cfg.Kroger.Lon
	sessions := usecase.NewSessionResolver(client, memoryCache, usecase.SessionConfig{
		LocationID:    cfg.Kroger.LocationID,
		Latitude:      &lat,
		Longitude:     &lon,
		TokenTTLSlack: cfg.Cache.TokenTTLSlack,
		LocationTTL:   cfg.Cache.LocationTTL,
	}, logger)

	selector := usecase.NewProductSelector(logger, usecase.SelectorConfig{
		EnableDebugLogging: cfg.Ingest.DebugMatching,
	})

	fetcher := usecase.NewCatalogFetcher(client, selector, usecase.CatalogFetcherConfig{
		Retry: usecase.RetryPolicy{
			MaxAttempts: cfg.Ingest.MaxAttempts,
			BackoffStep: cfg.Ingest.BackoffStep,
		},
		SearchLimit: cfg.Kroger.SearchLimit,
	}, logger)

	app.Ingest = usecase.NewIngestService(sessions, fetcher, store, publisher, usecase.IngestServiceConfig{
		Source:   cfg.Ingest.Source,
		Currency: cfg.Ingest.Currency,
	}, logger)
	app.Search = usecase.NewPriceSearchService(sessions, fetcher, cfg.Ingest.Currency, logger)

	if !cfg.HasKrogerCredentials() {
		logger.Warn("Kroger credentials not configured; runs will fail until BASKETWATCH_KROGER_CLIENT_ID and BASKETWATCH_KROGER_CLIENT_SECRET are set")
	}

	return app, nil
}

// Close releases resources in reverse order of acquisition
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// OpenStore opens the configured ingest store and returns its close function
func OpenStore(ctx context.Context, cfg config.DatabaseConfig) (domain.IngestStore, func(), error) {
	switch cfg.Driver {
	case "sqlite":
		store, err := sqlite.Open(ctx, cfg.DSN)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { _ = store.Close() }, nil
	case "postgres":
		store, err := postgres.Open(ctx, cfg.DSN, cfg.MaxConns)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	default:
		return nil, nil, eris.Errorf("unsupported database driver %q", cfg.Driver)
	}
}
