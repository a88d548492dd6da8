package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/basketwatch/backend/internal/domain"
)

const (
	DefaultLatitude  = 33.7756
	DefaultLongitude = -84.3963

	fixedStoreName     = "Kroger"
	fixedLocationLabel = "unknown"
	tokenCacheKey      = "kroger:token"
)

// SessionConfig holds configuration for the catalog session resolver
type SessionConfig struct {
	LocationID    string
	Latitude      *float64
	Longitude     *float64
	TokenTTLSlack time.Duration
	LocationTTL   time.Duration
}

// LocationRequest carries per-call overrides for store resolution
type LocationRequest struct {
	LocationID string
	Lat        *float64
	Lon        *float64
}

// Session is an authenticated catalog session bound to one store
type Session struct {
	Token         string
	LocationID    string
	StoreName     string
	LocationLabel string
}

// SessionResolver acquires catalog tokens and resolves the store to query.
// Tokens and nearest-location lookups are cached when a cache is provided.
type SessionResolver struct {
	client domain.CatalogClient
	cache  domain.CacheRepository
	config SessionConfig
	logger *zap.Logger
}

// NewSessionResolver creates a new session resolver. cache may be nil.
func NewSessionResolver(
	client domain.CatalogClient,
	cache domain.CacheRepository,
	config SessionConfig,
	logger *zap.Logger,
) *SessionResolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.TokenTTLSlack <= 0 {
		config.TokenTTLSlack = time.Minute
	}
	if config.LocationTTL <= 0 {
		config.LocationTTL = 24 * time.Hour
	}
	return &SessionResolver{
		client: client,
		cache:  cache,
		config: config,
		logger: logger.Named("session"),
	}
}

// Resolve acquires a token and picks the store. Location precedence is the
// request's LocationID, the configured LocationID, then the store nearest to
// the request, configured, or default coordinates.
func (r *SessionResolver) Resolve(ctx context.Context, req LocationRequest) (*Session, error) {
	token, err := r.Token(ctx)
	if err != nil {
		return nil, err
	}

	locationID := req.LocationID
	if locationID == "" {
		locationID = r.config.LocationID
	}
	if locationID != "" {
		return &Session{
			Token:         token,
			LocationID:    locationID,
			StoreName:     fixedStoreName,
			LocationLabel: fixedLocationLabel,
		}, nil
	}

	lat := firstCoordinate(req.Lat, r.config.Latitude, DefaultLatitude)
	lon := firstCoordinate(req.Lon, r.config.Longitude, DefaultLongitude)

	location, err := r.nearestLocation(ctx, token, lat, lon)
	if err != nil {
		return nil, eris.Wrapf(domain.ErrLocationFailure,
			"no store near %.4f,%.4f (set BASKETWATCH_KROGER_LOCATION_ID to use a fixed store): %v", lat, lon, err)
	}

	label := location.Address
	if label == "" {
		label = location.Name
	}

	return &Session{
		Token:         token,
		LocationID:    location.LocationID,
		StoreName:     location.Name,
		LocationLabel: label,
	}, nil
}

// Token returns a cached access token or requests a new one
func (r *SessionResolver) Token(ctx context.Context) (string, error) {
	if r.cache != nil {
		if cached, err := r.cache.Get(ctx, tokenCacheKey); err == nil {
			if token, ok := cached.(*domain.AccessToken); ok {
				return token.AccessToken, nil
			}
		}
	}

	token, err := r.client.GetToken(ctx)
	if err != nil {
		return "", err
	}

	if r.cache != nil && token.ExpiresIn > 0 {
		ttl := time.Duration(token.ExpiresIn)*time.Second - r.config.TokenTTLSlack
		if err := r.cache.Set(ctx, tokenCacheKey, token, ttl); err != nil {
			r.logger.Warn("failed to cache access token", zap.Error(err))
		}
	}

	return token.AccessToken, nil
}

// InvalidateToken drops the cached access token so the next call requests
// a new one. Callers use it when the catalog answers 401.
func (r *SessionResolver) InvalidateToken(ctx context.Context) {
	if r.cache == nil {
		return
	}
	if err := r.cache.Delete(ctx, tokenCacheKey); err != nil {
		r.logger.Warn("failed to drop cached access token", zap.Error(err))
		return
	}
	r.logger.Info("access token rejected; cached token dropped")
}

func (r *SessionResolver) nearestLocation(ctx context.Context, token string, lat, lon float64) (*domain.Location, error) {
	key := fmt.Sprintf("kroger:location:%.4f:%.4f", lat, lon)

	if r.cache != nil {
		if cached, err := r.cache.Get(ctx, key); err == nil {
			if location, ok := cached.(*domain.Location); ok {
				return location, nil
			}
		}
	}

	location, err := r.client.FindNearestLocation(ctx, token, lat, lon)
	if err != nil {
		if domain.IsUnauthorized(err) {
			r.InvalidateToken(ctx)
		}
		return nil, err
	}
	if location == nil || location.LocationID == "" {
		return nil, eris.New("location lookup returned no store")
	}

	r.logger.Info("resolved nearest store",
		zap.String("location_id", location.LocationID),
		zap.String("store", location.Name))

	if r.cache != nil {
		if err := r.cache.Set(ctx, key, location, r.config.LocationTTL); err != nil {
			r.logger.Warn("failed to cache location", zap.Error(err))
		}
	}

	return location, nil
}

func firstCoordinate(override, configured *float64, fallback float64) float64 {
	if override != nil {
		return *override
	}
	if configured != nil {
		return *configured
	}
	return fallback
}
