package usecase

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/basketwatch/backend/internal/domain"
)

// PriceSearchRequest is a one-off price lookup for a search term
type PriceSearchRequest struct {
	Term       string
	Unit       string
	LocationID string
	Lat        *float64
	Lon        *float64
}

// PriceQuote is the best-matching product price for a search
type PriceQuote struct {
	Term          string `json:"term"`
	LocationID    string `json:"locationId"`
	StoreName     string `json:"storeName"`
	LocationLabel string `json:"locationLabel"`
	ProductID     string `json:"productId"`
	Brand         string `json:"brand,omitempty"`
	Name          string `json:"name"`
	Unit          string `json:"unit"`
	PriceCents    *int64 `json:"priceCents"`
	Currency      string `json:"currency"`
	ImageURL      string `json:"imageUrl,omitempty"`
}

// PriceSearchService looks up the current price of a single product term
type PriceSearchService struct {
	sessions *SessionResolver
	fetcher  *CatalogFetcher
	currency string
	logger   *zap.Logger
}

// NewPriceSearchService creates a new price search service
func NewPriceSearchService(sessions *SessionResolver, fetcher *CatalogFetcher, currency string, logger *zap.Logger) *PriceSearchService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if currency == "" {
		currency = "USD"
	}
	return &PriceSearchService{
		sessions: sessions,
		fetcher:  fetcher,
		currency: currency,
		logger:   logger.Named("search"),
	}
}

// Search returns the best match for the term at the resolved store.
// Flow: resolve session -> fetch with retry -> select -> quote
func (s *PriceSearchService) Search(ctx context.Context, req PriceSearchRequest) (*PriceQuote, error) {
	term := strings.TrimSpace(req.Term)
	if term == "" {
		return nil, domain.ErrInvalidRequest
	}

	session, err := s.sessions.Resolve(ctx, LocationRequest{
		LocationID: req.LocationID,
		Lat:        req.Lat,
		Lon:        req.Lon,
	})
	if err != nil {
		return nil, err
	}

	selection, err := s.fetcher.FetchWithRetry(ctx, session.Token, session.LocationID, term, req.Unit, domain.Preference{})
	if err != nil {
		if domain.IsUnauthorized(err) {
			s.sessions.InvalidateToken(ctx)
		}
		return nil, err
	}
	if selection == nil {
		s.logger.Info("no product for term", zap.String("term", term))
		return nil, domain.ErrProductNotFound
	}

	quote := &PriceQuote{
		Term:          term,
		LocationID:    session.LocationID,
		StoreName:     session.StoreName,
		LocationLabel: session.LocationLabel,
		ProductID:     selection.Product.ProductID,
		Brand:         selection.Product.Brand,
		Name:          selection.Product.Description,
		Unit:          quoteUnit(selection),
		Currency:      s.currency,
		ImageURL:      selection.Product.ImageURL,
	}
	if cents, ok := selection.PriceCents(); ok {
		quote.PriceCents = &cents
	}

	return quote, nil
}

func quoteUnit(selection *domain.Selection) string {
	if size := selection.SizeLabel(); size != "" {
		return size
	}
	return "each"
}
