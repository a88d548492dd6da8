package usecase

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/basketwatch/backend/internal/domain"
)

// RetryPolicy bounds the catalog search retries
type RetryPolicy struct {
	MaxAttempts int
	BackoffStep time.Duration
}

// DefaultRetryPolicy is three attempts with 600ms, then 1200ms, between them
var DefaultRetryPolicy = RetryPolicy{MaxAttempts: 3, BackoffStep: 600 * time.Millisecond}

// CatalogFetcherConfig holds configuration for the catalog fetcher
type CatalogFetcherConfig struct {
	Retry       RetryPolicy
	SearchLimit int
}

// CatalogFetcher searches the catalog for a term and selects the best
// candidate, retrying rate limits and temporary outages.
type CatalogFetcher struct {
	client      domain.CatalogClient
	selector    *ProductSelector
	policy      RetryPolicy
	searchLimit int
	logger      *zap.Logger

	// sleep waits between attempts; replaced in tests
	sleep func(ctx context.Context, d time.Duration) error
}

// NewCatalogFetcher creates a new catalog fetcher
func NewCatalogFetcher(
	client domain.CatalogClient,
	selector *ProductSelector,
	config CatalogFetcherConfig,
	logger *zap.Logger,
) *CatalogFetcher {
	if logger == nil {
		logger = zap.NewNop()
	}

	policy := config.Retry
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = DefaultRetryPolicy.MaxAttempts
	}
	if policy.BackoffStep <= 0 {
		policy.BackoffStep = DefaultRetryPolicy.BackoffStep
	}

	searchLimit := config.SearchLimit
	if searchLimit <= 0 {
		searchLimit = 10
	}

	return &CatalogFetcher{
		client:      client,
		selector:    selector,
		policy:      policy,
		searchLimit: searchLimit,
		logger:      logger.Named("fetcher"),
		sleep:       sleepContext,
	}
}

// FetchWithRetry searches for term and returns the selected product variant.
// A nil selection with a nil error means the search returned no products.
// When products exist but none is priced, the top result is returned with an
// unpriced variant so the caller can record it as such.
// Only transient upstream failures (429, 503) are retried, waiting
// BackoffStep x attempt between tries; the last error is returned once the
// attempts run out.
func (f *CatalogFetcher) FetchWithRetry(
	ctx context.Context,
	token, locationID, term, targetUnit string,
	pref domain.Preference,
) (*domain.Selection, error) {
	var lastErr error

	for attempt := 1; attempt <= f.policy.MaxAttempts; attempt++ {
		candidates, err := f.client.SearchProducts(ctx, token, locationID, term, f.searchLimit)
		if err == nil {
			return f.selectFrom(candidates, targetUnit, pref), nil
		}

		lastErr = err
		if !domain.IsTransient(err) {
			return nil, eris.Wrapf(err, "search %q", term)
		}
		if attempt == f.policy.MaxAttempts {
			break
		}

		wait := f.policy.BackoffStep * time.Duration(attempt)
		f.logger.Warn("transient catalog failure, retrying",
			zap.String("term", term),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", wait),
			zap.Error(err))

		if err := f.sleep(ctx, wait); err != nil {
			return nil, eris.Wrapf(err, "search %q cancelled during backoff", term)
		}
	}

	return nil, eris.Wrapf(lastErr, "search %q failed after %d attempts", term, f.policy.MaxAttempts)
}

func (f *CatalogFetcher) selectFrom(
	candidates []domain.CandidateProduct,
	targetUnit string,
	pref domain.Preference,
) *domain.Selection {
	if len(candidates) == 0 {
		return nil
	}
	if selection := f.selector.SelectBest(candidates, targetUnit, pref); selection != nil {
		return selection
	}

	top := candidates[0]
	var variant domain.CandidateVariant
	if len(top.Variants) > 0 {
		variant = top.Variants[0]
	}
	return &domain.Selection{Product: top, Variant: variant}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
