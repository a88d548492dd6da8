package domain

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrProductNotFound is returned when a catalog search yields no usable product
	ErrProductNotFound = errors.New("product not found in catalog")

	// ErrMissingCredentials is returned when the catalog client id or secret is not configured
	ErrMissingCredentials = errors.New("missing Kroger client credentials")

	// ErrTokenFailure is returned when the token endpoint rejects the credentials
	ErrTokenFailure = errors.New("catalog token request failed")

	// ErrLocationFailure is returned when no store location can be resolved for a run
	ErrLocationFailure = errors.New("store location could not be resolved")

	// ErrCatalogAPIFailure is returned when a catalog API request fails
	ErrCatalogAPIFailure = errors.New("catalog API request failed")

	// ErrItemNotFound is returned when no tracked item exists for a (name, unit) pair
	ErrItemNotFound = errors.New("tracked item not found")

	// ErrInvalidRequest is returned when request parameters are invalid
	ErrInvalidRequest = errors.New("invalid request parameters")

	// ErrCacheMiss is returned when data is not found in cache
	ErrCacheMiss = errors.New("cache miss")
)

// Catalog operations reported in UpstreamError.Op
const (
	OpToken     = "token"
	OpLocations = "locations"
	OpProducts  = "products"
)

// UpstreamError carries the HTTP status of a failed catalog call so retry
// policy can be decided on the status code rather than the message text.
type UpstreamError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s failed: %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("%s failed: %d: %s", e.Op, e.StatusCode, e.Body)
}

// Is lets errors.Is(err, ErrCatalogAPIFailure) match any upstream error,
// and ErrTokenFailure or ErrLocationFailure match failures of those calls.
func (e *UpstreamError) Is(target error) bool {
	switch target {
	case ErrCatalogAPIFailure:
		return true
	case ErrTokenFailure:
		return e.Op == OpToken
	case ErrLocationFailure:
		return e.Op == OpLocations
	}
	return false
}

// Transient reports whether the failure is a rate limit or temporary outage.
func (e *UpstreamError) Transient() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode == http.StatusServiceUnavailable
}

// IsTransient reports whether err wraps a retryable upstream failure.
func IsTransient(err error) bool {
	var upstream *UpstreamError
	if errors.As(err, &upstream) {
		return upstream.Transient()
	}
	return false
}

// IsUnauthorized reports whether err wraps an upstream 401, meaning the
// access token was rejected
func IsUnauthorized(err error) bool {
	var upstream *UpstreamError
	if errors.As(err, &upstream) {
		return upstream.StatusCode == http.StatusUnauthorized
	}
	return false
}
