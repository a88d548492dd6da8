package kroger

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/basketwatch/backend/internal/domain"
)

const (
	DefaultBaseURL = "https://api-ce.kroger.com/v1"
	tokenScope     = "product.compact locations.compact"
	searchRadius   = "5"

	// maxErrorBody caps how much of a failed response is kept in the error
	maxErrorBody = 512
)

// Config holds the Kroger API client settings
type Config struct {
	ClientID          string
	ClientSecret      string
	BaseURL           string
	RequestsPerSecond float64
	Burst             int
	Timeout           time.Duration
}

// Client handles communication with the Kroger public API
type Client struct {
	httpClient   *http.Client
	clientID     string
	clientSecret string
	baseURL      string
	rateLimiter  *rate.Limiter
	logger       *zap.Logger
}

// NewClient creates a new Kroger API client
func NewClient(config Config, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}

	baseURL := strings.TrimRight(config.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	// The public tier allows 10,000 product calls a day; stay well under it by default.
	rps := config.RequestsPerSecond
	if rps <= 0 {
		rps = 2
	}
	burst := config.Burst
	if burst <= 0 {
		burst = 5
	}

	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		clientID:     config.ClientID,
		clientSecret: config.ClientSecret,
		baseURL:      baseURL,
		rateLimiter:  rate.NewLimiter(rate.Limit(rps), burst),
		logger:       logger.Named("kroger"),
	}
}

// GetToken requests a client-credentials access token
func (c *Client) GetToken(ctx context.Context) (*domain.AccessToken, error) {
	if c.clientID == "" || c.clientSecret == "" {
		return nil, domain.ErrMissingCredentials
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("scope", tokenScope)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/connect/oauth2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, eris.Wrap(err, "failed to create token request")
	}
	req.SetBasicAuth(c.clientID, c.clientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	body, err := c.do(req, domain.OpToken)
	if err != nil {
		return nil, err
	}

	var token domain.AccessToken
	if err := json.Unmarshal(body, &token); err != nil {
		return nil, eris.Wrap(err, "failed to decode token response")
	}
	if token.AccessToken == "" {
		return nil, eris.Wrap(domain.ErrTokenFailure, "token response carried no access_token")
	}

	c.logger.Debug("acquired access token", zap.Int("expires_in", token.ExpiresIn))
	return &token, nil
}

// FindNearestLocation returns the closest store within five miles
func (c *Client) FindNearestLocation(ctx context.Context, token string, lat, lon float64) (*domain.Location, error) {
	params := url.Values{}
	params.Set("filter.lat.near", strconv.FormatFloat(lat, 'f', -1, 64))
	params.Set("filter.lon.near", strconv.FormatFloat(lon, 'f', -1, 64))
	params.Set("filter.radiusInMiles", searchRadius)
	params.Set("filter.limit", "1")

	body, err := c.get(ctx, token, "/locations", params, domain.OpLocations)
	if err != nil {
		return nil, err
	}

	var payload locationsResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, eris.Wrap(err, "failed to decode locations response")
	}
	if len(payload.Data) == 0 {
		return nil, eris.Wrapf(domain.ErrLocationFailure, "no Kroger locations near %v,%v", lat, lon)
	}

	return mapLocation(payload.Data[0]), nil
}

// SearchProducts searches the catalog at a store. An empty result is not an error.
func (c *Client) SearchProducts(ctx context.Context, token, locationID, term string, limit int) ([]domain.CandidateProduct, error) {
	c.logger.Debug("searching products",
		zap.String("term", term),
		zap.String("location_id", locationID),
		zap.Int("limit", limit))

	params := url.Values{}
	params.Set("filter.term", term)
	params.Set("filter.locationId", locationID)
	params.Set("filter.limit", strconv.Itoa(limit))

	body, err := c.get(ctx, token, "/products", params, domain.OpProducts)
	if err != nil {
		return nil, err
	}

	products, err := MapProducts(body)
	if err != nil {
		return nil, err
	}

	c.logger.Debug("products found", zap.String("term", term), zap.Int("count", len(products)))
	return products, nil
}

func (c *Client) get(ctx context.Context, token, path string, params url.Values, op string) ([]byte, error) {
	reqURL := c.baseURL + path + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, eris.Wrapf(err, "failed to create %s request", op)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	return c.do(req, op)
}

// do waits for the rate limiter, executes req and returns the body of a 2xx
// response. Other statuses become *domain.UpstreamError.
func (c *Client) do(req *http.Request, op string) ([]byte, error) {
	if err := c.rateLimiter.Wait(req.Context()); err != nil {
		return nil, eris.Wrap(err, "rate limiter error")
	}

	req.Header.Set("User-Agent", "basketwatch/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("request failed", zap.String("op", op), zap.Error(err))
		return nil, eris.Wrapf(err, "kroger %s request", op)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrapf(err, "failed to read %s response", op)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Warn("kroger API error",
			zap.String("op", op),
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", truncate(body, maxErrorBody)))
		return nil, &domain.UpstreamError{
			Op:         op,
			StatusCode: resp.StatusCode,
			Body:       string(truncate(body, maxErrorBody)),
		}
	}

	return body, nil
}

func truncate(b []byte, n int) []byte {
	if len(b) <= n {
		return b
	}
	return b[:n]
}
