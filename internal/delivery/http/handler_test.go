package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/basketwatch/backend/config"
	"github.com/basketwatch/backend/internal/domain"
	"github.com/basketwatch/backend/internal/usecase"
)

// TestMain sets Gin to test mode once for all tests
func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

type stubRunner struct {
	summary *usecase.RunSummary
	err     error
	calls   int
	last    usecase.RunRequest
	ctxErr  error
}

func (s *stubRunner) Run(ctx context.Context, req usecase.RunRequest) (*usecase.RunSummary, error) {
	s.calls++
	s.last = req
	s.ctxErr = ctx.Err()
	if s.err != nil {
		return nil, s.err
	}
	return s.summary, nil
}

type stubSearcher struct {
	quote *usecase.PriceQuote
	err   error
	last  usecase.PriceSearchRequest
}

func (s *stubSearcher) Search(_ context.Context, req usecase.PriceSearchRequest) (*usecase.PriceQuote, error) {
	s.last = req
	if s.err != nil {
		return nil, s.err
	}
	return s.quote, nil
}

func testConfig(secret string) *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			Port:           "8080",
			Environment:    "test",
			AllowedOrigins: []string{"http://localhost:*"},
		},
		Ingest: config.IngestConfig{Secret: secret},
	}
}

func okSummary() *usecase.RunSummary {
	return &usecase.RunSummary{
		OK:               true,
		LocationID:       "01400943",
		StoreName:        "Kroger",
		BasketCount:      2,
		BasketTotalCents: 838,
		CapturedAt:       time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func setupTestRouter(runner IngestRunner, searcher PriceSearcher, secret string) *gin.Engine {
	return SetupRouter(testConfig(secret), NewHandler(runner, searcher, nil), nil)
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var response map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
		t.Fatalf("Failed to unmarshal response %q: %v", w.Body.String(), err)
	}
	return response
}

func TestHealthCheckEndpoint(t *testing.T) {
	t.Run("returns healthy status", func(t *testing.T) {
		router := setupTestRouter(nil, nil, "")

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest("GET", "/health", nil))

		if w.Code != http.StatusOK {
			t.Errorf("Status = %d, want %d", w.Code, http.StatusOK)
		}
		response := decodeBody(t, w)
		if response["status"] != "healthy" {
			t.Errorf("status = %v, want healthy", response["status"])
		}
		if response["service"] != "basketwatch-backend" {
			t.Errorf("service = %v, want basketwatch-backend", response["service"])
		}
	})

	t.Run("accepts GET requests only", func(t *testing.T) {
		router := setupTestRouter(nil, nil, "")

		for _, method := range []string{"POST", "PUT", "DELETE", "PATCH"} {
			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(method, "/health", nil))

			if w.Code != http.StatusNotFound {
				t.Errorf("Method %s: Status = %d, want %d", method, w.Code, http.StatusNotFound)
			}
		}
	})
}

func TestIngestEndpoint(t *testing.T) {
	t.Run("runs with empty body", func(t *testing.T) {
		runner := &stubRunner{summary: okSummary()}
		router := setupTestRouter(runner, nil, "")

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest("POST", "/api/v1/ingest/kroger", nil))

		if w.Code != http.StatusOK {
			t.Fatalf("Status = %d, want %d: %s", w.Code, http.StatusOK, w.Body.String())
		}
		if runner.calls != 1 {
			t.Errorf("runner calls = %d, want 1", runner.calls)
		}
		if runner.last.Debug {
			t.Errorf("debug should default to false")
		}
		response := decodeBody(t, w)
		if response["ok"] != true {
			t.Errorf("ok = %v, want true", response["ok"])
		}
		if response["basketCount"] != float64(2) {
			t.Errorf("basketCount = %v, want 2", response["basketCount"])
		}
		if _, present := response["debug"]; present {
			t.Errorf("debug rows should be omitted")
		}
	})

	t.Run("debug query and body overrides", func(t *testing.T) {
		runner := &stubRunner{summary: okSummary()}
		router := setupTestRouter(runner, nil, "")

		body := `{"locationId":"02900210","lat":39.1,"lon":-84.5}`
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest("POST", "/api/v1/ingest/kroger?debug=true", strings.NewReader(body)))

		if w.Code != http.StatusOK {
			t.Fatalf("Status = %d, want %d", w.Code, http.StatusOK)
		}
		if !runner.last.Debug {
			t.Errorf("debug = false, want true")
		}
		if runner.last.LocationID != "02900210" {
			t.Errorf("locationId = %q, want 02900210", runner.last.LocationID)
		}
		if runner.last.Lat == nil || *runner.last.Lat != 39.1 {
			t.Errorf("lat = %v, want 39.1", runner.last.Lat)
		}
	})

	t.Run("whitespace body is treated as empty", func(t *testing.T) {
		runner := &stubRunner{summary: okSummary()}
		router := setupTestRouter(runner, nil, "")

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest("POST", "/api/v1/ingest/kroger", strings.NewReader("  \n")))

		if w.Code != http.StatusOK {
			t.Errorf("Status = %d, want %d", w.Code, http.StatusOK)
		}
		if runner.calls != 1 {
			t.Errorf("runner calls = %d, want 1", runner.calls)
		}
	})

	t.Run("client disconnect does not cancel the run", func(t *testing.T) {
		runner := &stubRunner{summary: okSummary()}
		router := setupTestRouter(runner, nil, "")

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		req := httptest.NewRequest("POST", "/api/v1/ingest/kroger", nil).WithContext(ctx)

		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if runner.calls != 1 {
			t.Fatalf("runner calls = %d, want 1", runner.calls)
		}
		if runner.ctxErr != nil {
			t.Errorf("run context error = %v, want nil", runner.ctxErr)
		}
	})

	t.Run("malformed body is rejected", func(t *testing.T) {
		runner := &stubRunner{summary: okSummary()}
		router := setupTestRouter(runner, nil, "")

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest("POST", "/api/v1/ingest/kroger", strings.NewReader("{not json")))

		if w.Code != http.StatusBadRequest {
			t.Errorf("Status = %d, want %d", w.Code, http.StatusBadRequest)
		}
		if got := decodeBody(t, w)["error"]; got != "Invalid payload" {
			t.Errorf("error = %v, want Invalid payload", got)
		}
		if runner.calls != 0 {
			t.Errorf("runner should not be called")
		}
	})

	t.Run("run failure returns 500 with message", func(t *testing.T) {
		runner := &stubRunner{err: domain.ErrMissingCredentials}
		router := setupTestRouter(runner, nil, "")

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest("POST", "/api/v1/ingest/kroger", nil))

		if w.Code != http.StatusInternalServerError {
			t.Errorf("Status = %d, want %d", w.Code, http.StatusInternalServerError)
		}
		if got := decodeBody(t, w)["error"]; got != domain.ErrMissingCredentials.Error() {
			t.Errorf("error = %v, want %q", got, domain.ErrMissingCredentials.Error())
		}
	})

	t.Run("secret is enforced", func(t *testing.T) {
		runner := &stubRunner{summary: okSummary()}
		router := setupTestRouter(runner, nil, "s3cret")

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest("POST", "/api/v1/ingest/kroger", nil))
		if w.Code != http.StatusUnauthorized {
			t.Errorf("without secret: Status = %d, want %d", w.Code, http.StatusUnauthorized)
		}

		req := httptest.NewRequest("POST", "/api/v1/ingest/kroger", nil)
		req.Header.Set(IngestSecretHeader, "s3cret")
		w = httptest.NewRecorder()
		router.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Errorf("with secret: Status = %d, want %d", w.Code, http.StatusOK)
		}
		if runner.calls != 1 {
			t.Errorf("runner calls = %d, want 1", runner.calls)
		}
	})

	t.Run("secret does not guard search", func(t *testing.T) {
		searcher := &stubSearcher{quote: &usecase.PriceQuote{Term: "milk"}}
		router := setupTestRouter(nil, searcher, "s3cret")

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest("GET", "/api/v1/search?term=milk", nil))
		if w.Code != http.StatusOK {
			t.Errorf("Status = %d, want %d", w.Code, http.StatusOK)
		}
	})

	t.Run("not configured", func(t *testing.T) {
		router := setupTestRouter(nil, nil, "")

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest("POST", "/api/v1/ingest/kroger", nil))
		if w.Code != http.StatusNotImplemented {
			t.Errorf("Status = %d, want %d", w.Code, http.StatusNotImplemented)
		}
	})

	t.Run("only POST is routed", func(t *testing.T) {
		router := setupTestRouter(&stubRunner{summary: okSummary()}, nil, "")

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest("GET", "/api/v1/ingest/kroger", nil))
		if w.Code != http.StatusNotFound {
			t.Errorf("Status = %d, want %d", w.Code, http.StatusNotFound)
		}
	})
}

func TestSearchEndpoint(t *testing.T) {
	cents := int64(489)
	quote := &usecase.PriceQuote{
		Term:       "milk",
		LocationID: "01400943",
		ProductID:  "0001111041700",
		Brand:      "Kroger",
		Name:       "Kroger 2% Reduced Fat Milk",
		Unit:       "1 gal",
		PriceCents: &cents,
		Currency:   "USD",
	}

	tests := []struct {
		name       string
		query      string
		err        error
		wantStatus int
	}{
		{name: "found", query: "?term=milk&unit=1%20gal&lat=33.77&lon=-84.39", wantStatus: http.StatusOK},
		{name: "missing term", query: "", wantStatus: http.StatusBadRequest},
		{name: "blank term", query: "?term=%20%20", wantStatus: http.StatusBadRequest},
		{name: "bad latitude", query: "?term=milk&lat=north", wantStatus: http.StatusBadRequest},
		{name: "bad longitude", query: "?term=milk&lon=west", wantStatus: http.StatusBadRequest},
		{name: "no product", query: "?term=unobtainium", err: domain.ErrProductNotFound, wantStatus: http.StatusNotFound},
		{name: "invalid request from service", query: "?term=milk", err: domain.ErrInvalidRequest, wantStatus: http.StatusBadRequest},
		{
			name:       "upstream failure",
			query:      "?term=milk",
			err:        &domain.UpstreamError{Op: domain.OpProducts, StatusCode: 503},
			wantStatus: http.StatusInternalServerError,
		},
		{name: "other failure", query: "?term=milk", err: errors.New("boom"), wantStatus: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			searcher := &stubSearcher{quote: quote, err: tt.err}
			router := setupTestRouter(nil, searcher, "")

			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest("GET", "/api/v1/search"+tt.query, nil))

			if w.Code != tt.wantStatus {
				t.Errorf("Status = %d, want %d: %s", w.Code, tt.wantStatus, w.Body.String())
			}
			response := decodeBody(t, w)
			if tt.wantStatus != http.StatusOK {
				if _, ok := response["error"].(string); !ok {
					t.Errorf("error field missing: %v", response)
				}
				return
			}
			if response["priceCents"] != float64(489) {
				t.Errorf("priceCents = %v, want 489", response["priceCents"])
			}
		})
	}

	t.Run("passes parameters through", func(t *testing.T) {
		searcher := &stubSearcher{quote: quote}
		router := setupTestRouter(nil, searcher, "")

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest("GET", "/api/v1/search?term=%20eggs%20&unit=12%20ct&locationId=02900210&lat=39.1&lon=-84.5", nil))

		if w.Code != http.StatusOK {
			t.Fatalf("Status = %d, want %d", w.Code, http.StatusOK)
		}
		if searcher.last.Term != "eggs" {
			t.Errorf("term = %q, want eggs", searcher.last.Term)
		}
		if searcher.last.Unit != "12 ct" {
			t.Errorf("unit = %q, want 12 ct", searcher.last.Unit)
		}
		if searcher.last.LocationID != "02900210" {
			t.Errorf("locationId = %q, want 02900210", searcher.last.LocationID)
		}
		if searcher.last.Lat == nil || *searcher.last.Lat != 39.1 || searcher.last.Lon == nil || *searcher.last.Lon != -84.5 {
			t.Errorf("coordinates = %v,%v, want 39.1,-84.5", searcher.last.Lat, searcher.last.Lon)
		}
	})
}

func TestCORSIntegration(t *testing.T) {
	router := setupTestRouter(nil, nil, "")

	req := httptest.NewRequest("GET", "/health", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("Access-Control-Allow-Origin = %q, want http://localhost:3000", got)
	}
}

func TestJSONResponses(t *testing.T) {
	endpoints := []struct {
		method string
		path   string
	}{
		{"GET", "/health"},
		{"GET", "/api/v1/search"},
		{"POST", "/api/v1/ingest/kroger"},
	}

	for _, endpoint := range endpoints {
		t.Run(endpoint.method+" "+endpoint.path, func(t *testing.T) {
			router := setupTestRouter(&stubRunner{summary: okSummary()}, &stubSearcher{}, "")

			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(endpoint.method, endpoint.path, nil))

			if got := w.Header().Get("Content-Type"); got != "application/json; charset=utf-8" {
				t.Errorf("Content-Type = %q, want application/json; charset=utf-8", got)
			}
			decodeBody(t, w)
		})
	}
}
