package http

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/basketwatch/backend/internal/domain"
	"github.com/basketwatch/backend/internal/usecase"
)

// IngestRunner starts an ingestion run
type IngestRunner interface {
	Run(ctx context.Context, req usecase.RunRequest) (*usecase.RunSummary, error)
}

// PriceSearcher looks up a single product price
type PriceSearcher interface {
	Search(ctx context.Context, req usecase.PriceSearchRequest) (*usecase.PriceQuote, error)
}

// Handler holds dependencies for HTTP handlers
type Handler struct {
	ingest IngestRunner
	search PriceSearcher
	logger *zap.Logger
}

// NewHandler creates a new HTTP handler. Either service may be nil, in which
// case its endpoints answer 501.
func NewHandler(ingest IngestRunner, search PriceSearcher, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		ingest: ingest,
		search: search,
		logger: logger.Named("http"),
	}
}

// HealthCheck returns the health status of the API
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "basketwatch-backend",
		"version": "1.0.0",
	})
}

// IngestKroger runs one ingestion of the staple basket.
// The body is optional; ?debug=true adds per-staple rows to the response.
func (h *Handler) IngestKroger(c *gin.Context) {
	if h.ingest == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "Ingestion not configured"})
		return
	}

	var req usecase.RunRequest
	if c.Request.Body != nil {
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid payload"})
			return
		}
	}
	if c.Query("debug") == "true" {
		req.Debug = true
	}

	// A run finishes and writes its audit trail even if the client hangs up.
	summary, err := h.ingest.Run(context.WithoutCancel(c.Request.Context()), req)
	if err != nil {
		h.logger.Error("ingest run failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, summary)
}

// SearchPrice handles single product price lookups
func (h *Handler) SearchPrice(c *gin.Context) {
	if h.search == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "Price search not configured"})
		return
	}

	req := usecase.PriceSearchRequest{
		Term:       strings.TrimSpace(c.Query("term")),
		Unit:       c.Query("unit"),
		LocationID: c.Query("locationId"),
	}
	if req.Term == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "term is required"})
		return
	}

	var err error
	if req.Lat, err = queryFloat(c, "lat"); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "lat must be a number"})
		return
	}
	if req.Lon, err = queryFloat(c, "lon"); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "lon must be a number"})
		return
	}

	quote, err := h.search.Search(c.Request.Context(), req)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, quote)
	case errors.Is(err, domain.ErrInvalidRequest):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrProductNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "No product found for " + strconv.Quote(req.Term)})
	default:
		h.logger.Error("price search failed", zap.String("term", req.Term), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

// queryFloat parses an optional float query parameter
func queryFloat(c *gin.Context, key string) (*float64, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, err
	}
	return &v, nil
}
