// An ingestion run prices every staple against one store and records the outcome.
//
// A run is not transactional. Every store call (item upsert, price snapshot,
// audit log entry, basket snapshot) commits on its own, so an interrupted run
// leaves whatever it already wrote, and a staple whose snapshot insert fails
// still gets an "error" log entry after its item upsert has committed. Callers
// that retry a failed run get at-least-once snapshots for the staples that
// succeeded the first time. Concurrent runs are not coordinated; the
// preference upsert itself is first-writer-wins.

package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/basketwatch/backend/internal/domain"
)

// Event subjects, relative to the publisher's prefix
const (
	SubjectRunCompleted = "completed"
	SubjectIngestLog    = "log"
)

const tracerName = "github.com/basketwatch/backend/internal/usecase"

// IngestServiceConfig holds configuration for the ingestion service
type IngestServiceConfig struct {
	Source   string
	Currency string
	Staples  []domain.StapleDefinition
}

// RunRequest carries optional per-run overrides
type RunRequest struct {
	LocationID string   `json:"locationId,omitempty"`
	Lat        *float64 `json:"lat,omitempty"`
	Lon        *float64 `json:"lon,omitempty"`
	Debug      bool     `json:"debug,omitempty"`
}

// RunSummary is the result of a completed run
type RunSummary struct {
	OK               bool       `json:"ok"`
	LocationID       string     `json:"locationId"`
	StoreName        string     `json:"storeName"`
	BasketCount      int        `json:"basketCount"`
	BasketTotalCents int64      `json:"basketTotalCents"`
	CapturedAt       time.Time  `json:"capturedAt"`
	Debug            []DebugRow `json:"debug,omitempty"`
}

// IngestService runs the staple ingestion against the catalog
type IngestService struct {
	sessions  *SessionResolver
	fetcher   *CatalogFetcher
	store     domain.IngestStore
	publisher domain.EventPublisher
	config    IngestServiceConfig
	logger    *zap.Logger
	tracer    trace.Tracer
	now       func() time.Time
}

// NewIngestService creates a new ingestion service. publisher may be nil.
func NewIngestService(
	sessions *SessionResolver,
	fetcher *CatalogFetcher,
	store domain.IngestStore,
	publisher domain.EventPublisher,
	config IngestServiceConfig,
	logger *zap.Logger,
) *IngestService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.Source == "" {
		config.Source = "kroger"
	}
	if config.Currency == "" {
		config.Currency = "USD"
	}
	if config.Staples == nil {
		config.Staples = domain.Staples
	}

	return &IngestService{
		sessions:  sessions,
		fetcher:   fetcher,
		store:     store,
		publisher: publisher,
		config:    config,
		logger:    logger.Named("ingest"),
		tracer:    otel.Tracer(tracerName),
		now:       time.Now,
	}
}

// Run ingests every staple. It fails only when no token or store can be
// obtained; per-staple failures end up in the audit log instead.
func (s *IngestService) Run(ctx context.Context, req RunRequest) (*RunSummary, error) {
	ctx, span := s.tracer.Start(ctx, "ingest.run")
	defer span.End()

	session, err := s.sessions.Resolve(ctx, LocationRequest{
		LocationID: req.LocationID,
		Lat:        req.Lat,
		Lon:        req.Lon,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.logger.Error("ingest run aborted", zap.Error(err))
		return nil, err
	}

	span.SetAttributes(
		attribute.String("store.location_id", session.LocationID),
		attribute.String("store.name", session.StoreName),
	)

	capturedAt := s.now().UTC()
	outcomes := make([]StapleOutcome, 0, len(s.config.Staples))
	for _, staple := range s.config.Staples {
		outcomes = append(outcomes, s.processStaple(ctx, session, staple, capturedAt))
	}

	if err := ctx.Err(); err != nil {
		s.logger.Warn("ingest run interrupted; recording outcomes so far", zap.Error(err))
	}

	// The audit trail is written even when the caller has gone away.
	ctx = context.WithoutCancel(ctx)
	summary := s.recordOutcomes(ctx, session, outcomes, capturedAt)
	if req.Debug {
		summary.Debug = make([]DebugRow, 0, len(outcomes))
		for _, outcome := range outcomes {
			summary.Debug = append(summary.Debug, outcome.DebugRow())
		}
	}

	span.SetAttributes(attribute.Int("basket.count", summary.BasketCount))
	s.logger.Info("ingest run completed",
		zap.String("location_id", summary.LocationID),
		zap.String("store", summary.StoreName),
		zap.Int("basket_count", summary.BasketCount),
		zap.Int64("basket_total_cents", summary.BasketTotalCents))

	s.publish(ctx, SubjectRunCompleted, summary)

	return summary, nil
}

// processStaple resolves one staple to an outcome. It never returns an error
// or panics; failures become OutcomeError.
func (s *IngestService) processStaple(
	ctx context.Context,
	session *Session,
	staple domain.StapleDefinition,
	capturedAt time.Time,
) (outcome StapleOutcome) {
	ctx, span := s.tracer.Start(ctx, "ingest.staple",
		trace.WithAttributes(attribute.String("staple.term", staple.SearchTerm)))

	defer func() {
		if r := recover(); r != nil {
			outcome = StapleOutcome{Kind: OutcomeError, Staple: staple, Err: eris.Errorf("panic: %v", r)}
		}
		span.SetAttributes(attribute.String("staple.status", string(outcome.Status())))
		if outcome.Err != nil {
			span.RecordError(outcome.Err)
			span.SetStatus(codes.Error, outcome.Err.Error())
		}
		span.End()
	}()

	// Store writes outlive a cancelled caller so a match that was already
	// fetched is still recorded.
	writeCtx := context.WithoutCancel(ctx)

	fail := func(selection *domain.Selection, err error) StapleOutcome {
		return StapleOutcome{Kind: OutcomeError, Staple: staple, Selection: selection, Err: err}
	}

	item, err := s.store.FindItem(ctx, staple.Label, staple.Unit)
	if err != nil && !errors.Is(err, domain.ErrItemNotFound) {
		return fail(nil, err)
	}

	selection, err := s.fetcher.FetchWithRetry(ctx, session.Token, session.LocationID, staple.SearchTerm, staple.Unit, item.Preference())
	if err != nil {
		if domain.IsUnauthorized(err) {
			s.sessions.InvalidateToken(writeCtx)
		}
		return fail(nil, err)
	}
	if selection == nil {
		return StapleOutcome{Kind: OutcomeNoProduct, Staple: staple}
	}

	cents, priced := selection.PriceCents()

	// Only a priced match is pinned; an unpriced one just keeps the item tracked.
	observed := domain.Preference{}
	if priced {
		observed = selection.Observed()
	}

	item, err = s.store.UpsertItem(writeCtx, staple, observed)
	if err != nil {
		return fail(selection, err)
	}

	if !priced {
		return StapleOutcome{Kind: OutcomeNoPrice, Staple: staple, Selection: selection}
	}

	snapshot := &domain.PriceSnapshot{
		ID:         uuid.NewString(),
		ItemID:     item.ID,
		LocationID: session.LocationID,
		StoreName:  session.StoreName,
		PriceCents: cents,
		Currency:   s.config.Currency,
		CapturedAt: capturedAt,
		Source:     s.config.Source,
		RawPayload: snapshotPayload(session, staple, selection),
	}
	if err := s.store.InsertPriceSnapshot(writeCtx, snapshot); err != nil {
		return fail(selection, err)
	}

	return StapleOutcome{Kind: OutcomeMatched, Staple: staple, Selection: selection, Snapshot: snapshot}
}

// recordOutcomes writes one audit entry per outcome and the basket snapshot
func (s *IngestService) recordOutcomes(
	ctx context.Context,
	session *Session,
	outcomes []StapleOutcome,
	capturedAt time.Time,
) *RunSummary {
	summary := &RunSummary{
		OK:         true,
		LocationID: session.LocationID,
		StoreName:  session.StoreName,
		CapturedAt: capturedAt,
	}

	for _, outcome := range outcomes {
		entry := &domain.IngestLogEntry{
			ID:         uuid.NewString(),
			CapturedAt: capturedAt,
			Term:       outcome.Staple.SearchTerm,
			Status:     outcome.Status(),
			Message:    outcome.Message(),
			PriceCents: outcome.PriceCents(),
			LocationID: session.LocationID,
			StoreName:  session.StoreName,
			Source:     s.config.Source,
		}

		if outcome.Kind == OutcomeMatched {
			summary.BasketCount++
			summary.BasketTotalCents += outcome.Snapshot.PriceCents
		}

		if outcome.Kind == OutcomeError {
			s.logger.Warn("staple failed",
				zap.String("term", entry.Term),
				zap.Error(outcome.Err))
		}

		if err := s.store.InsertIngestLog(ctx, entry); err != nil {
			s.logger.Error("failed to write ingest log",
				zap.String("term", entry.Term),
				zap.String("status", string(entry.Status)),
				zap.Error(err))
			continue
		}
		s.publish(ctx, SubjectIngestLog, entry)
	}

	if summary.BasketCount == 0 {
		return summary
	}

	basket := &domain.BasketSnapshot{
		ID:         uuid.NewString(),
		CapturedAt: capturedAt,
		TotalCents: summary.BasketTotalCents,
		ItemCount:  summary.BasketCount,
		Currency:   s.config.Currency,
		LocationID: session.LocationID,
		StoreName:  session.StoreName,
		Source:     s.config.Source,
	}
	if err := s.store.InsertBasketSnapshot(ctx, basket); err != nil {
		s.logger.Error("failed to write basket snapshot",
			zap.Int64("total_cents", basket.TotalCents),
			zap.Error(err))
	}

	return summary
}

func (s *IngestService) publish(ctx context.Context, subject string, v any) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, subject, v); err != nil {
		s.logger.Warn("failed to publish event", zap.String("subject", subject), zap.Error(err))
	}
}

type snapshotRaw struct {
	LocationLabel string          `json:"locationLabel"`
	Term          string          `json:"term"`
	Product       json.RawMessage `json:"kroger,omitempty"`
}

func snapshotPayload(session *Session, staple domain.StapleDefinition, selection *domain.Selection) json.RawMessage {
	raw := selection.Product.Raw
	if len(raw) == 0 {
		if encoded, err := json.Marshal(selection.Product); err == nil {
			raw = encoded
		}
	}

	payload, err := json.Marshal(snapshotRaw{
		LocationLabel: session.LocationLabel,
		Term:          staple.SearchTerm,
		Product:       raw,
	})
	if err != nil {
		return nil
	}
	return payload
}
