package usecase

import (
	"fmt"

	"github.com/basketwatch/backend/internal/domain"
)

// OutcomeKind tags how one staple's processing ended
type OutcomeKind int

const (
	OutcomeMatched OutcomeKind = iota + 1
	OutcomeNoProduct
	OutcomeNoPrice
	OutcomeError
)

// StapleOutcome is the terminal result of processing one staple in one run.
// Snapshot is set only for OutcomeMatched, Err only for OutcomeError.
type StapleOutcome struct {
	Kind      OutcomeKind
	Staple    domain.StapleDefinition
	Selection *domain.Selection
	Snapshot  *domain.PriceSnapshot
	Err       error
}

// Status maps the outcome onto the audit log status
func (o StapleOutcome) Status() domain.IngestStatus {
	switch o.Kind {
	case OutcomeMatched:
		return domain.IngestStatusOK
	case OutcomeNoProduct:
		return domain.IngestStatusNoProduct
	case OutcomeNoPrice:
		return domain.IngestStatusNoPrice
	default:
		return domain.IngestStatusError
	}
}

// Message is the human-readable audit message for the outcome
func (o StapleOutcome) Message() string {
	switch o.Kind {
	case OutcomeMatched:
		return fmt.Sprintf("%s (%s)", o.Selection.Product.Description, o.Selection.SizeLabel())
	case OutcomeNoProduct:
		return "No product found"
	case OutcomeNoPrice:
		return "No price found"
	default:
		if o.Err == nil {
			return "unknown error"
		}
		return o.Err.Error()
	}
}

// PriceCents is the captured price, nil unless matched
func (o StapleOutcome) PriceCents() *int64 {
	if o.Snapshot == nil {
		return nil
	}
	cents := o.Snapshot.PriceCents
	return &cents
}

// DebugRow is the per-staple diagnostic returned when a run asks for debug output
type DebugRow struct {
	Label      string              `json:"label"`
	Term       string              `json:"term"`
	Status     domain.IngestStatus `json:"status"`
	Message    string              `json:"message"`
	ProductID  string              `json:"productId,omitempty"`
	Brand      string              `json:"brand,omitempty"`
	Size       string              `json:"size,omitempty"`
	PriceCents *int64              `json:"priceCents,omitempty"`
}

// DebugRow renders the outcome for the debug response
func (o StapleOutcome) DebugRow() DebugRow {
	row := DebugRow{
		Label:      o.Staple.Label,
		Term:       o.Staple.SearchTerm,
		Status:     o.Status(),
		Message:    o.Message(),
		PriceCents: o.PriceCents(),
	}
	if o.Selection != nil {
		row.ProductID = o.Selection.Product.ProductID
		row.Brand = o.Selection.Product.Brand
		row.Size = o.Selection.SizeLabel()
	}
	return row
}
