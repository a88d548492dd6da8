package usecase

import (
	"math"
	"strings"

	"go.uber.org/zap"

	"github.com/basketwatch/backend/internal/domain"
)

// unmatchedUnitScore ranks variants whose size cannot be compared with the
// target behind every comparable variant without excluding them.
const unmatchedUnitScore = 1e9

// SelectorConfig holds configuration for the product selector
type SelectorConfig struct {
	EnableDebugLogging bool
}

// ProductSelector picks the catalog product and variant that best matches a
// staple, preferring a previously pinned product over distance scoring.
type ProductSelector struct {
	logger             *zap.Logger
	enableDebugLogging bool
}

// NewProductSelector creates a new product selector
func NewProductSelector(logger *zap.Logger, config SelectorConfig) *ProductSelector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProductSelector{
		logger:             logger.Named("selector"),
		enableDebugLogging: config.EnableDebugLogging,
	}
}

// SelectBest returns the candidate variant that should be priced for a staple
// whose target size is targetUnit, or nil when no candidate carries a price.
//
// Policy, in order: a pinned product id wins outright if it is present and
// priced; otherwise candidates are narrowed to the pinned brand and scored by
// size distance, lowest first, earliest on ties. When nothing is scored the
// first priced variant of the unfiltered list is returned.
func (s *ProductSelector) SelectBest(
	candidates []domain.CandidateProduct,
	targetUnit string,
	pref domain.Preference,
) *domain.Selection {
	if pinned := findPinned(candidates, pref.ProductID); pinned != nil {
		if s.enableDebugLogging {
			s.logger.Debug("pinned product matched",
				zap.String("product_id", pinned.Product.ProductID),
				zap.String("size", pinned.Variant.SizeText))
		}
		return pinned
	}

	pool := filterByBrand(candidates, pref.Brand)
	target := ParseUnit(targetUnit)

	var best *domain.Selection
	bestScore := math.Inf(1)

	for _, product := range pool {
		for _, variant := range product.Variants {
			if !variant.HasPrice() {
				continue
			}

			score := sizeDistance(target, variant.SizeText)

			if s.enableDebugLogging {
				s.logger.Debug("scored variant",
					zap.String("product_id", product.ProductID),
					zap.String("brand", product.Brand),
					zap.String("size", variant.SizeText),
					zap.String("target", targetUnit),
					zap.Float64("score", score))
			}

			if score < bestScore {
				bestScore = score
				best = &domain.Selection{Product: product, Variant: variant}
			}
		}
	}

	if best != nil {
		return best
	}

	// Nothing scored (no priced variant in the pool, or the brand filter
	// emptied it). Fall back to the first priced product of the full list.
	for _, product := range candidates {
		if variant, ok := product.FirstPricedVariant(); ok {
			if s.enableDebugLogging {
				s.logger.Debug("falling back to first priced product",
					zap.String("product_id", product.ProductID),
					zap.String("preferred_brand", pref.Brand))
			}
			return &domain.Selection{Product: product, Variant: variant}
		}
	}

	return nil
}

// findPinned returns the first priced variant of the candidate with productID
func findPinned(candidates []domain.CandidateProduct, productID string) *domain.Selection {
	if productID == "" {
		return nil
	}
	for _, product := range candidates {
		if product.ProductID != productID {
			continue
		}
		if variant, ok := product.FirstPricedVariant(); ok {
			return &domain.Selection{Product: product, Variant: variant}
		}
	}
	return nil
}

// filterByBrand keeps candidates whose brand matches, case-insensitive and trimmed.
// An empty brand keeps everything; a brand nobody carries keeps nothing.
func filterByBrand(candidates []domain.CandidateProduct, brand string) []domain.CandidateProduct {
	want := strings.TrimSpace(brand)
	if want == "" {
		return candidates
	}

	var filtered []domain.CandidateProduct
	for _, product := range candidates {
		if strings.EqualFold(strings.TrimSpace(product.Brand), want) {
			filtered = append(filtered, product)
		}
	}
	return filtered
}

// sizeDistance scores a variant size against the target: 0 when the target
// cannot be parsed, the absolute magnitude gap for the same dimension, and
// unmatchedUnitScore otherwise.
func sizeDistance(target *domain.ParsedUnit, sizeText string) float64 {
	if target == nil {
		return 0
	}
	parsed := ParseUnit(sizeText)
	if parsed == nil || parsed.Dimension != target.Dimension {
		return unmatchedUnitScore
	}
	return math.Abs(parsed.Magnitude - target.Magnitude)
}
