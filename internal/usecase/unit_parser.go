package usecase

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/basketwatch/backend/internal/domain"
)

// unitPattern matches "<number> <unit>" size text. Longer tokens are listed
// before their prefixes ("fl oz" before "oz", "kg" and "gallon" before "g").
var unitPattern = regexp.MustCompile(
	`(\d*\.?\d+)\s*(fl\.?\s*oz|ounces?|oz|pounds?|lbs?|count|ct|gallons?|gal|kilograms?|kg|grams?|g)\b`,
)

// unitFactor converts one unit token into its dimension's canonical magnitude
type unitFactor struct {
	dimension domain.Dimension
	factor    float64
}

var unitFactors = map[string]unitFactor{
	"fl oz":     {domain.DimensionVolume, 1},
	"gal":       {domain.DimensionVolume, 128},
	"gallon":    {domain.DimensionVolume, 128},
	"gallons":   {domain.DimensionVolume, 128},
	"oz":        {domain.DimensionWeight, 1},
	"ounce":     {domain.DimensionWeight, 1},
	"ounces":    {domain.DimensionWeight, 1},
	"lb":        {domain.DimensionWeight, 16},
	"lbs":       {domain.DimensionWeight, 16},
	"pound":     {domain.DimensionWeight, 16},
	"pounds":    {domain.DimensionWeight, 16},
	"g":         {domain.DimensionWeight, 0.035274},
	"gram":      {domain.DimensionWeight, 0.035274},
	"grams":     {domain.DimensionWeight, 0.035274},
	"kg":        {domain.DimensionWeight, 35.274},
	"kilogram":  {domain.DimensionWeight, 35.274},
	"kilograms": {domain.DimensionWeight, 35.274},
	"ct":        {domain.DimensionCount, 1},
	"count":     {domain.DimensionCount, 1},
}

// ParseUnit parses free-text size like "1 gal" or "18 oz" into a canonical
// magnitude and dimension. Returns nil when no known unit is found.
func ParseUnit(text string) *domain.ParsedUnit {
	normalized := strings.ReplaceAll(strings.ToLower(text), ",", " ")

	match := unitPattern.FindStringSubmatch(normalized)
	if match == nil {
		return nil
	}

	value, err := strconv.ParseFloat(match[1], 64)
	if err != nil {
		return nil
	}

	unit, ok := unitFactors[canonicalUnitToken(match[2])]
	if !ok {
		return nil
	}

	return &domain.ParsedUnit{
		Magnitude: value * unit.factor,
		Dimension: unit.dimension,
	}
}

// canonicalUnitToken folds "fl. oz" / "fl  oz" / "floz" spellings into "fl oz"
func canonicalUnitToken(token string) string {
	if strings.HasPrefix(token, "fl") {
		return "fl oz"
	}
	return token
}
