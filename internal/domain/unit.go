package domain

// Dimension is the canonical measurement family of a parsed size.
type Dimension int

const (
	DimensionVolume Dimension = iota + 1 // fluid-ounce equivalents
	DimensionWeight                      // ounce equivalents
	DimensionCount
)

func (d Dimension) String() string {
	switch d {
	case DimensionVolume:
		return "volume"
	case DimensionWeight:
		return "weight"
	case DimensionCount:
		return "count"
	default:
		return "unknown"
	}
}

// ParsedUnit is a size normalized to a canonical magnitude within its dimension.
type ParsedUnit struct {
	Magnitude float64
	Dimension Dimension
}
