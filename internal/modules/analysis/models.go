package analysis

import (
	"time"

	"github.com/foliolabs/folio/internal/domain"
)

// AllocationReport is the result of analyzing a portfolio's current
// allocation. Percentages are retained at full precision; rounding for
// display happens at the presentation layer to avoid compounding error in
// downstream diffing.
type AllocationReport struct {
	TotalValue              float64                         `json:"total_value"`
	AssetClassPercentages   map[domain.AssetClass]float64   `json:"asset_class_percentages"`
	SecurityTypePercentages map[domain.SecurityType]float64 `json:"security_type_percentages"`

	// Unclassified positions (unknown symbols, OTHER/OTHER) are counted in
	// totals and in the OTHER buckets, and reported separately here so they
	// are never silently dropped.
	UnclassifiedValue   float64 `json:"unclassified_value"`
	UnclassifiedPercent float64 `json:"unclassified_percent"`

	PositionCount int       `json:"position_count"`
	GeneratedAt   time.Time `json:"generated_at"`
}
