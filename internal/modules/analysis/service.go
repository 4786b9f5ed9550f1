// Package analysis computes current portfolio allocation and produces
// rebalance instructions by diffing current vs. target allocation.
package analysis

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/floats"

	"github.com/foliolabs/folio/internal/domain"
)

// DefaultTolerancePP is the default rebalance tolerance in percentage
// points: buckets whose gap is below it are held, not traded.
const DefaultTolerancePP = 1.0

// ClassifierInterface defines the classification contract needed by the analyzer
type ClassifierInterface interface {
	ClassifyAll(ctx context.Context, positions []domain.Position) map[string]domain.SymbolMetadata
}

// Service orchestrates allocation analysis and rebalance diffing.
// Both operations are pure given their inputs: identical positions and
// target yield identical output.
type Service struct {
	classifier  ClassifierInterface
	tolerancePP float64
	log         zerolog.Logger
}

// NewService creates a new analysis service
func NewService(classifier ClassifierInterface, tolerancePP float64, log zerolog.Logger) *Service {
	if tolerancePP <= 0 {
		tolerancePP = DefaultTolerancePP
	}
	return &Service{
		classifier:  classifier,
		tolerancePP: tolerancePP,
		log:         log.With().Str("service", "analysis").Logger(),
	}
}

// AnalyzePortfolio computes total value and allocation percentages per asset
// class and security type. The cash balance is included as a synthetic CASH
// entry (price 1.0). An empty portfolio returns all-zero percentages and
// total value 0, never an error.
func (s *Service) AnalyzePortfolio(ctx context.Context, positions []domain.Position, cashBalance float64) *AllocationReport {
	report := &AllocationReport{
		AssetClassPercentages:   make(map[domain.AssetClass]float64),
		SecurityTypePercentages: make(map[domain.SecurityType]float64),
		PositionCount:           len(positions),
		GeneratedAt:             time.Now(),
	}

	classValues := make(map[domain.AssetClass]float64)
	typeValues := make(map[domain.SecurityType]float64)
	unclassifiedValue := 0.0
	totalValue := 0.0

	classifications := s.classifier.ClassifyAll(ctx, positions)

	for _, pos := range positions {
		totalValue += pos.MarketValue

		meta, ok := classifications[pos.Symbol]
		if !ok {
			meta = domain.SymbolMetadata{AssetClass: domain.AssetClassOther, SecurityType: domain.SecurityTypeOther}
		}

		classValues[meta.AssetClass] += pos.MarketValue
		typeValues[meta.SecurityType] += pos.MarketValue

		if meta.AssetClass == domain.AssetClassOther && meta.SecurityType == domain.SecurityTypeOther {
			unclassifiedValue += pos.MarketValue
		}
	}

	if cashBalance != 0 {
		classValues[domain.AssetClassCash] += cashBalance
		typeValues[domain.SecurityTypeCashEquivalent] += cashBalance
		totalValue += cashBalance
	}

	report.TotalValue = totalValue
	report.UnclassifiedValue = unclassifiedValue

	if totalValue <= 0 {
		return report
	}

	for class, value := range classValues {
		report.AssetClassPercentages[class] = value / totalValue * 100
	}
	for secType, value := range typeValues {
		report.SecurityTypePercentages[secType] = value / totalValue * 100
	}
	report.UnclassifiedPercent = unclassifiedValue / totalValue * 100

	s.log.Debug().
		Float64("total_value", totalValue).
		Int("positions", len(positions)).
		Float64("unclassified_value", unclassifiedValue).
		Msg("Analyzed portfolio allocation")

	return report
}

// GenerateRebalanceInstructions diffs the current allocation against a
// target portfolio and emits instructions ordered by descending |delta|,
// along with the allocation report the diff was computed from so callers
// do not analyze (and classify) the portfolio a second time.
// Buckets within tolerance are held and omitted from the output. Each
// instruction exactly closes its bucket's gap, so notionally executing the
// set strictly reduces allocation drift and never overshoots.
func (s *Service) GenerateRebalanceInstructions(
	ctx context.Context,
	positions []domain.Position,
	cashBalance float64,
	target *domain.TargetPortfolio,
) ([]domain.RebalanceInstruction, *AllocationReport, error) {
	if err := target.Validate(); err != nil {
		return nil, nil, err
	}

	report := s.AnalyzePortfolio(ctx, positions, cashBalance)
	if report.TotalValue <= 0 {
		return []domain.RebalanceInstruction{}, report, nil
	}

	instructions := make([]domain.RebalanceInstruction, 0, len(domain.AllAssetClasses))

	// Iterate in the stable asset-class order so ties sort identically
	// across runs.
	for _, class := range domain.AllAssetClasses {
		currentWeight := report.AssetClassPercentages[class] / 100
		gap := target.Weight(class) - currentWeight

		if math.Abs(gap)*100 < s.tolerancePP {
			continue // HOLD, omitted to reduce noise
		}

		action := domain.ActionBuy
		if gap < 0 {
			action = domain.ActionSell
		}

		instructions = append(instructions, domain.RebalanceInstruction{
			AssetClass:   class,
			Action:       action,
			DeltaValue:   gap * report.TotalValue,
			DeltaPercent: gap * 100,
		})
	}

	sort.SliceStable(instructions, func(i, j int) bool {
		return math.Abs(instructions[i].DeltaValue) > math.Abs(instructions[j].DeltaValue)
	})

	s.log.Debug().
		Int("instructions", len(instructions)).
		Str("target", target.Name).
		Float64("total_value", report.TotalValue).
		Msg("Generated rebalance instructions")

	return instructions, report, nil
}

// DriftDistance returns the Euclidean distance between the current and
// target allocation weight vectors (fractions, ordered by AllAssetClasses).
func DriftDistance(report *AllocationReport, target *domain.TargetPortfolio) float64 {
	current, desired := weightVectors(report, target)
	return floats.Distance(current, desired, 2)
}

// TotalDrift returns the L1 drift Σ|current − target| across buckets.
func TotalDrift(report *AllocationReport, target *domain.TargetPortfolio) float64 {
	current, desired := weightVectors(report, target)
	return floats.Distance(current, desired, 1)
}

func weightVectors(report *AllocationReport, target *domain.TargetPortfolio) ([]float64, []float64) {
	current := make([]float64, len(domain.AllAssetClasses))
	desired := make([]float64, len(domain.AllAssetClasses))
	for i, class := range domain.AllAssetClasses {
		current[i] = report.AssetClassPercentages[class] / 100
		desired[i] = target.Weight(class)
	}
	return current, desired
}
