package analysis

import (
	"context"
	"math"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/foliolabs/folio/internal/domain"
)

// stubClassifier resolves classifications from a fixed map; unmapped symbols
// fall back to OTHER/OTHER like the real classifier.
type stubClassifier struct {
	metadata map[string]domain.SymbolMetadata
	calls    int
}

func (s *stubClassifier) ClassifyAll(_ context.Context, positions []domain.Position) map[string]domain.SymbolMetadata {
	s.calls++
	result := make(map[string]domain.SymbolMetadata, len(positions))
	for _, pos := range positions {
		if meta, ok := s.metadata[pos.Symbol]; ok {
			result[pos.Symbol] = meta
		} else {
			result[pos.Symbol] = domain.SymbolMetadata{
				Symbol:       pos.Symbol,
				AssetClass:   domain.AssetClassOther,
				SecurityType: domain.SecurityTypeOther,
			}
		}
	}
	return result
}

func equity(symbol string) domain.SymbolMetadata {
	return domain.SymbolMetadata{Symbol: symbol, AssetClass: domain.AssetClassEquity, SecurityType: domain.SecurityTypeStock}
}

func newTestService(metadata map[string]domain.SymbolMetadata, tolerancePP float64) *Service {
	return NewService(&stubClassifier{metadata: metadata}, tolerancePP, zerolog.Nop())
}

func TestAnalyzePortfolioAllocation(t *testing.T) {
	metadata := map[string]domain.SymbolMetadata{
		"AAPL": equity("AAPL"),
		"MSFT": equity("MSFT"),
		"SPY":  {Symbol: "SPY", AssetClass: domain.AssetClassEquity, SecurityType: domain.SecurityTypeETF},
		"AGG":  {Symbol: "AGG", AssetClass: domain.AssetClassFixedIncome, SecurityType: domain.SecurityTypeETF},
	}
	positions := []domain.Position{
		{Symbol: "AAPL", MarketValue: 2000},
		{Symbol: "MSFT", MarketValue: 2000},
		{Symbol: "SPY", MarketValue: 2000},
		{Symbol: "AGG", MarketValue: 2000},
	}
	svc := newTestService(metadata, 1.0)

	report := svc.AnalyzePortfolio(context.Background(), positions, 0)

	assert.InDelta(t, 8000.0, report.TotalValue, 1e-9)
	assert.InDelta(t, 75.0, report.AssetClassPercentages[domain.AssetClassEquity], 1e-9)
	assert.InDelta(t, 25.0, report.AssetClassPercentages[domain.AssetClassFixedIncome], 1e-9)
	assert.Equal(t, 4, report.PositionCount)
}

func TestAnalyzePortfolioPercentagesSumToHundred(t *testing.T) {
	metadata := map[string]domain.SymbolMetadata{
		"VTI": {Symbol: "VTI", AssetClass: domain.AssetClassEquity, SecurityType: domain.SecurityTypeETF},
		"BND": {Symbol: "BND", AssetClass: domain.AssetClassFixedIncome, SecurityType: domain.SecurityTypeETF},
		"GLD": {Symbol: "GLD", AssetClass: domain.AssetClassCommodity, SecurityType: domain.SecurityTypeETF},
	}
	positions := []domain.Position{
		{Symbol: "VTI", MarketValue: 61234.56},
		{Symbol: "BND", MarketValue: 20999.99},
		{Symbol: "GLD", MarketValue: 5150.25},
		{Symbol: "MYSTERY", MarketValue: 333.33},
	}
	svc := newTestService(metadata, 1.0)

	report := svc.AnalyzePortfolio(context.Background(), positions, 12500.75)

	sum := 0.0
	for _, pct := range report.AssetClassPercentages {
		sum += pct
	}
	assert.InDelta(t, 100.0, sum, 0.01)

	sum = 0.0
	for _, pct := range report.SecurityTypePercentages {
		sum += pct
	}
	assert.InDelta(t, 100.0, sum, 0.01)

	// Cash appears as its own synthetic bucket
	assert.Greater(t, report.AssetClassPercentages[domain.AssetClassCash], 0.0)
	assert.InDelta(t, 333.33, report.UnclassifiedValue, 1e-9)
}

func TestAnalyzeEmptyPortfolio(t *testing.T) {
	svc := newTestService(nil, 1.0)

	report := svc.AnalyzePortfolio(context.Background(), nil, 0)

	assert.Equal(t, 0.0, report.TotalValue)
	assert.Empty(t, report.AssetClassPercentages)
	assert.Empty(t, report.SecurityTypePercentages)
	assert.Equal(t, 0, report.PositionCount)
}

func TestGenerateRebalanceInstructions(t *testing.T) {
	metadata := map[string]domain.SymbolMetadata{
		"VTI": {Symbol: "VTI", AssetClass: domain.AssetClassEquity, SecurityType: domain.SecurityTypeETF},
		"BND": {Symbol: "BND", AssetClass: domain.AssetClassFixedIncome, SecurityType: domain.SecurityTypeETF},
	}
	// 90% equity, 10% fixed income against a 60/30/10 target
	positions := []domain.Position{
		{Symbol: "VTI", MarketValue: 90000},
		{Symbol: "BND", MarketValue: 10000},
	}
	target, err := domain.NewTargetPortfolio("balanced", domain.RiskProfileBalanced, map[domain.AssetClass]float64{
		domain.AssetClassEquity:      0.60,
		domain.AssetClassFixedIncome: 0.30,
		domain.AssetClassCash:        0.10,
	})
	require.NoError(t, err)
	svc := newTestService(metadata, 1.0)

	instructions, report, err := svc.GenerateRebalanceInstructions(context.Background(), positions, 0, target)
	require.NoError(t, err)
	require.Len(t, instructions, 3)

	// Ordered by descending |delta|
	assert.Equal(t, domain.AssetClassEquity, instructions[0].AssetClass)
	assert.Equal(t, domain.ActionSell, instructions[0].Action)
	assert.InDelta(t, -30000.0, instructions[0].DeltaValue, 1e-6)

	assert.Equal(t, domain.AssetClassFixedIncome, instructions[1].AssetClass)
	assert.Equal(t, domain.ActionBuy, instructions[1].Action)
	assert.InDelta(t, 20000.0, instructions[1].DeltaValue, 1e-6)

	assert.Equal(t, domain.AssetClassCash, instructions[2].AssetClass)
	assert.Equal(t, domain.ActionBuy, instructions[2].Action)
	assert.InDelta(t, 10000.0, instructions[2].DeltaValue, 1e-6)

	// Executing the full set closes every gap exactly
	netPerClass := make(map[domain.AssetClass]float64)
	for _, ins := range instructions {
		netPerClass[ins.AssetClass] += ins.DeltaValue
	}
	for _, class := range domain.AllAssetClasses {
		current := report.AssetClassPercentages[class] / 100 * report.TotalValue
		want := target.Weight(class) * report.TotalValue
		assert.InDelta(t, want, current+netPerClass[class], 1e-6, "class %s", class)
	}
}

func TestGenerateRebalanceDeterministic(t *testing.T) {
	metadata := map[string]domain.SymbolMetadata{
		"VTI": {Symbol: "VTI", AssetClass: domain.AssetClassEquity, SecurityType: domain.SecurityTypeETF},
		"BND": {Symbol: "BND", AssetClass: domain.AssetClassFixedIncome, SecurityType: domain.SecurityTypeETF},
		"GLD": {Symbol: "GLD", AssetClass: domain.AssetClassCommodity, SecurityType: domain.SecurityTypeETF},
	}
	positions := []domain.Position{
		{Symbol: "VTI", MarketValue: 52000},
		{Symbol: "BND", MarketValue: 18000},
		{Symbol: "GLD", MarketValue: 9000},
	}
	target, err := domain.NewTargetPortfolio("custom", domain.RiskProfileCustom, map[domain.AssetClass]float64{
		domain.AssetClassEquity:      0.50,
		domain.AssetClassFixedIncome: 0.25,
		domain.AssetClassCommodity:   0.10,
		domain.AssetClassCash:        0.15,
	})
	require.NoError(t, err)
	svc := newTestService(metadata, 1.0)

	first, _, err := svc.GenerateRebalanceInstructions(context.Background(), positions, 3000, target)
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		again, _, err := svc.GenerateRebalanceInstructions(context.Background(), positions, 3000, target)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}

	for i := 1; i < len(first); i++ {
		assert.GreaterOrEqual(t, math.Abs(first[i-1].DeltaValue), math.Abs(first[i].DeltaValue))
	}
}

func TestGenerateRebalanceHoldsWithinTolerance(t *testing.T) {
	metadata := map[string]domain.SymbolMetadata{
		"VTI": {Symbol: "VTI", AssetClass: domain.AssetClassEquity, SecurityType: domain.SecurityTypeETF},
		"BND": {Symbol: "BND", AssetClass: domain.AssetClassFixedIncome, SecurityType: domain.SecurityTypeETF},
	}
	// 60.5/39.5 against a 60/40 target: both gaps are inside a 1pp tolerance
	positions := []domain.Position{
		{Symbol: "VTI", MarketValue: 60500},
		{Symbol: "BND", MarketValue: 39500},
	}
	target, err := domain.NewTargetPortfolio("sixty-forty", domain.RiskProfileBalanced, map[domain.AssetClass]float64{
		domain.AssetClassEquity:      0.60,
		domain.AssetClassFixedIncome: 0.40,
	})
	require.NoError(t, err)
	svc := newTestService(metadata, 1.0)

	instructions, _, err := svc.GenerateRebalanceInstructions(context.Background(), positions, 0, target)
	require.NoError(t, err)
	assert.Empty(t, instructions)
}

func TestGenerateRebalanceRejectsInvalidTarget(t *testing.T) {
	svc := newTestService(nil, 1.0)
	bad := &domain.TargetPortfolio{
		Name:        "broken",
		RiskProfile: domain.RiskProfileCustom,
		Weights: map[domain.AssetClass]float64{
			domain.AssetClassEquity: 0.60,
			domain.AssetClassCash:   0.60,
		},
	}

	_, _, err := svc.GenerateRebalanceInstructions(context.Background(), nil, 1000, bad)

	var invalid *domain.InvalidTargetPortfolioError
	require.ErrorAs(t, err, &invalid)
	assert.InDelta(t, 1.2, invalid.WeightSum, 1e-9)
}

func TestGenerateRebalanceEmptyPortfolio(t *testing.T) {
	target, err := domain.NewTargetPortfolio("balanced", domain.RiskProfileBalanced, map[domain.AssetClass]float64{
		domain.AssetClassEquity: 1.0,
	})
	require.NoError(t, err)
	svc := newTestService(nil, 1.0)

	instructions, report, err := svc.GenerateRebalanceInstructions(context.Background(), nil, 0, target)

	require.NoError(t, err)
	assert.Empty(t, instructions)
	require.NotNil(t, report)
	assert.Equal(t, 0.0, report.TotalValue)
}

func TestGenerateRebalanceClassifiesOnce(t *testing.T) {
	classifier := &stubClassifier{metadata: map[string]domain.SymbolMetadata{
		"VTI": {Symbol: "VTI", AssetClass: domain.AssetClassEquity, SecurityType: domain.SecurityTypeETF},
	}}
	positions := []domain.Position{{Symbol: "VTI", MarketValue: 80000}}
	target, err := domain.NewTargetPortfolio("balanced", domain.RiskProfileBalanced, map[domain.AssetClass]float64{
		domain.AssetClassEquity: 0.60,
		domain.AssetClassCash:   0.40,
	})
	require.NoError(t, err)
	svc := NewService(classifier, 1.0, zerolog.Nop())

	instructions, report, err := svc.GenerateRebalanceInstructions(context.Background(), positions, 20000, target)

	require.NoError(t, err)
	require.NotEmpty(t, instructions)
	require.NotNil(t, report)
	// The returned report carries the allocation the diff was computed from,
	// so one request costs exactly one classification pass.
	assert.Equal(t, 1, classifier.calls)
	assert.InDelta(t, 100000.0, report.TotalValue, 1e-9)
}

func TestTotalDriftShrinksAfterRebalance(t *testing.T) {
	metadata := map[string]domain.SymbolMetadata{
		"VTI": {Symbol: "VTI", AssetClass: domain.AssetClassEquity, SecurityType: domain.SecurityTypeETF},
	}
	positions := []domain.Position{{Symbol: "VTI", MarketValue: 80000}}
	target, err := domain.NewTargetPortfolio("balanced", domain.RiskProfileBalanced, map[domain.AssetClass]float64{
		domain.AssetClassEquity: 0.60,
		domain.AssetClassCash:   0.40,
	})
	require.NoError(t, err)
	svc := newTestService(metadata, 1.0)

	before := svc.AnalyzePortfolio(context.Background(), positions, 20000)
	driftBefore := TotalDrift(before, target)
	assert.Greater(t, driftBefore, 0.0)

	// The on-target allocation drifts by at most rounding noise
	balanced := svc.AnalyzePortfolio(context.Background(), []domain.Position{{Symbol: "VTI", MarketValue: 60000}}, 40000)
	assert.InDelta(t, 0.0, TotalDrift(balanced, target), 1e-9)
	assert.Less(t, TotalDrift(balanced, target), driftBefore)
}
