// Package domain provides core domain models and types.
package domain

import (
	"math"
	"time"
)

// AssetClass represents a broad investment category used for allocation targets
type AssetClass string

const (
	AssetClassEquity      AssetClass = "EQUITY"
	AssetClassFixedIncome AssetClass = "FIXED_INCOME"
	AssetClassCash        AssetClass = "CASH"
	AssetClassCommodity   AssetClass = "COMMODITY"
	AssetClassRealEstate  AssetClass = "REAL_ESTATE"
	AssetClassAlternative AssetClass = "ALTERNATIVE"
	AssetClassOther       AssetClass = "OTHER"
)

// AllAssetClasses lists every asset class in a stable order.
// Allocation vectors (analysis, rebalancing) iterate in this order so that
// identical inputs always produce identical output.
var AllAssetClasses = []AssetClass{
	AssetClassEquity,
	AssetClassFixedIncome,
	AssetClassCash,
	AssetClassCommodity,
	AssetClassRealEstate,
	AssetClassAlternative,
	AssetClassOther,
}

// SecurityType represents the type of financial product/instrument
type SecurityType string

const (
	SecurityTypeStock          SecurityType = "STOCK"
	SecurityTypeETF            SecurityType = "ETF"
	SecurityTypeMutualFund     SecurityType = "MUTUAL_FUND"
	SecurityTypeBond           SecurityType = "BOND"
	SecurityTypeOption         SecurityType = "OPTION"
	SecurityTypeCrypto         SecurityType = "CRYPTO"
	SecurityTypeCashEquivalent SecurityType = "CASH_EQUIVALENT"
	SecurityTypeOther          SecurityType = "OTHER"
)

// RiskProfile represents a named target-allocation aggressiveness
type RiskProfile string

const (
	RiskProfileConservative RiskProfile = "CONSERVATIVE"
	RiskProfileBalanced     RiskProfile = "BALANCED"
	RiskProfileAggressive   RiskProfile = "AGGRESSIVE"
	RiskProfileCustom       RiskProfile = "CUSTOM"
)

// Position represents a normalized portfolio position.
// Immutable once constructed from a broker snapshot within one calculation pass.
type Position struct {
	Symbol              string  `json:"symbol"`
	Quantity            float64 `json:"quantity"` // Sign indicates long/short
	CurrentPrice        float64 `json:"current_price"`
	PrevClosePrice      float64 `json:"prev_close_price"` // Previous trading day close, 0 if unavailable
	MarketValue         float64 `json:"market_value"`
	CostBasis           float64 `json:"cost_basis"`
	UnrealizedPL        float64 `json:"unrealized_pl"`
	UnrealizedPLPercent float64 `json:"unrealized_pl_percent"`
}

// TargetPortfolio is a named allocation preset expressed as weights per asset class.
// Weights must sum to 1.0; construct via NewTargetPortfolio.
type TargetPortfolio struct {
	Name        string                 `json:"name"`
	RiskProfile RiskProfile            `json:"risk_profile"`
	Weights     map[AssetClass]float64 `json:"weights"`
}

// WeightSumTolerance is the allowed deviation of a target portfolio's
// weight sum from 1.0.
const WeightSumTolerance = 1e-6

// NewTargetPortfolio constructs a validated target portfolio.
func NewTargetPortfolio(name string, profile RiskProfile, weights map[AssetClass]float64) (*TargetPortfolio, error) {
	tp := &TargetPortfolio{
		Name:        name,
		RiskProfile: profile,
		Weights:     weights,
	}
	if err := tp.Validate(); err != nil {
		return nil, err
	}
	return tp, nil
}

// Validate checks the sum-to-1.0 invariant and weight bounds.
func (tp *TargetPortfolio) Validate() error {
	sum := 0.0
	for class, w := range tp.Weights {
		if w < 0 || w > 1 {
			return &InvalidTargetPortfolioError{Name: tp.Name, WeightSum: w, Reason: "weight for " + string(class) + " outside [0,1]"}
		}
		sum += w
	}
	if math.Abs(sum-1.0) > WeightSumTolerance {
		return &InvalidTargetPortfolioError{Name: tp.Name, WeightSum: sum, Reason: "weights do not sum to 1.0"}
	}
	return nil
}

// Weight returns the target weight for an asset class (0 if absent).
func (tp *TargetPortfolio) Weight(class AssetClass) float64 {
	return tp.Weights[class]
}

// Action represents a rebalance instruction direction
type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
	ActionHold Action = "HOLD"
)

// RebalanceInstruction directs moving a dollar amount in an asset-class
// bucket toward the target allocation. Produced fresh per analysis call.
type RebalanceInstruction struct {
	AssetClass   AssetClass `json:"asset_class"`
	Action       Action     `json:"action"`
	DeltaValue   float64    `json:"delta_value"`   // Signed target dollar amount to move
	DeltaPercent float64    `json:"delta_percent"` // Signed percentage-point gap closed
}

// CalculationStrategy identifies which fallback strategy produced a return figure
type CalculationStrategy string

const (
	StrategyPositionBased    CalculationStrategy = "position_based"
	StrategyPortfolioHistory CalculationStrategy = "portfolio_history"
	StrategyEquityDiff       CalculationStrategy = "equity_diff"
	StrategyZeroFallback     CalculationStrategy = "zero_fallback"
)

// Data quality score bands for ReturnResult
const (
	QualityHigh  = 90
	QualityGood  = 75
	QualityMed   = 50
	QualityLow   = 25
	QualityFloor = 0
)

// ReturnResult is the outcome of a daily-return calculation.
// Created once per calculation request and cached with a TTL.
type ReturnResult struct {
	RawReturn        float64             `json:"raw_return"`
	RawReturnPercent float64             `json:"raw_return_percent"`
	PortfolioValue   float64             `json:"portfolio_value"`
	StrategyUsed     CalculationStrategy `json:"strategy_used"`
	DataQualityScore int                 `json:"data_quality_score"` // 0-100
	IsEstimated      bool                `json:"is_estimated"`
	CalculatedAt     time.Time           `json:"calculated_at"`
}

// Activity represents a cash-movement account activity
type Activity struct {
	ID        string    `json:"id"`
	Type      string    `json:"activity_type"` // e.g. CSD (deposit), CSW (withdrawal)
	NetAmount float64   `json:"net_amount"`    // Signed: deposits positive, withdrawals negative
	Timestamp time.Time `json:"timestamp"`
}

// PortfolioHistory is a short window of account equity history from the broker
type PortfolioHistory struct {
	ProfitLoss []float64 `json:"profit_loss"`
	BaseValue  float64   `json:"base_value"`
	Timestamps []int64   `json:"timestamps"`
}

// SymbolMetadata is the classification record for a symbol.
// A symbol maps to exactly one (AssetClass, SecurityType) pair per calculation.
type SymbolMetadata struct {
	Symbol       string       `json:"symbol"`
	AssetClass   AssetClass   `json:"asset_class"`
	SecurityType SecurityType `json:"security_type"`
	Sector       string       `json:"sector"`
}
