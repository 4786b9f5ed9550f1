// Package targets provides named target-allocation presets and persistence
// for caller-supplied custom target portfolios.
package targets

import (
	"fmt"
	"strings"

	"github.com/foliolabs/folio/internal/domain"
)

// Built-in preset names
const (
	PresetConservative = "conservative"
	PresetBalanced     = "balanced"
	PresetAggressive   = "aggressive"
)

// presets are constructed once at startup and never mutated.
var presets = map[string]*domain.TargetPortfolio{
	PresetConservative: mustPreset(PresetConservative, domain.RiskProfileConservative, map[domain.AssetClass]float64{
		domain.AssetClassEquity:      0.30,
		domain.AssetClassFixedIncome: 0.50,
		domain.AssetClassCash:        0.20,
	}),
	PresetBalanced: mustPreset(PresetBalanced, domain.RiskProfileBalanced, map[domain.AssetClass]float64{
		domain.AssetClassEquity:      0.60,
		domain.AssetClassFixedIncome: 0.30,
		domain.AssetClassCash:        0.10,
	}),
	PresetAggressive: mustPreset(PresetAggressive, domain.RiskProfileAggressive, map[domain.AssetClass]float64{
		domain.AssetClassEquity:      0.85,
		domain.AssetClassFixedIncome: 0.10,
		domain.AssetClassCash:        0.05,
	}),
}

// mustPreset builds a preset, panicking on invalid weights.
// Presets are compile-time data; a failure here is a programming error.
func mustPreset(name string, profile domain.RiskProfile, weights map[domain.AssetClass]float64) *domain.TargetPortfolio {
	tp, err := domain.NewTargetPortfolio(name, profile, weights)
	if err != nil {
		panic(fmt.Sprintf("invalid built-in preset %s: %v", name, err))
	}
	return tp
}

// GetPreset returns a built-in preset by name (case-insensitive).
func GetPreset(name string) (*domain.TargetPortfolio, bool) {
	tp, ok := presets[strings.ToLower(strings.TrimSpace(name))]
	return tp, ok
}

// PresetNames lists the built-in preset names in a stable order.
func PresetNames() []string {
	return []string{PresetConservative, PresetBalanced, PresetAggressive}
}

// NewCustom constructs a CUSTOM target portfolio from caller-supplied
// weights, validated against the sum-to-1.0 invariant.
func NewCustom(name string, weights map[domain.AssetClass]float64) (*domain.TargetPortfolio, error) {
	return domain.NewTargetPortfolio(name, domain.RiskProfileCustom, weights)
}
