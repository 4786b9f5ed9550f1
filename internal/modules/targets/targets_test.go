package targets

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/foliolabs/folio/internal/domain"
	foliotest "github.com/foliolabs/folio/internal/testing"
)

func TestPresetsAreValid(t *testing.T) {
	for _, name := range PresetNames() {
		tp, ok := GetPreset(name)
		require.True(t, ok, "preset %s missing", name)
		assert.NoError(t, tp.Validate())

		sum := 0.0
		for _, w := range tp.Weights {
			sum += w
		}
		assert.InDelta(t, 1.0, sum, domain.WeightSumTolerance)
	}
}

func TestGetPresetCaseInsensitive(t *testing.T) {
	tp, ok := GetPreset("  Balanced ")
	require.True(t, ok)
	assert.Equal(t, PresetBalanced, tp.Name)
	assert.Equal(t, domain.RiskProfileBalanced, tp.RiskProfile)

	_, ok = GetPreset("yolo")
	assert.False(t, ok)
}

func TestNewCustomValidatesWeights(t *testing.T) {
	_, err := NewCustom("lopsided", map[domain.AssetClass]float64{
		domain.AssetClassEquity: 0.70,
		domain.AssetClassCash:   0.70,
	})

	var invalid *domain.InvalidTargetPortfolioError
	require.ErrorAs(t, err, &invalid)

	tp, err := NewCustom("ok", map[domain.AssetClass]float64{
		domain.AssetClassEquity: 0.70,
		domain.AssetClassCash:   0.30,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.RiskProfileCustom, tp.RiskProfile)
}

func newTestRepository(t *testing.T) *Repository {
	t.Helper()
	db := foliotest.NewTestDB(t, "portfolio")
	return NewRepository(db.Conn(), zerolog.Nop())
}

func TestSaveAndResolveRoundTrip(t *testing.T) {
	repo := newTestRepository(t)

	custom, err := NewCustom("my-mix", map[domain.AssetClass]float64{
		domain.AssetClassEquity:      0.55,
		domain.AssetClassFixedIncome: 0.25,
		domain.AssetClassRealEstate:  0.10,
		domain.AssetClassCash:        0.10,
	})
	require.NoError(t, err)

	id, err := repo.Save(custom)
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	got, err := repo.Resolve("my-mix")
	require.NoError(t, err)
	assert.Equal(t, custom.Weights, got.Weights)
	assert.Equal(t, domain.RiskProfileCustom, got.RiskProfile)

	sum := 0.0
	for _, w := range got.Weights {
		sum += w
	}
	assert.InDelta(t, 1.0, sum, domain.WeightSumTolerance)
}

func TestSaveReplacesByName(t *testing.T) {
	repo := newTestRepository(t)

	first, err := NewCustom("my-mix", map[domain.AssetClass]float64{domain.AssetClassEquity: 1.0})
	require.NoError(t, err)
	_, err = repo.Save(first)
	require.NoError(t, err)

	second, err := NewCustom("my-mix", map[domain.AssetClass]float64{
		domain.AssetClassEquity: 0.50,
		domain.AssetClassCash:   0.50,
	})
	require.NoError(t, err)
	_, err = repo.Save(second)
	require.NoError(t, err)

	got, err := repo.Resolve("my-mix")
	require.NoError(t, err)
	assert.Equal(t, second.Weights, got.Weights)
}

func TestSaveRejectsInvalidPortfolio(t *testing.T) {
	repo := newTestRepository(t)

	bad := &domain.TargetPortfolio{
		Name:        "broken",
		RiskProfile: domain.RiskProfileCustom,
		Weights:     map[domain.AssetClass]float64{domain.AssetClassEquity: 1.5},
	}

	_, err := repo.Save(bad)
	var invalid *domain.InvalidTargetPortfolioError
	assert.ErrorAs(t, err, &invalid)
}

func TestResolvePrefersPreset(t *testing.T) {
	repo := newTestRepository(t)

	got, err := repo.Resolve("balanced")
	require.NoError(t, err)
	assert.Equal(t, domain.RiskProfileBalanced, got.RiskProfile)
}

func TestResolveUnknownName(t *testing.T) {
	repo := newTestRepository(t)

	_, err := repo.Resolve("nope")
	assert.Error(t, err)
}

func TestListIncludesPresetsAndCustom(t *testing.T) {
	repo := newTestRepository(t)

	custom, err := NewCustom("my-mix", map[domain.AssetClass]float64{domain.AssetClassEquity: 1.0})
	require.NoError(t, err)
	_, err = repo.Save(custom)
	require.NoError(t, err)

	names, err := repo.List()
	require.NoError(t, err)
	assert.Contains(t, names, PresetConservative)
	assert.Contains(t, names, PresetBalanced)
	assert.Contains(t, names, PresetAggressive)
	assert.Contains(t, names, "my-mix")
}
