package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/foliolabs/folio/internal/domain"
	"github.com/foliolabs/folio/internal/modules/analysis"
	"github.com/foliolabs/folio/internal/modules/cashflows"
	"github.com/foliolabs/folio/internal/modules/classification"
	"github.com/foliolabs/folio/internal/modules/positions"
	"github.com/foliolabs/folio/internal/modules/returns"
	"github.com/foliolabs/folio/internal/modules/snapshots"
	"github.com/foliolabs/folio/internal/modules/targets"
	foliotest "github.com/foliolabs/folio/internal/testing"
)

func newTestRouter(t *testing.T, broker *foliotest.MockBroker) *chi.Mux {
	t.Helper()
	log := zerolog.Nop()

	db := foliotest.NewTestDB(t, "portfolio")
	provider := &foliotest.MockMetadataProvider{
		Metadata: map[string]domain.SymbolMetadata{
			"VTI": {Symbol: "VTI", AssetClass: domain.AssetClassEquity, SecurityType: domain.SecurityTypeETF},
			"BND": {Symbol: "BND", AssetClass: domain.AssetClassFixedIncome, SecurityType: domain.SecurityTypeETF},
		},
	}
	classifier := classification.NewClassifier(provider, nil, log)
	analysisService := analysis.NewService(classifier, 1.0, log)
	targetRepo := targets.NewRepository(db.Conn(), log)
	ledger := cashflows.NewLedger(db.Conn(), log)
	resolver := cashflows.NewResolver(broker, ledger, time.UTC, log)
	calculator := returns.NewCalculator(
		broker,
		positions.NewNormalizer(log),
		resolver,
		snapshots.NewRepository(db.Conn(), log),
		foliotest.NewMemoryCache(),
		returns.DefaultPolicy(),
		time.Minute,
		log,
	)

	handlers := NewPortfolioHandlers(broker, positions.NewNormalizer(log), analysisService, targetRepo, calculator, "primary", log)
	router := chi.NewRouter()
	router.Route("/api", handlers.RegisterRoutes)
	return router
}

// envelope decodes the standard {data, metadata} response wrapper.
func envelope(t *testing.T, body *bytes.Buffer) map[string]interface{} {
	t.Helper()
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(body.Bytes(), &resp))
	data, ok := resp["data"].(map[string]interface{})
	require.True(t, ok, "response missing data envelope: %s", body.String())
	return data
}

func TestHandleAnalysis(t *testing.T) {
	broker := &foliotest.MockBroker{
		Account: &domain.AccountSnapshot{Equity: 10000, Cash: 1000},
		Positions: []domain.RawPosition{
			{Symbol: "VTI", Qty: "30", CurrentPrice: "200"},
			{Symbol: "BND", Qty: "40", CurrentPrice: "75"},
			{Symbol: "BROKEN", Qty: "x", CurrentPrice: "1"},
		},
	}
	router := newTestRouter(t, broker)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/portfolio/analysis", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	data := envelope(t, rec.Body)
	assert.Equal(t, float64(1), data["skipped_positions"])

	report := data["report"].(map[string]interface{})
	assert.InDelta(t, 10000.0, report["total_value"].(float64), 1e-6)

	classes := report["asset_class_percentages"].(map[string]interface{})
	assert.InDelta(t, 60.0, classes["EQUITY"].(float64), 1e-6)
	assert.InDelta(t, 30.0, classes["FIXED_INCOME"].(float64), 1e-6)
	assert.InDelta(t, 10.0, classes["CASH"].(float64), 1e-6)
}

func TestHandleRebalanceWithPreset(t *testing.T) {
	broker := &foliotest.MockBroker{
		Account: &domain.AccountSnapshot{Equity: 100000, Cash: 0},
		Positions: []domain.RawPosition{
			{Symbol: "VTI", Qty: "900", CurrentPrice: "100"},
			{Symbol: "BND", Qty: "100", CurrentPrice: "100"},
		},
	}
	router := newTestRouter(t, broker)

	body := bytes.NewBufferString(`{"target": "balanced"}`)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/portfolio/rebalance", body))

	require.Equal(t, http.StatusOK, rec.Code)
	data := envelope(t, rec.Body)
	assert.Equal(t, "balanced", data["target"])
	assert.Greater(t, data["total_drift"].(float64), 0.0)
	assert.Greater(t, data["drift_distance"].(float64), 0.0)

	instructions := data["instructions"].([]interface{})
	require.NotEmpty(t, instructions)
	first := instructions[0].(map[string]interface{})
	assert.Equal(t, "EQUITY", first["asset_class"])
	assert.Equal(t, "SELL", first["action"])
}

func TestHandleRebalanceInlineWeights(t *testing.T) {
	broker := &foliotest.MockBroker{
		Account:   &domain.AccountSnapshot{Equity: 1000, Cash: 1000},
		Positions: []domain.RawPosition{},
	}
	router := newTestRouter(t, broker)

	body := bytes.NewBufferString(`{"weights": {"EQUITY": 0.5, "CASH": 0.5}}`)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/portfolio/rebalance", body))

	require.Equal(t, http.StatusOK, rec.Code)
	data := envelope(t, rec.Body)
	assert.Equal(t, "custom", data["target"])
}

func TestHandleRebalanceInvalidWeights(t *testing.T) {
	broker := &foliotest.MockBroker{}
	router := newTestRouter(t, broker)

	body := bytes.NewBufferString(`{"weights": {"EQUITY": 0.9, "CASH": 0.9}}`)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/portfolio/rebalance", body))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleRebalanceMissingTarget(t *testing.T) {
	broker := &foliotest.MockBroker{}
	router := newTestRouter(t, broker)

	body := bytes.NewBufferString(`{}`)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/portfolio/rebalance", body))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleAnalysisBrokerDown(t *testing.T) {
	broker := &foliotest.MockBroker{AccountErr: domain.ErrUpstreamUnavailable}
	router := newTestRouter(t, broker)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/portfolio/analysis", nil))

	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestHandleReturn(t *testing.T) {
	broker := &foliotest.MockBroker{
		Account:    &domain.AccountSnapshot{Equity: 100000, LastEquity: 99000},
		HistoryErr: domain.ErrUpstreamUnavailable,
	}
	router := newTestRouter(t, broker)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/portfolio/return", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	data := envelope(t, rec.Body)
	assert.InDelta(t, 1000.0, data["raw_return"].(float64), 1e-6)
	assert.Equal(t, "equity_diff", data["strategy_used"])
}

func TestHandleSaveAndListTargets(t *testing.T) {
	broker := &foliotest.MockBroker{}
	router := newTestRouter(t, broker)

	body := bytes.NewBufferString(`{"name": "my-mix", "weights": {"EQUITY": 0.7, "CASH": 0.3}}`)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/targets/", body))
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/targets/", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	data := envelope(t, rec.Body)
	names := data["targets"].([]interface{})
	assert.Contains(t, names, "balanced")
	assert.Contains(t, names, "my-mix")
}
