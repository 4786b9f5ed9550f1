package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/foliolabs/folio/internal/domain"
	"github.com/foliolabs/folio/internal/modules/analysis"
	"github.com/foliolabs/folio/internal/modules/positions"
	"github.com/foliolabs/folio/internal/modules/returns"
	"github.com/foliolabs/folio/internal/modules/targets"
)

// PortfolioHandlers serves the portfolio analysis, rebalancing, and return
// endpoints.
type PortfolioHandlers struct {
	broker     domain.BrokerClient
	normalizer *positions.Normalizer
	analysis   *analysis.Service
	targets    *targets.Repository
	calculator *returns.Calculator
	accountID  string
	log        zerolog.Logger
}

// NewPortfolioHandlers creates a new portfolio handler set
func NewPortfolioHandlers(
	broker domain.BrokerClient,
	normalizer *positions.Normalizer,
	analysisService *analysis.Service,
	targetRepo *targets.Repository,
	calculator *returns.Calculator,
	accountID string,
	log zerolog.Logger,
) *PortfolioHandlers {
	if accountID == "" {
		accountID = "primary"
	}
	return &PortfolioHandlers{
		broker:     broker,
		normalizer: normalizer,
		analysis:   analysisService,
		targets:    targetRepo,
		calculator: calculator,
		accountID:  accountID,
		log:        log.With().Str("handler", "portfolio").Logger(),
	}
}

// RegisterRoutes registers portfolio routes on the router
func (h *PortfolioHandlers) RegisterRoutes(r chi.Router) {
	r.Route("/portfolio", func(r chi.Router) {
		r.Get("/analysis", h.HandleAnalysis)
		r.Post("/rebalance", h.HandleRebalance)
		r.Get("/return", h.HandleReturn)
	})
	r.Route("/targets", func(r chi.Router) {
		r.Get("/", h.HandleListTargets)
		r.Post("/", h.HandleSaveTarget)
	})
}

// HandleAnalysis returns the current allocation breakdown
// GET /api/portfolio/analysis
func (h *PortfolioHandlers) HandleAnalysis(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	account, positionList, skipped, ok := h.loadPortfolio(w, r)
	if !ok {
		return
	}

	report := h.analysis.AnalyzePortfolio(ctx, positionList, account.Cash)

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"report":            report,
		"skipped_positions": skipped,
	})
}

// rebalanceRequest selects the target allocation: a named preset/stored
// portfolio, or inline custom weights.
type rebalanceRequest struct {
	Target  string                        `json:"target"`
	Name    string                        `json:"name"`
	Weights map[domain.AssetClass]float64 `json:"weights"`
}

// HandleRebalance diffs the portfolio against a target allocation
// POST /api/portfolio/rebalance
func (h *PortfolioHandlers) HandleRebalance(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req rebalanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	target, err := h.resolveTarget(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	account, positionList, skipped, ok := h.loadPortfolio(w, r)
	if !ok {
		return
	}

	instructions, report, err := h.analysis.GenerateRebalanceInstructions(ctx, positionList, account.Cash, target)
	if err != nil {
		var invalidErr *domain.InvalidTargetPortfolioError
		if errors.As(err, &invalidErr) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"target":            target.Name,
		"risk_profile":      target.RiskProfile,
		"total_value":       report.TotalValue,
		"total_drift":       analysis.TotalDrift(report, target),
		"drift_distance":    analysis.DriftDistance(report, target),
		"instructions":      instructions,
		"skipped_positions": skipped,
	})
}

// HandleReturn computes today's daily return
// GET /api/portfolio/return
func (h *PortfolioHandlers) HandleReturn(w http.ResponseWriter, r *http.Request) {
	result := h.calculator.Compute(r.Context(), h.accountID)
	writeJSON(w, http.StatusOK, result)
}

// HandleListTargets lists preset and stored target portfolios
// GET /api/targets
func (h *PortfolioHandlers) HandleListTargets(w http.ResponseWriter, r *http.Request) {
	names, err := h.targets.List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"targets": names})
}

// saveTargetRequest is the body for storing a custom target portfolio
type saveTargetRequest struct {
	Name    string                        `json:"name"`
	Weights map[domain.AssetClass]float64 `json:"weights"`
}

// HandleSaveTarget stores a custom target portfolio
// POST /api/targets
func (h *PortfolioHandlers) HandleSaveTarget(w http.ResponseWriter, r *http.Request) {
	var req saveTargetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	target, err := targets.NewCustom(req.Name, req.Weights)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	id, err := h.targets.Save(target)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"id": id, "name": target.Name})
}

// resolveTarget picks the target portfolio from the request: inline weights
// win over a named reference.
func (h *PortfolioHandlers) resolveTarget(req rebalanceRequest) (*domain.TargetPortfolio, error) {
	if len(req.Weights) > 0 {
		name := req.Name
		if name == "" {
			name = "custom"
		}
		return targets.NewCustom(name, req.Weights)
	}

	if req.Target == "" {
		return nil, errors.New("target name or weights required")
	}
	return h.targets.Resolve(req.Target)
}

// loadPortfolio fetches and normalizes the account and positions, writing the
// error response itself when the broker is unreachable.
func (h *PortfolioHandlers) loadPortfolio(w http.ResponseWriter, r *http.Request) (*domain.AccountSnapshot, []domain.Position, int, bool) {
	ctx := r.Context()

	account, err := h.broker.GetAccount(ctx)
	if err != nil {
		h.log.Error().Err(err).Msg("Account fetch failed")
		writeError(w, http.StatusBadGateway, "broker unavailable")
		return nil, nil, 0, false
	}

	raw, err := h.broker.GetPositions(ctx)
	if err != nil {
		h.log.Error().Err(err).Msg("Positions fetch failed")
		writeError(w, http.StatusBadGateway, "broker unavailable")
		return nil, nil, 0, false
	}

	positionList, malformed := h.normalizer.Normalize(raw)
	return account, positionList, len(malformed), true
}

// writeJSON writes the standard response envelope
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"data": data,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		},
	})
}

// writeError writes an error response
func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
