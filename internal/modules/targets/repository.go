package targets

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/foliolabs/folio/internal/domain"
)

// Repository persists custom target portfolios. Built-in presets live in
// code; only CUSTOM portfolios are stored.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new target portfolio repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "targets").Logger(),
	}
}

// Save stores a custom target portfolio, validating before write.
// Returns the assigned ID.
func (r *Repository) Save(tp *domain.TargetPortfolio) (string, error) {
	if err := tp.Validate(); err != nil {
		return "", err
	}

	weightsJSON, err := json.Marshal(tp.Weights)
	if err != nil {
		return "", fmt.Errorf("failed to encode weights: %w", err)
	}

	id := uuid.New().String()
	_, err = r.db.Exec(`
		INSERT INTO target_portfolios (id, name, risk_profile, weights_json, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			risk_profile = excluded.risk_profile,
			weights_json = excluded.weights_json
	`, id, tp.Name, string(tp.RiskProfile), string(weightsJSON), time.Now().Unix())
	if err != nil {
		return "", fmt.Errorf("failed to save target portfolio %s: %w", tp.Name, err)
	}

	r.log.Info().Str("name", tp.Name).Str("id", id).Msg("Saved custom target portfolio")
	return id, nil
}

// Resolve returns a target portfolio by name: presets first, then stored
// custom portfolios. Stored weights are re-validated on load so a corrupt
// row cannot silently skew rebalancing.
func (r *Repository) Resolve(name string) (*domain.TargetPortfolio, error) {
	if tp, ok := GetPreset(name); ok {
		return tp, nil
	}

	var riskProfile, weightsJSON string
	err := r.db.QueryRow(
		"SELECT risk_profile, weights_json FROM target_portfolios WHERE name = ?", name,
	).Scan(&riskProfile, &weightsJSON)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("unknown target portfolio: %s", name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load target portfolio %s: %w", name, err)
	}

	var weights map[domain.AssetClass]float64
	if err := json.Unmarshal([]byte(weightsJSON), &weights); err != nil {
		return nil, fmt.Errorf("failed to decode weights for %s: %w", name, err)
	}

	return domain.NewTargetPortfolio(name, domain.RiskProfile(riskProfile), weights)
}

// List returns the names of all known target portfolios (presets plus
// stored custom ones).
func (r *Repository) List() ([]string, error) {
	names := PresetNames()

	rows, err := r.db.Query("SELECT name FROM target_portfolios ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("failed to list target portfolios: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan target portfolio name: %w", err)
		}
		names = append(names, name)
	}

	return names, rows.Err()
}
