// Package positions converts raw broker position records into validated
// domain positions.
package positions

import (
	"errors"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/foliolabs/folio/internal/domain"
)

// Normalizer parses string-typed broker position records at the boundary so
// internal components never handle raw strings or optional fields.
type Normalizer struct {
	log zerolog.Logger
}

// NewNormalizer creates a new position normalizer
func NewNormalizer(log zerolog.Logger) *Normalizer {
	return &Normalizer{
		log: log.With().Str("component", "normalizer").Logger(),
	}
}

// Normalize converts raw records into domain positions. Malformed records are
// skipped and reported, never fatal to the whole batch.
func (n *Normalizer) Normalize(raw []domain.RawPosition) ([]domain.Position, []error) {
	positions := make([]domain.Position, 0, len(raw))
	var malformed []error

	for _, r := range raw {
		pos, err := n.normalizeOne(r)
		if err != nil {
			var merr *domain.MalformedPositionError
			if errors.As(err, &merr) {
				n.log.Warn().
					Str("symbol", merr.Symbol).
					Str("field", merr.Field).
					Str("reason", merr.Reason).
					Msg("Skipping malformed position")
			}
			malformed = append(malformed, err)
			continue
		}
		positions = append(positions, *pos)
	}

	return positions, malformed
}

func (n *Normalizer) normalizeOne(r domain.RawPosition) (*domain.Position, error) {
	symbol := strings.ToUpper(strings.TrimSpace(r.Symbol))
	if symbol == "" {
		return nil, &domain.MalformedPositionError{Field: "symbol", Reason: "empty"}
	}

	quantity, err := strconv.ParseFloat(strings.TrimSpace(r.Qty), 64)
	if err != nil {
		return nil, &domain.MalformedPositionError{Symbol: symbol, Field: "qty", Reason: "not a decimal: " + r.Qty}
	}

	price, err := strconv.ParseFloat(strings.TrimSpace(r.CurrentPrice), 64)
	if err != nil {
		return nil, &domain.MalformedPositionError{Symbol: symbol, Field: "current_price", Reason: "not a decimal: " + r.CurrentPrice}
	}
	if price < 0 {
		return nil, &domain.MalformedPositionError{Symbol: symbol, Field: "current_price", Reason: "negative"}
	}

	pos := &domain.Position{
		Symbol:         symbol,
		Quantity:       quantity,
		CurrentPrice:   price,
		PrevClosePrice: parseOptional(r.LastdayPrice),
		CostBasis:      parseOptional(r.CostBasis),
		UnrealizedPL:   parseOptional(r.UnrealizedPL),
	}

	// Recompute market value from quantity and price rather than trusting a
	// possibly stale upstream figure. Fall back to the reported value only
	// when the price is missing.
	if price > 0 {
		pos.MarketValue = quantity * price
	} else {
		pos.MarketValue = parseOptional(r.MarketValue)
	}

	// unrealized_plpc arrives as a fraction; keep percent internally
	pos.UnrealizedPLPercent = parseOptional(r.UnrealizedPLPC) * 100

	return pos, nil
}

// parseOptional parses best-effort numeric fields; absence degrades the
// record, it does not invalidate it.
func parseOptional(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return v
}
