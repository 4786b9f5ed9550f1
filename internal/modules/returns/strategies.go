package returns

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/foliolabs/folio/internal/domain"
)

// Inputs is the shared data a calculation pass gathers once and hands to each
// strategy in turn. Fields may be nil/empty when the corresponding fetch
// failed; strategies defer when the data they need is missing.
type Inputs struct {
	Date        string // YYYY-MM-DD in the account timezone
	Account     *domain.AccountSnapshot
	Positions   []domain.Position
	NetDeposits float64
	PrevEquity  float64 // Most recent locally snapshotted equity before Date, 0 when none
}

// Baseline returns the prior-day equity used to express a raw return as a
// percentage. Prefers the broker-reported last_equity, falling back to the
// local snapshot history.
func (in *Inputs) Baseline() float64 {
	if in.Account != nil && in.Account.LastEquity > 0 {
		return in.Account.LastEquity
	}
	return in.PrevEquity
}

// CurrentValue returns the present portfolio value: broker-reported equity
// when available, otherwise the sum of position market values.
func (in *Inputs) CurrentValue() float64 {
	if in.Account != nil && in.Account.Equity > 0 {
		return in.Account.Equity
	}
	total := 0.0
	for _, pos := range in.Positions {
		total += pos.MarketValue
	}
	return total
}

// Candidate is a raw return produced by one strategy, before validation
type Candidate struct {
	Raw     float64
	Quality int // Base confidence of the producing strategy
}

// Strategy is one rung of the fallback chain. Attempt returns (nil, nil) to
// defer to the next strategy when its required inputs are unavailable; an
// error likewise defers but is logged by the chain runner.
type Strategy interface {
	Name() domain.CalculationStrategy
	Attempt(ctx context.Context, in *Inputs) (*Candidate, error)
}

// positionBasedStrategy sums per-position price moves against the previous
// close. Most granular and most trusted, but requires previous-close data on
// every position.
type positionBasedStrategy struct {
	log zerolog.Logger
}

func (s *positionBasedStrategy) Name() domain.CalculationStrategy {
	return domain.StrategyPositionBased
}

func (s *positionBasedStrategy) Attempt(_ context.Context, in *Inputs) (*Candidate, error) {
	if len(in.Positions) == 0 {
		return nil, nil
	}

	raw := 0.0
	for _, pos := range in.Positions {
		if pos.PrevClosePrice <= 0 {
			// A partial sum would misstate the day's move, defer instead.
			s.log.Debug().Str("symbol", pos.Symbol).Msg("Position missing previous close, deferring")
			return nil, nil
		}
		raw += (pos.CurrentPrice - pos.PrevClosePrice) * pos.Quantity
	}

	return &Candidate{Raw: raw, Quality: domain.QualityHigh}, nil
}

// portfolioHistoryStrategy reads the day's profit/loss from the broker's own
// portfolio-history endpoint.
type portfolioHistoryStrategy struct {
	broker domain.BrokerClient
	log    zerolog.Logger
}

func (s *portfolioHistoryStrategy) Name() domain.CalculationStrategy {
	return domain.StrategyPortfolioHistory
}

func (s *portfolioHistoryStrategy) Attempt(ctx context.Context, in *Inputs) (*Candidate, error) {
	history, err := s.broker.GetPortfolioHistory(ctx, "2D", "1D")
	if err != nil {
		return nil, err
	}
	if history == nil || len(history.ProfitLoss) == 0 {
		return nil, nil
	}

	raw := history.ProfitLoss[len(history.ProfitLoss)-1]
	return &Candidate{Raw: raw, Quality: domain.QualityGood}, nil
}

// equityDiffStrategy computes equity minus prior-day equity minus same-day
// net deposits, so capital flows are not mistaken for performance.
type equityDiffStrategy struct {
	log zerolog.Logger
}

func (s *equityDiffStrategy) Name() domain.CalculationStrategy {
	return domain.StrategyEquityDiff
}

func (s *equityDiffStrategy) Attempt(_ context.Context, in *Inputs) (*Candidate, error) {
	if in.Account == nil {
		return nil, nil
	}

	last := in.Account.LastEquity
	if last <= 0 {
		// Freshly reset accounts report last_equity as zero; the local
		// snapshot history covers the gap when it has an earlier day.
		last = in.PrevEquity
	}
	if last <= 0 {
		s.log.Debug().Msg("No prior-day equity available, deferring")
		return nil, nil
	}

	raw := in.Account.Equity - last - in.NetDeposits
	return &Candidate{Raw: raw, Quality: domain.QualityGood}, nil
}
