package returns

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/foliolabs/folio/internal/domain"
	"github.com/foliolabs/folio/internal/modules/cashflows"
	"github.com/foliolabs/folio/internal/modules/positions"
	"github.com/foliolabs/folio/internal/modules/snapshots"
)

// DefaultCacheTTL bounds how long a computed return is served before
// recomputation.
const DefaultCacheTTL = 5 * time.Minute

// Calculator runs the ordered strategy chain and always produces a result.
// Every strategy failure defers to the next rung; the terminal rung is a
// guaranteed zero result, so Compute never returns an error.
type Calculator struct {
	broker     domain.BrokerClient
	normalizer *positions.Normalizer
	resolver   *cashflows.Resolver
	snapshots  *snapshots.Repository
	cache      domain.CacheStore
	policy     Policy
	cacheTTL   time.Duration
	strategies []Strategy
	log        zerolog.Logger
}

// NewCalculator wires the fallback chain in trust order: position-based,
// then broker portfolio history, then equity diff.
func NewCalculator(
	broker domain.BrokerClient,
	normalizer *positions.Normalizer,
	resolver *cashflows.Resolver,
	snapshotRepo *snapshots.Repository,
	cache domain.CacheStore,
	policy Policy,
	cacheTTL time.Duration,
	log zerolog.Logger,
) *Calculator {
	if cacheTTL <= 0 {
		cacheTTL = DefaultCacheTTL
	}
	scoped := log.With().Str("service", "return_calculator").Logger()
	return &Calculator{
		broker:     broker,
		normalizer: normalizer,
		resolver:   resolver,
		snapshots:  snapshotRepo,
		cache:      cache,
		policy:     policy,
		cacheTTL:   cacheTTL,
		strategies: []Strategy{
			&positionBasedStrategy{log: scoped},
			&portfolioHistoryStrategy{broker: broker, log: scoped},
			&equityDiffStrategy{log: scoped},
		},
		log: scoped,
	}
}

// Compute returns today's daily return for the account. The result is cached
// per account and trading date; cached results are served until the TTL
// lapses or InvalidateToday is called. Never returns an error: when every
// strategy defers or the context is cancelled, the zero terminal result is
// returned instead.
func (c *Calculator) Compute(ctx context.Context, accountID string) *domain.ReturnResult {
	now := time.Now()
	date := c.resolver.Today(now)
	key := cacheKey(accountID, date)

	var cached domain.ReturnResult
	if c.cache.Get(key, &cached) {
		c.log.Debug().Str("key", key).Str("strategy", string(cached.StrategyUsed)).Msg("Serving cached return")
		return &cached
	}

	in := c.gatherInputs(ctx, date)
	result := c.runChain(ctx, in, now)

	if err := c.cache.Set(key, result, c.cacheTTL); err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("Failed to cache return result")
	}

	return result
}

// InvalidateToday drops the cached result for the account's current trading
// date. Called when a fill lands so the next read reflects it.
func (c *Calculator) InvalidateToday(accountID string) {
	key := cacheKey(accountID, c.resolver.Today(time.Now()))
	if err := c.cache.Delete(key); err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("Failed to invalidate cached return")
	}
}

// gatherInputs fetches everything the chain might need in one pass.
// Individual fetch failures degrade the inputs rather than aborting: a
// strategy that needs the missing piece will defer.
func (c *Calculator) gatherInputs(ctx context.Context, date string) *Inputs {
	in := &Inputs{Date: date}

	account, err := c.broker.GetAccount(ctx)
	if err != nil {
		c.log.Warn().Err(err).Msg("Account fetch failed")
	} else {
		in.Account = account
	}

	raw, err := c.broker.GetPositions(ctx)
	if err != nil {
		c.log.Warn().Err(err).Msg("Positions fetch failed")
	} else {
		normalized, malformed := c.normalizer.Normalize(raw)
		if len(malformed) > 0 {
			c.log.Warn().Int("skipped", len(malformed)).Msg("Skipped malformed positions")
		}
		in.Positions = normalized
	}

	net, err := c.resolver.NetDeposits(ctx, date)
	if err != nil {
		c.log.Warn().Err(err).Str("date", date).Msg("Net deposit resolution failed, assuming zero")
	} else {
		in.NetDeposits = net
	}

	prev, err := c.snapshots.LatestBefore(date)
	if err != nil {
		c.log.Warn().Err(err).Msg("Snapshot lookup failed")
	} else if prev != nil {
		in.PrevEquity = prev.Equity
	}

	return in
}

// runChain tries each strategy in order, validates the first candidate that
// survives the anomaly policy, and falls through to the zero terminal result.
func (c *Calculator) runChain(ctx context.Context, in *Inputs, now time.Time) *domain.ReturnResult {
	baseline := in.Baseline()
	currentValue := in.CurrentValue()

	for _, strategy := range c.strategies {
		if ctx.Err() != nil {
			c.log.Warn().Err(ctx.Err()).Msg("Calculation cancelled, returning zero result")
			break
		}

		candidate, err := strategy.Attempt(ctx, in)
		if err != nil {
			c.log.Debug().Err(err).Str("strategy", string(strategy.Name())).Msg("Strategy failed, deferring")
			continue
		}
		if candidate == nil {
			c.log.Debug().Str("strategy", string(strategy.Name())).Msg("Strategy deferred")
			continue
		}

		verdict := c.policy.Validate(candidate.Raw, baseline, currentValue, c.log)

		result := &domain.ReturnResult{
			RawReturn:        verdict.Raw,
			RawReturnPercent: verdict.Percent * 100,
			PortfolioValue:   currentValue,
			StrategyUsed:     strategy.Name(),
			DataQualityScore: minQuality(candidate.Quality, verdict.Quality),
			IsEstimated:      verdict.IsEstimated,
			CalculatedAt:     now,
		}

		c.log.Info().
			Str("strategy", string(strategy.Name())).
			Str("branch", verdict.Branch).
			Float64("return", result.RawReturn).
			Float64("return_pct", result.RawReturnPercent).
			Int("quality", result.DataQualityScore).
			Bool("estimated", result.IsEstimated).
			Msg("Computed daily return")

		return result
	}

	// Terminal rung: a zero return with floor quality, never an error.
	c.log.Info().Msg("All strategies deferred, returning zero result")
	return &domain.ReturnResult{
		RawReturn:        0,
		RawReturnPercent: 0,
		PortfolioValue:   currentValue,
		StrategyUsed:     domain.StrategyZeroFallback,
		DataQualityScore: domain.QualityFloor,
		IsEstimated:      true,
		CalculatedAt:     now,
	}
}

func cacheKey(accountID, date string) string {
	return fmt.Sprintf("return:%s:%s", accountID, date)
}

func minQuality(a, b int) int {
	return int(math.Min(float64(a), float64(b)))
}
