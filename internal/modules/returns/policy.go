// Package returns computes a trustworthy daily-return figure through an
// ordered chain of calculation strategies with anomaly validation.
package returns

import (
	"math"

	"github.com/rs/zerolog"

	"github.com/foliolabs/folio/internal/domain"
)

// epsilon guards divisions against zero baselines
const epsilon = 1e-9

// Validation branch labels, logged for observability
const (
	branchAccepted    = "accepted"
	branchCapped      = "capped"
	branchEstimated   = "estimated"
	branchUnvalidated = "unvalidated"
	branchZeroed      = "zeroed"
)

// Policy holds the anomaly thresholds for return validation. Thresholds are
// configuration, not constants: callers may disable capping entirely, which
// accepts any finite raw value.
type Policy struct {
	AcceptThreshold  float64 // |pct| at or below: accept as-is (default 0.05)
	CapThreshold     float64 // |pct| at or below: cap at threshold (default 0.10)
	CappingEnabled   bool
	EstimateFraction float64 // Conservative substitute: fraction of current value (default 0.01)
}

// DefaultPolicy returns the default anomaly policy
func DefaultPolicy() Policy {
	return Policy{
		AcceptThreshold:  0.05,
		CapThreshold:     0.10,
		CappingEnabled:   true,
		EstimateFraction: 0.01,
	}
}

// Verdict is the outcome of validating a raw return candidate
type Verdict struct {
	Raw         float64
	Percent     float64 // Fraction of baseline, signed
	Quality     int
	IsEstimated bool
	Branch      string
}

// Validate applies the anomaly policy to a raw return candidate.
// The branch is selected by the move relative to the current portfolio value;
// a capped figure is bounded by the largest plausible move from yesterday's
// equity and never exceeds the raw magnitude. Non-finite input zeroes the
// result rather than propagating.
func (p Policy) Validate(raw, baseline, currentValue float64, log zerolog.Logger) Verdict {
	if math.IsNaN(raw) || math.IsInf(raw, 0) {
		log.Warn().Float64("baseline", baseline).Msg("Non-finite raw return, zeroing")
		return Verdict{Branch: branchZeroed, Quality: domain.QualityFloor, IsEstimated: true}
	}

	// Reported percentages use the prior-day baseline when one exists, the
	// way brokerages express a day change.
	pctBase := baseline
	if pctBase <= epsilon {
		pctBase = currentValue
	}

	if currentValue <= epsilon {
		// Nothing to validate against. A zero-value portfolio yields a zero
		// return; otherwise pass the raw figure through unvalidated at
		// reduced confidence.
		if raw == 0 || pctBase <= epsilon {
			return Verdict{Branch: branchZeroed, Quality: domain.QualityFloor, IsEstimated: true}
		}
		return Verdict{Raw: raw, Percent: raw / pctBase, Branch: branchUnvalidated, Quality: domain.QualityMed, IsEstimated: true}
	}

	pct := raw / currentValue

	if !p.CappingEnabled || math.Abs(pct) <= p.AcceptThreshold {
		return Verdict{Raw: raw, Percent: raw / pctBase, Branch: branchAccepted, Quality: domain.QualityHigh}
	}

	if math.Abs(pct) <= p.CapThreshold {
		// Capping only ever shrinks the figure: the ceiling is the largest
		// plausible move from the prior-day baseline, and a raw value already
		// under it passes through at reduced confidence.
		limit := p.CapThreshold * pctBase
		capped := math.Copysign(math.Min(math.Abs(raw), limit), pct)
		log.Warn().
			Float64("raw", raw).
			Float64("raw_pct", pct).
			Float64("adjusted", capped).
			Float64("cap_threshold", p.CapThreshold).
			Msg("Return exceeds accept threshold, capping")
		return Verdict{Raw: capped, Percent: capped / pctBase, Branch: branchCapped, Quality: domain.QualityMed, IsEstimated: true}
	}

	// Beyond the cap threshold the figure is discarded outright and replaced
	// by a small conservative estimate, sign preserved.
	sign := 1.0
	if raw < 0 {
		sign = -1.0
	}
	estimate := sign * p.EstimateFraction * currentValue
	log.Warn().
		Float64("raw", raw).
		Float64("raw_pct", pct).
		Float64("adjusted", estimate).
		Msg("Return far outside plausible range, substituting conservative estimate")
	return Verdict{Raw: estimate, Percent: estimate / pctBase, Branch: branchEstimated, Quality: domain.QualityLow, IsEstimated: true}
}
