package domain

import (
	"errors"
	"fmt"
)

// ErrUpstreamUnavailable signals that a broker collaborator could not serve a
// request (timeout, network error, non-2xx). The return-calculation chain
// treats it as a defer signal; it is never surfaced raw to callers.
var ErrUpstreamUnavailable = errors.New("upstream unavailable")

// MalformedPositionError marks a single raw broker position that could not be
// normalized. Such positions are skipped, not fatal to the whole batch.
type MalformedPositionError struct {
	Symbol string
	Field  string
	Reason string
}

func (e *MalformedPositionError) Error() string {
	if e.Symbol == "" {
		return fmt.Sprintf("malformed position: %s (%s)", e.Field, e.Reason)
	}
	return fmt.Sprintf("malformed position %s: %s (%s)", e.Symbol, e.Field, e.Reason)
}

// InvalidTargetPortfolioError is returned when target portfolio weights fail
// validation. Fatal to the call that supplied the weights.
type InvalidTargetPortfolioError struct {
	Name      string
	WeightSum float64
	Reason    string
}

func (e *InvalidTargetPortfolioError) Error() string {
	return fmt.Sprintf("invalid target portfolio %q: %s (sum=%.6f)", e.Name, e.Reason, e.WeightSum)
}
