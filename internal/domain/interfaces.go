package domain

import (
	"context"
	"time"
)

// BrokerClient is the brokerage collaborator consumed by the core.
// Implementations must bound every call with a timeout; failures are wrapped
// in ErrUpstreamUnavailable rather than surfaced raw.
type BrokerClient interface {
	// GetAccount returns the current account snapshot (equity, cash, last_equity).
	GetAccount(ctx context.Context) (*AccountSnapshot, error)

	// GetPositions returns raw position records for the account.
	GetPositions(ctx context.Context) ([]RawPosition, error)

	// GetActivities returns account activities of the given types for a
	// single date (YYYY-MM-DD in the account timezone).
	GetActivities(ctx context.Context, activityTypes []string, date string) ([]Activity, error)

	// GetPortfolioHistory returns a short equity history window.
	// May return an empty history.
	GetPortfolioHistory(ctx context.Context, period, timeframe string) (*PortfolioHistory, error)
}

// SymbolMetadataProvider looks up classification metadata for a symbol.
// Unknown symbols return a metadata record with OTHER/OTHER, never an error
// for "not found".
type SymbolMetadataProvider interface {
	GetMetadata(ctx context.Context, symbol string) (*SymbolMetadata, error)
}

// CacheStore provides advisory get/set-with-TTL semantics. A miss simply
// triggers recomputation; concurrent writers racing on a key is tolerated
// (last writer wins).
type CacheStore interface {
	// Get loads the value for key into dest. Returns false on miss or expiry.
	Get(key string, dest interface{}) bool

	// Set stores value under key with the given TTL.
	Set(key string, value interface{}, ttl time.Duration) error

	// Delete removes a key. Missing keys are not an error.
	Delete(key string) error
}
