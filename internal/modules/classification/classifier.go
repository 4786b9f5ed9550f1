// Package classification maps symbols to asset classes and security types.
package classification

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/foliolabs/folio/internal/domain"
)

// metadataCacheTTL bounds how long a symbol classification is reused before
// consulting the metadata collaborator again.
const metadataCacheTTL = 24 * time.Hour

// Classifier resolves (AssetClass, SecurityType) for symbols via the symbol
// metadata collaborator, memoizing results in-process and in the shared
// cache. Classification is a pure lookup; unknown symbols default to
// OTHER/OTHER and are still included in total-value calculations.
type Classifier struct {
	provider domain.SymbolMetadataProvider
	cache    domain.CacheStore

	mu   sync.RWMutex
	memo map[string]domain.SymbolMetadata

	log zerolog.Logger
}

// NewClassifier creates a new asset classifier
func NewClassifier(provider domain.SymbolMetadataProvider, cache domain.CacheStore, log zerolog.Logger) *Classifier {
	return &Classifier{
		provider: provider,
		cache:    cache,
		memo:     make(map[string]domain.SymbolMetadata),
		log:      log.With().Str("service", "classifier").Logger(),
	}
}

// unknown returns the default classification for a symbol
func unknown(symbol string) domain.SymbolMetadata {
	return domain.SymbolMetadata{
		Symbol:       symbol,
		AssetClass:   domain.AssetClassOther,
		SecurityType: domain.SecurityTypeOther,
	}
}

// Classify returns the classification for a symbol. The mapping is stable for
// the duration of a calculation: the first successful lookup wins.
func (c *Classifier) Classify(ctx context.Context, symbol string) domain.SymbolMetadata {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return unknown(symbol)
	}

	c.mu.RLock()
	meta, ok := c.memo[symbol]
	c.mu.RUnlock()
	if ok {
		return meta
	}

	// Shared cache avoids re-querying the collaborator across processes and
	// restarts.
	if c.cache != nil {
		var cached domain.SymbolMetadata
		if c.cache.Get(cacheKey(symbol), &cached) {
			c.remember(symbol, cached)
			return cached
		}
	}

	if c.provider == nil {
		return unknown(symbol)
	}

	fetched, err := c.provider.GetMetadata(ctx, symbol)
	if err != nil {
		// Upstream failure: default without memoizing so a later call can
		// retry the lookup.
		c.log.Warn().Err(err).Str("symbol", symbol).Msg("Metadata lookup failed, classifying as OTHER")
		return unknown(symbol)
	}
	if fetched == nil {
		return unknown(symbol)
	}

	meta = *fetched
	if meta.AssetClass == "" {
		meta.AssetClass = domain.AssetClassOther
	}
	if meta.SecurityType == "" {
		meta.SecurityType = domain.SecurityTypeOther
	}

	c.remember(symbol, meta)
	if c.cache != nil {
		if err := c.cache.Set(cacheKey(symbol), meta, metadataCacheTTL); err != nil {
			c.log.Debug().Err(err).Str("symbol", symbol).Msg("Failed to cache symbol metadata")
		}
	}

	return meta
}

// ClassifyAll resolves classifications for a batch of positions.
// Returns a map keyed by symbol.
func (c *Classifier) ClassifyAll(ctx context.Context, positions []domain.Position) map[string]domain.SymbolMetadata {
	result := make(map[string]domain.SymbolMetadata, len(positions))
	for _, pos := range positions {
		if _, ok := result[pos.Symbol]; ok {
			continue
		}
		result[pos.Symbol] = c.Classify(ctx, pos.Symbol)
	}
	return result
}

func (c *Classifier) remember(symbol string, meta domain.SymbolMetadata) {
	c.mu.Lock()
	c.memo[symbol] = meta
	c.mu.Unlock()
}

func cacheKey(symbol string) string {
	return "symbol_meta:" + symbol
}
