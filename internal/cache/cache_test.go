package cache

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/foliolabs/folio/internal/domain"
	foliotest "github.com/foliolabs/folio/internal/testing"
)

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	db := foliotest.NewTestDB(t, "cache")
	return New(db.Conn(), zerolog.Nop())
}

func TestSetGetRoundTrip(t *testing.T) {
	c := newTestCache(t)

	stored := domain.ReturnResult{
		RawReturn:        1234.56,
		StrategyUsed:     domain.StrategyEquityDiff,
		DataQualityScore: domain.QualityGood,
	}
	require.NoError(t, c.Set("return:primary:2026-08-25", stored, time.Minute))

	var got domain.ReturnResult
	require.True(t, c.Get("return:primary:2026-08-25", &got))
	assert.InDelta(t, 1234.56, got.RawReturn, 1e-9)
	assert.Equal(t, domain.StrategyEquityDiff, got.StrategyUsed)
	assert.Equal(t, domain.QualityGood, got.DataQualityScore)
}

func TestGetMiss(t *testing.T) {
	c := newTestCache(t)

	var got domain.ReturnResult
	assert.False(t, c.Get("absent", &got))
}

func TestGetExpired(t *testing.T) {
	c := newTestCache(t)

	require.NoError(t, c.Set("stale", "value", -time.Hour))

	var got string
	assert.False(t, c.Get("stale", &got))
}

func TestSetOverwrites(t *testing.T) {
	c := newTestCache(t)

	require.NoError(t, c.Set("key", "first", time.Minute))
	require.NoError(t, c.Set("key", "second", time.Minute))

	var got string
	require.True(t, c.Get("key", &got))
	assert.Equal(t, "second", got)
}

func TestDelete(t *testing.T) {
	c := newTestCache(t)

	require.NoError(t, c.Set("key", "value", time.Minute))
	require.NoError(t, c.Delete("key"))

	var got string
	assert.False(t, c.Get("key", &got))

	// Deleting an absent key is not an error
	assert.NoError(t, c.Delete("key"))
}

func TestDeleteByPrefix(t *testing.T) {
	c := newTestCache(t)

	require.NoError(t, c.Set("symbol_meta:AAPL", "a", time.Minute))
	require.NoError(t, c.Set("symbol_meta:MSFT", "b", time.Minute))
	require.NoError(t, c.Set("return:primary:2026-08-25", "c", time.Minute))

	require.NoError(t, c.DeleteByPrefix("symbol_meta:"))

	var got string
	assert.False(t, c.Get("symbol_meta:AAPL", &got))
	assert.False(t, c.Get("symbol_meta:MSFT", &got))
	assert.True(t, c.Get("return:primary:2026-08-25", &got))
}

func TestPruneExpired(t *testing.T) {
	c := newTestCache(t)

	require.NoError(t, c.Set("live", "a", time.Hour))
	require.NoError(t, c.Set("dead-1", "b", -time.Hour))
	require.NoError(t, c.Set("dead-2", "c", -time.Minute))

	pruned, err := c.PruneExpired()
	require.NoError(t, err)
	assert.Equal(t, int64(2), pruned)

	var got string
	assert.True(t, c.Get("live", &got))
}
