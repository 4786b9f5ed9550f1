package testing

import (
	"context"
	"time"

	"github.com/foliolabs/folio/internal/domain"
)

// MockBroker is a configurable domain.BrokerClient double. Zero-value fields
// make the corresponding call succeed with empty data; set an Err field to
// simulate an upstream failure.
type MockBroker struct {
	Account       *domain.AccountSnapshot
	AccountErr    error
	Positions     []domain.RawPosition
	PositionsErr  error
	Activities    []domain.Activity
	ActivitiesErr error
	History       *domain.PortfolioHistory
	HistoryErr    error

	ActivityCalls int
}

func (m *MockBroker) GetAccount(_ context.Context) (*domain.AccountSnapshot, error) {
	if m.AccountErr != nil {
		return nil, m.AccountErr
	}
	if m.Account == nil {
		return &domain.AccountSnapshot{}, nil
	}
	return m.Account, nil
}

func (m *MockBroker) GetPositions(_ context.Context) ([]domain.RawPosition, error) {
	if m.PositionsErr != nil {
		return nil, m.PositionsErr
	}
	return m.Positions, nil
}

func (m *MockBroker) GetActivities(_ context.Context, _ []string, _ string) ([]domain.Activity, error) {
	m.ActivityCalls++
	if m.ActivitiesErr != nil {
		return nil, m.ActivitiesErr
	}
	return m.Activities, nil
}

func (m *MockBroker) GetPortfolioHistory(_ context.Context, _, _ string) (*domain.PortfolioHistory, error) {
	if m.HistoryErr != nil {
		return nil, m.HistoryErr
	}
	return m.History, nil
}

// MockMetadataProvider resolves symbol classifications from a fixed map.
// Unknown symbols come back as OTHER/OTHER, matching provider semantics.
type MockMetadataProvider struct {
	Metadata map[string]domain.SymbolMetadata
	Err      error
}

func (m *MockMetadataProvider) GetMetadata(_ context.Context, symbol string) (*domain.SymbolMetadata, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	if meta, ok := m.Metadata[symbol]; ok {
		return &meta, nil
	}
	return &domain.SymbolMetadata{
		Symbol:       symbol,
		AssetClass:   domain.AssetClassOther,
		SecurityType: domain.SecurityTypeOther,
	}, nil
}

// MemoryCache is an in-process domain.CacheStore for tests. It stores values
// by reference, so only the types it knows about round-trip through Get.
type MemoryCache struct {
	values map[string]interface{}
}

// NewMemoryCache creates an empty in-memory cache
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{values: make(map[string]interface{})}
}

func (c *MemoryCache) Get(key string, dest interface{}) bool {
	value, ok := c.values[key]
	if !ok {
		return false
	}
	switch d := dest.(type) {
	case *domain.ReturnResult:
		if v, ok := value.(*domain.ReturnResult); ok {
			*d = *v
			return true
		}
	case *domain.SymbolMetadata:
		if v, ok := value.(domain.SymbolMetadata); ok {
			*d = v
			return true
		}
		if v, ok := value.(*domain.SymbolMetadata); ok {
			*d = *v
			return true
		}
	}
	return false
}

func (c *MemoryCache) Set(key string, value interface{}, _ time.Duration) error {
	c.values[key] = value
	return nil
}

func (c *MemoryCache) Delete(key string) error {
	delete(c.values, key)
	return nil
}
