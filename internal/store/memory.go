package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/x402/clearinghouse/internal/model"
)

// MemoryStore implements Store with in-memory maps. Used for testing and
// development. Not suitable for production (no persistence).
type MemoryStore struct {
	mu     sync.RWMutex
	assets map[string]*model.Asset
	deals  []model.Deal
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		assets: make(map[string]*model.Asset),
	}
}

func (s *MemoryStore) CreateAsset(_ context.Context, a *model.Asset) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.assets[a.ID]; exists {
		return fmt.Errorf("asset %s already listed", a.ID)
	}

	// Store a copy to avoid external mutation.
	copy := *a
	s.assets[a.ID] = &copy
	return nil
}

func (s *MemoryStore) GetAsset(_ context.Context, id string) (*model.Asset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.assets[id]
	if !ok {
		return nil, fmt.Errorf("asset %s not found", id)
	}
	copy := *a
	return &copy, nil
}

func (s *MemoryStore) ListAssets(_ context.Context) ([]model.Asset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	assets := make([]model.Asset, 0, len(s.assets))
	for _, a := range s.assets {
		assets = append(assets, *a)
	}
	return assets, nil
}

func (s *MemoryStore) UpdateAssetInventory(_ context.Context, id string, inventory int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.assets[id]
	if !ok {
		return fmt.Errorf("asset %s not found", id)
	}
	a.Inventory = inventory
	return nil
}

func (s *MemoryStore) InsertDeal(_ context.Context, deal *model.Deal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.deals = append(s.deals, *deal)
	return nil
}

func (s *MemoryStore) ListDealsByAsset(_ context.Context, assetID string) ([]model.Deal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []model.Deal
	for _, d := range s.deals {
		if d.AssetID == assetID {
			result = append(result, d)
		}
	}
	return result, nil
}

func (s *MemoryStore) ListDealsByAgent(_ context.Context, agentAddress string) ([]model.Deal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []model.Deal
	for _, d := range s.deals {
		if d.AgentAddress == agentAddress {
			result = append(result, d)
		}
	}
	return result, nil
}

func (s *MemoryStore) GetAgentHoldings(_ context.Context, agentAddress string) (map[string]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	holdings := make(map[string]int64)
	for _, d := range s.deals {
		if d.AgentAddress == agentAddress {
			holdings[d.AssetID] += d.Volume
		}
	}
	return holdings, nil
}
