package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/x402/clearinghouse/internal/model"
)

// CachedStore wraps a primary Store (PostgreSQL) with a Redis read-through
// cache. Writes go to the primary store and invalidate the cache; reads
// check Redis first then fall back to the primary.
type CachedStore struct {
	primary Store
	rdb     *redis.Client
	ttl     time.Duration
}

// NewCachedStore creates a cached wrapper around a primary store.
func NewCachedStore(primary Store, rdb *redis.Client, ttl time.Duration) *CachedStore {
	return &CachedStore{
		primary: primary,
		rdb:     rdb,
		ttl:     ttl,
	}
}

// --- Write-through (write to primary, invalidate cache) ---

func (s *CachedStore) CreateAsset(ctx context.Context, a *model.Asset) error {
	if err := s.primary.CreateAsset(ctx, a); err != nil {
		return err
	}
	s.cacheAsset(ctx, a)
	return nil
}

func (s *CachedStore) UpdateAssetInventory(ctx context.Context, id string, inventory int64) error {
	if err := s.primary.UpdateAssetInventory(ctx, id, inventory); err != nil {
		return err
	}
	// Invalidate cache; next read will re-populate.
	s.rdb.Del(ctx, assetKey(id))
	return nil
}

func (s *CachedStore) InsertDeal(ctx context.Context, deal *model.Deal) error {
	if err := s.primary.InsertDeal(ctx, deal); err != nil {
		return err
	}
	// Invalidate holdings cache for this agent.
	s.rdb.Del(ctx, holdingsKey(deal.AgentAddress))
	return nil
}

// --- Read-through (check cache first) ---

func (s *CachedStore) GetAsset(ctx context.Context, id string) (*model.Asset, error) {
	// Try cache.
	data, err := s.rdb.Get(ctx, assetKey(id)).Bytes()
	if err == nil {
		var a model.Asset
		if json.Unmarshal(data, &a) == nil {
			return &a, nil
		}
	}

	// Cache miss: read from primary.
	a, err := s.primary.GetAsset(ctx, id)
	if err != nil {
		return nil, err
	}

	s.cacheAsset(ctx, a)
	return a, nil
}

func (s *CachedStore) GetAgentHoldings(ctx context.Context, agentAddress string) (map[string]int64, error) {
	// Try cache.
	data, err := s.rdb.Get(ctx, holdingsKey(agentAddress)).Bytes()
	if err == nil {
		var holdings map[string]int64
		if json.Unmarshal(data, &holdings) == nil {
			return holdings, nil
		}
	}

	// Cache miss.
	holdings, err := s.primary.GetAgentHoldings(ctx, agentAddress)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(holdings); err == nil {
		s.rdb.Set(ctx, holdingsKey(agentAddress), data, s.ttl)
	}
	return holdings, nil
}

// --- Passthrough (not cached) ---

func (s *CachedStore) ListAssets(ctx context.Context) ([]model.Asset, error) {
	return s.primary.ListAssets(ctx)
}

func (s *CachedStore) ListDealsByAsset(ctx context.Context, assetID string) ([]model.Deal, error) {
	return s.primary.ListDealsByAsset(ctx, assetID)
}

func (s *CachedStore) ListDealsByAgent(ctx context.Context, agentAddress string) ([]model.Deal, error) {
	return s.primary.ListDealsByAgent(ctx, agentAddress)
}

// --- Cache helpers ---

func (s *CachedStore) cacheAsset(ctx context.Context, a *model.Asset) {
	if data, err := json.Marshal(a); err == nil {
		s.rdb.Set(ctx, assetKey(a.ID), data, s.ttl)
	}
}

func assetKey(id string) string       { return fmt.Sprintf("asset:%s", id) }
func holdingsKey(agent string) string { return fmt.Sprintf("holdings:%s", agent) }
