// Package store defines the persistence interface for the clearinghouse.
// Implementations include PostgreSQL (source of truth), Redis (read-through
// cache), and in-memory (for testing).
package store

import (
	"context"

	"github.com/x402/clearinghouse/internal/model"
)

// Store is the persistence interface. PostgreSQL is the source of truth;
// Redis provides a read-through cache layer. Engines keep live inventory in
// memory — the store only holds the catalog, periodic inventory snapshots,
// and the immutable deal ledger.
type Store interface {
	// --- Asset catalog ---

	// CreateAsset lists a new asset.
	CreateAsset(ctx context.Context, asset *model.Asset) error

	// GetAsset retrieves an asset by its ID.
	GetAsset(ctx context.Context, id string) (*model.Asset, error)

	// ListAssets returns all listed assets.
	ListAssets(ctx context.Context) ([]model.Asset, error)

	// UpdateAssetInventory snapshots an asset's inventory after an
	// accepted negotiation.
	UpdateAssetInventory(ctx context.Context, id string, inventory int64) error

	// --- Immutable deal ledger ---

	// InsertDeal appends an immutable settlement record.
	InsertDeal(ctx context.Context, deal *model.Deal) error

	// ListDealsByAsset returns all settled deals for an asset.
	ListDealsByAsset(ctx context.Context, assetID string) ([]model.Deal, error)

	// ListDealsByAgent returns all settled deals for an agent.
	ListDealsByAgent(ctx context.Context, agentAddress string) ([]model.Deal, error)

	// GetAgentHoldings returns settled units per asset for an agent.
	GetAgentHoldings(ctx context.Context, agentAddress string) (map[string]int64, error)
}
