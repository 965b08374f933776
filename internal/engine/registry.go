package engine

import (
	"errors"
	"sort"
	"sync"
)

// ErrAssetNotListed is returned when no engine exists for an asset.
var ErrAssetNotListed = errors.New("engine: asset not listed")

// Registry holds one engine per tradable asset. Engines are registered at
// startup; lookups are concurrent.
type Registry struct {
	mu      sync.RWMutex
	engines map[string]*Engine
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{engines: make(map[string]*Engine)}
}

// Register adds an engine, replacing any previous engine for the same asset.
func (r *Registry) Register(e *Engine) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.engines[e.AssetID()] = e
}

// Lookup returns the engine for an asset.
func (r *Registry) Lookup(assetID string) (*Engine, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.engines[assetID]
	if !ok {
		return nil, ErrAssetNotListed
	}
	return e, nil
}

// AllStats returns per-asset stats snapshots, keyed by asset ID.
func (r *Registry) AllStats() map[string]Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]Stats, len(r.engines))
	for id, e := range r.engines {
		out[id] = e.Stats()
	}
	return out
}

// AssetIDs returns the listed asset IDs in stable order.
func (r *Registry) AssetIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.engines))
	for id := range r.engines {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
