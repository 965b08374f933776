// Package limit enforces per-agent purchase limits so a single agent cannot
// drain an asset's inventory — or the whole book — through repeated accepted
// negotiations. Exposure is measured in settled units from the deal ledger.
package limit

import "errors"

var (
	// ErrPerAssetLimitExceeded is returned when an order would push the
	// agent's holdings in one asset beyond the per-asset maximum.
	ErrPerAssetLimitExceeded = errors.New("limit: per-asset position limit exceeded")

	// ErrTotalLimitExceeded is returned when an order would push the
	// agent's aggregate holdings beyond the total maximum.
	ErrTotalLimitExceeded = errors.New("limit: total position limit exceeded")
)

// AgentLimiter caps how many units one agent can accumulate.
// Zero limits disable the corresponding check.
type AgentLimiter struct {
	// MaxPerAsset is the maximum units of any single asset per agent.
	MaxPerAsset int64

	// MaxTotal is the maximum aggregate units across all assets per agent.
	MaxTotal int64
}

// NewAgentLimiter creates a limiter with the given caps.
func NewAgentLimiter(maxPerAsset, maxTotal int64) *AgentLimiter {
	return &AgentLimiter{MaxPerAsset: maxPerAsset, MaxTotal: maxTotal}
}

// CheckLimit validates an order of `volume` units of `assetID` against the
// agent's existing holdings (asset ID → settled units). Returns nil if the
// order is within limits.
func (l *AgentLimiter) CheckLimit(assetID string, volume int64, holdings map[string]int64) error {
	if l.MaxPerAsset > 0 && holdings[assetID]+volume > l.MaxPerAsset {
		return ErrPerAssetLimitExceeded
	}

	if l.MaxTotal > 0 {
		total := volume
		for _, units := range holdings {
			total += units
		}
		if total > l.MaxTotal {
			return ErrTotalLimitExceeded
		}
	}

	return nil
}
