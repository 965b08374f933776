// Package settle defines the settlement collaborator invoked after a deal is
// struck. On-chain settlement (transaction construction, signing, broadcast,
// confirmation) happens outside this service; the clearinghouse only needs an
// opaque call that returns a transaction reference or fails.
package settle

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Receipt confirms one settlement.
type Receipt struct {
	TxRef     string
	AssetID   string
	Volume    int64
	Price     decimal.Decimal
	Timestamp time.Time
}

// Settler consummates an agreed trade. Implementations may block on network
// I/O and must honor ctx cancellation.
type Settler interface {
	Settle(ctx context.Context, assetID string, volume int64, price decimal.Decimal) (Receipt, error)
}

// Relay is a development Settler producing synthetic transaction references.
// Swap for the blockchain relay client in production.
type Relay struct{}

// NewRelay creates a stub relay.
func NewRelay() *Relay { return &Relay{} }

// Settle returns a synthetic receipt immediately.
func (r *Relay) Settle(_ context.Context, assetID string, volume int64, price decimal.Decimal) (Receipt, error) {
	txRef := "0x" + strings.ReplaceAll(uuid.New().String(), "-", "")

	slog.Info("settlement relayed",
		"asset", assetID,
		"volume", volume,
		"price", price.String(),
		"tx_ref", txRef,
	)

	return Receipt{
		TxRef:     txRef,
		AssetID:   assetID,
		Volume:    volume,
		Price:     price,
		Timestamp: time.Now().UTC(),
	}, nil
}
