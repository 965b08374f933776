// Package model defines the core domain types shared across the clearinghouse.
// All monetary values use shopspring/decimal — never float64 for money.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Asset is one tradable unit good listed on the clearinghouse. Pricing
// configuration is immutable after listing; inventory is mutated only by
// accepted negotiations.
type Asset struct {
	ID          string          `json:"id" db:"id"`
	Name        string          `json:"name" db:"name"`
	BasePrice   decimal.Decimal `json:"base_price" db:"base_price"`
	MinPrice    decimal.Decimal `json:"min_price" db:"min_price"`       // absolute floor
	MaxDiscount decimal.Decimal `json:"max_discount" db:"max_discount"` // fraction in [0,1]
	Inventory   int64           `json:"inventory" db:"inventory"`
	Active      bool            `json:"active" db:"active"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
}

// Deal is an immutable record of a settled negotiation.
// Once created, these are never modified or deleted.
// Schema: {asset, agent, volume, price, tx_ref, timestamp}
type Deal struct {
	ID           string          `json:"id" db:"id"`
	AssetID      string          `json:"asset_id" db:"asset_id"`
	AgentAddress string          `json:"agent_address" db:"agent_address"`
	Volume       int64           `json:"volume" db:"volume"`
	Price        decimal.Decimal `json:"price" db:"price"` // agreed unit price
	TxRef        string          `json:"tx_ref" db:"tx_ref"`
	Timestamp    time.Time       `json:"timestamp" db:"timestamp"`
}
