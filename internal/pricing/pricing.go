// Package pricing computes the seller's floor price for one negotiation
// round from inventory level, order volume, and agent reputation.
//
// The flexibility tiers implement the "desperation algorithm": abundant
// inventory widens the discount, scarce inventory hardens the price. All
// discount components are additive before the global cap is applied, and no
// combination may push the floor below the absolute minimum price.
//
// All monetary values use shopspring/decimal — never float64 for money.
package pricing

import (
	"errors"

	"github.com/shopspring/decimal"
)

var (
	// ErrMinAboveBase is returned when the absolute minimum price exceeds
	// the base price.
	ErrMinAboveBase = errors.New("pricing: min price must not exceed base price")

	// ErrInvalidDiscount is returned when the discount cap is outside [0,1].
	ErrInvalidDiscount = errors.New("pricing: max discount must be in [0,1]")
)

// Flexibility tiers. Thresholds are inventory unit counts; values are
// discount fractions.
var (
	flexHigh = decimal.NewFromFloat(0.05) // inventory > 800
	flexMid  = decimal.NewFromFloat(0.03) // inventory > 500
	flexLow  = decimal.NewFromFloat(0.01) // inventory > 200

	// volumeRate is the per-unit volume discount; volumeCap bounds it at 2%.
	volumeRate = decimal.NewFromFloat(0.001)
	volumeCap  = decimal.NewFromFloat(0.02)
)

// ReputationSource resolves an agent's reputation bonus fraction. The
// production implementation queries the external agent registry; the engine
// calls this under its lock, so implementations must not block.
type ReputationSource interface {
	Bonus(agentAddress string) decimal.Decimal
}

// NoReputation grants no bonus to any agent. Placeholder until the registry
// lookup is wired in.
type NoReputation struct{}

func (NoReputation) Bonus(string) decimal.Decimal { return decimal.Zero }

// StaticBook grants fixed bonuses from an in-memory table. Used in tests and
// for manually whitelisted agents.
type StaticBook map[string]decimal.Decimal

func (b StaticBook) Bonus(agent string) decimal.Decimal { return b[agent] }

// Policy computes floor prices for one asset. Immutable after construction.
type Policy struct {
	basePrice   decimal.Decimal
	minPrice    decimal.Decimal
	maxDiscount decimal.Decimal
	reputation  ReputationSource
}

// NewPolicy validates the pricing configuration and returns a Policy.
// Passing nil for reputation disables the bonus.
func NewPolicy(basePrice, minPrice, maxDiscount decimal.Decimal, reputation ReputationSource) (*Policy, error) {
	if minPrice.GreaterThan(basePrice) {
		return nil, ErrMinAboveBase
	}
	if maxDiscount.IsNegative() || maxDiscount.GreaterThan(decimal.NewFromInt(1)) {
		return nil, ErrInvalidDiscount
	}
	if reputation == nil {
		reputation = NoReputation{}
	}
	return &Policy{
		basePrice:   basePrice,
		minPrice:    minPrice,
		maxDiscount: maxDiscount,
		reputation:  reputation,
	}, nil
}

// BasePrice returns the list price.
func (p *Policy) BasePrice() decimal.Decimal { return p.basePrice }

// MinPrice returns the absolute floor.
func (p *Policy) MinPrice() decimal.Decimal { return p.minPrice }

// Flexibility returns the inventory-tiered discount fraction.
// High inventory = flexible pricing; scarce inventory = firm.
func Flexibility(inventory int64) decimal.Decimal {
	switch {
	case inventory > 800:
		return flexHigh
	case inventory > 500:
		return flexMid
	case inventory > 200:
		return flexLow
	default:
		return decimal.Zero
	}
}

// VolumeDiscount returns min(2%, volume * 0.1%) — larger orders pay less
// per unit.
func VolumeDiscount(volume int64) decimal.Decimal {
	d := decimal.NewFromInt(volume).Mul(volumeRate)
	if d.GreaterThan(volumeCap) {
		return volumeCap
	}
	return d
}

// TotalDiscount sums flexibility, reputation bonus, and volume discount,
// capped at the policy's max discount.
func (p *Policy) TotalDiscount(inventory, volume int64, agentAddress string) decimal.Decimal {
	total := Flexibility(inventory).
		Add(p.reputation.Bonus(agentAddress)).
		Add(VolumeDiscount(volume))
	if total.GreaterThan(p.maxDiscount) {
		return p.maxDiscount
	}
	return total
}

// FloorPrice is the minimum the seller accepts outright in this round:
//
//	max(minPrice, basePrice * (1 - totalDiscount))
func (p *Policy) FloorPrice(inventory, volume int64, agentAddress string) decimal.Decimal {
	discount := p.TotalDiscount(inventory, volume, agentAddress)
	floor := p.basePrice.Mul(decimal.NewFromInt(1).Sub(discount))
	if floor.LessThan(p.minPrice) {
		return p.minPrice
	}
	return floor
}
