// Package haggle implements the buyer-side counter-bidding strategy: an
// aggressive opening bid, concessions that scale linearly with the round
// number, and a walk-away rule bounding how long an agent keeps negotiating.
//
// A Haggler holds no shared state; use one instance per negotiation attempt.
//
// All monetary values use shopspring/decimal — never float64 for money.
package haggle

import (
	"errors"

	"github.com/shopspring/decimal"
)

var (
	// ErrInvalidRounds is returned when maxRounds < 1.
	ErrInvalidRounds = errors.New("haggle: max rounds must be at least 1")

	// ErrInvalidAggression is returned when aggression is outside [0,1].
	ErrInvalidAggression = errors.New("haggle: aggression must be in [0,1]")
)

// walkAwayRatio: a counter more than 20% above budget ends the negotiation.
var walkAwayRatio = decimal.NewFromFloat(1.2)

// Round records one bid/counter exchange. Diagnostics only.
type Round struct {
	Bid     decimal.Decimal
	Counter decimal.Decimal
}

// Haggler decides opening bids, counter-bids, and walk-aways for one
// negotiation attempt.
type Haggler struct {
	maxRounds  int
	aggression decimal.Decimal
	history    []Round
}

// New creates a haggler. aggression is the fraction below budget for the
// opening bid (0.1 = start 10% under); maxRounds bounds the exchange.
func New(maxRounds int, aggression decimal.Decimal) (*Haggler, error) {
	if maxRounds < 1 {
		return nil, ErrInvalidRounds
	}
	if aggression.IsNegative() || aggression.GreaterThan(decimal.NewFromInt(1)) {
		return nil, ErrInvalidAggression
	}
	return &Haggler{maxRounds: maxRounds, aggression: aggression}, nil
}

// MaxRounds returns the round budget.
func (h *Haggler) MaxRounds() int { return h.maxRounds }

// OpeningBid lowballs by the aggression fraction, preserving room to
// negotiate up.
func (h *Haggler) OpeningBid(maxBudget decimal.Decimal) decimal.Decimal {
	return maxBudget.Mul(decimal.NewFromInt(1).Sub(h.aggression))
}

// CounterBid responds to a seller counter. A counter within budget is
// accepted as-is; otherwise the bid climbs by a share of the remaining room
// that grows with the round number, never exceeding the budget.
func (h *Haggler) CounterBid(theirPrice, myLastBid, maxBudget decimal.Decimal, roundNum int) decimal.Decimal {
	if theirPrice.LessThanOrEqual(maxBudget) {
		return theirPrice
	}

	room := maxBudget.Sub(myLastBid)
	concession := room.
		Mul(decimal.NewFromInt(int64(roundNum))).
		Div(decimal.NewFromInt(int64(h.maxRounds)))

	newBid := myLastBid.Add(concession)
	if newBid.GreaterThan(maxBudget) {
		return maxBudget
	}
	return newBid
}

// ShouldWalkAway reports whether to abandon the negotiation: the round
// budget is exhausted, or the counter is unreasonably far above budget.
func (h *Haggler) ShouldWalkAway(theirPrice, maxBudget decimal.Decimal, roundNum int) bool {
	if roundNum >= h.maxRounds {
		return true
	}
	return theirPrice.GreaterThan(maxBudget.Mul(walkAwayRatio))
}

// Record appends one exchange to the round history.
func (h *Haggler) Record(bid, counter decimal.Decimal) {
	h.history = append(h.history, Round{Bid: bid, Counter: counter})
}

// History returns the recorded exchanges in order.
func (h *Haggler) History() []Round {
	return h.history
}
