// Package session implements the buyer-side negotiation protocol: a bounded
// sequence of bid/counter rounds against a seller, driven by the haggle
// strategy, ending in one terminal state. The engine never expires quotes in
// the background, so the wall-clock expiry check lives here.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/x402/clearinghouse/internal/haggle"
)

// State is the protocol state of one negotiation session.
type State string

const (
	StateOpen       State = "OPEN"
	StateAccepted   State = "ACCEPTED"
	StateRejected   State = "REJECTED"
	StateExpired    State = "EXPIRED"
	StateWalkedAway State = "WALKED_AWAY"
)

// ErrProtocol is returned when the seller answers with something other than
// a negotiation verdict.
var ErrProtocol = errors.New("session: unexpected negotiation response")

// Bid is one buyer offer submitted to the seller.
type Bid struct {
	Amount       decimal.Decimal
	AssetID      string
	AgentAddress string
	Volume       int64
	SessionID    string // empty on the opening bid
}

// Verdict is the seller's answer to one bid, decoded from the wire.
type Verdict struct {
	Status    string // ACCEPTED | COUNTERED | REJECTED | EXPIRED
	Price     decimal.Decimal
	Message   string
	SessionID string
	ExpiresAt int64 // unix seconds; 0 = none
}

// Quoter submits one bid and returns the seller's verdict.
type Quoter interface {
	Negotiate(ctx context.Context, bid Bid) (Verdict, error)
}

// Outcome summarizes a finished negotiation.
type Outcome struct {
	State      State
	FinalPrice decimal.Decimal
	SessionID  string
	Rounds     int
	History    []haggle.Round
}

// Runner drives one negotiation attempt to a terminal state.
type Runner struct {
	strategy *haggle.Haggler
	quoter   Quoter
	now      func() time.Time
}

// NewRunner creates a runner around a fresh haggler.
func NewRunner(strategy *haggle.Haggler, quoter Quoter) *Runner {
	return &Runner{strategy: strategy, quoter: quoter, now: time.Now}
}

// Run negotiates for the given asset and volume within maxBudget. It returns
// a terminal Outcome, or an error if the exchange itself failed.
func (r *Runner) Run(ctx context.Context, assetID, agentAddress string, volume int64, maxBudget decimal.Decimal) (Outcome, error) {
	bid := r.strategy.OpeningBid(maxBudget)
	sessionID := ""
	var lastExpiry int64

	for round := 1; ; round++ {
		// An expired counter window ends the session before the next bid.
		if lastExpiry > 0 && r.now().Unix() > lastExpiry {
			return r.outcome(StateExpired, decimal.Zero, sessionID, round-1), nil
		}

		verdict, err := r.quoter.Negotiate(ctx, Bid{
			Amount:       bid,
			AssetID:      assetID,
			AgentAddress: agentAddress,
			Volume:       volume,
			SessionID:    sessionID,
		})
		if err != nil {
			return Outcome{}, err
		}

		switch verdict.Status {
		case "ACCEPTED":
			return r.outcome(StateAccepted, verdict.Price, verdict.SessionID, round), nil

		case "REJECTED":
			return r.outcome(StateRejected, verdict.Price, sessionID, round), nil

		case "EXPIRED":
			return r.outcome(StateExpired, decimal.Zero, sessionID, round), nil

		case "COUNTERED":
			r.strategy.Record(bid, verdict.Price)
			if r.strategy.ShouldWalkAway(verdict.Price, maxBudget, round) {
				return r.outcome(StateWalkedAway, decimal.Zero, verdict.SessionID, round), nil
			}
			// The concession is sized for the round about to be played.
			bid = r.strategy.CounterBid(verdict.Price, bid, maxBudget, round+1)
			sessionID = verdict.SessionID
			lastExpiry = verdict.ExpiresAt

		default:
			return Outcome{}, ErrProtocol
		}
	}
}

func (r *Runner) outcome(state State, price decimal.Decimal, sessionID string, rounds int) Outcome {
	return Outcome{
		State:      state,
		FinalPrice: price,
		SessionID:  sessionID,
		Rounds:     rounds,
		History:    r.strategy.History(),
	}
}
