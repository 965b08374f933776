// Package engine implements the seller-side bid negotiation engine: a
// per-asset decision core that turns a bid into an accept/counter/reject
// verdict, owns the asset's inventory, and tracks negotiation sessions so a
// counter-offer can only be redeemed against the exact quote that produced it.
//
// Every inventory-affecting decision executes under a single mutex. The
// read-modify-write in EvaluateBid (compute floor from current inventory,
// conditionally decrement) must be one atomic unit or two concurrent accepts
// can both observe the same stock level and oversell.
//
// All monetary values use shopspring/decimal — never float64 for money.
package engine

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/x402/clearinghouse/internal/pricing"
)

// Status is the verdict for one evaluated bid.
type Status string

const (
	StatusAccepted  Status = "ACCEPTED"
	StatusCountered Status = "COUNTERED"
	StatusRejected  Status = "REJECTED"
	StatusExpired   Status = "EXPIRED"
)

// Quote validity windows. An accepted deal gets a generous settlement grace
// window; a counter-offer is time-sensitive.
const (
	SettleWindow  = 300 * time.Second
	CounterWindow = 60 * time.Second
)

var (
	// ErrInvalidBid is returned for a negative bid amount.
	ErrInvalidBid = errors.New("engine: bid amount must be non-negative")

	// ErrInvalidVolume is returned for a volume below one unit.
	ErrInvalidVolume = errors.New("engine: volume must be at least 1")

	// ErrUnknownSession is returned when redeeming a session that does not
	// exist or has already been consumed.
	ErrUnknownSession = errors.New("engine: unknown or consumed session")

	// ErrSessionExpired is returned when redeeming a session past its window.
	ErrSessionExpired = errors.New("engine: session expired")
)

// Urgency is accepted on bids but not yet weighted by the floor-price
// computation. Reserved for future use.
type Urgency string

const UrgencyNormal Urgency = "normal"

// Bid is one buyer offer, evaluated in a single call.
type Bid struct {
	Amount       decimal.Decimal
	AgentAddress string
	Volume       int64
	Urgency      Urgency
}

// Result is the verdict returned to the protocol layer.
type Result struct {
	Status     Status
	FinalPrice decimal.Decimal
	Message    string
	SessionID  string
	ExpiresAt  int64 // unix seconds; 0 = no expiry
}

// Stats is a read-only snapshot of negotiation counters.
type Stats struct {
	TotalNegotiations int64           `json:"total_negotiations"`
	Accepted          int64           `json:"accepted"`
	Countered         int64           `json:"countered"`
	Rejected          int64           `json:"rejected"`
	AcceptanceRate    float64         `json:"acceptance_rate"`
	CurrentInventory  int64           `json:"current_inventory"`
	BasePrice         decimal.Decimal `json:"base_price"`
	MinPrice          decimal.Decimal `json:"min_price"`
}

// session correlates follow-up requests with a prior quote. A countered
// session holds the quoted counter price; an accepted session holds the
// struck deal awaiting settlement.
type session struct {
	status       Status // StatusCountered or StatusAccepted
	agentAddress string
	volume       int64
	price        decimal.Decimal
	expiresAt    time.Time
}

// Config is the immutable pricing configuration for one engine instance.
type Config struct {
	AssetID     string
	BasePrice   decimal.Decimal
	MinPrice    decimal.Decimal
	MaxDiscount decimal.Decimal
	Inventory   int64
	Reputation  pricing.ReputationSource // nil = no bonus
}

// Engine evaluates bids for a single asset. One instance per asset; all
// methods are safe for concurrent use.
type Engine struct {
	assetID string
	policy  *pricing.Policy

	mu        sync.Mutex
	inventory int64
	sessions  map[string]session
	total     int64
	accepted  int64
	countered int64
	rejected  int64

	now func() time.Time // overridden in tests
}

// New validates the configuration and creates an engine.
func New(cfg Config) (*Engine, error) {
	policy, err := pricing.NewPolicy(cfg.BasePrice, cfg.MinPrice, cfg.MaxDiscount, cfg.Reputation)
	if err != nil {
		return nil, err
	}
	if cfg.Inventory < 0 {
		return nil, fmt.Errorf("engine: negative initial inventory %d", cfg.Inventory)
	}
	return &Engine{
		assetID:   cfg.AssetID,
		policy:    policy,
		inventory: cfg.Inventory,
		sessions:  make(map[string]session),
		now:       time.Now,
	}, nil
}

// AssetID returns the asset this engine prices.
func (e *Engine) AssetID() string { return e.assetID }

// EvaluateBid runs the decision core for a fresh bid:
//
//	bid ≥ floor            → ACCEPTED at the bid, inventory -= volume
//	minPrice ≤ bid < floor → COUNTERED at the floor/bid midpoint
//	bid < minPrice         → REJECTED, price firm at base
//
// An accept with insufficient inventory is converted to REJECTED rather than
// allowed to drive inventory negative.
func (e *Engine) EvaluateBid(bid Bid) (Result, error) {
	if err := validate(bid); err != nil {
		return Result{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.evaluateLocked(bid, ""), nil
}

// Resume continues a negotiation session. A bid at or above the quoted
// counter price is honored at the bid even when the current floor has moved
// above the quote; anything lower re-enters the decision core and refreshes
// the session's quote. Expired or unknown sessions yield EXPIRED — a stale
// quote is never replayable.
func (e *Engine) Resume(sessionID string, bid Bid) (Result, error) {
	if err := validate(bid); err != nil {
		return Result{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	s, ok := e.sessions[sessionID]
	if !ok || s.status != StatusCountered {
		return e.expiredResult(), nil
	}
	if e.now().After(s.expiresAt) {
		delete(e.sessions, sessionID)
		return e.expiredResult(), nil
	}

	if bid.Amount.GreaterThanOrEqual(s.price) {
		e.total++
		delete(e.sessions, sessionID)
		return e.acceptLocked(bid, sessionID), nil
	}

	// Below the quoted price: treat as a fresh round on the same session.
	return e.evaluateLocked(bid, sessionID), nil
}

// Claim is a redeemed accepted deal handed to the settlement layer. The
// original window travels with it so Reinstate cannot extend the quote.
type Claim struct {
	AgentAddress string
	Volume       int64
	Price        decimal.Decimal

	expiresAt time.Time
}

// Redeem consumes an accepted session for settlement, returning the agreed
// deal exactly once. If settlement fails, Reinstate puts the claim back.
func (e *Engine) Redeem(sessionID string) (Claim, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	s, ok := e.sessions[sessionID]
	if !ok || s.status != StatusAccepted {
		return Claim{}, ErrUnknownSession
	}
	if e.now().After(s.expiresAt) {
		delete(e.sessions, sessionID)
		return Claim{}, ErrSessionExpired
	}
	delete(e.sessions, sessionID)
	return Claim{
		AgentAddress: s.agentAddress,
		Volume:       s.volume,
		Price:        s.price,
		expiresAt:    s.expiresAt,
	}, nil
}

// Reinstate returns a redeemed claim to the session table so the buyer can
// retry settlement within the original window. Call only when the settlement
// attempt did not transfer value.
func (e *Engine) Reinstate(sessionID string, c Claim) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.sessions[sessionID] = session{
		status:       StatusAccepted,
		agentAddress: c.AgentAddress,
		volume:       c.Volume,
		price:        c.Price,
		expiresAt:    c.expiresAt,
	}
}

// Stats returns a read-only snapshot of the counters.
func (e *Engine) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()

	n := e.total
	if n < 1 {
		n = 1
	}
	return Stats{
		TotalNegotiations: e.total,
		Accepted:          e.accepted,
		Countered:         e.countered,
		Rejected:          e.rejected,
		AcceptanceRate:    float64(e.accepted) / float64(n),
		CurrentInventory:  e.inventory,
		BasePrice:         e.policy.BasePrice(),
		MinPrice:          e.policy.MinPrice(),
	}
}

// Inventory returns the current stock level.
func (e *Engine) Inventory() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.inventory
}

func validate(bid Bid) error {
	if bid.Amount.IsNegative() {
		return ErrInvalidBid
	}
	if bid.Volume < 1 {
		return ErrInvalidVolume
	}
	return nil
}

// purgeExpiredLocked drops sessions past their window. Caller holds e.mu.
// Abandoned quotes are never presented again, so this sweep is the only
// thing keeping the session table bounded.
func (e *Engine) purgeExpiredLocked() {
	now := e.now()
	for id, s := range e.sessions {
		if now.After(s.expiresAt) {
			delete(e.sessions, id)
		}
	}
}

// evaluateLocked is the decision core. Caller holds e.mu. sessionID is the
// session being continued, or "" for a fresh negotiation.
func (e *Engine) evaluateLocked(bid Bid, sessionID string) Result {
	e.purgeExpiredLocked()
	e.total++

	floor := e.policy.FloorPrice(e.inventory, bid.Volume, bid.AgentAddress)

	switch {
	case bid.Amount.GreaterThanOrEqual(floor):
		if sessionID != "" {
			delete(e.sessions, sessionID)
		}
		return e.acceptLocked(bid, sessionID)

	case bid.Amount.GreaterThanOrEqual(e.policy.MinPrice()):
		e.countered++
		counter := floor.Add(bid.Amount).Div(decimal.NewFromInt(2)).Round(2)
		if counter.LessThan(e.policy.MinPrice()) {
			counter = e.policy.MinPrice()
		}
		expires := e.now().Add(CounterWindow)
		if sessionID == "" {
			sessionID = uuid.New().String()
		}
		e.sessions[sessionID] = session{
			status:       StatusCountered,
			agentAddress: bid.AgentAddress,
			volume:       bid.Volume,
			price:        counter,
			expiresAt:    expires,
		}
		return Result{
			Status:     StatusCountered,
			FinalPrice: counter,
			Message:    fmt.Sprintf("Too low. Counter-offer: $%s", counter.StringFixed(2)),
			SessionID:  sessionID,
			ExpiresAt:  expires.Unix(),
		}

	default:
		if sessionID != "" {
			delete(e.sessions, sessionID)
		}
		e.rejected++
		return Result{
			Status:     StatusRejected,
			FinalPrice: e.policy.BasePrice(),
			Message: fmt.Sprintf("Price is firm at $%s. Your bid was too low.",
				e.policy.BasePrice().StringFixed(2)),
		}
	}
}

// acceptLocked strikes the deal at the buyer's own bid. Caller holds e.mu and
// has already incremented the total counter.
func (e *Engine) acceptLocked(bid Bid, sessionID string) Result {
	if e.inventory < bid.Volume {
		// Hard failure of the accept path: insufficient stock at the moment
		// of the decrement. Never drive inventory negative.
		e.rejected++
		return Result{
			Status:     StatusRejected,
			FinalPrice: e.policy.BasePrice(),
			Message:    "Insufficient inventory to fill this order.",
		}
	}

	e.accepted++
	e.inventory -= bid.Volume

	expires := e.now().Add(SettleWindow)
	if sessionID == "" {
		sessionID = uuid.New().String()
	}
	e.sessions[sessionID] = session{
		status:       StatusAccepted,
		agentAddress: bid.AgentAddress,
		volume:       bid.Volume,
		price:        bid.Amount,
		expiresAt:    expires,
	}
	return Result{
		Status:     StatusAccepted,
		FinalPrice: bid.Amount,
		Message:    "Deal accepted.",
		SessionID:  sessionID,
		ExpiresAt:  expires.Unix(),
	}
}

func (e *Engine) expiredResult() Result {
	return Result{
		Status:     StatusExpired,
		FinalPrice: e.policy.BasePrice(),
		Message:    "Quote expired. Submit a new bid.",
	}
}
