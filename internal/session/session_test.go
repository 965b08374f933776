package session_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/x402/clearinghouse/internal/haggle"
	"github.com/x402/clearinghouse/internal/session"
)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

// scriptQuoter replays a fixed sequence of verdicts and records the bids it
// received.
type scriptQuoter struct {
	verdicts []session.Verdict
	bids     []session.Bid
}

func (q *scriptQuoter) Negotiate(_ context.Context, bid session.Bid) (session.Verdict, error) {
	q.bids = append(q.bids, bid)
	if len(q.bids) > len(q.verdicts) {
		return session.Verdict{}, session.ErrProtocol
	}
	return q.verdicts[len(q.bids)-1], nil
}

func newRunner(t *testing.T, q session.Quoter, rounds int, aggression float64) *session.Runner {
	t.Helper()
	h, err := haggle.New(rounds, d(aggression))
	if err != nil {
		t.Fatalf("haggle.New failed: %v", err)
	}
	return session.NewRunner(h, q)
}

func TestRun_AcceptedFirstRound(t *testing.T) {
	q := &scriptQuoter{verdicts: []session.Verdict{
		{Status: "ACCEPTED", Price: d(95), SessionID: "s1", ExpiresAt: 9999999999},
	}}
	r := newRunner(t, q, 3, 0.05)

	out, err := r.Run(context.Background(), "TBILL-26", "0xAgent", 1, d(100))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if out.State != session.StateAccepted {
		t.Fatalf("state = %s, want ACCEPTED", out.State)
	}
	if !out.FinalPrice.Equal(d(95)) {
		t.Errorf("final price = %s, want 95", out.FinalPrice)
	}
	if out.Rounds != 1 {
		t.Errorf("rounds = %d, want 1", out.Rounds)
	}
	// Opening bid: 100 * (1 - 0.05).
	if !q.bids[0].Amount.Equal(d(95)) {
		t.Errorf("opening bid = %s, want 95", q.bids[0].Amount)
	}
}

func TestRun_CounterThenAccept(t *testing.T) {
	q := &scriptQuoter{verdicts: []session.Verdict{
		{Status: "COUNTERED", Price: d(93.5), SessionID: "s1", ExpiresAt: 9999999999},
		{Status: "ACCEPTED", Price: d(93.5), SessionID: "s1", ExpiresAt: 9999999999},
	}}
	r := newRunner(t, q, 3, 0.15)

	out, err := r.Run(context.Background(), "TBILL-26", "0xAgent", 1, d(97))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if out.State != session.StateAccepted {
		t.Fatalf("state = %s, want ACCEPTED", out.State)
	}
	if out.Rounds != 2 {
		t.Errorf("rounds = %d, want 2", out.Rounds)
	}

	// The counter (93.5) is within budget (97): the strategy accepts it
	// as-is and the follow-up bid carries the session.
	if !q.bids[1].Amount.Equal(d(93.5)) {
		t.Errorf("second bid = %s, want the counter 93.5", q.bids[1].Amount)
	}
	if q.bids[1].SessionID != "s1" {
		t.Errorf("second bid session = %q, want s1", q.bids[1].SessionID)
	}
	if len(out.History) != 1 {
		t.Errorf("history length = %d, want 1", len(out.History))
	}
}

func TestRun_Rejected(t *testing.T) {
	q := &scriptQuoter{verdicts: []session.Verdict{
		{Status: "REJECTED", Price: d(100)},
	}}
	r := newRunner(t, q, 3, 0.5)

	out, err := r.Run(context.Background(), "TBILL-26", "0xAgent", 1, d(97))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if out.State != session.StateRejected {
		t.Fatalf("state = %s, want REJECTED", out.State)
	}
}

func TestRun_WalkAwayOnUnreasonableCounter(t *testing.T) {
	// Counter is more than 20% above the 97 budget.
	q := &scriptQuoter{verdicts: []session.Verdict{
		{Status: "COUNTERED", Price: d(120), SessionID: "s1", ExpiresAt: 9999999999},
	}}
	r := newRunner(t, q, 3, 0.15)

	out, err := r.Run(context.Background(), "TBILL-26", "0xAgent", 1, d(97))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if out.State != session.StateWalkedAway {
		t.Fatalf("state = %s, want WALKED_AWAY", out.State)
	}
	if len(q.bids) != 1 {
		t.Errorf("no further bids after walking away, got %d", len(q.bids))
	}
}

func TestRun_WalkAwayOnRoundBudget(t *testing.T) {
	// Counters stay just above budget so every round concedes and the
	// round budget runs out.
	over := session.Verdict{Status: "COUNTERED", Price: d(99), SessionID: "s1", ExpiresAt: 9999999999}
	q := &scriptQuoter{verdicts: []session.Verdict{over, over, over}}
	r := newRunner(t, q, 2, 0.3)

	out, err := r.Run(context.Background(), "TBILL-26", "0xAgent", 1, d(97))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if out.State != session.StateWalkedAway {
		t.Fatalf("state = %s, want WALKED_AWAY", out.State)
	}
	if out.Rounds != 2 {
		t.Errorf("rounds = %d, want 2", out.Rounds)
	}
}

func TestRun_ConcessionSchedule(t *testing.T) {
	// Counters stay above budget, forcing concessions. With 4 rounds and
	// room 20 after the opening bid of 80, the bid for round 2 climbs by
	// 20*(2/4) to 90, and the bid for round 3 by 10*(3/4) to 97.5.
	over := session.Verdict{Status: "COUNTERED", Price: d(110), SessionID: "s1", ExpiresAt: 9999999999}
	q := &scriptQuoter{verdicts: []session.Verdict{
		over,
		over,
		{Status: "REJECTED", Price: d(110)},
	}}
	r := newRunner(t, q, 4, 0.2)

	out, err := r.Run(context.Background(), "TBILL-26", "0xAgent", 1, d(100))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if out.State != session.StateRejected {
		t.Fatalf("state = %s, want REJECTED", out.State)
	}

	if !q.bids[0].Amount.Equal(d(80)) {
		t.Errorf("opening bid = %s, want 80", q.bids[0].Amount)
	}
	if !q.bids[1].Amount.Equal(d(90)) {
		t.Errorf("round 2 bid = %s, want 90", q.bids[1].Amount)
	}
	if !q.bids[2].Amount.Equal(d(97.5)) {
		t.Errorf("round 3 bid = %s, want 97.5", q.bids[2].Amount)
	}
}

func TestRun_ExpiredCounterWindow(t *testing.T) {
	// The seller's counter expired in the past; the runner must detect it
	// by wall clock before submitting again.
	q := &scriptQuoter{verdicts: []session.Verdict{
		{Status: "COUNTERED", Price: d(99), SessionID: "s1", ExpiresAt: 1},
	}}
	r := newRunner(t, q, 5, 0.3)

	out, err := r.Run(context.Background(), "TBILL-26", "0xAgent", 1, d(97))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if out.State != session.StateExpired {
		t.Fatalf("state = %s, want EXPIRED", out.State)
	}
	if len(q.bids) != 1 {
		t.Errorf("expected no bid after the window passed, got %d", len(q.bids))
	}
}

func TestRun_ExpiredVerdictFromSeller(t *testing.T) {
	q := &scriptQuoter{verdicts: []session.Verdict{
		{Status: "COUNTERED", Price: d(99), SessionID: "s1", ExpiresAt: 9999999999},
		{Status: "EXPIRED", Price: d(100)},
	}}
	r := newRunner(t, q, 5, 0.3)

	out, err := r.Run(context.Background(), "TBILL-26", "0xAgent", 1, d(97))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if out.State != session.StateExpired {
		t.Fatalf("state = %s, want EXPIRED", out.State)
	}
}

func TestRun_UnknownStatus(t *testing.T) {
	q := &scriptQuoter{verdicts: []session.Verdict{
		{Status: "MAYBE", Price: d(99)},
	}}
	r := newRunner(t, q, 3, 0.15)

	if _, err := r.Run(context.Background(), "TBILL-26", "0xAgent", 1, d(97)); err == nil {
		t.Error("expected protocol error for unknown status")
	}
}
