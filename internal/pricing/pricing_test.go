package pricing_test

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/x402/clearinghouse/internal/pricing"
)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

func newPolicy(t *testing.T, base, min, maxDiscount float64, rep pricing.ReputationSource) *pricing.Policy {
	t.Helper()
	p, err := pricing.NewPolicy(d(base), d(min), d(maxDiscount), rep)
	if err != nil {
		t.Fatalf("NewPolicy failed: %v", err)
	}
	return p
}

func TestNewPolicy_Validation(t *testing.T) {
	if _, err := pricing.NewPolicy(d(90), d(100), d(0.1), nil); err != pricing.ErrMinAboveBase {
		t.Errorf("expected ErrMinAboveBase, got %v", err)
	}
	if _, err := pricing.NewPolicy(d(100), d(90), d(1.5), nil); err != pricing.ErrInvalidDiscount {
		t.Errorf("expected ErrInvalidDiscount for cap > 1, got %v", err)
	}
	if _, err := pricing.NewPolicy(d(100), d(90), d(-0.1), nil); err != pricing.ErrInvalidDiscount {
		t.Errorf("expected ErrInvalidDiscount for negative cap, got %v", err)
	}
}

func TestFlexibility_Tiers(t *testing.T) {
	cases := []struct {
		inventory int64
		want      float64
	}{
		{1000, 0.05},
		{801, 0.05},
		{800, 0.03},
		{501, 0.03},
		{500, 0.01},
		{201, 0.01},
		{200, 0},
		{1, 0},
		{0, 0},
	}
	for _, c := range cases {
		got := pricing.Flexibility(c.inventory)
		if !got.Equal(d(c.want)) {
			t.Errorf("Flexibility(%d) = %s, want %v", c.inventory, got, c.want)
		}
	}
}

func TestVolumeDiscount_LinearWithCap(t *testing.T) {
	if got := pricing.VolumeDiscount(1); !got.Equal(d(0.001)) {
		t.Errorf("VolumeDiscount(1) = %s, want 0.001", got)
	}
	if got := pricing.VolumeDiscount(15); !got.Equal(d(0.015)) {
		t.Errorf("VolumeDiscount(15) = %s, want 0.015", got)
	}
	// Cap at 2% from 20 units up.
	if got := pricing.VolumeDiscount(20); !got.Equal(d(0.02)) {
		t.Errorf("VolumeDiscount(20) = %s, want 0.02", got)
	}
	if got := pricing.VolumeDiscount(5000); !got.Equal(d(0.02)) {
		t.Errorf("VolumeDiscount(5000) = %s, want 0.02", got)
	}
}

func TestFloorPrice_Scenario(t *testing.T) {
	// base=100, min=90, inventory=1000 → flexibility 5% plus 0.1% for
	// volume 1, under the 10% cap → floor 100*(1-0.051) = 94.90.
	p := newPolicy(t, 100, 90, 0.10, nil)

	floor := p.FloorPrice(1000, 1, "0xAgent")
	if !floor.Equal(d(94.9)) {
		t.Errorf("floor = %s, want 94.9", floor)
	}

	// Scarce inventory: no flexibility, only the volume component.
	floor = p.FloorPrice(100, 1, "0xAgent")
	if !floor.Equal(d(99.9)) {
		t.Errorf("floor at scarce inventory = %s, want 99.9", floor)
	}
}

func TestFloorPrice_NeverBelowMin(t *testing.T) {
	// Generous cap with tight min: the min price must win.
	p := newPolicy(t, 100, 99, 0.10, nil)

	for _, inv := range []int64{0, 100, 201, 300, 501, 801, 5000} {
		floor := p.FloorPrice(inv, 50, "0xAgent")
		if floor.LessThan(d(99)) {
			t.Errorf("inventory %d: floor %s below min price", inv, floor)
		}
		if floor.GreaterThan(d(100)) {
			t.Errorf("inventory %d: floor %s above base price", inv, floor)
		}
	}
}

func TestTotalDiscount_CappedAtMaxDiscount(t *testing.T) {
	// flexibility 5% + reputation 4% + volume 2% = 11% → capped at 10%.
	rep := pricing.StaticBook{"0xTrusted": d(0.04)}
	p := newPolicy(t, 100, 50, 0.10, rep)

	total := p.TotalDiscount(1000, 50, "0xTrusted")
	if !total.Equal(d(0.10)) {
		t.Errorf("total discount = %s, want 0.10 (capped)", total)
	}

	// Unknown agent gets no bonus.
	total = p.TotalDiscount(1000, 50, "0xStranger")
	if !total.Equal(d(0.07)) {
		t.Errorf("total discount = %s, want 0.07", total)
	}
}

func TestReputationBonus_DefaultsToZero(t *testing.T) {
	var src pricing.NoReputation
	if !src.Bonus("0xAnyone").IsZero() {
		t.Error("NoReputation should grant zero bonus")
	}
}
