package limit_test

import (
	"testing"

	"github.com/x402/clearinghouse/internal/limit"
)

func TestCheckLimit_PerAsset(t *testing.T) {
	l := limit.NewAgentLimiter(100, 0)

	holdings := map[string]int64{"TBILL-26": 90}

	if err := l.CheckLimit("TBILL-26", 10, holdings); err != nil {
		t.Errorf("order at exactly the limit should pass: %v", err)
	}
	if err := l.CheckLimit("TBILL-26", 11, holdings); err != limit.ErrPerAssetLimitExceeded {
		t.Errorf("expected ErrPerAssetLimitExceeded, got %v", err)
	}
	// Other assets are unaffected by this asset's holdings.
	if err := l.CheckLimit("GOLD-1OZ", 100, holdings); err != nil {
		t.Errorf("per-asset limit leaked across assets: %v", err)
	}
}

func TestCheckLimit_Total(t *testing.T) {
	l := limit.NewAgentLimiter(0, 150)

	holdings := map[string]int64{"TBILL-26": 90, "GOLD-1OZ": 50}

	if err := l.CheckLimit("TBILL-26", 10, holdings); err != nil {
		t.Errorf("order at exactly the total limit should pass: %v", err)
	}
	if err := l.CheckLimit("GOLD-1OZ", 11, holdings); err != limit.ErrTotalLimitExceeded {
		t.Errorf("expected ErrTotalLimitExceeded, got %v", err)
	}
}

func TestCheckLimit_ZeroLimitsDisabled(t *testing.T) {
	l := limit.NewAgentLimiter(0, 0)
	holdings := map[string]int64{"TBILL-26": 1 << 40}
	if err := l.CheckLimit("TBILL-26", 1<<40, holdings); err != nil {
		t.Errorf("zero limits must disable checks: %v", err)
	}
}

func TestCheckLimit_NoHoldings(t *testing.T) {
	l := limit.NewAgentLimiter(100, 150)
	if err := l.CheckLimit("TBILL-26", 100, nil); err != nil {
		t.Errorf("first order within limits should pass: %v", err)
	}
	if err := l.CheckLimit("TBILL-26", 101, nil); err != limit.ErrPerAssetLimitExceeded {
		t.Errorf("expected ErrPerAssetLimitExceeded, got %v", err)
	}
}
