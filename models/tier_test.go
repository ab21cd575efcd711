package models

import "testing"

func TestTierRates(t *testing.T) {
	if got := TierNonAlpha.Rate(); got != 0.05 {
		t.Errorf("base rate = %v, want 0.05", got)
	}
	if got := TierAlpha6.Rate(); got != 0.030 {
		t.Errorf("alpha 6 rate = %v, want 0.030", got)
	}
	// Tiers 2 and 3 share a rate in the source schedule.
	if TierAlpha2.Rate() != TierAlpha3.Rate() {
		t.Errorf("tiers 2 and 3 should share a rate")
	}
	// Rates never increase with tier.
	for tier := TierAlpha1; tier <= TierAlpha6; tier++ {
		if tier.Rate() > (tier - 1).Rate() {
			t.Errorf("rate increased from tier %d to %d", tier-1, tier)
		}
	}
}

func TestResolveTierClamping(t *testing.T) {
	cases := []struct {
		in        int
		want      AlphaTier
		defaulted bool
	}{
		{0, TierNonAlpha, false},
		{3, TierAlpha3, false},
		{6, TierAlpha6, false},
		{99, TierAlpha6, true},
		{7, TierAlpha6, true},
		{-1, TierNonAlpha, true},
	}
	for _, c := range cases {
		got, defaulted := ResolveTier(c.in)
		if got != c.want || defaulted != c.defaulted {
			t.Errorf("ResolveTier(%d) = %v, %v; want %v, %v", c.in, got, defaulted, c.want, c.defaulted)
		}
	}
}

func TestOutOfRangeRateFallsBack(t *testing.T) {
	if got := AlphaTier(42).Rate(); got != TierNonAlpha.Rate() {
		t.Errorf("out-of-range rate = %v, want base rate", got)
	}
}
