package models

// AlphaTier is the discrete fee bracket assigned to an account. Higher
// tiers pay lower fees.
type AlphaTier int

const (
	TierNonAlpha AlphaTier = iota
	TierAlpha1
	TierAlpha2
	TierAlpha3
	TierAlpha4
	TierAlpha5
	TierAlpha6
)

// Fee rate as percentage per tier (0.05 means 0.05%). Tiers 2 and 3 share a
// rate in the published schedule.
var feeRates = [...]float64{
	TierNonAlpha: 0.05,
	TierAlpha1:   0.048,
	TierAlpha2:   0.045,
	TierAlpha3:   0.045,
	TierAlpha4:   0.040,
	TierAlpha5:   0.035,
	TierAlpha6:   0.030,
}

// Rate returns the fee percentage for the tier. A value outside the
// schedule falls back to the base tier's rate.
func (t AlphaTier) Rate() float64 {
	if t < TierNonAlpha || t > TierAlpha6 {
		return feeRates[TierNonAlpha]
	}
	return feeRates[t]
}

// ResolveTier clamps n into the valid tier range. The second return is true
// when the input was out of range and the result is a policy default rather
// than the caller's choice.
func ResolveTier(n int) (AlphaTier, bool) {
	switch {
	case n < int(TierNonAlpha):
		return TierNonAlpha, true
	case n > int(TierAlpha6):
		return TierAlpha6, true
	default:
		return AlphaTier(n), false
	}
}
