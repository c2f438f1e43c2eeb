package risk

import "math"

// EffectiveRateBps combines an asset's base rate with a volatility-driven
// premium: base + floor(volatility × 10000 × multiplier / 100), all in
// integer basis points so the persisted rate never drifts. A negative
// multiplier or non-finite volatility degrades to the unmodified base rate.
// A negative premium is not floored; the raw sum is returned.
func EffectiveRateBps(baseRateBps int64, volatility float64, multiplier int64) int64 {
	if multiplier < 0 || math.IsNaN(volatility) || math.IsInf(volatility, 0) {
		return baseRateBps
	}
	premium := math.Floor(volatility * 10000 * float64(multiplier) / 100)
	return baseRateBps + int64(premium)
}
