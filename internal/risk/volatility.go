package risk

import (
	"math"

	"lending-risk-engine/internal/pricefeed"
)

// DefaultPeriodDays is the trailing window used for volatility sampling.
const DefaultPeriodDays = 30

// Volatility computes the sample standard deviation of day-over-day
// percentage returns for an ordered price series. Fewer than two points
// yield zero, not an error; a zero previous price contributes a zero return
// so degenerate samples never abort the computation.
func Volatility(series []pricefeed.PricePoint) float64 {
	if len(series) < 2 {
		return 0
	}

	returns := make([]float64, 0, len(series)-1)
	for i := 1; i < len(series); i++ {
		prev := series[i-1].Price
		if prev.IsZero() {
			returns = append(returns, 0)
			continue
		}
		r := series[i].Price.Sub(prev).Div(prev)
		returns = append(returns, r.InexactFloat64())
	}

	return sampleStdev(returns)
}

// sampleStdev is the unbiased (N-1 denominator) standard deviation.
func sampleStdev(values []float64) float64 {
	n := len(values)
	if n < 2 {
		return 0
	}

	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(n)

	var squared float64
	for _, v := range values {
		d := v - mean
		squared += d * d
	}

	return math.Sqrt(squared / float64(n-1))
}
