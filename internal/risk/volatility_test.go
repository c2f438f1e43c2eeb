package risk

import (
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"lending-risk-engine/internal/pricefeed"
)

func series(prices ...float64) []pricefeed.PricePoint {
	points := make([]pricefeed.PricePoint, 0, len(prices))
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, p := range prices {
		points = append(points, pricefeed.PricePoint{
			Time:  base.AddDate(0, 0, i),
			Price: decimal.NewFromFloat(p),
		})
	}
	return points
}

func TestVolatilityShortSeries(t *testing.T) {
	if got := Volatility(nil); got != 0 {
		t.Fatalf("empty series should yield 0, got %f", got)
	}
	if got := Volatility(series(100)); got != 0 {
		t.Fatalf("single point should yield 0, got %f", got)
	}
	// Two prices produce one return; the unbiased stdev of one sample is 0.
	if got := Volatility(series(100, 110)); got != 0 {
		t.Fatalf("two points should yield 0, got %f", got)
	}
}

func TestVolatilityReference(t *testing.T) {
	// Returns are [0.10, -0.10]; sample stdev = sqrt(0.02) ≈ 0.141421.
	got := Volatility(series(100, 110, 99))
	want := math.Sqrt(0.02)
	if math.Abs(got-want) > 1e-9 {
		t.Fatalf("expected %f, got %f", want, got)
	}
}

func TestVolatilityZeroPriceDoesNotPanic(t *testing.T) {
	// A zero denominator contributes a zero return instead of crashing.
	got := Volatility(series(0, 110, 99))
	if math.IsNaN(got) || math.IsInf(got, 0) {
		t.Fatalf("degenerate series must stay finite, got %f", got)
	}

	if got := Volatility(series(0, 0, 0)); got != 0 {
		t.Fatalf("all-zero series should yield 0, got %f", got)
	}
}

func TestVolatilityIsPure(t *testing.T) {
	s := series(100, 105, 95, 102)
	first := Volatility(s)
	second := Volatility(s)
	if first != second {
		t.Fatalf("identical inputs must yield identical results: %f vs %f", first, second)
	}
}
