package risk

import (
	"math"

	"github.com/shopspring/decimal"
)

// DefaultLiquidationThreshold is the health factor below which a position is
// reported as a liquidation candidate. 1.2 leaves a warning margin above the
// 1.0 under-collateralization line.
const DefaultLiquidationThreshold = 1.2

var bpsDenominator = decimal.NewFromInt(10000)

// HealthFactor returns (deposited × collateralFactorBps / 10000) / borrowed.
// A position with no debt is never at risk: borrowed == 0 yields +Inf.
// Pure function of its inputs.
func HealthFactor(deposited, borrowed decimal.Decimal, collateralFactorBps int64) float64 {
	if borrowed.Sign() <= 0 {
		return math.Inf(1)
	}

	adjusted := deposited.Mul(decimal.NewFromInt(collateralFactorBps)).Div(bpsDenominator)
	return adjusted.Div(borrowed).InexactFloat64()
}
