package calculation

import "github.com/shopspring/decimal"

// Round rounds to two decimal places, half-up. Decimal conversion uses the shortest
// representation of v, so 1.005 rounds to 1.01 rather than drifting below the half.
func Round(v float64) float64 {
	rounded, _ := decimal.NewFromFloat(v).Round(2).Float64()
	return rounded
}
