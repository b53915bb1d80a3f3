package numeric

import (
	"math"

	"github.com/shopspring/decimal"
)

// decimalAdapter maps fixed-point decimals onto float64. Precision beyond
// float64 is lost on the way in; results come back rounded to the sketch's
// leaf width (2^-16, about 5 decimal places).
type decimalAdapter struct{}

const decimalPlaces = 5

func (decimalAdapter) Kind() Kind {
	return Decimal
}

func (decimalAdapter) ToFloat(v decimal.Decimal) float64 {
	f, _ := v.Float64()
	return f
}

func (decimalAdapter) FromFloat(f float64) decimal.Decimal {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return decimal.Zero
	}
	return decimal.NewFromFloat(f).Round(decimalPlaces)
}
