package integrity

import "github.com/shopspring/decimal"

const moneyPlaces = 2

var hundred = decimal.NewFromInt(100)

// Round rounds a monetary value to two decimals, half away from zero.
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(moneyPlaces)
}

// WithinTolerance reports whether |declared - expected| <= tolerance.
func WithinTolerance(declared, expected, tolerance decimal.Decimal) bool {
	return declared.Sub(expected).Abs().LessThanOrEqual(tolerance)
}

func percentOf(amount, pct decimal.Decimal) decimal.Decimal {
	return amount.Mul(pct).Div(hundred)
}

func applyDiscount(price, pct decimal.Decimal) decimal.Decimal {
	if !pct.IsPositive() {
		return price
	}
	return price.Sub(percentOf(price, pct))
}
