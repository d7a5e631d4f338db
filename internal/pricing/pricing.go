// Package pricing computes catalog unit prices.
package pricing

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// UnitPrice returns base minus the discount amount, where the discount amount
// is rounded up: base - ceil(base * discount / 100). A zero discount returns
// base untouched.
func UnitPrice(base, discountPercent decimal.Decimal) decimal.Decimal {
	if !discountPercent.IsPositive() {
		return base
	}
	off := base.Mul(discountPercent).Div(hundred).Ceil()
	return base.Sub(off)
}

// LineTotal is unit * quantity.
func LineTotal(unit decimal.Decimal, quantity int) decimal.Decimal {
	return unit.Mul(decimal.NewFromInt(int64(quantity)))
}

// MinorUnits converts an amount to the smallest currency unit used by payment
// gateways (paise, cents).
func MinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(hundred).Round(0).IntPart()
}
