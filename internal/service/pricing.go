package service

import (
	"github.com/shopspring/decimal"
)

var (
	taxRate           = decimal.RequireFromString("0.18")
	shippingFee       = decimal.RequireFromString("1.99")
	freeShippingFloor = decimal.NewFromInt(50)
)

// PriceLine is one priced order line
type PriceLine struct {
	Price    decimal.Decimal
	Quantity int
}

// Totals of an order
type Totals struct {
	Subtotal decimal.Decimal
	Tax      decimal.Decimal
	Shipping decimal.Decimal
	Total    decimal.Decimal
}

// ComputeTotals prices an order: 18% tax, flat shipping waived from 50 upwards,
// and a grand total rounded to a whole unit half away from zero.
func ComputeTotals(lines []PriceLine) Totals {
	subtotal := decimal.Zero
	for _, l := range lines {
		subtotal = subtotal.Add(l.Price.Mul(decimal.NewFromInt(int64(l.Quantity))))
	}

	tax := subtotal.Mul(taxRate)
	shipping := shippingFee
	if subtotal.GreaterThanOrEqual(freeShippingFloor) {
		shipping = decimal.Zero
	}

	return Totals{
		Subtotal: subtotal,
		Tax:      tax.Round(2),
		Shipping: shipping,
		Total:    subtotal.Add(tax).Add(shipping).Round(0),
	}
}

// MinorUnits converts an amount to the provider's smallest currency unit
func MinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}
