package calculator

import (
	"github.com/shopspring/decimal"

	"github.com/mmynk/storefront/internal/models"
)

var (
	// FreeShippingThreshold is the subtotal above which shipping is free.
	FreeShippingThreshold = decimal.NewFromInt(100)

	// FlatShippingRate is charged when the subtotal does not exceed the threshold.
	FlatShippingRate = decimal.NewFromInt(10)

	// TaxRate is applied to the items subtotal.
	TaxRate = decimal.RequireFromString("0.02")
)

// Totals holds the derived pricing of a cart. Every field is rounded to
// cents independently.
type Totals struct {
	ItemsSubtotal float64
	ShippingCost  float64
	TaxAmount     float64
	GrandTotal    float64
}

// CalculateTotals derives cart pricing from its lines.
//
// Algorithm:
//   - subtotal = round2(Σ price × qty)
//   - shipping = round2(subtotal > 100 ? 0 : 10)
//   - tax      = round2(0.02 × subtotal)
//   - total    = round2(subtotal + shipping + tax), summing the rounded parts
//
// Summing rounded components can differ by a cent from rounding the raw
// sum once; the component-wise result is what the order service receives.
func CalculateTotals(items []models.CartItem) Totals {
	sum := decimal.Zero
	for _, item := range items {
		line := decimal.NewFromFloat(item.Price).Mul(decimal.NewFromInt(int64(item.Qty)))
		sum = sum.Add(line)
	}

	subtotal := sum.Round(2)

	shipping := FlatShippingRate
	if subtotal.GreaterThan(FreeShippingThreshold) {
		shipping = decimal.Zero
	}
	shipping = shipping.Round(2)

	tax := TaxRate.Mul(subtotal).Round(2)

	total := subtotal.Add(shipping).Add(tax).Round(2)

	return Totals{
		ItemsSubtotal: subtotal.InexactFloat64(),
		ShippingCost:  shipping.InexactFloat64(),
		TaxAmount:     tax.InexactFloat64(),
		GrandTotal:    total.InexactFloat64(),
	}
}

// Round2 rounds an amount to cents, half away from zero.
func Round2(amount float64) float64 {
	return decimal.NewFromFloat(amount).Round(2).InexactFloat64()
}
