package service

import (
	"github.com/shopspring/decimal"

	"github.com/maribelle/backoffice/internal/domain"
)

// Totals is the price breakdown of a batch. Amounts are EUR decimals; no
// rounding, discount, or tax logic is applied at this layer. The commerce
// backend owns that once the order lands there.
type Totals struct {
	Subtotal     decimal.Decimal
	ShippingCost decimal.Decimal
	Total        decimal.Decimal
}

// ComputeTotals sums item totals and adds the batch's stored shipping cost.
func ComputeTotals(items []domain.DeliveryBatchItem, shippingCost decimal.Decimal) Totals {
	subtotal := decimal.Zero
	for _, item := range items {
		subtotal = subtotal.Add(item.TotalPrice)
	}

	return Totals{
		Subtotal:     subtotal,
		ShippingCost: shippingCost,
		Total:        subtotal.Add(shippingCost),
	}
}

// ShippingCostCents converts the shipping cost to minor units for the
// payment provider. Exact because the column is numeric(10,2).
func (t Totals) ShippingCostCents() int64 {
	return t.ShippingCost.Mul(decimal.NewFromInt(100)).IntPart()
}
