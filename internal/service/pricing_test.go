package service

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/maribelle/backoffice/internal/domain"
)

func TestComputeTotals(t *testing.T) {
	tests := []struct {
		name         string
		itemTotals   []string
		shipping     string
		wantSubtotal string
		wantTotal    string
	}{
		{
			name:         "items plus shipping",
			itemTotals:   []string{"30.00", "15.00"},
			shipping:     "5.90",
			wantSubtotal: "45.00",
			wantTotal:    "50.90",
		},
		{
			name:         "free shipping",
			itemTotals:   []string{"12.50", "7.49"},
			shipping:     "0.00",
			wantSubtotal: "19.99",
			wantTotal:    "19.99",
		},
		{
			name:         "single item",
			itemTotals:   []string{"9.99"},
			shipping:     "4.90",
			wantSubtotal: "9.99",
			wantTotal:    "14.89",
		},
		{
			name:         "no items",
			itemTotals:   nil,
			shipping:     "5.90",
			wantSubtotal: "0.00",
			wantTotal:    "5.90",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			items := make([]domain.DeliveryBatchItem, 0, len(tt.itemTotals))
			for _, total := range tt.itemTotals {
				items = append(items, domain.DeliveryBatchItem{
					TotalPrice: decimal.RequireFromString(total),
				})
			}

			totals := ComputeTotals(items, decimal.RequireFromString(tt.shipping))

			if got := totals.Subtotal.StringFixed(2); got != tt.wantSubtotal {
				t.Errorf("subtotal = %s, want %s", got, tt.wantSubtotal)
			}
			if got := totals.Total.StringFixed(2); got != tt.wantTotal {
				t.Errorf("total = %s, want %s", got, tt.wantTotal)
			}
		})
	}
}

func TestShippingCostCents(t *testing.T) {
	totals := Totals{ShippingCost: decimal.RequireFromString("5.90")}
	if got := totals.ShippingCostCents(); got != 590 {
		t.Errorf("cents = %d, want 590", got)
	}

	totals = Totals{ShippingCost: decimal.RequireFromString("0.01")}
	if got := totals.ShippingCostCents(); got != 1 {
		t.Errorf("cents = %d, want 1", got)
	}
}
