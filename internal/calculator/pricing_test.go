package calculator

import (
	"testing"

	"github.com/mmynk/storefront/internal/models"
)

func TestCalculateTotals(t *testing.T) {
	tests := []struct {
		name         string
		items        []models.CartItem
		validateFunc func(t *testing.T, got Totals)
	}{
		{
			name: "two lines below free shipping threshold",
			items: []models.CartItem{
				{ID: "a", Price: 20.00, Qty: 2},
				{ID: "b", Price: 15.00, Qty: 1},
			},
			validateFunc: func(t *testing.T, got Totals) {
				want := Totals{ItemsSubtotal: 55.00, ShippingCost: 10.00, TaxAmount: 1.10, GrandTotal: 66.10}
				if got != want {
					t.Errorf("totals = %+v, want %+v", got, want)
				}
			},
		},
		{
			name: "subtotal above threshold ships free",
			items: []models.CartItem{
				{ID: "a", Price: 60.00, Qty: 2},
			},
			validateFunc: func(t *testing.T, got Totals) {
				want := Totals{ItemsSubtotal: 120.00, ShippingCost: 0, TaxAmount: 2.40, GrandTotal: 122.40}
				if got != want {
					t.Errorf("totals = %+v, want %+v", got, want)
				}
			},
		},
		{
			name: "subtotal of exactly 100 still pays shipping",
			items: []models.CartItem{
				{ID: "a", Price: 25.00, Qty: 4},
			},
			validateFunc: func(t *testing.T, got Totals) {
				if got.ShippingCost != 10.00 {
					t.Errorf("shipping = %v, want 10.00", got.ShippingCost)
				}
				if got.GrandTotal != 112.00 {
					t.Errorf("total = %v, want 112.00", got.GrandTotal)
				}
			},
		},
		{
			name: "one cent over threshold ships free",
			items: []models.CartItem{
				{ID: "a", Price: 100.01, Qty: 1},
			},
			validateFunc: func(t *testing.T, got Totals) {
				if got.ShippingCost != 0 {
					t.Errorf("shipping = %v, want 0", got.ShippingCost)
				}
			},
		},
		{
			name: "components are rounded before summing",
			items: []models.CartItem{
				{ID: "a", Price: 33.335, Qty: 1},
			},
			validateFunc: func(t *testing.T, got Totals) {
				// subtotal 33.335 -> 33.34, tax 0.02 * 33.34 = 0.6668 -> 0.67
				// total = 33.34 + 10 + 0.67 = 44.01 (a single rounding of 44.0017 gives 44.00)
				if got.ItemsSubtotal != 33.34 {
					t.Errorf("subtotal = %v, want 33.34", got.ItemsSubtotal)
				}
				if got.TaxAmount != 0.67 {
					t.Errorf("tax = %v, want 0.67", got.TaxAmount)
				}
				if got.GrandTotal != 44.01 {
					t.Errorf("total = %v, want 44.01", got.GrandTotal)
				}
			},
		},
		{
			name:  "empty cart still carries flat shipping",
			items: nil,
			validateFunc: func(t *testing.T, got Totals) {
				want := Totals{ItemsSubtotal: 0, ShippingCost: 10.00, TaxAmount: 0, GrandTotal: 10.00}
				if got != want {
					t.Errorf("totals = %+v, want %+v", got, want)
				}
			},
		},
		{
			name: "binary-unfriendly prices sum exactly",
			items: []models.CartItem{
				{ID: "a", Price: 0.10, Qty: 3},
				{ID: "b", Price: 0.20, Qty: 1},
			},
			validateFunc: func(t *testing.T, got Totals) {
				if got.ItemsSubtotal != 0.50 {
					t.Errorf("subtotal = %v, want 0.50", got.ItemsSubtotal)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.validateFunc(t, CalculateTotals(tt.items))
		})
	}
}

func TestCalculateTotalsSubtotalMatchesLines(t *testing.T) {
	items := []models.CartItem{
		{ID: "a", Price: 19.99, Qty: 3},
		{ID: "b", Price: 4.50, Qty: 2},
		{ID: "c", Price: 120.00, Qty: 1},
	}

	got := CalculateTotals(items)
	want := Round2(19.99*3 + 4.50*2 + 120.00)
	if got.ItemsSubtotal != want {
		t.Errorf("subtotal = %v, want %v", got.ItemsSubtotal, want)
	}
	if got.GrandTotal != Round2(got.ItemsSubtotal+got.ShippingCost+got.TaxAmount) {
		t.Errorf("total %v is not the sum of its rounded components", got.GrandTotal)
	}
}

func TestRound2(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{33.335, 33.34},
		{1.005, 1.01},
		{2.4, 2.40},
		{0.6668, 0.67},
		{10, 10},
	}
	for _, tt := range tests {
		if got := Round2(tt.in); got != tt.want {
			t.Errorf("Round2(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
