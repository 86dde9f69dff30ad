package checkout

import (
	"testing"

	"github.com/mbshop/storefront/session"
)

func TestPrice(t *testing.T) {
	tests := []struct {
		name  string
		items []session.CartItem
		want  Summary
	}{
		{
			name:  "below threshold pays shipping",
			items: []session.CartItem{item("p1", 1000, 3, 5)},
			want:  Summary{ItemsPrice: 3000, ShippingPrice: 1000, TaxPrice: 450, TotalPrice: 4450},
		},
		{
			name:  "exactly at threshold still pays",
			items: []session.CartItem{item("p1", 5000, 2, 5)},
			want:  Summary{ItemsPrice: 10000, ShippingPrice: 1000, TaxPrice: 1500, TotalPrice: 12500},
		},
		{
			name:  "above threshold ships free",
			items: []session.CartItem{item("p1", 10001, 1, 5)},
			want:  Summary{ItemsPrice: 10001, ShippingPrice: 0, TaxPrice: 1500, TotalPrice: 11501},
		},
		{
			name:  "tax rounds half up",
			items: []session.CartItem{item("p1", 10, 1, 1)},
			want:  Summary{ItemsPrice: 10, ShippingPrice: 1000, TaxPrice: 2, TotalPrice: 1012},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Price(session.Cart{CartItems: tt.items}, DefaultPricingRules())
			if got != tt.want {
				t.Errorf("Price = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestPricingRules_Validate(t *testing.T) {
	if err := DefaultPricingRules().Validate(); err != nil {
		t.Fatalf("default rules invalid: %v", err)
	}
	bad := PricingRules{FreeShippingOver: -1, ShippingFee: -1, TaxBasisPoints: -1}
	if err := bad.Validate(); err == nil {
		t.Fatal("expected error for negative rules")
	}
}
