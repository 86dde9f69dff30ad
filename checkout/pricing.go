package checkout

import (
	"errors"

	"github.com/mbshop/storefront/session"
)

// PricingRules parameterise the order summary.
type PricingRules struct {
	// FreeShippingOver waives shipping when the items price is strictly
	// greater.
	FreeShippingOver session.Money

	// ShippingFee is charged otherwise.
	ShippingFee session.Money

	// TaxBasisPoints is the tax rate on the items price (1500 = 15%).
	TaxBasisPoints int
}

// DefaultPricingRules returns free shipping above 100.00, a 10.00 fee, and
// 15% tax.
func DefaultPricingRules() PricingRules {
	return PricingRules{
		FreeShippingOver: session.Cents(10000),
		ShippingFee:      session.Cents(1000),
		TaxBasisPoints:   1500,
	}
}

// Validate rejects negative amounts and rates.
func (r PricingRules) Validate() error {
	var errs []error
	if r.FreeShippingOver < 0 {
		errs = append(errs, errors.New("free shipping threshold must not be negative"))
	}
	if r.ShippingFee < 0 {
		errs = append(errs, errors.New("shipping fee must not be negative"))
	}
	if r.TaxBasisPoints < 0 {
		errs = append(errs, errors.New("tax rate must not be negative"))
	}
	return errors.Join(errs...)
}

// Summary is the priced order.
type Summary struct {
	ItemsPrice    session.Money `json:"itemsPrice"`
	ShippingPrice session.Money `json:"shippingPrice"`
	TaxPrice      session.Money `json:"taxPrice"`
	TotalPrice    session.Money `json:"totalPrice"`
}

// Price computes the order summary for cart.
func Price(cart session.Cart, rules PricingRules) Summary {
	items := cart.Subtotal()
	shipping := rules.ShippingFee
	if items > rules.FreeShippingOver {
		shipping = 0
	}
	tax := items.MulBasisPoints(rules.TaxBasisPoints)
	return Summary{
		ItemsPrice:    items,
		ShippingPrice: shipping,
		TaxPrice:      tax,
		TotalPrice:    items + shipping + tax,
	}
}
