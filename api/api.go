// Package api is the network collaborator: product, order, and user
// records served by the storefront backend.
//
// Client is the interface the checkout flow depends on; HTTPClient is the
// JSON-over-HTTP implementation used by the CLI.
package api

import (
	"context"

	"github.com/mbshop/storefront/session"
)

// Client is the backend as seen by the checkout flow.
type Client interface {
	Signin(ctx context.Context, req SigninRequest) (session.UserRecord, error)
	Signup(ctx context.Context, req SignupRequest) (session.UserRecord, error)
	FetchProduct(ctx context.Context, slug string) (Product, error)
	PlaceOrder(ctx context.Context, token string, req PlaceOrderRequest) (Order, error)
}

// SigninRequest is the sign-in form.
type SigninRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SignupRequest is the sign-up form. ConfirmPassword is checked locally and
// never sent.
type SignupRequest struct {
	Name            string `json:"name"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"-"`
}

// Product is a catalogue record.
type Product struct {
	ID           string        `json:"_id"`
	Name         string        `json:"name"`
	Slug         string        `json:"slug"`
	Image        string        `json:"image"`
	Brand        string        `json:"brand,omitempty"`
	Category     string        `json:"category,omitempty"`
	Description  string        `json:"description,omitempty"`
	Price        session.Money `json:"price"`
	CountInStock int           `json:"countInStock"`
	Rating       float64       `json:"rating,omitempty"`
	NumReviews   int           `json:"numReviews,omitempty"`
}

// CartItem snapshots p as a cart line with quantity.
func (p Product) CartItem(quantity int) session.CartItem {
	return session.CartItem{
		ID:           p.ID,
		Slug:         p.Slug,
		Name:         p.Name,
		Image:        p.Image,
		Price:        p.Price,
		CountInStock: p.CountInStock,
		Quantity:     quantity,
	}
}

// PlaceOrderRequest is the order submitted at the end of checkout.
type PlaceOrderRequest struct {
	OrderItems      []session.CartItem      `json:"orderItems"`
	ShippingAddress session.ShippingAddress `json:"shippingAddress"`
	PaymentMethod   session.PaymentMethod   `json:"paymentMethod"`
	ItemsPrice      session.Money           `json:"itemsPrice"`
	ShippingPrice   session.Money           `json:"shippingPrice"`
	TaxPrice        session.Money           `json:"taxPrice"`
	TotalPrice      session.Money           `json:"totalPrice"`
}

// Order is a created order.
type Order struct {
	ID         string        `json:"_id"`
	TotalPrice session.Money `json:"totalPrice"`
	IsPaid     bool          `json:"isPaid"`
}
