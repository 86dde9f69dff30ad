// Package session holds the storefront's client-side session model: the
// SessionState aggregate, the closed set of Actions that mutate it, the pure
// reducer that applies them, and the Store container that serialises
// dispatches and notifies subscribers.
//
// This package contains:
//   - Model types: State, Cart, CartItem, UserRecord, ShippingAddress, Money
//   - Actions: SwitchMode, UserSignin, UserSignout, CartAddItem, ...
//   - Reduce: the only function that computes a next State
//   - Store: the dependency-injected state container
package session

import (
	"errors"
	"fmt"
	"strings"
)

// Mode is the UI colour mode.
type Mode string

const (
	ModeLight Mode = "light"
	ModeDark  Mode = "dark"
)

// String returns the string representation of the Mode.
func (m Mode) String() string {
	return string(m)
}

// Valid reports whether m is one of the known modes.
func (m Mode) Valid() bool {
	return m == ModeLight || m == ModeDark
}

// Toggle returns the opposite mode. Unknown modes toggle to dark, matching
// the light default.
func (m Mode) Toggle() Mode {
	if m == ModeDark {
		return ModeLight
	}
	return ModeDark
}

// ParseMode parses "light" or "dark" (case-insensitive).
func ParseMode(s string) (Mode, error) {
	m := Mode(strings.ToLower(strings.TrimSpace(s)))
	if !m.Valid() {
		return "", fmt.Errorf("session: unknown mode %q", s)
	}
	return m, nil
}

// UserRecord is the authenticated user returned by sign-in or sign-up.
// Token is an opaque credential attached to authenticated requests.
type UserRecord struct {
	ID      string `json:"_id"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	Token   string `json:"token"`
	IsAdmin bool   `json:"isAdmin"`
}

// Validate reports whether the record can represent a signed-in user.
func (u UserRecord) Validate() error {
	var errs []error
	if strings.TrimSpace(u.ID) == "" {
		errs = append(errs, errors.New("user id is required"))
	}
	if strings.TrimSpace(u.Email) == "" {
		errs = append(errs, errors.New("user email is required"))
	}
	if strings.TrimSpace(u.Token) == "" {
		errs = append(errs, errors.New("user token is required"))
	}
	return errors.Join(errs...)
}

// CartItem is one product line in the cart. CountInStock is the stock
// snapshot taken when the item was last added.
type CartItem struct {
	ID           string `json:"_id"`
	Slug         string `json:"slug"`
	Name         string `json:"name"`
	Image        string `json:"image"`
	Price        Money  `json:"price"`
	CountInStock int    `json:"countInStock"`
	Quantity     int    `json:"quantity"`
}

// Validate checks the item's own invariants: a product id, a non-negative
// price and stock, and 1 <= quantity <= countInStock.
func (i CartItem) Validate() error {
	if strings.TrimSpace(i.ID) == "" {
		return errors.New("cart item id is required")
	}
	if i.Price < 0 {
		return fmt.Errorf("cart item %s: negative price", i.ID)
	}
	if i.CountInStock < 0 {
		return fmt.Errorf("cart item %s: negative stock", i.ID)
	}
	if i.Quantity < 1 {
		return fmt.Errorf("cart item %s: quantity %d is below 1", i.ID, i.Quantity)
	}
	if i.Quantity > i.CountInStock {
		return fmt.Errorf("cart item %s: quantity %d exceeds stock %d", i.ID, i.Quantity, i.CountInStock)
	}
	return nil
}

// LineTotal is price times quantity.
func (i CartItem) LineTotal() Money {
	return i.Price.Mul(i.Quantity)
}

// Location is an optional geolocation attached to a shipping address.
type Location struct {
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
	Address string  `json:"address,omitempty"`
	Name    string  `json:"name,omitempty"`
}

// ShippingAddress is saved by the shipping step of checkout.
type ShippingAddress struct {
	FullName   string    `json:"fullName"`
	Address    string    `json:"address"`
	City       string    `json:"city"`
	PostalCode string    `json:"postalCode"`
	Country    string    `json:"country"`
	Location   *Location `json:"location,omitempty"`
}

// Validate requires every text field to be non-blank.
func (a ShippingAddress) Validate() error {
	fields := []struct {
		name  string
		value string
	}{
		{"fullName", a.FullName},
		{"address", a.Address},
		{"city", a.City},
		{"postalCode", a.PostalCode},
		{"country", a.Country},
	}
	var errs []error
	for _, f := range fields {
		if strings.TrimSpace(f.value) == "" {
			errs = append(errs, &ValidationError{Field: f.name, Message: fmt.Sprintf("%s is required", f.name)})
		}
	}
	return errors.Join(errs...)
}

func (a ShippingAddress) clone() ShippingAddress {
	out := a
	if a.Location != nil {
		loc := *a.Location
		out.Location = &loc
	}
	return out
}

// PaymentMethod identifies the payment option chosen at checkout.
type PaymentMethod string

const (
	PaymentPayPal         PaymentMethod = "PayPal"
	PaymentStripe         PaymentMethod = "Stripe"
	PaymentCashOnDelivery PaymentMethod = "CashOnDelivery"
)

// PaymentMethods lists the known payment methods in display order.
func PaymentMethods() []PaymentMethod {
	return []PaymentMethod{PaymentPayPal, PaymentStripe, PaymentCashOnDelivery}
}

// Known reports whether m is in PaymentMethods.
func (m PaymentMethod) Known() bool {
	for _, known := range PaymentMethods() {
		if m == known {
			return true
		}
	}
	return false
}

// String returns the string representation of the PaymentMethod.
func (m PaymentMethod) String() string {
	return string(m)
}

// Cart is the ordered item list plus the checkout selections.
type Cart struct {
	CartItems       []CartItem       `json:"cartItems"`
	ShippingAddress *ShippingAddress `json:"shippingAddress,omitempty"`
	PaymentMethod   PaymentMethod    `json:"paymentMethod,omitempty"`
}

// State is the SessionState aggregate.
type State struct {
	Mode     Mode        `json:"mode"`
	UserInfo *UserRecord `json:"userInfo,omitempty"`
	Cart     Cart        `json:"cart"`
}

// DefaultState returns the signed-out, empty-cart state for mode. An
// invalid mode falls back to light.
func DefaultState(mode Mode) State {
	if !mode.Valid() {
		mode = ModeLight
	}
	return State{
		Mode: mode,
		Cart: Cart{CartItems: []CartItem{}},
	}
}

// Authenticated reports whether a user is signed in.
func (s State) Authenticated() bool {
	return s.UserInfo != nil
}

// Clone returns a deep copy that shares no slices or pointers with s.
func (s State) Clone() State {
	out := s
	if s.UserInfo != nil {
		u := *s.UserInfo
		out.UserInfo = &u
	}
	out.Cart = s.Cart.clone()
	return out
}

func (c Cart) clone() Cart {
	out := c
	out.CartItems = make([]CartItem, len(c.CartItems))
	copy(out.CartItems, c.CartItems)
	if c.ShippingAddress != nil {
		addr := c.ShippingAddress.clone()
		out.ShippingAddress = &addr
	}
	return out
}

// Equal reports whether two states hold the same values.
func (s State) Equal(other State) bool {
	if s.Mode != other.Mode {
		return false
	}
	if !equalUser(s.UserInfo, other.UserInfo) {
		return false
	}
	return s.Cart.Equal(other.Cart)
}

// Equal reports whether two carts hold the same items and selections.
func (c Cart) Equal(other Cart) bool {
	if c.PaymentMethod != other.PaymentMethod {
		return false
	}
	if !equalAddress(c.ShippingAddress, other.ShippingAddress) {
		return false
	}
	return equalItems(c.CartItems, other.CartItems)
}

func equalUser(a, b *UserRecord) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// EqualAddress reports whether two optional addresses hold the same values.
func EqualAddress(a, b *ShippingAddress) bool {
	return equalAddress(a, b)
}

func equalAddress(a, b *ShippingAddress) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.FullName != b.FullName || a.Address != b.Address || a.City != b.City ||
		a.PostalCode != b.PostalCode || a.Country != b.Country {
		return false
	}
	if a.Location == nil || b.Location == nil {
		return a.Location == b.Location
	}
	return *a.Location == *b.Location
}

// EqualItems reports whether two item sequences are identical in order
// and content.
func EqualItems(a, b []CartItem) bool {
	return equalItems(a, b)
}

func equalItems(a, b []CartItem) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
