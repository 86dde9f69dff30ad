package persist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mbshop/storefront/session"
)

// Stable Persistent Store keys for the durable session slices.
const (
	KeyUserInfo        = "userInfo"
	KeyCartItems       = "cartItems"
	KeyShippingAddress = "shippingAddress"
	KeyPaymentMethod   = "paymentMethod"
)

// SessionKeys lists the keys purged on sign-out.
func SessionKeys() []string {
	return []string{KeyUserInfo, KeyCartItems, KeyShippingAddress, KeyPaymentMethod}
}

// Status is the outcome of loading one persisted slice.
type Status int

const (
	// StatusMissing means the key is absent.
	StatusMissing Status = iota
	// StatusOK means the value decoded and validated.
	StatusOK
	// StatusMalformed means the stored value failed to decode or validate.
	StatusMalformed
	// StatusUnavailable means the store could not be read.
	StatusUnavailable
)

func (s Status) String() string {
	switch s {
	case StatusMissing:
		return "missing"
	case StatusOK:
		return "ok"
	case StatusMalformed:
		return "malformed"
	case StatusUnavailable:
		return "unavailable"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Loaded is the tagged result of Codec.Load. Value is only meaningful when
// Status is StatusOK.
type Loaded[T any] struct {
	Key    string
	Value  T
	Status Status
	Err    error
}

// OK reports whether the value was loaded.
func (l Loaded[T]) OK() bool {
	return l.Status == StatusOK
}

// Codec serialises one persisted entity under a fixed key.
type Codec[T any] struct {
	Key    string
	Encode func(T) (string, error)
	Decode func(string) (T, error)
}

// Load reads and decodes the entity. It never returns an error directly;
// failures are reported through the Loaded status.
func (c Codec[T]) Load(ctx context.Context, kv KV) Loaded[T] {
	out := Loaded[T]{Key: c.Key}
	raw, ok, err := kv.Get(ctx, c.Key)
	if err != nil {
		out.Status = StatusUnavailable
		out.Err = &Error{Op: "get", Key: c.Key, Err: err}
		return out
	}
	if !ok {
		out.Status = StatusMissing
		return out
	}
	value, err := c.Decode(raw)
	if err != nil {
		out.Status = StatusMalformed
		out.Err = &Error{Op: "decode", Key: c.Key, Err: err}
		return out
	}
	out.Value = value
	out.Status = StatusOK
	return out
}

// Save encodes value and writes it.
func (c Codec[T]) Save(ctx context.Context, kv KV, value T) error {
	raw, err := c.Encode(value)
	if err != nil {
		return &Error{Op: "encode", Key: c.Key, Err: err}
	}
	if err := kv.Set(ctx, c.Key, raw); err != nil {
		return &Error{Op: "set", Key: c.Key, Err: err}
	}
	return nil
}

func jsonCodec[T any](key string, validate func(T) error) Codec[T] {
	return Codec[T]{
		Key: key,
		Encode: func(v T) (string, error) {
			raw, err := json.Marshal(v)
			if err != nil {
				return "", err
			}
			return string(raw), nil
		},
		Decode: func(raw string) (T, error) {
			var v T
			if err := json.Unmarshal([]byte(raw), &v); err != nil {
				return v, err
			}
			if validate != nil {
				if err := validate(v); err != nil {
					var zero T
					return zero, err
				}
			}
			return v, nil
		},
	}
}

// UserInfoCodec persists the signed-in user.
var UserInfoCodec = jsonCodec(KeyUserInfo, func(u session.UserRecord) error {
	return u.Validate()
})

// CartItemsCodec persists the cart item list. A stored list with an invalid
// item or a duplicate product id is malformed as a whole.
var CartItemsCodec = Codec[[]session.CartItem]{
	Key: KeyCartItems,
	Encode: func(items []session.CartItem) (string, error) {
		if items == nil {
			items = []session.CartItem{}
		}
		raw, err := json.Marshal(items)
		if err != nil {
			return "", err
		}
		return string(raw), nil
	},
	Decode: func(raw string) ([]session.CartItem, error) {
		var items []session.CartItem
		if err := json.Unmarshal([]byte(raw), &items); err != nil {
			return nil, err
		}
		if items == nil {
			return []session.CartItem{}, nil
		}
		seen := make(map[string]struct{}, len(items))
		for _, item := range items {
			if err := item.Validate(); err != nil {
				return nil, err
			}
			if _, dup := seen[item.ID]; dup {
				return nil, fmt.Errorf("duplicate cart item %s", item.ID)
			}
			seen[item.ID] = struct{}{}
		}
		return items, nil
	},
}

// ShippingAddressCodec persists the shipping step.
var ShippingAddressCodec = jsonCodec(KeyShippingAddress, func(a session.ShippingAddress) error {
	return a.Validate()
})

// PaymentMethodCodec persists the payment step as the bare identifier.
var PaymentMethodCodec = Codec[session.PaymentMethod]{
	Key: KeyPaymentMethod,
	Encode: func(m session.PaymentMethod) (string, error) {
		if strings.TrimSpace(string(m)) == "" {
			return "", errors.New("empty payment method")
		}
		return string(m), nil
	},
	Decode: func(raw string) (session.PaymentMethod, error) {
		m := session.PaymentMethod(strings.TrimSpace(raw))
		if !m.Known() {
			return "", fmt.Errorf("unknown payment method %q", raw)
		}
		return m, nil
	},
}
