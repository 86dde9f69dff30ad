package session

import (
	"encoding/json"
	"fmt"
)

// MaskedToken replaces credentials in redacted actions.
const MaskedToken = "**********"

type actionEnvelope struct {
	Type    ActionKind      `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// MarshalAction encodes a as {"type": KIND, "payload": ...}.
func MarshalAction(a Action) ([]byte, error) {
	var payload any
	switch v := a.(type) {
	case SwitchMode, UserSignout, CartClearItems:
	case UserSignin:
		payload = v.User
	case CartAddItem:
		payload = v.Item
	case CartRemoveItem:
		payload = v.Item
	case SaveShippingAddress:
		payload = v.Address
	case SavePaymentMethod:
		payload = v.Method
	default:
		return nil, fmt.Errorf("session: cannot encode action %T", a)
	}

	env := actionEnvelope{Type: a.Kind()}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("session: encode %s payload: %w", a.Kind(), err)
		}
		env.Payload = raw
	}
	return json.Marshal(env)
}

// UnmarshalAction decodes the output of MarshalAction.
func UnmarshalAction(data []byte) (Action, error) {
	var env actionEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("session: decode action: %w", err)
	}

	decode := func(dst any) error {
		if len(env.Payload) == 0 {
			return fmt.Errorf("session: action %s has no payload", env.Type)
		}
		if err := json.Unmarshal(env.Payload, dst); err != nil {
			return fmt.Errorf("session: decode %s payload: %w", env.Type, err)
		}
		return nil
	}

	switch env.Type {
	case ActionSwitchMode:
		return SwitchMode{}, nil
	case ActionUserSignout:
		return UserSignout{}, nil
	case ActionCartClearItems:
		return CartClearItems{}, nil
	case ActionUserSignin:
		var a UserSignin
		if err := decode(&a.User); err != nil {
			return nil, err
		}
		return a, nil
	case ActionCartAddItem:
		var a CartAddItem
		if err := decode(&a.Item); err != nil {
			return nil, err
		}
		return a, nil
	case ActionCartRemoveItem:
		var a CartRemoveItem
		if err := decode(&a.Item); err != nil {
			return nil, err
		}
		return a, nil
	case ActionSaveShippingAddress:
		var a SaveShippingAddress
		if err := decode(&a.Address); err != nil {
			return nil, err
		}
		return a, nil
	case ActionSavePaymentMethod:
		var a SavePaymentMethod
		if err := decode(&a.Method); err != nil {
			return nil, err
		}
		return a, nil
	default:
		return nil, fmt.Errorf("session: unknown action type %q", env.Type)
	}
}

// RedactAction returns a with credentials masked, for logs and journals.
func RedactAction(a Action) Action {
	if signin, ok := a.(UserSignin); ok && signin.User.Token != "" {
		signin.User.Token = MaskedToken
		return signin
	}
	return a
}
