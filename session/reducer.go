package session

import "strings"

// Reduce computes the state that follows applying action to state. It is
// pure and total: it performs no I/O, never panics, and returns a value
// equal to state when the action's precondition fails or the action is
// not a known variant. The result shares no memory with state.
func Reduce(state State, action Action) State {
	next := state.Clone()

	switch a := action.(type) {
	case SwitchMode:
		next.Mode = state.Mode.Toggle()

	case UserSignin:
		if a.User.Validate() != nil {
			return next
		}
		user := a.User
		next.UserInfo = &user

	case UserSignout:
		return DefaultState(state.Mode)

	case CartAddItem:
		if a.Item.Validate() != nil {
			return next
		}
		next.Cart.CartItems = upsertItem(state.Cart.CartItems, a.Item)

	case CartRemoveItem:
		next.Cart.CartItems = removeItem(state.Cart.CartItems, a.Item.ID)

	case CartClearItems:
		next.Cart.CartItems = []CartItem{}

	case SaveShippingAddress:
		if a.Address.Validate() != nil {
			return next
		}
		addr := a.Address.clone()
		next.Cart.ShippingAddress = &addr

	case SavePaymentMethod:
		method := PaymentMethod(strings.TrimSpace(string(a.Method)))
		if method == "" {
			return next
		}
		next.Cart.PaymentMethod = method
	}

	return next
}

// Replay folds actions through Reduce starting from initial.
func Replay(initial State, actions []Action) State {
	state := initial.Clone()
	for _, a := range actions {
		state = Reduce(state, a)
	}
	return state
}
