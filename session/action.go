package session

// ActionKind names an Action variant. The values match the wire names used
// by the action journal.
type ActionKind string

const (
	ActionSwitchMode          ActionKind = "SWITCH_MODE"
	ActionUserSignin          ActionKind = "USER_SIGNIN"
	ActionUserSignout         ActionKind = "USER_SIGNOUT"
	ActionCartAddItem         ActionKind = "CART_ADD_ITEM"
	ActionCartRemoveItem      ActionKind = "CART_REMOVE_ITEM"
	ActionCartClearItems      ActionKind = "CART_CLEAR_ITEMS"
	ActionSaveShippingAddress ActionKind = "SAVE_SHIPPING_ADDRESS"
	ActionSavePaymentMethod   ActionKind = "SAVE_PAYMENT_METHOD"
)

// String returns the string representation of the ActionKind.
func (k ActionKind) String() string {
	return string(k)
}

// Action is a discrete intent to change State. The set of variants is
// closed: only types in this package implement it.
type Action interface {
	Kind() ActionKind
	isAction()
}

// SwitchMode toggles between light and dark mode.
type SwitchMode struct{}

// UserSignin attaches the signed-in user.
type UserSignin struct {
	User UserRecord
}

// UserSignout resets the session to its defaults.
type UserSignout struct{}

// CartAddItem inserts Item, or replaces the item with the same product id.
type CartAddItem struct {
	Item CartItem
}

// CartRemoveItem removes the item whose product id matches Item.ID.
type CartRemoveItem struct {
	Item CartItem
}

// CartClearItems empties the item list and keeps address and payment.
type CartClearItems struct{}

// SaveShippingAddress records the shipping step.
type SaveShippingAddress struct {
	Address ShippingAddress
}

// SavePaymentMethod records the payment step.
type SavePaymentMethod struct {
	Method PaymentMethod
}

func (SwitchMode) Kind() ActionKind          { return ActionSwitchMode }
func (UserSignin) Kind() ActionKind          { return ActionUserSignin }
func (UserSignout) Kind() ActionKind         { return ActionUserSignout }
func (CartAddItem) Kind() ActionKind         { return ActionCartAddItem }
func (CartRemoveItem) Kind() ActionKind      { return ActionCartRemoveItem }
func (CartClearItems) Kind() ActionKind      { return ActionCartClearItems }
func (SaveShippingAddress) Kind() ActionKind { return ActionSaveShippingAddress }
func (SavePaymentMethod) Kind() ActionKind   { return ActionSavePaymentMethod }

func (SwitchMode) isAction()          {}
func (UserSignin) isAction()          {}
func (UserSignout) isAction()         {}
func (CartAddItem) isAction()         {}
func (CartRemoveItem) isAction()      {}
func (CartClearItems) isAction()      {}
func (SaveShippingAddress) isAction() {}
func (SavePaymentMethod) isAction()   {}

// KindOf returns the kind of a, or "" for nil.
func KindOf(a Action) ActionKind {
	if a == nil {
		return ""
	}
	return a.Kind()
}
