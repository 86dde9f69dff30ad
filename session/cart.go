package session

// Subtotal is Σ(price × quantity) over the current items. It is derived on
// every call and never stored.
func (c Cart) Subtotal() Money {
	var total Money
	for _, item := range c.CartItems {
		total += item.LineTotal()
	}
	return total
}

// ItemCount is Σ quantity, the badge count shown in navigation.
func (c Cart) ItemCount() int {
	count := 0
	for _, item := range c.CartItems {
		count += item.Quantity
	}
	return count
}

// IsEmpty reports whether the cart has no items.
func (c Cart) IsEmpty() bool {
	return len(c.CartItems) == 0
}

// Find returns the item with the given product id.
func (c Cart) Find(id string) (CartItem, bool) {
	for _, item := range c.CartItems {
		if item.ID == id {
			return item, true
		}
	}
	return CartItem{}, false
}

// CheckQuantity validates a requested quantity for item before an add or
// update is dispatched. Decrementing below 1 is rejected; removal is a
// separate action.
func CheckQuantity(item CartItem, requested int) error {
	if requested < 1 {
		return NewValidationError("quantity", MsgMinimumQuantity)
	}
	if requested > item.CountInStock {
		return NewValidationError("quantity", MsgOutOfStock)
	}
	return nil
}

// WithQuantity returns a copy of item with quantity set.
func (i CartItem) WithQuantity(quantity int) CartItem {
	i.Quantity = quantity
	return i
}

func upsertItem(items []CartItem, item CartItem) []CartItem {
	out := make([]CartItem, 0, len(items)+1)
	replaced := false
	for _, existing := range items {
		if existing.ID == item.ID {
			if !replaced {
				out = append(out, item)
				replaced = true
			}
			continue
		}
		out = append(out, existing)
	}
	if !replaced {
		out = append(out, item)
	}
	return out
}

func removeItem(items []CartItem, id string) []CartItem {
	out := make([]CartItem, 0, len(items))
	for _, existing := range items {
		if existing.ID != id {
			out = append(out, existing)
		}
	}
	return out
}
