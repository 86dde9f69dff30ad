package checkout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mbshop/storefront/api"
	"github.com/mbshop/storefront/nav"
	"github.com/mbshop/storefront/notify"
	"github.com/mbshop/storefront/session"
)

// Messages shown by Flow operations.
const (
	MsgItemAdded      = "Item added to the cart"
	MsgItemNotInCart  = "Item is not in the cart."
	MsgRequiredField  = "Please fill in every field."
	MsgOrderPlaced    = "Order placed"
	MsgInvalidProduct = "This product is unavailable."
	msgRemovedFmt     = "%s is out of stock and was removed from the cart."
	msgClampedFmt     = "Only %d of %s left in stock. Quantity updated."
	msgRefreshFailFmt = "Could not refresh %s: %s"
)

// ErrCheckoutIncomplete is returned by PlaceOrder when an earlier step is
// missing. The flow has already navigated to that step.
var ErrCheckoutIncomplete = errors.New("checkout: checkout is incomplete")

// FlowConfig wires a Flow to its collaborators.
type FlowConfig struct {
	Store     *session.Store
	API       api.Client
	Navigator nav.Navigator
	Locator   nav.Locator
	Notifier  notify.Notifier

	// Pricing defaults to DefaultPricingRules().
	Pricing *PricingRules

	Logger *slog.Logger
}

// Flow runs user operations: it checks preconditions, calls the backend,
// dispatches actions, notifies, and navigates. Methods are safe to call
// from separate goroutines; the store serialises their dispatches.
type Flow struct {
	store    *session.Store
	api      api.Client
	nav      nav.Navigator
	loc      nav.Locator
	notifier notify.Notifier
	pricing  PricingRules
	logger   *slog.Logger
}

// NewFlow creates a Flow. Store, API, Navigator and Locator are required.
func NewFlow(cfg FlowConfig) (*Flow, error) {
	if cfg.Store == nil {
		return nil, errors.New("checkout: store is required")
	}
	if cfg.API == nil {
		return nil, errors.New("checkout: api client is required")
	}
	if cfg.Navigator == nil || cfg.Locator == nil {
		return nil, errors.New("checkout: navigator and locator are required")
	}
	if cfg.Notifier == nil {
		cfg.Notifier = notify.NewLogger(cfg.Logger)
	}
	pricing := DefaultPricingRules()
	if cfg.Pricing != nil {
		if err := cfg.Pricing.Validate(); err != nil {
			return nil, fmt.Errorf("checkout: pricing: %w", err)
		}
		pricing = *cfg.Pricing
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Flow{
		store:    cfg.Store,
		api:      cfg.API,
		nav:      cfg.Navigator,
		loc:      cfg.Locator,
		notifier: cfg.Notifier,
		pricing:  pricing,
		logger:   cfg.Logger,
	}, nil
}

// Pricing returns the rules used by PlaceOrder.
func (f *Flow) Pricing() PricingRules {
	return f.pricing
}

// Visit resolves path against the checkout gates and navigates to the
// result, which it returns.
func (f *Flow) Visit(path string) string {
	loc, err := nav.ParseLocation(path)
	if err != nil {
		loc = nav.Location{Path: PathHome}
	}
	target := Resolve(f.store.State(), loc)
	f.nav.Navigate(target)
	return target
}

// AddToCart fetches the product by slug and adds one more unit, checking
// against the freshly fetched stock.
func (f *Flow) AddToCart(ctx context.Context, slug string) error {
	product, err := f.api.FetchProduct(ctx, slug)
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err != nil {
		f.notifier.Notify(api.Message(err), notify.SeverityError)
		return err
	}

	quantity := 1
	if existing, ok := f.store.State().Cart.Find(product.ID); ok {
		quantity = existing.Quantity + 1
	}
	item := product.CartItem(quantity)
	if err := session.CheckQuantity(item, quantity); err != nil {
		return f.warn(err)
	}
	if err := item.Validate(); err != nil {
		f.logger.Warn("rejected product record", "slug", slug, "error", err)
		return f.warn(session.NewValidationError("product", MsgInvalidProduct))
	}

	f.store.Dispatch(session.CartAddItem{Item: item})
	f.notifier.Notify(MsgItemAdded, notify.SeveritySuccess)
	f.nav.Navigate(PathCart)
	return nil
}

// UpdateQuantity sets an item's quantity after the stock and minimum
// checks.
func (f *Flow) UpdateQuantity(id string, quantity int) error {
	item, ok := f.store.State().Cart.Find(id)
	if !ok {
		return f.warn(session.NewValidationError("id", MsgItemNotInCart))
	}
	if err := session.CheckQuantity(item, quantity); err != nil {
		return f.warn(err)
	}
	f.store.Dispatch(session.CartAddItem{Item: item.WithQuantity(quantity)})
	return nil
}

// Increment adds one unit of an item.
func (f *Flow) Increment(id string) error {
	item, ok := f.store.State().Cart.Find(id)
	if !ok {
		return f.warn(session.NewValidationError("id", MsgItemNotInCart))
	}
	return f.UpdateQuantity(id, item.Quantity+1)
}

// Decrement removes one unit of an item. It never goes below one.
func (f *Flow) Decrement(id string) error {
	item, ok := f.store.State().Cart.Find(id)
	if !ok {
		return f.warn(session.NewValidationError("id", MsgItemNotInCart))
	}
	return f.UpdateQuantity(id, item.Quantity-1)
}

// RemoveItem drops an item from the cart. Removing an absent item is a
// no-op.
func (f *Flow) RemoveItem(id string) {
	f.store.Dispatch(session.CartRemoveItem{Item: session.CartItem{ID: id}})
}

// ProceedToCheckout leaves the cart page for sign-in, which continues to
// shipping.
func (f *Flow) ProceedToCheckout() (string, error) {
	if f.store.State().Cart.IsEmpty() {
		return "", f.warn(session.NewValidationError("cart", session.MsgCartEmpty))
	}
	return f.Visit(PathSignin + "?redirect=" + PathShipping), nil
}

// Signin authenticates and continues to the current location's redirect.
func (f *Flow) Signin(ctx context.Context, email, password string) (string, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return "", f.warn(session.NewValidationError("credentials", MsgRequiredField))
	}
	user, err := f.api.Signin(ctx, api.SigninRequest{Email: email, Password: password})
	return f.completeSignin(ctx, user, err)
}

// Signup registers a new account and signs it in.
func (f *Flow) Signup(ctx context.Context, req api.SignupRequest) (string, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)
	if req.Name == "" || req.Email == "" || req.Password == "" {
		return "", f.warn(session.NewValidationError("signup", MsgRequiredField))
	}
	if req.Password != req.ConfirmPassword {
		return "", f.warn(session.NewValidationError("confirmPassword", session.MsgPasswordMismatch))
	}
	user, err := f.api.Signup(ctx, req)
	return f.completeSignin(ctx, user, err)
}

func (f *Flow) completeSignin(ctx context.Context, user session.UserRecord, err error) (string, error) {
	if ctx.Err() != nil {
		return "", ctx.Err()
	}
	if err != nil {
		f.notifier.Notify(api.Message(err), notify.SeverityError)
		return "", err
	}
	f.store.Dispatch(session.UserSignin{User: user})
	return f.Visit(f.redirect(PathHome)), nil
}

// Signout clears the session and returns to sign-in.
func (f *Flow) Signout() {
	f.store.Dispatch(session.UserSignout{})
	f.nav.Navigate(PathSignin)
}

// SaveShippingAddress records the shipping step and moves on to payment.
func (f *Flow) SaveShippingAddress(addr session.ShippingAddress) (string, error) {
	if err := addr.Validate(); err != nil {
		return "", f.warn(err)
	}
	f.store.Dispatch(session.SaveShippingAddress{Address: addr})
	return f.Visit(f.redirect(PathPayment)), nil
}

// SavePaymentMethod records the payment step and moves on to the order
// review.
func (f *Flow) SavePaymentMethod(method session.PaymentMethod) (string, error) {
	method = session.PaymentMethod(strings.TrimSpace(string(method)))
	if !method.Known() {
		return "", f.warn(session.NewValidationError("paymentMethod", session.MsgUnknownPayment))
	}
	f.store.Dispatch(session.SavePaymentMethod{Method: method})
	return f.Visit(f.redirect(PathPlaceOrder)), nil
}

// PlaceOrder submits the cart. On success the cart items are cleared and
// the flow moves to the confirmation page; on failure the cart is left
// untouched.
func (f *Flow) PlaceOrder(ctx context.Context) (api.Order, error) {
	state := f.store.State()
	if d := Guard(state, StepPlaceOrder); !d.Allowed {
		f.nav.Navigate(d.Redirect)
		return api.Order{}, ErrCheckoutIncomplete
	}

	summary := Price(state.Cart, f.pricing)
	req := api.PlaceOrderRequest{
		OrderItems:      state.Cart.CartItems,
		ShippingAddress: *state.Cart.ShippingAddress,
		PaymentMethod:   state.Cart.PaymentMethod,
		ItemsPrice:      summary.ItemsPrice,
		ShippingPrice:   summary.ShippingPrice,
		TaxPrice:        summary.TaxPrice,
		TotalPrice:      summary.TotalPrice,
	}

	order, err := f.api.PlaceOrder(ctx, state.UserInfo.Token, req)
	if ctx.Err() != nil {
		return api.Order{}, ctx.Err()
	}
	if err != nil {
		f.notifier.Notify(api.Message(err), notify.SeverityError)
		return api.Order{}, err
	}

	f.store.Dispatch(session.CartClearItems{})
	f.logger.Info("order placed", "order_id", order.ID, "total", summary.TotalPrice.String())
	f.notifier.Notify(MsgOrderPlaced, notify.SeveritySuccess)
	f.nav.Navigate(OrderPath(order.ID))
	return order, nil
}

// RefreshResult summarises a RefreshCart run.
type RefreshResult struct {
	Checked int
	Updated []string
	Clamped []string
	Removed []string
	Failed  []string
}

// RefreshCart re-fetches every cart product and applies its current price
// and stock. Quantities above the new stock are clamped; items that went
// out of stock are removed. A fetch failure skips that item.
func (f *Flow) RefreshCart(ctx context.Context) (RefreshResult, error) {
	var result RefreshResult
	var errs []error

	for _, item := range f.store.State().Cart.CartItems {
		if item.Slug == "" {
			continue
		}
		product, err := f.api.FetchProduct(ctx, item.Slug)
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		result.Checked++
		if err != nil {
			result.Failed = append(result.Failed, item.ID)
			errs = append(errs, fmt.Errorf("refresh %s: %w", item.ID, err))
			f.logger.Warn("cart refresh failed", "item_id", item.ID, "error", err)
			f.notifier.Notify(fmt.Sprintf(msgRefreshFailFmt, item.Name, api.Message(err)), notify.SeverityWarning)
			continue
		}
		f.applyRefresh(item.ID, product, &result)
	}
	return result, errors.Join(errs...)
}

func (f *Flow) applyRefresh(id string, product api.Product, result *RefreshResult) {
	// Re-read: the item may have changed or gone while the fetch ran.
	current, ok := f.store.State().Cart.Find(id)
	if !ok {
		return
	}
	if product.ID != "" && product.ID != id {
		f.logger.Warn("cart refresh returned a different product", "item_id", id, "product_id", product.ID)
		return
	}
	product.ID = id
	if product.Slug == "" {
		product.Slug = current.Slug
	}

	switch {
	case product.CountInStock <= 0:
		f.store.Dispatch(session.CartRemoveItem{Item: current})
		result.Removed = append(result.Removed, id)
		f.notifier.Notify(fmt.Sprintf(msgRemovedFmt, current.Name), notify.SeverityWarning)
	case current.Quantity > product.CountInStock:
		f.store.Dispatch(session.CartAddItem{Item: product.CartItem(product.CountInStock)})
		result.Clamped = append(result.Clamped, id)
		f.notifier.Notify(fmt.Sprintf(msgClampedFmt, product.CountInStock, current.Name), notify.SeverityWarning)
	default:
		if e := f.store.Dispatch(session.CartAddItem{Item: product.CartItem(current.Quantity)}); e.Changed() {
			result.Updated = append(result.Updated, id)
		}
	}
}

func (f *Flow) redirect(fallback string) string {
	return SafeRedirect(f.loc.Current().Param("redirect"), fallback)
}

// warn shows a validation failure and returns it.
func (f *Flow) warn(err error) error {
	var verr *session.ValidationError
	msg := err.Error()
	if errors.As(err, &verr) {
		msg = verr.Message
	}
	f.notifier.Notify(msg, notify.SeverityWarning)
	return err
}
