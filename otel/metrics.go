package otel

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/mbshop/storefront/session"
)

// MetricsHandler translates session store events into OpenTelemetry
// metrics: dispatched and rejected actions, and the cart subtotal after each
// cart change.
type MetricsHandler struct {
	actions      metric.Int64Counter
	rejected     metric.Int64Counter
	cartSubtotal metric.Float64Histogram
	cartItems    metric.Int64Histogram
}

// NewMetricsHandler creates a MetricsHandler that uses the given meter to
// create its instruments.
func NewMetricsHandler(meter metric.Meter) (*MetricsHandler, error) {
	actions, err := meter.Int64Counter("storefront.actions",
		metric.WithDescription("Number of dispatched session actions"),
	)
	if err != nil {
		return nil, err
	}

	rejected, err := meter.Int64Counter("storefront.actions.rejected",
		metric.WithDescription("Number of actions whose precondition failed in the reducer"),
	)
	if err != nil {
		return nil, err
	}

	subtotal, err := meter.Float64Histogram("storefront.cart.subtotal",
		metric.WithDescription("Cart subtotal after a cart change"),
		metric.WithUnit("{currency}"),
	)
	if err != nil {
		return nil, err
	}

	items, err := meter.Int64Histogram("storefront.cart.items",
		metric.WithDescription("Cart badge count after a cart change"),
		metric.WithUnit("{item}"),
	)
	if err != nil {
		return nil, err
	}

	return &MetricsHandler{
		actions:      actions,
		rejected:     rejected,
		cartSubtotal: subtotal,
		cartItems:    items,
	}, nil
}

// Handle records metrics for one store event. It is a
// session.EventHandler.
func (h *MetricsHandler) Handle(e session.Event) {
	ctx := context.Background()
	kind := session.KindOf(e.Action)
	attrs := metric.WithAttributes(
		attribute.String("action", kind.String()),
		attribute.Bool("changed", e.Changed()),
	)
	h.actions.Add(ctx, 1, attrs)

	if !e.Changed() && hasPrecondition(kind) {
		h.rejected.Add(ctx, 1, metric.WithAttributes(attribute.String("action", kind.String())))
	}

	if e.Changed() && !session.EqualItems(e.Prev.Cart.CartItems, e.Next.Cart.CartItems) {
		cartAttrs := metric.WithAttributes(attribute.String("action", kind.String()))
		h.cartSubtotal.Record(ctx, float64(e.Next.Cart.Subtotal())/100, cartAttrs)
		h.cartItems.Record(ctx, int64(e.Next.Cart.ItemCount()), cartAttrs)
	}
}

// hasPrecondition reports whether an unchanged result for kind means the
// reducer rejected the action rather than it being a no-op.
func hasPrecondition(kind session.ActionKind) bool {
	switch kind {
	case session.ActionUserSignin, session.ActionCartAddItem,
		session.ActionSaveShippingAddress, session.ActionSavePaymentMethod:
		return true
	default:
		return false
	}
}
