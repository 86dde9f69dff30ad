package persist

import (
	"context"
	"log/slog"

	"github.com/mbshop/storefront/session"
)

// SliceReport describes how one persisted slice was hydrated.
type SliceReport struct {
	Key    string
	Status Status
	Err    error
}

// Report collects per-slice hydration outcomes.
type Report struct {
	Slices []SliceReport
}

// Issues returns the slices that fell back to defaults because of an error.
func (r Report) Issues() []SliceReport {
	var out []SliceReport
	for _, s := range r.Slices {
		if s.Status == StatusMalformed || s.Status == StatusUnavailable {
			out = append(out, s)
		}
	}
	return out
}

func reportOf[T any](l Loaded[T]) SliceReport {
	return SliceReport{Key: l.Key, Status: l.Status, Err: l.Err}
}

// Hydrate builds the startup state from kv. Mode comes from the caller's
// preference; each persisted slice loads on its own and resets to its
// default when missing, unreadable, or malformed. Hydration never fails.
func Hydrate(ctx context.Context, kv KV, mode session.Mode, logger *slog.Logger) (session.State, Report) {
	if logger == nil {
		logger = slog.Default()
	}
	state := session.DefaultState(mode)
	var report Report

	user := UserInfoCodec.Load(ctx, kv)
	report.Slices = append(report.Slices, reportOf(user))
	if user.OK() {
		u := user.Value
		state.UserInfo = &u
	}

	items := CartItemsCodec.Load(ctx, kv)
	report.Slices = append(report.Slices, reportOf(items))
	if items.OK() {
		state.Cart.CartItems = items.Value
	}

	addr := ShippingAddressCodec.Load(ctx, kv)
	report.Slices = append(report.Slices, reportOf(addr))
	if addr.OK() {
		a := addr.Value
		state.Cart.ShippingAddress = &a
	}

	method := PaymentMethodCodec.Load(ctx, kv)
	report.Slices = append(report.Slices, reportOf(method))
	if method.OK() {
		state.Cart.PaymentMethod = method.Value
	}

	for _, issue := range report.Issues() {
		logger.Warn("persisted slice reset to default",
			"key", issue.Key,
			"status", issue.Status.String(),
			"error", issue.Err,
		)
	}
	return state, report
}
