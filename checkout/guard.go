package checkout

import (
	"net/url"

	"github.com/mbshop/storefront/nav"
	"github.com/mbshop/storefront/session"
)

// Decision is the outcome of guarding a step.
type Decision struct {
	// Allowed is true when every gate of the step is met.
	Allowed bool

	// Unmet is the earliest step whose requirement is missing.
	Unmet Step

	// Redirect is Unmet's path with ?redirect=<requested path>.
	Redirect string
}

type gate struct {
	unmet Step
	met   func(session.State) bool
}

var (
	gateCart     = gate{StepCart, func(s session.State) bool { return !s.Cart.IsEmpty() }}
	gateAuth     = gate{StepSignin, func(s session.State) bool { return s.Authenticated() }}
	gateShipping = gate{StepShipping, func(s session.State) bool { return s.Cart.ShippingAddress != nil }}
	gatePayment  = gate{StepPayment, func(s session.State) bool { return s.Cart.PaymentMethod != "" }}
)

// gates are cumulative and listed earliest first.
func gatesFor(step Step) []gate {
	switch step {
	case StepShipping:
		return []gate{gateCart, gateAuth}
	case StepPayment:
		return []gate{gateCart, gateAuth, gateShipping}
	case StepPlaceOrder:
		return []gate{gateCart, gateAuth, gateShipping, gatePayment}
	case StepConfirmed:
		return []gate{gateAuth}
	default:
		return nil
	}
}

// Guard decides whether state may enter step. Guard is pure.
func Guard(state session.State, step Step) Decision {
	return guard(state, step, step.Path())
}

func guard(state session.State, step Step, requested string) Decision {
	for _, g := range gatesFor(step) {
		if !g.met(state) {
			return Decision{
				Unmet:    g.unmet,
				Redirect: withRedirect(g.unmet.Path(), requested),
			}
		}
	}
	return Decision{Allowed: true, Unmet: step}
}

// Resolve returns where a visit to loc actually lands. Guarded steps
// redirect to their earliest unmet step; /signin while signed in follows
// the redirect parameter (default "/"), which is itself resolved. Other
// locations pass through.
func Resolve(state session.State, loc nav.Location) string {
	if loc.Path == PathSignin && state.Authenticated() {
		target, err := nav.ParseLocation(SafeRedirect(loc.Param("redirect"), PathHome))
		if err != nil || target.Path == PathSignin {
			return PathHome
		}
		return Resolve(state, target)
	}
	step, ok := StepForPath(loc.Path)
	if !ok {
		return loc.String()
	}
	if d := guard(state, step, loc.Path); !d.Allowed {
		return d.Redirect
	}
	return loc.String()
}

// SafeRedirect returns target when it is a local path, else fallback.
func SafeRedirect(target, fallback string) string {
	if target != "" && nav.IsLocal(target) {
		return target
	}
	return fallback
}

func withRedirect(path, requested string) string {
	return path + "?" + nav.EncodeQuery(url.Values{"redirect": {requested}})
}
