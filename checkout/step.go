// Package checkout sequences the storefront's checkout: which step a
// session may enter, where it is sent when it may not, how an order is
// priced, and the Flow service that runs user operations against the
// session store and its collaborators.
package checkout

import (
	"fmt"
	"strings"
)

// Step is one page of the checkout sequence.
type Step int

const (
	StepCart Step = iota
	StepSignin
	StepShipping
	StepPayment
	StepPlaceOrder
	StepConfirmed
)

// Route paths.
const (
	PathHome        = "/"
	PathCart        = "/cart"
	PathSignin      = "/signin"
	PathSignup      = "/signup"
	PathShipping    = "/shipping"
	PathPayment     = "/paymentmethod"
	PathPlaceOrder  = "/placeorder"
	PathOrderPrefix = "/order/"
)

// Steps lists the checkout steps in order.
func Steps() []Step {
	return []Step{StepCart, StepSignin, StepShipping, StepPayment, StepPlaceOrder, StepConfirmed}
}

func (s Step) String() string {
	switch s {
	case StepCart:
		return "cart"
	case StepSignin:
		return "signin"
	case StepShipping:
		return "shipping"
	case StepPayment:
		return "payment"
	case StepPlaceOrder:
		return "placeorder"
	case StepConfirmed:
		return "confirmed"
	default:
		return fmt.Sprintf("step(%d)", int(s))
	}
}

// Path returns the step's route. Confirmed returns the order prefix; use
// OrderPath for a concrete order.
func (s Step) Path() string {
	switch s {
	case StepCart:
		return PathCart
	case StepSignin:
		return PathSignin
	case StepShipping:
		return PathShipping
	case StepPayment:
		return PathPayment
	case StepPlaceOrder:
		return PathPlaceOrder
	case StepConfirmed:
		return PathOrderPrefix
	default:
		return PathHome
	}
}

// OrderPath is the confirmation route for order id.
func OrderPath(id string) string {
	return PathOrderPrefix + id
}

// StepForPath maps a route path to its step. Sign-up shares the sign-in
// step's (empty) gate.
func StepForPath(path string) (Step, bool) {
	switch {
	case path == PathCart:
		return StepCart, true
	case path == PathSignin, path == PathSignup:
		return StepSignin, true
	case path == PathShipping:
		return StepShipping, true
	case path == PathPayment:
		return StepPayment, true
	case path == PathPlaceOrder:
		return StepPlaceOrder, true
	case strings.HasPrefix(path, PathOrderPrefix) && len(path) > len(PathOrderPrefix):
		return StepConfirmed, true
	default:
		return 0, false
	}
}
