package cli

import (
	"errors"
	"os"

	"github.com/spf13/cobra"

	"github.com/mbshop/storefront/api"
	"github.com/mbshop/storefront/checkout"
	"github.com/mbshop/storefront/session"
)

// NewCheckoutCmd creates the "checkout" subcommand.
func NewCheckoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "checkout",
		Short: "Leave the cart and start checkout",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, "checkout", func(a *app) error {
				next, err := a.flow.ProceedToCheckout()
				if err != nil {
					return err
				}
				a.printf("Next: %s\n", next)
				return nil
			})
		},
	}
}

// NewSigninCmd creates the "signin" subcommand.
func NewSigninCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "signin",
		Short: "Sign in and continue where checkout left off",
		Args:  cobra.NoArgs,
		RunE:  runSignin,
	}
	cmd.Flags().String("email", "", "Account email")
	cmd.Flags().String("password", "", "Account password (default: $STOREFRONT_PASSWORD)")
	return cmd
}

func runSignin(cmd *cobra.Command, _ []string) error {
	email, _ := cmd.Flags().GetString("email")
	password := passwordFlag(cmd, "password")
	return withApp(cmd, "signin", func(a *app) error {
		next, err := a.flow.Signin(a.ctx, email, password)
		if err != nil {
			return err
		}
		a.printf("Signed in as %s\nNext: %s\n", formatUser(a.store.State().UserInfo), next)
		return nil
	})
}

// NewSignupCmd creates the "signup" subcommand.
func NewSignupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Create an account and sign in",
		Args:  cobra.NoArgs,
		RunE:  runSignup,
	}
	cmd.Flags().String("name", "", "Display name")
	cmd.Flags().String("email", "", "Account email")
	cmd.Flags().String("password", "", "Password (default: $STOREFRONT_PASSWORD)")
	cmd.Flags().String("confirm", "", "Password confirmation (default: the password)")
	return cmd
}

func runSignup(cmd *cobra.Command, _ []string) error {
	name, _ := cmd.Flags().GetString("name")
	email, _ := cmd.Flags().GetString("email")
	password := passwordFlag(cmd, "password")
	confirm := password
	if cmd.Flags().Changed("confirm") {
		confirm, _ = cmd.Flags().GetString("confirm")
	}
	return withApp(cmd, "signup", func(a *app) error {
		next, err := a.flow.Signup(a.ctx, api.SignupRequest{
			Name:            name,
			Email:           email,
			Password:        password,
			ConfirmPassword: confirm,
		})
		if err != nil {
			return err
		}
		a.printf("Signed up as %s\nNext: %s\n", formatUser(a.store.State().UserInfo), next)
		return nil
	})
}

func passwordFlag(cmd *cobra.Command, name string) string {
	password, _ := cmd.Flags().GetString(name)
	if password == "" {
		password = os.Getenv("STOREFRONT_PASSWORD")
	}
	return password
}

// NewSignoutCmd creates the "signout" subcommand.
func NewSignoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "signout",
		Short: "Sign out and clear the cart",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, "signout", func(a *app) error {
				a.flow.Signout()
				a.printf("Signed out\n")
				return nil
			})
		},
	}
}

// NewShippingCmd creates the "shipping" subcommand.
func NewShippingCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "shipping",
		Short: "Save the shipping address",
		Args:  cobra.NoArgs,
		RunE:  runShipping,
	}
	cmd.Flags().String("full-name", "", "Recipient name")
	cmd.Flags().String("address", "", "Street address")
	cmd.Flags().String("city", "", "City")
	cmd.Flags().String("postal-code", "", "Postal code")
	cmd.Flags().String("country", "", "Country")
	return cmd
}

func runShipping(cmd *cobra.Command, _ []string) error {
	var addr session.ShippingAddress
	addr.FullName, _ = cmd.Flags().GetString("full-name")
	addr.Address, _ = cmd.Flags().GetString("address")
	addr.City, _ = cmd.Flags().GetString("city")
	addr.PostalCode, _ = cmd.Flags().GetString("postal-code")
	addr.Country, _ = cmd.Flags().GetString("country")

	return withApp(cmd, "shipping", func(a *app) error {
		if err := a.enter(checkout.StepShipping); err != nil {
			return err
		}
		next, err := a.flow.SaveShippingAddress(addr)
		if err != nil {
			return err
		}
		a.printf("Shipping to %s\nNext: %s\n", formatAddress(a.store.State().Cart.ShippingAddress), next)
		return nil
	})
}

// NewPaymentCmd creates the "payment" subcommand.
func NewPaymentCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "payment <method>",
		Short:     "Choose the payment method (PayPal, Stripe, CashOnDelivery)",
		Args:      cobra.ExactArgs(1),
		ValidArgs: paymentMethodNames(),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, "payment", func(a *app) error {
				if err := a.enter(checkout.StepPayment); err != nil {
					return err
				}
				next, err := a.flow.SavePaymentMethod(session.PaymentMethod(args[0]))
				if err != nil {
					return err
				}
				a.printf("Paying with %s\nNext: %s\n", a.store.State().Cart.PaymentMethod, next)
				return nil
			})
		},
	}
}

func paymentMethodNames() []string {
	methods := session.PaymentMethods()
	names := make([]string, 0, len(methods))
	for _, m := range methods {
		names = append(names, string(m))
	}
	return names
}

// NewOrderCmd creates the "order" subcommand.
func NewOrderCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "order",
		Short: "Review and place the order",
		Args:  cobra.NoArgs,
		RunE:  runOrder,
	}
	cmd.Flags().Bool("dry-run", false, "Print the order summary without placing it")
	return cmd
}

func runOrder(cmd *cobra.Command, _ []string) error {
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	return withApp(cmd, "order", func(a *app) error {
		state := a.store.State()
		summary := checkout.Price(state.Cart, a.flow.Pricing())
		if dryRun {
			if d := checkout.Guard(state, checkout.StepPlaceOrder); !d.Allowed {
				a.printf("Checkout incomplete. Next: %s\n", d.Redirect)
			}
			if err := printCart(a.out, state.Cart); err != nil {
				return err
			}
			return printSummary(a.out, summary)
		}

		order, err := a.flow.PlaceOrder(a.ctx)
		if errors.Is(err, checkout.ErrCheckoutIncomplete) {
			a.printf("Next: %s\n", a.history.CurrentPath())
		}
		if err != nil {
			return err
		}
		if err := printSummary(a.out, summary); err != nil {
			return err
		}
		a.printf("Order %s\nNext: %s\n", order.ID, a.history.CurrentPath())
		return nil
	})
}
