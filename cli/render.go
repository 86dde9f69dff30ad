package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/mbshop/storefront/checkout"
	"github.com/mbshop/storefront/session"
)

func printCart(w io.Writer, cart session.Cart) error {
	if cart.IsEmpty() {
		fmt.Fprintln(w, session.MsgCartEmpty)
		return nil
	}
	writer := tabwriter.NewWriter(w, 0, 2, 2, ' ', 0)
	fmt.Fprintln(writer, "ID\tNAME\tPRICE\tQTY\tSTOCK\tTOTAL")
	for _, item := range cart.CartItems {
		fmt.Fprintf(writer, "%s\t%s\t%s\t%d\t%d\t%s\n",
			item.ID,
			item.Name,
			item.Price,
			item.Quantity,
			item.CountInStock,
			item.LineTotal(),
		)
	}
	if err := writer.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(w, "Subtotal (%d items): %s\n", cart.ItemCount(), cart.Subtotal())
	return nil
}

func printSummary(w io.Writer, summary checkout.Summary) error {
	writer := tabwriter.NewWriter(w, 0, 2, 2, ' ', 0)
	fmt.Fprintf(writer, "Items\t%s\n", summary.ItemsPrice)
	fmt.Fprintf(writer, "Shipping\t%s\n", summary.ShippingPrice)
	fmt.Fprintf(writer, "Tax\t%s\n", summary.TaxPrice)
	fmt.Fprintf(writer, "Order Total\t%s\n", summary.TotalPrice)
	return writer.Flush()
}

func formatAddress(addr *session.ShippingAddress) string {
	if addr == nil {
		return "-"
	}
	return fmt.Sprintf("%s, %s, %s %s, %s", addr.FullName, addr.Address, addr.City, addr.PostalCode, addr.Country)
}

func formatUser(user *session.UserRecord) string {
	if user == nil {
		return "(signed out)"
	}
	return fmt.Sprintf("%s <%s>", user.Name, user.Email)
}

func printState(w io.Writer, state session.State, location string) error {
	writer := tabwriter.NewWriter(w, 0, 2, 2, ' ', 0)
	fmt.Fprintf(writer, "Mode\t%s\n", state.Mode)
	fmt.Fprintf(writer, "User\t%s\n", formatUser(state.UserInfo))
	fmt.Fprintf(writer, "Location\t%s\n", location)
	fmt.Fprintf(writer, "Shipping\t%s\n", formatAddress(state.Cart.ShippingAddress))
	payment := string(state.Cart.PaymentMethod)
	if payment == "" {
		payment = "-"
	}
	fmt.Fprintf(writer, "Payment\t%s\n", payment)
	if err := writer.Flush(); err != nil {
		return err
	}
	fmt.Fprintln(w)
	return printCart(w, state.Cart)
}

// describeCartChange is the one-line form of a cart event printed by
// "cart watch".
func describeCartChange(e session.Event) string {
	var b strings.Builder
	fmt.Fprintf(&b, "cart: %d items, subtotal %s", e.Next.Cart.ItemCount(), e.Next.Cart.Subtotal())
	for _, item := range e.Prev.Cart.CartItems {
		if _, ok := e.Next.Cart.Find(item.ID); !ok {
			fmt.Fprintf(&b, " (removed %s)", item.ID)
		}
	}
	return b.String()
}
