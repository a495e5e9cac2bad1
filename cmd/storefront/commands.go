package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/mmynk/storefront/internal/auth"
	"github.com/mmynk/storefront/internal/checkout"
	"github.com/mmynk/storefront/internal/models"
	"github.com/mmynk/storefront/internal/session"
)

var errUsage = errors.New("usage")

type command func(ctx context.Context, args []string) error

func (a *app) commands() map[string]command {
	return map[string]command{
		"products":       a.products,
		"product":        a.product,
		"product-create": a.productCreate,
		"product-delete": a.productDelete,
		"cart":           a.cartCmd,
		"login":          a.login,
		"register":       a.register,
		"logout":         a.logout,
		"profile":        a.profile,
		"checkout":       a.checkoutCmd,
		"shipping":       a.shipping,
		"payment":        a.payment,
		"review":         a.review,
		"place-order":    a.placeOrder,
		"orders":         a.orders,
		"order":          a.order,
	}
}

func (a *app) dispatch(ctx context.Context, args []string) error {
	cmd, ok := a.commands()[args[0]]
	if !ok {
		return errUsage
	}
	return cmd(ctx, args[1:])
}

// follow prints where the user has to go instead and reports whether the
// decision allowed the view.
func (a *app) follow(d session.Decision) bool {
	if d.Allowed {
		return true
	}
	fmt.Fprintf(a.out, "Continue at %s\n", d.Redirect)
	return false
}

func (a *app) products(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("products", flag.ContinueOnError)
	keyword := fs.String("keyword", "", "search keyword")
	page := fs.Int("page", 1, "page number")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}

	res, err := a.svc.Products.GetProducts(ctx, *keyword, *page)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tPRICE\tSTOCK\tRATING")
	for _, p := range res.Products {
		fmt.Fprintf(w, "%s\t%s\t%.2f\t%d\t%.1f\n", p.ID, p.Name, p.Price, p.CountInStock, p.Rating)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Page %d of %d\n", res.Page, res.Pages)
	return nil
}

func (a *app) product(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	p, err := a.svc.Products.GetProductDetails(ctx, args[0])
	if err != nil {
		return err
	}
	printProduct(a.out, p)
	return nil
}

func printProduct(out io.Writer, p models.Product) {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "ID\t%s\n", p.ID)
	fmt.Fprintf(w, "Name\t%s\n", p.Name)
	fmt.Fprintf(w, "Brand\t%s\n", p.Brand)
	fmt.Fprintf(w, "Category\t%s\n", p.Category)
	fmt.Fprintf(w, "Price\t%.2f\n", p.Price)
	fmt.Fprintf(w, "In stock\t%d\n", p.CountInStock)
	fmt.Fprintf(w, "Rating\t%.1f (%d reviews)\n", p.Rating, p.NumReviews)
	_ = w.Flush()
	if p.Description != "" {
		fmt.Fprintf(out, "\n%s\n", p.Description)
	}
}

func (a *app) productCreate(ctx context.Context, args []string) error {
	if !a.follow(a.authz.Check(session.Admin, "/admin/productlist")) {
		return nil
	}
	p, err := a.svc.Products.CreateProduct(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Created product %s\n", p.ID)
	return nil
}

func (a *app) productDelete(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	if !a.follow(a.authz.Check(session.Admin, "/admin/productlist")) {
		return nil
	}
	if err := a.svc.Products.DeleteProduct(ctx, args[0]); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Deleted product %s\n", args[0])
	return nil
}

func (a *app) cartCmd(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return a.showCart()
	}
	switch args[0] {
	case "show":
		return a.showCart()
	case "add":
		if len(args) != 3 {
			return errUsage
		}
		qty, err := strconv.Atoi(args[2])
		if err != nil || qty < 1 {
			return errUsage
		}
		p, err := a.svc.Products.GetProductDetails(ctx, args[1])
		if err != nil {
			return err
		}
		if qty > p.CountInStock {
			fmt.Fprintf(a.out, "Only %d of %s in stock\n", p.CountInStock, p.Name)
			return nil
		}
		if _, err := a.cart.AddItem(ctx, p.CartItem(qty), qty); err != nil {
			return err
		}
	case "remove":
		if len(args) != 2 {
			return errUsage
		}
		if _, err := a.cart.RemoveItem(ctx, args[1]); err != nil {
			return err
		}
	case "clear":
		if _, err := a.cart.Clear(ctx); err != nil {
			return err
		}
	default:
		return errUsage
	}
	return a.showCart()
}

func (a *app) showCart() error {
	c := a.cart.Snapshot()
	if len(c.Items) == 0 {
		fmt.Fprintln(a.out, "Your cart is empty")
		return nil
	}
	w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tQTY\tPRICE")
	for _, item := range c.Items {
		fmt.Fprintf(w, "%s\t%s\t%d\t%.2f\n", item.ID, item.Name, item.Qty, item.Price)
	}
	fmt.Fprintln(w)
	printTotals(w, c.ItemsSubtotal, c.ShippingCost, c.TaxAmount, c.GrandTotal)
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%d items. Checkout continues at %s\n", c.ItemCount(), a.checkout.Guard().ProceedFromCart())
	return nil
}

func printTotals(w io.Writer, items, shipping, tax, total float64) {
	fmt.Fprintf(w, "Items\t\t\t%.2f\n", items)
	fmt.Fprintf(w, "Shipping\t\t\t%.2f\n", shipping)
	fmt.Fprintf(w, "Tax\t\t\t%.2f\n", tax)
	fmt.Fprintf(w, "Total\t\t\t%.2f\n", total)
}

func (a *app) login(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	redirect := fs.String("redirect", "", "return path after login")
	if err := fs.Parse(args); err != nil || fs.NArg() != 2 {
		return errUsage
	}

	identity, err := a.svc.Users.Login(ctx, auth.Credentials{Email: fs.Arg(0), Password: fs.Arg(1)})
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Logged in as %s\n", identity.Name)
	fmt.Fprintf(a.out, "Continue at %s\n", session.ResolveReturnPath(*redirect))
	return nil
}

func (a *app) register(ctx context.Context, args []string) error {
	if len(args) != 4 {
		return errUsage
	}
	identity, err := a.svc.Users.Register(ctx, auth.Registration{
		Name:            args[0],
		Email:           args[1],
		Password:        args[2],
		ConfirmPassword: args[3],
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Registered and logged in as %s\n", identity.Name)
	return nil
}

func (a *app) logout(ctx context.Context, args []string) error {
	if err := a.svc.Users.Logout(ctx); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Logged out")
	return nil
}

func (a *app) profile(ctx context.Context, args []string) error {
	if !a.follow(a.authz.Check(session.Authenticated, "/profile")) {
		return nil
	}
	current := a.sessions.Identity()

	fs := flag.NewFlagSet("profile", flag.ContinueOnError)
	name := fs.String("name", current.Name, "display name")
	email := fs.String("email", current.Email, "email")
	password := fs.String("password", "", "new password")
	confirm := fs.String("confirm", "", "new password again")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}

	identity, err := a.svc.Users.UpdateProfile(ctx, auth.ProfileUpdate{
		UserID:          current.UserID,
		Name:            *name,
		Email:           *email,
		Password:        *password,
		ConfirmPassword: *confirm,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Profile updated for %s <%s>\n", identity.Name, identity.Email)
	return nil
}

func (a *app) checkoutCmd(ctx context.Context, args []string) error {
	fmt.Fprintf(a.out, "Continue at %s\n", a.checkout.Guard().ProceedFromCart())
	return nil
}

func (a *app) shipping(ctx context.Context, args []string) error {
	if !a.follow(a.checkout.Guard().Enter(checkout.StepShipping, "")) {
		return nil
	}
	if len(args) == 0 {
		addr := a.cart.Snapshot().ShippingAddress
		if !addr.IsSet() {
			fmt.Fprintln(a.out, "No shipping address")
			return nil
		}
		fmt.Fprintf(a.out, "%s, %s %s, %s\n", addr.Address, addr.City, addr.PostalCode, addr.Country)
		return nil
	}
	if len(args) != 4 {
		return errUsage
	}
	d, err := a.checkout.SaveShipping(ctx, models.ShippingAddress{
		Address:    args[0],
		City:       args[1],
		PostalCode: args[2],
		Country:    args[3],
	})
	if err != nil {
		return err
	}
	a.follow(d)
	return nil
}

func (a *app) payment(ctx context.Context, args []string) error {
	if !a.follow(a.checkout.Guard().Enter(checkout.StepPayment, "")) {
		return nil
	}
	method := checkout.DefaultPaymentMethod
	if len(args) > 1 {
		return errUsage
	}
	if len(args) == 1 {
		method = args[0]
	}
	d, err := a.checkout.SavePaymentMethod(ctx, method)
	if err != nil {
		return err
	}
	a.follow(d)
	return nil
}

func (a *app) review(ctx context.Context, args []string) error {
	if !a.follow(a.checkout.Guard().Enter(checkout.StepReview, "")) {
		return nil
	}
	c := a.cart.Snapshot()
	addr := c.ShippingAddress
	fmt.Fprintf(a.out, "Ship to %s, %s %s, %s\n", addr.Address, addr.City, addr.PostalCode, addr.Country)
	fmt.Fprintf(a.out, "Method %s\n\n", c.PaymentMethod)
	if len(c.Items) == 0 {
		fmt.Fprintln(a.out, "Your cart is empty")
		return nil
	}

	w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tQTY\tPRICE")
	for _, item := range c.Items {
		fmt.Fprintf(w, "%s\t%s\t%d\t%.2f\n", item.ID, item.Name, item.Qty, item.Price)
	}
	fmt.Fprintln(w)
	printTotals(w, c.ItemsSubtotal, c.ShippingCost, c.TaxAmount, c.GrandTotal)
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Submit with place-order")
	return nil
}

func (a *app) placeOrder(ctx context.Context, args []string) error {
	placement, err := a.checkout.PlaceOrder(ctx)
	if placement.Order.ID != "" {
		fmt.Fprintf(a.out, "Order %s placed, total %.2f\n", placement.Order.ID, placement.Order.TotalPrice)
	}
	if err != nil {
		return err
	}
	a.follow(placement.Decision)
	return nil
}

func (a *app) orders(ctx context.Context, args []string) error {
	if !a.follow(a.authz.Check(session.Authenticated, "/profile")) {
		return nil
	}
	orders, err := a.svc.Orders.GetMyOrders(ctx)
	if err != nil {
		return err
	}
	if len(orders) == 0 {
		fmt.Fprintln(a.out, "No orders yet")
		return nil
	}
	w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTOTAL\tPAID\tDELIVERED")
	for _, o := range orders {
		fmt.Fprintf(w, "%s\t%.2f\t%s\t%s\n", o.ID, o.TotalPrice, status(o.IsPaid, o.PaidAt), status(o.IsDelivered, o.DeliveredAt))
	}
	return w.Flush()
}

func (a *app) order(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	if !a.follow(a.authz.Check(session.Authenticated, checkout.OrderPath(args[0]))) {
		return nil
	}
	o, err := a.svc.Orders.GetOrderDetails(ctx, args[0])
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "Order %s\n", o.ID)
	fmt.Fprintf(a.out, "Ship to %s, %s %s, %s\n", o.ShippingAddress.Address, o.ShippingAddress.City, o.ShippingAddress.PostalCode, o.ShippingAddress.Country)
	fmt.Fprintf(a.out, "Method %s. Paid: %s. Delivered: %s\n\n", o.PaymentMethod, status(o.IsPaid, o.PaidAt), status(o.IsDelivered, o.DeliveredAt))

	w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tQTY\tPRICE")
	for _, item := range o.OrderItems {
		fmt.Fprintf(w, "%s\t%s\t%d\t%.2f\n", item.ID, item.Name, item.Qty, item.Price)
	}
	fmt.Fprintln(w)
	printTotals(w, o.ItemsPrice, o.ShippingPrice, o.TaxPrice, o.TotalPrice)
	return w.Flush()
}

func status(done bool, at string) string {
	switch {
	case !done:
		return "no"
	case at != "":
		return at
	default:
		return "yes"
	}
}
