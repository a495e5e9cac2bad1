package checkout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/mmynk/storefront/internal/apperr"
	"github.com/mmynk/storefront/internal/cart"
	"github.com/mmynk/storefront/internal/models"
	"github.com/mmynk/storefront/internal/session"
)

// DefaultPaymentMethod is preselected on the payment step.
const DefaultPaymentMethod = "PayPal"

var (
	// ErrIncompleteAddress is returned when a shipping field is blank.
	ErrIncompleteAddress = apperr.Validation("Please fill in all shipping fields")

	// ErrMissingPaymentMethod is returned when no payment method is chosen.
	ErrMissingPaymentMethod = apperr.Validation("Please select a payment method")
)

// Cart is the cart store used by checkout.
type Cart interface {
	CartSnapshotter
	SetShippingAddress(ctx context.Context, addr models.ShippingAddress) (models.Cart, error)
	SetPaymentMethod(ctx context.Context, method string) (models.Cart, error)
	Clear(ctx context.Context) (models.Cart, error)
}

// Orders is the order endpoint catalogue used by checkout.
type Orders interface {
	CreateOrder(ctx context.Context, c models.Cart) (models.Order, error)
	GetOrderDetails(ctx context.Context, id string) (models.Order, error)
	PayOrder(ctx context.Context, id string, capture models.PaymentCapture) (models.Order, error)
	GetPayPalClientID(ctx context.Context) (string, error)
}

// Checkout drives the steps after the cart.
type Checkout struct {
	guard  *Guard
	cart   Cart
	orders Orders
}

// New creates a Checkout.
func New(cart Cart, identities session.IdentitySource, orders Orders) *Checkout {
	return &Checkout{
		guard:  NewGuard(cart, identities),
		cart:   cart,
		orders: orders,
	}
}

// Guard returns the step guard.
func (c *Checkout) Guard() *Guard {
	return c.guard
}

// SaveShipping records the address and moves to the payment step.
func (c *Checkout) SaveShipping(ctx context.Context, addr models.ShippingAddress) (session.Decision, error) {
	if strings.TrimSpace(addr.Address) == "" || strings.TrimSpace(addr.City) == "" ||
		strings.TrimSpace(addr.PostalCode) == "" || strings.TrimSpace(addr.Country) == "" {
		return session.Decision{}, ErrIncompleteAddress
	}
	if _, err := c.cart.SetShippingAddress(ctx, addr); err != nil {
		return session.Decision{}, err
	}
	return session.RedirectTo(StepPayment.Path()), nil
}

// SavePaymentMethod records the method and moves to the review step.
func (c *Checkout) SavePaymentMethod(ctx context.Context, method string) (session.Decision, error) {
	method = strings.TrimSpace(method)
	if method == "" {
		return session.Decision{}, ErrMissingPaymentMethod
	}
	if _, err := c.cart.SetPaymentMethod(ctx, method); err != nil {
		return session.Decision{}, err
	}
	return session.RedirectTo(StepReview.Path()), nil
}

// Placement is the outcome of PlaceOrder. Decision redirects to the order
// view on success, or to the step that must be completed first.
type Placement struct {
	Order    models.Order
	Decision session.Decision
}

// PlaceOrder submits the cart. When the review step may not be entered the
// guard's redirect is returned and nothing is submitted. On success the cart
// items are cleared and the decision leads to the new order. On failure the
// step does not advance and the error is returned.
func (c *Checkout) PlaceOrder(ctx context.Context) (Placement, error) {
	if d := c.guard.Enter(StepReview, ""); !d.Allowed {
		return Placement{Decision: d}, nil
	}

	snapshot := c.cart.Snapshot()
	if len(snapshot.Items) == 0 {
		return Placement{}, cart.ErrEmpty
	}

	order, err := c.orders.CreateOrder(ctx, snapshot)
	if err != nil {
		return Placement{}, err
	}
	placement := Placement{Order: order, Decision: session.RedirectTo(OrderPath(order.ID))}

	if _, err := c.cart.Clear(ctx); err != nil {
		slog.Error("Order placed but cart was not cleared", "order_id", order.ID, "error", err)
		return placement, fmt.Errorf("failed to clear cart after order %s: %w", order.ID, err)
	}

	slog.Info("Order placed", "order_id", order.ID, "total", order.TotalPrice)
	return placement, nil
}

// ErrPaymentCancelled is returned by a Provider when the payer abandons
// the payment.
var ErrPaymentCancelled = errors.New("payment cancelled")

// Provider is the external payment provider.
type Provider interface {
	// CreateOrderIntent opens a payment for amount and returns its token.
	CreateOrderIntent(ctx context.Context, clientID string, amount decimal.Decimal) (string, error)

	// CaptureOrderIntent captures an approved payment.
	CaptureOrderIntent(ctx context.Context, intentToken string) (models.PaymentCapture, error)
}

// PaymentOutcome classifies a payment attempt.
type PaymentOutcome int

const (
	PaymentPaid PaymentOutcome = iota
	PaymentFailed
	PaymentCancelled
)

func (o PaymentOutcome) String() string {
	switch o {
	case PaymentPaid:
		return "paid"
	case PaymentFailed:
		return "failed"
	case PaymentCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// PaymentResult is the outcome of Pay. Order is the latest known state of
// the order; Err is set unless the outcome is PaymentPaid.
type PaymentResult struct {
	Outcome PaymentOutcome
	Order   models.Order
	Err     error
}

// Pay runs a payment for the order with id through provider. On approval
// the order is marked paid and its details are refreshed. A failed or
// cancelled payment changes nothing.
func (c *Checkout) Pay(ctx context.Context, id string, provider Provider) PaymentResult {
	slog.Info("Pay request received", "order_id", id)

	var (
		order    models.Order
		clientID string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		order, err = c.orders.GetOrderDetails(gctx, id)
		return err
	})
	g.Go(func() error {
		var err error
		clientID, err = c.orders.GetPayPalClientID(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return failed(order, err)
	}

	if order.IsPaid {
		return PaymentResult{Outcome: PaymentPaid, Order: order}
	}

	amount := decimal.NewFromFloat(order.TotalPrice).Round(2)
	intent, err := provider.CreateOrderIntent(ctx, clientID, amount)
	if err != nil {
		return failed(order, err)
	}
	capture, err := provider.CaptureOrderIntent(ctx, intent)
	if err != nil {
		return failed(order, err)
	}

	paid, err := c.orders.PayOrder(ctx, id, capture)
	if err != nil {
		return failed(order, err)
	}

	refreshed, err := c.orders.GetOrderDetails(ctx, id)
	if err != nil {
		slog.Warn("Order paid but refresh failed", "order_id", id, "error", err)
		refreshed = paid
	}

	slog.Info("Payment completed", "order_id", id, "capture_id", capture.ID)
	return PaymentResult{Outcome: PaymentPaid, Order: refreshed}
}

func failed(order models.Order, err error) PaymentResult {
	if errors.Is(err, ErrPaymentCancelled) {
		slog.Info("Payment cancelled", "order_id", order.ID)
		return PaymentResult{Outcome: PaymentCancelled, Order: order, Err: err}
	}
	slog.Warn("Payment failed", "order_id", order.ID, "error", err)
	return PaymentResult{Outcome: PaymentFailed, Order: order, Err: err}
}
