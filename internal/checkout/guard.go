// Package checkout guards the checkout steps and drives order placement and
// payment.
package checkout

import (
	"github.com/mmynk/storefront/internal/models"
	"github.com/mmynk/storefront/internal/session"
)

// Step is a checkout stage.
type Step int

const (
	StepCart Step = iota
	StepAuth
	StepShipping
	StepPayment
	StepReview
	StepPlaced
)

// String returns the step name.
func (s Step) String() string {
	switch s {
	case StepCart:
		return "cart"
	case StepAuth:
		return "auth"
	case StepShipping:
		return "shipping"
	case StepPayment:
		return "payment"
	case StepReview:
		return "review"
	case StepPlaced:
		return "placed"
	default:
		return "unknown"
	}
}

// Path returns the view path of the step. The placed step's view is keyed
// by order; see OrderPath.
func (s Step) Path() string {
	switch s {
	case StepCart:
		return "/cart"
	case StepAuth:
		return session.LoginPath
	case StepShipping:
		return "/shipping"
	case StepPayment:
		return "/payment"
	case StepReview:
		return "/placeorder"
	case StepPlaced:
		return "/order"
	default:
		return "/"
	}
}

// OrderPath is the order view for id.
func OrderPath(id string) string {
	return "/order/" + id
}

// CartSnapshotter exposes the current cart.
type CartSnapshotter interface {
	Snapshot() models.Cart
}

// Guard decides whether a checkout step may be entered. It never blocks and
// never mutates state.
type Guard struct {
	cart       CartSnapshotter
	identities session.IdentitySource
}

// NewGuard creates a Guard over the cart and session.
func NewGuard(cart CartSnapshotter, identities session.IdentitySource) *Guard {
	return &Guard{cart: cart, identities: identities}
}

// Enter decides entry into step for requestedPath, which becomes the login
// return target. An empty requestedPath uses the step's own path.
//
// Missing checkout data is checked before the session: a guest on the
// payment step without an address goes to shipping, and is sent to log in
// from there.
func (g *Guard) Enter(step Step, requestedPath string) session.Decision {
	if requestedPath == "" {
		requestedPath = step.Path()
	}

	if step <= StepAuth {
		return session.Allow()
	}

	c := g.cart.Snapshot()
	if step >= StepPayment && c.ShippingAddress.Address == "" {
		return session.RedirectTo(StepShipping.Path())
	}
	if step >= StepReview && c.PaymentMethod == "" {
		return session.RedirectTo(StepPayment.Path())
	}
	if g.identities.Identity() == nil {
		return session.RedirectTo(session.LoginRedirect(requestedPath))
	}
	return session.Allow()
}

// ProceedFromCart is where "proceed to checkout" leads: the shipping step,
// through login for a guest.
func (g *Guard) ProceedFromCart() string {
	if g.identities.Identity() == nil {
		return session.LoginRedirect(StepShipping.Path())
	}
	return StepShipping.Path()
}
