package checkout

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/mmynk/storefront/internal/api"
	"github.com/mmynk/storefront/internal/apperr"
	"github.com/mmynk/storefront/internal/cache"
	"github.com/mmynk/storefront/internal/cart"
	"github.com/mmynk/storefront/internal/models"
	"github.com/mmynk/storefront/internal/service"
	"github.com/mmynk/storefront/internal/session"
	"github.com/mmynk/storefront/internal/storage/memory"
	"github.com/mmynk/storefront/internal/testutil/fakeshop"
)

var testAddress = models.ShippingAddress{Address: "1 Main St", City: "Town", PostalCode: "1000", Country: "NL"}

type testEnv struct {
	shop     *fakeshop.Server
	cart     *cart.Store
	sessions *session.Store
	svc      *service.Services
	checkout *Checkout
}

func setupEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()
	st := memory.New()

	shop := fakeshop.New(t)
	sessions, err := session.Load(ctx, st)
	if err != nil {
		t.Fatalf("failed to load session: %v", err)
	}
	cartStore, err := cart.Load(ctx, st)
	if err != nil {
		t.Fatalf("failed to load cart: %v", err)
	}
	client, err := api.New(shop.BaseURL(), sessions,
		api.WithUnauthorizedHandler(func(ctx context.Context) { _ = sessions.Clear(ctx) }),
	)
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	c := cache.New(client)
	t.Cleanup(c.Close)

	svc := service.New(c, sessions, service.DefaultKeepAlive)
	return &testEnv{
		shop:     shop,
		cart:     cartStore,
		sessions: sessions,
		svc:      svc,
		checkout: New(cartStore, sessions, svc.Orders),
	}
}

func (e *testEnv) signIn(t *testing.T) {
	t.Helper()
	id := e.shop.AddUser("Ann", "ann@example.com", "secret", false)
	if err := e.sessions.SetIdentity(context.Background(), id); err != nil {
		t.Fatalf("SetIdentity failed: %v", err)
	}
}

func (e *testEnv) fillCart(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	p := e.shop.AddProduct(models.Product{Name: "Phone", Price: 20, CountInStock: 5})
	if _, err := e.cart.AddItem(ctx, p.CartItem(2), 2); err != nil {
		t.Fatalf("AddItem failed: %v", err)
	}
}

func TestGuardEnter(t *testing.T) {
	tests := []struct {
		name     string
		signedIn bool
		address  bool
		method   bool
		step     Step
		want     session.Decision
	}{
		{name: "cart is open", step: StepCart, want: session.Allow()},
		{name: "auth is open", step: StepAuth, want: session.Allow()},
		{name: "guest on shipping", step: StepShipping, want: session.RedirectTo("/login?redirect=/shipping")},
		{name: "user on shipping", signedIn: true, step: StepShipping, want: session.Allow()},
		{name: "guest on payment without address", step: StepPayment, want: session.RedirectTo("/shipping")},
		{name: "user on payment without address", signedIn: true, step: StepPayment, want: session.RedirectTo("/shipping")},
		{name: "guest on payment with address", address: true, step: StepPayment, want: session.RedirectTo("/login?redirect=/payment")},
		{name: "user on payment with address", signedIn: true, address: true, step: StepPayment, want: session.Allow()},
		{name: "review without address", signedIn: true, method: true, step: StepReview, want: session.RedirectTo("/shipping")},
		{name: "review without method", signedIn: true, address: true, step: StepReview, want: session.RedirectTo("/payment")},
		{name: "review complete", signedIn: true, address: true, method: true, step: StepReview, want: session.Allow()},
		{name: "guest on review", address: true, method: true, step: StepReview, want: session.RedirectTo("/login?redirect=/placeorder")},
		{name: "placed without method", signedIn: true, address: true, step: StepPlaced, want: session.RedirectTo("/payment")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := setupEnv(t)
			ctx := context.Background()
			if tt.signedIn {
				env.signIn(t)
			}
			if tt.address {
				if _, err := env.cart.SetShippingAddress(ctx, testAddress); err != nil {
					t.Fatalf("SetShippingAddress failed: %v", err)
				}
			}
			if tt.method {
				if _, err := env.cart.SetPaymentMethod(ctx, DefaultPaymentMethod); err != nil {
					t.Fatalf("SetPaymentMethod failed: %v", err)
				}
			}

			if got := env.checkout.Guard().Enter(tt.step, ""); got != tt.want {
				t.Errorf("Enter(%s) = %+v, want %+v", tt.step, got, tt.want)
			}
		})
	}
}

func TestGuardKeepsRequestedPath(t *testing.T) {
	env := setupEnv(t)
	got := env.checkout.Guard().Enter(StepShipping, "/shipping?from=cart")
	if got.Redirect != "/login?redirect=/shipping%3Ffrom%3Dcart" {
		t.Errorf("Redirect = %q", got.Redirect)
	}
	if back := session.ReturnPathFromQuery(got.Redirect[len(session.LoginPath):]); back != "/shipping?from=cart" {
		t.Errorf("return path = %q", back)
	}
}

func TestProceedFromCart(t *testing.T) {
	env := setupEnv(t)
	if got := env.checkout.Guard().ProceedFromCart(); got != "/login?redirect=/shipping" {
		t.Errorf("guest ProceedFromCart() = %q", got)
	}
	env.signIn(t)
	if got := env.checkout.Guard().ProceedFromCart(); got != "/shipping" {
		t.Errorf("user ProceedFromCart() = %q", got)
	}
}

func TestSaveShippingAndPayment(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()

	if _, err := env.checkout.SaveShipping(ctx, models.ShippingAddress{Address: "1 Main St"}); !errors.Is(err, ErrIncompleteAddress) {
		t.Fatalf("expected ErrIncompleteAddress, got %v", err)
	}
	d, err := env.checkout.SaveShipping(ctx, testAddress)
	if err != nil {
		t.Fatalf("SaveShipping failed: %v", err)
	}
	if d.Redirect != "/payment" {
		t.Errorf("SaveShipping redirect = %q", d.Redirect)
	}

	if _, err := env.checkout.SavePaymentMethod(ctx, " "); !errors.Is(err, ErrMissingPaymentMethod) {
		t.Fatalf("expected ErrMissingPaymentMethod, got %v", err)
	}
	d, err = env.checkout.SavePaymentMethod(ctx, DefaultPaymentMethod)
	if err != nil {
		t.Fatalf("SavePaymentMethod failed: %v", err)
	}
	if d.Redirect != "/placeorder" {
		t.Errorf("SavePaymentMethod redirect = %q", d.Redirect)
	}

	snap := env.cart.Snapshot()
	if snap.ShippingAddress != testAddress || snap.PaymentMethod != DefaultPaymentMethod {
		t.Errorf("cart not updated: %+v", snap)
	}
}

func readyForReview(t *testing.T, env *testEnv) {
	t.Helper()
	ctx := context.Background()
	env.signIn(t)
	if _, err := env.checkout.SaveShipping(ctx, testAddress); err != nil {
		t.Fatalf("SaveShipping failed: %v", err)
	}
	if _, err := env.checkout.SavePaymentMethod(ctx, DefaultPaymentMethod); err != nil {
		t.Fatalf("SavePaymentMethod failed: %v", err)
	}
}

func TestPlaceOrder(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()
	readyForReview(t, env)
	env.fillCart(t)

	placement, err := env.checkout.PlaceOrder(ctx)
	if err != nil {
		t.Fatalf("PlaceOrder failed: %v", err)
	}
	if placement.Order.ID == "" || placement.Decision.Redirect != OrderPath(placement.Order.ID) {
		t.Errorf("unexpected placement %+v", placement)
	}
	if placement.Order.TotalPrice != 50.8 {
		t.Errorf("order total = %v, want 50.8", placement.Order.TotalPrice)
	}

	snap := env.cart.Snapshot()
	if len(snap.Items) != 0 {
		t.Errorf("cart items not cleared: %+v", snap.Items)
	}
	if snap.ShippingAddress != testAddress || snap.PaymentMethod != DefaultPaymentMethod {
		t.Errorf("clear must keep address and method: %+v", snap)
	}
	if _, ok := env.shop.Order(placement.Order.ID); !ok {
		t.Error("order not stored by backend")
	}
}

func TestPlaceOrderEmptyCart(t *testing.T) {
	env := setupEnv(t)
	readyForReview(t, env)

	_, err := env.checkout.PlaceOrder(context.Background())
	if !errors.Is(err, cart.ErrEmpty) {
		t.Fatalf("expected cart.ErrEmpty, got %v", err)
	}
	if n := env.shop.Calls(fakeshop.Route(http.MethodPost, "/api/orders")); n != 0 {
		t.Errorf("expected no call, got %d", n)
	}
}

func TestPlaceOrderRedirectsWhenNotReady(t *testing.T) {
	env := setupEnv(t)
	env.signIn(t)
	env.fillCart(t)

	placement, err := env.checkout.PlaceOrder(context.Background())
	if err != nil {
		t.Fatalf("PlaceOrder failed: %v", err)
	}
	if placement.Decision.Redirect != "/shipping" || placement.Order.ID != "" {
		t.Errorf("unexpected placement %+v", placement)
	}
	if len(env.cart.Snapshot().Items) != 1 {
		t.Error("cart must be untouched")
	}
}

func TestPlaceOrderFailureDoesNotAdvance(t *testing.T) {
	env := setupEnv(t)
	readyForReview(t, env)
	env.fillCart(t)
	env.shop.Fail(fakeshop.Route(http.MethodPost, "/api/orders"), http.StatusInternalServerError, "Order service unavailable")

	placement, err := env.checkout.PlaceOrder(context.Background())
	if !errors.Is(err, apperr.ErrServer) {
		t.Fatalf("expected server error, got %v", err)
	}
	if apperr.UserMessage(err) != "Order service unavailable" {
		t.Errorf("UserMessage() = %q", apperr.UserMessage(err))
	}
	if placement.Decision != (session.Decision{}) {
		t.Errorf("failed placement must not navigate: %+v", placement.Decision)
	}
	if len(env.cart.Snapshot().Items) != 1 {
		t.Error("cart must keep its items")
	}
}

func TestPlaceOrderExpiredSessionRedirectsToLogin(t *testing.T) {
	env := setupEnv(t)
	readyForReview(t, env)
	env.fillCart(t)
	env.shop.Fail(fakeshop.Route(http.MethodPost, "/api/orders"), http.StatusUnauthorized, "Not authorized, token failed")

	if _, err := env.checkout.PlaceOrder(context.Background()); !errors.Is(err, apperr.ErrAuth) {
		t.Fatalf("expected auth error, got %v", err)
	}
	d := env.checkout.Guard().Enter(StepReview, "")
	if d.Redirect != "/login?redirect=/placeorder" {
		t.Errorf("after 401 Enter() = %+v", d)
	}
}

type fakeProvider struct {
	clientID   string
	amount     decimal.Decimal
	createErr  error
	captureErr error
}

func (p *fakeProvider) CreateOrderIntent(ctx context.Context, clientID string, amount decimal.Decimal) (string, error) {
	p.clientID = clientID
	p.amount = amount
	if p.createErr != nil {
		return "", p.createErr
	}
	return "intent-1", nil
}

func (p *fakeProvider) CaptureOrderIntent(ctx context.Context, intentToken string) (models.PaymentCapture, error) {
	if p.captureErr != nil {
		return models.PaymentCapture{}, p.captureErr
	}
	return models.PaymentCapture{
		ID:         intentToken,
		Status:     "COMPLETED",
		UpdateTime: "2026-10-15T12:00:00Z",
		Payer:      models.Payer{EmailAddress: "ann@example.com"},
	}, nil
}

func placeOrder(t *testing.T, env *testEnv) models.Order {
	t.Helper()
	readyForReview(t, env)
	env.fillCart(t)
	placement, err := env.checkout.PlaceOrder(context.Background())
	if err != nil {
		t.Fatalf("PlaceOrder failed: %v", err)
	}
	return placement.Order
}

func TestPay(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()
	order := placeOrder(t, env)

	// Load the order view first so the paid state has to come from a refetch.
	if _, err := env.svc.Orders.GetOrderDetails(ctx, order.ID); err != nil {
		t.Fatalf("GetOrderDetails failed: %v", err)
	}

	provider := &fakeProvider{}
	result := env.checkout.Pay(ctx, order.ID, provider)
	if result.Outcome != PaymentPaid || result.Err != nil {
		t.Fatalf("Pay() = %s, %v", result.Outcome, result.Err)
	}
	if !result.Order.IsPaid || result.Order.PaidAt == "" {
		t.Errorf("order not refreshed as paid: %+v", result.Order)
	}
	if provider.clientID != fakeshop.PayPalClientID {
		t.Errorf("provider client id = %q", provider.clientID)
	}
	if !provider.amount.Equal(decimal.RequireFromString("50.80")) {
		t.Errorf("provider amount = %s", provider.amount)
	}
	if n := env.shop.Calls(fakeshop.Route(http.MethodGet, "/api/orders/{id}")); n != 2 {
		t.Errorf("expected order details to be fetched twice, got %d", n)
	}

	// Paying again is a no-op.
	again := env.checkout.Pay(ctx, order.ID, &fakeProvider{createErr: errors.New("must not be called")})
	if again.Outcome != PaymentPaid {
		t.Errorf("second Pay() = %s, %v", again.Outcome, again.Err)
	}
}

func TestPayFailures(t *testing.T) {
	tests := []struct {
		name     string
		provider *fakeProvider
		payFails bool
		want     PaymentOutcome
	}{
		{name: "cancelled", provider: &fakeProvider{createErr: ErrPaymentCancelled}, want: PaymentCancelled},
		{name: "provider error", provider: &fakeProvider{captureErr: errors.New("card declined")}, want: PaymentFailed},
		{name: "mark paid fails", provider: &fakeProvider{}, payFails: true, want: PaymentFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := setupEnv(t)
			order := placeOrder(t, env)
			if tt.payFails {
				env.shop.Fail(fakeshop.Route(http.MethodPut, "/api/orders/{id}/pay"), http.StatusInternalServerError, "")
			}

			result := env.checkout.Pay(context.Background(), order.ID, tt.provider)
			if result.Outcome != tt.want {
				t.Fatalf("Outcome = %s, want %s", result.Outcome, tt.want)
			}
			if result.Err == nil {
				t.Error("expected an error")
			}
			stored, _ := env.shop.Order(order.ID)
			if stored.IsPaid || result.Order.IsPaid {
				t.Error("order must stay unpaid")
			}
		})
	}
}

func TestPayUnknownOrder(t *testing.T) {
	env := setupEnv(t)
	env.signIn(t)

	result := env.checkout.Pay(context.Background(), "missing", &fakeProvider{})
	if result.Outcome != PaymentFailed || apperr.UserMessage(result.Err) != "Order not found" {
		t.Errorf("Pay() = %s, %v", result.Outcome, result.Err)
	}
}
