package service

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/mmynk/storefront/internal/api"
	"github.com/mmynk/storefront/internal/cache"
	"github.com/mmynk/storefront/internal/cart"
	"github.com/mmynk/storefront/internal/models"
)

// OrderService covers the order endpoints. All of them except the payment
// configuration require a session.
type OrderService struct {
	cache     *cache.Cache
	keepAlive KeepAlive
}

// NewOrderService creates an OrderService over c.
func NewOrderService(c *cache.Cache, keepAlive KeepAlive) *OrderService {
	return &OrderService{cache: c, keepAlive: keepAlive.orDefault()}
}

// CreateOrder submits the cart as a new order. An empty cart fails with
// cart.ErrEmpty before any call is made.
func (s *OrderService) CreateOrder(ctx context.Context, c models.Cart) (models.Order, error) {
	slog.Info("CreateOrder request received", "items", len(c.Items), "total", c.GrandTotal)

	if len(c.Items) == 0 {
		return models.Order{}, cart.ErrEmpty
	}

	order, err := api.Decode[models.Order](s.cache.Mutate(ctx,
		cache.Call{Method: http.MethodPost, Endpoint: "/orders", Body: models.NewOrder(c)},
		cache.TypeTag(TagOrder),
	))
	if err != nil {
		slog.Error("CreateOrder failed", "error", err)
		return order, err
	}

	slog.Info("Order created", "order_id", order.ID)
	return order, nil
}

// OrderDetailsRequest is the cache request for one order.
func (s *OrderService) OrderDetailsRequest(id string) cache.Request {
	return cache.Request{
		Endpoint:  "/orders/" + url.PathEscape(id),
		Tags:      []cache.Tag{cache.IDTag(TagOrder, id)},
		KeepAlive: s.keepAlive.Volatile,
	}
}

// GetOrderDetails returns the order with id.
func (s *OrderService) GetOrderDetails(ctx context.Context, id string) (models.Order, error) {
	slog.Info("GetOrderDetails request received", "order_id", id)
	return api.Decode[models.Order](s.cache.Query(ctx, s.OrderDetailsRequest(id)))
}

// MyOrdersRequest is the cache request for the session's order history.
func (s *OrderService) MyOrdersRequest() cache.Request {
	return cache.Request{
		Endpoint:  "/orders/myorders",
		Tags:      []cache.Tag{cache.TypeTag(TagOrder)},
		KeepAlive: s.keepAlive.Volatile,
	}
}

// GetMyOrders returns the session's orders.
func (s *OrderService) GetMyOrders(ctx context.Context) ([]models.Order, error) {
	return api.Decode[[]models.Order](s.cache.Query(ctx, s.MyOrdersRequest()))
}

// PayOrder marks the order paid with the provider's capture result. Only
// that order's cached details are invalidated.
func (s *OrderService) PayOrder(ctx context.Context, id string, capture models.PaymentCapture) (models.Order, error) {
	slog.Info("PayOrder request received", "order_id", id, "capture_id", capture.ID)

	order, err := api.Decode[models.Order](s.cache.Mutate(ctx,
		cache.Call{Method: http.MethodPut, Endpoint: "/orders/" + url.PathEscape(id) + "/pay", Body: capture},
		cache.IDTag(TagOrder, id),
	))
	if err != nil {
		slog.Error("PayOrder failed", "order_id", id, "error", err)
		return order, err
	}

	slog.Info("Order paid", "order_id", id)
	return order, nil
}

// PayPalConfigRequest is the cache request for the payment provider's
// client configuration. It is kept for the long window.
func (s *OrderService) PayPalConfigRequest() cache.Request {
	return cache.Request{
		Endpoint:  "/orders/config/paypal",
		KeepAlive: s.keepAlive.Config,
	}
}

// GetPayPalClientID returns the payment provider's client id.
func (s *OrderService) GetPayPalClientID(ctx context.Context) (string, error) {
	cfg, err := api.Decode[struct {
		ClientID string `json:"clientId"`
	}](s.cache.Query(ctx, s.PayPalConfigRequest()))
	return cfg.ClientID, err
}
