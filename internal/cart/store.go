package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/mmynk/storefront/internal/apperr"
	"github.com/mmynk/storefront/internal/models"
	"github.com/mmynk/storefront/internal/storage"
)

// ErrEmpty is returned when an order is submitted from a cart without items.
var ErrEmpty = apperr.Validation("Your cart is empty")

// Store owns the cart aggregate. Every mutation is persisted before it
// becomes visible to readers; if persisting fails the previous state is
// kept and the error is returned.
type Store struct {
	mu      sync.Mutex
	storage storage.Store
	cart    models.Cart
}

// Load restores the cart from durable storage, or starts empty when
// nothing (or something unreadable) is stored.
func Load(ctx context.Context, st storage.Store) (*Store, error) {
	s := &Store{storage: st, cart: Empty()}

	data, err := st.Get(ctx, storage.CartKey)
	if errors.Is(err, storage.ErrNotFound) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load cart: %w", err)
	}

	var restored models.Cart
	if err := json.Unmarshal(data, &restored); err != nil {
		slog.Warn("Discarding unreadable persisted cart", "error", err)
		return s, nil
	}
	s.cart = reprice(restored)

	slog.Debug("Cart restored", "items", len(s.cart.Items), "total", s.cart.GrandTotal)
	return s, nil
}

// Snapshot returns a copy of the current cart.
func (s *Store) Snapshot() models.Cart {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cart.Clone()
}

// AddItem puts item in the cart with quantity qty, replacing any line with
// the same ID. qty must be at least 1.
func (s *Store) AddItem(ctx context.Context, item models.CartItem, qty int) (models.Cart, error) {
	return s.apply(ctx, "add_item", func(c models.Cart) models.Cart {
		return ApplyAddItem(c, item, qty)
	})
}

// RemoveItem removes the line with the given ID; absent IDs are a no-op.
func (s *Store) RemoveItem(ctx context.Context, id string) (models.Cart, error) {
	return s.apply(ctx, "remove_item", func(c models.Cart) models.Cart {
		return ApplyRemoveItem(c, id)
	})
}

// SetShippingAddress records the shipping address.
func (s *Store) SetShippingAddress(ctx context.Context, addr models.ShippingAddress) (models.Cart, error) {
	return s.apply(ctx, "set_shipping_address", func(c models.Cart) models.Cart {
		return ApplyShippingAddress(c, addr)
	})
}

// SetPaymentMethod records the payment method.
func (s *Store) SetPaymentMethod(ctx context.Context, method string) (models.Cart, error) {
	return s.apply(ctx, "set_payment_method", func(c models.Cart) models.Cart {
		return ApplyPaymentMethod(c, method)
	})
}

// Clear empties the cart items.
func (s *Store) Clear(ctx context.Context) (models.Cart, error) {
	return s.apply(ctx, "clear", ApplyClear)
}

func (s *Store) apply(ctx context.Context, op string, transition func(models.Cart) models.Cart) (models.Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := transition(s.cart.Clone())

	data, err := json.Marshal(next)
	if err != nil {
		return s.cart.Clone(), fmt.Errorf("failed to encode cart: %w", err)
	}
	if err := s.storage.Put(ctx, storage.CartKey, data); err != nil {
		slog.Error("Cart mutation not persisted", "op", op, "error", err)
		return s.cart.Clone(), fmt.Errorf("failed to persist cart: %w", err)
	}

	s.cart = next
	slog.Debug("Cart updated",
		"op", op,
		"items", len(next.Items),
		"subtotal", next.ItemsSubtotal,
		"total", next.GrandTotal,
	)
	return next.Clone(), nil
}
