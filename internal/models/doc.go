// Package models defines the core domain models for the storefront client.
//
// # Client-side state
//
// The following models are owned and persisted by the client:
//   - Cart: the in-progress shopping cart with derived pricing
//   - CartItem: one product line in the cart
//   - ShippingAddress: where the order ships
//   - Identity: the authenticated session record (absent for guests)
//
// # Remote resources
//
// The following models mirror the remote catalog/order service and are
// only ever read from or written to it through the request cache:
//   - Product, ProductPage
//   - Order, OrderItem, PaymentCapture
//
// # Design Principles
//
// 1. **Mirror, not authority**: prices and stock are copied from the
// catalog; the server re-validates everything on order creation.
// 2. **Wire-compatible JSON**: field tags follow the remote service's
// JSON so that a Cart can be posted as an order body and restored from
// durable storage without translation.
// 3. **IDs as strings**: relationships use ID strings, never pointers.
package models
