// Package service exposes the storefront endpoints as typed operations over
// the request cache.
package service

import (
	"time"

	"github.com/mmynk/storefront/internal/cache"
)

// Tag types provided by queries and invalidated by mutations.
const (
	TagProduct = "Product"
	TagOrder   = "Order"
	TagUser    = "User"
)

// KeepAlive holds the eviction windows for cached queries.
type KeepAlive struct {
	// Volatile applies to catalog and order data.
	Volatile time.Duration

	// Config applies to rarely-changing configuration.
	Config time.Duration
}

// DefaultKeepAlive keeps volatile data for 5 seconds and configuration for
// 5 minutes after the last subscriber detaches.
var DefaultKeepAlive = KeepAlive{
	Volatile: 5 * time.Second,
	Config:   5 * time.Minute,
}

func (k KeepAlive) orDefault() KeepAlive {
	if k.Volatile <= 0 {
		k.Volatile = DefaultKeepAlive.Volatile
	}
	if k.Config <= 0 {
		k.Config = DefaultKeepAlive.Config
	}
	return k
}

// Services groups the endpoint catalogue over one cache.
type Services struct {
	Products *ProductService
	Orders   *OrderService
	Users    *UserService
}

// New wires all services over c. Users share sessions with the rest of
// the client through sessions.
func New(c *cache.Cache, sessions SessionWriter, keepAlive KeepAlive) *Services {
	return &Services{
		Products: NewProductService(c, keepAlive),
		Orders:   NewOrderService(c, keepAlive),
		Users:    NewUserService(c, sessions),
	}
}
