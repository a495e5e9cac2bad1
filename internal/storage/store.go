// Package storage provides abstractions for durable client-side state.
package storage

import (
	"context"
	"errors"
)

// Durable keys used by the client core.
const (
	// CartKey holds the JSON-encoded cart aggregate.
	CartKey = "cart"

	// IdentityKey holds the JSON-encoded identity; absent for guests.
	IdentityKey = "userInfo"
)

// ErrNotFound is returned by Get when the key has no value.
var ErrNotFound = errors.New("key not found")

// Store defines the interface for durable key/value storage.
// This abstraction allows swapping storage backends (SQLite, Redis, memory)
// without changing the cart and session stores.
type Store interface {
	// Get returns the value stored under key.
	// Returns ErrNotFound if the key is absent.
	Get(ctx context.Context, key string) ([]byte, error)

	// Put stores value under key, replacing any previous value.
	Put(ctx context.Context, key string, value []byte) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases any resources held by the store.
	Close() error
}
