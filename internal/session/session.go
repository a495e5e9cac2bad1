// Package session owns the authenticated identity and the capability checks
// that gate views on it.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mmynk/storefront/internal/auth"
	"github.com/mmynk/storefront/internal/models"
	"github.com/mmynk/storefront/internal/storage"
)

// Store holds the current identity, or none for a guest, and mirrors it to
// durable storage under storage.IdentityKey.
type Store struct {
	mu       sync.RWMutex
	storage  storage.Store
	identity *models.Identity
	now      func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the clock used to judge token expiry.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// Load restores the persisted identity. A missing, unreadable or expired
// identity leaves the session as a guest; the latter two are also removed
// from storage.
func Load(ctx context.Context, st storage.Store, opts ...Option) (*Store, error) {
	s := &Store{storage: st, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}

	data, err := st.Get(ctx, storage.IdentityKey)
	if errors.Is(err, storage.ErrNotFound) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load identity: %w", err)
	}

	var restored models.Identity
	if err := json.Unmarshal(data, &restored); err != nil {
		slog.Warn("Discarding unreadable persisted identity", "error", err)
		return s, s.discard(ctx)
	}
	if auth.Expired(restored.Token, s.now()) {
		slog.Info("Persisted identity expired, starting as guest", "user_id", restored.UserID)
		return s, s.discard(ctx)
	}

	s.identity = &restored
	slog.Debug("Identity restored", "user_id", restored.UserID, "is_admin", restored.IsAdmin)
	return s, nil
}

func (s *Store) discard(ctx context.Context) error {
	if err := s.storage.Delete(ctx, storage.IdentityKey); err != nil {
		return fmt.Errorf("failed to delete identity: %w", err)
	}
	return nil
}

// Identity returns a copy of the current identity, or nil for a guest.
func (s *Store) Identity() *models.Identity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.identity == nil {
		return nil
	}
	id := *s.identity
	return &id
}

// Token returns the bearer credential, or "" for a guest.
func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.identity == nil {
		return ""
	}
	return s.identity.Token
}

// SetIdentity stores identity and persists it. On a persistence failure the
// previous identity is kept.
func (s *Store) SetIdentity(ctx context.Context, identity models.Identity) error {
	data, err := json.Marshal(identity)
	if err != nil {
		return fmt.Errorf("failed to encode identity: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.storage.Put(ctx, storage.IdentityKey, data); err != nil {
		return fmt.Errorf("failed to persist identity: %w", err)
	}
	s.identity = &identity

	slog.Info("Session started", "user_id", identity.UserID, "is_admin", identity.IsAdmin)
	return nil
}

// Clear ends the session. The in-memory identity is always dropped so that
// no further call carries the credential; a failure to remove the persisted
// copy is still returned.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.identity != nil {
		slog.Info("Session cleared", "user_id", s.identity.UserID)
	}
	s.identity = nil

	return s.discard(ctx)
}
