package session

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/mmynk/storefront/internal/auth"
	"github.com/mmynk/storefront/internal/models"
	"github.com/mmynk/storefront/internal/storage"
	"github.com/mmynk/storefront/internal/storage/memory"
	"github.com/mmynk/storefront/internal/storage/sqlite"
)

func setupSQLite(t *testing.T) (storage.Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "session.db")
	st, err := sqlite.New(path)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	return st, path
}

func issue(t *testing.T, ttl time.Duration, id models.Identity) models.Identity {
	t.Helper()
	token, err := auth.NewJWTManager("session-test", ttl).Generate(id)
	if err != nil {
		t.Fatalf("failed to issue token: %v", err)
	}
	id.Token = token
	return id
}

func TestIdentitySurvivesRestart(t *testing.T) {
	ctx := context.Background()
	st, path := setupSQLite(t)

	s, err := Load(ctx, st)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if s.Identity() != nil {
		t.Fatal("expected guest session on empty storage")
	}

	want := issue(t, time.Hour, models.Identity{UserID: "u1", Name: "Ann", Email: "ann@example.com"})
	if err := s.SetIdentity(ctx, want); err != nil {
		t.Fatalf("SetIdentity failed: %v", err)
	}
	st.Close()

	reopened, err := sqlite.New(path)
	if err != nil {
		t.Fatalf("failed to reopen store: %v", err)
	}
	defer reopened.Close()

	restored, err := Load(ctx, reopened)
	if err != nil {
		t.Fatalf("Load after restart failed: %v", err)
	}
	got := restored.Identity()
	if got == nil || *got != want {
		t.Fatalf("restored identity = %+v, want %+v", got, want)
	}
	if restored.Token() != want.Token {
		t.Errorf("Token() = %q, want %q", restored.Token(), want.Token)
	}
}

func TestLoadDiscards(t *testing.T) {
	tests := []struct {
		name string
		data func(t *testing.T) []byte
	}{
		{
			name: "expired token",
			data: func(t *testing.T) []byte {
				id := issue(t, -time.Minute, models.Identity{UserID: "u1"})
				return []byte(`{"_id":"u1","token":"` + id.Token + `"}`)
			},
		},
		{
			name: "unreadable json",
			data: func(t *testing.T) []byte { return []byte("{not json") },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			st := memory.New()
			if err := st.Put(ctx, storage.IdentityKey, tt.data(t)); err != nil {
				t.Fatalf("Put failed: %v", err)
			}

			s, err := Load(ctx, st)
			if err != nil {
				t.Fatalf("Load failed: %v", err)
			}
			if s.Identity() != nil {
				t.Error("expected guest session")
			}
			if _, err := st.Get(ctx, storage.IdentityKey); !errors.Is(err, storage.ErrNotFound) {
				t.Errorf("expected persisted identity to be removed, got %v", err)
			}
		})
	}
}

func TestOpaqueTokenIsKept(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	if err := st.Put(ctx, storage.IdentityKey, []byte(`{"_id":"u1","token":"opaque"}`)); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	s, err := Load(ctx, st)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if s.Token() != "opaque" {
		t.Errorf("Token() = %q, want opaque", s.Token())
	}
}

func TestClear(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	s, err := Load(ctx, st)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if err := s.SetIdentity(ctx, models.Identity{UserID: "u1", Token: "t"}); err != nil {
		t.Fatalf("SetIdentity failed: %v", err)
	}

	if err := s.Clear(ctx); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if s.Identity() != nil || s.Token() != "" {
		t.Error("expected guest session after Clear")
	}
	if _, err := st.Get(ctx, storage.IdentityKey); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected persisted identity to be removed, got %v", err)
	}

	// Clearing a guest session is a no-op.
	if err := s.Clear(ctx); err != nil {
		t.Errorf("second Clear failed: %v", err)
	}
}

type failingStorage struct {
	*memory.Store
}

func (failingStorage) Put(context.Context, string, []byte) error {
	return errors.New("disk full")
}

func TestSetIdentityKeepsPreviousOnFailure(t *testing.T) {
	ctx := context.Background()
	s, err := Load(ctx, failingStorage{memory.New()})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if err := s.SetIdentity(ctx, models.Identity{UserID: "u1"}); err == nil {
		t.Fatal("expected SetIdentity to fail")
	}
	if s.Identity() != nil {
		t.Error("identity must not change when persisting fails")
	}
}

func TestIdentityReturnsCopy(t *testing.T) {
	ctx := context.Background()
	s, err := Load(ctx, memory.New())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if err := s.SetIdentity(ctx, models.Identity{UserID: "u1", IsAdmin: false}); err != nil {
		t.Fatalf("SetIdentity failed: %v", err)
	}

	s.Identity().IsAdmin = true
	if s.Identity().IsAdmin {
		t.Error("mutating the returned identity must not change the session")
	}
}
