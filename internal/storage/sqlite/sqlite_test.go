package sqlite

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/mmynk/storefront/internal/storage"
)

func TestSQLiteStore(t *testing.T) {
	// Create temp directory for test database
	tempDir, err := os.MkdirTemp("", "storefront-test-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tempDir)

	dbPath := filepath.Join(tempDir, "nested", "test.db")
	store, err := New(dbPath)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	defer store.Close()

	ctx := context.Background()

	t.Run("Get returns ErrNotFound for missing key", func(t *testing.T) {
		_, err := store.Get(ctx, "missing")
		if !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("Expected ErrNotFound, got %v", err)
		}
	})

	t.Run("Put then Get round trips", func(t *testing.T) {
		if err := store.Put(ctx, storage.CartKey, []byte(`{"cartItems":[]}`)); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
		got, err := store.Get(ctx, storage.CartKey)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if string(got) != `{"cartItems":[]}` {
			t.Errorf("Value mismatch: got %s", got)
		}
	})

	t.Run("Put overwrites existing value", func(t *testing.T) {
		if err := store.Put(ctx, storage.IdentityKey, []byte(`{"name":"a"}`)); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
		if err := store.Put(ctx, storage.IdentityKey, []byte(`{"name":"b"}`)); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
		got, err := store.Get(ctx, storage.IdentityKey)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if string(got) != `{"name":"b"}` {
			t.Errorf("Expected overwritten value, got %s", got)
		}
	})

	t.Run("Delete removes key and is idempotent", func(t *testing.T) {
		if err := store.Delete(ctx, storage.IdentityKey); err != nil {
			t.Fatalf("Delete failed: %v", err)
		}
		if _, err := store.Get(ctx, storage.IdentityKey); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("Expected ErrNotFound after delete, got %v", err)
		}
		if err := store.Delete(ctx, storage.IdentityKey); err != nil {
			t.Errorf("Second delete failed: %v", err)
		}
	})
}

func TestSQLiteStoreSurvivesReopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "reopen.db")
	ctx := context.Background()

	store, err := New(dbPath)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	if err := store.Put(ctx, storage.CartKey, []byte("persisted")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	store.Close()

	reopened, err := New(dbPath)
	if err != nil {
		t.Fatalf("Failed to reopen store: %v", err)
	}
	defer reopened.Close()

	got, err := reopened.Get(ctx, storage.CartKey)
	if err != nil {
		t.Fatalf("Get after reopen failed: %v", err)
	}
	if string(got) != "persisted" {
		t.Errorf("Expected persisted value, got %s", got)
	}
}
