package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ChelseaChanu/taskSync/internal/store"
)

// exerciseSessionStore checks save, isolation and revoke on any Store.
func exerciseSessionStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()
	expiresAt := time.Now().Add(24 * time.Hour)

	if err := s.SaveRefreshSession(ctx, "token-1", "user-1", expiresAt); err != nil {
		t.Fatalf("SaveRefreshSession 1 failed: %v", err)
	}
	if err := s.SaveRefreshSession(ctx, "token-2", "user-2", expiresAt); err != nil {
		t.Fatalf("SaveRefreshSession 2 failed: %v", err)
	}

	for token, want := range map[string]string{"token-1": "user-1", "token-2": "user-2"} {
		got, err := s.LookupRefreshSession(ctx, token)
		if err != nil {
			t.Fatalf("LookupRefreshSession(%s) failed: %v", token, err)
		}
		if got != want {
			t.Fatalf("LookupRefreshSession(%s) = %q, want %q", token, got, want)
		}
	}

	if err := s.RevokeRefreshSession(ctx, "token-1"); err != nil {
		t.Fatalf("Revoke token-1 failed: %v", err)
	}
	if _, err := s.LookupRefreshSession(ctx, "token-1"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("LookupRefreshSession(token-1) error = %v, want ErrSessionNotFound", err)
	}
	if _, err := s.LookupRefreshSession(ctx, "token-2"); err != nil {
		t.Fatalf("token-2 should survive revoking token-1: %v", err)
	}
	if _, err := s.LookupRefreshSession(ctx, "never-issued"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("LookupRefreshSession(never-issued) error = %v, want ErrSessionNotFound", err)
	}
}

func newDocumentSessions(t *testing.T) *DocumentStore {
	t.Helper()
	ctx := context.Background()
	db, err := store.OpenSQLite(ctx, ":memory:")
	if err != nil {
		t.Fatalf("OpenSQLite() error = %v", err)
	}
	docs, err := store.NewSQLiteStore(ctx, db)
	if err != nil {
		t.Fatalf("NewSQLiteStore() error = %v", err)
	}
	t.Cleanup(func() { _ = docs.Close() })
	return NewDocumentStore(docs)
}

func TestDocumentStoreLifecycle(t *testing.T) {
	exerciseSessionStore(t, newDocumentSessions(t))
}

func TestDocumentStoreExpiry(t *testing.T) {
	s := newDocumentSessions(t)
	ctx := context.Background()
	now := time.Now()
	s.now = func() time.Time { return now }

	if err := s.SaveRefreshSession(ctx, "token", "user-1", now.Add(time.Hour)); err != nil {
		t.Fatalf("SaveRefreshSession failed: %v", err)
	}
	if _, err := s.LookupRefreshSession(ctx, "token"); err != nil {
		t.Fatalf("LookupRefreshSession before expiry failed: %v", err)
	}

	now = now.Add(2 * time.Hour)
	if _, err := s.LookupRefreshSession(ctx, "token"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("LookupRefreshSession after expiry error = %v, want ErrSessionNotFound", err)
	}
}
