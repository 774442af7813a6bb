package state

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(0)

	if _, err := store.Get(ctx, 1); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	s := NewSession(1, "awaiting_amount")
	s.Set("payment_reference", "h1")
	if err := store.Save(ctx, s); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := store.Get(ctx, 1)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.State != "awaiting_amount" {
		t.Fatalf("state = %q", got.State)
	}
	if v, _ := got.Value("payment_reference"); v != "h1" {
		t.Fatalf("payment_reference = %q", v)
	}

	// Returned sessions are copies.
	got.Set("payment_reference", "mutated")
	again, _ := store.Get(ctx, 1)
	if v, _ := again.Value("payment_reference"); v != "h1" {
		t.Fatalf("store shares data with caller: %q", v)
	}

	if err := store.Clear(ctx, 1); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if _, err := store.Get(ctx, 1); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after clear, got %v", err)
	}
}

func TestMemoryStoreExpires(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	store := NewMemoryStore(time.Minute).(*memoryStore)
	store.now = func() time.Time { return now }

	if err := store.Save(ctx, NewSession(7, "start")); err != nil {
		t.Fatalf("save: %v", err)
	}
	now = now.Add(30 * time.Second)
	if _, err := store.Get(ctx, 7); err != nil {
		t.Fatalf("session expired too early: %v", err)
	}
	now = now.Add(2 * time.Minute)
	if _, err := store.Get(ctx, 7); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected expiry, got %v", err)
	}
}

func TestMemoryStoreSweepsAbandonedSessions(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	store := NewMemoryStore(time.Minute).(*memoryStore)
	store.now = func() time.Time { return now }

	_ = store.Save(ctx, NewSession(1, "awaiting_amount"))
	_ = store.Save(ctx, NewSession(2, "awaiting_amount"))

	now = now.Add(50 * time.Second)
	_ = store.Save(ctx, NewSession(2, "awaiting_card_details"))

	// User 1 never comes back; nobody calls Get for it.
	now = now.Add(50 * time.Second)
	_ = store.Save(ctx, NewSession(3, "start"))

	store.mu.RLock()
	_, abandoned := store.sessions[1]
	n := len(store.sessions)
	store.mu.RUnlock()
	if abandoned || n != 2 {
		t.Fatalf("expected only users 2 and 3 after sweep, abandoned=%v len=%d", abandoned, n)
	}

	// Sweeps are rate limited to once per ttl.
	if removed := store.sweepLocked(now.Add(time.Second)); removed != 0 {
		t.Fatalf("sweep ran again within ttl, removed %d", removed)
	}
}

func TestSessionInt64(t *testing.T) {
	s := NewSession(1, "start")
	s.Set("pending_amount", "1500")
	if n, ok := s.Int64("pending_amount"); !ok || n != 1500 {
		t.Fatalf("Int64 = %d, %v", n, ok)
	}
	s.Set("pending_amount", "")
	if _, ok := s.Int64("pending_amount"); ok {
		t.Fatal("empty value should unset the key")
	}
}
