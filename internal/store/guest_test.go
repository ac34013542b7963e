package store

import (
	"database/sql"
	"testing"
	"time"

	"github.com/gatehousehq/gatehouse/internal/database"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestGuestUpsert(t *testing.T) {
	gs := NewGuestStore(setupTestDB(t))

	g, err := gs.Upsert("alice@example.com", "Alice Chen")
	if err != nil {
		t.Fatalf("upsert guest: %v", err)
	}
	if g.Email != "alice@example.com" {
		t.Errorf("email = %q, want %q", g.Email, "alice@example.com")
	}
	if g.Name != "Alice Chen" {
		t.Errorf("name = %q, want %q", g.Name, "Alice Chen")
	}
	if g.Blacklisted() {
		t.Error("new guest should not be blacklisted")
	}

	// Second upsert with a new display name keeps the same row
	g2, err := gs.Upsert("alice@example.com", "Alice C.")
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if g2.ID != g.ID {
		t.Errorf("id = %d, want %d (same guest)", g2.ID, g.ID)
	}
	if g2.Name != "Alice C." {
		t.Errorf("name = %q, want %q", g2.Name, "Alice C.")
	}
}

func TestGuestBlacklistMarker(t *testing.T) {
	gs := NewGuestStore(setupTestDB(t))

	g, err := gs.Upsert("mallory@example.com", "Mallory")
	if err != nil {
		t.Fatalf("upsert guest: %v", err)
	}

	at := time.Now().UTC()
	if err := gs.SetBlacklisted(g.ID, &at); err != nil {
		t.Fatalf("set blacklisted: %v", err)
	}

	got, err := gs.GetByID(g.ID)
	if err != nil {
		t.Fatalf("get guest: %v", err)
	}
	if !got.Blacklisted() {
		t.Fatal("expected blacklist marker set")
	}

	// Clearing the marker un-bans the guest
	if err := gs.SetBlacklisted(g.ID, nil); err != nil {
		t.Fatalf("clear blacklisted: %v", err)
	}
	got, err = gs.GetByID(g.ID)
	if err != nil {
		t.Fatalf("get guest: %v", err)
	}
	if got.Blacklisted() {
		t.Error("expected blacklist marker cleared")
	}
}

func TestGuestNotFound(t *testing.T) {
	gs := NewGuestStore(setupTestDB(t))

	got, err := gs.GetByEmail("nobody@example.com")
	if err != nil {
		t.Fatalf("get guest: %v", err)
	}
	if got != nil {
		t.Error("expected nil for unknown guest")
	}
}
