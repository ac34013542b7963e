package store

import (
	"testing"
	"time"
)

func TestRewardEventIdempotent(t *testing.T) {
	db := setupTestDB(t)
	gs, rs := NewGuestStore(db), NewRewardStore(db)

	g, err := gs.Upsert("erin@example.com", "Erin")
	if err != nil {
		t.Fatalf("upsert guest: %v", err)
	}

	now := time.Now().UTC()
	e, err := rs.Create(g.ID, 3, now)
	if err != nil {
		t.Fatalf("create reward event: %v", err)
	}
	if e == nil {
		t.Fatal("expected reward event row")
	}

	// Retrying the same milestone returns no new row
	dup, err := rs.Create(g.ID, 3, now.Add(time.Minute))
	if err != nil {
		t.Fatalf("duplicate create: %v", err)
	}
	if dup != nil {
		t.Error("expected duplicate create to be a no-op")
	}

	got, err := rs.Get(g.ID, 3)
	if err != nil {
		t.Fatalf("get reward event: %v", err)
	}
	if got == nil || got.ID != e.ID {
		t.Fatalf("expected single event %d, got %+v", e.ID, got)
	}
}

func TestRewardEventMarkNotified(t *testing.T) {
	db := setupTestDB(t)
	gs, rs := NewGuestStore(db), NewRewardStore(db)

	g, err := gs.Upsert("frank@example.com", "Frank")
	if err != nil {
		t.Fatalf("upsert guest: %v", err)
	}

	e, err := rs.Create(g.ID, 3, time.Now().UTC())
	if err != nil {
		t.Fatalf("create reward event: %v", err)
	}
	if e.NotificationSent {
		t.Error("notification_sent should start false")
	}

	if err := rs.MarkNotified(e.ID); err != nil {
		t.Fatalf("mark notified: %v", err)
	}
	got, err := rs.Get(g.ID, 3)
	if err != nil {
		t.Fatalf("get reward event: %v", err)
	}
	if !got.NotificationSent {
		t.Error("expected notification_sent set")
	}
}
