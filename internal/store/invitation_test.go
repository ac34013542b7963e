package store

import (
	"testing"
	"time"

	"github.com/gatehousehq/gatehouse/internal/model"
)

func seedGuestAndHost(t *testing.T, gs *GuestStore, hs *HostStore) (*model.Guest, *model.Host) {
	t.Helper()
	g, err := gs.Upsert("dana@example.com", "Dana")
	if err != nil {
		t.Fatalf("upsert guest: %v", err)
	}
	h, err := hs.Create("Acme Corp", "reception@acme.example")
	if err != nil {
		t.Fatalf("create host: %v", err)
	}
	return g, h
}

func TestInvitationStatusMachine(t *testing.T) {
	db := setupTestDB(t)
	gs, hs, is := NewGuestStore(db), NewHostStore(db), NewInvitationStore(db)
	g, h := seedGuestAndHost(t, gs, hs)

	inv, err := is.Create(g.ID, h.ID, time.Now().UTC())
	if err != nil {
		t.Fatalf("create invitation: %v", err)
	}
	if inv.Status != model.InvitationPending {
		t.Errorf("status = %q, want PENDING", inv.Status)
	}

	inv, err = is.Activate(inv.ID)
	if err != nil {
		t.Fatalf("activate: %v", err)
	}
	if inv.Status != model.InvitationActivated {
		t.Errorf("status = %q, want ACTIVATED", inv.Status)
	}

	// Activating twice would be a regression and must fail
	if _, err := is.Activate(inv.ID); err != ErrInvalidTransition {
		t.Errorf("second activate err = %v, want ErrInvalidTransition", err)
	}
}

func TestInvitationExpireStale(t *testing.T) {
	db := setupTestDB(t)
	gs, hs, is := NewGuestStore(db), NewHostStore(db), NewInvitationStore(db)
	g, h := seedGuestAndHost(t, gs, hs)

	now := time.Now().UTC()
	stale, err := is.Create(g.ID, h.ID, now.Add(-72*time.Hour))
	if err != nil {
		t.Fatalf("create stale invitation: %v", err)
	}
	fresh, err := is.Create(g.ID, h.ID, now)
	if err != nil {
		t.Fatalf("create fresh invitation: %v", err)
	}

	n, err := is.ExpireStale(now)
	if err != nil {
		t.Fatalf("expire stale: %v", err)
	}
	if n != 1 {
		t.Errorf("expired %d invitations, want 1", n)
	}

	got, _ := is.GetByID(stale.ID)
	if got.Status != model.InvitationExpired {
		t.Errorf("stale status = %q, want EXPIRED", got.Status)
	}
	got, _ = is.GetByID(fresh.ID)
	if got.Status != model.InvitationPending {
		t.Errorf("fresh status = %q, want PENDING", got.Status)
	}
}

func TestInvitationFindForCheckInPrefersActivated(t *testing.T) {
	db := setupTestDB(t)
	gs, hs, is := NewGuestStore(db), NewHostStore(db), NewInvitationStore(db)
	g, h := seedGuestAndHost(t, gs, hs)

	now := time.Now().UTC()
	pending, err := is.Create(g.ID, h.ID, now)
	if err != nil {
		t.Fatalf("create pending: %v", err)
	}
	activated, err := is.Create(g.ID, h.ID, now)
	if err != nil {
		t.Fatalf("create second: %v", err)
	}
	if _, err := is.Activate(activated.ID); err != nil {
		t.Fatalf("activate: %v", err)
	}

	tx, err := db.Begin()
	if err != nil {
		t.Fatalf("begin tx: %v", err)
	}
	defer tx.Rollback()

	found, err := is.FindForCheckInTx(tx, g.ID, h.ID, now)
	if err != nil {
		t.Fatalf("find for check-in: %v", err)
	}
	if found == nil {
		t.Fatal("expected a match")
	}
	if found.ID != activated.ID {
		t.Errorf("found id = %d, want activated id %d (not pending %d)", found.ID, activated.ID, pending.ID)
	}
}

func TestInvitationFindForCheckInDateWindow(t *testing.T) {
	db := setupTestDB(t)
	gs, hs, is := NewGuestStore(db), NewHostStore(db), NewInvitationStore(db)
	g, h := seedGuestAndHost(t, gs, hs)

	now := time.Now().UTC()
	// Dated yesterday: still within the ±1 day window
	inv, err := is.Create(g.ID, h.ID, now.Add(-20*time.Hour))
	if err != nil {
		t.Fatalf("create invitation: %v", err)
	}
	// Dated last week: outside the window
	if _, err := is.Create(g.ID, h.ID, now.Add(-7*24*time.Hour)); err != nil {
		t.Fatalf("create old invitation: %v", err)
	}

	tx, err := db.Begin()
	if err != nil {
		t.Fatalf("begin tx: %v", err)
	}
	defer tx.Rollback()

	found, err := is.FindForCheckInTx(tx, g.ID, h.ID, now)
	if err != nil {
		t.Fatalf("find for check-in: %v", err)
	}
	if found == nil {
		t.Fatal("expected a match within the date window")
	}
	if found.ID != inv.ID {
		t.Errorf("found id = %d, want %d", found.ID, inv.ID)
	}
}

func TestInvitationCrossHostLookup(t *testing.T) {
	db := setupTestDB(t)
	gs, hs, is := NewGuestStore(db), NewHostStore(db), NewInvitationStore(db)
	g, h := seedGuestAndHost(t, gs, hs)
	other, err := hs.Create("Beta LLC", "front@beta.example")
	if err != nil {
		t.Fatalf("create other host: %v", err)
	}

	now := time.Now().UTC()
	inv, err := is.Create(g.ID, other.ID, now)
	if err != nil {
		t.Fatalf("create invitation: %v", err)
	}

	tx, err := db.Begin()
	if err != nil {
		t.Fatalf("begin tx: %v", err)
	}
	defer tx.Rollback()

	// Host-constrained lookup misses
	found, err := is.FindForCheckInTx(tx, g.ID, h.ID, now)
	if err != nil {
		t.Fatalf("find for check-in: %v", err)
	}
	if found != nil {
		t.Fatal("expected no match under scanning host")
	}

	// Unconstrained fallback finds the other host's invitation
	found, err = is.FindForCheckInAnyHostTx(tx, g.ID, now)
	if err != nil {
		t.Fatalf("find any host: %v", err)
	}
	if found == nil || found.ID != inv.ID {
		t.Fatalf("expected cross-host invitation %d, got %+v", inv.ID, found)
	}
}

func TestInvitationMarkCheckedInForwardOnly(t *testing.T) {
	db := setupTestDB(t)
	gs, hs, is := NewGuestStore(db), NewHostStore(db), NewInvitationStore(db)
	g, h := seedGuestAndHost(t, gs, hs)

	inv, err := is.Create(g.ID, h.ID, time.Now().UTC())
	if err != nil {
		t.Fatalf("create invitation: %v", err)
	}

	tx, err := db.Begin()
	if err != nil {
		t.Fatalf("begin tx: %v", err)
	}
	if err := is.MarkCheckedInTx(tx, inv.ID, 42); err != nil {
		t.Fatalf("mark checked in: %v", err)
	}
	// Consuming again inside the same tx must fail: CHECKED_IN is terminal
	if err := is.MarkCheckedInTx(tx, inv.ID, 43); err != ErrInvalidTransition {
		t.Errorf("second mark err = %v, want ErrInvalidTransition", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	got, _ := is.GetByID(inv.ID)
	if got.Status != model.InvitationCheckedIn {
		t.Errorf("status = %q, want CHECKED_IN", got.Status)
	}
	if got.VisitID == nil || *got.VisitID != 42 {
		t.Errorf("visit_id = %v, want 42", got.VisitID)
	}
}
