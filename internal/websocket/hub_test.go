package websocket

import (
	"encoding/json"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/gatehousehq/gatehouse/internal/model"
)

// mockClient creates a Client with a send channel but no real connection.
func mockClient(hub *Hub) *Client {
	return &Client{
		hub:  hub,
		conn: nil,
		send: make(chan []byte, sendBufferSize),
	}
}

func TestRegisterUnregister(t *testing.T) {
	hub := NewHub(slog.Default())

	c1 := mockClient(hub)
	c2 := mockClient(hub)

	hub.Register(c1)
	hub.Register(c2)

	if got := hub.ClientCount(); got != 2 {
		t.Fatalf("expected 2 clients, got %d", got)
	}

	hub.Unregister(c1)

	if got := hub.ClientCount(); got != 1 {
		t.Fatalf("expected 1 client after unregister, got %d", got)
	}

	hub.Unregister(c2)

	if got := hub.ClientCount(); got != 0 {
		t.Fatalf("expected 0 clients, got %d", got)
	}
}

func TestDoubleUnregister(t *testing.T) {
	hub := NewHub(slog.Default())
	c := mockClient(hub)
	hub.Register(c)
	hub.Unregister(c)
	// Should not panic
	hub.Unregister(c)

	if got := hub.ClientCount(); got != 0 {
		t.Fatalf("expected 0 clients, got %d", got)
	}
}

func TestBroadcast(t *testing.T) {
	hub := NewHub(slog.Default())

	c1 := mockClient(hub)
	c2 := mockClient(hub)
	hub.Register(c1)
	hub.Register(c2)

	visit := &model.Visit{ID: 42, HostID: 7, PublicID: "v-abc"}
	hub.Broadcast(VisitCheckedIn(visit, "Alice", false))

	// Check both clients received the event
	for _, c := range []*Client{c1, c2} {
		select {
		case data := <-c.send:
			var got Event
			if err := json.Unmarshal(data, &got); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if got.Type != "visit_checkin" {
				t.Errorf("expected type visit_checkin, got %s", got.Type)
			}
			if got.ID != 42 {
				t.Errorf("expected id 42, got %d", got.ID)
			}
			if got.Extra["guest_name"] != "Alice" {
				t.Errorf("expected guest_name Alice, got %v", got.Extra["guest_name"])
			}
			if _, ok := got.Extra["override"]; ok {
				t.Error("non-overridden check-in should not carry the override flag")
			}
		case <-time.After(100 * time.Millisecond):
			t.Fatal("timeout waiting for event")
		}
	}

	hub.Unregister(c1)
	hub.Unregister(c2)
}

func TestBroadcastEmptyHub(t *testing.T) {
	hub := NewHub(slog.Default())
	// Should not panic
	hub.Broadcast(GuestBlacklisted(1, true))
}

func TestBroadcastFullBuffer(t *testing.T) {
	hub := NewHub(slog.Default())

	c := mockClient(hub)
	hub.Register(c)

	// Fill the send buffer
	for i := 0; i < sendBufferSize; i++ {
		hub.Broadcast(NewEvent("visit", "checkin", int64(i), nil))
	}

	// This should drop the event, not panic or block
	hub.Broadcast(NewEvent("visit", "checkin", 999, nil))

	// Drain to verify buffer was full
	count := 0
	for {
		select {
		case <-c.send:
			count++
		default:
			goto done
		}
	}
done:
	if count != sendBufferSize {
		t.Errorf("expected %d events, got %d", sendBufferSize, count)
	}

	hub.Unregister(c)
}

func TestEventConstructors(t *testing.T) {
	out := VisitCheckedOut(&model.Visit{ID: 5, HostID: 2, PublicID: "v-xyz"})
	if out.Type != "visit_checkout" {
		t.Errorf("expected type visit_checkout, got %s", out.Type)
	}
	if out.Extra["public_id"] != "v-xyz" {
		t.Errorf("expected public_id v-xyz, got %v", out.Extra["public_id"])
	}

	un := GuestBlacklisted(9, false)
	if un.Type != "guest_unblacklisted" {
		t.Errorf("expected type guest_unblacklisted, got %s", un.Type)
	}

	pol := PolicyUpdated(&model.Policy{GuestMonthlyLimit: 4, HostConcurrentLimit: 3})
	if pol.Type != "policy_updated" {
		t.Errorf("expected type policy_updated, got %s", pol.Type)
	}
	if pol.Extra["host_concurrent_limit"] != 3 {
		t.Errorf("expected limit 3, got %v", pol.Extra["host_concurrent_limit"])
	}

	over := VisitCheckedIn(&model.Visit{ID: 1, HostID: 2}, "Bob", true)
	if over.Extra["override"] != true {
		t.Error("expected override flag on overridden check-in")
	}
}

func TestConcurrentAccess(t *testing.T) {
	hub := NewHub(slog.Default())
	var wg sync.WaitGroup

	// Spawn goroutines that register, broadcast, and unregister concurrently
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c := mockClient(hub)
			hub.Register(c)
			hub.Broadcast(NewEvent("visit", "checkin", 0, nil))
			// Drain any events
			for {
				select {
				case <-c.send:
				default:
					hub.Unregister(c)
					return
				}
			}
		}()
	}

	wg.Wait()

	if got := hub.ClientCount(); got != 0 {
		t.Errorf("expected 0 clients after concurrent test, got %d", got)
	}
}
