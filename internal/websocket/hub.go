package websocket

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gatehousehq/gatehouse/internal/model"
)

// Event is a lobby activity notification pushed to every connected dashboard.
type Event struct {
	Type   string         `json:"type"`
	Entity string         `json:"entity"`
	Action string         `json:"action"`
	ID     int64          `json:"id,omitempty"`
	Extra  map[string]any `json:"extra,omitempty"`
}

// NewEvent creates an Event with the Type field derived from entity and action.
func NewEvent(entity, action string, id int64, extra map[string]any) Event {
	return Event{
		Type:   fmt.Sprintf("%s_%s", entity, action),
		Entity: entity,
		Action: action,
		ID:     id,
		Extra:  extra,
	}
}

// VisitCheckedIn announces a completed check-in.
func VisitCheckedIn(v *model.Visit, guestName string, overridden bool) Event {
	extra := map[string]any{
		"guest_name": guestName,
		"host_id":    v.HostID,
		"public_id":  v.PublicID,
	}
	if overridden {
		extra["override"] = true
	}
	return NewEvent("visit", "checkin", v.ID, extra)
}

// VisitCheckedOut announces a checkout.
func VisitCheckedOut(v *model.Visit) Event {
	return NewEvent("visit", "checkout", v.ID, map[string]any{
		"host_id":   v.HostID,
		"public_id": v.PublicID,
	})
}

// GuestBlacklisted announces a blacklist change for a guest.
func GuestBlacklisted(guestID int64, blacklisted bool) Event {
	action := "blacklisted"
	if !blacklisted {
		action = "unblacklisted"
	}
	return NewEvent("guest", action, guestID, nil)
}

// PolicyUpdated announces new admission limits.
func PolicyUpdated(p *model.Policy) Event {
	return NewEvent("policy", "updated", 0, map[string]any{
		"guest_monthly_limit":   p.GuestMonthlyLimit,
		"host_concurrent_limit": p.HostConcurrentLimit,
	})
}

// Hub maintains the set of active WebSocket clients and broadcasts events.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	logger  *slog.Logger
}

// NewHub creates a new Hub.
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients: make(map[*Client]struct{}),
		logger:  logger,
	}
}

// Register adds a client to the hub.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
}

// Unregister removes a client from the hub and closes its send channel.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}

// Broadcast sends an event to all connected clients.
func (h *Hub) Broadcast(ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		h.logger.Error("marshal broadcast", "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			// Client buffer full — drop event to avoid blocking
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
