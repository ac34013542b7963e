package handler

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/gatehousehq/gatehouse/internal/store"
	"github.com/gatehousehq/gatehouse/internal/websocket"
)

type PolicyHandler struct {
	policies *store.PolicyStore
	hub      *websocket.Hub
}

func NewPolicyHandler(ps *store.PolicyStore, hub *websocket.Hub) *PolicyHandler {
	return &PolicyHandler{policies: ps, hub: hub}
}

func (h *PolicyHandler) Get(w http.ResponseWriter, r *http.Request) {
	policy, err := h.policies.Get()
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to get policy"})
		return
	}
	writeJSON(w, http.StatusOK, policy)
}

type policyRequest struct {
	GuestMonthlyLimit   int `json:"guest_monthly_limit"`
	HostConcurrentLimit int `json:"host_concurrent_limit"`
}

// Update replaces both limits in one call. All-or-nothing: a request with an
// out-of-range limit changes neither.
func (h *PolicyHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req policyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	policy, err := h.policies.Update(req.GuestMonthlyLimit, req.HostConcurrentLimit)
	if errors.Is(err, store.ErrInvalidPolicy) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limits must be positive"})
		return
	}
	if err != nil {
		log.Printf("failed to update policy: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to update policy"})
		return
	}

	h.hub.Broadcast(websocket.PolicyUpdated(policy))
	writeJSON(w, http.StatusOK, policy)
}
