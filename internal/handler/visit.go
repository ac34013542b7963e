package handler

import (
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gatehousehq/gatehouse/internal/model"
	"github.com/gatehousehq/gatehouse/internal/store"
	"github.com/gatehousehq/gatehouse/internal/websocket"
)

type VisitHandler struct {
	visits *store.VisitStore
	hub    *websocket.Hub
}

func NewVisitHandler(vs *store.VisitStore, hub *websocket.Hub) *VisitHandler {
	return &VisitHandler{visits: vs, hub: hub}
}

// Active lists open visits, optionally scoped to one host via ?host_id=.
func (h *VisitHandler) Active(w http.ResponseWriter, r *http.Request) {
	now := time.Now().UTC()

	var visits []model.Visit
	var err error
	if param := r.URL.Query().Get("host_id"); param != "" {
		hostID, perr := strconv.ParseInt(param, 10, 64)
		if perr != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid host_id"})
			return
		}
		visits, err = h.visits.ActiveByHost(hostID, now)
	} else {
		visits, err = h.visits.Active(now)
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to list visits"})
		return
	}
	if visits == nil {
		visits = []model.Visit{}
	}
	writeJSON(w, http.StatusOK, visits)
}

func (h *VisitHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	visit, err := h.visits.GetByID(id)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to get visit"})
		return
	}
	if visit == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "visit not found"})
		return
	}
	writeJSON(w, http.StatusOK, visit)
}

// Checkout closes an open visit. Checking out twice is a conflict, not an
// idempotent no-op: the kiosk should know the visit was already closed.
func (h *VisitHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	visit, err := h.visits.GetByID(id)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to get visit"})
		return
	}
	if visit == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "visit not found"})
		return
	}

	err = h.visits.Checkout(id, time.Now().UTC())
	if errors.Is(err, store.ErrAlreadyCheckedOut) {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "visit already checked out"})
		return
	}
	if err != nil {
		log.Printf("failed to checkout visit %d: %v", id, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to checkout visit"})
		return
	}

	visit, err = h.visits.GetByID(id)
	if err != nil || visit == nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to reload visit"})
		return
	}

	h.hub.Broadcast(websocket.VisitCheckedOut(visit))
	writeJSON(w, http.StatusOK, visit)
}
