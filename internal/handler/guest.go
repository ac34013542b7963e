package handler

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gatehousehq/gatehouse/internal/model"
	"github.com/gatehousehq/gatehouse/internal/store"
	"github.com/gatehousehq/gatehouse/internal/websocket"
)

type GuestHandler struct {
	guests      *store.GuestStore
	acceptances *store.AcceptanceStore
	hub         *websocket.Hub
}

func NewGuestHandler(gs *store.GuestStore, as *store.AcceptanceStore, hub *websocket.Hub) *GuestHandler {
	return &GuestHandler{guests: gs, acceptances: as, hub: hub}
}

func (h *GuestHandler) List(w http.ResponseWriter, r *http.Request) {
	guests, err := h.guests.List()
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to list guests"})
		return
	}
	if guests == nil {
		guests = []model.Guest{}
	}
	writeJSON(w, http.StatusOK, guests)
}

func (h *GuestHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	guest, err := h.guests.GetByID(id)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to get guest"})
		return
	}
	if guest == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "guest not found"})
		return
	}
	writeJSON(w, http.StatusOK, guest)
}

// Blacklist bans a guest. Every subsequent admission attempt is denied until
// the marker is lifted.
func (h *GuestHandler) Blacklist(w http.ResponseWriter, r *http.Request) {
	h.setBlacklist(w, r, true)
}

// Unblacklist lifts the ban.
func (h *GuestHandler) Unblacklist(w http.ResponseWriter, r *http.Request) {
	h.setBlacklist(w, r, false)
}

func (h *GuestHandler) setBlacklist(w http.ResponseWriter, r *http.Request, banned bool) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	guest, err := h.guests.GetByID(id)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to get guest"})
		return
	}
	if guest == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "guest not found"})
		return
	}

	var at *time.Time
	if banned {
		now := time.Now().UTC()
		at = &now
	}
	if err := h.guests.SetBlacklisted(id, at); err != nil {
		log.Printf("failed to set blacklist for guest %d: %v", id, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to update guest"})
		return
	}

	h.hub.Broadcast(websocket.GuestBlacklisted(id, banned))

	guest, err = h.guests.GetByID(id)
	if err != nil || guest == nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to reload guest"})
		return
	}
	writeJSON(w, http.StatusOK, guest)
}

type acceptanceRequest struct {
	TermsVersion     string `json:"terms_version"`
	AgreementVersion string `json:"agreement_version"`
}

// RecordAcceptance appends a terms acceptance for a guest. Acceptances are
// immutable; a new row supersedes older ones.
func (h *GuestHandler) RecordAcceptance(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	guest, err := h.guests.GetByID(id)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to get guest"})
		return
	}
	if guest == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "guest not found"})
		return
	}

	var req acceptanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	if strings.TrimSpace(req.TermsVersion) == "" || strings.TrimSpace(req.AgreementVersion) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "terms_version and agreement_version are required"})
		return
	}

	acceptance, err := h.acceptances.Create(id, time.Now().UTC(), req.TermsVersion, req.AgreementVersion)
	if err != nil {
		log.Printf("failed to record acceptance for guest %d: %v", id, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to record acceptance"})
		return
	}

	writeJSON(w, http.StatusCreated, acceptance)
}
