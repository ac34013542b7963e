package handler

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gatehousehq/gatehouse/internal/credential"
	"github.com/gatehousehq/gatehouse/internal/model"
	"github.com/gatehousehq/gatehouse/internal/notify"
	"github.com/gatehousehq/gatehouse/internal/store"
)

type InvitationHandler struct {
	invitations      *store.InvitationStore
	guests           *store.GuestStore
	hosts            *store.HostStore
	acceptances      *store.AcceptanceStore
	codec            *credential.Codec
	dispatcher       *notify.Dispatcher
	termsVersion     string
	agreementVersion string
}

func NewInvitationHandler(is *store.InvitationStore, gs *store.GuestStore, hs *store.HostStore, as *store.AcceptanceStore, codec *credential.Codec, dispatcher *notify.Dispatcher, termsVersion, agreementVersion string) *InvitationHandler {
	return &InvitationHandler{
		invitations: is, guests: gs, hosts: hs, acceptances: as,
		codec: codec, dispatcher: dispatcher,
		termsVersion: termsVersion, agreementVersion: agreementVersion,
	}
}

type invitationRequest struct {
	GuestEmail string    `json:"guest_email"`
	GuestName  string    `json:"guest_name"`
	HostID     int64     `json:"host_id"`
	VisitDate  time.Time `json:"visit_date"`
}

func (h *InvitationHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req invitationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	req.GuestEmail = strings.ToLower(strings.TrimSpace(req.GuestEmail))
	if req.GuestEmail == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "guest_email is required"})
		return
	}
	if req.VisitDate.IsZero() {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "visit_date is required"})
		return
	}

	host, err := h.hosts.GetByID(req.HostID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to look up host"})
		return
	}
	if host == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "host not found"})
		return
	}

	guest, err := h.guests.Upsert(req.GuestEmail, strings.TrimSpace(req.GuestName))
	if err != nil {
		log.Printf("failed to upsert guest: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to create invitation"})
		return
	}

	inv, err := h.invitations.Create(guest.ID, host.ID, req.VisitDate)
	if err != nil {
		log.Printf("failed to create invitation: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to create invitation"})
		return
	}

	writeJSON(w, http.StatusCreated, inv)
}

// Activate advances a PENDING invitation, records the guest's terms
// acceptance, signs the single-guest credential, and emails it to the guest.
// Activation only happens after the guest confirms the current terms online.
func (h *InvitationHandler) Activate(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	existing, err := h.invitations.GetByID(id)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to get invitation"})
		return
	}
	if existing == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "invitation not found"})
		return
	}

	inv, err := h.invitations.Activate(id)
	if errors.Is(err, store.ErrInvalidTransition) {
		writeJSON(w, http.StatusConflict, map[string]string{
			"error": "invitation is not pending", "status": existing.Status,
		})
		return
	}
	if err != nil {
		log.Printf("failed to activate invitation %d: %v", id, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to activate invitation"})
		return
	}

	guest, err := h.guests.GetByID(inv.GuestID)
	if err != nil || guest == nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to look up guest"})
		return
	}

	now := time.Now().UTC()
	if _, err := h.acceptances.Create(guest.ID, now, h.termsVersion, h.agreementVersion); err != nil {
		log.Printf("failed to record acceptance for guest %d: %v", guest.ID, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to record acceptance"})
		return
	}

	signed, expiresAt, err := h.codec.IssueSingle(inv.ID, guest.Email, guest.Name, inv.HostID, now)
	if err != nil {
		log.Printf("failed to issue credential for invitation %d: %v", id, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to issue credential"})
		return
	}
	if err := h.invitations.SetCredential(inv.ID, signed, now, expiresAt); err != nil {
		log.Printf("failed to store credential for invitation %d: %v", id, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to issue credential"})
		return
	}

	if host, err := h.hosts.GetByID(inv.HostID); err == nil && host != nil {
		h.dispatcher.InvitationIssued(*guest, *host, inv.VisitDate, signed)
	}

	inv, err = h.invitations.GetByID(inv.ID)
	if err != nil || inv == nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to reload invitation"})
		return
	}
	writeJSON(w, http.StatusOK, inv)
}

func (h *InvitationHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	inv, err := h.invitations.GetByID(id)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to get invitation"})
		return
	}
	if inv == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "invitation not found"})
		return
	}
	writeJSON(w, http.StatusOK, inv)
}

func (h *InvitationHandler) ListByHost(w http.ResponseWriter, r *http.Request) {
	hostID, err := strconv.ParseInt(r.URL.Query().Get("host_id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid host_id"})
		return
	}

	invitations, err := h.invitations.ListByHost(hostID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to list invitations"})
		return
	}
	if invitations == nil {
		invitations = []model.Invitation{}
	}
	writeJSON(w, http.StatusOK, invitations)
}
