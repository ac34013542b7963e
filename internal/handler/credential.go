package handler

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gatehousehq/gatehouse/internal/credential"
	"github.com/gatehousehq/gatehouse/internal/model"
	"github.com/gatehousehq/gatehouse/internal/store"
)

type CredentialHandler struct {
	codec              *credential.Codec
	invitations        *store.InvitationStore
	guests             *store.GuestStore
	acceptances        *store.AcceptanceStore
	acceptanceValidity time.Duration
}

func NewCredentialHandler(codec *credential.Codec, is *store.InvitationStore, gs *store.GuestStore, as *store.AcceptanceStore, acceptanceValidity time.Duration) *CredentialHandler {
	return &CredentialHandler{codec: codec, invitations: is, guests: gs, acceptances: as, acceptanceValidity: acceptanceValidity}
}

type issueSingleRequest struct {
	InvitationID int64 `json:"invitation_id"`
}

type issueSingleResponse struct {
	Credential string    `json:"credential"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// IssueSingle re-signs the credential for an existing invitation. Guests who
// lost the original email get a fresh token without a new invitation.
func (h *CredentialHandler) IssueSingle(w http.ResponseWriter, r *http.Request) {
	var req issueSingleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	inv, err := h.invitations.GetByID(req.InvitationID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to get invitation"})
		return
	}
	if inv == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "invitation not found"})
		return
	}
	if inv.Status == model.InvitationExpired || inv.Status == model.InvitationCheckedIn {
		writeJSON(w, http.StatusConflict, map[string]string{
			"error": "invitation can no longer be issued a credential", "status": inv.Status,
		})
		return
	}

	guest, err := h.guests.GetByID(inv.GuestID)
	if err != nil || guest == nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to look up guest"})
		return
	}

	now := time.Now().UTC()
	signed, expiresAt, err := h.codec.IssueSingle(inv.ID, guest.Email, guest.Name, inv.HostID, now)
	if err != nil {
		log.Printf("failed to issue credential: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to issue credential"})
		return
	}
	if err := h.invitations.SetCredential(inv.ID, signed, now, expiresAt); err != nil {
		log.Printf("failed to store credential: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to issue credential"})
		return
	}

	writeJSON(w, http.StatusOK, issueSingleResponse{Credential: signed, ExpiresAt: expiresAt})
}

type issueBatchRequest struct {
	Guests []credential.BatchEntry `json:"guests"`
}

type issueBatchResponse struct {
	Credential string `json:"credential"`
}

// IssueBatch encodes a host-level multi-guest credential. The payload carries
// no expiration; each guest's terms acceptance governs validity, so issuance
// refuses guests whose acceptance is missing or stale.
func (h *CredentialHandler) IssueBatch(w http.ResponseWriter, r *http.Request) {
	var req issueBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	data, err := h.codec.IssueBatch(req.Guests)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	now := time.Now().UTC()
	for i, entry := range req.Guests {
		guest, err := h.guests.GetByEmail(strings.ToLower(strings.TrimSpace(entry.Email)))
		if err != nil {
			log.Printf("failed to look up guest %q: %v", entry.Email, err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to look up guest"})
			return
		}
		if guest == nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{
				"error":       "guest has no terms acceptance on file",
				"entry_index": i,
			})
			return
		}
		acc, err := h.acceptances.LatestByGuest(guest.ID)
		if err != nil {
			log.Printf("failed to look up acceptance for guest %d: %v", guest.ID, err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to look up acceptance"})
			return
		}
		if acc == nil || now.Sub(acc.AcceptedAt) > h.acceptanceValidity {
			writeJSON(w, http.StatusBadRequest, map[string]any{
				"error":       "guest terms acceptance is missing or expired",
				"entry_index": i,
			})
			return
		}
	}

	writeJSON(w, http.StatusOK, issueBatchResponse{Credential: string(data)})
}
