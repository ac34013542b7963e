package handler

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"

	"github.com/gatehousehq/gatehouse/internal/admission"
	"github.com/gatehousehq/gatehouse/internal/auth"
	"github.com/gatehousehq/gatehouse/internal/credential"
	"github.com/gatehousehq/gatehouse/internal/websocket"
)

type CheckinHandler struct {
	engine *admission.Engine
	codec  *credential.Codec
	hub    *websocket.Hub
}

func NewCheckinHandler(engine *admission.Engine, codec *credential.Codec, hub *websocket.Hub) *CheckinHandler {
	return &CheckinHandler{engine: engine, codec: codec, hub: hub}
}

type checkinRequest struct {
	Credential     string                  `json:"credential,omitempty"`
	Guest          *credential.BatchEntry  `json:"guest,omitempty"`
	Guests         []credential.BatchEntry `json:"guests,omitempty"`
	HostID         int64                   `json:"host_id"`
	Location       string                  `json:"location"`
	OverrideReason string                  `json:"override_reason,omitempty"`
	OverrideSecret string                  `json:"override_secret,omitempty"`
}

type checkinSummary struct {
	Total      int `json:"total"`
	Successful int `json:"successful"`
	Failed     int `json:"failed"`
}

type checkinResponse struct {
	Success bool               `json:"success"`
	Results []admission.Result `json:"results"`
	Summary checkinSummary     `json:"summary"`
}

// Checkin is the kiosk entrypoint. The request carries exactly one credential
// form: an encoded credential (signed token or batch payload), a single
// walk-in guest, or an inline guest list. Every guest in a batch is decided
// independently.
func (h *CheckinHandler) Checkin(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.FromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "missing identity"})
		return
	}

	var req checkinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	attempts, errStatus, errBody := h.buildAttempts(req, identity)
	if errBody != nil {
		writeJSON(w, errStatus, errBody)
		return
	}

	results := make([]admission.Result, len(attempts))
	if len(attempts) == 1 {
		results[0] = h.engine.Admit(r.Context(), attempts[0])
	} else {
		// Guests in a batch share no state; decide them concurrently. Each
		// attempt carries its own commit transaction.
		var wg sync.WaitGroup
		for i, a := range attempts {
			wg.Add(1)
			go func(i int, a admission.Attempt) {
				defer wg.Done()
				results[i] = h.engine.Admit(r.Context(), a)
			}(i, a)
		}
		wg.Wait()
	}

	successful := 0
	for _, res := range results {
		if res.Success() {
			successful++
		}
		if res.Outcome == admission.OutcomeAdmitted && res.Visit != nil {
			h.hub.Broadcast(websocket.VisitCheckedIn(res.Visit, res.GuestName, res.Visit.OverrideReason != nil))
		}
	}

	writeJSON(w, statusForResults(results, successful), checkinResponse{
		Success: successful == len(results),
		Results: results,
		Summary: checkinSummary{
			Total:      len(results),
			Successful: successful,
			Failed:     len(results) - successful,
		},
	})
}

func (h *CheckinHandler) buildAttempts(req checkinRequest, identity auth.Identity) ([]admission.Attempt, int, map[string]any) {
	base := admission.Attempt{
		HostID:   req.HostID,
		Location: req.Location,
		Identity: identity,
	}
	if strings.TrimSpace(req.OverrideReason) != "" || req.OverrideSecret != "" {
		base.Override = &admission.OverrideRequest{
			Reason: req.OverrideReason,
			Secret: req.OverrideSecret,
		}
	}

	var entries []credential.BatchEntry

	switch {
	case req.Credential != "":
		decoded := h.codec.Decode([]byte(req.Credential))
		switch decoded.Kind {
		case credential.KindMalformed:
			body := map[string]any{"error": decoded.Reason}
			if len(decoded.EntryErrors) > 0 {
				body["entry_errors"] = decoded.EntryErrors
			}
			return nil, http.StatusBadRequest, body

		case credential.KindSingle:
			s := decoded.Single
			a := base
			a.Email = s.Email
			a.Name = s.Name
			a.InvitationID = s.InvitationID
			a.CredentialExpiresAt = &s.ExpiresAt
			if a.HostID == 0 {
				a.HostID = s.HostID
			}
			if a.HostID == 0 {
				return nil, http.StatusBadRequest, map[string]any{"error": "host_id is required"}
			}
			return []admission.Attempt{a}, 0, nil

		case credential.KindBatch:
			entries = decoded.Batch.Guests
		}

	case req.Guest != nil:
		entries = []credential.BatchEntry{*req.Guest}

	case len(req.Guests) > 0:
		entries = req.Guests

	default:
		return nil, http.StatusBadRequest, map[string]any{"error": "credential, guest, or guests is required"}
	}

	if req.HostID == 0 {
		return nil, http.StatusBadRequest, map[string]any{"error": "host_id is required"}
	}

	attempts := make([]admission.Attempt, 0, len(entries))
	for i, e := range entries {
		if strings.TrimSpace(e.Email) == "" {
			return nil, http.StatusBadRequest, map[string]any{
				"error":        "invalid guest entry",
				"entry_errors": []credential.EntryError{{Index: i, Field: "email", Message: "guest email is required"}},
			}
		}
		a := base
		a.Email = e.Email
		a.Name = e.Name
		attempts = append(attempts, a)
	}
	return attempts, 0, nil
}

// statusForResults maps decision outcomes onto the HTTP status. A batch
// aggregates to all/partial/none; a single attempt surfaces the override
// handshake codes directly.
func statusForResults(results []admission.Result, successful int) int {
	if len(results) == 1 {
		res := results[0]
		switch res.Outcome {
		case admission.OutcomeAdmitted, admission.OutcomeReentry:
			return http.StatusOK
		case admission.OutcomeOverrideRequired:
			return http.StatusConflict
		case admission.OutcomeOverrideRejected:
			switch res.OverrideCode {
			case admission.OverrideBadSecret:
				return http.StatusUnauthorized
			case admission.OverrideInsufficientRole:
				return http.StatusForbidden
			default:
				return http.StatusBadRequest
			}
		case admission.OutcomeFailed:
			return http.StatusServiceUnavailable
		default:
			return http.StatusBadRequest
		}
	}

	switch successful {
	case len(results):
		return http.StatusOK
	case 0:
		return http.StatusBadRequest
	default:
		return http.StatusMultiStatus
	}
}
