// Package admission decides whether a presented credential becomes a
// recorded visit: re-entry detection, eligibility checks, capacity overrides,
// and the atomic check-in commit.
package admission

import (
	"time"

	"github.com/gatehousehq/gatehouse/internal/model"
)

// Outcome classifies one admission attempt.
type Outcome string

const (
	// OutcomeAdmitted: a new visit was committed.
	OutcomeAdmitted Outcome = "admitted"
	// OutcomeReentry: the guest already holds an active visit; no new row.
	OutcomeReentry Outcome = "reentry"
	// OutcomeDenied: a hard policy denial. Not overridable.
	OutcomeDenied Outcome = "denied"
	// OutcomeOverrideRequired: host at capacity and no override supplied.
	OutcomeOverrideRequired Outcome = "override-required"
	// OutcomeOverrideRejected: an override was supplied but not authorized.
	OutcomeOverrideRejected Outcome = "override-rejected"
	// OutcomeFailed: the attempt could not complete; safe to retry once.
	OutcomeFailed Outcome = "failed"
)

// Reason is the stable machine-readable denial code.
type Reason string

const (
	ReasonBlacklisted        Reason = "blacklisted"
	ReasonClosedForNight     Reason = "closed-for-night"
	ReasonCredentialExpired  Reason = "credential-expired"
	ReasonHostAtCapacity     Reason = "host-at-capacity"
	ReasonGuestMonthlyLimit  Reason = "guest-monthly-limit"
	ReasonTermsRequired      Reason = "terms-required"
	ReasonServiceUnavailable Reason = "service-unavailable"
)

// Capacity carries current/max counts with a capacity denial so the caller
// can offer an override.
type Capacity struct {
	Current int `json:"current"`
	Max     int `json:"max"`
}

// Result is the per-guest outcome of an admission attempt.
type Result struct {
	Outcome           Outcome       `json:"outcome"`
	GuestEmail        string        `json:"guest_email"`
	GuestName         string        `json:"guest_name"`
	Reason            Reason        `json:"reason,omitempty"`
	Message           string        `json:"message,omitempty"`
	Capacity          *Capacity     `json:"capacity,omitempty"`
	NextEligibleAt    *time.Time    `json:"next_eligible_at,omitempty"`
	AcceptanceRenewed bool          `json:"acceptance_renewed,omitempty"`
	CrossHostName     string        `json:"cross_host_name,omitempty"`
	OverrideCode      OverrideCode  `json:"override_code,omitempty"`
	Retryable         bool          `json:"retryable,omitempty"`
	Visit             *model.Visit  `json:"visit,omitempty"`
}

// Success reports whether the guest ended up (or already was) inside.
func (r Result) Success() bool {
	return r.Outcome == OutcomeAdmitted || r.Outcome == OutcomeReentry
}
