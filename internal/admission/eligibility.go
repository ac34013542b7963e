package admission

import (
	"fmt"
	"time"

	"github.com/gatehousehq/gatehouse/internal/model"
)

// EvalInput is everything the evaluator needs, gathered up front so the
// checks themselves stay pure and independently testable.
type EvalInput struct {
	Guest  *model.Guest
	Policy model.Policy
	// CredentialExpiresAt is set only for the signed single-guest form.
	// Batch credentials carry no expiration; their validity is the
	// acceptance check below.
	CredentialExpiresAt *time.Time
	HostActiveCount     int
	// RecentCheckIns are the guest's in-window check-ins, most recent
	// first, capped at the policy limit.
	RecentCheckIns   []time.Time
	LatestAcceptance *model.Acceptance
	Now              time.Time
}

// Verdict is the evaluator's answer. RenewalEligible marks the one soft
// outcome: stale terms on a guest who accepted before, which the engine may
// auto-renew once.
type Verdict struct {
	OK              bool
	RenewalEligible bool
	Reason          Reason
	Message         string
	Capacity        *Capacity
	NextEligibleAt  *time.Time
}

// Evaluator runs the fixed eligibility sequence. It has no side effects and
// touches no storage.
type Evaluator struct {
	// NightCutoffHour closes the building from this local hour onward.
	// Zero disables the cutoff.
	NightCutoffHour int
	Location        *time.Location
	// RollingWindow is the trailing window for the guest visit limit.
	RollingWindow time.Duration
	// AcceptanceValidity is how long a terms acceptance stays valid.
	AcceptanceValidity time.Duration
}

func ok() Verdict { return Verdict{OK: true} }

func deny(reason Reason, message string) Verdict {
	return Verdict{Reason: reason, Message: message}
}

// Evaluate runs the checks in order and returns on the first failure. Only
// host-at-capacity is overridable; everything else is a hard denial.
func (e Evaluator) Evaluate(in EvalInput) Verdict {
	if v := e.checkBlacklist(in); !v.OK {
		return v
	}
	if v := e.checkNightCutoff(in); !v.OK {
		return v
	}
	if v := e.checkCredentialExpiry(in); !v.OK {
		return v
	}
	if v := e.checkHostCapacity(in); !v.OK {
		return v
	}
	if v := e.checkRollingLimit(in); !v.OK {
		return v
	}
	return e.checkAcceptance(in)
}

func (e Evaluator) checkBlacklist(in EvalInput) Verdict {
	if in.Guest.Blacklisted() {
		return deny(ReasonBlacklisted, "Guest is not permitted in the building. Contact security.")
	}
	return ok()
}

func (e Evaluator) checkNightCutoff(in EvalInput) Verdict {
	if e.NightCutoffHour <= 0 {
		return ok()
	}
	loc := e.Location
	if loc == nil {
		loc = time.UTC
	}
	if in.Now.In(loc).Hour() >= e.NightCutoffHour {
		return deny(ReasonClosedForNight, "The building is closed for the night.")
	}
	return ok()
}

func (e Evaluator) checkCredentialExpiry(in EvalInput) Verdict {
	if in.CredentialExpiresAt != nil && in.Now.After(*in.CredentialExpiresAt) {
		return deny(ReasonCredentialExpired, "This pass has expired. Ask the host to issue a new one.")
	}
	return ok()
}

func (e Evaluator) checkHostCapacity(in EvalInput) Verdict {
	max := in.Policy.HostConcurrentLimit
	if in.HostActiveCount >= max {
		v := deny(ReasonHostAtCapacity,
			fmt.Sprintf("Host already has %d of %d guests checked in.", in.HostActiveCount, max))
		v.Capacity = &Capacity{Current: in.HostActiveCount, Max: max}
		return v
	}
	return ok()
}

func (e Evaluator) checkRollingLimit(in EvalInput) Verdict {
	limit := in.Policy.GuestMonthlyLimit
	if len(in.RecentCheckIns) < limit {
		return ok()
	}

	// The guest becomes eligible again 30 days after the oldest of the
	// most-recent N visits that fill the limit.
	oldest := in.RecentCheckIns[len(in.RecentCheckIns)-1]
	for _, t := range in.RecentCheckIns {
		if t.Before(oldest) {
			oldest = t
		}
	}
	next := oldest.Add(e.RollingWindow)
	v := deny(ReasonGuestMonthlyLimit,
		fmt.Sprintf("Guest reached the visit limit. Eligible again on %s.", next.Format("Jan 2")))
	v.NextEligibleAt = &next
	return v
}

func (e Evaluator) checkAcceptance(in EvalInput) Verdict {
	if in.LatestAcceptance == nil {
		return deny(ReasonTermsRequired, "Guest must accept the visitor terms. Resend the terms email.")
	}
	if in.Now.Sub(in.LatestAcceptance.AcceptedAt) > e.AcceptanceValidity {
		// Stale, but the guest has accepted before: renewal-eligible, a
		// distinguished soft outcome rather than a hard deny.
		return Verdict{RenewalEligible: true, Reason: ReasonTermsRequired,
			Message: "Guest's terms acceptance has lapsed."}
	}
	return ok()
}
