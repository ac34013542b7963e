package admission

import (
	"testing"
	"time"

	"github.com/gatehousehq/gatehouse/internal/model"
)

var testPolicy = model.Policy{GuestMonthlyLimit: 4, HostConcurrentLimit: 3}

func testEvaluator() Evaluator {
	return Evaluator{
		NightCutoffHour:    22,
		Location:           time.UTC,
		RollingWindow:      30 * 24 * time.Hour,
		AcceptanceValidity: 365 * 24 * time.Hour,
	}
}

// noon returns a fixed daytime instant so the cutoff check stays out of the way.
func noon() time.Time {
	return time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
}

func passingInput(now time.Time) EvalInput {
	acceptedAt := now.Add(-30 * 24 * time.Hour)
	return EvalInput{
		Guest:            &model.Guest{ID: 1, Email: "g@example.com", Name: "G"},
		Policy:           testPolicy,
		LatestAcceptance: &model.Acceptance{GuestID: 1, AcceptedAt: acceptedAt},
		Now:              now,
	}
}

func TestEvaluatePasses(t *testing.T) {
	v := testEvaluator().Evaluate(passingInput(noon()))
	if !v.OK {
		t.Fatalf("expected pass, got %q: %s", v.Reason, v.Message)
	}
}

func TestEvaluateBlacklist(t *testing.T) {
	in := passingInput(noon())
	banned := noon().Add(-time.Hour)
	in.Guest.BlacklistedAt = &banned

	v := testEvaluator().Evaluate(in)
	if v.OK || v.Reason != ReasonBlacklisted {
		t.Errorf("verdict = %+v, want blacklisted denial", v)
	}
}

func TestEvaluateNightCutoff(t *testing.T) {
	in := passingInput(time.Date(2026, 3, 10, 22, 30, 0, 0, time.UTC))

	v := testEvaluator().Evaluate(in)
	if v.OK || v.Reason != ReasonClosedForNight {
		t.Errorf("verdict = %+v, want closed-for-night", v)
	}

	// Cutoff disabled admits at any hour
	e := testEvaluator()
	e.NightCutoffHour = 0
	if v := e.Evaluate(in); !v.OK {
		t.Errorf("disabled cutoff still denied: %+v", v)
	}
}

func TestEvaluateCredentialExpired(t *testing.T) {
	now := noon()
	in := passingInput(now)
	expired := now.Add(-time.Minute)
	in.CredentialExpiresAt = &expired

	v := testEvaluator().Evaluate(in)
	if v.OK || v.Reason != ReasonCredentialExpired {
		t.Errorf("verdict = %+v, want credential-expired", v)
	}

	// Batch form has no expiration: nil passes through
	in.CredentialExpiresAt = nil
	if v := testEvaluator().Evaluate(in); !v.OK {
		t.Errorf("nil expiry denied: %+v", v)
	}
}

func TestEvaluateHostCapacity(t *testing.T) {
	in := passingInput(noon())
	in.HostActiveCount = 3

	v := testEvaluator().Evaluate(in)
	if v.OK || v.Reason != ReasonHostAtCapacity {
		t.Fatalf("verdict = %+v, want host-at-capacity", v)
	}
	if v.Capacity == nil || v.Capacity.Current != 3 || v.Capacity.Max != 3 {
		t.Errorf("capacity = %+v, want {3, 3}", v.Capacity)
	}
}

func TestEvaluateRollingLimit(t *testing.T) {
	now := noon()
	in := passingInput(now)
	// Four check-ins in the trailing window, newest first. The oldest of
	// them anchors the next-eligible date.
	oldest := now.Add(-25 * 24 * time.Hour)
	in.RecentCheckIns = []time.Time{
		now.Add(-2 * 24 * time.Hour),
		now.Add(-8 * 24 * time.Hour),
		now.Add(-15 * 24 * time.Hour),
		oldest,
	}

	v := testEvaluator().Evaluate(in)
	if v.OK || v.Reason != ReasonGuestMonthlyLimit {
		t.Fatalf("verdict = %+v, want guest-monthly-limit", v)
	}
	if v.NextEligibleAt == nil {
		t.Fatal("expected next-eligible date")
	}
	want := oldest.Add(30 * 24 * time.Hour)
	if !v.NextEligibleAt.Equal(want) {
		t.Errorf("next eligible = %v, want %v", v.NextEligibleAt, want)
	}
	if v.NextEligibleAt.Sub(oldest) < 30*24*time.Hour {
		t.Error("next-eligible date must be at least 30 days after the oldest limiting visit")
	}

	// One fewer check-in passes
	in.RecentCheckIns = in.RecentCheckIns[:3]
	if v := testEvaluator().Evaluate(in); !v.OK {
		t.Errorf("under-limit guest denied: %+v", v)
	}
}

func TestEvaluateTermsRequired(t *testing.T) {
	in := passingInput(noon())
	in.LatestAcceptance = nil

	v := testEvaluator().Evaluate(in)
	if v.OK || v.Reason != ReasonTermsRequired {
		t.Errorf("verdict = %+v, want terms-required", v)
	}
	if v.RenewalEligible {
		t.Error("guest with no acceptance is not renewal-eligible")
	}
}

func TestEvaluateTermsRenewalEligible(t *testing.T) {
	now := noon()
	in := passingInput(now)
	stale := now.Add(-400 * 24 * time.Hour)
	in.LatestAcceptance = &model.Acceptance{GuestID: 1, AcceptedAt: stale}

	v := testEvaluator().Evaluate(in)
	if v.OK {
		t.Fatal("stale acceptance must not pass outright")
	}
	if !v.RenewalEligible {
		t.Errorf("verdict = %+v, want renewal-eligible", v)
	}
}

func TestEvaluateCheckOrder(t *testing.T) {
	// A blacklisted guest at an over-capacity host is denied for the
	// blacklist, not the (overridable) capacity.
	in := passingInput(noon())
	banned := noon()
	in.Guest.BlacklistedAt = &banned
	in.HostActiveCount = 5

	v := testEvaluator().Evaluate(in)
	if v.Reason != ReasonBlacklisted {
		t.Errorf("reason = %q, want blacklisted (checks run in order)", v.Reason)
	}
}
