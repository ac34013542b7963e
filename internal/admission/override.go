package admission

import (
	"crypto/sha256"
	"crypto/subtle"
	"strconv"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/gatehousehq/gatehouse/internal/auth"
)

// OverrideCode classifies an override authorization attempt. The codes are
// distinct so a client can keep its dialog open on a bad secret but abandon
// it on a role failure.
type OverrideCode string

const (
	OverrideAuthorized       OverrideCode = "authorized"
	OverrideReasonInvalid    OverrideCode = "reason-invalid"
	OverrideBadSecret        OverrideCode = "bad-secret"
	OverrideInsufficientRole OverrideCode = "insufficient-role"
)

const (
	overrideReasonMin = 10
	overrideReasonMax = 500
)

// OverrideRequest is the supervised bypass of a capacity denial.
type OverrideRequest struct {
	Reason string
	Secret string
}

// OverrideDecision is the authority's answer.
type OverrideDecision struct {
	Code    OverrideCode
	Message string
}

func (d OverrideDecision) Authorized() bool { return d.Code == OverrideAuthorized }

// Authority validates override requests against the configured shared secret.
// Prefer configuring a bcrypt hash of the secret; a plaintext secret is
// accepted and compared in constant time.
type Authority struct {
	secretHash []byte
	secret     []byte
}

// NewAuthority builds an authority from the configured secret material.
// Exactly one of hash/plaintext is consulted, hash first.
func NewAuthority(secretHash, plaintext string) *Authority {
	a := &Authority{}
	if secretHash != "" {
		a.secretHash = []byte(secretHash)
	} else {
		a.secret = []byte(plaintext)
	}
	return a
}

// Authorize checks reason, secret, then role. Every failure is a distinct
// outcome; the caller records authorized overrides on the resulting visit.
func (a *Authority) Authorize(req OverrideRequest, id auth.Identity) OverrideDecision {
	reason := strings.TrimSpace(req.Reason)
	if len(reason) < overrideReasonMin {
		return OverrideDecision{Code: OverrideReasonInvalid,
			Message: "Override reason must be at least 10 characters."}
	}
	if len(reason) > overrideReasonMax {
		return OverrideDecision{Code: OverrideReasonInvalid,
			Message: "Override reason must be at most 500 characters."}
	}

	if !a.secretMatches(req.Secret) {
		return OverrideDecision{Code: OverrideBadSecret,
			Message: "Override secret is incorrect."}
	}

	if !id.CanOverride() {
		return OverrideDecision{Code: OverrideInsufficientRole,
			Message: "Only security or admin staff can authorize an override."}
	}

	return OverrideDecision{Code: OverrideAuthorized}
}

func (a *Authority) secretMatches(secret string) bool {
	if len(a.secretHash) > 0 {
		return bcrypt.CompareHashAndPassword(a.secretHash, []byte(secret)) == nil
	}
	if len(a.secret) == 0 {
		return false
	}
	want := sha256.Sum256(a.secret)
	got := sha256.Sum256([]byte(secret))
	return subtle.ConstantTimeCompare(want[:], got[:]) == 1
}

// AuthorizerLabel is the audit string stamped on overridden visits.
func AuthorizerLabel(id auth.Identity) string {
	if id.KioskDegraded {
		return "kiosk-degraded"
	}
	return id.Role + ":" + strconv.FormatInt(id.SubjectID, 10)
}
