package admission

import (
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/gatehousehq/gatehouse/internal/auth"
)

const overrideSecret = "lobby-override-secret"

func securityIdentity() auth.Identity {
	return auth.Identity{SubjectID: 17, Role: auth.RoleSecurity}
}

func TestAuthorizeHappyPath(t *testing.T) {
	a := NewAuthority("", overrideSecret)

	d := a.Authorize(OverrideRequest{
		Reason: "VIP guest, executive approval",
		Secret: overrideSecret,
	}, securityIdentity())
	if !d.Authorized() {
		t.Fatalf("decision = %+v, want authorized", d)
	}
}

func TestAuthorizeReasonBounds(t *testing.T) {
	a := NewAuthority("", overrideSecret)

	cases := []struct {
		name   string
		reason string
	}{
		{"empty", ""},
		{"whitespace only", "          \t "},
		{"too short", "too soon"},
		{"too long", strings.Repeat("x", 501)},
	}
	for _, tc := range cases {
		d := a.Authorize(OverrideRequest{Reason: tc.reason, Secret: overrideSecret}, securityIdentity())
		if d.Code != OverrideReasonInvalid {
			t.Errorf("%s: code = %q, want reason-invalid", tc.name, d.Code)
		}
		if d.Message == "" {
			t.Errorf("%s: expected a boundary-specific message", tc.name)
		}
	}

	// Short and long get different messages so the UI can explain which
	short := a.Authorize(OverrideRequest{Reason: "short", Secret: overrideSecret}, securityIdentity())
	long := a.Authorize(OverrideRequest{Reason: strings.Repeat("x", 501), Secret: overrideSecret}, securityIdentity())
	if short.Message == long.Message {
		t.Error("short and long reasons should produce distinct messages")
	}
}

func TestAuthorizeBadSecret(t *testing.T) {
	a := NewAuthority("", overrideSecret)

	d := a.Authorize(OverrideRequest{
		Reason: "VIP guest, executive approval",
		Secret: "wrong-secret",
	}, securityIdentity())
	if d.Code != OverrideBadSecret {
		t.Errorf("code = %q, want bad-secret", d.Code)
	}
}

func TestAuthorizeBcryptHash(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte(overrideSecret), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash secret: %v", err)
	}
	a := NewAuthority(string(hash), "")

	d := a.Authorize(OverrideRequest{
		Reason: "VIP guest, executive approval",
		Secret: overrideSecret,
	}, securityIdentity())
	if !d.Authorized() {
		t.Fatalf("decision = %+v, want authorized via hash", d)
	}

	d = a.Authorize(OverrideRequest{
		Reason: "VIP guest, executive approval",
		Secret: "wrong-secret",
	}, securityIdentity())
	if d.Code != OverrideBadSecret {
		t.Errorf("code = %q, want bad-secret", d.Code)
	}
}

func TestAuthorizeRole(t *testing.T) {
	a := NewAuthority("", overrideSecret)
	req := OverrideRequest{Reason: "VIP guest, executive approval", Secret: overrideSecret}

	for _, id := range []auth.Identity{
		{SubjectID: 9, Role: auth.RoleHost},
		{}, // unauthenticated
	} {
		d := a.Authorize(req, id)
		if d.Code != OverrideInsufficientRole {
			t.Errorf("identity %+v: code = %q, want insufficient-role", id, d.Code)
		}
	}

	// Degraded kiosk mode is an explicit trust relaxation, not a fallback
	d := a.Authorize(req, auth.DegradedKiosk())
	if !d.Authorized() {
		t.Errorf("degraded kiosk decision = %+v, want authorized", d)
	}

	d = a.Authorize(req, auth.Identity{SubjectID: 2, Role: auth.RoleAdmin})
	if !d.Authorized() {
		t.Errorf("admin decision = %+v, want authorized", d)
	}
}

func TestAuthorizeChecksSecretBeforeRole(t *testing.T) {
	// A bad secret from an unauthorized caller reports bad-secret: the
	// client keeps its dialog open rather than abandoning it.
	a := NewAuthority("", overrideSecret)
	d := a.Authorize(OverrideRequest{
		Reason: "VIP guest, executive approval",
		Secret: "wrong-secret",
	}, auth.Identity{Role: auth.RoleHost})
	if d.Code != OverrideBadSecret {
		t.Errorf("code = %q, want bad-secret checked first", d.Code)
	}
}

func TestAuthorizerLabel(t *testing.T) {
	if got := AuthorizerLabel(securityIdentity()); got != "security:17" {
		t.Errorf("label = %q, want security:17", got)
	}
	if got := AuthorizerLabel(auth.DegradedKiosk()); got != "kiosk-degraded" {
		t.Errorf("label = %q, want kiosk-degraded", got)
	}
}
