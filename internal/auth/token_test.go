package auth

import (
	"testing"
	"time"
)

func TestTokenRoundTrip(t *testing.T) {
	secret := []byte("test-secret")
	token, err := IssueToken(secret, Identity{SubjectID: 42, Role: RoleSecurity}, time.Hour)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	id, err := ParseToken(secret, token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if id.SubjectID != 42 || id.Role != RoleSecurity {
		t.Errorf("identity = %+v, want subject 42 role security", id)
	}
	if id.KioskDegraded {
		t.Error("parsed identity must never be degraded")
	}
}

func TestParseTokenExpired(t *testing.T) {
	secret := []byte("test-secret")
	token, err := IssueToken(secret, Identity{SubjectID: 1, Role: RoleAdmin}, -time.Minute)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	if _, err := ParseToken(secret, token); err == nil {
		t.Error("expected error for expired token")
	}
}

func TestParseTokenWrongSecret(t *testing.T) {
	token, err := IssueToken([]byte("one"), Identity{SubjectID: 1, Role: RoleAdmin}, time.Hour)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	if _, err := ParseToken([]byte("two"), token); err == nil {
		t.Error("expected error for wrong secret")
	}
}

func TestParseTokenUnknownRole(t *testing.T) {
	secret := []byte("test-secret")
	token, err := IssueToken(secret, Identity{SubjectID: 1, Role: "janitor"}, time.Hour)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	if _, err := ParseToken(secret, token); err == nil {
		t.Error("expected error for unknown role")
	}
}
