package auth

import (
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// IssueToken signs an HS256 bearer token for a staff identity. The subject
// claim carries the staff ID and the role claim one of the Role constants.
func IssueToken(secret []byte, id Identity, ttl time.Duration) (string, error) {
	now := time.Now().UTC()
	claims := jwt.MapClaims{
		"sub":  strconv.FormatInt(id.SubjectID, 10),
		"role": id.Role,
		"exp":  now.Add(ttl).Unix(),
		"iat":  now.Unix(),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("sign identity token: %w", err)
	}
	return signed, nil
}

// ParseToken validates a bearer token and returns the identity it carries.
// Expired or tampered tokens fail; there is no degraded fallback here.
func ParseToken(secret []byte, raw string) (Identity, error) {
	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return Identity{}, fmt.Errorf("parse identity token: %w", err)
	}

	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return Identity{}, fmt.Errorf("identity token missing subject")
	}
	subjectID, err := strconv.ParseInt(sub, 10, 64)
	if err != nil {
		return Identity{}, fmt.Errorf("identity token subject %q: %w", sub, err)
	}

	role, _ := claims["role"].(string)
	switch role {
	case RoleSecurity, RoleAdmin, RoleHost:
	default:
		return Identity{}, fmt.Errorf("identity token has unknown role %q", role)
	}

	return Identity{SubjectID: subjectID, Role: role}, nil
}
