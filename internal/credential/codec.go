// Package credential encodes and decodes the portable check-in credential.
//
// Two wire forms coexist: a guest-batch JSON payload and a signed
// single-guest token. Decode tries batch JSON first, then the signed token;
// that priority is part of the contract, not an accident of parsing.
package credential

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type Kind string

const (
	KindSingle    Kind = "single"
	KindBatch     Kind = "batch"
	KindMalformed Kind = "malformed"
)

// Single is the decoded compact signed token: one guest, one invitation,
// explicit expiration.
type Single struct {
	TokenID      string
	InvitationID int64
	Email        string
	Name         string
	HostID       int64
	IssuedAt     time.Time
	ExpiresAt    time.Time
}

// Expired reports whether the token's embedded expiration has passed.
func (s *Single) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// BatchEntry is one guest in a batch payload.
type BatchEntry struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

// Batch is the host-level multi-guest payload. It carries no expiration on
// purpose: validity is delegated entirely to each guest's terms acceptance.
type Batch struct {
	Guests []BatchEntry `json:"guests"`
}

// EntryError points at a structurally invalid batch entry so a caller can
// show which row of the scan failed, not just "invalid".
type EntryError struct {
	Index   int    `json:"index"`
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Decoded is the tagged result of Decode. Exactly one of Single/Batch is set
// when Kind is not KindMalformed.
type Decoded struct {
	Kind        Kind
	Single      *Single
	Batch       *Batch
	Reason      string
	EntryErrors []EntryError
}

type Codec struct {
	secret    []byte
	singleTTL time.Duration
}

// NewCodec returns a codec signing single-guest tokens with the given secret
// and time-to-live.
func NewCodec(secret []byte, singleTTL time.Duration) *Codec {
	return &Codec{secret: secret, singleTTL: singleTTL}
}

type singleClaims struct {
	Name         string `json:"name"`
	InvitationID int64  `json:"inv"`
	HostID       int64  `json:"host"`
	jwt.RegisteredClaims
}

// Decode is total: any byte sequence yields a typed result, never a panic.
// Batch JSON is tried first, then the signed single-guest token; anything
// else is surfaced as malformed rather than silently admitting.
func (c *Codec) Decode(raw []byte) Decoded {
	if batch, ok := tryBatch(raw); ok {
		if errs := validateBatch(batch); len(errs) > 0 {
			return Decoded{Kind: KindMalformed, Reason: "invalid batch credential", EntryErrors: errs}
		}
		return Decoded{Kind: KindBatch, Batch: batch}
	}

	single, err := c.parseSingle(string(raw))
	if err != nil {
		return Decoded{Kind: KindMalformed, Reason: "unrecognized credential"}
	}
	return Decoded{Kind: KindSingle, Single: single}
}

// tryBatch reports whether the raw bytes are a batch payload: valid JSON with
// the guests key present. A payload that declares guests but fails entry
// validation is still a batch (a malformed one), not a token candidate.
func tryBatch(raw []byte) (*Batch, bool) {
	var probe struct {
		Guests *[]BatchEntry `json:"guests"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil || probe.Guests == nil {
		return nil, false
	}
	return &Batch{Guests: *probe.Guests}, true
}

func validateBatch(b *Batch) []EntryError {
	if len(b.Guests) == 0 {
		return []EntryError{{Index: 0, Field: "guests", Message: "batch must contain at least one guest"}}
	}

	var errs []EntryError
	for i, g := range b.Guests {
		if strings.TrimSpace(g.Email) == "" {
			errs = append(errs, EntryError{Index: i, Field: "email", Message: "guest email is required"})
		}
		if strings.TrimSpace(g.Name) == "" {
			errs = append(errs, EntryError{Index: i, Field: "name", Message: "guest name is required"})
		}
	}
	return errs
}

// parseSingle verifies the signature and shape of a single-guest token.
// Expiration is deliberately not enforced here: the eligibility check owns
// that denial so an expired token produces `credential-expired`, not a parse
// failure.
func (c *Codec) parseSingle(raw string) (*Single, error) {
	var claims singleClaims
	_, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
		return c.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}), jwt.WithoutClaimsValidation())
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	if claims.Subject == "" || claims.ExpiresAt == nil || claims.IssuedAt == nil {
		return nil, fmt.Errorf("token missing required claims")
	}

	return &Single{
		TokenID:      claims.ID,
		InvitationID: claims.InvitationID,
		Email:        claims.Subject,
		Name:         claims.Name,
		HostID:       claims.HostID,
		IssuedAt:     claims.IssuedAt.Time,
		ExpiresAt:    claims.ExpiresAt.Time,
	}, nil
}

// IssueSingle signs a single-guest token for an invitation.
func (c *Codec) IssueSingle(invitationID int64, email, name string, hostID int64, now time.Time) (string, time.Time, error) {
	expiresAt := now.Add(c.singleTTL)
	claims := singleClaims{
		Name:         name,
		InvitationID: invitationID,
		HostID:       hostID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   email,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign credential: %w", err)
	}
	return signed, expiresAt, nil
}

// IssueBatch encodes a host-level batch credential. Entries must already be
// structurally valid; the same per-index errors are returned otherwise.
func (c *Codec) IssueBatch(entries []BatchEntry) ([]byte, error) {
	b := &Batch{Guests: entries}
	if errs := validateBatch(b); len(errs) > 0 {
		return nil, fmt.Errorf("invalid batch entry %d: %s", errs[0].Index, errs[0].Message)
	}

	data, err := json.Marshal(b)
	if err != nil {
		return nil, fmt.Errorf("encode batch: %w", err)
	}
	return data, nil
}
