package model

import "time"

// Guest is identified by email. A non-nil BlacklistedAt means the guest is
// banned; guests are never hard-deleted while visits reference them.
type Guest struct {
	ID            int64      `json:"id"`
	Email         string     `json:"email"`
	Name          string     `json:"name"`
	BlacklistedAt *time.Time `json:"blacklisted_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// Blacklisted reports whether the blacklist marker is set.
func (g *Guest) Blacklisted() bool {
	return g.BlacklistedAt != nil
}

// Acceptance is an immutable terms-acceptance record. A guest may have many;
// only the most recent one counts toward validity.
type Acceptance struct {
	ID               int64     `json:"id"`
	GuestID          int64     `json:"guest_id"`
	AcceptedAt       time.Time `json:"accepted_at"`
	TermsVersion     string    `json:"terms_version"`
	AgreementVersion string    `json:"agreement_version"`
}

// Host is a building tenant who invites guests.
type Host struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}
