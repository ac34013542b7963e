package model

import "time"

// Invitation statuses. The machine only moves forward:
// PENDING → ACTIVATED → CHECKED_IN, or any non-terminal state → EXPIRED.
const (
	InvitationPending   = "PENDING"
	InvitationActivated = "ACTIVATED"
	InvitationCheckedIn = "CHECKED_IN"
	InvitationExpired   = "EXPIRED"
)

type Invitation struct {
	ID                  int64      `json:"id"`
	GuestID             int64      `json:"guest_id"`
	HostID              int64      `json:"host_id"`
	VisitDate           time.Time  `json:"visit_date"`
	Status              string     `json:"status"`
	Credential          *string    `json:"credential,omitempty"`
	CredentialIssuedAt  *time.Time `json:"credential_issued_at,omitempty"`
	CredentialExpiresAt *time.Time `json:"credential_expires_at,omitempty"`
	VisitID             *int64     `json:"visit_id,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}
