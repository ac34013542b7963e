package model

import "time"

// Visit is created only by the admission engine's commit step and is
// immutable afterward except for an explicit checkout. A nil InvitationID
// means walk-in: no matching pending/activated invitation was found.
type Visit struct {
	ID                   int64      `json:"id"`
	PublicID             string     `json:"public_id"`
	GuestID              int64      `json:"guest_id"`
	HostID               int64      `json:"host_id"`
	Location             string     `json:"location,omitempty"`
	InvitationID         *int64     `json:"invitation_id,omitempty"`
	CheckedInAt          time.Time  `json:"checked_in_at"`
	ExpiresAt            time.Time  `json:"expires_at"`
	CheckedOutAt         *time.Time `json:"checked_out_at,omitempty"`
	OverrideReason       *string    `json:"override_reason,omitempty"`
	OverrideAuthorizedBy *string    `json:"override_authorized_by,omitempty"`
	OverrideAt           *time.Time `json:"override_at,omitempty"`
}

// Active reports whether the visit is still open at the given instant.
func (v *Visit) Active(now time.Time) bool {
	return v.CheckedOutAt == nil && v.ExpiresAt.After(now)
}
