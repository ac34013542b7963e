package model

import "time"

// Policy is the singleton row of tunable admission limits. The evaluator
// reads it fresh on every decision; stale limits over-admit.
type Policy struct {
	GuestMonthlyLimit   int       `json:"guest_monthly_limit"`
	HostConcurrentLimit int       `json:"host_concurrent_limit"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// RewardEvent records a loyalty milestone for a guest. At most one row
// exists per (guest, milestone).
type RewardEvent struct {
	ID               int64     `json:"id"`
	GuestID          int64     `json:"guest_id"`
	Milestone        int       `json:"milestone"`
	TriggeredAt      time.Time `json:"triggered_at"`
	NotificationSent bool      `json:"notification_sent"`
}
