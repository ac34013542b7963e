package store

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/gatehousehq/gatehouse/internal/model"
)

type RewardStore struct {
	db *sql.DB
}

func NewRewardStore(db *sql.DB) *RewardStore {
	return &RewardStore{db: db}
}

func scanRewardEvent(scanner interface{ Scan(...any) error }) (*model.RewardEvent, error) {
	var e model.RewardEvent
	var sent int
	err := scanner.Scan(&e.ID, &e.GuestID, &e.Milestone, &e.TriggeredAt, &sent)
	if err != nil {
		return nil, err
	}
	e.NotificationSent = sent != 0
	return &e, nil
}

const rewardEventCols = `id, guest_id, milestone, triggered_at, notification_sent`

// Create records a milestone reward for a guest. The (guest, milestone) unique
// constraint makes retries idempotent: a duplicate returns (nil, nil) rather
// than a second row.
func (s *RewardStore) Create(guestID int64, milestone int, triggeredAt time.Time) (*model.RewardEvent, error) {
	result, err := s.db.Exec(
		`INSERT INTO reward_events (guest_id, milestone, triggered_at) VALUES (?, ?, ?)`,
		guestID, milestone, triggeredAt.UTC(),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return nil, nil
		}
		return nil, fmt.Errorf("insert reward event: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	row := s.db.QueryRow(`SELECT `+rewardEventCols+` FROM reward_events WHERE id = ?`, id)
	return scanRewardEvent(row)
}

// Get returns the reward event for a guest milestone, or nil if none fired.
func (s *RewardStore) Get(guestID int64, milestone int) (*model.RewardEvent, error) {
	row := s.db.QueryRow(
		`SELECT `+rewardEventCols+` FROM reward_events WHERE guest_id = ? AND milestone = ?`,
		guestID, milestone,
	)
	e, err := scanRewardEvent(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get reward event: %w", err)
	}
	return e, nil
}

// MarkNotified records that the reward notification went out. Dispatch
// failures leave the flag unset; the reward row itself is never unwound.
func (s *RewardStore) MarkNotified(id int64) error {
	_, err := s.db.Exec(`UPDATE reward_events SET notification_sent = 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("mark reward notified: %w", err)
	}
	return nil
}
