package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/gatehousehq/gatehouse/internal/model"
)

// ErrAlreadyCheckedOut is returned when a checkout targets a closed visit.
var ErrAlreadyCheckedOut = errors.New("visit already checked out")

type VisitStore struct {
	db *sql.DB
}

func NewVisitStore(db *sql.DB) *VisitStore {
	return &VisitStore{db: db}
}

func scanVisit(scanner interface{ Scan(...any) error }) (*model.Visit, error) {
	var v model.Visit
	var invitationID sql.NullInt64
	var checkedOutAt, overrideAt sql.NullTime
	var overrideReason, overrideBy sql.NullString

	err := scanner.Scan(
		&v.ID, &v.PublicID, &v.GuestID, &v.HostID, &v.Location, &invitationID,
		&v.CheckedInAt, &v.ExpiresAt, &checkedOutAt, &overrideReason, &overrideBy, &overrideAt,
	)
	if err != nil {
		return nil, err
	}

	if invitationID.Valid {
		v.InvitationID = &invitationID.Int64
	}
	if checkedOutAt.Valid {
		v.CheckedOutAt = &checkedOutAt.Time
	}
	if overrideReason.Valid {
		v.OverrideReason = &overrideReason.String
	}
	if overrideBy.Valid {
		v.OverrideAuthorizedBy = &overrideBy.String
	}
	if overrideAt.Valid {
		v.OverrideAt = &overrideAt.Time
	}
	return &v, nil
}

const visitCols = `id, public_id, guest_id, host_id, location, invitation_id,
	checked_in_at, expires_at, checked_out_at, override_reason, override_authorized_by, override_at`

const activeVisit = `checked_out_at IS NULL AND expires_at > ?`

// NewVisit describes the row the admission commit inserts.
type NewVisit struct {
	GuestID              int64
	HostID               int64
	Location             string
	InvitationID         *int64
	CheckedInAt          time.Time
	ExpiresAt            time.Time
	OverrideReason       *string
	OverrideAuthorizedBy *string
	OverrideAt           *time.Time
}

// InsertTx inserts a visit inside the admission commit transaction.
func (s *VisitStore) InsertTx(tx *sql.Tx, nv NewVisit) (*model.Visit, error) {
	var invitationID sql.NullInt64
	if nv.InvitationID != nil {
		invitationID = sql.NullInt64{Int64: *nv.InvitationID, Valid: true}
	}
	var reason, by sql.NullString
	if nv.OverrideReason != nil {
		reason = sql.NullString{String: *nv.OverrideReason, Valid: true}
	}
	if nv.OverrideAuthorizedBy != nil {
		by = sql.NullString{String: *nv.OverrideAuthorizedBy, Valid: true}
	}
	var overrideAt sql.NullTime
	if nv.OverrideAt != nil {
		overrideAt = sql.NullTime{Time: nv.OverrideAt.UTC(), Valid: true}
	}

	result, err := tx.Exec(
		`INSERT INTO visits (public_id, guest_id, host_id, location, invitation_id,
		   checked_in_at, expires_at, override_reason, override_authorized_by, override_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		uuid.NewString(), nv.GuestID, nv.HostID, nv.Location, invitationID,
		nv.CheckedInAt.UTC(), nv.ExpiresAt.UTC(), reason, by, overrideAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert visit: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	row := tx.QueryRow(`SELECT `+visitCols+` FROM visits WHERE id = ?`, id)
	v, err := scanVisit(row)
	if err != nil {
		return nil, fmt.Errorf("read back visit: %w", err)
	}
	return v, nil
}

// CountActiveByGuestTx re-counts the guest's open visits inside the commit
// transaction. The pre-commit re-entry read runs in autocommit, so this is
// what actually holds "at most one active visit per guest" under concurrency.
func (s *VisitStore) CountActiveByGuestTx(tx *sql.Tx, guestID int64, now time.Time) (int, error) {
	var n int
	err := tx.QueryRow(
		`SELECT COUNT(*) FROM visits WHERE guest_id = ? AND `+activeVisit,
		guestID, now.UTC(),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count active by guest tx: %w", err)
	}
	return n, nil
}

func (s *VisitStore) GetByID(id int64) (*model.Visit, error) {
	row := s.db.QueryRow(`SELECT `+visitCols+` FROM visits WHERE id = ?`, id)
	v, err := scanVisit(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get visit: %w", err)
	}
	return v, nil
}

// ActiveByGuest returns the guest's open visits across all hosts, newest first.
func (s *VisitStore) ActiveByGuest(guestID int64, now time.Time) ([]model.Visit, error) {
	rows, err := s.db.Query(
		`SELECT `+visitCols+` FROM visits WHERE guest_id = ? AND `+activeVisit+` ORDER BY checked_in_at DESC`,
		guestID, now.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("active visits by guest: %w", err)
	}
	defer rows.Close()
	return collectVisits(rows)
}

// Active returns every open visit in the building, newest first.
func (s *VisitStore) Active(now time.Time) ([]model.Visit, error) {
	rows, err := s.db.Query(
		`SELECT `+visitCols+` FROM visits WHERE `+activeVisit+` ORDER BY checked_in_at DESC`,
		now.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("active visits: %w", err)
	}
	defer rows.Close()
	return collectVisits(rows)
}

// ActiveByHost returns a host's open visits, newest first.
func (s *VisitStore) ActiveByHost(hostID int64, now time.Time) ([]model.Visit, error) {
	rows, err := s.db.Query(
		`SELECT `+visitCols+` FROM visits WHERE host_id = ? AND `+activeVisit+` ORDER BY checked_in_at DESC`,
		hostID, now.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("active visits by host: %w", err)
	}
	defer rows.Close()
	return collectVisits(rows)
}

func collectVisits(rows *sql.Rows) ([]model.Visit, error) {
	var visits []model.Visit
	for rows.Next() {
		v, err := scanVisit(rows)
		if err != nil {
			return nil, fmt.Errorf("scan visit: %w", err)
		}
		visits = append(visits, *v)
	}
	return visits, rows.Err()
}

// CountActiveByHost counts a host's currently-open visits.
func (s *VisitStore) CountActiveByHost(hostID int64, now time.Time) (int, error) {
	var n int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM visits WHERE host_id = ? AND `+activeVisit,
		hostID, now.UTC(),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count active by host: %w", err)
	}
	return n, nil
}

// CountActiveByHostTx is the in-transaction recount: the capacity check and
// the insert that could violate it must share one atomic unit.
func (s *VisitStore) CountActiveByHostTx(tx *sql.Tx, hostID int64, now time.Time) (int, error) {
	var n int
	err := tx.QueryRow(
		`SELECT COUNT(*) FROM visits WHERE host_id = ? AND `+activeVisit,
		hostID, now.UTC(),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count active by host tx: %w", err)
	}
	return n, nil
}

// RecentCheckIns returns up to limit check-in timestamps for a guest since
// the given instant, most recent first. Feeds the rolling 30-day limit.
func (s *VisitStore) RecentCheckIns(guestID int64, since time.Time, limit int) ([]time.Time, error) {
	rows, err := s.db.Query(
		`SELECT checked_in_at FROM visits WHERE guest_id = ? AND checked_in_at >= ?
		 ORDER BY checked_in_at DESC LIMIT ?`,
		guestID, since.UTC(), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("recent check-ins: %w", err)
	}
	defer rows.Close()

	var times []time.Time
	for rows.Next() {
		var t time.Time
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("scan check-in time: %w", err)
		}
		times = append(times, t)
	}
	return times, rows.Err()
}

// CountCompleted counts a guest's lifetime completed visits. Every visit row
// has checked_in_at set by construction, so this is the row count.
func (s *VisitStore) CountCompleted(guestID int64) (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM visits WHERE guest_id = ?`, guestID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count completed visits: %w", err)
	}
	return n, nil
}

// Checkout closes an open visit. Closing twice is an error.
func (s *VisitStore) Checkout(id int64, now time.Time) error {
	result, err := s.db.Exec(
		`UPDATE visits SET checked_out_at = ? WHERE id = ? AND checked_out_at IS NULL`,
		now.UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("checkout visit: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrAlreadyCheckedOut
	}
	return nil
}
