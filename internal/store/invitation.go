package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/gatehousehq/gatehouse/internal/model"
)

// ErrInvalidTransition is returned when an update would move an invitation
// backward in its status machine.
var ErrInvalidTransition = errors.New("invalid invitation status transition")

type InvitationStore struct {
	db *sql.DB
}

func NewInvitationStore(db *sql.DB) *InvitationStore {
	return &InvitationStore{db: db}
}

func scanInvitation(scanner interface{ Scan(...any) error }) (*model.Invitation, error) {
	var inv model.Invitation
	var credential sql.NullString
	var issuedAt, expiresAt sql.NullTime
	var visitID sql.NullInt64

	err := scanner.Scan(
		&inv.ID, &inv.GuestID, &inv.HostID, &inv.VisitDate, &inv.Status,
		&credential, &issuedAt, &expiresAt, &visitID, &inv.CreatedAt, &inv.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if credential.Valid {
		inv.Credential = &credential.String
	}
	if issuedAt.Valid {
		inv.CredentialIssuedAt = &issuedAt.Time
	}
	if expiresAt.Valid {
		inv.CredentialExpiresAt = &expiresAt.Time
	}
	if visitID.Valid {
		inv.VisitID = &visitID.Int64
	}
	return &inv, nil
}

const invitationCols = `id, guest_id, host_id, visit_date, status, credential,
	credential_issued_at, credential_expires_at, visit_id, created_at, updated_at`

func (s *InvitationStore) Create(guestID, hostID int64, visitDate time.Time) (*model.Invitation, error) {
	result, err := s.db.Exec(
		`INSERT INTO invitations (guest_id, host_id, visit_date) VALUES (?, ?, ?)`,
		guestID, hostID, visitDate.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("insert invitation: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *InvitationStore) GetByID(id int64) (*model.Invitation, error) {
	row := s.db.QueryRow(`SELECT `+invitationCols+` FROM invitations WHERE id = ?`, id)
	inv, err := scanInvitation(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get invitation: %w", err)
	}
	return inv, nil
}

// Activate moves a PENDING invitation to ACTIVATED. Any other starting state
// is an invalid transition: the machine never regresses.
func (s *InvitationStore) Activate(id int64) (*model.Invitation, error) {
	result, err := s.db.Exec(
		`UPDATE invitations SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ? AND status = ?`,
		model.InvitationActivated, id, model.InvitationPending,
	)
	if err != nil {
		return nil, fmt.Errorf("activate invitation: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return nil, ErrInvalidTransition
	}
	return s.GetByID(id)
}

// SetCredential records the issued single-guest credential on the invitation.
func (s *InvitationStore) SetCredential(id int64, credential string, issuedAt, expiresAt time.Time) error {
	_, err := s.db.Exec(
		`UPDATE invitations SET credential = ?, credential_issued_at = ?, credential_expires_at = ?,
		 updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		credential, issuedAt.UTC(), expiresAt.UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("set credential: %w", err)
	}
	return nil
}

func (s *InvitationStore) ListByHost(hostID int64) ([]model.Invitation, error) {
	rows, err := s.db.Query(
		`SELECT `+invitationCols+` FROM invitations WHERE host_id = ? ORDER BY visit_date DESC, id DESC`,
		hostID,
	)
	if err != nil {
		return nil, fmt.Errorf("list invitations: %w", err)
	}
	defer rows.Close()

	var invitations []model.Invitation
	for rows.Next() {
		inv, err := scanInvitation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan invitation: %w", err)
		}
		invitations = append(invitations, *inv)
	}
	return invitations, rows.Err()
}

// ExpireStale marks PENDING and ACTIVATED invitations whose visit date passed
// more than a day ago as EXPIRED. Returns the number of rows expired.
func (s *InvitationStore) ExpireStale(now time.Time) (int64, error) {
	result, err := s.db.Exec(
		`UPDATE invitations SET status = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE status IN (?, ?) AND visit_date < ?`,
		model.InvitationExpired, model.InvitationPending, model.InvitationActivated,
		now.UTC().Add(-24*time.Hour),
	)
	if err != nil {
		return 0, fmt.Errorf("expire invitations: %w", err)
	}
	return result.RowsAffected()
}

// consumableStatuses orders candidates for check-in: ACTIVATED beats PENDING,
// then most recent first.
const findForCheckInOrder = ` ORDER BY CASE status WHEN 'ACTIVATED' THEN 0 ELSE 1 END, created_at DESC, id DESC LIMIT 1`

// FindByIDForCheckInTx fetches the invitation a signed credential named, if
// it still belongs to this guest and is consumable. Runs inside the admission
// commit transaction.
func (s *InvitationStore) FindByIDForCheckInTx(tx *sql.Tx, id, guestID int64) (*model.Invitation, error) {
	row := tx.QueryRow(
		`SELECT `+invitationCols+` FROM invitations
		 WHERE id = ? AND guest_id = ? AND status IN (?, ?)`,
		id, guestID, model.InvitationPending, model.InvitationActivated,
	)
	inv, err := scanInvitation(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find invitation by id: %w", err)
	}
	return inv, nil
}

// FindForCheckInTx locates the best-matching consumable invitation for a
// guest under a specific host, within one day either side of the visit date.
// Runs inside the admission commit transaction.
func (s *InvitationStore) FindForCheckInTx(tx *sql.Tx, guestID, hostID int64, visitDate time.Time) (*model.Invitation, error) {
	lo := visitDate.UTC().Add(-24 * time.Hour)
	hi := visitDate.UTC().Add(24 * time.Hour)
	row := tx.QueryRow(
		`SELECT `+invitationCols+` FROM invitations
		 WHERE guest_id = ? AND host_id = ? AND status IN (?, ?) AND visit_date BETWEEN ? AND ?`+findForCheckInOrder,
		guestID, hostID, model.InvitationPending, model.InvitationActivated, lo, hi,
	)
	inv, err := scanInvitation(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find invitation for check-in: %w", err)
	}
	return inv, nil
}

// FindForCheckInAnyHostTx is the host-unconstrained fallback lookup, used
// when the guest holds an invitation from a different host than the one
// scanning them.
func (s *InvitationStore) FindForCheckInAnyHostTx(tx *sql.Tx, guestID int64, visitDate time.Time) (*model.Invitation, error) {
	lo := visitDate.UTC().Add(-24 * time.Hour)
	hi := visitDate.UTC().Add(24 * time.Hour)
	row := tx.QueryRow(
		`SELECT `+invitationCols+` FROM invitations
		 WHERE guest_id = ? AND status IN (?, ?) AND visit_date BETWEEN ? AND ?`+findForCheckInOrder,
		guestID, model.InvitationPending, model.InvitationActivated, lo, hi,
	)
	inv, err := scanInvitation(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find invitation any host: %w", err)
	}
	return inv, nil
}

// MarkCheckedInTx advances an invitation to CHECKED_IN and links the visit
// that consumed it. The status guard makes the transition forward-only even
// under concurrent commits.
func (s *InvitationStore) MarkCheckedInTx(tx *sql.Tx, id, visitID int64) error {
	result, err := tx.Exec(
		`UPDATE invitations SET status = ?, visit_id = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND status IN (?, ?)`,
		model.InvitationCheckedIn, visitID, id, model.InvitationPending, model.InvitationActivated,
	)
	if err != nil {
		return fmt.Errorf("mark invitation checked in: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrInvalidTransition
	}
	return nil
}
