package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/gatehousehq/gatehouse/internal/model"
)

type AcceptanceStore struct {
	db *sql.DB
}

func NewAcceptanceStore(db *sql.DB) *AcceptanceStore {
	return &AcceptanceStore{db: db}
}

func scanAcceptance(scanner interface{ Scan(...any) error }) (*model.Acceptance, error) {
	var a model.Acceptance
	err := scanner.Scan(&a.ID, &a.GuestID, &a.AcceptedAt, &a.TermsVersion, &a.AgreementVersion)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

const acceptanceCols = `id, guest_id, accepted_at, terms_version, agreement_version`

// Create appends an acceptance record. Records are immutable; renewals are
// new rows, never updates.
func (s *AcceptanceStore) Create(guestID int64, acceptedAt time.Time, termsVersion, agreementVersion string) (*model.Acceptance, error) {
	result, err := s.db.Exec(
		`INSERT INTO acceptances (guest_id, accepted_at, terms_version, agreement_version) VALUES (?, ?, ?, ?)`,
		guestID, acceptedAt.UTC(), termsVersion, agreementVersion,
	)
	if err != nil {
		return nil, fmt.Errorf("insert acceptance: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	row := s.db.QueryRow(`SELECT `+acceptanceCols+` FROM acceptances WHERE id = ?`, id)
	return scanAcceptance(row)
}

// LatestByGuest returns the most recent acceptance for a guest, or nil if the
// guest has never accepted terms.
func (s *AcceptanceStore) LatestByGuest(guestID int64) (*model.Acceptance, error) {
	row := s.db.QueryRow(
		`SELECT `+acceptanceCols+` FROM acceptances WHERE guest_id = ? ORDER BY accepted_at DESC, id DESC LIMIT 1`,
		guestID,
	)
	a, err := scanAcceptance(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest acceptance: %w", err)
	}
	return a, nil
}

func (s *AcceptanceStore) ListByGuest(guestID int64) ([]model.Acceptance, error) {
	rows, err := s.db.Query(
		`SELECT `+acceptanceCols+` FROM acceptances WHERE guest_id = ? ORDER BY accepted_at DESC, id DESC`,
		guestID,
	)
	if err != nil {
		return nil, fmt.Errorf("list acceptances: %w", err)
	}
	defer rows.Close()

	var acceptances []model.Acceptance
	for rows.Next() {
		a, err := scanAcceptance(rows)
		if err != nil {
			return nil, fmt.Errorf("scan acceptance: %w", err)
		}
		acceptances = append(acceptances, *a)
	}
	return acceptances, rows.Err()
}
