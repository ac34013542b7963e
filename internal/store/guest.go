package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/gatehousehq/gatehouse/internal/model"
)

type GuestStore struct {
	db *sql.DB
}

func NewGuestStore(db *sql.DB) *GuestStore {
	return &GuestStore{db: db}
}

func scanGuest(scanner interface{ Scan(...any) error }) (*model.Guest, error) {
	var g model.Guest
	var blacklistedAt sql.NullTime

	err := scanner.Scan(&g.ID, &g.Email, &g.Name, &blacklistedAt, &g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if blacklistedAt.Valid {
		g.BlacklistedAt = &blacklistedAt.Time
	}
	return &g, nil
}

const guestCols = `id, email, name, blacklisted_at, created_at, updated_at`

// Upsert creates a guest on first contact (invitation or scan) or refreshes
// the display name of an existing one. The email is the stable key.
func (s *GuestStore) Upsert(email, name string) (*model.Guest, error) {
	_, err := s.db.Exec(
		`INSERT INTO guests (email, name) VALUES (?, ?)
		 ON CONFLICT(email) DO UPDATE SET name = excluded.name, updated_at = CURRENT_TIMESTAMP`,
		email, name,
	)
	if err != nil {
		return nil, fmt.Errorf("upsert guest: %w", err)
	}
	return s.GetByEmail(email)
}

func (s *GuestStore) GetByID(id int64) (*model.Guest, error) {
	row := s.db.QueryRow(`SELECT `+guestCols+` FROM guests WHERE id = ?`, id)
	g, err := scanGuest(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get guest: %w", err)
	}
	return g, nil
}

func (s *GuestStore) GetByEmail(email string) (*model.Guest, error) {
	row := s.db.QueryRow(`SELECT `+guestCols+` FROM guests WHERE email = ?`, email)
	g, err := scanGuest(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get guest by email: %w", err)
	}
	return g, nil
}

// SetBlacklisted sets or clears the blacklist marker. A nil timestamp clears it.
func (s *GuestStore) SetBlacklisted(id int64, at *time.Time) error {
	var marker sql.NullTime
	if at != nil {
		marker = sql.NullTime{Time: at.UTC(), Valid: true}
	}

	_, err := s.db.Exec(
		`UPDATE guests SET blacklisted_at = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		marker, id,
	)
	if err != nil {
		return fmt.Errorf("set blacklisted: %w", err)
	}
	return nil
}

func (s *GuestStore) List() ([]model.Guest, error) {
	rows, err := s.db.Query(`SELECT ` + guestCols + ` FROM guests ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("list guests: %w", err)
	}
	defer rows.Close()

	var guests []model.Guest
	for rows.Next() {
		g, err := scanGuest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan guest: %w", err)
		}
		guests = append(guests, *g)
	}
	return guests, rows.Err()
}
