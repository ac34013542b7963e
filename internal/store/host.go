package store

import (
	"database/sql"
	"fmt"

	"github.com/gatehousehq/gatehouse/internal/model"
)

type HostStore struct {
	db *sql.DB
}

func NewHostStore(db *sql.DB) *HostStore {
	return &HostStore{db: db}
}

func scanHost(scanner interface{ Scan(...any) error }) (*model.Host, error) {
	var h model.Host
	err := scanner.Scan(&h.ID, &h.Name, &h.Email, &h.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &h, nil
}

const hostCols = `id, name, email, created_at`

func (s *HostStore) Create(name, email string) (*model.Host, error) {
	result, err := s.db.Exec(`INSERT INTO hosts (name, email) VALUES (?, ?)`, name, email)
	if err != nil {
		return nil, fmt.Errorf("insert host: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *HostStore) GetByID(id int64) (*model.Host, error) {
	row := s.db.QueryRow(`SELECT `+hostCols+` FROM hosts WHERE id = ?`, id)
	h, err := scanHost(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get host: %w", err)
	}
	return h, nil
}

func (s *HostStore) List() ([]model.Host, error) {
	rows, err := s.db.Query(`SELECT ` + hostCols + ` FROM hosts ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("list hosts: %w", err)
	}
	defer rows.Close()

	var hosts []model.Host
	for rows.Next() {
		h, err := scanHost(rows)
		if err != nil {
			return nil, fmt.Errorf("scan host: %w", err)
		}
		hosts = append(hosts, *h)
	}
	return hosts, rows.Err()
}
