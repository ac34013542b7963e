package store

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/gatehousehq/gatehouse/internal/model"
)

// ErrInvalidPolicy is returned when an update carries a non-positive limit.
var ErrInvalidPolicy = errors.New("policy limits must be positive")

// PolicyStore holds the singleton admission limits row. Callers read it fresh
// per decision; it is never cached across requests.
type PolicyStore struct {
	db *sql.DB
}

func NewPolicyStore(db *sql.DB) *PolicyStore {
	return &PolicyStore{db: db}
}

func (s *PolicyStore) Get() (*model.Policy, error) {
	var p model.Policy
	err := s.db.QueryRow(
		`SELECT guest_monthly_limit, host_concurrent_limit, updated_at FROM policy WHERE id = 1`,
	).Scan(&p.GuestMonthlyLimit, &p.HostConcurrentLimit, &p.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("get policy: %w", err)
	}
	return &p, nil
}

// Update replaces both limits together. Validation is all-or-nothing: a bad
// value in either field rejects the whole update.
func (s *PolicyStore) Update(guestMonthlyLimit, hostConcurrentLimit int) (*model.Policy, error) {
	if guestMonthlyLimit <= 0 || hostConcurrentLimit <= 0 {
		return nil, ErrInvalidPolicy
	}

	_, err := s.db.Exec(
		`UPDATE policy SET guest_monthly_limit = ?, host_concurrent_limit = ?, updated_at = CURRENT_TIMESTAMP WHERE id = 1`,
		guestMonthlyLimit, hostConcurrentLimit,
	)
	if err != nil {
		return nil, fmt.Errorf("update policy: %w", err)
	}
	return s.Get()
}
