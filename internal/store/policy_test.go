package store

import "testing"

func TestPolicyDefaultsSeeded(t *testing.T) {
	ps := NewPolicyStore(setupTestDB(t))

	p, err := ps.Get()
	if err != nil {
		t.Fatalf("get policy: %v", err)
	}
	if p.GuestMonthlyLimit != 4 {
		t.Errorf("guest_monthly_limit = %d, want 4", p.GuestMonthlyLimit)
	}
	if p.HostConcurrentLimit != 3 {
		t.Errorf("host_concurrent_limit = %d, want 3", p.HostConcurrentLimit)
	}
}

func TestPolicyUpdateAllOrNothing(t *testing.T) {
	ps := NewPolicyStore(setupTestDB(t))

	if _, err := ps.Update(6, 0); err != ErrInvalidPolicy {
		t.Errorf("update with zero limit err = %v, want ErrInvalidPolicy", err)
	}

	// The rejected update must not have touched the valid field
	p, err := ps.Get()
	if err != nil {
		t.Fatalf("get policy: %v", err)
	}
	if p.GuestMonthlyLimit != 4 {
		t.Errorf("guest_monthly_limit = %d, want unchanged 4", p.GuestMonthlyLimit)
	}

	p, err = ps.Update(6, 5)
	if err != nil {
		t.Fatalf("update policy: %v", err)
	}
	if p.GuestMonthlyLimit != 6 || p.HostConcurrentLimit != 5 {
		t.Errorf("policy = {%d, %d}, want {6, 5}", p.GuestMonthlyLimit, p.HostConcurrentLimit)
	}
}
