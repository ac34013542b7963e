package admission

import (
	"fmt"
	"time"

	"github.com/gatehousehq/gatehouse/internal/model"
	"github.com/gatehousehq/gatehouse/internal/store"
)

// ReentryResolver answers "is this guest already inside?" before any limit
// check runs.
type ReentryResolver struct {
	visits *store.VisitStore
	hosts  *store.HostStore
}

func NewReentryResolver(visits *store.VisitStore, hosts *store.HostStore) *ReentryResolver {
	return &ReentryResolver{visits: visits, hosts: hosts}
}

// Reentry describes an existing active visit found for the guest. CrossHost
// is set when the open visit belongs to a different host than the one
// scanning: surfaced as an anomaly, never blocked — the guest is already in
// the building.
type Reentry struct {
	Visit         *model.Visit
	CrossHost     bool
	OtherHostName string
}

// Resolve returns nil when the guest holds no active visit. A same-host
// visit wins over cross-host ones when both exist.
func (r *ReentryResolver) Resolve(guestID, hostID int64, now time.Time) (*Reentry, error) {
	active, err := r.visits.ActiveByGuest(guestID, now)
	if err != nil {
		return nil, fmt.Errorf("resolve re-entry: %w", err)
	}
	if len(active) == 0 {
		return nil, nil
	}

	for i := range active {
		if active[i].HostID == hostID {
			return &Reentry{Visit: &active[i]}, nil
		}
	}

	other := &active[0]
	name := ""
	if host, err := r.hosts.GetByID(other.HostID); err == nil && host != nil {
		name = host.Name
	}
	return &Reentry{Visit: other, CrossHost: true, OtherHostName: name}, nil
}
