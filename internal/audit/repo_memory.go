package audit

import (
	"context"
	"sync"
)

// MemoryRepo keeps events in process, in append order. Used by tests and by
// local runs without Postgres.
type MemoryRepo struct {
	mu      sync.Mutex
	byOrg   map[string][]Event
	ordered []Event
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{byOrg: map[string][]Event{}} }

func (r *MemoryRepo) Append(ctx context.Context, e Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byOrg[e.OrganizationID] = append(r.byOrg[e.OrganizationID], e)
	r.ordered = append(r.ordered, e)
	return nil
}

// Events returns a copy of every event across organizations.
func (r *MemoryRepo) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.ordered...)
}

// ForOrganization returns a copy of one organization's events.
func (r *MemoryRepo) ForOrganization(organizationID string) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.byOrg[organizationID]...)
}
