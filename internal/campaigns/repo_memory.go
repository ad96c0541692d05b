package campaigns

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepo is an in-memory Repository for tests and local development.
type MemoryRepo struct {
	mu        sync.Mutex
	campaigns map[string]Campaign
	leads     map[string]Lead
	nextPos   int64
	clock     func() time.Time
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		campaigns: map[string]Campaign{},
		leads:     map[string]Lead{},
		clock:     time.Now,
	}
}

// PutCampaign inserts or replaces a campaign.
func (r *MemoryRepo) PutCampaign(c Campaign) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.campaigns[c.ID] = c
}

// AddLead appends a lead; a zero Position is assigned in insertion order.
func (r *MemoryRepo) AddLead(l Lead) Lead {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextPos++
	if l.Position == 0 {
		l.Position = r.nextPos
	}
	if l.CallStatus == "" {
		l.CallStatus = LeadPending
	}
	if l.UpdatedAt.IsZero() {
		l.UpdatedAt = r.clock().UTC()
	}
	r.leads[l.ID] = l
	return l
}

// SetCampaignStatus mutates a stored campaign status, standing in for campaign management.
func (r *MemoryRepo) SetCampaignStatus(campaignID string, s Status) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := r.campaigns[campaignID]
	c.Status = s
	r.campaigns[campaignID] = c
}

func (r *MemoryRepo) GetCampaign(ctx context.Context, campaignID string) (Campaign, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.campaigns[campaignID]
	if !ok {
		return Campaign{}, ErrNotFound
	}
	return c, nil
}

func (r *MemoryRepo) GetLead(ctx context.Context, leadID string) (Lead, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.leads[leadID]
	if !ok {
		return Lead{}, ErrNotFound
	}
	return l, nil
}

func (r *MemoryRepo) FirstLead(ctx context.Context, campaignID string, status LeadStatus) (Lead, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var best Lead
	found := false
	for _, l := range r.leads {
		if l.CampaignID != campaignID || l.CallStatus != status {
			continue
		}
		if !found || l.Position < best.Position || (l.Position == best.Position && l.ID < best.ID) {
			best = l
			found = true
		}
	}
	return best, found, nil
}

func (r *MemoryRepo) TransitionLead(ctx context.Context, leadID string, from, to LeadStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.leads[leadID]
	if !ok {
		return ErrNotFound
	}
	if l.CallStatus != from {
		return ErrLeadStateConflict
	}
	l.CallStatus = to
	l.UpdatedAt = r.clock().UTC()
	r.leads[leadID] = l
	return nil
}

func (r *MemoryRepo) CountLeads(ctx context.Context, campaignID string) (map[LeadStatus]int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := map[LeadStatus]int{}
	for _, l := range r.leads {
		if l.CampaignID == campaignID {
			out[l.CallStatus]++
		}
	}
	return out, nil
}

func (r *MemoryRepo) ListLeads(ctx context.Context, campaignID string, status LeadStatus) ([]Lead, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Lead
	for _, l := range r.leads {
		if l.CampaignID == campaignID && l.CallStatus == status {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Position != out[j].Position {
			return out[i].Position < out[j].Position
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// SetLeadUpdatedAt backdates a lead, standing in for time passing.
func (r *MemoryRepo) SetLeadUpdatedAt(leadID string, at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l := r.leads[leadID]
	l.UpdatedAt = at
	r.leads[leadID] = l
}
