package campaigns

import (
	"context"
	"errors"
	"fmt"
)

// maxClaimRaces bounds how many times ClaimNext re-selects after losing a claim.
const maxClaimRaces = 5

// Selector picks the next lead to dial for a campaign.
//
// Selection order is lead position (insertion order), then id.
// Claiming is a conditional pending -> calling update, so two dispatchers
// racing for the same lead cannot both win.
type Selector struct {
	repo Repository
}

func NewSelector(repo Repository) *Selector {
	return &Selector{repo: repo}
}

// NextPending returns the first pending lead of the campaign, or nil when none remain.
func (s *Selector) NextPending(ctx context.Context, c Campaign) (*Lead, error) {
	if c.ID == "" {
		return nil, errors.New("campaigns: campaign id required")
	}
	l, ok, err := s.repo.FirstLead(ctx, c.ID, LeadPending)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return &l, nil
}

// Claim marks a pending lead as calling.
func (s *Selector) Claim(ctx context.Context, leadID string) error {
	return s.repo.TransitionLead(ctx, leadID, LeadPending, LeadCalling)
}

// ClaimNext selects and claims the next pending lead, re-selecting when another
// dispatcher claims the candidate first. It returns nil when the campaign is exhausted.
func (s *Selector) ClaimNext(ctx context.Context, c Campaign) (*Lead, error) {
	for i := 0; i < maxClaimRaces; i++ {
		l, err := s.NextPending(ctx, c)
		if err != nil || l == nil {
			return nil, err
		}
		err = s.Claim(ctx, l.ID)
		if err == nil {
			l.CallStatus = LeadCalling
			return l, nil
		}
		if !errors.Is(err, ErrLeadStateConflict) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("campaigns: claim for %s lost %d races: %w", c.ID, maxClaimRaces, ErrLeadStateConflict)
}

// Finish settles a calling lead as completed or failed.
func (s *Selector) Finish(ctx context.Context, leadID string, outcome LeadStatus) error {
	if outcome != LeadCompleted && outcome != LeadFailed {
		return fmt.Errorf("campaigns: invalid lead outcome %q", outcome)
	}
	return s.repo.TransitionLead(ctx, leadID, LeadCalling, outcome)
}

// Release returns a claimed lead to pending when no call was placed for it.
func (s *Selector) Release(ctx context.Context, leadID string) error {
	return s.repo.TransitionLead(ctx, leadID, LeadCalling, LeadPending)
}
