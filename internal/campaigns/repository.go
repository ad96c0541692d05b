package campaigns

import (
	"context"
	"errors"
)

var (
	ErrNotFound = errors.New("campaigns: not found")
	// ErrLeadStateConflict means a lead was not in the expected state when a
	// transition was attempted; another dispatcher got there first.
	ErrLeadStateConflict = errors.New("campaigns: lead state conflict")
)

// Repository is the persistence contract the dialer needs for campaigns and leads.
type Repository interface {
	GetCampaign(ctx context.Context, campaignID string) (Campaign, error)
	GetLead(ctx context.Context, leadID string) (Lead, error)

	// FirstLead returns the lowest-position lead of the campaign in the given status.
	FirstLead(ctx context.Context, campaignID string, status LeadStatus) (Lead, bool, error)

	// TransitionLead moves a lead from one call status to another as a single
	// conditional update. It returns ErrLeadStateConflict when the lead is not in from.
	TransitionLead(ctx context.Context, leadID string, from, to LeadStatus) error

	CountLeads(ctx context.Context, campaignID string) (map[LeadStatus]int, error)

	// ListLeads returns the campaign's leads in the given status, in position order.
	ListLeads(ctx context.Context, campaignID string, status LeadStatus) ([]Lead, error)
}
