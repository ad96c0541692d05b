package reporting

import (
	"context"
	"errors"
	"fmt"
	"time"

	"campaign-dialer/internal/calls"
	"campaign-dialer/internal/campaigns"
)

var ErrInvalidRequest = errors.New("reporting: invalid request")

// DefaultStaleAfter is how long a calling lead may go without a live call
// before Progress reports it stuck. Twilio stops ringing well before this.
const DefaultStaleAfter = 2 * time.Minute

// Service answers operator questions about campaign progress. It only reads.
type Service struct {
	campaigns  campaigns.Repository
	calls      calls.Store
	staleAfter time.Duration
	clock      func() time.Time
}

func NewService(c campaigns.Repository, s calls.Store) *Service {
	return &Service{campaigns: c, calls: s, staleAfter: DefaultStaleAfter, clock: time.Now}
}

func (s *Service) Progress(ctx context.Context, campaignID string) (Progress, error) {
	if campaignID == "" {
		return Progress{}, ErrInvalidRequest
	}
	if s.campaigns == nil || s.calls == nil {
		return Progress{}, errors.New("reporting: repository not configured")
	}

	c, err := s.campaigns.GetCampaign(ctx, campaignID)
	if err != nil {
		return Progress{}, err
	}
	counts, err := s.campaigns.CountLeads(ctx, campaignID)
	if err != nil {
		return Progress{}, fmt.Errorf("reporting: count leads: %w", err)
	}
	rows, err := s.calls.ListByCampaign(ctx, campaignID)
	if err != nil {
		return Progress{}, fmt.Errorf("reporting: list calls: %w", err)
	}

	out := Progress{CampaignID: c.ID, OrganizationID: c.OrganizationID, Status: c.Status}
	out.Leads = LeadCounts{
		Pending:   counts[campaigns.LeadPending],
		Calling:   counts[campaigns.LeadCalling],
		Completed: counts[campaigns.LeadCompleted],
		Failed:    counts[campaigns.LeadFailed],
	}
	for _, n := range counts {
		out.Leads.Total += n
	}
	out.Calls = summarize(rows)

	if out.Leads.Calling > 0 {
		calling, err := s.campaigns.ListLeads(ctx, campaignID, campaigns.LeadCalling)
		if err != nil {
			return Progress{}, fmt.Errorf("reporting: list calling leads: %w", err)
		}
		out.StuckLeads = s.stuck(calling, rows)
	}

	out.Exhausted = out.Leads.Pending == 0 && out.Leads.Calling == 0
	if c.Status == campaigns.StatusInProgress {
		idle := out.Leads.Pending > 0 && out.Leads.Calling == 0
		out.Stalled = idle || len(out.StuckLeads) > 0
	}
	return out, nil
}

// stuck finds calling leads whose latest call is missing, ended, or silent
// past the stale threshold.
func (s *Service) stuck(leads []campaigns.Lead, rows []calls.Call) []StuckLead {
	latest := make(map[string]calls.Call, len(rows))
	for _, c := range rows {
		if prev, ok := latest[c.LeadID]; !ok || !c.CreatedAt.Before(prev.CreatedAt) {
			latest[c.LeadID] = c
		}
	}

	now := s.clock()
	var out []StuckLead
	for _, l := range leads {
		c, ok := latest[l.ID]
		switch {
		case !ok:
			if now.Sub(l.UpdatedAt) > s.staleAfter {
				out = append(out, StuckLead{LeadID: l.ID, Cause: StuckNoCall})
			}
		case c.Status.IsTerminal():
			if now.Sub(c.UpdatedAt) > s.staleAfter {
				out = append(out, StuckLead{LeadID: l.ID, CallID: c.ProviderCallID, Cause: StuckCallEnded, Status: c.Status})
			}
		case c.Status != calls.CallStatusInProgress:
			if now.Sub(c.UpdatedAt) > s.staleAfter {
				out = append(out, StuckLead{LeadID: l.ID, CallID: c.ProviderCallID, Cause: StuckCallSilent, Status: c.Status})
			}
		}
	}
	return out
}

func summarize(rows []calls.Call) CallCounts {
	var out CallCounts
	for _, c := range rows {
		out.TotalCalls++
		if !c.Status.IsTerminal() {
			out.ActiveCalls++
		}
		switch c.Status {
		case calls.CallStatusCompleted:
			out.CompletedCalls++
		case calls.CallStatusFailed:
			out.FailedCalls++
		case calls.CallStatusNoAnswer:
			out.NoAnswerCalls++
		case calls.CallStatusBusy:
			out.BusyCalls++
		case calls.CallStatusCanceled:
			out.CanceledCalls++
		case calls.CallStatusInProgress:
			out.InProgressCalls++
		case calls.CallStatusQueued, calls.CallStatusInitiated, calls.CallStatusRinging:
			// counted as active only
		}
	}
	return out
}
