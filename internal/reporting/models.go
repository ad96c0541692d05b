package reporting

import (
	"campaign-dialer/internal/calls"
	"campaign-dialer/internal/campaigns"
)

// Progress is a point-in-time view of how far a campaign's chain has run.
type Progress struct {
	CampaignID     string           `json:"campaign_id"`
	OrganizationID string           `json:"organization_id"`
	Status         campaigns.Status `json:"status"`

	Leads LeadCounts `json:"leads"`
	Calls CallCounts `json:"calls"`

	// Exhausted is set once no lead is pending or being called.
	Exhausted bool `json:"exhausted"`
	// Stalled flags an in-progress campaign whose chain stopped: pending leads
	// with nothing dialing, or a lead stuck in calling. The chain needs a
	// manual dispatch to resume.
	Stalled bool `json:"stalled"`
	// StuckLeads are calling leads with no live call behind them for longer
	// than the service's stale threshold.
	StuckLeads []StuckLead `json:"stuck_leads,omitempty"`
}

// StuckLead explains why a calling lead counts as stuck.
type StuckLead struct {
	LeadID string `json:"lead_id"`
	// CallID is the provider call id of the lead's latest call, if any.
	CallID string           `json:"call_id,omitempty"`
	Cause  StuckCause       `json:"cause"`
	Status calls.CallStatus `json:"call_status,omitempty"`
}

type StuckCause string

const (
	// StuckNoCall: the lead was claimed but no call was ever recorded for it.
	StuckNoCall StuckCause = "no_call"
	// StuckCallEnded: the call ended but its completion was never processed.
	StuckCallEnded StuckCause = "call_ended"
	// StuckCallSilent: the call never got past ringing and stopped reporting.
	StuckCallSilent StuckCause = "call_silent"
)

type LeadCounts struct {
	Total     int `json:"total"`
	Pending   int `json:"pending"`
	Calling   int `json:"calling"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
}

type CallCounts struct {
	TotalCalls      int `json:"total_calls"`
	ActiveCalls     int `json:"active_calls"`
	InProgressCalls int `json:"in_progress_calls"`
	CompletedCalls  int `json:"completed_calls"`
	FailedCalls     int `json:"failed_calls"`
	NoAnswerCalls   int `json:"no_answer_calls"`
	BusyCalls       int `json:"busy_calls"`
	CanceledCalls   int `json:"canceled_calls"`
}
