package dispatcher

import (
	"campaign-dialer/internal/calls"
	"campaign-dialer/internal/campaigns"
)

// Reason explains a chaining decision. It is also the metric attribute for
// suppressed chains.
type Reason string

const (
	ReasonCallNotCompleted      Reason = "call_not_completed"
	ReasonCampaignMissing       Reason = "campaign_missing"
	ReasonCampaignNotInProgress Reason = "campaign_not_in_progress"
	ReasonDelayRequested        Reason = "delay_requested"
	ReasonAdvance               Reason = "advance"
)

// CompletionEvent is a terminal status observed for a call.
type CompletionEvent struct {
	ProviderCallID string
	CampaignID     string
	Status         calls.CallStatus
}

// Decision is the outcome of Decide. Advance means: claim the next pending
// lead and queue a call for it.
type Decision struct {
	Advance bool
	Reason  Reason
}

// Decide is the chaining rule. It performs no I/O; campaign is nil when the
// call's campaign no longer exists.
func Decide(ev CompletionEvent, campaign *campaigns.Campaign) Decision {
	switch {
	case ev.Status != calls.CallStatusCompleted:
		return Decision{Reason: ReasonCallNotCompleted}
	case campaign == nil:
		return Decision{Reason: ReasonCampaignMissing}
	case campaign.Status != campaigns.StatusInProgress:
		return Decision{Reason: ReasonCampaignNotInProgress}
	case campaign.Options.AllowDelay:
		return Decision{Reason: ReasonDelayRequested}
	default:
		return Decision{Advance: true, Reason: ReasonAdvance}
	}
}
