package dispatcher

import (
	"errors"

	"campaign-dialer/internal/calls"
)

// Error kinds returned by Start. Each failure is also logged and counted by
// the dispatcher, so batch callers may simply log-and-continue.
var (
	// ErrConfiguration means no outbound number is configured. Nothing is written.
	ErrConfiguration = errors.New("dispatcher: outbound number not configured")
	// ErrGateway means the provider rejected or never answered the call request.
	ErrGateway = errors.New("dispatcher: gateway failed to place call")
	// ErrCodeExhausted means no free call code was found within the attempt cap.
	ErrCodeExhausted = calls.ErrCodeExhausted
	// ErrPersistence means the call was placed but its records could not be written.
	ErrPersistence = errors.New("dispatcher: persist call")
	// ErrLeadUnavailable means the lead is not claimable, or none is pending.
	ErrLeadUnavailable = errors.New("dispatcher: lead unavailable")
	// ErrCampaignInactive means the campaign is not in progress.
	ErrCampaignInactive = errors.New("dispatcher: campaign not in progress")
)

// failureKind maps an error kind to the dialer.dispatch.failures attribute.
func failureKind(err error) string {
	switch {
	case errors.Is(err, ErrConfiguration):
		return "configuration"
	case errors.Is(err, ErrCodeExhausted):
		return "code"
	case errors.Is(err, ErrGateway):
		return "gateway"
	case errors.Is(err, ErrPersistence):
		return "persistence"
	case errors.Is(err, ErrLeadUnavailable):
		return "lead"
	default:
		return "other"
	}
}
