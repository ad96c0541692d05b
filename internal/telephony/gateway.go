package telephony

import (
	"context"
	"errors"
	"fmt"

	"campaign-dialer/internal/calls"
)

// ErrNotConfigured is returned when provider credentials are missing.
var ErrNotConfigured = errors.New("telephony: provider credentials not configured")

// DefaultStatusCallbackEvents are the call progress events we ask the provider to report.
var DefaultStatusCallbackEvents = []string{"initiated", "ringing", "answered", "completed"}

// Gateway places outbound calls. Business logic never talks to a provider
// API directly; it goes through a Gateway.
type Gateway interface {
	PlaceCall(ctx context.Context, req PlaceCallRequest) (CallHandle, error)
}

// PlaceCallRequest describes one outbound call.
type PlaceCallRequest struct {
	From   string
	To     string
	Record bool

	// AnswerURL is fetched by the provider when the callee picks up.
	AnswerURL string
	// StatusCallbackURL receives call progress events.
	StatusCallbackURL    string
	StatusCallbackEvents []string
}

// WebhookRouting is the callback snapshot stored with the call session.
func (r PlaceCallRequest) WebhookRouting() calls.WebhookRouting {
	events := r.StatusCallbackEvents
	if len(events) == 0 {
		events = DefaultStatusCallbackEvents
	}
	return calls.WebhookRouting{
		AnswerURL:            r.AnswerURL,
		StatusCallbackURL:    r.StatusCallbackURL,
		StatusCallbackEvents: append([]string(nil), events...),
	}
}

// CallHandle is what the provider returns for an accepted call.
type CallHandle struct {
	ProviderCallID string           `json:"sid"`
	To             string           `json:"to"`
	From           string           `json:"from"`
	Status         calls.CallStatus `json:"status"`
}

// GatewayError is a non-2xx answer from the provider API.
type GatewayError struct {
	StatusCode int
	Body       string
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("telephony: provider api error (%d): %s", e.StatusCode, e.Body)
}
