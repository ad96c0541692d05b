package calls

import "time"

// Call is one placed call attempt. Rows are never deleted; only Status moves,
// driven by provider status callbacks.
//
// Invariant: every Call has exactly one CallSession with the same ProviderCallID,
// and the two are only ever written together (see Store.Persist).
type Call struct {
	ID         string `json:"id" db:"id"`
	UserID     string `json:"user_id" db:"user_id"`
	CampaignID string `json:"campaign_id" db:"campaign_id"`
	LeadID     string `json:"lead_id" db:"lead_id"`

	// ProviderCallID is the telephony provider's identifier (Twilio CallSid).
	ProviderCallID string `json:"call_id" db:"provider_call_id"`
	Number         string `json:"number" db:"number"`

	Status CallStatus `json:"status" db:"status"`

	// CallCode is the 4-digit caller-facing reference, unique among unresolved calls.
	CallCode int `json:"call_code" db:"call_code"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// CallStatus mirrors the provider's call status vocabulary.
type CallStatus string

const (
	CallStatusQueued     CallStatus = "queued"
	CallStatusInitiated  CallStatus = "initiated"
	CallStatusRinging    CallStatus = "ringing"
	CallStatusInProgress CallStatus = "in-progress"
	CallStatusCompleted  CallStatus = "completed"
	CallStatusBusy       CallStatus = "busy"
	CallStatusFailed     CallStatus = "failed"
	CallStatusNoAnswer   CallStatus = "no-answer"
	CallStatusCanceled   CallStatus = "canceled"
)

// IsTerminal reports whether no further status transitions are expected.
func (s CallStatus) IsTerminal() bool {
	switch s {
	case CallStatusCompleted, CallStatusBusy, CallStatusFailed, CallStatusNoAnswer, CallStatusCanceled:
		return true
	default:
		return false
	}
}

// TerminalStatuses lists the statuses IsTerminal accepts, in a stable order.
func TerminalStatuses() []CallStatus {
	return []CallStatus{CallStatusCompleted, CallStatusBusy, CallStatusFailed, CallStatusNoAnswer, CallStatusCanceled}
}

// CallSession holds the point-in-time context needed to interpret later provider
// callbacks for a call. It is immutable after creation.
type CallSession struct {
	ID             string         `json:"id" db:"id"`
	ProviderCallID string         `json:"call_sid" db:"provider_call_id"`
	Settings       Settings       `json:"settings" db:"settings"`
	Webhooks       WebhookRouting `json:"webhooks" db:"webhooks"`
	CreatedAt      time.Time      `json:"created_at" db:"created_at"`
}

// Settings is a snapshot taken at dispatch time; it is never re-derived.
type Settings struct {
	Company        string `json:"company"`
	FromNumber     string `json:"from_number"`
	TransferNumber string `json:"transfer_number"`
	CallCode       int    `json:"call_code"`
}

// WebhookRouting records where the provider was told to send callbacks for this call.
type WebhookRouting struct {
	AnswerURL            string   `json:"answer_url"`
	StatusCallbackURL    string   `json:"status_callback_url"`
	StatusCallbackEvents []string `json:"status_callback_events,omitempty"`
}

// Record is the unit persisted atomically: a call and its session.
type Record struct {
	Call    Call
	Session CallSession
}
