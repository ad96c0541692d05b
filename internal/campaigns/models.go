package campaigns

import "time"

// Campaign is a configured batch of leads dialed one after another.
//
// The dispatcher only reads campaigns; status changes belong to campaign management.
type Campaign struct {
	ID               string `json:"id" db:"id"`
	OrganizationID   string `json:"organization_id" db:"organization_id"`
	OrganizationName string `json:"organization_name" db:"organization_name"`
	UserID           string `json:"user_id" db:"user_id"`

	Status  Status  `json:"status" db:"status"`
	Options Options `json:"options" db:"options"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusPaused     Status = "paused"
	StatusCompleted  Status = "completed"
)

// Options is the campaign options bag (stored as JSONB).
type Options struct {
	// AllowRecord asks the provider to record each call.
	AllowRecord bool `json:"allow_record"`
	// AllowDelay disables automatic chaining to the next lead.
	AllowDelay bool `json:"allow_delay"`
}

// Lead is a phone-number target within a campaign.
type Lead struct {
	ID         string     `json:"id" db:"id"`
	CampaignID string     `json:"campaign_id" db:"campaign_id"`
	Phone      string     `json:"phone" db:"phone"`
	CallStatus LeadStatus `json:"call_status" db:"call_status"`

	// Position is the insertion order within the campaign; selection follows it.
	Position int64 `json:"position" db:"position"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

type LeadStatus string

const (
	LeadPending   LeadStatus = "pending"
	LeadCalling   LeadStatus = "calling"
	LeadCompleted LeadStatus = "completed"
	LeadFailed    LeadStatus = "failed"
)
