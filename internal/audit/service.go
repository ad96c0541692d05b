package audit

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Repository is the persistence contract for audit events. It is append-only.
type Repository interface {
	Append(ctx context.Context, e Event) error
}

// Service records operator actions. Callers treat audit logging as
// best-effort and never fail a dispatch because of it.
type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

var ErrInvalidEvent = errors.New("audit: invalid event")

func (s *Service) Append(ctx context.Context, e Event) error {
	if s.repo == nil {
		return errors.New("audit: repository not configured")
	}
	if e.OrganizationID == "" || e.Type == "" {
		return ErrInvalidEvent
	}

	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.clock().UTC()
	}
	return s.repo.Append(ctx, e)
}

// Actor identifies who triggered an action.
type Actor struct {
	UserID string
	Role   string
	IP     string
}

// LogManualDispatch records an operator starting a campaign chain. callID is
// empty and cause non-nil when the dispatch failed.
func (s *Service) LogManualDispatch(ctx context.Context, organizationID, campaignID string, actor Actor, callID string, cause error) error {
	e := Event{
		OrganizationID: organizationID,
		Type:           EventTypeManualDispatch,
		ActorUserID:    actor.UserID,
		ActorRole:      actor.Role,
		IPAddress:      actor.IP,
		CampaignID:     campaignID,
		CallID:         callID,
		Message:        "campaign dispatch started",
	}
	if cause != nil {
		e.Type = EventTypeManualDispatchFailed
		e.Message = cause.Error()
	}
	return s.Append(ctx, e)
}
