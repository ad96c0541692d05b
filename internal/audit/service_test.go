package audit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestService_AppendRequiresOrganizationAndType(t *testing.T) {
	svc := NewService(NewMemoryRepo())

	assert.ErrorIs(t, svc.Append(context.Background(), Event{Type: EventTypeManualDispatch}), ErrInvalidEvent)
	assert.ErrorIs(t, svc.Append(context.Background(), Event{OrganizationID: "org"}), ErrInvalidEvent)
	assert.Error(t, NewService(nil).Append(context.Background(), Event{OrganizationID: "org", Type: EventTypeManualDispatch}))
}

func TestService_LogManualDispatch(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)
	svc.clock = func() time.Time { return time.Unix(1700000000, 0) }

	actor := Actor{UserID: "u1", Role: "operator", IP: "1.2.3.4"}
	require.NoError(t, svc.LogManualDispatch(context.Background(), "org", "camp", actor, "CA1", nil))
	require.NoError(t, svc.LogManualDispatch(context.Background(), "org", "camp", actor, "", errors.New("no pending leads")))

	evs := repo.Events()
	require.Len(t, evs, 2)

	assert.Equal(t, EventTypeManualDispatch, evs[0].Type)
	assert.Equal(t, "CA1", evs[0].CallID)
	assert.Equal(t, "1.2.3.4", evs[0].IPAddress)
	assert.NotEmpty(t, evs[0].ID)
	assert.Equal(t, time.Unix(1700000000, 0).UTC(), evs[0].CreatedAt)

	assert.Equal(t, EventTypeManualDispatchFailed, evs[1].Type)
	assert.Equal(t, "no pending leads", evs[1].Message)
	assert.Empty(t, evs[1].CallID)
}

func TestMemoryRepo_ScopesByOrganization(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)

	require.NoError(t, svc.LogManualDispatch(context.Background(), "org-1", "camp-1", Actor{}, "CA1", nil))
	require.NoError(t, svc.LogManualDispatch(context.Background(), "org-2", "camp-2", Actor{}, "CA2", nil))

	got := repo.ForOrganization("org-1")
	require.Len(t, got, 1)
	assert.Equal(t, "camp-1", got[0].CampaignID)
	assert.Empty(t, repo.ForOrganization("org-3"))
	assert.Len(t, repo.Events(), 2)
}
