package calls

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func record(sid string, code int) Record {
	return Record{
		Call: Call{
			ID:             "call-" + sid,
			UserID:         "user-1",
			CampaignID:     "camp-1",
			LeadID:         "lead-" + sid,
			ProviderCallID: sid,
			Number:         "+15550000001",
			Status:         CallStatusQueued,
			CallCode:       code,
		},
		Session: CallSession{
			ID:             "sess-" + sid,
			ProviderCallID: sid,
			Settings:       Settings{Company: "Acme", FromNumber: "+15550009999", CallCode: code},
		},
	}
}

func TestMemoryStore_PersistWritesBoth(t *testing.T) {
	s := NewMemoryStore()
	require.NoError(t, s.Persist(context.Background(), record("CA1", 1234)))

	c, err := s.FindByProviderID(context.Background(), "CA1")
	require.NoError(t, err)
	assert.Equal(t, 1234, c.CallCode)
	assert.False(t, c.CreatedAt.IsZero())

	cs, err := s.SessionByProviderID(context.Background(), "CA1")
	require.NoError(t, err)
	assert.Equal(t, "Acme", cs.Settings.Company)
}

func TestMemoryStore_SessionFailureWritesNothing(t *testing.T) {
	s := NewMemoryStore()
	s.SessionInsertErr = errors.New("session insert failed")

	err := s.Persist(context.Background(), record("CA1", 1234))
	require.Error(t, err)

	nCalls, nSessions := s.Len()
	assert.Zero(t, nCalls)
	assert.Zero(t, nSessions)
	_, err = s.FindByProviderID(context.Background(), "CA1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_RejectsInvalidRecord(t *testing.T) {
	s := NewMemoryStore()

	rec := record("CA1", 1234)
	rec.Session.ProviderCallID = "CA2"
	assert.ErrorIs(t, s.Persist(context.Background(), rec), ErrInvalidRecord)

	rec = record("CA1", 99)
	assert.ErrorIs(t, s.Persist(context.Background(), rec), ErrInvalidRecord)

	rec = record("", 1234)
	assert.ErrorIs(t, s.Persist(context.Background(), rec), ErrInvalidRecord)
}

func TestMemoryStore_DuplicateActiveCode(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, s.Persist(ctx, record("CA1", 4321)))

	assert.ErrorIs(t, s.Persist(ctx, record("CA2", 4321)), ErrDuplicateCode)

	inUse, err := s.CodeInUse(ctx, 4321)
	require.NoError(t, err)
	assert.True(t, inUse)

	// Once the holder resolves, the code is free again.
	_, err = s.UpdateStatus(ctx, "CA1", CallStatusNoAnswer)
	require.NoError(t, err)
	inUse, err = s.CodeInUse(ctx, 4321)
	require.NoError(t, err)
	assert.False(t, inUse)
	assert.NoError(t, s.Persist(ctx, record("CA2", 4321)))
}

func TestMemoryStore_DuplicateProviderCallID(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, s.Persist(ctx, record("CA1", 1111)))
	assert.ErrorIs(t, s.Persist(ctx, record("CA1", 2222)), ErrDuplicateCall)
}

func TestMemoryStore_TerminalStatusIsSticky(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, s.Persist(ctx, record("CA1", 1111)))

	c, err := s.UpdateStatus(ctx, "CA1", CallStatusRinging)
	require.NoError(t, err)
	assert.Equal(t, CallStatusRinging, c.Status)

	c, err = s.UpdateStatus(ctx, "CA1", CallStatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, CallStatusCompleted, c.Status)

	c, err = s.UpdateStatus(ctx, "CA1", CallStatusInProgress)
	require.NoError(t, err)
	assert.Equal(t, CallStatusCompleted, c.Status)

	_, err = s.UpdateStatus(ctx, "CA-missing", CallStatusCompleted)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_ListByCampaign(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, s.Persist(ctx, record("CA1", 1111)))
	other := record("CA2", 2222)
	other.Call.CampaignID = "camp-2"
	require.NoError(t, s.Persist(ctx, other))

	got, err := s.ListByCampaign(ctx, "camp-1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "CA1", got[0].ProviderCallID)
}

func TestCallStatus_IsTerminal(t *testing.T) {
	for _, s := range TerminalStatuses() {
		assert.True(t, s.IsTerminal(), s)
	}
	for _, s := range []CallStatus{CallStatusQueued, CallStatusInitiated, CallStatusRinging, CallStatusInProgress} {
		assert.False(t, s.IsTerminal(), s)
	}
}
