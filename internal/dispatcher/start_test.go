package dispatcher

import (
	"context"
	"errors"
	"math/rand"
	"net/http"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"campaign-dialer/internal/calls"
	"campaign-dialer/internal/campaigns"
	"campaign-dialer/internal/telephony"
)

func TestStart_PersistsCallAndSessionTogether(t *testing.T) {
	h := newHarness(t, defaultSettings())
	c := h.campaign("camp", campaigns.Options{AllowRecord: true}, "lead-1")
	ctx := context.Background()

	handle, err := h.d.Start(ctx, c, h.lead(t, "lead-1"))
	require.NoError(t, err)
	require.NotNil(t, handle)

	call, err := h.store.FindByProviderID(ctx, handle.ProviderCallID)
	require.NoError(t, err)
	sess, err := h.store.SessionByProviderID(ctx, handle.ProviderCallID)
	require.NoError(t, err)

	assert.Equal(t, call.ProviderCallID, sess.ProviderCallID)
	assert.Equal(t, "camp", call.CampaignID)
	assert.Equal(t, "lead-1", call.LeadID)
	assert.Equal(t, "user-1", call.UserID)
	assert.Equal(t, "+15550000001", call.Number)
	assert.Equal(t, calls.CallStatusQueued, call.Status)
	assert.GreaterOrEqual(t, call.CallCode, calls.MinCode)
	assert.LessOrEqual(t, call.CallCode, calls.MaxCode)

	assert.Equal(t, calls.Settings{
		Company:        "Acme",
		FromNumber:     "+15550009999",
		TransferNumber: "+15550002222",
		CallCode:       call.CallCode,
	}, sess.Settings)
	assert.Equal(t, "https://dialer.example.com/webhooks/twilio/status", sess.Webhooks.StatusCallbackURL)

	reqs := h.gateway.calls()
	require.Len(t, reqs, 1)
	assert.True(t, reqs[0].Record)
	assert.Equal(t, "+15550009999", reqs[0].From)

	assert.Equal(t, campaigns.LeadCalling, h.lead(t, "lead-1").CallStatus)
}

func TestStart_EmptyFromNumberWritesNothing(t *testing.T) {
	s := defaultSettings()
	s.FromNumber = "  "
	h := newHarness(t, s)
	c := h.campaign("camp", campaigns.Options{}, "lead-1")

	handle, err := h.d.Start(context.Background(), c, h.lead(t, "lead-1"))
	assert.Nil(t, handle)
	assert.ErrorIs(t, err, ErrConfiguration)

	nCalls, nSessions := h.store.Len()
	assert.Zero(t, nCalls)
	assert.Zero(t, nSessions)
	assert.Empty(t, h.gateway.calls())
	assert.Equal(t, campaigns.LeadPending, h.lead(t, "lead-1").CallStatus)
	assert.Contains(t, h.logs.String(), "outbound phone number is not configured")
}

func TestStart_GatewayErrorIsLoggedWithCampaignAndLead(t *testing.T) {
	h := newHarness(t, defaultSettings())
	h.gateway.err = &telephony.GatewayError{StatusCode: http.StatusBadRequest, Body: "invalid To"}
	c := h.campaign("camp-42", campaigns.Options{}, "lead-7")

	handle, err := h.d.Start(context.Background(), c, h.lead(t, "lead-7"))
	assert.Nil(t, handle)
	require.ErrorIs(t, err, ErrGateway)
	var gwErr *telephony.GatewayError
	require.ErrorAs(t, err, &gwErr)
	assert.Equal(t, http.StatusBadRequest, gwErr.StatusCode)

	nCalls, nSessions := h.store.Len()
	assert.Zero(t, nCalls)
	assert.Zero(t, nSessions)

	logs := h.logs.String()
	assert.Contains(t, logs, `"campaign_id":"camp-42"`)
	assert.Contains(t, logs, `"lead_id":"lead-7"`)
	assert.Contains(t, logs, "invalid To")
	assert.Equal(t, campaigns.LeadFailed, h.lead(t, "lead-7").CallStatus)
}

func TestStart_PersistFailureLeavesNoRecords(t *testing.T) {
	h := newHarness(t, defaultSettings())
	h.store.SessionInsertErr = errors.New("disk full")
	c := h.campaign("camp", campaigns.Options{}, "lead-1")

	handle, err := h.d.Start(context.Background(), c, h.lead(t, "lead-1"))
	assert.Nil(t, handle)
	require.ErrorIs(t, err, ErrPersistence)

	nCalls, nSessions := h.store.Len()
	assert.Zero(t, nCalls)
	assert.Zero(t, nSessions)
	assert.Equal(t, campaigns.LeadFailed, h.lead(t, "lead-1").CallStatus)
}

// busyCodes reports every code as taken.
type busyCodes struct{ *calls.MemoryStore }

func (busyCodes) CodeInUse(context.Context, int) (bool, error) { return true, nil }

func TestStart_CodeExhaustionReleasesLead(t *testing.T) {
	s := defaultSettings()
	s.CodeMaxAttempts = 3
	h := newHarness(t, s, func(d *Deps) { d.Calls = busyCodes{calls.NewMemoryStore()} })
	c := h.campaign("camp", campaigns.Options{}, "lead-1")

	handle, err := h.d.Start(context.Background(), c, h.lead(t, "lead-1"))
	assert.Nil(t, handle)
	require.ErrorIs(t, err, ErrCodeExhausted)
	assert.Empty(t, h.gateway.calls())
	assert.Equal(t, campaigns.LeadPending, h.lead(t, "lead-1").CallStatus)
}

func TestStart_RejectsSettledLead(t *testing.T) {
	h := newHarness(t, defaultSettings())
	c := h.campaign("camp", campaigns.Options{})
	h.repo.AddLead(campaigns.Lead{ID: "done", CampaignID: c.ID, Phone: "+15550000001", CallStatus: campaigns.LeadCompleted})

	_, err := h.d.Start(context.Background(), c, h.lead(t, "done"))
	assert.ErrorIs(t, err, ErrLeadUnavailable)
	assert.Empty(t, h.gateway.calls())
}

func TestStart_SameLeadTwiceOnlyDialsOnce(t *testing.T) {
	h := newHarness(t, defaultSettings())
	c := h.campaign("camp", campaigns.Options{}, "lead-1")
	stale := h.lead(t, "lead-1")

	_, err := h.d.Start(context.Background(), c, stale)
	require.NoError(t, err)
	_, err = h.d.Start(context.Background(), c, stale)
	assert.ErrorIs(t, err, ErrLeadUnavailable)
	assert.Len(t, h.gateway.calls(), 1)
}

// pairSource makes math/rand yield each call code twice in a row, so
// concurrent dispatches keep drawing the same code.
type pairSource struct {
	mu sync.Mutex
	n  int64
}

func (s *pairSource) Int63() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := (s.n / 2) % (calls.MaxCode - calls.MinCode + 1)
	s.n++
	// Intn uses the top 31 bits.
	return v << 32
}

func (s *pairSource) Seed(int64) {}

// blindCodes hides existing codes from the generator so uniqueness rests on Persist.
type blindCodes struct{ *calls.MemoryStore }

func (blindCodes) CodeInUse(context.Context, int) (bool, error) { return false, nil }

func TestStart_ConcurrentDispatchKeepsCodesUnique(t *testing.T) {
	store := calls.NewMemoryStore()
	h := newHarness(t, defaultSettings(), func(d *Deps) { d.Calls = blindCodes{store} })
	h.d.codes = calls.NewCodeGenerator(blindCodes{store}, 50, rand.New(&pairSource{}))

	const n = 40
	leads := make([]string, n)
	for i := range leads {
		leads[i] = "lead-" + string(rune('A'+i%26)) + string(rune('a'+i/26))
	}
	c := h.campaign("camp", campaigns.Options{}, leads...)

	var wg sync.WaitGroup
	errs := make(chan error, n)
	for _, id := range leads {
		l := h.lead(t, id)
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.d.Start(context.Background(), c, l)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	list, err := store.ListByCampaign(context.Background(), "camp")
	require.NoError(t, err)
	require.Len(t, list, n)
	seen := map[int]string{}
	for _, call := range list {
		if prev, ok := seen[call.CallCode]; ok {
			t.Fatalf("code %d shared by %s and %s", call.CallCode, prev, call.ProviderCallID)
		}
		seen[call.CallCode] = call.ProviderCallID
	}
}

func TestNew_RequiresDependencies(t *testing.T) {
	_, err := New(Deps{}, Settings{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "gateway")
}
