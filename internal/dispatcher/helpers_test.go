package dispatcher

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"campaign-dialer/internal/calls"
	"campaign-dialer/internal/campaigns"
	"campaign-dialer/internal/queue"
	"campaign-dialer/internal/telephony"
	"campaign-dialer/pkg/logger"
)

// fakeGateway hands out sequential provider call ids.
type fakeGateway struct {
	mu   sync.Mutex
	n    int
	err  error
	reqs []telephony.PlaceCallRequest
}

func (g *fakeGateway) PlaceCall(ctx context.Context, req telephony.PlaceCallRequest) (telephony.CallHandle, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.reqs = append(g.reqs, req)
	if g.err != nil {
		return telephony.CallHandle{}, g.err
	}
	g.n++
	return telephony.CallHandle{
		ProviderCallID: fmt.Sprintf("CA%04d", g.n),
		To:             req.To,
		From:           req.From,
		Status:         calls.CallStatusQueued,
	}, nil
}

func (g *fakeGateway) calls() []telephony.PlaceCallRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]telephony.PlaceCallRequest(nil), g.reqs...)
}

// syncBuffer is a bytes.Buffer safe for concurrent log writes.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type harness struct {
	repo    *campaigns.MemoryRepo
	store   *calls.MemoryStore
	gateway *fakeGateway
	queue   *queue.MemoryQueue
	logs    *syncBuffer
	d       *Dispatcher
}

func defaultSettings() Settings {
	return Settings{
		FromNumber:        "+15550009999",
		TransferNumber:    "+15550002222",
		AnswerURL:         "https://dialer.example.com/webhooks/twilio/answer",
		StatusCallbackURL: "https://dialer.example.com/webhooks/twilio/status",
	}
}

func newHarness(t *testing.T, settings Settings, deps ...func(*Deps)) *harness {
	t.Helper()
	h := &harness{
		repo:    campaigns.NewMemoryRepo(),
		store:   calls.NewMemoryStore(),
		gateway: &fakeGateway{},
		queue:   queue.NewMemoryQueue(16),
		logs:    &syncBuffer{},
	}
	dd := Deps{
		Campaigns: h.repo,
		Calls:     h.store,
		Gateway:   h.gateway,
		Queue:     h.queue,
		Guard:     NewMemoryGuard(0),
		Logger:    logger.NewWithWriter("test", h.logs),
	}
	for _, f := range deps {
		f(&dd)
	}
	d, err := New(dd, settings)
	require.NoError(t, err)
	h.d = d
	return h
}

func (h *harness) campaign(id string, opts campaigns.Options, leads ...string) campaigns.Campaign {
	c := campaigns.Campaign{
		ID:               id,
		OrganizationID:   "org-1",
		OrganizationName: "Acme",
		UserID:           "user-1",
		Status:           campaigns.StatusInProgress,
		Options:          opts,
	}
	h.repo.PutCampaign(c)
	for i, l := range leads {
		h.repo.AddLead(campaigns.Lead{ID: l, CampaignID: id, Phone: fmt.Sprintf("+1555000%04d", i+1)})
	}
	return c
}

func (h *harness) lead(t *testing.T, id string) campaigns.Lead {
	t.Helper()
	l, err := h.repo.GetLead(context.Background(), id)
	require.NoError(t, err)
	return l
}

// complete moves a stored call to status and hands it to HandleCompletion,
// the way the status webhook does.
func (h *harness) complete(t *testing.T, providerCallID string, status calls.CallStatus) {
	t.Helper()
	c, err := h.store.UpdateStatus(context.Background(), providerCallID, status)
	require.NoError(t, err)
	h.d.HandleCompletion(context.Background(), &c)
}
