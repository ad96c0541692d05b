package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"campaign-dialer/internal/calls"
	"campaign-dialer/internal/telephony"
	"campaign-dialer/pkg/logger"
)

const (
	statusURL = "https://dialer.example.com/webhooks/twilio/status"
	answerURL = "https://dialer.example.com/webhooks/twilio/answer"
)

type recordingCompletions struct {
	mu      sync.Mutex
	calls   []calls.Call
	unknown []string
}

func (r *recordingCompletions) HandleCompletion(ctx context.Context, call *calls.Call) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, *call)
}

func (r *recordingCompletions) HandleUnknownCall(ctx context.Context, providerCallID string, status calls.CallStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.unknown = append(r.unknown, providerCallID+"/"+string(status))
}

// twilioSignature signs form the way Twilio does: URL followed by sorted
// key/value pairs, HMAC-SHA1 with the auth token, base64.
func twilioSignature(token, u string, form url.Values) string {
	keys := make([]string, 0, len(form))
	for k := range form {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	payload := u
	for _, k := range keys {
		payload += k + form.Get(k)
	}
	mac := hmac.New(sha1.New, []byte(token))
	mac.Write([]byte(payload))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func setup(t *testing.T, validate bool) (*gin.Engine, *calls.MemoryStore, *recordingCompletions, *bytes.Buffer) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := calls.NewMemoryStore()
	require.NoError(t, store.Persist(context.Background(), calls.Record{
		Call: calls.Call{ID: "call-1", CampaignID: "camp", LeadID: "lead-1", ProviderCallID: "CA1", Status: calls.CallStatusQueued, CallCode: 4821},
		Session: calls.CallSession{
			ID:             "sess-1",
			ProviderCallID: "CA1",
			Settings:       calls.Settings{Company: "Acme", FromNumber: "+15550009999", TransferNumber: "+15550002222", CallCode: 4821},
		},
	}))

	completions := &recordingCompletions{}
	h := TwilioHandler{
		Calls:             store,
		Completions:       completions,
		AuthToken:         "tok",
		ValidateSignature: validate,
		StatusURL:         statusURL,
		AnswerURL:         answerURL,
	}

	var buf bytes.Buffer
	r := gin.New()
	r.Use(logger.Middleware(logger.NewWithWriter("dev", &buf)))
	r.POST("/webhooks/twilio/status", h.Status)
	r.POST("/webhooks/twilio/answer", h.Answer)
	return r, store, completions, &buf
}

func post(r *gin.Engine, path string, form url.Values, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if signature != "" {
		req.Header.Set(telephony.SignatureHeader, signature)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestStatus_TerminalEventUpdatesCallAndCompletes(t *testing.T) {
	r, store, completions, _ := setup(t, false)

	w := post(r, "/webhooks/twilio/status", url.Values{"CallSid": {"CA1"}, "CallStatus": {"completed"}}, "")
	assert.Equal(t, http.StatusOK, w.Code)

	c, err := store.FindByProviderID(context.Background(), "CA1")
	require.NoError(t, err)
	assert.Equal(t, calls.CallStatusCompleted, c.Status)

	require.Len(t, completions.calls, 1)
	assert.Equal(t, "lead-1", completions.calls[0].LeadID)
	assert.Equal(t, calls.CallStatusCompleted, completions.calls[0].Status)
}

func TestStatus_ProgressEventDoesNotComplete(t *testing.T) {
	r, store, completions, _ := setup(t, false)

	w := post(r, "/webhooks/twilio/status", url.Values{"CallSid": {"CA1"}, "CallStatus": {"ringing"}}, "")
	assert.Equal(t, http.StatusOK, w.Code)

	c, err := store.FindByProviderID(context.Background(), "CA1")
	require.NoError(t, err)
	assert.Equal(t, calls.CallStatusRinging, c.Status)
	assert.Empty(t, completions.calls)
}

func TestStatus_AlwaysAcknowledges(t *testing.T) {
	r, _, completions, logs := setup(t, false)

	w := post(r, "/webhooks/twilio/status", url.Values{"CallSid": {"CA-unknown"}, "CallStatus": {"completed"}}, "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = post(r, "/webhooks/twilio/status", url.Values{"CallStatus": {"completed"}}, "")
	assert.Equal(t, http.StatusOK, w.Code)

	assert.Empty(t, completions.calls)
	assert.Equal(t, []string{"CA-unknown/completed"}, completions.unknown)
	assert.Contains(t, logs.String(), "status callback for unknown call")
	assert.Contains(t, logs.String(), "parse failed")
}

func TestStatus_SignatureValidation(t *testing.T) {
	r, _, completions, _ := setup(t, true)
	form := url.Values{"CallSid": {"CA1"}, "CallStatus": {"completed"}}

	w := post(r, "/webhooks/twilio/status", form, "bogus")
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Empty(t, completions.calls)

	w = post(r, "/webhooks/twilio/status", form, twilioSignature("tok", statusURL, form))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, completions.calls, 1)
}

func TestAnswer_RendersSessionSnapshot(t *testing.T) {
	r, store, _, _ := setup(t, true)
	form := url.Values{"CallSid": {"CA1"}, "CallStatus": {"in-progress"}}

	w := post(r, "/webhooks/twilio/answer", form, twilioSignature("tok", answerURL, form))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/xml", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Body.String(), "4 8 2 1")
	assert.Contains(t, w.Body.String(), "<Number>+15550002222</Number>")

	c, err := store.FindByProviderID(context.Background(), "CA1")
	require.NoError(t, err)
	assert.Equal(t, calls.CallStatusInProgress, c.Status)
}

func TestAnswer_UnknownCallHangsUp(t *testing.T) {
	r, _, _, _ := setup(t, false)

	w := post(r, "/webhooks/twilio/answer", url.Values{"CallSid": {"CA-unknown"}}, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "<Hangup>")
	assert.NotContains(t, w.Body.String(), "<Dial")
}

func TestAnswer_BadSignature(t *testing.T) {
	r, _, _, _ := setup(t, true)
	w := post(r, "/webhooks/twilio/answer", url.Values{"CallSid": {"CA1"}}, "bogus")
	assert.Equal(t, http.StatusForbidden, w.Code)
}
