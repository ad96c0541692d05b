package telephony

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"campaign-dialer/internal/calls"
)

func formRequest(body string) *http.Request {
	r := httptest.NewRequest(http.MethodPost, "/webhooks/twilio/status", strings.NewReader(body))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return r
}

func TestParseStatusCallback(t *testing.T) {
	cb, err := ParseStatusCallback(formRequest("CallSid=CA123&CallStatus=Completed&To=%2B15557654321&CallDuration=42&SequenceNumber=3"))
	require.NoError(t, err)

	assert.Equal(t, "CA123", cb.CallSid)
	assert.Equal(t, calls.CallStatusCompleted, cb.CallStatus)
	assert.Equal(t, "+15557654321", cb.To)
	assert.Equal(t, 42, cb.CallDuration)
	assert.Equal(t, 3, cb.SequenceNumber)
}

func TestParseStatusCallback_RequiresSidAndStatus(t *testing.T) {
	_, err := ParseStatusCallback(formRequest("CallStatus=completed"))
	assert.ErrorIs(t, err, ErrInvalidCallback)

	_, err = ParseStatusCallback(formRequest("CallSid=CA1"))
	assert.ErrorIs(t, err, ErrInvalidCallback)
}

func TestParseStatusCallback_IgnoresJunkNumbers(t *testing.T) {
	cb, err := ParseStatusCallback(formRequest("CallSid=CA1&CallStatus=ringing&CallDuration=abc"))
	require.NoError(t, err)
	assert.Zero(t, cb.CallDuration)
}
