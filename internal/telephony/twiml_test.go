package telephony

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"campaign-dialer/internal/calls"
)

func TestRenderAnswerTwiML_AnnouncesCodeAndDials(t *testing.T) {
	xml, err := RenderAnswerTwiML(calls.Settings{
		Company:        "Acme & Sons",
		FromNumber:     "+15550009999",
		TransferNumber: "+15550002222",
		CallCode:       4821,
	})
	require.NoError(t, err)

	assert.Contains(t, xml, "<Response>")
	assert.Contains(t, xml, "Acme &amp; Sons")
	assert.Contains(t, xml, "4 8 2 1")
	assert.Contains(t, xml, `<Dial callerId="+15550009999">`)
	assert.Contains(t, xml, "<Number>+15550002222</Number>")
	assert.NotContains(t, xml, "<Hangup>")
}

func TestRenderAnswerTwiML_HangsUpWithoutTransferNumber(t *testing.T) {
	xml, err := RenderAnswerTwiML(calls.Settings{CallCode: 1000})
	require.NoError(t, err)
	assert.Contains(t, xml, "<Hangup></Hangup>")
	assert.NotContains(t, xml, "<Dial")
}

func TestRenderHangupTwiML(t *testing.T) {
	xml, err := RenderHangupTwiML()
	require.NoError(t, err)
	assert.Contains(t, xml, "<Hangup></Hangup>")
}
