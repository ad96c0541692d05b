package telephony

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"

	"campaign-dialer/internal/calls"
)

// Minimal TwiML builder; only the verbs the answer flow uses.

type twimlResponse struct {
	XMLName xml.Name `xml:"Response"`
	Verbs   []any    `xml:",any"`
}

type twimlSay struct {
	XMLName xml.Name `xml:"Say"`
	Text    string   `xml:",chardata"`
}

type twimlPause struct {
	XMLName xml.Name `xml:"Pause"`
	Length  int      `xml:"length,attr,omitempty"`
}

type twimlDial struct {
	XMLName  xml.Name `xml:"Dial"`
	CallerID string   `xml:"callerId,attr,omitempty"`
	Number   string   `xml:"Number"`
}

type twimlHangup struct {
	XMLName xml.Name `xml:"Hangup"`
}

// RenderAnswerTwiML greets the callee on behalf of the company, reads out the
// call code and connects them to the transfer number. Without a transfer
// number the call ends after the announcement.
func RenderAnswerTwiML(s calls.Settings) (string, error) {
	var r twimlResponse

	if s.CallCode != 0 {
		greeting := "Hello."
		if company := strings.TrimSpace(s.Company); company != "" {
			greeting = fmt.Sprintf("Hello, this is a call from %s.", company)
		}
		r.Verbs = append(r.Verbs,
			twimlSay{Text: greeting},
			twimlSay{Text: "Your reference code is " + spokenDigits(s.CallCode) + "."},
			twimlPause{Length: 1},
		)
	}

	if to := strings.TrimSpace(s.TransferNumber); to != "" {
		r.Verbs = append(r.Verbs, twimlDial{CallerID: s.FromNumber, Number: to})
	} else {
		r.Verbs = append(r.Verbs, twimlHangup{})
	}
	return encodeTwiML(r)
}

// RenderHangupTwiML ends the call; used when no session is known for it.
func RenderHangupTwiML() (string, error) {
	return encodeTwiML(twimlResponse{Verbs: []any{twimlHangup{}}})
}

// spokenDigits separates digits so text-to-speech reads "1 2 3 4", not "one thousand...".
func spokenDigits(code int) string {
	digits := strconv.Itoa(code)
	parts := make([]string, 0, len(digits))
	for _, d := range digits {
		parts = append(parts, string(d))
	}
	return strings.Join(parts, " ")
}

func encodeTwiML(r twimlResponse) (string, error) {
	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(r); err != nil {
		return "", err
	}
	if err := enc.Flush(); err != nil {
		return "", err
	}
	return buf.String(), nil
}
