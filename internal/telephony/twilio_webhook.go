package telephony

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"campaign-dialer/internal/calls"
)

var ErrInvalidCallback = errors.New("telephony: invalid callback")

// StatusCallback captures the subset of Twilio status callback fields we use.
// Twilio sends application/x-www-form-urlencoded.
// Ref: https://www.twilio.com/docs/voice/api/call-resource#statuscallback
type StatusCallback struct {
	CallSid        string
	AccountSid     string
	From           string
	To             string
	Direction      string
	CallStatus     calls.CallStatus
	CallDuration   int
	SequenceNumber int
	Timestamp      string
}

// ParseStatusCallback reads a status callback. CallSid and CallStatus are required.
func ParseStatusCallback(r *http.Request) (StatusCallback, error) {
	if err := r.ParseForm(); err != nil {
		return StatusCallback{}, err
	}
	cb := StatusCallback{
		CallSid:    strings.TrimSpace(r.PostFormValue("CallSid")),
		AccountSid: r.PostFormValue("AccountSid"),
		From:       normalizePhone(r.PostFormValue("From")),
		To:         normalizePhone(r.PostFormValue("To")),
		Direction:  r.PostFormValue("Direction"),
		CallStatus: calls.CallStatus(strings.ToLower(strings.TrimSpace(r.PostFormValue("CallStatus")))),
		Timestamp:  r.PostFormValue("Timestamp"),
	}
	// Optional numeric fields; junk is treated as absent.
	cb.CallDuration, _ = strconv.Atoi(r.PostFormValue("CallDuration"))
	cb.SequenceNumber, _ = strconv.Atoi(r.PostFormValue("SequenceNumber"))

	if cb.CallSid == "" {
		return cb, fmt.Errorf("%w: CallSid missing", ErrInvalidCallback)
	}
	if cb.CallStatus == "" {
		return cb, fmt.Errorf("%w: CallStatus missing", ErrInvalidCallback)
	}
	return cb, nil
}

func normalizePhone(s string) string {
	// Twilio sometimes sends "anonymous" or empty; keep as-is.
	return strings.TrimSpace(s)
}
