// Package webhook receives Twilio voice callbacks.
//
// Handlers always acknowledge the provider with 200 once the request is
// authentic: a callback that errors is retried by Twilio and repeated failures
// can get the webhook disabled. Failures are logged instead.
package webhook

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"campaign-dialer/internal/calls"
	"campaign-dialer/internal/telephony"
	"campaign-dialer/pkg/logger"
)

// CompletionHandler is the dispatcher's reaction to call status callbacks.
type CompletionHandler interface {
	HandleCompletion(ctx context.Context, call *calls.Call)
	// HandleUnknownCall receives callbacks for calls not recorded yet.
	HandleUnknownCall(ctx context.Context, providerCallID string, status calls.CallStatus)
}

// TwilioHandler serves the status callback and answer URLs.
type TwilioHandler struct {
	Calls       calls.Store
	Completions CompletionHandler

	// AuthToken signs Twilio requests; ValidateSignature turns the check on.
	AuthToken         string
	ValidateSignature bool

	// StatusURL and AnswerURL are the public URLs Twilio was given. Signatures
	// are computed over them, not over the URL seen behind a proxy.
	StatusURL string
	AnswerURL string
}

// Status handles POST /webhooks/twilio/status.
func (h TwilioHandler) Status(c *gin.Context) {
	log := logger.FromGin(c)

	if !h.authentic(c, h.StatusURL) {
		log.Warn("twilio status callback rejected: bad signature")
		c.AbortWithStatus(http.StatusForbidden)
		return
	}
	c.Status(http.StatusOK)

	cb, err := telephony.ParseStatusCallback(c.Request)
	if err != nil {
		log.Warn("twilio status callback parse failed", "err", err)
		return
	}
	log = logger.WithDispatch(log, "", "", cb.CallSid).With("status", cb.CallStatus)

	if h.Calls == nil {
		log.Error("call store not configured")
		return
	}
	call, err := h.Calls.UpdateStatus(c.Request.Context(), cb.CallSid, cb.CallStatus)
	if errors.Is(err, calls.ErrNotFound) {
		log.Info("status callback for unknown call")
		if h.Completions != nil {
			h.Completions.HandleUnknownCall(c.Request.Context(), cb.CallSid, cb.CallStatus)
		}
		return
	}
	if err != nil {
		log.Error("update call status failed", "err", err)
		return
	}
	if call.Status != cb.CallStatus {
		log.Debug("late status ignored", "stored_status", call.Status)
	}

	if !cb.CallStatus.IsTerminal() || h.Completions == nil {
		return
	}
	h.Completions.HandleCompletion(c.Request.Context(), &call)
}

// Answer handles POST /webhooks/twilio/answer: it reads the call session
// snapshot and returns TwiML announcing the call code.
func (h TwilioHandler) Answer(c *gin.Context) {
	log := logger.FromGin(c)

	if !h.authentic(c, h.AnswerURL) {
		log.Warn("twilio answer callback rejected: bad signature")
		c.AbortWithStatus(http.StatusForbidden)
		return
	}

	sid := c.PostForm("CallSid")
	log = logger.WithDispatch(log, "", "", sid)

	twiml, err := h.answerTwiML(c.Request.Context(), sid, log)
	if err != nil {
		log.Error("twiml render failed", "err", err)
		twiml = `<?xml version="1.0" encoding="UTF-8"?><Response><Hangup/></Response>`
	}
	c.Header("Content-Type", "application/xml")
	c.String(http.StatusOK, twiml)
}

func (h TwilioHandler) answerTwiML(ctx context.Context, sid string, log *slog.Logger) (string, error) {
	if sid == "" || h.Calls == nil {
		log.Warn("answer callback without a known call")
		return telephony.RenderHangupTwiML()
	}
	sess, err := h.Calls.SessionByProviderID(ctx, sid)
	if err != nil {
		log.Warn("no call session for answered call", "err", err)
		return telephony.RenderHangupTwiML()
	}
	if _, err := h.Calls.UpdateStatus(ctx, sid, calls.CallStatusInProgress); err != nil {
		log.Warn("mark call in progress failed", "err", err)
	}
	log.Info("call answered", "call_code", sess.Settings.CallCode)
	return telephony.RenderAnswerTwiML(sess.Settings)
}

func (h TwilioHandler) authentic(c *gin.Context, publicURL string) bool {
	if !h.ValidateSignature {
		return true
	}
	if err := c.Request.ParseForm(); err != nil {
		return false
	}
	u := publicURL
	if q := c.Request.URL.RawQuery; q != "" {
		u += "?" + q
	}
	return telephony.ValidateSignature(h.AuthToken, u, c.Request.PostForm, c.GetHeader(telephony.SignatureHeader))
}
