package telephony

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	DefaultTwilioBaseURL = "https://api.twilio.com"
	defaultTwilioTimeout = 10 * time.Second

	// maxErrorBody caps how much of an error response is kept.
	maxErrorBody = 4 << 10
)

// TwilioConfig holds REST credentials. AuthToken must not be logged.
type TwilioConfig struct {
	AccountSID string
	AuthToken  string
	BaseURL    string
	Timeout    time.Duration

	// HTTPClient is optional; tests point it at an httptest server.
	HTTPClient *http.Client
}

// TwilioGateway places calls through the Twilio Programmable Voice REST API.
type TwilioGateway struct {
	cfg    TwilioConfig
	client *http.Client
}

func NewTwilioGateway(cfg TwilioConfig) *TwilioGateway {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultTwilioBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTwilioTimeout
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &TwilioGateway{cfg: cfg, client: client}
}

func (g *TwilioGateway) PlaceCall(ctx context.Context, req PlaceCallRequest) (CallHandle, error) {
	if g.cfg.AccountSID == "" || g.cfg.AuthToken == "" {
		return CallHandle{}, ErrNotConfigured
	}
	if strings.TrimSpace(req.From) == "" || strings.TrimSpace(req.To) == "" {
		return CallHandle{}, fmt.Errorf("telephony: from and to are required")
	}

	reqURL := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Calls.json", g.cfg.BaseURL, url.PathEscape(g.cfg.AccountSID))

	form := url.Values{}
	form.Set("From", req.From)
	form.Set("To", req.To)
	form.Set("Url", req.AnswerURL)
	form.Set("Method", http.MethodPost)
	if req.StatusCallbackURL != "" {
		form.Set("StatusCallback", req.StatusCallbackURL)
		form.Set("StatusCallbackMethod", http.MethodPost)
		for _, ev := range req.WebhookRouting().StatusCallbackEvents {
			form.Add("StatusCallbackEvent", ev)
		}
	}
	if req.Record {
		form.Set("Record", "true")
	}

	ctx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, strings.NewReader(form.Encode()))
	if err != nil {
		return CallHandle{}, fmt.Errorf("telephony: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.SetBasicAuth(g.cfg.AccountSID, g.cfg.AuthToken)

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return CallHandle{}, fmt.Errorf("telephony: place call: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return CallHandle{}, &GatewayError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var h CallHandle
	if err := json.NewDecoder(resp.Body).Decode(&h); err != nil {
		return CallHandle{}, fmt.Errorf("telephony: decode call response: %w", err)
	}
	if h.ProviderCallID == "" {
		return CallHandle{}, fmt.Errorf("telephony: provider response missing call sid")
	}
	if h.To == "" {
		h.To = req.To
	}
	return h, nil
}
