// Package dispatcher places campaign calls and advances a campaign to its next
// lead when the provider reports that a call completed.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"campaign-dialer/internal/calls"
	"campaign-dialer/internal/campaigns"
	"campaign-dialer/internal/queue"
	"campaign-dialer/internal/telemetry"
	"campaign-dialer/internal/telephony"
	"campaign-dialer/pkg/logger"
)

// Settings is the dispatch configuration, fixed at construction.
type Settings struct {
	// FromNumber is the outbound caller id. Empty means calls are skipped.
	FromNumber     string
	TransferNumber string

	AnswerURL            string
	StatusCallbackURL    string
	StatusCallbackEvents []string

	// CallTimeout bounds one call placement round trip.
	CallTimeout time.Duration
	// CodeMaxAttempts bounds code draws and persist retries on a code clash.
	CodeMaxAttempts int
}

// Enqueuer is the producer half of queue.Queue.
type Enqueuer interface {
	Enqueue(ctx context.Context, job queue.Job) error
}

// Deps are the collaborators of a Dispatcher. Early, Metrics and Logger are
// optional; Early defaults to a single-process store.
type Deps struct {
	Campaigns campaigns.Repository
	Calls     calls.Store
	Gateway   telephony.Gateway
	Queue     Enqueuer
	Guard     Guard
	Early     EarlyStatuses
	Metrics   *telemetry.Instruments
	Logger    *slog.Logger
}

type Dispatcher struct {
	campaigns campaigns.Repository
	selector  *campaigns.Selector
	store     calls.Store
	codes     *calls.CodeGenerator
	gateway   telephony.Gateway
	queue     Enqueuer
	guard     Guard
	early     EarlyStatuses
	metrics   *telemetry.Instruments
	settings  Settings
	log       *slog.Logger

	newID func() string
}

func New(deps Deps, settings Settings) (*Dispatcher, error) {
	var missing []string
	if deps.Campaigns == nil {
		missing = append(missing, "campaigns")
	}
	if deps.Calls == nil {
		missing = append(missing, "calls")
	}
	if deps.Gateway == nil {
		missing = append(missing, "gateway")
	}
	if deps.Queue == nil {
		missing = append(missing, "queue")
	}
	if deps.Guard == nil {
		missing = append(missing, "guard")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("dispatcher: missing dependencies: %s", strings.Join(missing, ", "))
	}

	if settings.CodeMaxAttempts <= 0 {
		settings.CodeMaxAttempts = calls.DefaultCodeAttempts
	}
	if settings.CallTimeout <= 0 {
		settings.CallTimeout = 10 * time.Second
	}
	settings.FromNumber = strings.TrimSpace(settings.FromNumber)

	metrics := deps.Metrics
	if metrics == nil {
		metrics = telemetry.Noop()
	}
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}
	early := deps.Early
	if early == nil {
		early = NewMemoryEarlyStatuses(0)
	}

	return &Dispatcher{
		campaigns: deps.Campaigns,
		selector:  campaigns.NewSelector(deps.Campaigns),
		store:     deps.Calls,
		codes:     calls.NewCodeGenerator(deps.Calls, settings.CodeMaxAttempts, nil),
		gateway:   deps.Gateway,
		queue:     deps.Queue,
		guard:     deps.Guard,
		early:     early,
		metrics:   metrics,
		settings:  settings,
		log:       log,
		newID:     uuid.NewString,
	}, nil
}

// Start places a call to lead and records it. A pending lead is claimed
// first; a lead already marked calling is assumed to be claimed by the caller.
//
// On failure the returned handle is nil, the error carries one of the
// dispatcher error kinds and the failure has already been logged with the
// campaign and lead ids. No call record exists after a failed Start.
func (d *Dispatcher) Start(ctx context.Context, campaign campaigns.Campaign, lead campaigns.Lead) (*telephony.CallHandle, error) {
	log := logger.WithDispatch(d.log, campaign.ID, lead.ID, "")

	if err := d.checkConfigured(ctx, log); err != nil {
		return nil, err
	}

	switch lead.CallStatus {
	case campaigns.LeadPending:
		if err := d.selector.Claim(ctx, lead.ID); err != nil {
			return nil, d.fail(ctx, log, fmt.Errorf("%w: claim %s: %v", ErrLeadUnavailable, lead.ID, err))
		}
	case campaigns.LeadCalling:
	default:
		return nil, d.fail(ctx, log, fmt.Errorf("%w: lead %s is %s", ErrLeadUnavailable, lead.ID, lead.CallStatus))
	}

	d.metrics.DispatchAttempt(ctx)

	code, err := d.codes.Generate(ctx)
	if err != nil {
		d.release(ctx, log, lead.ID)
		return nil, d.fail(ctx, log, fmt.Errorf("generate call code: %w", err))
	}

	req := telephony.PlaceCallRequest{
		From:                 d.settings.FromNumber,
		To:                   lead.Phone,
		Record:               campaign.Options.AllowRecord,
		AnswerURL:            d.settings.AnswerURL,
		StatusCallbackURL:    d.settings.StatusCallbackURL,
		StatusCallbackEvents: d.settings.StatusCallbackEvents,
	}

	callCtx, cancel := context.WithTimeout(ctx, d.settings.CallTimeout)
	handle, err := d.gateway.PlaceCall(callCtx, req)
	cancel()
	if err != nil {
		d.finishLead(ctx, log, lead.ID, campaigns.LeadFailed)
		return nil, d.fail(ctx, log, fmt.Errorf("%w: %w", ErrGateway, err))
	}
	log = log.With("call_id", handle.ProviderCallID)

	rec := d.buildRecord(campaign, lead, handle, code, req)
	if err := d.persist(ctx, &rec); err != nil {
		d.finishLead(ctx, log, lead.ID, campaigns.LeadFailed)
		return nil, d.fail(ctx, log, err)
	}

	log.Info("call placed", "call_code", rec.Call.CallCode, "status", handle.Status, "record", req.Record)
	d.applyEarlyStatus(ctx, log, handle.ProviderCallID)
	return &handle, nil
}

func (d *Dispatcher) buildRecord(c campaigns.Campaign, l campaigns.Lead, h telephony.CallHandle, code int, req telephony.PlaceCallRequest) calls.Record {
	status := h.Status
	if status == "" {
		status = calls.CallStatusQueued
	}
	number := h.To
	if number == "" {
		number = l.Phone
	}
	return calls.Record{
		Call: calls.Call{
			ID:             d.newID(),
			UserID:         c.UserID,
			CampaignID:     c.ID,
			LeadID:         l.ID,
			ProviderCallID: h.ProviderCallID,
			Number:         number,
			Status:         status,
			CallCode:       code,
		},
		Session: calls.CallSession{
			ID:             d.newID(),
			ProviderCallID: h.ProviderCallID,
			Settings: calls.Settings{
				Company:        c.OrganizationName,
				FromNumber:     d.settings.FromNumber,
				TransferNumber: d.settings.TransferNumber,
				CallCode:       code,
			},
			Webhooks: req.WebhookRouting(),
		},
	}
}

// persist writes the record, drawing a fresh code when another dispatcher
// committed the same one first. The code only lives in our records, so it can
// change after the call was placed.
func (d *Dispatcher) persist(ctx context.Context, rec *calls.Record) error {
	for attempt := 1; ; attempt++ {
		err := d.store.Persist(ctx, *rec)
		if err == nil {
			return nil
		}
		if !errors.Is(err, calls.ErrDuplicateCode) || attempt >= d.settings.CodeMaxAttempts {
			return fmt.Errorf("%w: %v", ErrPersistence, err)
		}
		code, genErr := d.codes.Generate(ctx)
		if genErr != nil {
			return fmt.Errorf("%w: regenerate call code: %w", ErrPersistence, genErr)
		}
		rec.Call.CallCode = code
		rec.Session.Settings.CallCode = code
	}
}

func (d *Dispatcher) checkConfigured(ctx context.Context, log *slog.Logger) error {
	if d.settings.FromNumber != "" {
		return nil
	}
	log.Error("outbound phone number is not configured; call skipped")
	d.metrics.DispatchFailure(ctx, failureKind(ErrConfiguration))
	return ErrConfiguration
}

func (d *Dispatcher) fail(ctx context.Context, log *slog.Logger, err error) error {
	log.Error("dispatch failed", "err", err, "kind", failureKind(err))
	d.metrics.DispatchFailure(ctx, failureKind(err))
	return err
}

func (d *Dispatcher) release(ctx context.Context, log *slog.Logger, leadID string) {
	if err := d.selector.Release(ctx, leadID); err != nil {
		log.Warn("could not release lead", "err", err)
	}
}

func (d *Dispatcher) finishLead(ctx context.Context, log *slog.Logger, leadID string, outcome campaigns.LeadStatus) {
	if leadID == "" {
		return
	}
	err := d.selector.Finish(ctx, leadID, outcome)
	switch {
	case err == nil:
	case errors.Is(err, campaigns.ErrLeadStateConflict):
		log.Debug("lead already settled", "outcome", outcome)
	default:
		log.Warn("could not settle lead", "outcome", outcome, "err", err)
	}
}

// StartCampaign claims the campaign's first pending lead and dials it. It is
// the manual trigger that begins a chain.
func (d *Dispatcher) StartCampaign(ctx context.Context, campaignID string) (*telephony.CallHandle, error) {
	log := logger.WithDispatch(d.log, campaignID, "", "")

	c, err := d.campaigns.GetCampaign(ctx, campaignID)
	if err != nil {
		return nil, fmt.Errorf("dispatcher: load campaign %s: %w", campaignID, err)
	}
	if c.Status != campaigns.StatusInProgress {
		return nil, fmt.Errorf("%w: %s is %s", ErrCampaignInactive, campaignID, c.Status)
	}
	// Check before claiming so a misconfiguration leaves leads untouched.
	if err := d.checkConfigured(ctx, log); err != nil {
		return nil, err
	}

	lead, err := d.selector.ClaimNext(ctx, c)
	if err != nil {
		return nil, d.fail(ctx, log, fmt.Errorf("%w: %v", ErrLeadUnavailable, err))
	}
	if lead == nil {
		log.Info("campaign has no pending leads")
		return nil, fmt.Errorf("%w: no pending leads in %s", ErrLeadUnavailable, campaignID)
	}
	return d.Start(ctx, c, *lead)
}

// RunJob is the queue worker entry point. The job's lead was claimed when the
// job was queued; if the campaign stopped in the meantime the lead is released.
func (d *Dispatcher) RunJob(ctx context.Context, job queue.Job) error {
	log := logger.WithDispatch(d.log, job.CampaignID, job.LeadID, job.TriggeredByCallID)

	c, err := d.campaigns.GetCampaign(ctx, job.CampaignID)
	if err != nil {
		d.release(ctx, log, job.LeadID)
		return fmt.Errorf("dispatcher: load campaign %s: %w", job.CampaignID, err)
	}
	if c.Status != campaigns.StatusInProgress {
		log.Info("campaign no longer in progress; queued call dropped", "status", c.Status)
		d.metrics.ChainSuppressed(ctx, string(ReasonCampaignNotInProgress))
		d.release(ctx, log, job.LeadID)
		return nil
	}

	lead, err := d.campaigns.GetLead(ctx, job.LeadID)
	if err != nil {
		d.release(ctx, log, job.LeadID)
		return fmt.Errorf("dispatcher: load lead %s: %w", job.LeadID, err)
	}
	if lead.CallStatus != campaigns.LeadCalling {
		return fmt.Errorf("%w: queued lead %s is %s", ErrLeadUnavailable, lead.ID, lead.CallStatus)
	}

	_, err = d.Start(ctx, c, lead)
	return err
}
