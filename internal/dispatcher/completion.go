package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"campaign-dialer/internal/calls"
	"campaign-dialer/internal/campaigns"
	"campaign-dialer/internal/queue"
	"campaign-dialer/pkg/logger"
)

// HandleCompletion reacts to a call that reached a terminal status: it settles
// the call's lead and, when Decide allows it, claims the next pending lead and
// queues a call for it. Each (call, terminal status) pair is acted on at most
// once.
//
// It never returns or panics; every failure is logged with the call id. The
// webhook caller must always be able to acknowledge the provider.
func (d *Dispatcher) HandleCompletion(ctx context.Context, call *calls.Call) {
	if call == nil {
		return
	}
	log := logger.WithDispatch(d.log, call.CampaignID, call.LeadID, call.ProviderCallID)

	defer func() {
		if p := recover(); p != nil {
			log.Error("completion handling panicked", "panic", fmt.Sprint(p))
		}
	}()

	if !call.Status.IsTerminal() {
		return
	}

	first, err := d.guard.FirstDelivery(ctx, completionKey(call.ProviderCallID, call.Status))
	if err != nil {
		// Without the guard a redelivery could dial two leads; stall instead.
		log.Error("idempotency guard unavailable; completion not processed", "err", err, "status", call.Status)
		return
	}
	if !first {
		log.Info("duplicate completion event ignored", "status", call.Status)
		d.metrics.ChainDuplicate(ctx)
		return
	}

	outcome := campaigns.LeadFailed
	if call.Status == calls.CallStatusCompleted {
		outcome = campaigns.LeadCompleted
	}
	d.finishLead(ctx, log, call.LeadID, outcome)

	var campaign *campaigns.Campaign
	c, err := d.campaigns.GetCampaign(ctx, call.CampaignID)
	switch {
	case err == nil:
		campaign = &c
	case errors.Is(err, campaigns.ErrNotFound):
	default:
		log.Error("load campaign failed; chain stalled", "err", err)
		d.metrics.DispatchFailure(ctx, "campaign")
		return
	}

	decision := Decide(CompletionEvent{
		ProviderCallID: call.ProviderCallID,
		CampaignID:     call.CampaignID,
		Status:         call.Status,
	}, campaign)
	if !decision.Advance {
		log.Info("chain not advanced", "reason", decision.Reason, "status", call.Status)
		d.metrics.ChainSuppressed(ctx, string(decision.Reason))
		return
	}

	next, err := d.selector.ClaimNext(ctx, *campaign)
	if err != nil {
		log.Error("claim next lead failed; chain stalled", "err", err)
		d.metrics.DispatchFailure(ctx, "lead")
		return
	}
	if next == nil {
		log.Info("campaign exhausted: no pending leads remain")
		d.metrics.CampaignExhausted(ctx)
		return
	}

	job := queue.NewJob(campaign.ID, next.ID, call.ProviderCallID)
	if err := d.queue.Enqueue(ctx, job); err != nil {
		log.Error("enqueue next call failed; chain stalled", "err", err, "next_lead_id", next.ID)
		d.metrics.DispatchFailure(ctx, "lead")
		d.release(ctx, log, next.ID)
		return
	}
	log.Info("next call queued", "next_lead_id", next.ID, "job_id", job.ID)
	d.metrics.ChainAdvanced(ctx)
}

// HandleUnknownCall takes a status callback for a call that has no record yet.
// Twilio can report a call finished before Start has committed it; a terminal
// status is held and applied by Start once the record exists.
func (d *Dispatcher) HandleUnknownCall(ctx context.Context, providerCallID string, status calls.CallStatus) {
	log := logger.WithDispatch(d.log, "", "", providerCallID).With("status", status)
	d.metrics.CallbackUnknown(ctx, string(status))

	if !status.IsTerminal() {
		log.Info("status callback for unknown call")
		return
	}
	if err := d.early.Hold(ctx, providerCallID, status); err != nil {
		log.Error("hold early terminal status failed; chain stalled", "err", err)
		return
	}
	log.Warn("terminal status arrived before call was recorded; held")

	// Start may have committed and checked for a held status in the meantime.
	if _, err := d.store.FindByProviderID(ctx, providerCallID); err == nil {
		d.applyEarlyStatus(ctx, log, providerCallID)
	}
}

// applyEarlyStatus replays a held terminal status onto a now recorded call.
func (d *Dispatcher) applyEarlyStatus(ctx context.Context, log *slog.Logger, providerCallID string) {
	status, ok, err := d.early.Take(ctx, providerCallID)
	if err != nil {
		log.Error("read held status failed", "err", err)
		return
	}
	if !ok {
		return
	}
	call, err := d.store.UpdateStatus(ctx, providerCallID, status)
	if err != nil {
		log.Error("apply held status failed", "err", err, "status", status)
		return
	}
	log.Info("applying status reported before the call was recorded", "status", status)
	d.HandleCompletion(ctx, &call)
}
