// Package telemetry wires OpenTelemetry metrics for the dialer.
package telemetry

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const meterName = "campaign-dialer/dispatcher"

// Instruments are the dispatcher counters. A stalled campaign shows up as
// failures or suppressions without a matching chain advance.
type Instruments struct {
	dispatchAttempts  metric.Int64Counter
	dispatchFailures  metric.Int64Counter
	chainAdvanced     metric.Int64Counter
	chainSuppressed   metric.Int64Counter
	chainDuplicates   metric.Int64Counter
	campaignExhausted metric.Int64Counter
	callbacksUnknown  metric.Int64Counter
}

func NewInstruments(mp metric.MeterProvider) (*Instruments, error) {
	m := mp.Meter(meterName)
	var errs []error
	counter := func(name, desc string) metric.Int64Counter {
		c, err := m.Int64Counter(name, metric.WithDescription(desc))
		if err != nil {
			errs = append(errs, err)
		}
		return c
	}

	in := &Instruments{
		dispatchAttempts:  counter("dialer.dispatch.attempts", "Outbound call placements attempted."),
		dispatchFailures:  counter("dialer.dispatch.failures", "Dispatch attempts that did not produce a recorded call."),
		chainAdvanced:     counter("dialer.chain.advanced", "Completion events that queued a next call."),
		chainSuppressed:   counter("dialer.chain.suppressed", "Completion events that did not chain."),
		chainDuplicates:   counter("dialer.chain.duplicates", "Redelivered completion events that were ignored."),
		campaignExhausted: counter("dialer.campaign.exhausted", "Completion events that found no pending lead."),
		callbacksUnknown:  counter("dialer.callback.unknown", "Status callbacks for calls with no record yet."),
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return in, nil
}

// Noop returns instruments that record nothing.
func Noop() *Instruments {
	in, _ := NewInstruments(noop.NewMeterProvider())
	return in
}

func (in *Instruments) DispatchAttempt(ctx context.Context) {
	in.dispatchAttempts.Add(ctx, 1)
}

// DispatchFailure records a failed dispatch or chain step; kind is one of
// configuration, code, gateway, persistence, lead or campaign.
func (in *Instruments) DispatchFailure(ctx context.Context, kind string) {
	in.dispatchFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}

func (in *Instruments) ChainAdvanced(ctx context.Context) {
	in.chainAdvanced.Add(ctx, 1)
}

func (in *Instruments) ChainSuppressed(ctx context.Context, reason string) {
	in.chainSuppressed.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

func (in *Instruments) ChainDuplicate(ctx context.Context) {
	in.chainDuplicates.Add(ctx, 1)
}

func (in *Instruments) CampaignExhausted(ctx context.Context) {
	in.campaignExhausted.Add(ctx, 1)
}

// CallbackUnknown records a status callback that matched no stored call.
func (in *Instruments) CallbackUnknown(ctx context.Context, status string) {
	in.callbacksUnknown.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
}
