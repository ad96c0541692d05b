package calls

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrNotFound = errors.New("calls: not found")
	// ErrDuplicateCode means another unresolved call already holds the call code.
	ErrDuplicateCode = errors.New("calls: call code already in use")
	// ErrDuplicateCall means the provider call id was already recorded.
	ErrDuplicateCall = errors.New("calls: provider call id already recorded")
	ErrInvalidRecord = errors.New("calls: invalid record")
)

// Store persists calls and their sessions.
type Store interface {
	// Persist writes the call and its session in one transaction. If either
	// insert fails nothing is committed.
	Persist(ctx context.Context, rec Record) error

	// CodeInUse reports whether an unresolved call holds code.
	CodeInUse(ctx context.Context, code int) (bool, error)

	FindByProviderID(ctx context.Context, providerCallID string) (Call, error)
	SessionByProviderID(ctx context.Context, providerCallID string) (CallSession, error)

	// UpdateStatus mirrors a provider status onto the stored call. Terminal
	// statuses are sticky: a late non-terminal event does not reopen a call.
	UpdateStatus(ctx context.Context, providerCallID string, status CallStatus) (Call, error)

	ListByCampaign(ctx context.Context, campaignID string) ([]Call, error)
}

func validateRecord(rec Record) error {
	if rec.Call.ProviderCallID == "" {
		return fmt.Errorf("%w: provider call id required", ErrInvalidRecord)
	}
	if rec.Session.ProviderCallID != rec.Call.ProviderCallID {
		return fmt.Errorf("%w: session provider call id %q does not match call %q",
			ErrInvalidRecord, rec.Session.ProviderCallID, rec.Call.ProviderCallID)
	}
	if rec.Call.CampaignID == "" || rec.Call.ID == "" || rec.Session.ID == "" {
		return fmt.Errorf("%w: ids required", ErrInvalidRecord)
	}
	if rec.Call.CallCode < MinCode || rec.Call.CallCode > MaxCode {
		return fmt.Errorf("%w: call code %d out of range", ErrInvalidRecord, rec.Call.CallCode)
	}
	return nil
}
