package calls

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store for tests and local development.
// It enforces the same uniqueness rules as the Postgres schema.
type MemoryStore struct {
	mu       sync.Mutex
	calls    map[string]Call        // by provider call id
	sessions map[string]CallSession // by provider call id
	clock    func() time.Time

	// SessionInsertErr, when set, makes the session write of Persist fail so
	// tests can observe that the call write is rolled back with it.
	SessionInsertErr error
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		calls:    map[string]Call{},
		sessions: map[string]CallSession{},
		clock:    time.Now,
	}
}

func (s *MemoryStore) Persist(ctx context.Context, rec Record) error {
	if err := validateRecord(rec); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.calls[rec.Call.ProviderCallID]; ok {
		return ErrDuplicateCall
	}
	if s.codeInUseLocked(rec.Call.CallCode) {
		return ErrDuplicateCode
	}
	if s.SessionInsertErr != nil {
		return s.SessionInsertErr
	}

	now := s.clock().UTC()
	if rec.Call.CreatedAt.IsZero() {
		rec.Call.CreatedAt = now
	}
	rec.Call.UpdatedAt = rec.Call.CreatedAt
	if rec.Session.CreatedAt.IsZero() {
		rec.Session.CreatedAt = now
	}
	s.calls[rec.Call.ProviderCallID] = rec.Call
	s.sessions[rec.Session.ProviderCallID] = rec.Session
	return nil
}

func (s *MemoryStore) CodeInUse(ctx context.Context, code int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.codeInUseLocked(code), nil
}

func (s *MemoryStore) codeInUseLocked(code int) bool {
	for _, c := range s.calls {
		if c.CallCode == code && !c.Status.IsTerminal() {
			return true
		}
	}
	return false
}

func (s *MemoryStore) FindByProviderID(ctx context.Context, providerCallID string) (Call, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.calls[providerCallID]
	if !ok {
		return Call{}, ErrNotFound
	}
	return c, nil
}

func (s *MemoryStore) SessionByProviderID(ctx context.Context, providerCallID string) (CallSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cs, ok := s.sessions[providerCallID]
	if !ok {
		return CallSession{}, ErrNotFound
	}
	return cs, nil
}

func (s *MemoryStore) UpdateStatus(ctx context.Context, providerCallID string, status CallStatus) (Call, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.calls[providerCallID]
	if !ok {
		return Call{}, ErrNotFound
	}
	if c.Status.IsTerminal() {
		return c, nil
	}
	c.Status = status
	c.UpdatedAt = s.clock().UTC()
	s.calls[providerCallID] = c
	return c, nil
}

func (s *MemoryStore) ListByCampaign(ctx context.Context, campaignID string) ([]Call, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Call, 0)
	for _, c := range s.calls {
		if c.CampaignID == campaignID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// Len returns the number of stored calls and sessions.
func (s *MemoryStore) Len() (calls, sessions int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls), len(s.sessions)
}
