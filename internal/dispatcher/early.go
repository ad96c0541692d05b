package dispatcher

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"campaign-dialer/internal/calls"
)

// EarlyStatuses holds terminal statuses reported for a call before its record
// was committed. Start takes the held status once Persist succeeds.
type EarlyStatuses interface {
	Hold(ctx context.Context, providerCallID string, status calls.CallStatus) error
	// Take removes and returns the held status, if any. Only one caller ever
	// receives a given held status.
	Take(ctx context.Context, providerCallID string) (calls.CallStatus, bool, error)
}

func earlyStatusKey(providerCallID string) string {
	return "dialer:early-status:" + providerCallID
}

// RedisEarlyStatuses shares held statuses across API replicas and workers.
type RedisEarlyStatuses struct {
	rdb redis.Cmdable
	ttl time.Duration
}

func NewRedisEarlyStatuses(rdb redis.Cmdable, ttl time.Duration) *RedisEarlyStatuses {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &RedisEarlyStatuses{rdb: rdb, ttl: ttl}
}

func (e *RedisEarlyStatuses) Hold(ctx context.Context, providerCallID string, status calls.CallStatus) error {
	return e.rdb.Set(ctx, earlyStatusKey(providerCallID), string(status), e.ttl).Err()
}

func (e *RedisEarlyStatuses) Take(ctx context.Context, providerCallID string) (calls.CallStatus, bool, error) {
	v, err := e.rdb.GetDel(ctx, earlyStatusKey(providerCallID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return calls.CallStatus(v), true, nil
}

type heldStatus struct {
	status  calls.CallStatus
	expires time.Time
}

// MemoryEarlyStatuses is a single-process EarlyStatuses.
type MemoryEarlyStatuses struct {
	mu    sync.Mutex
	held  map[string]heldStatus
	ttl   time.Duration
	clock func() time.Time
}

func NewMemoryEarlyStatuses(ttl time.Duration) *MemoryEarlyStatuses {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &MemoryEarlyStatuses{held: map[string]heldStatus{}, ttl: ttl, clock: time.Now}
}

func (e *MemoryEarlyStatuses) Hold(ctx context.Context, providerCallID string, status calls.CallStatus) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.held[providerCallID] = heldStatus{status: status, expires: e.clock().Add(e.ttl)}
	return nil
}

func (e *MemoryEarlyStatuses) Take(ctx context.Context, providerCallID string) (calls.CallStatus, bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	h, ok := e.held[providerCallID]
	if !ok {
		return "", false, nil
	}
	delete(e.held, providerCallID)
	if !e.clock().Before(h.expires) {
		return "", false, nil
	}
	return h.status, true, nil
}
