package dispatcher

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"campaign-dialer/internal/calls"
	"campaign-dialer/pkg/utils"
)

// Guard remembers which completion events have already been acted on.
type Guard interface {
	// FirstDelivery records key and reports whether this is its first sighting.
	FirstDelivery(ctx context.Context, key string) (bool, error)
}

// completionKey identifies one terminal event of one call.
func completionKey(providerCallID string, status calls.CallStatus) string {
	return "dialer:completion:" + providerCallID + ":" + string(status)
}

// RedisGuard shares delivery state across API replicas.
type RedisGuard struct {
	rdb redis.Cmdable
	ttl time.Duration
}

func NewRedisGuard(rdb redis.Cmdable, ttl time.Duration) *RedisGuard {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisGuard{rdb: rdb, ttl: ttl}
}

func (g *RedisGuard) FirstDelivery(ctx context.Context, key string) (bool, error) {
	return utils.ClaimOnce(ctx, g.rdb, key, g.ttl)
}

// MemoryGuard is a single-process Guard.
type MemoryGuard struct {
	mu    sync.Mutex
	seen  map[string]time.Time
	ttl   time.Duration
	clock func() time.Time
}

func NewMemoryGuard(ttl time.Duration) *MemoryGuard {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &MemoryGuard{seen: map[string]time.Time{}, ttl: ttl, clock: time.Now}
}

func (g *MemoryGuard) FirstDelivery(ctx context.Context, key string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	now := g.clock()
	if exp, ok := g.seen[key]; ok && now.Before(exp) {
		return false, nil
	}
	g.seen[key] = now.Add(g.ttl)
	return true, nil
}
