package httpapi

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// PingLimiter bounds health pings per device to cap write
// amplification from misbehaving hardware. Limiting is a transport
// concern, so it lives here rather than in the registry.
type PingLimiter interface {
	Allow(ctx context.Context, deviceID string) (bool, error)
}

// RedisLimiter counts pings in a fixed window via INCR + EXPIRE,
// shared across instances when the deployment scales out.
type RedisLimiter struct {
	client *redis.Client
	limit  int
	window time.Duration
}

func NewRedisLimiter(client *redis.Client, limit int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{client: client, limit: limit, window: window}
}

func (l *RedisLimiter) Allow(ctx context.Context, deviceID string) (bool, error) {
	key := "ping_rate:" + deviceID
	count, err := l.client.Incr(ctx, key).Result()
	if err != nil {
		return false, err
	}
	if count == 1 {
		if err := l.client.Expire(ctx, key, l.window).Err(); err != nil {
			return false, err
		}
	}
	return count <= int64(l.limit), nil
}

// MemoryLimiter is the single-process fallback used when redis is not
// configured.
type MemoryLimiter struct {
	mu     sync.Mutex
	limit  int
	window time.Duration
	counts map[string]int
	resets map[string]time.Time
	now    func() time.Time
}

func NewMemoryLimiter(limit int, window time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		limit:  limit,
		window: window,
		counts: make(map[string]int),
		resets: make(map[string]time.Time),
		now:    time.Now,
	}
}

func (l *MemoryLimiter) Allow(_ context.Context, deviceID string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	if reset, ok := l.resets[deviceID]; !ok || now.After(reset) {
		l.counts[deviceID] = 0
		l.resets[deviceID] = now.Add(l.window)
	}
	l.counts[deviceID]++
	return l.counts[deviceID] <= l.limit, nil
}
