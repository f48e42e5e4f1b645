package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mbolis/quick-apply/log"
)

// Limiter admits at most a fixed number of events per key per window.
type Limiter interface {
	Allow(ctx context.Context, key string) bool
}

type Memory struct {
	limit  int
	window time.Duration
	now    func() time.Time

	mu      sync.Mutex
	buckets map[string]*bucket
}

type bucket struct {
	count     int
	windowEnd time.Time
}

func NewMemory(limit int, window time.Duration) *Memory {
	return &Memory{
		limit:   limit,
		window:  window,
		now:     time.Now,
		buckets: make(map[string]*bucket),
	}
}

func (m *Memory) Allow(_ context.Context, key string) bool {
	if key == "" || m.limit <= 0 {
		return true
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	b, ok := m.buckets[key]
	if !ok || now.After(b.windowEnd) {
		if len(m.buckets) > 10_000 {
			m.sweep(now)
		}
		m.buckets[key] = &bucket{count: 1, windowEnd: now.Add(m.window)}
		return true
	}
	if b.count >= m.limit {
		return false
	}
	b.count++
	return true
}

func (m *Memory) sweep(now time.Time) {
	for k, b := range m.buckets {
		if now.After(b.windowEnd) {
			delete(m.buckets, k)
		}
	}
}

const script = `
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
if current > tonumber(ARGV[2]) then
  return 0
end
return 1
`

type Redis struct {
	client *redis.Client
	limit  int
	window time.Duration
	prefix string
	script *redis.Script
}

func NewRedis(client *redis.Client, limit int, window time.Duration, prefix string) *Redis {
	return &Redis{
		client: client,
		limit:  limit,
		window: window,
		prefix: prefix,
		script: redis.NewScript(script),
	}
}

// Allow fails open when Redis is unreachable.
func (l *Redis) Allow(ctx context.Context, key string) bool {
	if key == "" || l.limit <= 0 || l.window <= 0 {
		return true
	}
	ttl := l.window.Milliseconds()
	if ttl <= 0 {
		ttl = 1
	}

	ctx, cancel := context.WithTimeout(ctx, 250*time.Millisecond)
	defer cancel()
	allowed, err := l.script.Run(ctx, l.client, []string{l.prefix + ":" + key}, ttl, l.limit).Int64()
	if err != nil {
		log.WithError(err).Warn("ratelimit.redis")
		return true
	}
	return allowed == 1
}

// New picks the Redis limiter when a client is available.
func New(client *redis.Client, limit int, window time.Duration, prefix string) Limiter {
	if client == nil {
		return NewMemory(limit, window)
	}
	return NewRedis(client, limit, window, prefix)
}
