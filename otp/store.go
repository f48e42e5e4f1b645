package otp

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

type Entry struct {
	ID          string    `json:"id"`
	Code        string    `json:"code"`
	Channel     string    `json:"channel"`
	Destination string    `json:"destination"`
	ExpiresAt   time.Time `json:"expires_at"`
	Attempts    int       `json:"attempts"`
}

// Store keeps pending codes and verified markers, both keyed by
// destination. Entries may outlive their ExpiresAt; the service enforces
// expiry.
type Store interface {
	Put(ctx context.Context, e Entry, ttl time.Duration) error
	Get(ctx context.Context, destination string) (Entry, bool, error)
	// Attempt atomically counts one verification attempt against the
	// pending code and returns the new total. ok is false when no code is
	// pending.
	Attempt(ctx context.Context, destination string) (n int, ok bool, err error)
	Delete(ctx context.Context, destination string) error
	MarkVerified(ctx context.Context, destination string, ttl time.Duration) error
	HasVerified(ctx context.Context, destination string) (bool, error)
	// ConsumeVerified removes the marker and reports whether it was present.
	ConsumeVerified(ctx context.Context, destination string) (bool, error)
}

type memoryItem struct {
	entry    Entry
	deadline time.Time
}

type MemoryStore struct {
	mu       sync.Mutex
	codes    map[string]memoryItem
	verified map[string]time.Time
	now      func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		codes:    map[string]memoryItem{},
		verified: map[string]time.Time{},
		now:      time.Now,
	}
}

func (s *MemoryStore) Put(_ context.Context, e Entry, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for k, it := range s.codes {
		if !now.Before(it.deadline) {
			delete(s.codes, k)
		}
	}
	s.codes[e.Destination] = memoryItem{entry: e, deadline: now.Add(ttl)}
	return nil
}

func (s *MemoryStore) Get(_ context.Context, destination string) (Entry, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	it, ok := s.codes[destination]
	if !ok || !s.now().Before(it.deadline) {
		delete(s.codes, destination)
		return Entry{}, false, nil
	}
	return it.entry, true, nil
}

func (s *MemoryStore) Attempt(_ context.Context, destination string) (int, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	it, ok := s.codes[destination]
	if !ok || !s.now().Before(it.deadline) {
		delete(s.codes, destination)
		return 0, false, nil
	}
	it.entry.Attempts++
	s.codes[destination] = it
	return it.entry.Attempts, true, nil
}

func (s *MemoryStore) Delete(_ context.Context, destination string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.codes, destination)
	return nil
}

func (s *MemoryStore) MarkVerified(_ context.Context, destination string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.verified[destination] = s.now().Add(ttl)
	return nil
}

func (s *MemoryStore) HasVerified(_ context.Context, destination string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	deadline, ok := s.verified[destination]
	return ok && s.now().Before(deadline), nil
}

func (s *MemoryStore) ConsumeVerified(_ context.Context, destination string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	deadline, ok := s.verified[destination]
	delete(s.verified, destination)
	return ok && s.now().Before(deadline), nil
}

type RedisStore struct {
	rdb    *redis.Client
	prefix string
}

func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb, prefix: "qapply:otp:"}
}

func (s *RedisStore) codeKey(destination string) string {
	return s.prefix + "code:" + destination
}

func (s *RedisStore) attemptsKey(destination string) string {
	return s.prefix + "attempts:" + destination
}

func (s *RedisStore) verifiedKey(destination string) string {
	return s.prefix + "verified:" + destination
}

func (s *RedisStore) Put(ctx context.Context, e Entry, ttl time.Duration) error {
	b, err := json.Marshal(e)
	if err != nil {
		return err
	}
	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.codeKey(e.Destination), b, ttl)
		pipe.Del(ctx, s.attemptsKey(e.Destination))
		return nil
	})
	return err
}

func (s *RedisStore) Get(ctx context.Context, destination string) (Entry, bool, error) {
	b, err := s.rdb.Get(ctx, s.codeKey(destination)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, err
	}

	var e Entry
	if err := json.Unmarshal(b, &e); err != nil {
		return Entry{}, false, err
	}
	if e.Attempts, err = s.rdb.Get(ctx, s.attemptsKey(destination)).Int(); err != nil && !errors.Is(err, redis.Nil) {
		return Entry{}, false, err
	}
	return e, true, nil
}

// KEYS[1] code, KEYS[2] attempts. The counter dies with the code.
var attemptScript = redis.NewScript(`
local ttl = redis.call("PTTL", KEYS[1])
if ttl < 0 then
	return 0
end
local n = redis.call("INCR", KEYS[2])
redis.call("PEXPIRE", KEYS[2], ttl)
return n
`)

func (s *RedisStore) Attempt(ctx context.Context, destination string) (int, bool, error) {
	n, err := attemptScript.Run(ctx, s.rdb, []string{s.codeKey(destination), s.attemptsKey(destination)}).Int()
	if err != nil {
		return 0, false, err
	}
	return n, n > 0, nil
}

func (s *RedisStore) Delete(ctx context.Context, destination string) error {
	return s.rdb.Del(ctx, s.codeKey(destination), s.attemptsKey(destination)).Err()
}

func (s *RedisStore) MarkVerified(ctx context.Context, destination string, ttl time.Duration) error {
	return s.rdb.Set(ctx, s.verifiedKey(destination), "1", ttl).Err()
}

func (s *RedisStore) HasVerified(ctx context.Context, destination string) (bool, error) {
	n, err := s.rdb.Exists(ctx, s.verifiedKey(destination)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *RedisStore) ConsumeVerified(ctx context.Context, destination string) (bool, error) {
	n, err := s.rdb.Del(ctx, s.verifiedKey(destination)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
