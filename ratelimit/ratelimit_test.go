package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
)

func TestMemory_Window(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	m := NewMemory(2, time.Minute)
	m.now = func() time.Time { return now }

	assert.True(t, m.Allow(ctx, "ip"))
	assert.True(t, m.Allow(ctx, "ip"))
	assert.False(t, m.Allow(ctx, "ip"))
	assert.True(t, m.Allow(ctx, "other"))

	now = now.Add(61 * time.Second)
	assert.True(t, m.Allow(ctx, "ip"))
}

func TestMemory_EmptyKeyAlwaysAllowed(t *testing.T) {
	m := NewMemory(1, time.Minute)
	for i := 0; i < 5; i++ {
		assert.True(t, m.Allow(context.Background(), ""))
	}
}

func TestRedis_Window(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	ctx := context.Background()

	l := NewRedis(client, 3, time.Minute, "otp")
	for i := 0; i < 3; i++ {
		assert.True(t, l.Allow(ctx, "a@b.co"))
	}
	assert.False(t, l.Allow(ctx, "a@b.co"))
	assert.True(t, mr.Exists("otp:a@b.co"))

	mr.FastForward(time.Minute + time.Second)
	assert.True(t, l.Allow(ctx, "a@b.co"))
}

func TestRedis_FailsOpen(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	mr.Close()

	l := NewRedis(client, 1, time.Minute, "login")
	assert.True(t, l.Allow(context.Background(), "ip"))
	assert.True(t, l.Allow(context.Background(), "ip"))
}

func TestNew_PicksBackend(t *testing.T) {
	assert.IsType(t, &Memory{}, New(nil, 1, time.Minute, "x"))

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	assert.IsType(t, &Redis{}, New(client, 1, time.Minute, "x"))
}
