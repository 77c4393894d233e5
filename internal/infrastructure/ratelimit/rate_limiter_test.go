package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAllow_ThrottlesPerKeyAndAction(t *testing.T) {
	rl := NewRateLimiter(map[string]Limit{
		ActionTyping: {Every: time.Hour, Burst: 1},
	})

	ok, _ := rl.Allow("me", ActionTyping)
	assert.True(t, ok)

	ok, wait := rl.Allow("me", ActionTyping)
	assert.False(t, ok)
	assert.Greater(t, wait, time.Duration(0))

	ok, _ = rl.Allow("peer", ActionTyping)
	assert.True(t, ok, "buckets are per key")
}

func TestAllow_DefaultLimit(t *testing.T) {
	rl := NewRateLimiter(nil)
	for i := 0; i < defaultLimit.Burst; i++ {
		ok, _ := rl.Allow("127.0.0.1", ActionBridge)
		assert.True(t, ok)
	}
	ok, _ := rl.Allow("127.0.0.1", ActionBridge)
	assert.False(t, ok)
}

func TestCleanup(t *testing.T) {
	rl := NewRateLimiter(nil)
	rl.Allow("me", ActionTyping)
	rl.ttl = 0
	time.Sleep(time.Millisecond)
	rl.Cleanup()
	assert.Empty(t, rl.buckets)
}
