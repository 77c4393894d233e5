package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	ActionTyping = "typing"
	ActionBridge = "bridge"
)

// Limit describes one token bucket: Burst tokens refilled one every Every.
type Limit struct {
	Every time.Duration
	Burst int
}

var defaultLimit = Limit{Every: 3 * time.Second, Burst: 20}

type entry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter keeps one bucket per "key:action" pair.
type RateLimiter struct {
	limits  map[string]Limit
	buckets map[string]*entry
	mutex   sync.Mutex
	ttl     time.Duration
}

func NewRateLimiter(limits map[string]Limit) *RateLimiter {
	l := make(map[string]Limit, len(limits))
	for action, limit := range limits {
		l[action] = limit
	}
	return &RateLimiter{
		limits:  l,
		buckets: make(map[string]*entry),
		ttl:     time.Hour,
	}
}

// Allow consumes a token for key and action, returning false and the wait
// until the next token when the bucket is empty.
func (rl *RateLimiter) Allow(key, action string) (bool, time.Duration) {
	rl.mutex.Lock()
	e := rl.bucket(key, action)
	rl.mutex.Unlock()

	now := time.Now()
	reservation := e.limiter.ReserveN(now, 1)
	if !reservation.OK() {
		return false, 0
	}
	if delay := reservation.DelayFrom(now); delay > 0 {
		reservation.CancelAt(now)
		return false, delay
	}
	return true, 0
}

func (rl *RateLimiter) bucket(key, action string) *entry {
	k := key + ":" + action
	if e, ok := rl.buckets[k]; ok {
		e.lastSeen = time.Now()
		return e
	}
	limit, ok := rl.limits[action]
	if !ok {
		limit = defaultLimit
	}
	e := &entry{
		limiter:  rate.NewLimiter(rate.Every(limit.Every), limit.Burst),
		lastSeen: time.Now(),
	}
	rl.buckets[k] = e
	return e
}

// Cleanup drops buckets that have not been used for an hour.
func (rl *RateLimiter) Cleanup() {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	cutoff := time.Now().Add(-rl.ttl)
	for key, e := range rl.buckets {
		if e.lastSeen.Before(cutoff) {
			delete(rl.buckets, key)
		}
	}
}

func (rl *RateLimiter) StartCleanupRoutine(stop <-chan struct{}) {
	go func() {
		ticker := time.NewTicker(30 * time.Minute)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				rl.Cleanup()
			case <-stop:
				return
			}
		}
	}()
}
