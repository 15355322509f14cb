package ratelimit

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestLimiter(capacity int, refillRate float64) (*RateLimiter, *fakeClock) {
	clock := &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	rl := NewRateLimiter(capacity, refillRate, 0)
	rl.now = clock.Now
	return rl, clock
}

func TestRateLimiter_Burst(t *testing.T) {
	rl, _ := newTestLimiter(3, 1)

	for i := 0; i < 3; i++ {
		assert.True(t, rl.Allow("198.51.100.7"), "request %d", i+1)
	}
	assert.False(t, rl.Allow("198.51.100.7"))

	// keys do not share buckets
	assert.True(t, rl.Allow("198.51.100.8"))
}

func TestRateLimiter_Refill(t *testing.T) {
	rl, clock := newTestLimiter(2, 0.5)

	assert.True(t, rl.Allow("account-1"))
	assert.True(t, rl.Allow("account-1"))

	ok, wait := rl.Reserve("account-1")
	assert.False(t, ok)
	assert.Equal(t, 2*time.Second, wait)

	clock.Advance(time.Second)
	ok, wait = rl.Reserve("account-1")
	assert.False(t, ok)
	assert.Equal(t, time.Second, wait)

	clock.Advance(time.Second)
	assert.True(t, rl.Allow("account-1"))

	// never above capacity
	clock.Advance(time.Hour)
	assert.InDelta(t, 2.0, rl.Tokens("account-1"), 0.0001)
}

func TestRateLimiter_ResetAndRemove(t *testing.T) {
	rl, _ := newTestLimiter(1, 0.001)

	assert.True(t, rl.Allow("203.0.113.1"))
	assert.False(t, rl.Allow("203.0.113.1"))

	rl.Reset("203.0.113.1")
	assert.True(t, rl.Allow("203.0.113.1"))

	rl.Remove("203.0.113.1")
	assert.Equal(t, 0, rl.GetStats().ActiveBuckets)
	assert.True(t, rl.Allow("203.0.113.1"))

	// resetting an unknown key is a no-op
	rl.Reset("unknown")
	assert.Equal(t, 1, rl.GetStats().ActiveBuckets)
}

func TestRateLimiter_EvictIdle(t *testing.T) {
	rl, clock := newTestLimiter(5, 1)
	rl.ttl = time.Minute

	rl.Allow("stale")
	clock.Advance(30 * time.Second)
	rl.Allow("fresh")
	clock.Advance(45 * time.Second)

	rl.evictIdle()
	stats := rl.GetStats()
	assert.Equal(t, 1, stats.ActiveBuckets)
	assert.Equal(t, 5, stats.Capacity)
	assert.InDelta(t, 5.0, rl.Tokens("fresh"), 0.0001)
}

func TestRateLimiter_ZeroRefill(t *testing.T) {
	rl, _ := newTestLimiter(1, 0)
	rl.ttl = time.Hour

	assert.True(t, rl.Allow("k"))
	ok, wait := rl.Reserve("k")
	assert.False(t, ok)
	assert.Equal(t, time.Hour, wait)
}

func TestRateLimiter_ConcurrentAccess(t *testing.T) {
	rl, _ := newTestLimiter(100, 0)

	var allowed int64
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				if rl.Allow("shared") {
					atomic.AddInt64(&allowed, 1)
				}
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(100), allowed)
}

func TestRateLimiter_Close(t *testing.T) {
	rl := NewRateLimiter(1, 1, 10*time.Millisecond)
	require.NotPanics(t, func() {
		rl.Close()
		rl.Close()
	})
}

func BenchmarkRateLimiter_Allow(b *testing.B) {
	rl := NewRateLimiter(1000000, 1000000, 0)
	defer rl.Close()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		rl.Allow("bench")
	}
}
