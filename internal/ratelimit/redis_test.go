package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bcnelson/free-api/internal/domain"
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

func newTestLimiter(t *testing.T, requests int, window time.Duration, opts ...Option) (*RedisLimiter, *miniredis.Miniredis, *fakeClock) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}

	opts = append(opts, WithClock(clock.Now))
	limiter := NewRedisLimiter(client, Config{
		Requests: requests,
		Window:   window,
		Prefix:   "ratelimit:",
	}, opts...)
	t.Cleanup(func() { _ = limiter.Close() })
	return limiter, mr, clock
}

func TestRedisLimiterAllowsUpToLimit(t *testing.T) {
	ctx := context.Background()
	limiter, _, clock := newTestLimiter(t, 3, time.Minute)

	for i := 0; i < 3; i++ {
		res, err := limiter.Allow(ctx, "apikey:one")
		require.NoError(t, err)
		assert.True(t, res.Allowed, "request %d should be allowed", i+1)
		assert.Equal(t, 3, res.Limit)
		assert.Equal(t, 2-i, res.Remaining)
		assert.Equal(t, clock.Now().Add(time.Minute).Unix(), res.ResetUnix())
	}

	res, err := limiter.Allow(ctx, "apikey:one")
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, 0, res.Remaining)
	assert.Equal(t, 3, res.Limit)
}

func TestRedisLimiterWindowSlides(t *testing.T) {
	ctx := context.Background()
	limiter, _, clock := newTestLimiter(t, 2, time.Minute)

	first := clock.Now()
	_, err := limiter.Allow(ctx, "apikey:slide")
	require.NoError(t, err)

	clock.Advance(30 * time.Second)
	_, err = limiter.Allow(ctx, "apikey:slide")
	require.NoError(t, err)

	res, err := limiter.Allow(ctx, "apikey:slide")
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, first.Add(time.Minute).Unix(), res.ResetUnix(), "reset is when the oldest entry expires")

	// The first request leaves the window; one slot frees up.
	clock.Advance(31 * time.Second)
	res, err = limiter.Allow(ctx, "apikey:slide")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.Equal(t, 0, res.Remaining)

	res, err = limiter.Allow(ctx, "apikey:slide")
	require.NoError(t, err)
	assert.False(t, res.Allowed)
}

func TestRedisLimiterIsolatesIdentifiers(t *testing.T) {
	ctx := context.Background()
	limiter, mr, _ := newTestLimiter(t, 1, time.Minute)

	res, err := limiter.Allow(ctx, "apikey:a")
	require.NoError(t, err)
	assert.True(t, res.Allowed)

	res, err = limiter.Allow(ctx, "apikey:b")
	require.NoError(t, err)
	assert.True(t, res.Allowed)

	res, err = limiter.Allow(ctx, "apikey:a")
	require.NoError(t, err)
	assert.False(t, res.Allowed)

	assert.True(t, mr.Exists("ratelimit:apikey:a"))
	assert.True(t, mr.Exists("ratelimit:apikey:b"))
}

func TestRedisLimiterDeniedRequestsAreNotRecorded(t *testing.T) {
	ctx := context.Background()
	limiter, mr, _ := newTestLimiter(t, 2, time.Minute)

	for i := 0; i < 5; i++ {
		_, err := limiter.Allow(ctx, "apikey:deny")
		require.NoError(t, err)
	}

	members, err := mr.ZMembers("ratelimit:apikey:deny")
	require.NoError(t, err)
	assert.Len(t, members, 2)
}

func TestRedisLimiterConcurrentRequests(t *testing.T) {
	ctx := context.Background()
	limiter, _, _ := newTestLimiter(t, 10, time.Minute)

	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed := 0
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := limiter.Allow(ctx, "apikey:burst")
			if err != nil {
				t.Errorf("Allow() error = %v", err)
				return
			}
			if res.Allowed {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, allowed)
}

func TestRedisLimiterUnavailable(t *testing.T) {
	ctx := context.Background()

	var transitions []gobreaker.State
	limiter, mr, _ := newTestLimiter(t, 10, time.Minute, WithStateCallback(func(from, to gobreaker.State) {
		transitions = append(transitions, to)
	}))
	mr.Close()

	for i := 0; i < 5; i++ {
		_, err := limiter.Allow(ctx, "apikey:down")
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrUnavailable)
	}

	assert.Equal(t, gobreaker.StateOpen, limiter.State())
	assert.Equal(t, []gobreaker.State{gobreaker.StateOpen}, transitions)

	_, err := limiter.Allow(ctx, "apikey:down")
	assert.ErrorIs(t, err, domain.ErrUnavailable)
	assert.ErrorContains(t, err, gobreaker.ErrOpenState.Error())
}

func TestDisabledLimiter(t *testing.T) {
	res, err := Disabled{}.Allow(context.Background(), "apikey:any")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.Equal(t, 0, res.Limit)
	assert.Equal(t, 999, res.Remaining)
	assert.Equal(t, int64(0), res.ResetUnix())
}

func TestNewRedisLimiterFromURL(t *testing.T) {
	_, err := NewRedisLimiterFromURL("not a url", Config{Requests: 1, Window: time.Second})
	assert.Error(t, err)

	mr := miniredis.RunT(t)
	limiter, err := NewRedisLimiterFromURL("redis://"+mr.Addr(), Config{Requests: 1, Window: time.Second})
	require.NoError(t, err)
	defer limiter.Close()

	res, err := limiter.Allow(context.Background(), "apikey:url")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}
