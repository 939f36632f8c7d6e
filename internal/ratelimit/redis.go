package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/bcnelson/free-api/internal/domain"
)

// slidingWindowScript keeps one sorted-set member per accepted request,
// scored by its timestamp in milliseconds.
// Returns: allowed (0 or 1), remaining, reset epoch in ms.
var slidingWindowScript = redis.NewScript(`
	local key = KEYS[1]
	local limit = tonumber(ARGV[1])
	local window_ms = tonumber(ARGV[2])
	local now = tonumber(ARGV[3])
	local member = ARGV[4]

	-- Remove entries that left the window
	redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window_ms)

	local count = redis.call('ZCARD', key)

	local allowed = 0
	if count < limit then
		redis.call('ZADD', key, now, member)
		count = count + 1
		allowed = 1
	end

	redis.call('PEXPIRE', key, window_ms + 1000)

	-- The window frees a slot when its oldest entry expires
	local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
	local reset_ms = now + window_ms
	if #oldest > 0 then
		reset_ms = tonumber(oldest[2]) + window_ms
	end

	return {allowed, limit - count, reset_ms}
`)

// Config holds the sliding-window parameters.
type Config struct {
	// Requests is the maximum number of requests allowed in the window.
	Requests int
	// Window is the length of the sliding window.
	Window time.Duration
	// Prefix is prepended to every Redis key.
	Prefix string
}

// RedisLimiter is a sliding-window limiter backed by Redis. Calls go through
// a circuit breaker so an unreachable Redis fails fast.
type RedisLimiter struct {
	client  redis.UniversalClient
	config  Config
	breaker *gobreaker.CircuitBreaker
	logger  *zap.Logger
	now     func() time.Time

	onStateChange func(from, to gobreaker.State)
}

// Option configures a RedisLimiter.
type Option func(*RedisLimiter)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(r *RedisLimiter) {
		r.logger = logger
	}
}

// WithStateCallback is called whenever the circuit breaker changes state.
func WithStateCallback(fn func(from, to gobreaker.State)) Option {
	return func(r *RedisLimiter) {
		r.onStateChange = fn
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(r *RedisLimiter) {
		r.now = now
	}
}

// NewRedisLimiter creates a limiter using client.
func NewRedisLimiter(client redis.UniversalClient, cfg Config, opts ...Option) *RedisLimiter {
	r := &RedisLimiter{
		client: client,
		config: cfg,
		logger: zap.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}

	r.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "ratelimit-redis",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     10 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			// A caller giving up is not a Redis failure.
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			r.logger.Warn("circuit breaker state change",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
			if r.onStateChange != nil {
				r.onStateChange(from, to)
			}
		},
	})

	return r
}

// NewRedisLimiterFromURL parses a redis:// or rediss:// URL and creates a
// limiter with its own client.
func NewRedisLimiterFromURL(url string, cfg Config, opts ...Option) (*RedisLimiter, error) {
	redisOpts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	return NewRedisLimiter(redis.NewClient(redisOpts), cfg, opts...), nil
}

// Allow records one request for identifier if the window has room.
// Any Redis failure, including an open circuit, matches domain.ErrUnavailable.
func (r *RedisLimiter) Allow(ctx context.Context, identifier string) (*Result, error) {
	now := r.now()

	raw, err := r.breaker.Execute(func() (interface{}, error) {
		return slidingWindowScript.Run(ctx, r.client,
			[]string{r.config.Prefix + identifier},
			r.config.Requests,
			r.config.Window.Milliseconds(),
			now.UnixMilli(),
			uuid.NewString(),
		).Result()
	})
	if err != nil {
		return nil, fmt.Errorf("%w: rate limiter: %v", domain.ErrUnavailable, err)
	}

	return r.parseScriptResult(raw)
}

// parseScriptResult parses [allowed, remaining, reset_ms].
func (r *RedisLimiter) parseScriptResult(result interface{}) (*Result, error) {
	values, ok := result.([]interface{})
	if !ok || len(values) < 3 {
		return nil, fmt.Errorf("%w: unexpected script result format: %v", domain.ErrUnavailable, result)
	}

	allowed := false
	if v, ok := values[0].(int64); ok && v == 1 {
		allowed = true
	}

	remaining := 0
	if v, ok := values[1].(int64); ok && v > 0 {
		remaining = int(v)
	}

	var reset time.Time
	if v, ok := values[2].(int64); ok {
		reset = time.UnixMilli(v)
	}

	return &Result{
		Allowed:   allowed,
		Limit:     r.config.Requests,
		Remaining: remaining,
		Reset:     reset,
	}, nil
}

// State returns the circuit breaker state.
func (r *RedisLimiter) State() gobreaker.State {
	return r.breaker.State()
}

// Close closes the Redis client.
func (r *RedisLimiter) Close() error {
	return r.client.Close()
}
