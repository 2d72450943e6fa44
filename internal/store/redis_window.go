package store

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisWindow is an optional shared sliding-window counter backed by Redis.
// When several instances sit behind one load balancer it gives them a
// common coarse ceiling ahead of each instance's in-memory engine. The
// check-and-increment runs as a single Lua script so concurrent instances
// cannot both admit the last slot.
type RedisWindow struct {
	client *redis.Client
	script *redis.Script
}

const slidingWindowScript = `
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])

redis.call("ZREMRANGEBYSCORE", key, 0, now - window)
local count = redis.call("ZCARD", key)

if count >= limit then
    return 0
end

redis.call("ZADD", key, now, now .. "-" .. ARGV[4])
redis.call("PEXPIRE", key, window)
return 1
`

// NewRedisWindow connects to Redis at addr
func NewRedisWindow(addr, password string, db int) *RedisWindow {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &RedisWindow{
		client: client,
		script: redis.NewScript(slidingWindowScript),
	}
}

// Allow records one hit for key and reports whether it fit under limit
// within the trailing window
func (w *RedisWindow) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	now := time.Now().UnixMilli()
	member := fmt.Sprintf("%d", time.Now().UnixNano())
	res, err := w.script.Run(ctx, w.client, []string{key},
		now, window.Milliseconds(), limit, member).Int()
	if err != nil {
		return false, fmt.Errorf("redis sliding window: %w", err)
	}
	return res == 1, nil
}

// Reset clears the window for key
func (w *RedisWindow) Reset(ctx context.Context, key string) error {
	return w.client.Del(ctx, key).Err()
}

// Ping verifies connectivity
func (w *RedisWindow) Ping(ctx context.Context) error {
	return w.client.Ping(ctx).Err()
}

// Close releases the client
func (w *RedisWindow) Close() error {
	return w.client.Close()
}
