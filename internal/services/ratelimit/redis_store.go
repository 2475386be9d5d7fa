package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/doctor-direct/ai-orchestrator/internal/models"
	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "ratelimit:"

// hitScript atomically applies one fixed-window hit
// KEYS[1]: counter hash
// ARGV[1]: now (unix ms)
// ARGV[2]: window (ms)
// ARGV[3]: limit
// Returns {count, reset_at_ms, allowed}
var hitScript = redis.NewScript(`
	local count = tonumber(redis.call('HGET', KEYS[1], 'count') or '0')
	local reset = tonumber(redis.call('HGET', KEYS[1], 'reset') or '0')
	local now = tonumber(ARGV[1])
	local window = tonumber(ARGV[2])
	local limit = tonumber(ARGV[3])

	if count == 0 or now >= reset then
		reset = now + window
		redis.call('HSET', KEYS[1], 'count', 1, 'reset', reset)
		redis.call('PEXPIREAT', KEYS[1], reset)
		return {1, reset, 1}
	end

	if count < limit then
		count = redis.call('HINCRBY', KEYS[1], 'count', 1)
		return {count, reset, 1}
	end

	return {count, reset, 0}
`)

// RedisStore shares counters between instances through Redis
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisStore creates a store on an existing client
func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client, prefix: redisKeyPrefix}
}

// Hit implements Store
func (s *RedisStore) Hit(ctx context.Context, key string, limit int, window time.Duration, now time.Time) (models.RateLimitState, bool, error) {
	res, err := hitScript.Run(ctx, s.client, []string{s.prefix + key},
		now.UnixMilli(), window.Milliseconds(), limit).Int64Slice()
	if err != nil {
		return models.RateLimitState{}, false, fmt.Errorf("rate limit script failed: %w", err)
	}
	if len(res) != 3 {
		return models.RateLimitState{}, false, fmt.Errorf("unexpected rate limit script result: %v", res)
	}

	state := models.RateLimitState{
		Key:           key,
		Count:         int(res[0]),
		WindowResetAt: time.UnixMilli(res[1]),
	}
	return state, res[2] == 1, nil
}

// Reset implements Store
func (s *RedisStore) Reset(ctx context.Context, key string) error {
	return s.client.Del(ctx, s.prefix+key).Err()
}

// Close leaves the shared client open for its owner
func (s *RedisStore) Close() error {
	return nil
}
