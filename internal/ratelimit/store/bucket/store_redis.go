package bucket

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"badguys/internal/ratelimit/models"
)

const redisKeyPrefix = "badguys:ratelimit:"

// slidingWindowScript trims the sorted set to the window, then adds the
// request only when it fits. It returns {allowed, count, oldest_ms}.
var slidingWindowScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
local member = ARGV[4]

redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)
local count = redis.call('ZCARD', key)
local allowed = 0
if count < limit then
  redis.call('ZADD', key, now, member)
  count = count + 1
  allowed = 1
end
redis.call('PEXPIRE', key, window)
local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
local oldestScore = now
if oldest[2] then
  oldestScore = tonumber(oldest[2])
end
return {allowed, count, oldestScore}
`)

// RedisBucketStore shares sliding windows across instances with one sorted set per key.
type RedisBucketStore struct {
	client redis.Scripter
	now    func() time.Time
}

func NewRedis(client redis.Scripter) *RedisBucketStore {
	return &RedisBucketStore{client: client, now: time.Now}
}

func (s *RedisBucketStore) Allow(ctx context.Context, key string, limit int, window time.Duration) (*models.RateLimitResult, error) {
	now := s.now()
	nowMs := now.UnixMilli()
	res, err := slidingWindowScript.Run(ctx, s.client, []string{redisKeyPrefix + key},
		nowMs, window.Milliseconds(), limit, strconv.FormatInt(nowMs, 10)+"-"+uuid.NewString(),
	).Int64Slice()
	if err != nil {
		return nil, fmt.Errorf("run sliding window: %w", err)
	}
	if len(res) != 3 {
		return nil, fmt.Errorf("run sliding window: unexpected reply of length %d", len(res))
	}

	allowed, count, oldestMs := res[0] == 1, int(res[1]), res[2]
	resetAt := time.UnixMilli(oldestMs).Add(window)
	result := &models.RateLimitResult{
		Allowed:   allowed,
		Limit:     limit,
		Remaining: max(limit-count, 0),
		ResetAt:   resetAt,
	}
	if !allowed {
		result.RetryAfter = models.RetryAfterSeconds(resetAt.Sub(now))
	}
	return result, nil
}
