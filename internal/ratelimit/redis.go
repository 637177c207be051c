package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// slidingWindow trims the key's sorted set to the window, then adds the hit only if there is
// room. Scores are unix milliseconds.
var slidingWindow = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])

redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)
if redis.call('ZCARD', key) >= limit then
  return 0
end
redis.call('ZADD', key, now, ARGV[4])
redis.call('PEXPIRE', key, window)
return 1
`)

// Redis shares the sliding window across every instance of the upload endpoint.
type Redis struct {
	client redis.UniversalClient
	prefix string
	limit  int
	window time.Duration
	now    func() time.Time
}

func NewRedis(client redis.UniversalClient, prefix string, limit int, window time.Duration) *Redis {
	if prefix == "" {
		prefix = "ratelimit:uploads:"
	}
	return &Redis{client: client, prefix: prefix, limit: limit, window: window, now: time.Now}
}

// NewRedisClient connects to a standalone or cluster Redis and checks it answers.
func NewRedisClient(ctx context.Context, addr, username, password string) (redis.UniversalClient, error) {
	client := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:        []string{addr},
		Username:     username,
		Password:     password,
		ReadTimeout:  time.Second * 5,
		WriteTimeout: time.Second * 5,
		PoolSize:     10,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to reach redis at %s: %w", addr, err)
	}
	return client, nil
}

func (r *Redis) Allow(ctx context.Context, key string) (bool, error) {
	res, err := slidingWindow.Run(ctx, r.client, []string{r.prefix + key},
		r.now().UnixMilli(), r.window.Milliseconds(), r.limit, uuid.NewString()).Int()
	if err != nil {
		return false, fmt.Errorf("rate limit script failed: %w", err)
	}
	return res == 1, nil
}
