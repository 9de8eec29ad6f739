package ratelimit

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

type redisLimiter struct {
	client  *redis.Client
	buckets map[Bucket]BucketConfig
}

// NewRedisLimiter builds a fixed-window counter limiter on Redis. Counters
// are shared across instances, so the allowance holds under horizontal
// scaling.
func NewRedisLimiter(url string, buckets map[Bucket]BucketConfig) (Limiter, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	if buckets == nil {
		buckets = DefaultBuckets()
	}

	return &redisLimiter{client: client, buckets: buckets}, nil
}

func (l *redisLimiter) CheckLimit(ctx context.Context, actorKey string, bucket Bucket) (Decision, error) {
	cfg, ok := l.buckets[bucket]
	if !ok {
		// Unknown buckets are not limited.
		return Decision{Allowed: true}, nil
	}

	key := fmt.Sprintf("ratelimit:%s:%s", bucket, actorKey)

	count, err := l.client.Incr(ctx, key).Result()
	if err != nil {
		return Decision{}, fmt.Errorf("failed to increment rate limit counter: %w", err)
	}

	if count == 1 {
		if err := l.client.Expire(ctx, key, cfg.Window).Err(); err != nil {
			return Decision{}, fmt.Errorf("failed to set rate limit expiry: %w", err)
		}
	}

	if count > int64(cfg.Limit) {
		ttl, err := l.client.TTL(ctx, key).Result()
		if err != nil || ttl < 0 {
			ttl = cfg.Window
		}
		return Decision{Allowed: false, RetryAfter: ttl}, nil
	}

	return Decision{Allowed: true}, nil
}
