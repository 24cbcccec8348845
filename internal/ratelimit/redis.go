package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultPrefix = "safezone"

type RedisLimiter struct {
	client *redis.Client
	prefix string
	period
}

func NewRedisLimiter(client *redis.Client, loc *time.Location) *RedisLimiter {
	if loc == nil {
		loc = time.UTC
	}
	return &RedisLimiter{client: client, prefix: defaultPrefix, period: period{loc: loc, now: time.Now}}
}

func (r *RedisLimiter) Allow(ctx context.Context, key string, limit int) (bool, error) {
	if limit <= 0 {
		return false, nil
	}
	k, expires := r.quotaKey(r.prefix, key)

	pipe := r.client.TxPipeline()
	incr := pipe.Incr(ctx, k)
	pipe.ExpireAt(ctx, k, expires)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("failed to increment quota %s: %w", k, err)
	}
	return incr.Val() <= int64(limit), nil
}

func (r *RedisLimiter) Cooldown(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := r.client.SetNX(ctx, cooldownKey(r.prefix, key), time.Now().Unix(), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to set cooldown %s: %w", key, err)
	}
	return ok, nil
}
