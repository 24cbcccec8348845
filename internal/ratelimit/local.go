package ratelimit

import (
	"context"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// LocalLimiter keeps counters in process memory. Counters do not survive a
// restart and are not shared between instances.
type LocalLimiter struct {
	mu    sync.Mutex
	cache *gocache.Cache
	period
}

func NewLocalLimiter(loc *time.Location) *LocalLimiter {
	if loc == nil {
		loc = time.UTC
	}
	return &LocalLimiter{
		cache:  gocache.New(time.Hour, 10*time.Minute),
		period: period{loc: loc, now: time.Now},
	}
}

func (l *LocalLimiter) Allow(ctx context.Context, key string, limit int) (bool, error) {
	if limit <= 0 {
		return false, nil
	}
	k, expires := l.quotaKey(defaultPrefix, key)

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, found := l.cache.Get(k); !found {
		l.cache.Set(k, 0, time.Until(expires))
	}
	n, err := l.cache.IncrementInt(k, 1)
	if err != nil {
		return false, err
	}
	return n <= limit, nil
}

func (l *LocalLimiter) Cooldown(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if err := l.cache.Add(cooldownKey(defaultPrefix, key), struct{}{}, ttl); err != nil {
		return false, nil
	}
	return true, nil
}
