// Package ratelimit keeps daily delivery quotas and per-key cooldowns.
// Daily periods start at local midnight in the configured timezone, so the
// counters roll over on the calendar day regardless of process restarts.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"safezone-alert-service/internal/utils"
)

// Limiter is shared by every dispatcher instance.
type Limiter interface {
	// Allow consumes one unit of key's quota for the current day and reports
	// whether the unit was within limit.
	Allow(ctx context.Context, key string, limit int) (bool, error)
	// Cooldown reports true and starts a cooldown of ttl when key is not
	// already cooling down.
	Cooldown(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

type period struct {
	loc *time.Location
	now func() time.Time
}

// quotaKey returns the counter key for the current period and when it can expire.
func (p period) quotaKey(prefix, key string) (string, time.Time) {
	start := utils.StartOfDay(p.now(), p.loc)
	expires := start.AddDate(0, 0, 1).Add(time.Hour)
	return fmt.Sprintf("%s:quota:%s:%s", prefix, key, start.Format("2006-01-02")), expires
}

func cooldownKey(prefix, key string) string {
	return fmt.Sprintf("%s:cooldown:%s", prefix, key)
}
