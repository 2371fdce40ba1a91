package cache

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/justinzzc/vision-box/internal/ports"
	"github.com/redis/go-redis/v9"
)

// RedisRateLimiter enforces a per-service sliding one-minute window with a
// sorted set of request timestamps. All tokens of a service share the same
// window; state lives only in Redis and may reset on flush.
type RedisRateLimiter struct {
	client *redis.Client
	nowFn  func() time.Time
}

func NewRedisRateLimiter(client *redis.Client) *RedisRateLimiter {
	return &RedisRateLimiter{
		client: client,
		nowFn:  func() time.Time { return time.Now().UTC() },
	}
}

// Allow admits or rejects one call. Prune, insert, and count run in a single
// MULTI/EXEC so every caller counts its own entry: concurrent callers cannot
// all read a pre-admission count and overshoot the limit. A rejected caller
// withdraws its entry again.
func (l *RedisRateLimiter) Allow(ctx context.Context, serviceID string, limitPerMinute int) (ports.RateDecision, error) {
	now := l.nowFn()
	windowStart := now.Add(-time.Minute)
	key := "visionbox:ratelimit:" + serviceID
	member := strconv.FormatInt(now.UnixNano(), 10) + ":" + uuid.NewString()

	var countCmd *redis.IntCmd
	var oldestCmd *redis.ZSliceCmd
	_, err := l.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.ZRemRangeByScore(ctx, key, "0", strconv.FormatInt(windowStart.UnixNano(), 10))
		p.ZAdd(ctx, key, redis.Z{Score: float64(now.UnixNano()), Member: member})
		countCmd = p.ZCard(ctx, key)
		oldestCmd = p.ZRangeWithScores(ctx, key, 0, 0)
		p.Expire(ctx, key, 2*time.Minute)
		return nil
	})
	if err != nil {
		return ports.RateDecision{}, err
	}

	used := int(countCmd.Val()) // includes this call's entry
	decision := ports.RateDecision{Limit: limitPerMinute}
	if used > limitPerMinute {
		// Withdraw the rejected entry. If the removal fails it ages out of
		// the window on its own, erring strict rather than permissive.
		_ = l.client.ZRem(ctx, key, member).Err()
		decision.Remaining = 0
		decision.ResetSeconds = resetAfter(now, oldestCmd.Val())
		return decision, nil
	}
	decision.Allowed = true
	decision.Remaining = limitPerMinute - used
	return decision, nil
}

// resetAfter derives the seconds until the oldest entry slides out of the
// window, which is when one slot frees up.
func resetAfter(now time.Time, oldest []redis.Z) int {
	if len(oldest) == 0 {
		return 60
	}
	oldestAt := time.Unix(0, int64(oldest[0].Score))
	secs := int(oldestAt.Add(time.Minute).Sub(now) / time.Second)
	if secs < 1 {
		secs = 1
	}
	if secs > 60 {
		secs = 60
	}
	return secs
}
