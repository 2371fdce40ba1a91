package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestLimiter(t *testing.T) *RedisRateLimiter {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisRateLimiter(client)
}

func TestRedisRateLimiterSlidingWindow(t *testing.T) {
	limiter := newTestLimiter(t)
	base := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	limiter.nowFn = func() time.Time { return base }
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		decision, err := limiter.Allow(ctx, "svc-1", 3)
		if err != nil {
			t.Fatalf("allow %d: %v", i, err)
		}
		if !decision.Allowed {
			t.Fatalf("call %d must be admitted", i)
		}
		if decision.Remaining != 3-i-1 {
			t.Fatalf("call %d: expected remaining %d, got %d", i, 3-i-1, decision.Remaining)
		}
	}

	decision, err := limiter.Allow(ctx, "svc-1", 3)
	if err != nil {
		t.Fatalf("allow over limit: %v", err)
	}
	if decision.Allowed || decision.Remaining != 0 {
		t.Fatalf("expected rejection with zero remaining, got %+v", decision)
	}
	if decision.ResetSeconds != 60 {
		t.Fatalf("expected reset in 60s, got %d", decision.ResetSeconds)
	}

	// The rejected attempt must not linger in the window.
	count, err := limiter.client.ZCard(ctx, "visionbox:ratelimit:svc-1").Result()
	if err != nil {
		t.Fatalf("zcard: %v", err)
	}
	if count != 3 {
		t.Fatalf("expected 3 window entries after rejection, got %d", count)
	}

	limiter.nowFn = func() time.Time { return base.Add(61 * time.Second) }
	decision, err = limiter.Allow(ctx, "svc-1", 3)
	if err != nil {
		t.Fatalf("allow after slide: %v", err)
	}
	if !decision.Allowed || decision.Remaining != 2 {
		t.Fatalf("expected admission with remaining 2 after the window slid, got %+v", decision)
	}
}

func TestRedisRateLimiterConcurrentAdmits(t *testing.T) {
	limiter := newTestLimiter(t)
	now := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	limiter.nowFn = func() time.Time { return now }
	ctx := context.Background()

	const limit = 8
	const callers = 32
	var admitted int32
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			decision, err := limiter.Allow(ctx, "svc-1", limit)
			if err != nil {
				t.Errorf("allow: %v", err)
				return
			}
			if decision.Allowed {
				mu.Lock()
				admitted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if admitted != limit {
		t.Fatalf("expected exactly %d admissions, got %d", limit, admitted)
	}
	count, err := limiter.client.ZCard(ctx, "visionbox:ratelimit:svc-1").Result()
	if err != nil {
		t.Fatalf("zcard: %v", err)
	}
	if count != limit {
		t.Fatalf("expected %d window entries, got %d", limit, count)
	}
}
