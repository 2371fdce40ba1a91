package memory

import (
	"context"
	"testing"
	"time"
)

func TestRateLimiterSlidingWindow(t *testing.T) {
	limiter := NewRateLimiter()
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	limiter.NowFn = func() time.Time { return now }
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		decision, err := limiter.Allow(ctx, "svc-1", 3)
		if err != nil {
			t.Fatalf("allow %d: %v", i, err)
		}
		if !decision.Allowed {
			t.Fatalf("call %d should be admitted", i)
		}
		if decision.Remaining != 3-(i+1) {
			t.Fatalf("call %d: remaining = %d, want %d", i, decision.Remaining, 3-(i+1))
		}
	}

	decision, err := limiter.Allow(ctx, "svc-1", 3)
	if err != nil {
		t.Fatalf("allow over limit: %v", err)
	}
	if decision.Allowed {
		t.Fatalf("fourth call within the window must be rejected")
	}
	if decision.ResetSeconds != 60 {
		t.Fatalf("expected full window reset, got %d", decision.ResetSeconds)
	}

	// 30 seconds later the oldest slot is still inside the window.
	now = now.Add(30 * time.Second)
	decision, _ = limiter.Allow(ctx, "svc-1", 3)
	if decision.Allowed {
		t.Fatalf("call at t+30s must still be rejected")
	}
	if decision.ResetSeconds != 30 {
		t.Fatalf("expected 30s until reset, got %d", decision.ResetSeconds)
	}

	// Past the window the slots expire and calls flow again.
	now = now.Add(31 * time.Second)
	decision, _ = limiter.Allow(ctx, "svc-1", 3)
	if !decision.Allowed {
		t.Fatalf("call after the window slides must be admitted")
	}
}

func TestRateLimiterIsolatesServices(t *testing.T) {
	limiter := NewRateLimiter()
	ctx := context.Background()

	if decision, _ := limiter.Allow(ctx, "svc-1", 1); !decision.Allowed {
		t.Fatalf("first call on svc-1 must pass")
	}
	if decision, _ := limiter.Allow(ctx, "svc-1", 1); decision.Allowed {
		t.Fatalf("second call on svc-1 must be rejected")
	}
	if decision, _ := limiter.Allow(ctx, "svc-2", 1); !decision.Allowed {
		t.Fatalf("svc-2 must not share svc-1's window")
	}
}
