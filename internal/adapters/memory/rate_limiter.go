package memory

import (
	"context"
	"sync"
	"time"

	"github.com/justinzzc/vision-box/internal/ports"
)

// RateLimiter keeps per-service sliding windows in process memory. The
// clock is injectable so tests can walk time forward deterministically.
type RateLimiter struct {
	mu      sync.Mutex
	windows map[string][]time.Time
	NowFn   func() time.Time
}

func NewRateLimiter() *RateLimiter {
	return &RateLimiter{
		windows: make(map[string][]time.Time),
		NowFn:   func() time.Time { return time.Now().UTC() },
	}
}

func (l *RateLimiter) Allow(_ context.Context, serviceID string, limitPerMinute int) (ports.RateDecision, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.NowFn()
	windowStart := now.Add(-time.Minute)

	window := l.windows[serviceID]
	kept := window[:0]
	for _, at := range window {
		if at.After(windowStart) {
			kept = append(kept, at)
		}
	}

	decision := ports.RateDecision{Limit: limitPerMinute}
	if len(kept) >= limitPerMinute {
		l.windows[serviceID] = kept
		decision.Allowed = false
		decision.Remaining = 0
		decision.ResetSeconds = resetSeconds(now, kept)
		return decision, nil
	}

	kept = append(kept, now)
	l.windows[serviceID] = kept
	decision.Allowed = true
	decision.Remaining = limitPerMinute - len(kept)
	return decision, nil
}

func resetSeconds(now time.Time, window []time.Time) int {
	if len(window) == 0 {
		return 60
	}
	secs := int(window[0].Add(time.Minute).Sub(now) / time.Second)
	if secs < 1 {
		secs = 1
	}
	if secs > 60 {
		secs = 60
	}
	return secs
}
