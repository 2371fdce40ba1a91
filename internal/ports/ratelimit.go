package ports

import "context"

// RateDecision carries what the gateway needs for X-RateLimit headers and
// the Retry-After hint.
type RateDecision struct {
	Allowed      bool
	Limit        int
	Remaining    int
	ResetSeconds int
}

// RateLimiter enforces a per-service sliding window shared by all of the
// service's tokens. State is an availability control, not a ledger; it does
// not have to survive restarts.
type RateLimiter interface {
	Allow(ctx context.Context, serviceID string, limitPerMinute int) (RateDecision, error)
}
