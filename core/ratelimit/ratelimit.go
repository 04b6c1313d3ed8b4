// Package ratelimit defines the caller throttling contract shared by the stores.
package ratelimit

import (
	"context"
	"strconv"
	"time"
)

// Policy is the allowance per key: at most Max requests per Window.
type Policy struct {
	Max    int
	Window time.Duration
}

// Decision is the outcome of counting one request.
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetAt    time.Time
	RetryAfter time.Duration // zero when allowed
}

// Store counts requests per key. Implementations must be safe for concurrent use.
type Store interface {
	Take(ctx context.Context, key string, p Policy) (Decision, error)
}

// Resetter is implemented by stores whose windows can be cleared by an operator.
type Resetter interface {
	Reset(ctx context.Context, key string) error
}

// Clock is injected into stores so tests can move time.
type Clock func() time.Time

// UserKey is the key of an authenticated caller.
func UserKey(id int64) string {
	return "user:" + strconv.FormatInt(id, 10)
}

// Reject builds a denial for a window resetting at resetAt.
func Reject(p Policy, resetAt, now time.Time) Decision {
	retry := resetAt.Sub(now)
	if retry < 0 {
		retry = 0
	}
	return Decision{Limit: p.Max, ResetAt: resetAt, RetryAfter: retry}
}

// Admit builds an admission after count requests in the window.
func Admit(p Policy, count int, resetAt time.Time) Decision {
	remaining := p.Max - count
	if remaining < 0 {
		remaining = 0
	}
	return Decision{Allowed: true, Limit: p.Max, Remaining: remaining, ResetAt: resetAt}
}
