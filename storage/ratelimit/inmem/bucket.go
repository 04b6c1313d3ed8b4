package inmemrl

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/trezcool/masomo-bff/core/ratelimit"
)

type bucketEntry struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// BucketStore is a token bucket per key: Max tokens, refilled at Max per Window.
// It smooths the burst a fixed window allows across a window boundary.
type BucketStore struct {
	mu      sync.Mutex
	entries map[string]*bucketEntry
	idleTTL time.Duration
	now     ratelimit.Clock
}

var (
	_ ratelimit.Store    = (*BucketStore)(nil)
	_ ratelimit.Resetter = (*BucketStore)(nil)
)

type BucketOption func(*BucketStore)

func WithIdleTTL(d time.Duration) BucketOption {
	return func(s *BucketStore) { s.idleTTL = d }
}

func WithBucketClock(now ratelimit.Clock) BucketOption {
	return func(s *BucketStore) { s.now = now }
}

func NewBucketStore(opts ...BucketOption) *BucketStore {
	s := &BucketStore{
		entries: make(map[string]*bucketEntry),
		idleTTL: 15 * time.Minute,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *BucketStore) Take(_ context.Context, key string, p ratelimit.Policy) (ratelimit.Decision, error) {
	now := s.now()
	every := rate.Every(p.Window / time.Duration(p.Max))

	s.mu.Lock()
	defer s.mu.Unlock()

	ent, ok := s.entries[key]
	if !ok {
		ent = &bucketEntry{lim: rate.NewLimiter(every, p.Max)}
		s.entries[key] = ent
	}
	ent.lastSeen = now

	r := ent.lim.ReserveN(now, 1)
	if !r.OK() {
		return ratelimit.Reject(p, now.Add(p.Window), now), nil
	}
	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)
		return ratelimit.Reject(p, now.Add(delay), now), nil
	}

	tokens := ent.lim.TokensAt(now)
	resetAt := now
	if missing := float64(p.Max) - tokens; missing > 0 {
		resetAt = now.Add(time.Duration(missing / float64(every) * float64(time.Second)))
	}
	return ratelimit.Admit(p, p.Max-int(tokens), resetAt), nil
}

func (s *BucketStore) Reset(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
	return nil
}

// Cleanup drops buckets idle for longer than the idle TTL.
func (s *BucketStore) Cleanup() {
	cutoff := s.now().Add(-s.idleTTL)

	s.mu.Lock()
	defer s.mu.Unlock()

	for k, ent := range s.entries {
		if ent.lastSeen.Before(cutoff) {
			delete(s.entries, k)
		}
	}
}

// StartJanitor runs Cleanup every interval until ctx is done.
func (s *BucketStore) StartJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	t := time.NewTicker(interval)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				s.Cleanup()
			}
		}
	}()
}
