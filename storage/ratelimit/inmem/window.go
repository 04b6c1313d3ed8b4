// Package inmemrl holds process-local rate limit stores.
package inmemrl

import (
	"context"
	"sync"
	"time"

	"github.com/trezcool/masomo-bff/core/ratelimit"
)

type windowRecord struct {
	count   int
	resetAt time.Time
}

// WindowStore is a fixed-window counter per key.
// Records are never swept: a stale key is overwritten on its next window rollover.
type WindowStore struct {
	mu      sync.Mutex
	records map[string]*windowRecord
	now     ratelimit.Clock
}

var (
	_ ratelimit.Store    = (*WindowStore)(nil)
	_ ratelimit.Resetter = (*WindowStore)(nil)
)

type WindowOption func(*WindowStore)

func WithClock(now ratelimit.Clock) WindowOption {
	return func(s *WindowStore) { s.now = now }
}

func NewWindowStore(opts ...WindowOption) *WindowStore {
	s := &WindowStore{
		records: make(map[string]*windowRecord),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *WindowStore) Take(_ context.Context, key string, p ratelimit.Policy) (ratelimit.Decision, error) {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[key]
	if !ok || now.After(rec.resetAt) {
		rec = &windowRecord{resetAt: now.Add(p.Window)}
		s.records[key] = rec
	}
	if rec.count >= p.Max {
		return ratelimit.Reject(p, rec.resetAt, now), nil
	}
	rec.count++
	return ratelimit.Admit(p, rec.count, rec.resetAt), nil
}

func (s *WindowStore) Reset(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.records, key)
	s.mu.Unlock()
	return nil
}

// Len is the number of tracked keys.
func (s *WindowStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}
