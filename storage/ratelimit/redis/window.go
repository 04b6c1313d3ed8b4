// Package redisrl shares fixed rate windows between gateway instances through Redis.
package redisrl

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/trezcool/masomo-bff/core/ratelimit"
)

// takeScript counts one hit unless the window is exhausted. Returns {count, pttl, allowed}.
var takeScript = redis.NewScript(`
local current = tonumber(redis.call('GET', KEYS[1]) or '0')
local max = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local allowed = 0
if current < max then
  current = redis.call('INCR', KEYS[1])
  allowed = 1
end
local ttl = redis.call('PTTL', KEYS[1])
if ttl < 0 then
  redis.call('PEXPIRE', KEYS[1], window)
  ttl = window
end
return {current, ttl, allowed}
`)

// WindowStore is a fixed-window counter stored as one expiring Redis key per caller.
type WindowStore struct {
	rdb    *redis.Client
	prefix string
	now    ratelimit.Clock
}

var (
	_ ratelimit.Store    = (*WindowStore)(nil)
	_ ratelimit.Resetter = (*WindowStore)(nil)
)

type Option func(*WindowStore)

func WithPrefix(prefix string) Option {
	return func(s *WindowStore) { s.prefix = prefix }
}

func WithClock(now ratelimit.Clock) Option {
	return func(s *WindowStore) { s.now = now }
}

func NewWindowStore(rdb *redis.Client, opts ...Option) *WindowStore {
	s := &WindowStore{
		rdb:    rdb,
		prefix: "bff:rl:",
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open connects to the Redis server at url (redis://[user:pass@]host:port/db).
func Open(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, errors.Wrap(err, "parsing redis url")
	}
	rdb := redis.NewClient(opts)
	if err = rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, errors.Wrap(err, "pinging redis")
	}
	return rdb, nil
}

func (s *WindowStore) key(k string) string {
	if strings.HasPrefix(k, s.prefix) {
		return k
	}
	return s.prefix + k
}

func (s *WindowStore) Take(ctx context.Context, key string, p ratelimit.Policy) (ratelimit.Decision, error) {
	now := s.now()
	res, err := takeScript.Run(ctx, s.rdb, []string{s.key(key)},
		p.Max, strconv.FormatInt(p.Window.Milliseconds(), 10)).Int64Slice()
	if err != nil {
		return ratelimit.Decision{}, errors.Wrapf(err, "counting %q", key)
	}
	if len(res) != 3 {
		return ratelimit.Decision{}, errors.Errorf("unexpected script reply %v", res)
	}

	count, ttl, allowed := int(res[0]), time.Duration(res[1])*time.Millisecond, res[2] == 1
	resetAt := now.Add(ttl)
	if !allowed {
		return ratelimit.Reject(p, resetAt, now), nil
	}
	return ratelimit.Admit(p, count, resetAt), nil
}

func (s *WindowStore) Reset(ctx context.Context, key string) error {
	return errors.Wrapf(s.rdb.Del(ctx, s.key(key)).Err(), "resetting %q", key)
}
