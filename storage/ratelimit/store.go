// Package rlstore opens the rate limit store a configuration asks for.
package rlstore

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/masomo-bff/core"
	"github.com/trezcool/masomo-bff/core/ratelimit"
	inmemrl "github.com/trezcool/masomo-bff/storage/ratelimit/inmem"
	redisrl "github.com/trezcool/masomo-bff/storage/ratelimit/redis"
)

const janitorInterval = time.Minute

// Store is a rate limit store whose windows can be cleared.
type Store interface {
	ratelimit.Store
	ratelimit.Resetter
}

// Kind names the store Open picked, for logs.
func Kind(conf core.RateLimitConfig) string {
	if conf.RedisURL != "" {
		return "redis " + conf.Strategy
	}
	return "in-memory " + conf.Strategy
}

// Open returns the configured store and the func releasing it.
// A REDIS_URL selects the shared fixed window; token buckets only exist in memory.
// The bucket janitor runs until ctx is done.
func Open(ctx context.Context, conf core.RateLimitConfig) (Store, func() error, error) {
	noop := func() error { return nil }

	switch {
	case conf.RedisURL != "":
		if conf.Strategy == core.RateLimitTokenBucket {
			return nil, nil, errors.Errorf("rate limit strategy %q is not supported with REDIS_URL", conf.Strategy)
		}
		rdb, err := redisrl.Open(ctx, conf.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		return redisrl.NewWindowStore(rdb, redisrl.WithPrefix(conf.RedisPrefix)), rdb.Close, nil

	case conf.Strategy == core.RateLimitTokenBucket:
		store := inmemrl.NewBucketStore()
		store.StartJanitor(ctx, janitorInterval)
		return store, noop, nil

	default:
		return inmemrl.NewWindowStore(), noop, nil
	}
}
