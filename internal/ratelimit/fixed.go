package ratelimit

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	limiter "github.com/ulule/limiter/v3"
	limiterredis "github.com/ulule/limiter/v3/drivers/store/redis"
)

// FixedLimiter implements a fixed window limiter on top of ulule/limiter's Redis store.
type FixedLimiter struct {
	store limiter.Store
}

// NewFixedLimiter builds a fixed window limiter sharing client with the rest of the service.
func NewFixedLimiter(client redis.UniversalClient, prefix string) (*FixedLimiter, error) {
	store, err := limiterredis.NewStoreWithOptions(client, limiter.StoreOptions{Prefix: prefix})
	if err != nil {
		return nil, err
	}
	return &FixedLimiter{store: store}, nil
}

// NewFixedLimiterWithStore builds a fixed window limiter on an existing store.
func NewFixedLimiterWithStore(store limiter.Store) *FixedLimiter {
	return &FixedLimiter{store: store}
}

// Allow implements Allower.
func (l *FixedLimiter) Allow(ctx context.Context, key string, window time.Duration, max int) (bool, int, time.Time, error) {
	if l == nil || l.store == nil || max <= 0 || window <= 0 {
		return true, max, time.Now().Add(window), nil
	}
	lim := limiter.New(l.store, limiter.Rate{Period: window, Limit: int64(max)})
	res, err := lim.Get(ctx, key)
	if err != nil {
		return false, 0, time.Now().Add(window), err
	}
	return !res.Reached, int(res.Remaining), time.Unix(res.Reset, 0), nil
}
