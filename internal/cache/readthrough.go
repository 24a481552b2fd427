package cache

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/noah-isme/toko-priceguard/internal/obs"
)

// entry also records misses so absent records do not reach the store on every request.
type entry[T any] struct {
	Found bool `json:"found"`
	Value T    `json:"value"`
}

// ReadThrough is a Redis-backed read-through cache for one store. Redis failures degrade to the
// store and are logged; only the store's own errors are returned. Results matching notFound are
// cached as misses.
type ReadThrough[T any] struct {
	Store    string
	Cache    *Cache
	NotFound error
	Logger   zerolog.Logger
}

// Get returns the cached value for key or loads and caches it.
func (r ReadThrough[T]) Get(ctx context.Context, key string, load func(context.Context) (T, error)) (T, error) {
	var zero T
	var e entry[T]
	ok, err := r.Cache.GetJSON(ctx, key, &e)
	if err != nil {
		r.Logger.Warn().Err(err).Str("store", r.Store).Str("key", key).Msg("cache read failed")
	}
	obs.ObserveCacheLookup(r.Store, ok)
	if ok {
		if !e.Found {
			return zero, r.NotFound
		}
		return e.Value, nil
	}

	v, err := load(ctx)
	switch {
	case err == nil:
		e = entry[T]{Found: true, Value: v}
	case r.NotFound != nil && errors.Is(err, r.NotFound):
		e = entry[T]{}
	default:
		return zero, err
	}
	if err := r.Cache.SetJSON(ctx, key, e); err != nil {
		r.Logger.Warn().Err(err).Str("store", r.Store).Str("key", key).Msg("cache write failed")
	}
	if !e.Found {
		return zero, r.NotFound
	}
	return v, nil
}
