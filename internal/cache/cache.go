// Package cache implements the pull-through (cache-aside) read path used to
// protect expensive queries. The cache is never the source of truth: every
// entry point returns the factory's result even when the backend is down.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"gatehouse.org/internal/obs"
)

// ErrMiss is returned by a Store when the key has no live entry.
var ErrMiss = errors.New("cache: miss")

// Store is the pluggable key-value backend. Entries may vanish at any time;
// callers must treat every read as advisory.
type Store interface {
	Get(key string) ([]byte, error)
	Set(key string, value []byte, ttl time.Duration) error
}

// GetOrSet returns the cached value for key if present, otherwise invokes
// factory, stores its result fire-and-forget and returns it. Backend faults
// on either side are counted, logged and swallowed; only a factory error is
// ever propagated.
func GetOrSet[T any](ctx context.Context, store Store, key string, ttl time.Duration, factory func(context.Context) (T, error)) (T, error) {
	var zero T
	if store != nil {
		raw, err := store.Get(key)
		if err == nil {
			var cached T
			if err := json.Unmarshal(raw, &cached); err == nil {
				return cached, nil
			}
			// Undecodable entry: treat as a miss and recompute.
			obs.CountCacheFault("decode")
			obs.Logger(ctx).Warn().Str("key", key).Msg("cache entry undecodable, recomputing")
		} else if !errors.Is(err, ErrMiss) {
			obs.CountCacheFault("get")
			obs.Logger(ctx).Warn().Err(err).Str("key", key).Msg("cache read fault")
		}
	}

	value, err := factory(ctx)
	if err != nil {
		return zero, err
	}

	if store != nil {
		if raw, err := json.Marshal(value); err == nil {
			if err := store.Set(key, raw, ttl); err != nil {
				obs.CountCacheFault("set")
				obs.Logger(ctx).Warn().Err(err).Str("key", key).Msg("cache write fault")
			}
		}
	}
	return value, nil
}
