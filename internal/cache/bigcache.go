package cache

import (
	"context"
	"errors"
	"time"

	"github.com/allegro/bigcache/v3"
)

// BigCacheStore is the in-process backend, suitable for a single instance.
// BigCache evicts on a shared life window, so the per-entry ttl passed to Set
// is capped by the window the store was built with.
type BigCacheStore struct {
	cache *bigcache.BigCache
}

// NewBigCacheStore builds an in-process store whose entries live at most
// window.
func NewBigCacheStore(window time.Duration) (*BigCacheStore, error) {
	if window <= 0 {
		window = 10 * time.Minute
	}
	c, err := bigcache.New(context.Background(), bigcache.DefaultConfig(window))
	if err != nil {
		return nil, err
	}
	return &BigCacheStore{cache: c}, nil
}

func (s *BigCacheStore) Get(key string) ([]byte, error) {
	buf, err := s.cache.Get(key)
	if err != nil {
		if errors.Is(err, bigcache.ErrEntryNotFound) {
			return nil, ErrMiss
		}
		return nil, err
	}
	return buf, nil
}

func (s *BigCacheStore) Set(key string, value []byte, _ time.Duration) error {
	return s.cache.Set(key, value)
}

// Close releases the backing shards.
func (s *BigCacheStore) Close() error {
	return s.cache.Close()
}
