// Package visits holds the visit-domain types this core touches. Visit CRUD
// itself lives elsewhere; only the aggregate statistics read path matters
// here because it is expensive enough to sit behind the cache.
package visits

import (
	"context"
	"errors"
	"time"

	"gatehouse.org/internal/cache"
)

// Stats is the visit aggregate served to dashboards.
type Stats struct {
	TotalVisits    int64 `json:"total_visits"`
	ActiveVisits   int64 `json:"active_visits"`
	ClosedVisits   int64 `json:"closed_visits"`
	UniqueVisitors int64 `json:"unique_visitors"`
}

// Source computes the true aggregate, typically with a table scan.
type Source interface {
	VisitStats(ctx context.Context) (Stats, error)
}

const statsCacheKey = "stats:visits"

// StatsService serves Stats through the pull-through cache. A broken cache
// degrades to computing the aggregate on every call.
type StatsService struct {
	source Source
	store  cache.Store
	ttl    time.Duration
}

// NewStatsService wires the source behind the cache. The store may be nil,
// which disables caching entirely.
func NewStatsService(source Source, store cache.Store, ttl time.Duration) (*StatsService, error) {
	if source == nil {
		return nil, errors.New("visits: stats source is required")
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &StatsService{source: source, store: store, ttl: ttl}, nil
}

// Stats returns the aggregate, cached for the configured ttl.
func (s *StatsService) Stats(ctx context.Context) (Stats, error) {
	return cache.GetOrSet(ctx, s.store, statsCacheKey, s.ttl, s.source.VisitStats)
}
