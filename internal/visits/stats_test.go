package visits

import (
	"context"
	"errors"
	"testing"
	"time"

	"gatehouse.org/internal/cache"
)

type countingSource struct {
	calls int
	err   error
}

func (s *countingSource) VisitStats(context.Context) (Stats, error) {
	s.calls++
	if s.err != nil {
		return Stats{}, s.err
	}
	return Stats{TotalVisits: 10, ActiveVisits: 3, ClosedVisits: 7, UniqueVisitors: 5}, nil
}

func TestStatsServedFromCache(t *testing.T) {
	source := &countingSource{}
	svc, err := NewStatsService(source, cache.NewMemoryStore(), time.Minute)
	if err != nil {
		t.Fatalf("NewStatsService: %v", err)
	}

	first, err := svc.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	second, err := svc.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if first != second {
		t.Fatalf("cached value diverged: %+v vs %+v", first, second)
	}
	if source.calls != 1 {
		t.Fatalf("expected a single source scan, got %d", source.calls)
	}
}

func TestStatsWithoutCache(t *testing.T) {
	source := &countingSource{}
	svc, err := NewStatsService(source, nil, time.Minute)
	if err != nil {
		t.Fatalf("NewStatsService: %v", err)
	}

	if _, err := svc.Stats(context.Background()); err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if _, err := svc.Stats(context.Background()); err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if source.calls != 2 {
		t.Fatalf("expected source on every call without a cache, got %d", source.calls)
	}
}

func TestStatsSourceErrorPropagates(t *testing.T) {
	boom := errors.New("scan failed")
	svc, err := NewStatsService(&countingSource{err: boom}, cache.NewMemoryStore(), time.Minute)
	if err != nil {
		t.Fatalf("NewStatsService: %v", err)
	}
	if _, err := svc.Stats(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("expected source error, got %v", err)
	}
}

func TestStatsServiceRequiresSource(t *testing.T) {
	if _, err := NewStatsService(nil, nil, time.Minute); err == nil {
		t.Fatal("expected error for nil source")
	}
}
