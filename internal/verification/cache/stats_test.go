package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/DTBbuilds/SmartDuka-sub007/internal/verification/repo"
)

type countingSource struct {
	calls int
	stats repo.Stats
}

func (s *countingSource) Stats(context.Context, time.Time) (repo.Stats, error) {
	s.calls++
	return s.stats, nil
}

func TestStatsCacheReadThroughAndInvalidate(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	src := &countingSource{stats: repo.Stats{
		ByStatus:        map[string]repo.StatusTotals{"paid": {Count: 3, Amount: decimal.NewFromInt(7500)}},
		PendingUpgrades: 2,
	}}
	c := NewStatsCache(rdb, src, time.Minute, nil)
	ctx := context.Background()
	since := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)

	first, err := c.Stats(ctx, since)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	second, err := c.Stats(ctx, since)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if src.calls != 1 {
		t.Fatalf("source called %d times, want 1", src.calls)
	}
	if second.PendingUpgrades != 2 || !second.ByStatus["paid"].Amount.Equal(first.ByStatus["paid"].Amount) {
		t.Fatalf("cached stats differ: %+v vs %+v", second, first)
	}

	if err := c.Emit(ctx, "payment.verified", nil); err != nil {
		t.Fatalf("Emit: %v", err)
	}
	if _, err := c.Stats(ctx, since); err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if src.calls != 2 {
		t.Fatalf("invalidate did not force a reload, calls=%d", src.calls)
	}

	mr.FastForward(2 * time.Minute)
	if _, err := c.Stats(ctx, since); err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if src.calls != 3 {
		t.Fatalf("expired entry served, calls=%d", src.calls)
	}
}

func TestStatsCacheWithoutRedis(t *testing.T) {
	src := &countingSource{}
	c := NewStatsCache(nil, src, 0, nil)
	for i := 0; i < 2; i++ {
		if _, err := c.Stats(context.Background(), time.Now()); err != nil {
			t.Fatalf("Stats: %v", err)
		}
	}
	if src.calls != 2 {
		t.Fatalf("calls = %d, want 2", src.calls)
	}
}
