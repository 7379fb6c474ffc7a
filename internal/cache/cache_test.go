package cache_test

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/levinOo/helpdesk-telemetry/internal/cache"
	"github.com/levinOo/helpdesk-telemetry/internal/models"
	"go.uber.org/zap"
)

type fakeClock struct {
	t time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.t = c.t.Add(d)
}

func newTestCache(clock *fakeClock, opts ...cache.Option) *cache.Cache[string] {
	opts = append(opts, cache.WithClock(clock.Now))
	return cache.New[string]("newTickets", nil, zap.NewNop().Sugar(), opts...)
}

func TestSetGet(t *testing.T) {
	c := newTestCache(newFakeClock())

	c.Set("tickets", "INC-00042", models.PriorityHigh)

	got, ok := c.Get("tickets")
	if !ok {
		t.Fatal("expected hit for live entry")
	}
	if got != "INC-00042" {
		t.Errorf("expected INC-00042, got: %s", got)
	}
}

func TestMissUnknownKey(t *testing.T) {
	c := newTestCache(newFakeClock())

	if _, ok := c.Get("unknown"); ok {
		t.Error("expected miss for unknown key")
	}

	stats := c.Stats()
	if stats.Misses != 1 {
		t.Errorf("expected 1 miss, got: %d", stats.Misses)
	}
}

func TestTTLExpiry(t *testing.T) {
	clock := newFakeClock()
	table := cache.TTLTable{models.PriorityHigh: 100 * time.Millisecond}
	c := cache.New[string]("newTickets", table, zap.NewNop().Sugar(), cache.WithClock(clock.Now))

	c.Set("tickets", "INC-00042", models.PriorityHigh)
	clock.Advance(150 * time.Millisecond)

	if _, ok := c.Get("tickets"); ok {
		t.Error("expected miss for expired entry")
	}

	stats := c.Stats()
	if stats.Size != 0 {
		t.Errorf("expected expired entry excluded from size, got: %d", stats.Size)
	}
}

func TestExpiryBoundary(t *testing.T) {
	clock := newFakeClock()
	c := newTestCache(clock, cache.WithFixedTTL(100*time.Millisecond))

	c.Set("tickets", "INC-00042", models.PriorityHigh)

	// Ровно в момент истечения запись уже мертва.
	clock.Advance(100 * time.Millisecond)
	if _, ok := c.Get("tickets"); ok {
		t.Error("expected miss exactly at expiresAt")
	}
}

func TestHitRate(t *testing.T) {
	c := newTestCache(newFakeClock())

	c.Set("tickets", "INC-00042", models.PriorityHigh)
	for i := 0; i < 3; i++ {
		c.Get("tickets")
	}
	c.Get("unknown")

	stats := c.Stats()
	if stats.Hits != 3 || stats.Misses != 1 {
		t.Fatalf("expected 3 hits and 1 miss, got: %d/%d", stats.Hits, stats.Misses)
	}
	if stats.HitRate != 0.75 {
		t.Errorf("expected hit rate 0.75, got: %v", stats.HitRate)
	}
}

func TestEmptyStatsNoNaN(t *testing.T) {
	c := newTestCache(newFakeClock())

	stats := c.Stats()
	if stats.HitRate != 0 || stats.AverageLookupMS != 0 || stats.AverageTTLSeconds != 0 {
		t.Errorf("expected zero derived stats for untouched cache, got: %+v", stats)
	}
}

func TestAverageTTL(t *testing.T) {
	c := newTestCache(newFakeClock())

	c.Set("status", "operational", models.PriorityLow)

	stats := c.Stats()
	if stats.AverageTTLSeconds != 300 {
		t.Errorf("expected average TTL of 300s for a single low priority entry, got: %v", stats.AverageTTLSeconds)
	}
}

func TestPriorityDistribution(t *testing.T) {
	c := newTestCache(newFakeClock())

	c.Set("tickets", "INC-00042", models.PriorityHigh)
	c.Set("ranking", "chen", models.PriorityMedium)
	c.Set("status", "operational", models.PriorityLow)
	c.Set("tickets2", "INC-00043", models.PriorityHigh)

	stats := c.Stats()
	want := map[models.Priority]int{
		models.PriorityHigh:   2,
		models.PriorityMedium: 1,
		models.PriorityLow:    1,
	}
	if !reflect.DeepEqual(stats.PriorityDistribution, want) {
		t.Errorf("expected distribution %v, got: %v", want, stats.PriorityDistribution)
	}
}

func TestCapacityEviction(t *testing.T) {
	clock := newFakeClock()
	c := newTestCache(clock, cache.WithMaxEntries(2))

	c.Set("oldest", "a", models.PriorityHigh)
	clock.Advance(time.Second)
	c.Set("middle", "b", models.PriorityHigh)
	clock.Advance(time.Second)
	c.Set("newest", "c", models.PriorityHigh)

	if _, ok := c.Get("oldest"); ok {
		t.Error("expected oldest entry to be evicted")
	}
	if _, ok := c.Get("middle"); !ok {
		t.Error("expected middle entry to survive")
	}
	if _, ok := c.Get("newest"); !ok {
		t.Error("expected newest entry to survive")
	}
}

func TestOverwriteDoesNotEvict(t *testing.T) {
	clock := newFakeClock()
	c := newTestCache(clock, cache.WithMaxEntries(2))

	c.Set("a", "1", models.PriorityHigh)
	clock.Advance(time.Second)
	c.Set("b", "2", models.PriorityHigh)
	clock.Advance(time.Second)

	// Перезапись существующего ключа не должна вытеснять соседа.
	c.Set("a", "3", models.PriorityHigh)

	if got, ok := c.Get("a"); !ok || got != "3" {
		t.Errorf("expected overwritten value, got: %q ok=%v", got, ok)
	}
	if _, ok := c.Get("b"); !ok {
		t.Error("expected b to survive overwrite of a")
	}
}

func TestCountersSurviveClear(t *testing.T) {
	c := newTestCache(newFakeClock())

	c.Set("tickets", "INC-00042", models.PriorityHigh)
	c.Get("tickets")
	c.Get("unknown")

	c.Clear()

	stats := c.Stats()
	if stats.Size != 0 {
		t.Errorf("expected empty cache after Clear, got size: %d", stats.Size)
	}
	if stats.Hits != 1 || stats.Misses != 1 {
		t.Errorf("expected counters to survive Clear, got: %d/%d", stats.Hits, stats.Misses)
	}
}

func TestGetOrFetch(t *testing.T) {
	c := newTestCache(newFakeClock())
	calls := 0

	fetch := func(ctx context.Context) (string, error) {
		calls++
		return "INC-00042", nil
	}

	got, err := c.GetOrFetch(context.Background(), "tickets", models.PriorityHigh, fetch)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "INC-00042" {
		t.Errorf("expected fetched value, got: %s", got)
	}

	// Второй вызов обслуживается кешем.
	if _, err := c.GetOrFetch(context.Background(), "tickets", models.PriorityHigh, fetch); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 fetch call, got: %d", calls)
	}
}

func TestGetOrFetchError(t *testing.T) {
	c := newTestCache(newFakeClock())
	wantErr := errors.New("backend unavailable")

	_, err := c.GetOrFetch(context.Background(), "tickets", models.PriorityHigh, func(ctx context.Context) (string, error) {
		return "", wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Errorf("expected original error back, got: %v", err)
	}

	if c.Len() != 0 {
		t.Errorf("expected failed fetch to leave cache empty, got: %d entries", c.Len())
	}
}

func TestKeysLiveOnly(t *testing.T) {
	clock := newFakeClock()
	c := newTestCache(clock, cache.WithFixedTTL(100*time.Millisecond))

	c.Set("b", "2", models.PriorityHigh)
	c.Set("a", "1", models.PriorityHigh)
	clock.Advance(150 * time.Millisecond)
	c.Set("c", "3", models.PriorityHigh)

	want := []string{"c"}
	if got := c.Keys(); !reflect.DeepEqual(got, want) {
		t.Errorf("expected live keys %v, got: %v", want, got)
	}
}

func TestRegistry(t *testing.T) {
	sugar := zap.NewNop().Sugar()
	reg := cache.NewRegistry()

	reg.Register(cache.New[string]("newTickets", nil, sugar))
	reg.Register(cache.New[int]("metrics", nil, sugar))

	if _, ok := reg.Get("newTickets"); !ok {
		t.Error("expected registered instance to be found")
	}
	if _, ok := reg.Get("unknown"); ok {
		t.Error("expected unknown instance to be missing")
	}

	stats := reg.StatsAll()
	if len(stats) != 2 {
		t.Fatalf("expected stats for 2 instances, got: %d", len(stats))
	}
	if stats[0].Name != "metrics" || stats[1].Name != "newTickets" {
		t.Errorf("expected stats sorted by name, got: %s, %s", stats[0].Name, stats[1].Name)
	}
}
