package agent

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"
)

func newTestAgent() *Agent {
	cfg := Config{
		Addr:         "localhost:8080",
		PollInterval: 2,
		ReqInterval:  10,
		DebounceMS:   300,
	}
	return NewAgent(cfg, zap.NewNop().Sugar())
}

func TestRefreshAllFillsFeeds(t *testing.T) {
	a := newTestAgent()

	a.RefreshAll(context.Background())

	for _, f := range a.feeds {
		if state := f.StateView(); state != "fresh" {
			t.Errorf("expected feed %s to be fresh after refresh, got: %s", f.Name(), state)
		}
	}

	list := a.monitor.CompletedMeasurements()
	if len(list) != len(a.feeds) {
		t.Errorf("expected %d measurements, got: %d", len(a.feeds), len(list))
	}
}

func TestRefreshSkippedAfterInteraction(t *testing.T) {
	a := newTestAgent()

	a.NoteInteraction()
	a.RefreshAll(context.Background())

	if got := len(a.monitor.CompletedMeasurements()); got != 0 {
		t.Errorf("expected refresh to be debounced after interaction, got %d measurements", got)
	}
}

func TestRefreshResumesAfterDebounceWindow(t *testing.T) {
	a := newTestAgent()
	a.cfg.DebounceMS = 10

	a.NoteInteraction()
	time.Sleep(20 * time.Millisecond)
	a.RefreshAll(context.Background())

	if got := len(a.monitor.CompletedMeasurements()); got == 0 {
		t.Error("expected refresh to resume after the debounce window")
	}
}

func TestSecondRefreshServedFromCache(t *testing.T) {
	a := newTestAgent()
	ctx := context.Background()

	a.RefreshAll(ctx)
	a.RefreshAll(ctx)

	for _, stats := range a.registry.StatsAll() {
		if stats.Hits == 0 {
			t.Errorf("expected cache hit on second refresh for %s, got: %d/%d", stats.Name, stats.Hits, stats.Misses)
		}
	}
}
