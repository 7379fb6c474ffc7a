package report_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/levinOo/helpdesk-telemetry/internal/cache"
	"github.com/levinOo/helpdesk-telemetry/internal/models"
	"github.com/levinOo/helpdesk-telemetry/internal/monitor"
	"github.com/levinOo/helpdesk-telemetry/internal/report"
	"go.uber.org/zap"
)

func TestGenerateWithoutRemoteURL(t *testing.T) {
	sugar := zap.NewNop().Sugar()
	mon := monitor.New(sugar)

	r := report.NewReporter(mon, "", nil, sugar)
	rep := r.Generate(context.Background())

	if rep.Summary.RequestCount != 0 || rep.Summary.SystemStatus != "" {
		t.Errorf("expected purely local report, got: %+v", rep.Summary)
	}
	if got := len(mon.Reports()); got != 1 {
		t.Errorf("expected report appended to history, got: %d", got)
	}
}

func TestRemoteMetricsMerged(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"success":true,"data":{"filter_performance":{"average_ms":12,"request_count":42},"cache_stats":{"hit_rate":0.85},"system_health":{"status":"healthy"}}}`))
	}))
	defer ts.Close()

	sugar := zap.NewNop().Sugar()
	mon := monitor.New(sugar)

	r := report.NewReporter(mon, ts.URL, nil, sugar)
	rep := r.Generate(context.Background())

	if rep.Summary.RequestCount != 42 {
		t.Errorf("expected request count 42, got: %d", rep.Summary.RequestCount)
	}
	if rep.Summary.CacheHitRate != 0.85 {
		t.Errorf("expected cache hit rate 0.85, got: %v", rep.Summary.CacheHitRate)
	}
	if rep.Summary.SystemStatus != "healthy" {
		t.Errorf("expected system status healthy, got: %q", rep.Summary.SystemStatus)
	}
}

func TestMalformedPayloadFallsBack(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json at all`))
	}))
	defer ts.Close()

	sugar := zap.NewNop().Sugar()
	mon := monitor.New(sugar)

	r := report.NewReporter(mon, ts.URL, nil, sugar)
	rep := r.Generate(context.Background())

	if rep.Summary.RequestCount != 0 || rep.Summary.SystemStatus != "" {
		t.Errorf("expected local fallback for malformed payload, got: %+v", rep.Summary)
	}
}

func TestUnexpectedStatusFallsBack(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()

	sugar := zap.NewNop().Sugar()
	mon := monitor.New(sugar)

	r := report.NewReporter(mon, ts.URL, nil, sugar)
	rep := r.Generate(context.Background())

	if rep.Summary.RequestCount != 0 {
		t.Errorf("expected local fallback for server error, got: %+v", rep.Summary)
	}
}

func TestUnreachableEndpointFallsBack(t *testing.T) {
	sugar := zap.NewNop().Sugar()
	mon := monitor.New(sugar)

	r := report.NewReporter(mon, "http://127.0.0.1:1", nil, sugar)
	rep := r.Generate(context.Background())

	if rep.Summary.RequestCount != 0 {
		t.Errorf("expected local fallback for unreachable endpoint, got: %+v", rep.Summary)
	}
}

func TestRemoteMetricsCached(t *testing.T) {
	requests := 0
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"success":true,"data":{"filter_performance":{"request_count":42}}}`))
	}))
	defer ts.Close()

	sugar := zap.NewNop().Sugar()
	mon := monitor.New(sugar)
	remoteCache := cache.New[models.RemoteMetrics]("remoteMetrics", nil, sugar)

	r := report.NewReporter(mon, ts.URL, remoteCache, sugar)
	r.Generate(context.Background())
	rep := r.Generate(context.Background())

	if requests != 1 {
		t.Errorf("expected second generate to hit the cache, got %d requests", requests)
	}
	if rep.Summary.RequestCount != 42 {
		t.Errorf("expected cached remote metrics merged, got: %+v", rep.Summary)
	}
}
