package main

import (
	"bytes"
	"compress/gzip"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/levinOo/helpdesk-telemetry/internal/cache"
	"github.com/levinOo/helpdesk-telemetry/internal/export"
	"github.com/levinOo/helpdesk-telemetry/internal/handler"
	"github.com/levinOo/helpdesk-telemetry/internal/logger"
	"github.com/levinOo/helpdesk-telemetry/internal/models"
	"github.com/levinOo/helpdesk-telemetry/internal/monitor"
	"github.com/levinOo/helpdesk-telemetry/internal/report"
)

func newTestRouter() http.Handler {
	sugar := logger.NewLogger()
	mon := monitor.New(sugar)
	registry := cache.NewRegistry()
	registry.Register(cache.New[models.RemoteMetrics]("remoteMetrics", nil, sugar))

	return handler.NewRouter(handler.Components{
		Monitor:  mon,
		Registry: registry,
		Reporter: report.NewReporter(mon, "", nil, sugar),
		Exporter: export.NewExporter(false, "", "", "", sugar),
	}, sugar)
}

func TestServer(t *testing.T) {
	tests := []struct {
		name     string
		method   string
		url      string
		body     string
		wantCode int
	}{
		{
			name:     "PingHandler / Liveness",
			method:   http.MethodGet,
			url:      "/ping",
			wantCode: http.StatusOK,
		},
		{
			name:     "MeasureHandler / Valid measurement",
			method:   http.MethodPost,
			url:      "/measure",
			body:     `{"name":"api-tickets","category":"api","duration":150000000}`,
			wantCode: http.StatusOK,
		},
		{
			name:     "MeasureHandler / Empty name",
			method:   http.MethodPost,
			url:      "/measure",
			body:     `{"category":"api","duration":150000000}`,
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "MeasureHandler / Invalid JSON",
			method:   http.MethodPost,
			url:      "/measure",
			body:     `{"name":`,
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "MeasuresBatchHandler / Valid batch",
			method:   http.MethodPost,
			url:      "/measures",
			body:     `[{"name":"filter-tickets","category":"filter","duration":30000000},{"name":"api-tickets","category":"api","duration":150000000}]`,
			wantCode: http.StatusOK,
		},
		{
			name:     "MeasuresBatchHandler / Invalid JSON",
			method:   http.MethodPost,
			url:      "/measures",
			body:     `{"name":"x"}`,
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "RenderHandler / Valid sample",
			method:   http.MethodPost,
			url:      "/render",
			body:     `{"name":"TicketTable","duration":12000000}`,
			wantCode: http.StatusOK,
		},
		{
			name:     "RenderHandler / Empty name",
			method:   http.MethodPost,
			url:      "/render",
			body:     `{"duration":12000000}`,
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "LatestReportHandler / No reports yet",
			method:   http.MethodGet,
			url:      "/report",
			wantCode: http.StatusNotFound,
		},
		{
			name:     "GenerateReportHandler / Generate now",
			method:   http.MethodPost,
			url:      "/report",
			wantCode: http.StatusOK,
		},
		{
			name:     "ReportsHandler / History",
			method:   http.MethodGet,
			url:      "/reports",
			wantCode: http.StatusOK,
		},
		{
			name:     "StatsHandler / Detailed stats",
			method:   http.MethodGet,
			url:      "/stats",
			wantCode: http.StatusOK,
		},
		{
			name:     "CacheStatsHandler / All instances",
			method:   http.MethodGet,
			url:      "/cache",
			wantCode: http.StatusOK,
		},
		{
			name:     "CacheInstanceHandler / Known instance",
			method:   http.MethodGet,
			url:      "/cache/remoteMetrics",
			wantCode: http.StatusOK,
		},
		{
			name:     "CacheInstanceHandler / Unknown instance",
			method:   http.MethodGet,
			url:      "/cache/newTickets",
			wantCode: http.StatusNotFound,
		},
		{
			name:     "ClearMetricsHandler / Manual reset",
			method:   http.MethodPost,
			url:      "/clear/metrics",
			wantCode: http.StatusOK,
		},
		{
			name:     "ClearCacheHandler / Manual reset",
			method:   http.MethodPost,
			url:      "/clear/cache",
			wantCode: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestRouter()

			var req *http.Request
			if tt.body != "" {
				req = httptest.NewRequest(tt.method, tt.url, strings.NewReader(tt.body))
				req.Header.Set("Content-Type", "application/json")
			} else {
				req = httptest.NewRequest(tt.method, tt.url, nil)
			}

			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)

			if rec.Code != tt.wantCode {
				t.Errorf("got status: %d, want: %d", rec.Code, tt.wantCode)
			}
		})
	}
}

func TestGzipMeasureIngestion(t *testing.T) {
	r := newTestRouter()

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	gz.Write([]byte(`[{"name":"api-tickets","category":"api","duration":150000000}]`))
	gz.Close()

	req := httptest.NewRequest(http.MethodPost, "/measures", &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Content-Encoding", "gzip")

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("got status: %d, want: %d", rec.Code, http.StatusOK)
	}
}

func TestLatestReportAfterGenerate(t *testing.T) {
	r := newTestRouter()

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/report", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("generate report: got status %d, want %d", rec.Code, http.StatusOK)
	}

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/report", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("latest report: got status %d, want %d", rec.Code, http.StatusOK)
	}
}
