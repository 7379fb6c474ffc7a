package service_test

import (
	"testing"
	"time"

	"github.com/levinOo/helpdesk-telemetry/internal/cache"
	"github.com/levinOo/helpdesk-telemetry/internal/config"
	"github.com/levinOo/helpdesk-telemetry/internal/export"
	"github.com/levinOo/helpdesk-telemetry/internal/models"
	"github.com/levinOo/helpdesk-telemetry/internal/monitor"
	"github.com/levinOo/helpdesk-telemetry/internal/report"
	"github.com/levinOo/helpdesk-telemetry/internal/service"
	"go.uber.org/zap"
)

func TestTTLTableFromConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.Config
		want cache.TTLTable
	}{
		{
			name: "explicit values",
			cfg:  config.Config{TTLHigh: 10, TTLMedium: 60, TTLLow: 600},
			want: cache.TTLTable{
				models.PriorityHigh:   10 * time.Second,
				models.PriorityMedium: 60 * time.Second,
				models.PriorityLow:    600 * time.Second,
			},
		},
		{
			name: "zero values fall back to defaults",
			cfg:  config.Config{},
			want: cache.DefaultTTLTable(),
		},
		{
			name: "partial override",
			cfg:  config.Config{TTLHigh: 5},
			want: cache.TTLTable{
				models.PriorityHigh:   5 * time.Second,
				models.PriorityMedium: 120 * time.Second,
				models.PriorityLow:    300 * time.Second,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := service.TTLTableFromConfig(tt.cfg)
			for priority, want := range tt.want {
				if got[priority] != want {
					t.Errorf("priority %s: got %v, want %v", priority, got[priority], want)
				}
			}
		})
	}
}

func TestPeriodicReporter(t *testing.T) {
	sugar := zap.NewNop().Sugar()
	mon := monitor.New(sugar)
	registry := cache.NewRegistry()
	reporter := report.NewReporter(mon, "", nil, sugar)
	exporter := export.NewExporter(false, "", "", "", sugar)

	pr := service.NewPeriodicReporter(reporter, exporter, registry, 10*time.Millisecond, sugar)
	pr.Start()

	time.Sleep(50 * time.Millisecond)
	pr.Stop()

	if got := len(mon.Reports()); got == 0 {
		t.Error("expected at least one periodic report")
	}
}

func TestPeriodicReporterStopIsIdempotentHistory(t *testing.T) {
	sugar := zap.NewNop().Sugar()
	mon := monitor.New(sugar)
	registry := cache.NewRegistry()
	reporter := report.NewReporter(mon, "", nil, sugar)
	exporter := export.NewExporter(false, "", "", "", sugar)

	pr := service.NewPeriodicReporter(reporter, exporter, registry, 10*time.Millisecond, sugar)
	pr.Start()
	time.Sleep(30 * time.Millisecond)
	pr.Stop()

	before := len(mon.Reports())
	time.Sleep(30 * time.Millisecond)

	if after := len(mon.Reports()); after != before {
		t.Errorf("expected no reports after Stop, got %d -> %d", before, after)
	}
}
