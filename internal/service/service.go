// Package service предоставляет основной функционал сервера телеметрии.
// Пакет управляет жизненным циклом HTTP-сервера, периодической генерацией
// отчётов и корректным завершением работы при получении системных сигналов.
package service

import (
	"context"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/levinOo/helpdesk-telemetry/internal/cache"
	"github.com/levinOo/helpdesk-telemetry/internal/config"
	"github.com/levinOo/helpdesk-telemetry/internal/export"
	"github.com/levinOo/helpdesk-telemetry/internal/handler"
	"github.com/levinOo/helpdesk-telemetry/internal/logger"
	"github.com/levinOo/helpdesk-telemetry/internal/models"
	"github.com/levinOo/helpdesk-telemetry/internal/monitor"
	"github.com/levinOo/helpdesk-telemetry/internal/report"
	"go.uber.org/zap"
)

// ServerComponents содержит все компоненты, необходимые для работы
// сервера телеметрии.
type ServerComponents struct {
	server   *http.Server
	monitor  *monitor.Monitor
	registry *cache.Registry
	reporter *report.Reporter
	exporter *export.Exporter
	logger   *zap.SugaredLogger
}

// PeriodicReporter управляет автоматической периодической генерацией отчётов.
// Запускает фоновую горутину, которая генерирует и экспортирует отчёт
// через заданные интервалы времени.
type PeriodicReporter struct {
	reporter *report.Reporter
	exporter *export.Exporter
	registry *cache.Registry
	interval time.Duration
	logger   *zap.SugaredLogger
	stopCh   chan struct{}
	done     chan struct{}
}

// Serve инициализирует и запускает сервер телеметрии с указанной конфигурацией.
// Настраивает монитор, кеши и экспорт, запускает периодическую генерацию отчётов,
// включает профилирование pprof и обрабатывает корректное завершение работы
// по SIGINT/SIGTERM.
//
// Возвращает ошибку, если запуск или завершение сервера завершились неудачей.
func Serve(cfg config.Config) error {
	sugar := logger.NewLogger()
	components := setupServer(cfg, sugar)
	reporter := setupPeriodicReporter(cfg, components, sugar)

	return runServerWithGracefulShutdown(components, reporter, cfg)
}

// TTLTableFromConfig строит таблицу TTL кеша из секундных значений конфигурации.
// Неположительные значения заменяются значениями таблицы по умолчанию.
func TTLTableFromConfig(cfg config.Config) cache.TTLTable {
	table := cache.DefaultTTLTable()

	if cfg.TTLHigh > 0 {
		table[models.PriorityHigh] = time.Duration(cfg.TTLHigh) * time.Second
	}
	if cfg.TTLMedium > 0 {
		table[models.PriorityMedium] = time.Duration(cfg.TTLMedium) * time.Second
	}
	if cfg.TTLLow > 0 {
		table[models.PriorityLow] = time.Duration(cfg.TTLLow) * time.Second
	}

	return table
}

func setupServer(cfg config.Config, sugar *zap.SugaredLogger) *ServerComponents {
	sugar.Infow("Starting server with config",
		"address", cfg.Addr,
		"reportInterval", cfg.ReportInterval,
		"metricsURL", cfg.MetricsURL,
		"exportEnabled", cfg.ExportEnabled,
		"cacheCapacity", cfg.CacheCapacity,
		"monitorEnabled", cfg.MonitorEnabled,
	)

	mon := monitor.New(sugar)
	mon.SetEnabled(cfg.MonitorEnabled)

	table := TTLTableFromConfig(cfg)
	registry := cache.NewRegistry()

	remoteCache := cache.New[models.RemoteMetrics]("remoteMetrics", table, sugar,
		cache.WithMaxEntries(cfg.CacheCapacity))
	registry.Register(remoteCache)

	reporter := report.NewReporter(mon, cfg.MetricsURL, remoteCache, sugar)
	exporter := export.NewExporter(cfg.ExportEnabled, cfg.Key, cfg.ExportFile, cfg.ExportURL, sugar)

	router := handler.NewRouter(handler.Components{
		Monitor:  mon,
		Registry: registry,
		Reporter: reporter,
		Exporter: exporter,
	}, sugar)

	srv := &http.Server{
		Addr:    cfg.Addr,
		Handler: router,
	}

	return &ServerComponents{
		server:   srv,
		monitor:  mon,
		registry: registry,
		reporter: reporter,
		exporter: exporter,
		logger:   sugar,
	}
}

func setupPeriodicReporter(cfg config.Config, components *ServerComponents, sugar *zap.SugaredLogger) *PeriodicReporter {
	if cfg.ReportInterval <= 0 {
		sugar.Infow("Periodic reports disabled", "reportInterval", cfg.ReportInterval)
		return nil
	}

	reporter := NewPeriodicReporter(
		components.reporter,
		components.exporter,
		components.registry,
		time.Duration(cfg.ReportInterval)*time.Second,
		sugar,
	)
	reporter.Start()

	return reporter
}

// NewPeriodicReporter создает новый экземпляр PeriodicReporter, который будет
// генерировать и экспортировать отчёты с заданным интервалом. Генерацию
// необходимо запустить методом Start и остановить методом Stop,
// когда она больше не требуется.
func NewPeriodicReporter(r *report.Reporter, e *export.Exporter, reg *cache.Registry, interval time.Duration, logger *zap.SugaredLogger) *PeriodicReporter {
	return &PeriodicReporter{
		reporter: r,
		exporter: e,
		registry: reg,
		interval: interval,
		logger:   logger,
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start запускает периодическую генерацию отчётов в фоновой горутине.
// Отчёты будут генерироваться с настроенным интервалом до вызова Stop.
func (pr *PeriodicReporter) Start() {
	go func() {
		defer close(pr.done)
		ticker := time.NewTicker(pr.interval)
		defer ticker.Stop()

		pr.logger.Infow("Starting periodic reports", "interval", pr.interval)

		for {
			select {
			case <-ticker.C:
				pr.logger.Debugw("Periodic report triggered")
				pr.generate()
			case <-pr.stopCh:
				pr.logger.Debugw("Stopping periodic reports")
				return
			}
		}
	}()
}

// Stop корректно останавливает периодическую генерацию отчётов и ожидает
// завершения фоновой горутины.
func (pr *PeriodicReporter) Stop() {
	if pr.stopCh != nil {
		close(pr.stopCh)
		<-pr.done
	}
}

func (pr *PeriodicReporter) generate() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	rep := pr.reporter.Generate(ctx)
	pr.exporter.ExportReport(rep, pr.registry.StatsAll())

	pr.logger.Debugw("Report generated",
		"totalTimeMS", rep.Summary.TotalTimeMS,
		"requestCount", rep.Summary.RequestCount,
	)
}

func runServerWithGracefulShutdown(components *ServerComponents, reporter *PeriodicReporter, cfg config.Config) error {
	server := components.server
	sugar := components.logger

	go func() {
		pprofAddr := "localhost:6060"
		sugar.Infow("pprof server started", "address", pprofAddr)
		if err := http.ListenAndServe(pprofAddr, nil); err != nil {
			sugar.Errorw("pprof server error", "error", err)
		}
	}()

	serverErr := make(chan error, 1)

	go func() {
		sugar.Infow("HTTP server started", "address", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
		close(serverErr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		if err != nil {
			sugar.Errorw("Server error", "error", err)
			if reporter != nil {
				reporter.Stop()
			}
			return fmt.Errorf("server error: %w", err)
		}
	case <-quit:
		sugar.Infoln("Shutting down server...")
	}

	return gracefulShutdown(components, reporter)
}

func gracefulShutdown(components *ServerComponents, reporter *PeriodicReporter) error {
	sugar := components.logger

	if reporter != nil {
		reporter.Stop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := components.server.Shutdown(ctx); err != nil {
		sugar.Errorw("Server shutdown error", "error", err)
	}

	sugar.Infow("Generating final report on shutdown")
	rep := components.reporter.Generate(ctx)
	components.exporter.ExportReport(rep, components.registry.StatsAll())

	sugar.Infoln("Final report generated and server stopped gracefully")
	return nil
}
