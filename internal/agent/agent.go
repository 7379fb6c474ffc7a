// Package agent моделирует ленты данных дашборда: каждая лента обновляется
// через кеш с приоритетным TTL под управлением автомата stale-while-revalidate,
// а длительности обновлений измеряются монитором и пакетно отправляются
// на сервер телеметрии.
package agent

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"math/rand"
	"net/http"
	"net/url"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-resty/resty/v2"
	"github.com/levinOo/helpdesk-telemetry/internal/cache"
	"github.com/levinOo/helpdesk-telemetry/internal/logger"
	"github.com/levinOo/helpdesk-telemetry/internal/models"
	"github.com/levinOo/helpdesk-telemetry/internal/monitor"
	"github.com/levinOo/helpdesk-telemetry/internal/swr"
	"go.uber.org/zap"
)

// Config содержит параметры агента. Значения загружаются из флагов
// командной строки и перекрываются переменными окружения.
type Config struct {
	Addr         string `env:"ADDRESS"`
	PollInterval int    `env:"POLL_INTERVAL"`
	ReqInterval  int    `env:"REPORT_INTERVAL"`
	DebounceMS   int    `env:"DEBOUNCE_MS"`
}

// refresher объединяет операции ленты, не зависящие от типа данных.
type refresher interface {
	Name() string
	Refresh(ctx context.Context, mon *monitor.Monitor)
	StateView() string
}

// feed связывает кеш, автомат stale-while-revalidate и функцию загрузки
// одной ленты дашборда.
type feed[T any] struct {
	name     string
	priority models.Priority
	category models.MetricCategory
	cache    *cache.Cache[T]
	state    *swr.Feed[T]
	fetch    func(context.Context) (T, error)
	logger   *zap.SugaredLogger
}

func newFeed[T any](name string, priority models.Priority, category models.MetricCategory, table cache.TTLTable, fetch func(context.Context) (T, error), sugar *zap.SugaredLogger) *feed[T] {
	return &feed[T]{
		name:     name,
		priority: priority,
		category: category,
		cache:    cache.New[T](name, table, sugar),
		state:    swr.NewFeed[T](name),
		fetch:    fetch,
		logger:   sugar,
	}
}

func (f *feed[T]) Name() string {
	return f.name
}

// Refresh выполняет один цикл обновления ленты: живая запись кеша
// обслуживается без загрузки, иначе вызывается fetch. Пока обновление
// в полёте, снимок автомата продолжает отдавать последние хорошие данные.
func (f *feed[T]) Refresh(ctx context.Context, mon *monitor.Monitor) {
	token := f.state.Begin()

	value, err := monitor.Measure(ctx, mon, f.name, f.category, func(ctx context.Context) (T, error) {
		return f.cache.GetOrFetch(ctx, f.name, f.priority, f.fetch)
	})
	if err != nil {
		f.state.Fail(token, err)
		f.logger.Warnw("Feed refresh failed", "feed", f.name, "error", err)
		return
	}

	f.state.Complete(token, value)
}

// StateView возвращает строковое представление состояния ленты для логов.
func (f *feed[T]) StateView() string {
	view := f.state.Snapshot()
	return string(view.State)
}

// Agent управляет лентами дашборда и отправкой измерений на сервер.
type Agent struct {
	cfg      Config
	endpoint string
	monitor  *monitor.Monitor
	registry *cache.Registry
	feeds    []refresher
	logger   *zap.SugaredLogger

	lastInteraction time.Time
}

// NewAgent создаёт агент с четырьмя лентами дашборда: новые тикеты,
// рейтинг техников, статус системы и системные метрики.
func NewAgent(cfg Config, sugar *zap.SugaredLogger) *Agent {
	mon := monitor.New(sugar)
	table := cache.DefaultTTLTable()
	registry := cache.NewRegistry()

	newTickets := newFeed("newTickets", models.PriorityHigh, models.CategoryAPI, table, fetchNewTickets, sugar)
	ranking := newFeed("technicianRanking", models.PriorityMedium, models.CategoryAPI, table, fetchTechnicianRanking, sugar)
	status := newFeed("systemStatus", models.PriorityLow, models.CategoryAPI, table, fetchSystemStatus, sugar)
	metrics := newFeed("metrics", models.PriorityMedium, models.CategoryOther, table, func(ctx context.Context) (models.SystemHealth, error) {
		return mon.SystemMetrics(), nil
	}, sugar)

	registry.Register(newTickets.cache)
	registry.Register(ranking.cache)
	registry.Register(status.cache)
	registry.Register(metrics.cache)

	return &Agent{
		cfg:      cfg,
		endpoint: "http://" + cfg.Addr,
		monitor:  mon,
		registry: registry,
		feeds:    []refresher{newTickets, ranking, status, metrics},
		logger:   sugar,
	}
}

// NoteInteraction фиксирует взаимодействие пользователя с дашбордом.
// Следующий автоматический цикл обновления будет пропущен, если
// взаимодействие произошло внутри окна дебаунса.
func (a *Agent) NoteInteraction() {
	a.lastInteraction = time.Now()
}

// RefreshAll обновляет все ленты. Цикл пропускается целиком, если
// пользователь взаимодействовал с дашбордом внутри окна дебаунса:
// автообновление не должно дёргать таблицу под руками оператора.
func (a *Agent) RefreshAll(ctx context.Context) {
	if a.cfg.DebounceMS > 0 && time.Since(a.lastInteraction) < time.Duration(a.cfg.DebounceMS)*time.Millisecond {
		a.logger.Debugw("Refresh skipped, recent user interaction")
		return
	}

	for _, f := range a.feeds {
		f.Refresh(ctx, a.monitor)
		a.monitor.RecordComponentRender(f.Name(), simulatedRenderTime())
		a.logger.Debugw("Feed refreshed", "feed", f.Name(), "state", f.StateView())
	}
}

// Ship отправляет завершённые измерения на сервер одним сжатым пакетом
// и очищает локальный монитор после успешной отправки.
func (a *Agent) Ship() error {
	list := a.monitor.CompletedMeasurements()
	if len(list) == 0 {
		a.logger.Debugw("No measurements to send, skipping batch")
		return nil
	}

	if err := SendMeasurementsBatch(list, a.endpoint); err != nil {
		return err
	}

	a.monitor.Clear()
	return nil
}

// SendMeasurementsBatch отправляет пакет измерений на сервер
// в формате JSON со сжатием gzip.
func SendMeasurementsBatch(list []models.Measurement, endpoint string) error {
	if len(list) == 0 {
		return nil
	}

	url, err := url.JoinPath(endpoint, "measures")
	if err != nil {
		return fmt.Errorf("failed to join URL path: %w", err)
	}

	data, err := json.Marshal(list)
	if err != nil {
		return fmt.Errorf("failed to marshal measurements: %w", err)
	}

	buffer, err := CompressData(data)
	if err != nil {
		return fmt.Errorf("failed to compress data: %w", err)
	}

	client := resty.New()
	resp, err := client.R().
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		SetHeader("Content-Encoding", "gzip").
		SetBody(buffer).
		Post(url)

	if err != nil {
		return fmt.Errorf("failed to send batch request: %w", err)
	}

	if resp.StatusCode() != http.StatusOK {
		return fmt.Errorf("server returned status %d: %s", resp.StatusCode(), resp.String())
	}

	return nil
}

// CompressData сжимает данные алгоритмом gzip.
func CompressData(data []byte) ([]byte, error) {
	var buffer bytes.Buffer

	w := gzip.NewWriter(&buffer)

	_, err := w.Write(data)
	if err != nil {
		return nil, err
	}

	err = w.Close()
	if err != nil {
		return nil, err
	}

	return buffer.Bytes(), nil
}

// StartAgent запускает агент: периодическое обновление лент и отправку
// измерений. Возвращает канал, в который попадает фатальная ошибка запуска.
func StartAgent() <-chan error {
	cfg := Config{}
	errCh := make(chan error, 1)

	flag.StringVar(&cfg.Addr, "a", "localhost:8080", "адрес сервера телеметрии")
	flag.IntVar(&cfg.PollInterval, "p", 2, "интервал обновления лент в секундах")
	flag.IntVar(&cfg.ReqInterval, "r", 10, "интервал отправки измерений в секундах")
	flag.IntVar(&cfg.DebounceMS, "d", 300, "окно дебаунса взаимодействий в миллисекундах")
	flag.Parse()

	if err := env.Parse(&cfg); err != nil {
		errCh <- fmt.Errorf("ошибка парсинга ENV: %w", err)
		return errCh
	}

	sugar := logger.NewLogger()
	a := NewAgent(cfg, sugar)

	go func() {
		pollTicker := time.NewTicker(time.Second * time.Duration(cfg.PollInterval))
		reqTicker := time.NewTicker(time.Second * time.Duration(cfg.ReqInterval))

		ctx := context.Background()

		for {
			select {
			case <-pollTicker.C:
				a.RefreshAll(ctx)

			case <-reqTicker.C:
				var connRefusedErr = syscall.ECONNREFUSED
				err := a.Ship()

				if errors.Is(err, connRefusedErr) {
					intervals := []time.Duration{1 * time.Second, 3 * time.Second, 5 * time.Second}

					for i := 0; i < 3; i++ {
						sugar.Infow("Retry attempt after send error", "attempt", i+1, "error", err)
						time.Sleep(intervals[i])

						err = a.Ship()
						if err == nil {
							sugar.Infow("Success after retries", "attempts", i+1)
							break
						}

						if !errors.Is(err, connRefusedErr) {
							break
						}
					}
				}

				if err != nil {
					sugar.Errorw("Final sending measurements error", "error", err)
				}
			}
		}
	}()

	return errCh
}

// fetchNewTickets имитирует загрузку списка новых тикетов.
func fetchNewTickets(ctx context.Context) ([]string, error) {
	simulateLatency(ctx)

	n := 1 + rand.Intn(5)
	tickets := make([]string, 0, n)
	for i := 0; i < n; i++ {
		tickets = append(tickets, fmt.Sprintf("INC-%05d", rand.Intn(100000)))
	}
	return tickets, nil
}

// fetchTechnicianRanking имитирует загрузку рейтинга техников.
func fetchTechnicianRanking(ctx context.Context) ([]string, error) {
	simulateLatency(ctx)

	ranking := []string{"alvarez", "chen", "ivanova", "okafor", "schmidt"}
	rand.Shuffle(len(ranking), func(i, j int) {
		ranking[i], ranking[j] = ranking[j], ranking[i]
	})
	return ranking, nil
}

// fetchSystemStatus имитирует загрузку статуса системы.
func fetchSystemStatus(ctx context.Context) (string, error) {
	simulateLatency(ctx)

	if rand.Intn(10) == 0 {
		return "degraded", nil
	}
	return "operational", nil
}

// simulateLatency имитирует сетевую задержку загрузки, уважая отмену контекста.
func simulateLatency(ctx context.Context) {
	d := time.Duration(5+rand.Intn(45)) * time.Millisecond

	select {
	case <-time.After(d):
	case <-ctx.Done():
	}
}

func simulatedRenderTime() time.Duration {
	return time.Duration(1+rand.Intn(9)) * time.Millisecond
}
