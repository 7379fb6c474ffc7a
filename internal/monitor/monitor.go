// Package monitor реализует монитор производительности дашборда:
// именованные измерения длительности операций, статистику рендеринга
// компонентов и неизменяемые отчёты с ограниченной историей.
//
// Монитор создаётся явно и передаётся потребителям через конструкторы,
// глобального состояния пакет не содержит. Все операции защищены мьютексом
// и безопасны для вызова из нескольких горутин.
package monitor

import (
	"context"
	"math"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/levinOo/helpdesk-telemetry/internal/models"
	"github.com/shirou/gopsutil/v3/mem"
	"go.uber.org/zap"
)

// maxReports ограничивает историю отчётов. При создании одиннадцатого
// отчёта самый старый вытесняется (FIFO).
const maxReports = 10

// Option настраивает монитор при создании.
type Option func(*Monitor)

// WithClock заменяет источник времени. Используется в тестах
// для детерминированных длительностей.
func WithClock(now func() time.Time) Option {
	return func(m *Monitor) {
		m.now = now
	}
}

// Monitor хранит текущие измерения, статистику рендеринга и историю отчётов.
type Monitor struct {
	mu           sync.Mutex
	enabled      bool
	now          func() time.Time
	logger       *zap.SugaredLogger
	measurements map[string]*models.Measurement
	renders      map[string]*models.ComponentRenderStat
	reports      []models.Report
}

// New создаёт монитор. Монитор включён по умолчанию.
func New(logger *zap.SugaredLogger, opts ...Option) *Monitor {
	m := &Monitor{
		enabled:      true,
		now:          time.Now,
		logger:       logger,
		measurements: make(map[string]*models.Measurement),
		renders:      make(map[string]*models.ComponentRenderStat),
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// SetEnabled включает или выключает монитор. Выключенный монитор
// превращает все операции в no-op: инструментирование не должно
// замедлять приложение, когда телеметрия отключена.
func (m *Monitor) SetEnabled(enabled bool) {
	m.mu.Lock()
	m.enabled = enabled
	m.mu.Unlock()
}

// Enabled сообщает, включён ли монитор.
func (m *Monitor) Enabled() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.enabled
}

// StartMeasure регистрирует начало измерения с указанным именем и категорией.
// Повторный старт с тем же именем перезаписывает незавершённое измерение:
// последний старт выигрывает, это позволяет переживать повторные
// перерисовки компонентов без ошибок.
func (m *Monitor) StartMeasure(name string, category models.MetricCategory, metadata map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.enabled {
		return
	}

	if category == "" {
		category = models.CategoryOther
	}

	m.measurements[name] = &models.Measurement{
		Name:      name,
		Category:  category,
		StartedAt: m.now(),
		Metadata:  copyMetadata(metadata),
	}
}

// EndMeasure завершает измерение и возвращает его длительность.
// Если измерение с таким именем не было начато, возвращает (0, false)
// и не выполняет никакой работы: компонент мог быть размонтирован
// до завершения операции, это не ошибка.
func (m *Monitor) EndMeasure(name string, metadata map[string]string) (time.Duration, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.enabled {
		return 0, false
	}

	meas, ok := m.measurements[name]
	if !ok {
		m.logger.Debugw("EndMeasure without StartMeasure", "name", name)
		return 0, false
	}

	meas.EndedAt = m.now()
	meas.Duration = meas.EndedAt.Sub(meas.StartedAt)
	if meas.Duration < 0 {
		meas.Duration = 0
	}
	meas.Done = true
	meas.Metadata = mergeMetadata(meas.Metadata, metadata)

	return meas.Duration, true
}

// Record сохраняет уже завершённое измерение, полученное извне
// (например, от дашборда через HTTP). Измерение с тем же именем
// перезаписывается. Отрицательные длительности приводятся к нулю.
func (m *Monitor) Record(meas models.Measurement) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.enabled || meas.Name == "" {
		return
	}

	if meas.Category == "" {
		meas.Category = models.CategoryOther
	}
	if meas.Duration < 0 {
		meas.Duration = 0
	}
	meas.Done = true

	stored := meas
	stored.Metadata = copyMetadata(meas.Metadata)
	m.measurements[meas.Name] = &stored
}

// RecordComponentRender фиксирует один рендер компонента.
// Среднее время пересчитывается как обычное арифметическое:
// каждый замер весит одинаково, экспоненциального сглаживания нет.
func (m *Monitor) RecordComponentRender(name string, renderTime time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.enabled || name == "" {
		return
	}

	if renderTime < 0 {
		renderTime = 0
	}

	stat, ok := m.renders[name]
	if !ok {
		stat = &models.ComponentRenderStat{Name: name}
		m.renders[name] = stat
	}

	stat.RenderCount++
	stat.TotalRenderTime += renderTime
	stat.AverageRenderTime = stat.TotalRenderTime / time.Duration(stat.RenderCount)
	stat.LastRenderTime = renderTime
}

// MeasureFunc оборачивает синхронную операцию измерением.
// Ошибка операции возвращается без изменений.
func (m *Monitor) MeasureFunc(name string, category models.MetricCategory, op func() error) error {
	m.StartMeasure(name, category, nil)

	err := op()
	if err != nil {
		m.EndMeasure(name, map[string]string{"success": "false", "error": err.Error()})
		return err
	}

	m.EndMeasure(name, map[string]string{"success": "true"})
	return nil
}

// Measure оборачивает асинхронную операцию измерением и возвращает её результат.
// При ошибке измерение завершается с метаданными {success:false, error},
// а сама ошибка возвращается вызывающему без изменений: монитор наблюдает
// за сбоями, но никогда их не поглощает.
func Measure[T any](ctx context.Context, m *Monitor, name string, category models.MetricCategory, op func(context.Context) (T, error)) (T, error) {
	m.StartMeasure(name, category, nil)

	result, err := op(ctx)
	if err != nil {
		m.EndMeasure(name, map[string]string{"success": "false", "error": err.Error()})
		return result, err
	}

	m.EndMeasure(name, map[string]string{"success": "true"})
	return result, nil
}

// GenerateReport строит неизменяемый снимок текущего состояния монитора,
// добавляет его в историю и возвращает. Сводные показатели считаются
// по завершённым измерениям соответствующих категорий. Данные внешнего
// эндпоинта (remote) подмешиваются опционально: nil или remote.Success=false
// оставляют только локальные значения.
func (m *Monitor) GenerateReport(remote *models.RemoteMetrics) models.Report {
	m.mu.Lock()
	defer m.mu.Unlock()

	report := models.Report{
		Timestamp:      m.now(),
		Summary:        m.buildSummary(remote),
		Measurements:   m.snapshotMeasurements(),
		ComponentStats: m.snapshotRenders(),
	}

	m.reports = append(m.reports, report)
	if len(m.reports) > maxReports {
		m.reports = m.reports[len(m.reports)-maxReports:]
	}

	return report
}

func (m *Monitor) buildSummary(remote *models.RemoteMetrics) models.ReportSummary {
	var filter, api, render, total []time.Duration

	for _, meas := range m.measurements {
		if !meas.Done {
			continue
		}
		total = append(total, meas.Duration)
		switch meas.Category {
		case models.CategoryFilter:
			filter = append(filter, meas.Duration)
		case models.CategoryAPI:
			api = append(api, meas.Duration)
		case models.CategoryRender:
			render = append(render, meas.Duration)
		}
	}

	summary := models.ReportSummary{
		FilterTimeMS:      averageMS(filter),
		APIResponseTimeMS: averageMS(api),
		RenderTimeMS:      averageMS(render),
		TotalTimeMS:       averageMS(total),
	}

	if remote == nil || !remote.Success {
		return summary
	}

	if fp := remote.Data.FilterPerformance; fp != nil {
		summary.RequestCount = fp.RequestCount
	}
	if cs := remote.Data.CacheStats; cs != nil {
		summary.CacheHitRate = cs.HitRate
	}
	if sh := remote.Data.SystemHealth; sh != nil {
		summary.SystemStatus = sh.Status
	}

	return summary
}

// Reports возвращает копию истории отчётов, от старых к новым.
func (m *Monitor) Reports() []models.Report {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]models.Report, len(m.reports))
	copy(out, m.reports)
	return out
}

// CompletedMeasurements возвращает копии завершённых измерений,
// отсортированные по имени. Используется для пакетной отправки на сервер.
func (m *Monitor) CompletedMeasurements() []models.Measurement {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]models.Measurement, 0, len(m.measurements))
	for _, meas := range m.measurements {
		if !meas.Done {
			continue
		}
		cp := *meas
		cp.Metadata = copyMetadata(meas.Metadata)
		out = append(out, cp)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// DetailedStats возвращает агрегированную статистику: счётчики измерений,
// 95-е перцентили длительностей фильтрации и запросов к бэкенду
// (nearest-rank: sorted[ceil(n*0.95)-1]) и пять самых медленных компонентов
// по среднему времени рендеринга. Пустой монитор даёт нулевую статистику,
// NaN и Inf не возникают.
func (m *Monitor) DetailedStats() models.DetailedStats {
	m.mu.Lock()
	defer m.mu.Unlock()

	stats := models.DetailedStats{
		TotalMeasurements: len(m.measurements),
		ComponentCount:    len(m.renders),
	}

	var filter, api []time.Duration
	for _, meas := range m.measurements {
		if !meas.Done {
			continue
		}
		stats.CompletedMeasurements++
		switch meas.Category {
		case models.CategoryFilter:
			filter = append(filter, meas.Duration)
		case models.CategoryAPI:
			api = append(api, meas.Duration)
		}
	}

	stats.FilterP95MS = durationMS(nearestRank(filter, 0.95))
	stats.APIP95MS = durationMS(nearestRank(api, 0.95))
	stats.SlowestComponents = m.slowestComponents(5)

	return stats
}

// SystemMetrics собирает показатели хоста и процесса: память хоста
// через gopsutil и счётчики рантайма. Ошибка чтения системной памяти
// не фатальна, соответствующие поля остаются нулевыми.
func (m *Monitor) SystemMetrics() models.SystemHealth {
	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)

	health := models.SystemHealth{
		HeapAlloc:    stats.HeapAlloc,
		NumGoroutine: runtime.NumGoroutine(),
		NumCPU:       runtime.NumCPU(),
		CollectedAt:  m.now(),
	}

	memStat, err := mem.VirtualMemory()
	if err != nil {
		m.logger.Warnw("Failed to collect virtual memory stats", "error", err)
		return health
	}

	health.TotalMemory = memStat.Total
	health.FreeMemory = memStat.Available
	return health
}

// Clear удаляет все измерения и статистику рендеринга.
// История отчётов не затрагивается.
func (m *Monitor) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.measurements = make(map[string]*models.Measurement)
	m.renders = make(map[string]*models.ComponentRenderStat)
}

// ClearReports удаляет историю отчётов.
func (m *Monitor) ClearReports() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.reports = nil
}

func (m *Monitor) snapshotMeasurements() []models.Measurement {
	out := make([]models.Measurement, 0, len(m.measurements))
	for _, meas := range m.measurements {
		cp := *meas
		cp.Metadata = copyMetadata(meas.Metadata)
		out = append(out, cp)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (m *Monitor) snapshotRenders() []models.ComponentRenderStat {
	out := make([]models.ComponentRenderStat, 0, len(m.renders))
	for _, stat := range m.renders {
		out = append(out, *stat)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (m *Monitor) slowestComponents(n int) []models.ComponentRenderStat {
	out := m.snapshotRenders()
	sort.Slice(out, func(i, j int) bool {
		return out[i].AverageRenderTime > out[j].AverageRenderTime
	})

	if len(out) > n {
		out = out[:n]
	}
	return out
}

// nearestRank возвращает перцентиль по методу ближайшего ранга.
// Пустой вход даёт 0.
func nearestRank(durations []time.Duration, q float64) time.Duration {
	if len(durations) == 0 {
		return 0
	}

	sorted := make([]time.Duration, len(durations))
	copy(sorted, durations)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	idx := int(math.Ceil(float64(len(sorted))*q)) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}

	return sorted[idx]
}

func averageMS(durations []time.Duration) float64 {
	if len(durations) == 0 {
		return 0
	}

	var sum time.Duration
	for _, d := range durations {
		sum += d
	}

	return durationMS(sum) / float64(len(durations))
}

func durationMS(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

func copyMetadata(src map[string]string) map[string]string {
	if src == nil {
		return nil
	}

	dst := make(map[string]string, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

func mergeMetadata(dst, src map[string]string) map[string]string {
	if src == nil {
		return dst
	}
	if dst == nil {
		dst = make(map[string]string, len(src))
	}
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
