// Package models содержит структуры данных, описывающие основные сущности предметной области:
// измерения производительности, статистику рендеринга компонентов, отчёты и метрики кеша.
// Пакет не содержит бизнес-логику и используется для передачи данных между слоями приложения.
package models

import "time"

// MetricCategory определяет категорию измерения.
// Категория присваивается при создании измерения и заменяет
// группировку по строковым префиксам имени.
type MetricCategory string

// Константы категорий измерений
const (
	// CategoryFilter обозначает операции фильтрации данных на дашборде.
	CategoryFilter MetricCategory = "filter"

	// CategoryAPI обозначает сетевые запросы к бэкенду тикет-системы.
	CategoryAPI MetricCategory = "api"

	// CategoryRender обозначает рендеринг визуальных компонентов.
	CategoryRender MetricCategory = "render"

	// CategoryOther обозначает измерения без явной категории.
	CategoryOther MetricCategory = "other"
)

// Priority определяет приоритет кешируемого набора данных.
// Приоритет отражает волатильность данных и выбирает TTL записи
// по конфигурационной таблице.
type Priority string

// Константы приоритетов кеша
const (
	// PriorityHigh — волатильные данные (список новых тикетов), короткий TTL.
	PriorityHigh Priority = "high"

	// PriorityMedium — умеренно волатильные данные (рейтинг техников).
	PriorityMedium Priority = "medium"

	// PriorityLow — стабильные данные (статус системы), длинный TTL.
	PriorityLow Priority = "low"
)

// Measurement представляет именованное измерение длительности операции.
// Создаётся при старте операции, завершается установкой EndedAt и Duration.
type Measurement struct {
	// Name содержит уникальное имя измерения. Повторный старт
	// с тем же именем перезаписывает незавершённое измерение.
	Name string `json:"name"`

	// Category определяет категорию измерения для агрегации в отчётах.
	Category MetricCategory `json:"category"`

	// StartedAt содержит момент начала операции.
	StartedAt time.Time `json:"started_at"`

	// EndedAt содержит момент завершения операции.
	// Нулевое значение означает незавершённое измерение.
	EndedAt time.Time `json:"ended_at,omitempty"`

	// Duration содержит длительность операции. Инвариант:
	// Duration = EndedAt - StartedAt, значение никогда не отрицательно.
	Duration time.Duration `json:"duration,omitempty"`

	// Done показывает, что измерение завершено.
	Done bool `json:"done"`

	// Metadata содержит произвольные пары ключ/значение,
	// объединяемые при старте и завершении измерения.
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Reset очищает измерение для повторного использования через пул объектов.
func (m *Measurement) Reset() {
	m.Name = ""
	m.Category = ""
	m.StartedAt = time.Time{}
	m.EndedAt = time.Time{}
	m.Duration = 0
	m.Done = false
	m.Metadata = nil
}

// ComponentRenderStat накапливает статистику рендеринга одного UI-компонента.
// Среднее пересчитывается как обычное арифметическое: каждый замер весит одинаково.
type ComponentRenderStat struct {
	// Name содержит имя компонента.
	Name string `json:"name"`

	// RenderCount содержит число зафиксированных рендеров, всегда >= 1.
	RenderCount int64 `json:"render_count"`

	// TotalRenderTime содержит суммарное время рендеринга.
	TotalRenderTime time.Duration `json:"total_render_time"`

	// AverageRenderTime равно TotalRenderTime / RenderCount.
	AverageRenderTime time.Duration `json:"average_render_time"`

	// LastRenderTime содержит длительность последнего рендера.
	LastRenderTime time.Duration `json:"last_render_time"`
}

// RenderSample представляет один замер рендеринга компонента,
// поступающий от дашборда.
type RenderSample struct {
	Name     string        `json:"name"`
	Duration time.Duration `json:"duration"`
}

// ReportSummary содержит сводные показатели отчёта.
// Все длительности выражены в миллисекундах.
type ReportSummary struct {
	// FilterTimeMS — среднее время операций фильтрации.
	FilterTimeMS float64 `json:"filter_time_ms"`

	// APIResponseTimeMS — среднее время запросов к бэкенду.
	APIResponseTimeMS float64 `json:"api_response_time_ms"`

	// RenderTimeMS — среднее время рендеринга.
	RenderTimeMS float64 `json:"render_time_ms"`

	// TotalTimeMS — среднее время всех завершённых операций.
	TotalTimeMS float64 `json:"total_time_ms"`

	// RequestCount содержит число запросов по данным внешнего эндпоинта.
	RequestCount int64 `json:"request_count,omitempty"`

	// CacheHitRate содержит долю попаданий кеша по данным внешнего эндпоинта.
	CacheHitRate float64 `json:"cache_hit_rate,omitempty"`

	// SystemStatus содержит оценку состояния системы по данным внешнего эндпоинта.
	SystemStatus string `json:"system_status,omitempty"`
}

// Report представляет неизменяемый снимок состояния монитора на момент создания.
// Хранится в кольцевом буфере последних десяти отчётов.
type Report struct {
	Timestamp      time.Time             `json:"timestamp"`
	Summary        ReportSummary         `json:"summary"`
	Measurements   []Measurement         `json:"measurements"`
	ComponentStats []ComponentRenderStat `json:"component_stats"`
}

// DetailedStats содержит агрегированную статистику монитора:
// счётчики, 95-е перцентили и самые медленные компоненты.
type DetailedStats struct {
	TotalMeasurements     int                   `json:"total_measurements"`
	CompletedMeasurements int                   `json:"completed_measurements"`
	ComponentCount        int                   `json:"component_count"`
	FilterP95MS           float64               `json:"filter_p95_ms"`
	APIP95MS              float64               `json:"api_p95_ms"`
	SlowestComponents     []ComponentRenderStat `json:"slowest_components"`
}

// CacheStats содержит производную статистику одного экземпляра кеша.
// Вычисляется по требованию и нигде не сохраняется.
type CacheStats struct {
	// Name содержит имя экземпляра кеша ("metrics", "newTickets" и т.д.).
	Name string `json:"name"`

	// Size содержит число живых (не истёкших) записей.
	Size int `json:"size"`

	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`

	// HitRate равно hits/(hits+misses); при нуле обращений равно 0.
	HitRate float64 `json:"hit_rate"`

	// AverageLookupMS содержит среднее время обращения к кешу в миллисекундах.
	AverageLookupMS float64 `json:"average_lookup_ms"`

	// PriorityDistribution содержит число живых записей по приоритетам.
	PriorityDistribution map[Priority]int `json:"priority_distribution"`

	// AverageTTLSeconds содержит средний TTL живых записей в секундах.
	AverageTTLSeconds float64 `json:"average_ttl_seconds"`
}

// SystemHealth содержит показатели хоста и процесса,
// собираемые как аналог platform performance entries.
type SystemHealth struct {
	TotalMemory  uint64    `json:"total_memory"`
	FreeMemory   uint64    `json:"free_memory"`
	HeapAlloc    uint64    `json:"heap_alloc"`
	NumGoroutine int       `json:"num_goroutine"`
	NumCPU       int       `json:"num_cpu"`
	CollectedAt  time.Time `json:"collected_at"`
}

// RemoteMetrics описывает ответ внешнего эндпоинта производительности.
// Все поля Data опциональны: отсутствие или несовпадение формы
// не является ошибкой, отчёт строится по локальным данным.
type RemoteMetrics struct {
	Success bool       `json:"success"`
	Data    RemoteData `json:"data"`
}

// RemoteData содержит опциональные секции внешнего ответа.
type RemoteData struct {
	FilterPerformance *RemoteFilterPerformance `json:"filter_performance,omitempty"`
	CacheStats        *RemoteCacheStats        `json:"cache_stats,omitempty"`
	SystemHealth      *RemoteSystemHealth      `json:"system_health,omitempty"`
}

// RemoteFilterPerformance содержит серверную статистику фильтрации.
type RemoteFilterPerformance struct {
	AverageMS    float64 `json:"average_ms"`
	RequestCount int64   `json:"request_count"`
}

// RemoteCacheStats содержит серверную статистику кеша.
type RemoteCacheStats struct {
	HitRate float64 `json:"hit_rate"`
}

// RemoteSystemHealth содержит серверную оценку состояния системы.
type RemoteSystemHealth struct {
	Status string `json:"status"`
}

// ExportEvent представляет событие аналитического экспорта:
// краткая выжимка отчёта, отправляемая внешним потребителям.
type ExportEvent struct {
	// TS содержит временную метку события в формате Unix timestamp.
	TS int64 `json:"ts"`

	// Kind содержит тип события ("report" или "cache").
	Kind string `json:"kind"`

	// Feeds содержит имена затронутых источников данных.
	Feeds []string `json:"feeds"`

	// HitRate содержит долю попаданий кеша на момент события.
	HitRate float64 `json:"hit_rate"`

	// APIResponseMS содержит среднее время ответа бэкенда в миллисекундах.
	APIResponseMS float64 `json:"api_response_ms"`

	// Hash содержит HMAC SHA256 подпись события для проверки целостности.
	Hash string `json:"hash,omitempty"`
}

// Reset очищает событие для повторного использования через пул объектов.
func (e *ExportEvent) Reset() {
	e.TS = 0
	e.Kind = ""
	e.Feeds = nil
	e.HitRate = 0
	e.APIResponseMS = 0
	e.Hash = ""
}

// ExportEventList содержит список событий экспорта.
type ExportEventList struct {
	Events []ExportEvent `json:"events"`
}
