// Package cache реализует in-memory кеш с динамическим TTL по приоритету данных
// и статистикой попаданий для мониторинга. Один экземпляр кеша соответствует
// одному логическому набору данных дашборда ("metrics", "newTickets" и т.д.).
//
// Истечение записей ленивое: просроченная запись удаляется при следующем чтении.
// Фонового сканирования нет, память ограничивается вместимостью экземпляра:
// при переполнении вытесняется запись с самым старым временем создания.
package cache

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/levinOo/helpdesk-telemetry/internal/models"
	"go.uber.org/zap"
)

// TTLTable задаёт время жизни записи для каждого приоритета.
// Таблица приходит из конфигурации: подстройка TTL не требует пересборки.
type TTLTable map[models.Priority]time.Duration

// DefaultTTLTable возвращает таблицу TTL по умолчанию.
func DefaultTTLTable() TTLTable {
	return TTLTable{
		models.PriorityHigh:   30 * time.Second,
		models.PriorityMedium: 120 * time.Second,
		models.PriorityLow:    300 * time.Second,
	}
}

type entry[V any] struct {
	value     V
	createdAt time.Time
	expiresAt time.Time
	priority  models.Priority
}

type settings struct {
	maxEntries int
	fixedTTL   time.Duration
	now        func() time.Time
}

// Option настраивает кеш при создании.
type Option func(*settings)

// WithMaxEntries ограничивает число записей. Значение 0 снимает ограничение.
func WithMaxEntries(n int) Option {
	return func(s *settings) {
		s.maxEntries = n
	}
}

// WithFixedTTL отключает динамический TTL: все записи живут указанное время
// независимо от приоритета.
func WithFixedTTL(d time.Duration) Option {
	return func(s *settings) {
		s.fixedTTL = d
	}
}

// WithClock заменяет источник времени. Используется в тестах
// для моделирования истечения записей.
func WithClock(now func() time.Time) Option {
	return func(s *settings) {
		s.now = now
	}
}

// Cache хранит записи одного логического набора данных.
// Все операции защищены мьютексом и безопасны для конкурентного использования.
// Get и Set никогда не возвращают ошибку: нехватка места решается
// детерминированным вытеснением, а не отказом.
type Cache[V any] struct {
	name   string
	logger *zap.SugaredLogger

	mu      sync.Mutex
	entries map[string]entry[V]
	table   TTLTable

	maxEntries int
	fixedTTL   time.Duration
	now        func() time.Time

	hits        int64
	misses      int64
	lookupTotal time.Duration
	lookupCount int64
}

// New создаёт кеш с указанным именем и таблицей TTL.
// Nil-таблица заменяется таблицей по умолчанию.
func New[V any](name string, table TTLTable, logger *zap.SugaredLogger, opts ...Option) *Cache[V] {
	s := settings{now: time.Now}
	for _, opt := range opts {
		opt(&s)
	}

	if table == nil {
		table = DefaultTTLTable()
	}

	return &Cache[V]{
		name:       name,
		logger:     logger,
		entries:    make(map[string]entry[V]),
		table:      table,
		maxEntries: s.maxEntries,
		fixedTTL:   s.fixedTTL,
		now:        s.now,
	}
}

// Name возвращает имя экземпляра кеша.
func (c *Cache[V]) Name() string {
	return c.name
}

// Get возвращает живую запись по ключу. Попадание увеличивает счётчик hits
// и учитывает длительность обращения в среднем времени. Отсутствующая или
// просроченная запись увеличивает misses; просроченная запись при этом
// удаляется (ленивое вытеснение).
func (c *Cache[V]) Get(key string) (V, bool) {
	start := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		c.misses++
		c.trackLookup(start)
		var zero V
		return zero, false
	}

	if !start.Before(e.expiresAt) {
		delete(c.entries, key)
		c.misses++
		c.trackLookup(start)
		var zero V
		return zero, false
	}

	c.hits++
	c.trackLookup(start)
	return e.value, true
}

// Set сохраняет значение с TTL, вычисленным по приоритету.
// Существующая запись с тем же ключом перезаписывается.
func (c *Cache[V]) Set(key string, value V, priority models.Priority) {
	c.SetWithTTL(key, value, priority, c.ttlFor(priority))
}

// SetWithTTL сохраняет значение с явно заданным TTL, минуя таблицу приоритетов.
// Неположительный TTL заменяется TTL приоритета.
func (c *Cache[V]) SetWithTTL(key string, value V, priority models.Priority, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.ttlFor(priority)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists {
		c.evictIfFull()
	}

	now := c.now()
	c.entries[key] = entry[V]{
		value:     value,
		createdAt: now,
		expiresAt: now.Add(ttl),
		priority:  priority,
	}
}

// GetOrFetch возвращает живую запись либо вызывает fetch и сохраняет результат.
// Ошибка fetch возвращается вызывающему без изменений, кеш при этом не меняется.
// Блокировка на время fetch не удерживается: конкурирующие вызовы могут
// выполнить fetch параллельно, последняя запись выигрывает.
func (c *Cache[V]) GetOrFetch(ctx context.Context, key string, priority models.Priority, fetch func(context.Context) (V, error)) (V, error) {
	if value, ok := c.Get(key); ok {
		return value, nil
	}

	value, err := fetch(ctx)
	if err != nil {
		var zero V
		return zero, err
	}

	c.Set(key, value, priority)
	return value, nil
}

// Stats возвращает производную статистику кеша. Метод не изменяет состояние:
// просроченные записи исключаются из подсчёта, но не удаляются.
func (c *Cache[V]) Stats() models.CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	stats := models.CacheStats{
		Name:                 c.name,
		Hits:                 c.hits,
		Misses:               c.misses,
		PriorityDistribution: make(map[models.Priority]int),
	}

	var ttlSum time.Duration
	for _, e := range c.entries {
		if !now.Before(e.expiresAt) {
			continue
		}
		stats.Size++
		stats.PriorityDistribution[e.priority]++
		ttlSum += e.expiresAt.Sub(e.createdAt)
	}

	if total := c.hits + c.misses; total > 0 {
		stats.HitRate = float64(c.hits) / float64(total)
	}
	if c.lookupCount > 0 {
		stats.AverageLookupMS = float64(c.lookupTotal) / float64(c.lookupCount) / float64(time.Millisecond)
	}
	if stats.Size > 0 {
		stats.AverageTTLSeconds = ttlSum.Seconds() / float64(stats.Size)
	}

	return stats
}

// Clear удаляет все записи экземпляра. Счётчики hits/misses сохраняются:
// hit rate трактуется как накопительная метрика сессии, и ручная очистка
// кеша остаётся видимой на графике как провал попаданий.
func (c *Cache[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]entry[V])
}

// Len возвращает число записей, включая ещё не удалённые просроченные.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Keys возвращает отсортированный список ключей живых записей.
func (c *Cache[V]) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	keys := make([]string, 0, len(c.entries))
	for key, e := range c.entries {
		if now.Before(e.expiresAt) {
			keys = append(keys, key)
		}
	}

	sort.Strings(keys)
	return keys
}

func (c *Cache[V]) ttlFor(priority models.Priority) time.Duration {
	if c.fixedTTL > 0 {
		return c.fixedTTL
	}
	if ttl, ok := c.table[priority]; ok {
		return ttl
	}
	return c.table[models.PriorityMedium]
}

// evictIfFull вытесняет запись с самым старым createdAt, когда достигнута
// вместимость. Жертва детерминирована: при равном времени создания
// выбирается лексикографически меньший ключ.
func (c *Cache[V]) evictIfFull() {
	if c.maxEntries <= 0 || len(c.entries) < c.maxEntries {
		return
	}

	var victim string
	var oldest time.Time
	for key, e := range c.entries {
		if victim == "" || e.createdAt.Before(oldest) || (e.createdAt.Equal(oldest) && key < victim) {
			victim = key
			oldest = e.createdAt
		}
	}

	if victim != "" {
		delete(c.entries, victim)
		c.logger.Debugw("Cache entry evicted", "cache", c.name, "key", victim)
	}
}

func (c *Cache[V]) trackLookup(start time.Time) {
	c.lookupTotal += c.now().Sub(start)
	c.lookupCount++
}
