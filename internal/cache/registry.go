package cache

import (
	"sort"
	"sync"

	"github.com/levinOo/helpdesk-telemetry/internal/models"
)

// Instance объединяет операции экземпляра кеша, не зависящие от типа значения.
// Через этот интерфейс обобщённые кеши попадают в реестр для мониторинга.
type Instance interface {
	Name() string
	Stats() models.CacheStats
	Clear()
}

// Registry хранит именованные экземпляры кеша и отдаёт их агрегированную
// статистику для мониторинга.
type Registry struct {
	mu        sync.Mutex
	instances map[string]Instance
}

// NewRegistry создаёт пустой реестр.
func NewRegistry() *Registry {
	return &Registry{instances: make(map[string]Instance)}
}

// Register добавляет экземпляр кеша в реестр.
// Повторная регистрация с тем же именем перезаписывает предыдущую.
func (r *Registry) Register(inst Instance) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.instances[inst.Name()] = inst
}

// Get возвращает экземпляр по имени.
func (r *Registry) Get(name string) (Instance, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	inst, ok := r.instances[name]
	return inst, ok
}

// StatsAll возвращает статистику всех экземпляров, отсортированную по имени.
func (r *Registry) StatsAll() []models.CacheStats {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]models.CacheStats, 0, len(r.instances))
	for _, inst := range r.instances {
		out = append(out, inst.Stats())
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// ClearAll очищает все зарегистрированные экземпляры.
func (r *Registry) ClearAll() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, inst := range r.instances {
		inst.Clear()
	}
}
