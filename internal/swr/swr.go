// Package swr реализует конечный автомат "stale-while-revalidate" для одного
// источника данных дашборда: пока фоновое обновление в полёте, потребителю
// продолжают отдаваться последние хорошие данные, а не пустой экран.
//
// Автомат различает пять состояний: Empty (данных нет), Loading (первая
// загрузка), Cached (показываются сохранённые данные), Revalidating
// (показываются сохранённые данные, обновление в полёте) и Fresh
// (только что полученные данные).
//
// Завершения обновлений защищены монотонным токеном: при гонке двух
// обновлений устаревший ответ не может перезаписать более новый.
package swr

import (
	"sync"
	"time"
)

// State определяет состояние источника данных.
type State string

// Константы состояний
const (
	StateEmpty        State = "empty"
	StateLoading      State = "loading"
	StateCached       State = "cached"
	StateRevalidating State = "revalidating"
	StateFresh        State = "fresh"
)

// defaultSettleWindow задаёт окно после прихода свежих данных, в течение
// которого индикатор "обновлено" остаётся поднятым. Гасит мерцание
// в таблице рейтинга, когда новые данные структурно совпадают со старыми.
const defaultSettleWindow = 500 * time.Millisecond

// Option настраивает источник при создании.
type Option func(*options)

type options struct {
	settle time.Duration
	now    func() time.Time
}

// WithSettleWindow задаёт длительность окна успокоения индикатора.
func WithSettleWindow(d time.Duration) Option {
	return func(o *options) {
		o.settle = d
	}
}

// WithClock заменяет источник времени. Используется в тестах.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

// Feed хранит состояние одного источника данных.
// Все операции защищены мьютексом.
type Feed[T any] struct {
	mu sync.Mutex

	name    string
	state   State
	data    T
	hasData bool
	lastErr error

	// seq — последний выданный токен обновления. Завершение с токеном,
	// отличным от seq, игнорируется: его обогнало более новое обновление.
	seq      uint64
	inFlight bool

	updatedAt   time.Time
	settleUntil time.Time
	settle      time.Duration
	now         func() time.Time
}

// View представляет снимок состояния источника для рендеринга.
// Data валидно только при HasData. Пока сохранённые данные есть
// и обновление в полёте, HasData остаётся истинным: потребитель
// никогда не показывает пустое состояние во время ревалидации.
type View[T any] struct {
	Name      string
	State     State
	Data      T
	HasData   bool
	Updating  bool
	Stale     bool
	Settling  bool
	Err       error
	UpdatedAt time.Time
}

// NewFeed создаёт источник в состоянии Empty.
func NewFeed[T any](name string, opts ...Option) *Feed[T] {
	o := options{settle: defaultSettleWindow, now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	return &Feed[T]{
		name:   name,
		state:  StateEmpty,
		settle: o.settle,
		now:    o.now,
	}
}

// Name возвращает имя источника.
func (f *Feed[T]) Name() string {
	return f.name
}

// Seed заполняет источник данными, взятыми из кеша при монтировании.
// Допустим только из состояния Empty; иначе вызов игнорируется.
func (f *Feed[T]) Seed(data T) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.state != StateEmpty {
		return
	}

	f.data = data
	f.hasData = true
	f.state = StateCached
	f.updatedAt = f.now()
}

// Begin регистрирует начало обновления и возвращает его токен.
// Без сохранённых данных источник переходит в Loading, с данными —
// в Revalidating: показ сохранённых данных продолжается.
func (f *Feed[T]) Begin() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.seq++
	f.inFlight = true

	if f.hasData {
		f.state = StateRevalidating
	} else {
		f.state = StateLoading
	}

	return f.seq
}

// Complete завершает обновление свежими данными. Возвращает false, если
// токен устарел (обновление обогнали или источник был очищен) — такие
// ответы игнорируются и не перезаписывают более новые данные.
func (f *Feed[T]) Complete(token uint64, data T) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if token != f.seq || !f.inFlight {
		return false
	}

	f.data = data
	f.hasData = true
	f.lastErr = nil
	f.inFlight = false
	f.state = StateFresh

	now := f.now()
	f.updatedAt = now
	f.settleUntil = now.Add(f.settle)

	return true
}

// Fail завершает обновление ошибкой. Сохранённые данные не затрагиваются:
// с данными источник возвращается в Cached, без данных — в Empty,
// где ошибка остаётся доступной для показа повторной попытки.
// Устаревший токен игнорируется, возвращается false.
func (f *Feed[T]) Fail(token uint64, err error) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if token != f.seq || !f.inFlight {
		return false
	}

	f.inFlight = false
	f.lastErr = err

	if f.hasData {
		f.state = StateCached
	} else {
		f.state = StateEmpty
	}

	return true
}

// Clear переводит источник в Empty — единственный путь туда из любого
// состояния. Естественное истечение TTL само по себе никогда не очищает
// показываемые данные. Токен повышается, чтобы завершение обновления,
// начатого до очистки, было проигнорировано.
func (f *Feed[T]) Clear() {
	f.mu.Lock()
	defer f.mu.Unlock()

	var zero T
	f.data = zero
	f.hasData = false
	f.lastErr = nil
	f.inFlight = false
	f.state = StateEmpty
	f.seq++
	f.updatedAt = time.Time{}
	f.settleUntil = time.Time{}
}

// Snapshot возвращает снимок состояния для рендеринга.
func (f *Feed[T]) Snapshot() View[T] {
	f.mu.Lock()
	defer f.mu.Unlock()

	return View[T]{
		Name:      f.name,
		State:     f.state,
		Data:      f.data,
		HasData:   f.hasData,
		Updating:  f.inFlight,
		Stale:     f.state == StateRevalidating,
		Settling:  f.state == StateFresh && f.now().Before(f.settleUntil),
		Err:       f.lastErr,
		UpdatedAt: f.updatedAt,
	}
}
