// Package export реализует аналитический экспорт телеметрии.
// Использует паттерн Observer для доставки событий различным потребителям
// (файл, внешний HTTP-сервис).
//
// Экспорт включается только production-флагом конфигурации: вне production
// все операции пакета являются no-op, телеметрия не покидает процесс.
package export

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/levinOo/helpdesk-telemetry/internal/models"
	"github.com/levinOo/helpdesk-telemetry/internal/pool"
	"github.com/mailru/easyjson"
	"go.uber.org/zap"
)

// Consumer определяет интерфейс потребителя событий экспорта.
// Реализации обрабатывают события различными способами
// (запись в файл, отправка по HTTP и т.д.).
type Consumer interface {
	// Update обрабатывает одно событие экспорта.
	Update(event models.ExportEvent)
}

// Notifier координирует доставку событий зарегистрированным потребителям.
type Notifier struct {
	clients []Consumer
}

// RegisterClient добавляет нового потребителя в список получателей.
func (n *Notifier) RegisterClient(c Consumer) {
	n.clients = append(n.clients, c)
}

// NotifyClients отправляет событие всем зарегистрированным потребителям.
func (n *Notifier) NotifyClients(event models.ExportEvent) {
	for _, client := range n.clients {
		client.Update(event)
	}
}

// FileExporter записывает события экспорта в JSON файл.
type FileExporter struct {
	path   string
	logger *zap.SugaredLogger
}

// NewFileExporter создаёт потребителя для записи в указанный файл.
func NewFileExporter(path string, logger *zap.SugaredLogger) *FileExporter {
	return &FileExporter{path: path, logger: logger}
}

// Update добавляет событие в файл: читает накопленный список,
// дописывает событие и перезаписывает файл. Отсутствующий или пустой
// файл трактуется как пустой список. Пустой путь отключает запись.
func (f *FileExporter) Update(event models.ExportEvent) {
	if f.path == "" {
		return
	}

	var list models.ExportEventList
	fileData, err := os.ReadFile(f.path)
	if err != nil && !os.IsNotExist(err) {
		f.logger.Errorw("Failed to read export file", "path", f.path, "error", err)
		return
	}

	if len(fileData) > 0 {
		if err := easyjson.Unmarshal(fileData, &list); err != nil {
			f.logger.Errorw("Failed to unmarshal export file", "path", f.path, "error", err)
			return
		}
	}

	list.Events = append(list.Events, event)

	jsonData, err := easyjson.Marshal(list)
	if err != nil {
		f.logger.Errorw("Failed to marshal export events", "error", err)
		return
	}

	if err := os.WriteFile(f.path, jsonData, 0644); err != nil {
		f.logger.Errorw("Failed to write export file", "path", f.path, "error", err)
	}
}

// URLExporter отправляет события экспорта на внешний HTTP endpoint.
type URLExporter struct {
	url    string
	client *resty.Client
	logger *zap.SugaredLogger
}

// NewURLExporter создаёт потребителя для отправки на указанный URL.
func NewURLExporter(url string, logger *zap.SugaredLogger) *URLExporter {
	return &URLExporter{
		url:    url,
		client: resty.New().SetTimeout(5 * time.Second),
		logger: logger,
	}
}

// Update отправляет событие методом POST в формате JSON.
// Пустой URL отключает отправку. Сетевые ошибки логируются и не
// распространяются: экспорт не должен влиять на работу сервера.
func (u *URLExporter) Update(event models.ExportEvent) {
	if u.url == "" {
		return
	}

	jsonData, err := easyjson.Marshal(event)
	if err != nil {
		u.logger.Errorw("Failed to marshal export event", "error", err)
		return
	}

	resp, err := u.client.R().
		SetHeader("Content-Type", "application/json").
		SetBody(jsonData).
		Post(u.url)
	if err != nil {
		u.logger.Errorw("Failed to send export event", "url", u.url, "error", err)
		return
	}

	u.logger.Debugw("Export event sent", "url", u.url, "status", resp.StatusCode())
}

// Exporter — точка входа аналитического экспорта. Хранит флаг включения,
// ключ подписи и список потребителей. События переиспользуются через пул.
type Exporter struct {
	enabled  bool
	key      string
	notifier *Notifier
	events   *pool.Pool[*models.ExportEvent]
	now      func() time.Time
	logger   *zap.SugaredLogger
}

// NewExporter создаёт экспортёр. При enabled=false все операции — no-op.
// Пустые path и url отключают соответствующих потребителей,
// пустой key отключает подпись событий.
func NewExporter(enabled bool, key, path, url string, logger *zap.SugaredLogger) *Exporter {
	notifier := &Notifier{}
	notifier.RegisterClient(NewFileExporter(path, logger))
	notifier.RegisterClient(NewURLExporter(url, logger))

	return &Exporter{
		enabled:  enabled,
		key:      key,
		notifier: notifier,
		events: pool.New(func() *models.ExportEvent {
			return &models.ExportEvent{}
		}),
		now:    time.Now,
		logger: logger,
	}
}

// Enabled сообщает, включён ли экспорт.
func (e *Exporter) Enabled() bool {
	return e.enabled
}

// ExportReport публикует выжимку отчёта и статистики кешей.
// Вне production-режима вызов ничего не делает.
func (e *Exporter) ExportReport(rep models.Report, stats []models.CacheStats) {
	if !e.enabled {
		return
	}

	event := e.events.Get()
	defer e.events.Put(event)

	event.TS = e.now().Unix()
	event.Kind = "report"
	event.APIResponseMS = rep.Summary.APIResponseTimeMS

	var hitRateSum float64
	for _, s := range stats {
		event.Feeds = append(event.Feeds, s.Name)
		hitRateSum += s.HitRate
	}
	if len(stats) > 0 {
		event.HitRate = hitRateSum / float64(len(stats))
	}

	event.Hash = e.sign(*event)
	e.notifier.NotifyClients(*event)
}

// sign возвращает HMAC SHA256 подпись события в hex-кодировке.
// Подпись считается по JSON-представлению события без поля hash.
// Пустой ключ отключает подпись.
func (e *Exporter) sign(event models.ExportEvent) string {
	if e.key == "" {
		return ""
	}

	event.Hash = ""
	payload, err := easyjson.Marshal(event)
	if err != nil {
		e.logger.Errorw("Failed to marshal event for signing", "error", err)
		return ""
	}

	mac := hmac.New(sha256.New, []byte(e.key))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}
