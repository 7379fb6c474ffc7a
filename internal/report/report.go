// Package report собирает отчёты монитора, опционально обогащая их данными
// внешнего эндпоинта производительности. Недоступность эндпоинта или
// неожиданная форма ответа никогда не срывают генерацию отчёта:
// отчёт строится по локально вычисленным значениям.
package report

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/levinOo/helpdesk-telemetry/internal/cache"
	"github.com/levinOo/helpdesk-telemetry/internal/models"
	"github.com/levinOo/helpdesk-telemetry/internal/monitor"
	"go.uber.org/zap"
)

// remoteTimeout ограничивает ожидание внешнего эндпоинта:
// отчёт не должен зависать из-за чужой деградации.
const remoteTimeout = 2 * time.Second

// remoteKey — ключ единственной записи в кеше внешних метрик.
const remoteKey = "latest"

// Reporter генерирует отчёты, объединяя локальные измерения
// с внешними метриками производительности.
type Reporter struct {
	monitor    *monitor.Monitor
	client     *resty.Client
	remote     *cache.Cache[models.RemoteMetrics]
	metricsURL string
	logger     *zap.SugaredLogger
}

// NewReporter создаёт репортёр. Пустой metricsURL отключает обращение
// к внешнему эндпоинту. Nil-кеш отключает кеширование ответов: каждый
// отчёт обращается к эндпоинту заново.
func NewReporter(m *monitor.Monitor, metricsURL string, remote *cache.Cache[models.RemoteMetrics], logger *zap.SugaredLogger) *Reporter {
	client := resty.New().
		SetTimeout(remoteTimeout).
		SetHeader("Accept", "application/json")

	return &Reporter{
		monitor:    m,
		client:     client,
		remote:     remote,
		metricsURL: metricsURL,
		logger:     logger,
	}
}

// Generate строит отчёт. Внешние метрики подмешиваются, только если
// эндпоинт ответил успешно и форма ответа распозналась; любой сбой
// деградирует до локального отчёта с предупреждением в логе.
func (r *Reporter) Generate(ctx context.Context) models.Report {
	return r.monitor.GenerateReport(r.fetchRemote(ctx))
}

func (r *Reporter) fetchRemote(ctx context.Context) *models.RemoteMetrics {
	if r.metricsURL == "" {
		return nil
	}

	var remote models.RemoteMetrics
	var err error

	if r.remote != nil {
		remote, err = r.remote.GetOrFetch(ctx, remoteKey, models.PriorityHigh, r.doFetch)
	} else {
		remote, err = r.doFetch(ctx)
	}
	if err != nil {
		r.logger.Warnw("External metrics unavailable, using local values", "url", r.metricsURL, "error", err)
		return nil
	}

	if !remote.Success {
		r.logger.Debugw("External metrics endpoint reported failure", "url", r.metricsURL)
		return nil
	}

	return &remote
}

func (r *Reporter) doFetch(ctx context.Context) (models.RemoteMetrics, error) {
	var remote models.RemoteMetrics

	resp, err := r.client.R().SetContext(ctx).Get(r.metricsURL)
	if err != nil {
		return remote, fmt.Errorf("request failed: %w", err)
	}

	if resp.StatusCode() != http.StatusOK {
		return remote, fmt.Errorf("unexpected status %d", resp.StatusCode())
	}

	if err := json.Unmarshal(resp.Body(), &remote); err != nil {
		return remote, fmt.Errorf("malformed payload: %w", err)
	}

	return remote, nil
}
