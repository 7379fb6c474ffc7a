// Package handler реализует HTTP-интерфейс сервера телеметрии:
// приём измерений от дашборда, выдачу отчётов и статистики кешей,
// ручные действия очистки.
package handler

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi"
	"github.com/levinOo/helpdesk-telemetry/internal/cache"
	"github.com/levinOo/helpdesk-telemetry/internal/export"
	"github.com/levinOo/helpdesk-telemetry/internal/logger"
	"github.com/levinOo/helpdesk-telemetry/internal/models"
	"github.com/levinOo/helpdesk-telemetry/internal/monitor"
	"github.com/levinOo/helpdesk-telemetry/internal/pool"
	"github.com/levinOo/helpdesk-telemetry/internal/report"
	"go.uber.org/zap"
)

// Components объединяет зависимости HTTP-слоя.
type Components struct {
	Monitor  *monitor.Monitor
	Registry *cache.Registry
	Reporter *report.Reporter
	Exporter *export.Exporter
}

// NewRouter создаёт маршрутизатор сервера телеметрии.
func NewRouter(c Components, sugar *zap.SugaredLogger) *chi.Mux {
	measurePool := pool.New[*models.Measurement](func() *models.Measurement {
		return &models.Measurement{}
	})

	r := chi.NewRouter()

	r.Get("/", LoggerFuncServer(LatestReportHandler(c.Monitor), sugar))
	r.Get("/ping", LoggerFuncServer(PingHandler(), sugar))

	r.Route("/measure", func(r chi.Router) {
		r.Post("/", LoggerFuncServer(DecompressMiddleware(MeasureHandler(c.Monitor, measurePool)), sugar))
	})
	r.Post("/measures", LoggerFuncServer(DecompressMiddleware(MeasuresBatchHandler(c.Monitor)), sugar))
	r.Post("/render", LoggerFuncServer(DecompressMiddleware(RenderHandler(c.Monitor)), sugar))

	r.Route("/report", func(r chi.Router) {
		r.Get("/", LoggerFuncServer(LatestReportHandler(c.Monitor), sugar))
		r.Post("/", LoggerFuncServer(GenerateReportHandler(c), sugar))
	})
	r.Get("/reports", LoggerFuncServer(ReportsHandler(c.Monitor), sugar))
	r.Get("/stats", LoggerFuncServer(StatsHandler(c.Monitor), sugar))
	r.Get("/system", LoggerFuncServer(SystemHandler(c.Monitor), sugar))

	r.Route("/cache", func(r chi.Router) {
		r.Get("/", LoggerFuncServer(CacheStatsHandler(c.Registry), sugar))
		r.Get("/{name}", LoggerFuncServer(CacheInstanceHandler(c.Registry), sugar))
	})

	r.Route("/clear", func(r chi.Router) {
		r.Post("/metrics", LoggerFuncServer(ClearMetricsHandler(c.Monitor), sugar))
		r.Post("/reports", LoggerFuncServer(ClearReportsHandler(c.Monitor), sugar))
		r.Post("/cache", LoggerFuncServer(ClearCacheHandler(c.Registry), sugar))
		r.Post("/cache/{name}", LoggerFuncServer(ClearCacheInstanceHandler(c.Registry), sugar))
	})

	return r
}

// LoggerFuncServer оборачивает обработчик логированием запроса и ответа.
func LoggerFuncServer(h http.Handler, sugar *zap.SugaredLogger) http.HandlerFunc {
	logFn := func(rw http.ResponseWriter, r *http.Request) {
		start := time.Now()

		responseData := &logger.ResponseData{
			Size:   0,
			Status: 0,
		}
		lw := logger.LoggingRW{
			ResponseWriter: rw,
			ResponseData:   responseData,
		}

		h.ServeHTTP(&lw, r)

		dur := time.Since(start)

		sugar.Infoln(
			"uri", r.RequestURI,
			"method", r.Method,
			"duration", dur,
			"status", responseData.Status,
			"size", responseData.Size,
		)
	}
	return http.HandlerFunc(logFn)
}

// DecompressMiddleware распаковывает gzip-тело запроса, если оно сжато.
func DecompressMiddleware(h http.Handler) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Content-Encoding") == "gzip" {
			gz, err := gzip.NewReader(r.Body)
			if err != nil {
				http.Error(rw, "Failed to decompress gzip body", http.StatusBadRequest)
				return
			}
			defer gz.Close()

			body, err := io.ReadAll(gz)
			if err != nil {
				http.Error(rw, "Failed to read decompressed body", http.StatusInternalServerError)
				return
			}

			r.Body = io.NopCloser(bytes.NewReader(body))
			r.ContentLength = int64(len(body))
		}
		h.ServeHTTP(rw, r)
	}
}

func PingHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(http.StatusOK)
		rw.Write([]byte("OK"))
	}
}

// MeasureHandler принимает одно завершённое измерение от дашборда.
func MeasureHandler(mon *monitor.Monitor, measurePool *pool.Pool[*models.Measurement]) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		meas := measurePool.Get()
		defer measurePool.Put(meas)

		if err := json.NewDecoder(r.Body).Decode(meas); err != nil {
			http.Error(rw, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
			return
		}

		if meas.Name == "" {
			http.Error(rw, "Measurement name is empty", http.StatusBadRequest)
			return
		}

		if meas.Duration == 0 && !meas.EndedAt.IsZero() && meas.EndedAt.After(meas.StartedAt) {
			meas.Duration = meas.EndedAt.Sub(meas.StartedAt)
		}

		mon.Record(*meas)
		writeStatusOK(rw, r)
	}
}

// MeasuresBatchHandler принимает пакет завершённых измерений.
func MeasuresBatchHandler(mon *monitor.Monitor) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		var list []models.Measurement

		if err := json.NewDecoder(r.Body).Decode(&list); err != nil {
			http.Error(rw, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
			return
		}

		for _, meas := range list {
			if meas.Name == "" {
				continue
			}
			if meas.Duration == 0 && !meas.EndedAt.IsZero() && meas.EndedAt.After(meas.StartedAt) {
				meas.Duration = meas.EndedAt.Sub(meas.StartedAt)
			}
			mon.Record(meas)
		}

		writeStatusOK(rw, r)
	}
}

// RenderHandler принимает один замер рендеринга компонента.
func RenderHandler(mon *monitor.Monitor) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		var sample models.RenderSample

		if err := json.NewDecoder(r.Body).Decode(&sample); err != nil {
			http.Error(rw, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
			return
		}

		if sample.Name == "" {
			http.Error(rw, "Component name is empty", http.StatusBadRequest)
			return
		}

		mon.RecordComponentRender(sample.Name, sample.Duration)
		writeStatusOK(rw, r)
	}
}

// LatestReportHandler возвращает последний сгенерированный отчёт.
func LatestReportHandler(mon *monitor.Monitor) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		reports := mon.Reports()
		if len(reports) == 0 {
			http.Error(rw, "No reports generated yet", http.StatusNotFound)
			return
		}

		writeJSON(rw, reports[len(reports)-1])
	}
}

// GenerateReportHandler генерирует отчёт, экспортирует его и возвращает.
func GenerateReportHandler(c Components) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		rep := c.Reporter.Generate(r.Context())
		c.Exporter.ExportReport(rep, c.Registry.StatsAll())
		writeJSON(rw, rep)
	}
}

// ReportsHandler возвращает историю отчётов, от старых к новым.
func ReportsHandler(mon *monitor.Monitor) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		writeJSON(rw, mon.Reports())
	}
}

// StatsHandler возвращает детальную статистику монитора.
func StatsHandler(mon *monitor.Monitor) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		writeJSON(rw, mon.DetailedStats())
	}
}

// SystemHandler возвращает показатели хоста и процесса.
func SystemHandler(mon *monitor.Monitor) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		writeJSON(rw, mon.SystemMetrics())
	}
}

// CacheStatsHandler возвращает статистику всех экземпляров кеша.
func CacheStatsHandler(reg *cache.Registry) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		writeJSON(rw, reg.StatsAll())
	}
}

// CacheInstanceHandler возвращает статистику одного экземпляра кеша.
func CacheInstanceHandler(reg *cache.Registry) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "name")

		inst, ok := reg.Get(name)
		if !ok {
			http.Error(rw, "Unknown cache instance", http.StatusNotFound)
			return
		}

		writeJSON(rw, inst.Stats())
	}
}

func ClearMetricsHandler(mon *monitor.Monitor) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		mon.Clear()
		writeStatusOK(rw, r)
	}
}

func ClearReportsHandler(mon *monitor.Monitor) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		mon.ClearReports()
		writeStatusOK(rw, r)
	}
}

func ClearCacheHandler(reg *cache.Registry) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		reg.ClearAll()
		writeStatusOK(rw, r)
	}
}

func ClearCacheInstanceHandler(reg *cache.Registry) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "name")

		inst, ok := reg.Get(name)
		if !ok {
			http.Error(rw, "Unknown cache instance", http.StatusNotFound)
			return
		}

		inst.Clear()
		writeStatusOK(rw, r)
	}
}

func writeJSON(rw http.ResponseWriter, v any) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(http.StatusOK)
	json.NewEncoder(rw).Encode(v)
}

func writeStatusOK(rw http.ResponseWriter, r *http.Request) {
	accept := r.Header.Get("Accept")

	if strings.Contains(accept, "application/json") {
		rw.Header().Set("Content-Type", "application/json")
		rw.WriteHeader(http.StatusOK)
		json.NewEncoder(rw).Encode(map[string]string{"status": "ok"})
		return
	}

	rw.WriteHeader(http.StatusOK)
	rw.Write([]byte("OK"))
}
