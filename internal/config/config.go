// Package config предоставляет функциональность для управления конфигурацией сервера телеметрии.
// Поддерживает загрузку настроек из флагов командной строки, JSON-файла конфигурации
// и переменных окружения, с приоритетом переменных окружения над остальными источниками.
//
// Таблица TTL по приоритетам кеша намеренно вынесена в конфигурацию:
// оперативная подстройка времени жизни записей не должна требовать пересборки.
package config

import (
	"encoding/json"
	"flag"
	"log"
	"os"

	"github.com/caarlos0/env/v11"
)

// ConfigStruct описывает JSON-файл конфигурации сервера.
type ConfigStruct struct {
	Addr           string `json:"address"`
	ReportInterval int    `json:"report_interval"`
	MetricsURL     string `json:"metrics_url"`
	ExportFile     string `json:"export_file"`
	ExportURL      string `json:"export_url"`
	ExportEnabled  bool   `json:"export_enabled"`
	Key            string `json:"key"`
	TTLHigh        int    `json:"ttl_high"`
	TTLMedium      int    `json:"ttl_medium"`
	TTLLow         int    `json:"ttl_low"`
	CacheCapacity  int    `json:"cache_capacity"`
	MonitorEnabled bool   `json:"monitor_enabled"`
}

// Config содержит все параметры конфигурации сервера телеметрии.
// Значения загружаются из флагов командной строки и файла конфигурации,
// после чего перекрываются переменными окружения (указаны в тегах env).
type Config struct {
	// Addr задает адрес и порт HTTP-сервера (например, "localhost:8080").
	Addr string `env:"ADDRESS"`

	// ReportInterval определяет интервал в секундах между автоматическими
	// генерациями отчётов. Значение 0 отключает периодические отчёты.
	ReportInterval int `env:"REPORT_INTERVAL"`

	// MetricsURL содержит URL внешнего эндпоинта производительности
	// (GET /api/performance/metrics). Пустое значение отключает слияние
	// внешних метрик в отчёты.
	MetricsURL string `env:"METRICS_URL"`

	// ExportFile указывает путь к файлу для записи событий аналитического экспорта.
	ExportFile string `env:"EXPORT_FILE"`

	// ExportURL содержит URL для отправки событий экспорта на внешний сервис.
	ExportURL string `env:"EXPORT_URL"`

	// ExportEnabled включает аналитический экспорт. Вне production-окружения
	// экспорт остаётся выключенным и все его операции являются no-op.
	ExportEnabled bool `env:"EXPORT_ENABLED"`

	// Key содержит секретный ключ для подписи событий экспорта HMAC SHA256.
	// Пустое значение отключает подпись.
	Key string `env:"KEY"`

	// TTLHigh задает TTL в секундах для записей с высоким приоритетом
	// (волатильные данные, например список новых тикетов).
	TTLHigh int `env:"TTL_HIGH"`

	// TTLMedium задает TTL в секундах для записей со средним приоритетом.
	TTLMedium int `env:"TTL_MEDIUM"`

	// TTLLow задает TTL в секундах для записей с низким приоритетом
	// (стабильные данные, например статус системы).
	TTLLow int `env:"TTL_LOW"`

	// CacheCapacity ограничивает число записей в каждом экземпляре кеша.
	// При переполнении вытесняется запись с самым старым createdAt.
	CacheCapacity int `env:"CACHE_CAPACITY"`

	// MonitorEnabled включает сбор измерений. Выключенный монитор
	// не добавляет накладных расходов.
	MonitorEnabled bool `env:"MONITOR_ENABLED"`

	ConfigFilePath string `env:"CONFIG"`
}

func NewConfigStruct() *ConfigStruct {
	return &ConfigStruct{}
}

// GetConfig загружает и возвращает конфигурацию сервера.
// Сначала обрабатываются флаги командной строки, затем файл конфигурации,
// затем переменные окружения. Переменные окружения имеют высший приоритет.
//
// Поддерживаемые флаги:
//
//	-a:  адрес сервера (по умолчанию "localhost:8080")
//	-i:  интервал генерации отчётов в секундах (по умолчанию 30)
//	-m:  URL внешнего эндпоинта метрик (по умолчанию "")
//	-p:  путь к файлу экспорта (по умолчанию "./analytics.json")
//	-u:  URL для экспорта (по умолчанию "")
//	-e:  включить экспорт (по умолчанию false)
//	-k:  ключ HMAC (по умолчанию "")
//	-th: TTL высокого приоритета в секундах (по умолчанию 30)
//	-tm: TTL среднего приоритета в секундах (по умолчанию 120)
//	-tl: TTL низкого приоритета в секундах (по умолчанию 300)
//	-s:  вместимость кеша (по умолчанию 256)
//	-t:  включить монитор (по умолчанию true)
//
// Соответствующие переменные окружения:
//
//	ADDRESS, REPORT_INTERVAL, METRICS_URL, EXPORT_FILE, EXPORT_URL,
//	EXPORT_ENABLED, KEY, TTL_HIGH, TTL_MEDIUM, TTL_LOW,
//	CACHE_CAPACITY, MONITOR_ENABLED
func GetConfig() (Config, error) {
	configStruct := NewConfigStruct()

	addrFlag := flag.String("a", "localhost:8080", "HTTP server address")
	reportIntFlag := flag.Int("i", 30, "report interval in seconds")
	metricsURLFlag := flag.String("m", "", "external performance metrics URL")
	exportFileFlag := flag.String("p", "./analytics.json", "analytics export file path")
	exportURLFlag := flag.String("u", "", "analytics export url")
	exportEnabledFlag := flag.Bool("e", false, "enable analytics export")
	keyFlag := flag.String("k", "", "hash key")
	ttlHighFlag := flag.Int("th", 30, "high priority TTL in seconds")
	ttlMediumFlag := flag.Int("tm", 120, "medium priority TTL in seconds")
	ttlLowFlag := flag.Int("tl", 300, "low priority TTL in seconds")
	capacityFlag := flag.Int("s", 256, "max entries per cache instance")
	monitorFlag := flag.Bool("t", true, "enable performance monitor")
	configPathFlag := flag.String("config", "", "path to config file")

	flag.Parse()

	configPath := getConfigPath(*configPathFlag, os.Getenv("CONFIG"))
	if configPath != "" {
		data, err := os.Open(configPath)
		if err != nil {
			log.Printf("Не удалось открыть файл конфигурации: %v", err)
		} else {
			if err := json.NewDecoder(data).Decode(configStruct); err != nil {
				log.Printf("Не удалось разобрать файл конфигурации: %v", err)
			}
			data.Close()
		}
	}

	cfg := Config{
		Addr:           getString(*addrFlag, configStruct.Addr),
		ReportInterval: getInt(*reportIntFlag, configStruct.ReportInterval),
		MetricsURL:     getString(*metricsURLFlag, configStruct.MetricsURL),
		ExportFile:     getString(*exportFileFlag, configStruct.ExportFile),
		ExportURL:      getString(*exportURLFlag, configStruct.ExportURL),
		ExportEnabled:  *exportEnabledFlag || configStruct.ExportEnabled,
		Key:            getString(*keyFlag, configStruct.Key),
		TTLHigh:        getInt(*ttlHighFlag, configStruct.TTLHigh),
		TTLMedium:      getInt(*ttlMediumFlag, configStruct.TTLMedium),
		TTLLow:         getInt(*ttlLowFlag, configStruct.TTLLow),
		CacheCapacity:  getInt(*capacityFlag, configStruct.CacheCapacity),
		MonitorEnabled: *monitorFlag || configStruct.MonitorEnabled,
		ConfigFilePath: configPath,
	}

	if err := env.Parse(&cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// getString возвращает значение флага, если оно непустое,
// иначе возвращает значение из файла конфигурации.
func getString(flagValue, configValue string) string {
	if flagValue != "" {
		return flagValue
	}
	return configValue
}

// getInt возвращает значение флага, если оно ненулевое,
// иначе возвращает значение из файла конфигурации.
func getInt(flagValue, configValue int) int {
	if flagValue != 0 {
		return flagValue
	}
	return configValue
}

func getConfigPath(flagValue, envValue string) string {
	if flagValue != "" {
		return flagValue
	}
	return envValue
}
