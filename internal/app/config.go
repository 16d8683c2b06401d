package app

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Поддерживаемые драйверы хранилища.
const (
	StorageDriverMemory   = "memory"
	StorageDriverPostgres = "postgres"
)

// Config описывает настройки запуска сервиса заказов.
type Config struct {
	HTTPAddr    string
	MetricsAddr string

	StorageDriver string
	PostgresDSN   string
	AutoMigrate   bool

	KafkaBrokers string

	OutboxPollInterval time.Duration
	OutboxBatchSize    int
	OutboxMaxAttempts  int
}

// DefaultConfig возвращает базовую конфигурацию: in-memory хранилище,
// API на :8080 и метрики на :9090.
func DefaultConfig() Config {
	return Config{
		HTTPAddr:           ":8080",
		MetricsAddr:        ":9090",
		StorageDriver:      StorageDriverMemory,
		OutboxPollInterval: 2 * time.Second,
		OutboxBatchSize:    50,
		OutboxMaxAttempts:  5,
	}
}

// ConfigFromEnv собирает конфигурацию из переменных окружения
// поверх значений по умолчанию.
func ConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()

	if v := os.Getenv("ORDERS_HTTP_ADDR"); v != "" {
		cfg.HTTPAddr = v
	}
	if v := os.Getenv("ORDERS_METRICS_ADDR"); v != "" {
		cfg.MetricsAddr = v
	}
	if v := os.Getenv("ORDERS_STORAGE_DRIVER"); v != "" {
		cfg.StorageDriver = strings.ToLower(strings.TrimSpace(v))
	}
	if v := os.Getenv("ORDERS_POSTGRES_DSN"); v != "" {
		cfg.PostgresDSN = v
	}
	if v := os.Getenv("ORDERS_POSTGRES_AUTO_MIGRATE"); v != "" {
		autoMigrate, err := strconv.ParseBool(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid ORDERS_POSTGRES_AUTO_MIGRATE: %w", err)
		}
		cfg.AutoMigrate = autoMigrate
	}
	cfg.KafkaBrokers = os.Getenv("KAFKA_BROKERS")

	if v := os.Getenv("ORDERS_OUTBOX_POLL_INTERVAL"); v != "" {
		interval, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid ORDERS_OUTBOX_POLL_INTERVAL: %w", err)
		}
		cfg.OutboxPollInterval = interval
	}
	if v := os.Getenv("ORDERS_OUTBOX_BATCH_SIZE"); v != "" {
		size, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid ORDERS_OUTBOX_BATCH_SIZE: %w", err)
		}
		cfg.OutboxBatchSize = size
	}
	if v := os.Getenv("ORDERS_OUTBOX_MAX_ATTEMPTS"); v != "" {
		attempts, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid ORDERS_OUTBOX_MAX_ATTEMPTS: %w", err)
		}
		cfg.OutboxMaxAttempts = attempts
	}

	return cfg, cfg.Validate()
}

// Validate проверяет согласованность конфигурации до старта.
func (c Config) Validate() error {
	switch c.StorageDriver {
	case StorageDriverMemory:
	case StorageDriverPostgres:
		if strings.TrimSpace(c.PostgresDSN) == "" {
			return fmt.Errorf("ORDERS_POSTGRES_DSN is required for the %s driver", StorageDriverPostgres)
		}
	default:
		return fmt.Errorf("unsupported storage driver: %s (use %s|%s)", c.StorageDriver, StorageDriverMemory, StorageDriverPostgres)
	}
	return nil
}
