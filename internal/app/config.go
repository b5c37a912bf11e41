package app

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/vladislavdragonenkov/shopcore/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/shopcore/internal/service/payment"
)

// Драйверы хранилища.
const (
	StorageDriverMemory   = "memory"
	StorageDriverPostgres = "postgres"
)

// Config описывает настройки запуска приложения.
// Все поля перекрываются переменными окружения SHOPCORE_* (см. LoadConfigFromEnv).
type Config struct {
	HTTPAddr    string
	MetricsAddr string

	StorageDriver       string
	PostgresDSN         string
	PostgresAutoMigrate bool

	RedisAddr string
	RedisTTL  time.Duration

	// KafkaBrokers — CSV-список брокеров; пусто = работаем без Kafka.
	KafkaBrokers              string
	OrderEventsTopic          string
	PaymentNotificationsTopic string
	DLQTopic                  string

	// MidtransServerKey пустой = mock-шлюз (dev-режим).
	MidtransServerKey string
	MidtransBaseURL   string
	GatewayTimeout    time.Duration

	OutboxPollInterval time.Duration
	OutboxBatchSize    int
	OutboxMaxAttempts  int
	OutboxRetryDelay   time.Duration

	EventCleanupInterval  time.Duration
	EventCleanupBatchSize int
	EventRetention        time.Duration

	// SeedDemoData наполняет каталог и сток демо-данными (только memory-драйвер).
	SeedDemoData bool
}

// DefaultConfig возвращает конфигурацию для локального запуска без внешних систем.
func DefaultConfig() Config {
	return Config{
		HTTPAddr:    ":8080",
		MetricsAddr: ":9090",

		StorageDriver:       StorageDriverMemory,
		PostgresAutoMigrate: true,

		RedisTTL: 5 * time.Minute,

		OrderEventsTopic:          kafka.TopicOrderEvents,
		PaymentNotificationsTopic: kafka.TopicPaymentNotifications,
		DLQTopic:                  kafka.TopicDeadLetterQueue,

		MidtransBaseURL: payment.SandboxBaseURL,
		GatewayTimeout:  10 * time.Second,

		OutboxPollInterval: time.Second,
		OutboxBatchSize:    100,
		OutboxMaxAttempts:  5,
		OutboxRetryDelay:   200 * time.Millisecond,

		EventCleanupInterval:  time.Hour,
		EventCleanupBatchSize: 500,
		EventRetention:        30 * 24 * time.Hour,

		SeedDemoData: true,
	}
}

// LoadConfigFromEnv собирает конфигурацию: значения по умолчанию плюс
// переменные окружения SHOPCORE_*.
func LoadConfigFromEnv() Config {
	cfg := DefaultConfig()

	cfg.HTTPAddr = envString("SHOPCORE_HTTP_ADDR", cfg.HTTPAddr)
	cfg.MetricsAddr = envString("SHOPCORE_METRICS_ADDR", cfg.MetricsAddr)

	cfg.PostgresDSN = envString("SHOPCORE_POSTGRES_DSN", cfg.PostgresDSN)
	cfg.StorageDriver = envString("SHOPCORE_STORAGE_DRIVER", cfg.StorageDriver)
	// Заданный DSN без явного драйвера означает postgres.
	if cfg.PostgresDSN != "" && os.Getenv("SHOPCORE_STORAGE_DRIVER") == "" {
		cfg.StorageDriver = StorageDriverPostgres
	}
	cfg.PostgresAutoMigrate = envBool("SHOPCORE_POSTGRES_AUTO_MIGRATE", cfg.PostgresAutoMigrate)

	cfg.RedisAddr = envString("SHOPCORE_REDIS_ADDR", cfg.RedisAddr)
	cfg.RedisTTL = envDuration("SHOPCORE_REDIS_TTL", cfg.RedisTTL)

	cfg.KafkaBrokers = envString("SHOPCORE_KAFKA_BROKERS", cfg.KafkaBrokers)
	cfg.OrderEventsTopic = envString("SHOPCORE_ORDER_EVENTS_TOPIC", cfg.OrderEventsTopic)
	cfg.PaymentNotificationsTopic = envString("SHOPCORE_PAYMENT_NOTIFICATIONS_TOPIC", cfg.PaymentNotificationsTopic)
	cfg.DLQTopic = envString("SHOPCORE_DLQ_TOPIC", cfg.DLQTopic)

	cfg.MidtransServerKey = envString("SHOPCORE_MIDTRANS_SERVER_KEY", cfg.MidtransServerKey)
	cfg.MidtransBaseURL = envString("SHOPCORE_MIDTRANS_BASE_URL", cfg.MidtransBaseURL)
	cfg.GatewayTimeout = envDuration("SHOPCORE_GATEWAY_TIMEOUT", cfg.GatewayTimeout)

	cfg.OutboxPollInterval = envDuration("SHOPCORE_OUTBOX_POLL_INTERVAL", cfg.OutboxPollInterval)
	cfg.OutboxBatchSize = envInt("SHOPCORE_OUTBOX_BATCH_SIZE", cfg.OutboxBatchSize)
	cfg.OutboxMaxAttempts = envInt("SHOPCORE_OUTBOX_MAX_ATTEMPTS", cfg.OutboxMaxAttempts)
	cfg.OutboxRetryDelay = envDuration("SHOPCORE_OUTBOX_RETRY_DELAY", cfg.OutboxRetryDelay)

	cfg.EventCleanupInterval = envDuration("SHOPCORE_EVENT_CLEANUP_INTERVAL", cfg.EventCleanupInterval)
	cfg.EventCleanupBatchSize = envInt("SHOPCORE_EVENT_CLEANUP_BATCH_SIZE", cfg.EventCleanupBatchSize)
	cfg.EventRetention = envDuration("SHOPCORE_EVENT_RETENTION", cfg.EventRetention)

	cfg.SeedDemoData = envBool("SHOPCORE_SEED_DEMO_DATA", cfg.SeedDemoData)

	return cfg
}

func envString(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func envInt(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func envBool(key string, fallback bool) bool {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func envDuration(key string, fallback time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}
