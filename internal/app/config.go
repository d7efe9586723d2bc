package app

import (
	"os"
	"strconv"
	"time"
)

// Поддерживаемые storage-драйверы.
const (
	StorageDriverMemory   = "memory"
	StorageDriverPostgres = "postgres"
)

// Config описывает настройки запуска витрины. Все значения читаются
// из окружения с префиксом SKOOLI_; пустое окружение даёт рабочий
// in-memory деплоймент для разработки.
type Config struct {
	HTTPAddr    string
	MetricsAddr string

	StorageDriver       string
	PostgresDSN         string
	PostgresAutoMigrate bool

	KafkaBrokers       string
	KafkaConsumerGroup string
	// PaymentNotificationsTopic — topic с уведомлениями шлюзов, которые
	// доставляют исход платежа через Kafka. Пустое значение отключает
	// consumer: остаются HTTP-вебхуки и опрос статуса.
	PaymentNotificationsTopic string

	// Правила расчёта стоимости.
	Currency              string
	TaxBps                int64
	ShippingFlatMinor     int64
	ShippingFreeOverMinor int64

	// Платёжные провайдеры. Пустой BaseURL отключает провайдера;
	// в memory-режиме без настроенных провайдеров поднимается mock.
	MoMoBaseURL         string
	MoMoSubscriptionKey string
	CardBaseURL         string
	CardSecretKey       string
	PayPalBaseURL       string
	PayPalClientID      string
	PayPalClientSecret  string

	OutboxPollInterval time.Duration
	OutboxBatchSize    int
	OutboxMaxAttempts  int
	OutboxRetryDelay   time.Duration

	IdempotencyCleanupInterval  time.Duration
	IdempotencyCleanupBatchSize int
}

// DefaultConfig возвращает значения по умолчанию: Uganda VAT 18%,
// плоская доставка 15000 UGX, in-memory хранилище.
func DefaultConfig() Config {
	return Config{
		HTTPAddr:    ":8080",
		MetricsAddr: ":9090",

		StorageDriver:       StorageDriverMemory,
		PostgresAutoMigrate: true,

		KafkaConsumerGroup: "skooli-storefront",

		Currency:              "UGX",
		TaxBps:                1800,
		ShippingFlatMinor:     15000,
		ShippingFreeOverMinor: 0,

		OutboxPollInterval: time.Second,
		OutboxBatchSize:    100,
		OutboxMaxAttempts:  3,
		OutboxRetryDelay:   200 * time.Millisecond,

		IdempotencyCleanupInterval:  time.Minute,
		IdempotencyCleanupBatchSize: 500,
	}
}

// LoadConfig читает конфигурацию из окружения поверх значений по умолчанию.
func LoadConfig() Config {
	cfg := DefaultConfig()

	cfg.HTTPAddr = envString("SKOOLI_HTTP_ADDR", cfg.HTTPAddr)
	cfg.MetricsAddr = envString("SKOOLI_METRICS_ADDR", cfg.MetricsAddr)

	cfg.StorageDriver = envString("SKOOLI_STORAGE_DRIVER", cfg.StorageDriver)
	cfg.PostgresDSN = envString("SKOOLI_POSTGRES_DSN", cfg.PostgresDSN)
	cfg.PostgresAutoMigrate = envBool("SKOOLI_POSTGRES_AUTO_MIGRATE", cfg.PostgresAutoMigrate)

	cfg.KafkaBrokers = envString("SKOOLI_KAFKA_BROKERS", cfg.KafkaBrokers)
	cfg.KafkaConsumerGroup = envString("SKOOLI_KAFKA_CONSUMER_GROUP", cfg.KafkaConsumerGroup)
	cfg.PaymentNotificationsTopic = envString("SKOOLI_PAYMENT_NOTIFICATIONS_TOPIC", cfg.PaymentNotificationsTopic)

	cfg.Currency = envString("SKOOLI_CURRENCY", cfg.Currency)
	cfg.TaxBps = envInt64("SKOOLI_TAX_BPS", cfg.TaxBps)
	cfg.ShippingFlatMinor = envInt64("SKOOLI_SHIPPING_FLAT_MINOR", cfg.ShippingFlatMinor)
	cfg.ShippingFreeOverMinor = envInt64("SKOOLI_SHIPPING_FREE_OVER_MINOR", cfg.ShippingFreeOverMinor)

	cfg.MoMoBaseURL = envString("SKOOLI_MOMO_BASE_URL", cfg.MoMoBaseURL)
	cfg.MoMoSubscriptionKey = envString("SKOOLI_MOMO_SUBSCRIPTION_KEY", cfg.MoMoSubscriptionKey)
	cfg.CardBaseURL = envString("SKOOLI_CARD_BASE_URL", cfg.CardBaseURL)
	cfg.CardSecretKey = envString("SKOOLI_CARD_SECRET_KEY", cfg.CardSecretKey)
	cfg.PayPalBaseURL = envString("SKOOLI_PAYPAL_BASE_URL", cfg.PayPalBaseURL)
	cfg.PayPalClientID = envString("SKOOLI_PAYPAL_CLIENT_ID", cfg.PayPalClientID)
	cfg.PayPalClientSecret = envString("SKOOLI_PAYPAL_CLIENT_SECRET", cfg.PayPalClientSecret)

	cfg.OutboxPollInterval = envDuration("SKOOLI_OUTBOX_POLL_INTERVAL", cfg.OutboxPollInterval)
	cfg.OutboxBatchSize = envInt("SKOOLI_OUTBOX_BATCH_SIZE", cfg.OutboxBatchSize)
	cfg.OutboxMaxAttempts = envInt("SKOOLI_OUTBOX_MAX_ATTEMPTS", cfg.OutboxMaxAttempts)
	cfg.OutboxRetryDelay = envDuration("SKOOLI_OUTBOX_RETRY_DELAY", cfg.OutboxRetryDelay)

	cfg.IdempotencyCleanupInterval = envDuration("SKOOLI_IDEMPOTENCY_CLEANUP_INTERVAL", cfg.IdempotencyCleanupInterval)
	cfg.IdempotencyCleanupBatchSize = envInt("SKOOLI_IDEMPOTENCY_CLEANUP_BATCH_SIZE", cfg.IdempotencyCleanupBatchSize)

	return cfg
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
