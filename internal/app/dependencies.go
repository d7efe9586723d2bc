package app

import (
	"context"
	"errors"

	"github.com/IBM/sarama"
	log "github.com/sirupsen/logrus"

	"github.com/skooli/storefront/internal/domain"
	"github.com/skooli/storefront/internal/messaging/kafka"
	"github.com/skooli/storefront/internal/rest"
	"github.com/skooli/storefront/internal/service/cart"
	"github.com/skooli/storefront/internal/service/checkout"
	"github.com/skooli/storefront/internal/service/idempotency"
	"github.com/skooli/storefront/internal/service/outbox"
	"github.com/skooli/storefront/internal/service/payment"
	"github.com/skooli/storefront/internal/service/pricing"
)

// Dependencies объединяет собранный сервисный слой приложения.
type Dependencies struct {
	Carts      *cart.Service
	Checkout   *checkout.Orchestrator
	Payments   *payment.Service
	Reconciler *payment.Reconciler
	Handler    *rest.Handler

	// Фоновые воркеры. OutboxWorker и NotificationConsumer nil,
	// если Kafka не настроен.
	OutboxWorker         *outbox.Worker
	CleanupWorker        *idempotency.CleanupWorker
	NotificationConsumer *kafka.Consumer

	Logger *log.Entry

	runtime       *runtimeDependencies
	kafkaProducer *kafka.Producer
}

// NewDependencies собирает хранилище, сервисы, HTTP-обработчик и
// воркеры по конфигурации.
func NewDependencies(ctx context.Context, cfg Config, logger *log.Entry) (*Dependencies, error) {
	if logger == nil {
		logger = log.WithField("component", "app")
	}

	runtime, err := initRuntimeDependencies(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	engine := pricing.NewEngine(pricing.Config{
		Currency:              cfg.Currency,
		TaxBps:                cfg.TaxBps,
		ShippingFlatMinor:     cfg.ShippingFlatMinor,
		ShippingFreeOverMinor: cfg.ShippingFreeOverMinor,
		Coupons:               pricing.DefaultCoupons(),
	})

	carts := cart.NewService(runtime.carts, runtime.products, logger.WithField("component", "cart"))
	orch := checkout.NewOrchestrator(
		runtime.carts,
		runtime.products,
		runtime.repo,
		runtime.timelineRepo,
		runtime.outboxRepo,
		engine,
		logger.WithField("component", "checkout"),
	)

	providers := buildProviders(cfg, logger)
	reconciler := payment.NewReconciler(
		runtime.payments,
		runtime.repo,
		runtime.timelineRepo,
		runtime.outboxRepo,
		runtime.idempotencyRepo,
		logger.WithField("component", "reconciler"),
	)
	payments := payment.NewService(
		runtime.repo,
		runtime.payments,
		runtime.timelineRepo,
		runtime.outboxRepo,
		reconciler,
		logger.WithField("component", "payment"),
		providers...,
	)

	deps := &Dependencies{
		Carts:      carts,
		Checkout:   orch,
		Payments:   payments,
		Reconciler: reconciler,
		Handler:    rest.NewHandler(carts, orch, payments, reconciler, logger.WithField("component", "rest")),
		Logger:     logger,
		runtime:    runtime,
	}

	// Kafka опционален: без brokers outbox копится в хранилище,
	// публикацию можно догнать позже.
	producer, err := initKafkaProducer(cfg.KafkaBrokers, logger)
	if err == nil && producer != nil {
		deps.kafkaProducer = producer
		deps.OutboxWorker = outbox.NewWorker(
			runtime.outboxRepo,
			kafka.NewOutboxPublisher(producer, kafka.TopicOrderEvents),
			outbox.WithLogger(logger.WithField("component", "outbox-worker")),
			outbox.WithDLQPublisher(kafka.NewDLQPublisher(producer)),
			outbox.WithPollInterval(cfg.OutboxPollInterval),
			outbox.WithBatchSize(cfg.OutboxBatchSize),
			outbox.WithMaxAttempts(cfg.OutboxMaxAttempts),
			outbox.WithRetryBaseDelay(cfg.OutboxRetryDelay),
		)

		// Часть шлюзов (банковские агрегаторы с batch-выгрузкой) не
		// умеют HTTP-вебхуки и публикуют исход платежа в Kafka.
		if cfg.PaymentNotificationsTopic != "" {
			consumer, consumerErr := kafka.NewConsumerWithDLQ(
				parseBrokerList(cfg.KafkaBrokers),
				cfg.KafkaConsumerGroup,
				[]string{cfg.PaymentNotificationsTopic},
				paymentNotificationHandler(reconciler, logger.WithField("component", "payment-notifications")),
				producer,
				3,
			)
			if consumerErr != nil {
				logger.WithError(consumerErr).Warn("failed to create payment notifications consumer, continuing without it")
			} else {
				deps.NotificationConsumer = consumer
			}
		}
	}

	deps.CleanupWorker = idempotency.NewCleanupWorker(
		runtime.idempotencyRepo,
		idempotency.WithLogger(logger.WithField("component", "idempotency-cleanup")),
		idempotency.WithInterval(cfg.IdempotencyCleanupInterval),
		idempotency.WithBatchSize(cfg.IdempotencyCleanupBatchSize),
	)

	return deps, nil
}

// paymentNotificationHandler переводит Kafka-уведомление шлюза в ту же
// цепочку reconciliation, что и HTTP-вебхук: разбор тела провайдера и
// идемпотентное применение исхода к платежу.
func paymentNotificationHandler(reconciler *payment.Reconciler, logger *log.Entry) kafka.MessageHandler {
	return func(ctx context.Context, message *sarama.ConsumerMessage) error {
		gatewayNotification, err := kafka.ParseGatewayNotification(message)
		if err != nil {
			return err
		}

		notification, err := payment.ParseWebhook(gatewayNotification.Provider, gatewayNotification.Payload)
		if err != nil {
			return err
		}

		if _, err := reconciler.Apply(notification); err != nil {
			// Неизвестная транзакция: платёж создавался мимо витрины
			// или уведомление устарело. Ретраи не помогут.
			if errors.Is(err, domain.ErrPaymentNotFound) {
				logger.WithFields(log.Fields{
					"provider":       notification.Provider,
					"provider_tx_id": notification.ProviderTxID,
				}).Warn("notification for unknown transaction ignored")
				return nil
			}
			return err
		}
		return nil
	}
}

// buildProviders собирает платёжных провайдеров из конфигурации.
// Без единого настроенного шлюза поднимается mock-провайдер, чтобы
// локальная разработка не требовала внешних сервисов.
func buildProviders(cfg Config, logger *log.Entry) []domain.PaymentProvider {
	var providers []domain.PaymentProvider

	if cfg.MoMoBaseURL != "" {
		providers = append(providers, payment.NewMoMoProvider(payment.MoMoConfig{
			BaseURL:         cfg.MoMoBaseURL,
			SubscriptionKey: cfg.MoMoSubscriptionKey,
		}))
	}
	if cfg.CardBaseURL != "" {
		providers = append(providers, payment.NewCardProvider(payment.CardConfig{
			BaseURL:   cfg.CardBaseURL,
			SecretKey: cfg.CardSecretKey,
		}))
	}
	if cfg.PayPalBaseURL != "" {
		providers = append(providers, payment.NewPayPalProvider(payment.PayPalConfig{
			BaseURL:      cfg.PayPalBaseURL,
			ClientID:     cfg.PayPalClientID,
			ClientSecret: cfg.PayPalClientSecret,
		}))
	}

	if len(providers) == 0 {
		logger.Warn("no payment gateways configured, using mock momo provider")
		providers = append(providers, payment.NewMockProvider("momo"))
	}
	return providers
}

// Close освобождает ресурсы приложения.
func (d *Dependencies) Close() {
	if d.NotificationConsumer != nil {
		if err := d.NotificationConsumer.Stop(); err != nil {
			d.Logger.WithError(err).Warn("failed to stop payment notifications consumer")
		}
	}
	closeKafka(d.kafkaProducer, d.Logger)
	if d.runtime != nil && d.runtime.close != nil {
		if err := d.runtime.close(); err != nil {
			d.Logger.WithError(err).Warn("failed to close storage")
		}
	}
}
