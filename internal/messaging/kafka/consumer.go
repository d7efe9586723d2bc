package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/IBM/sarama"
	log "github.com/sirupsen/logrus"
)

// MessageHandler обрабатывает одно сообщение из Kafka.
type MessageHandler func(ctx context.Context, message *sarama.ConsumerMessage) error

// GatewayNotification — уведомление платёжного шлюза, доставленное через
// Kafka вместо HTTP-вебхука. Агрегаторы (например, банковские шлюзы с
// batch-выгрузкой) публикуют исход платежа в topic уведомлений; payload
// содержит сырое тело уведомления в формате конкретного провайдера.
type GatewayNotification struct {
	Provider   string          `json:"provider"`
	Payload    json.RawMessage `json:"payload"`
	ReceivedAt time.Time       `json:"received_at,omitempty"`
}

// ParseGatewayNotification разбирает уведомление шлюза из Kafka-сообщения.
func ParseGatewayNotification(message *sarama.ConsumerMessage) (*GatewayNotification, error) {
	var notification GatewayNotification
	if err := json.Unmarshal(message.Value, &notification); err != nil {
		return nil, fmt.Errorf("failed to unmarshal gateway notification: %w", err)
	}
	if strings.TrimSpace(notification.Provider) == "" {
		return nil, fmt.Errorf("gateway notification has no provider")
	}
	if len(notification.Payload) == 0 {
		return nil, fmt.Errorf("gateway notification has no payload")
	}
	return &notification, nil
}

// dlqRecord — запись в Dead Letter Queue. Поля original_* читает
// cmd/dlq-reprocess при replay.
type dlqRecord struct {
	OriginalTopic     string `json:"original_topic"`
	OriginalPartition int32  `json:"original_partition"`
	OriginalOffset    int64  `json:"original_offset"`
	OriginalKey       string `json:"original_key"`
	OriginalValue     string `json:"original_value"`
	ErrorMessage      string `json:"error_message"`
	FailedAt          string `json:"failed_at"`
	Attempts          int    `json:"attempts"`
}

// Consumer читает уведомления шлюзов из Kafka и передаёт их обработчику.
// Неудачные сообщения ретраятся с backoff, после исчерпания попыток
// уходят в DLQ, чтобы не блокировать partition.
type Consumer struct {
	group        sarama.ConsumerGroup
	topics       []string
	handler      MessageHandler
	logger       *log.Entry
	wg           sync.WaitGroup
	dlq          *Producer
	maxAttempts  int
	retryBackoff time.Duration
}

const (
	defaultMaxAttempts  = 3
	defaultRetryBackoff = 2 * time.Second
)

// NewConsumer создает consumer без DLQ: после исчерпания попыток ошибка
// возвращается в лог, сообщение не коммитится.
func NewConsumer(brokers []string, groupID string, topics []string, handler MessageHandler) (*Consumer, error) {
	return NewConsumerWithDLQ(brokers, groupID, topics, handler, nil, defaultMaxAttempts)
}

// NewConsumerWithDLQ создает consumer с Dead Letter Queue.
func NewConsumerWithDLQ(brokers []string, groupID string, topics []string, handler MessageHandler, dlq *Producer, maxAttempts int) (*Consumer, error) {
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	config := sarama.NewConfig()
	config.ClientID = "skooli-storefront"
	config.Consumer.Group.Rebalance.Strategy = sarama.NewBalanceStrategyRoundRobin()
	// Пропущенное уведомление — незакрытый платёж, поэтому начинаем
	// с самого старого offset, а не с новых сообщений.
	config.Consumer.Offsets.Initial = sarama.OffsetOldest
	config.Consumer.Return.Errors = true

	group, err := sarama.NewConsumerGroup(brokers, groupID, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka consumer group: %w", err)
	}

	return &Consumer{
		group:        group,
		topics:       topics,
		handler:      handler,
		logger:       log.WithField("component", "gateway-notifications-consumer"),
		dlq:          dlq,
		maxAttempts:  maxAttempts,
		retryBackoff: defaultRetryBackoff,
	}, nil
}

// Start запускает consumer. Возврат из Consume при rebalance —
// штатная ситуация, поэтому вызываем его в цикле до отмены контекста.
func (c *Consumer) Start(ctx context.Context) error {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for {
			if err := c.group.Consume(ctx, c.topics, c); err != nil {
				c.logger.WithError(err).Error("consumer session failed")
			}
			if ctx.Err() != nil {
				return
			}
		}
	}()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for err := range c.group.Errors() {
			c.logger.WithError(err).Error("consumer error")
		}
	}()

	c.logger.WithField("topics", c.topics).Info("gateway notifications consumer started")
	return nil
}

// Stop закрывает consumer group и дожидается рабочих горутин.
func (c *Consumer) Stop() error {
	if err := c.group.Close(); err != nil {
		return fmt.Errorf("failed to close kafka consumer group: %w", err)
	}
	c.wg.Wait()
	c.logger.Info("gateway notifications consumer stopped")
	return nil
}

// Setup реализует sarama.ConsumerGroupHandler.
func (c *Consumer) Setup(sarama.ConsumerGroupSession) error {
	return nil
}

// Cleanup реализует sarama.ConsumerGroupHandler.
func (c *Consumer) Cleanup(sarama.ConsumerGroupSession) error {
	return nil
}

// ConsumeClaim обрабатывает сообщения одной partition.
func (c *Consumer) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case message := <-claim.Messages():
			if message == nil {
				return nil
			}

			if err := c.handleMessage(session.Context(), message); err != nil {
				c.logger.WithError(err).WithFields(log.Fields{
					"topic":     message.Topic,
					"partition": message.Partition,
					"offset":    message.Offset,
				}).Error("notification processing failed")
				// Без DLQ сообщение не коммитим: после рестарта
				// consumer прочитает его снова.
				continue
			}

			session.MarkMessage(message, "")

		case <-session.Context().Done():
			return nil
		}
	}
}

// handleMessage выполняет обработчик с ретраями; после maxAttempts
// неудач сообщение уходит в DLQ и считается обработанным.
func (c *Consumer) handleMessage(ctx context.Context, message *sarama.ConsumerMessage) error {
	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		lastErr = c.handler(ctx, message)
		if lastErr == nil {
			return nil
		}

		if attempt == c.maxAttempts {
			break
		}

		c.logger.WithError(lastErr).WithFields(log.Fields{
			"topic":   message.Topic,
			"offset":  message.Offset,
			"attempt": attempt,
		}).Warn("notification processing failed, retrying")

		select {
		case <-time.After(c.retryBackoff):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if c.dlq == nil {
		return lastErr
	}

	if dlqErr := c.sendToDLQ(message, lastErr); dlqErr != nil {
		return fmt.Errorf("failed to send to DLQ: %w", dlqErr)
	}

	c.logger.WithFields(log.Fields{
		"topic":    message.Topic,
		"offset":   message.Offset,
		"attempts": c.maxAttempts,
	}).Info("notification sent to DLQ after max attempts")
	return nil
}

func (c *Consumer) sendToDLQ(message *sarama.ConsumerMessage, processingErr error) error {
	record := dlqRecord{
		OriginalTopic:     message.Topic,
		OriginalPartition: message.Partition,
		OriginalOffset:    message.Offset,
		OriginalKey:       string(message.Key),
		OriginalValue:     string(message.Value),
		ErrorMessage:      processingErr.Error(),
		FailedAt:          time.Now().UTC().Format(time.RFC3339),
		Attempts:          c.maxAttempts,
	}
	return c.dlq.PublishEvent(TopicDeadLetterQueue, string(message.Key), record)
}
