package kafka

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/skooli/storefront/internal/domain"
)

// OutboxTopicPublisher публикует outbox-сообщения в Kafka. Topic
// выбирается по типу агрегата: события заказов и платежей идут в
// отдельные topics, незнакомые агрегаты — в fallback.
type OutboxTopicPublisher struct {
	producer *Producer
	fallback string
}

// NewOutboxPublisher создаёт Kafka-паблишер для transactional outbox.
func NewOutboxPublisher(producer *Producer, fallbackTopic string) domain.OutboxPublisher {
	if fallbackTopic == "" {
		fallbackTopic = TopicOrderEvents
	}
	return &OutboxTopicPublisher{
		producer: producer,
		fallback: fallbackTopic,
	}
}

// topicFor возвращает topic для типа агрегата.
func (p *OutboxTopicPublisher) topicFor(aggregateType string) string {
	switch aggregateType {
	case "order":
		return TopicOrderEvents
	case "payment":
		return TopicPaymentEvents
	default:
		return p.fallback
	}
}

func (p *OutboxTopicPublisher) Publish(event domain.OutboxMessage) error {
	if p == nil || p.producer == nil {
		return fmt.Errorf("kafka outbox publisher is not initialized")
	}

	key := event.AggregateID
	if key == "" {
		key = event.ID
	}

	envelope := struct {
		ID            string          `json:"id"`
		AggregateType string          `json:"aggregate_type"`
		AggregateID   string          `json:"aggregate_id"`
		EventType     string          `json:"event_type"`
		Payload       json.RawMessage `json:"payload"`
		PublishedAt   time.Time       `json:"published_at"`
	}{
		ID:            event.ID,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		EventType:     event.EventType,
		Payload:       json.RawMessage(event.Payload),
		PublishedAt:   time.Now().UTC(),
	}

	return p.producer.PublishEvent(p.topicFor(event.AggregateType), key, envelope)
}

var _ domain.OutboxPublisher = (*OutboxTopicPublisher)(nil)

// DLQPublisher публикует сообщения в выделенный DLQ topic, минуя
// роутинг по типу агрегата.
type DLQPublisher struct {
	producer *Producer
}

// NewDLQPublisher создаёт паблишер для событий, исчерпавших ретраи.
func NewDLQPublisher(producer *Producer) domain.OutboxPublisher {
	return &DLQPublisher{producer: producer}
}

func (p *DLQPublisher) Publish(event domain.OutboxMessage) error {
	if p == nil || p.producer == nil {
		return fmt.Errorf("kafka dlq publisher is not initialized")
	}

	key := event.AggregateID
	if key == "" {
		key = event.ID
	}
	return p.producer.PublishEvent(TopicDeadLetterQueue, key, event)
}

var _ domain.OutboxPublisher = (*DLQPublisher)(nil)
