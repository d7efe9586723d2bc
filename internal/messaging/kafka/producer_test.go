package kafka

import (
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	log "github.com/sirupsen/logrus"
)

func TestProducer_PublishEvent(t *testing.T) {
	// Создаем mock producer
	mockProducer := mocks.NewSyncProducer(t, nil)

	producer := &Producer{
		producer: mockProducer,
		logger:   log.WithField("component", "kafka-producer-test"),
	}

	// Настраиваем ожидания
	mockProducer.ExpectSendMessageAndSucceed()

	// Создаем тестовое событие
	event := NewOrderEvent(
		EventTypeOrderCreated,
		"order-123",
		"ORD-TEST-00001",
		"user-1",
		"pending",
		map[string]interface{}{
			"total_minor": 74000,
		},
	)

	// Публикуем событие
	err := producer.PublishEvent(TopicOrderEvents, "order-123", event)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	// Проверяем, что все ожидания выполнены
	if err := mockProducer.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestProducer_PublishEvent_Error(t *testing.T) {
	// Создаем mock producer с ошибкой
	mockProducer := mocks.NewSyncProducer(t, nil)

	producer := &Producer{
		producer: mockProducer,
		logger:   log.WithField("component", "kafka-producer-test"),
	}

	// Настраиваем ожидание ошибки
	mockProducer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	event := NewPaymentEvent(
		EventTypePaymentInitiated,
		"pay-1",
		"order-123",
		"momo",
		"pending",
		nil,
	)

	// Публикуем событие
	err := producer.PublishEvent(TopicPaymentEvents, "order-123", event)
	if err == nil {
		t.Fatal("expected error, got nil")
	}

	if err := mockProducer.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestNewOrderEvent(t *testing.T) {
	event := NewOrderEvent(EventTypeOrderPaid, "order-123", "ORD-TEST-00001", "user-1", "processing", map[string]interface{}{
		"payment_id": "pay-1",
	})

	if event.EventType != EventTypeOrderPaid {
		t.Errorf("expected event type %s, got %s", EventTypeOrderPaid, event.EventType)
	}
	if event.OrderID != "order-123" {
		t.Errorf("expected order id order-123, got %s", event.OrderID)
	}
	if event.OrderNumber != "ORD-TEST-00001" {
		t.Errorf("unexpected order number %s", event.OrderNumber)
	}
	if event.UserID != "user-1" {
		t.Errorf("unexpected user id %s", event.UserID)
	}
	if event.Status != "processing" {
		t.Errorf("unexpected status %s", event.Status)
	}
	if event.Metadata["payment_id"] != "pay-1" {
		t.Error("metadata not set correctly")
	}

	// Проверяем, что timestamp установлен
	if event.Timestamp.IsZero() {
		t.Error("timestamp should not be zero")
	}
	if time.Since(event.Timestamp) > time.Second {
		t.Error("timestamp should be close to current time")
	}
}

func TestNewPaymentEvent(t *testing.T) {
	event := NewPaymentEvent(EventTypePaymentSucceeded, "pay-1", "order-123", "momo", "success", nil)

	if event.EventType != EventTypePaymentSucceeded {
		t.Errorf("expected event type %s, got %s", EventTypePaymentSucceeded, event.EventType)
	}
	if event.PaymentID != "pay-1" {
		t.Errorf("unexpected payment id %s", event.PaymentID)
	}
	if event.OrderID != "order-123" {
		t.Errorf("unexpected order id %s", event.OrderID)
	}
	if event.Provider != "momo" {
		t.Errorf("unexpected provider %s", event.Provider)
	}
	if event.Status != "success" {
		t.Errorf("unexpected status %s", event.Status)
	}
	if event.Timestamp.IsZero() {
		t.Error("timestamp should not be zero")
	}
}
