package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	log "github.com/sirupsen/logrus"
)

func notificationMessage(t *testing.T, provider string, payload map[string]interface{}) *sarama.ConsumerMessage {
	t.Helper()

	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatal(err)
	}
	value, err := json.Marshal(GatewayNotification{Provider: provider, Payload: raw})
	if err != nil {
		t.Fatal(err)
	}

	return &sarama.ConsumerMessage{
		Topic:     TopicPaymentNotifications,
		Partition: 0,
		Offset:    42,
		Key:       []byte("MOMO-TX-1"),
		Value:     value,
	}
}

func newTestConsumer(handler MessageHandler, dlq *Producer, maxAttempts int) *Consumer {
	return &Consumer{
		handler:      handler,
		logger:       log.WithField("component", "gateway-notifications-consumer-test"),
		dlq:          dlq,
		maxAttempts:  maxAttempts,
		retryBackoff: time.Millisecond,
	}
}

func TestParseGatewayNotification(t *testing.T) {
	msg := notificationMessage(t, "momo", map[string]interface{}{
		"transaction_id": "MOMO-TX-1",
		"status":         "SUCCESSFUL",
	})

	notification, err := ParseGatewayNotification(msg)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if notification.Provider != "momo" {
		t.Errorf("unexpected provider %s", notification.Provider)
	}

	var payload map[string]string
	if err := json.Unmarshal(notification.Payload, &payload); err != nil {
		t.Fatal(err)
	}
	if payload["transaction_id"] != "MOMO-TX-1" {
		t.Errorf("unexpected transaction id %s", payload["transaction_id"])
	}
}

func TestParseGatewayNotification_Invalid(t *testing.T) {
	cases := []struct {
		name  string
		value []byte
	}{
		{"not json", []byte("not-json")},
		{"no provider", []byte(`{"payload":{"status":"SUCCESSFUL"}}`)},
		{"no payload", []byte(`{"provider":"momo"}`)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseGatewayNotification(&sarama.ConsumerMessage{Value: tc.value})
			if err == nil {
				t.Fatal("expected error, got nil")
			}
		})
	}
}

func TestConsumer_HandleMessage_Success(t *testing.T) {
	calls := 0
	consumer := newTestConsumer(func(ctx context.Context, msg *sarama.ConsumerMessage) error {
		calls++
		return nil
	}, nil, 3)

	msg := notificationMessage(t, "momo", map[string]interface{}{"status": "SUCCESSFUL"})
	if err := consumer.handleMessage(context.Background(), msg); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 handler call, got %d", calls)
	}
}

func TestConsumer_HandleMessage_RetriesThenSucceeds(t *testing.T) {
	calls := 0
	consumer := newTestConsumer(func(ctx context.Context, msg *sarama.ConsumerMessage) error {
		calls++
		if calls < 3 {
			return errors.New("transient failure")
		}
		return nil
	}, nil, 3)

	msg := notificationMessage(t, "card", map[string]interface{}{"status": "succeeded"})
	if err := consumer.handleMessage(context.Background(), msg); err != nil {
		t.Fatalf("expected no error after retries, got %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 handler calls, got %d", calls)
	}
}

func TestConsumer_HandleMessage_ExhaustedGoesToDLQ(t *testing.T) {
	mockProducer := mocks.NewSyncProducer(t, nil)
	mockProducer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		if msg.Topic != TopicDeadLetterQueue {
			t.Errorf("expected DLQ topic, got %s", msg.Topic)
		}

		raw, err := msg.Value.Encode()
		if err != nil {
			return err
		}
		var record dlqRecord
		if err := json.Unmarshal(raw, &record); err != nil {
			return err
		}
		if record.OriginalTopic != TopicPaymentNotifications {
			t.Errorf("unexpected original topic %s", record.OriginalTopic)
		}
		if record.OriginalKey != "MOMO-TX-1" {
			t.Errorf("unexpected original key %s", record.OriginalKey)
		}
		if record.OriginalValue == "" {
			t.Error("original value should be preserved for replay")
		}
		if record.ErrorMessage != "permanent failure" {
			t.Errorf("unexpected error message %s", record.ErrorMessage)
		}
		if record.Attempts != 3 {
			t.Errorf("expected 3 attempts, got %d", record.Attempts)
		}
		return nil
	})

	dlq := &Producer{
		producer: mockProducer,
		logger:   log.WithField("component", "kafka-producer-test"),
	}

	calls := 0
	consumer := newTestConsumer(func(ctx context.Context, msg *sarama.ConsumerMessage) error {
		calls++
		return errors.New("permanent failure")
	}, dlq, 3)

	msg := notificationMessage(t, "momo", map[string]interface{}{"status": "FAILED"})
	if err := consumer.handleMessage(context.Background(), msg); err != nil {
		t.Fatalf("message routed to DLQ should not return error, got %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 handler calls, got %d", calls)
	}

	if err := mockProducer.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestConsumer_HandleMessage_NoDLQReturnsError(t *testing.T) {
	consumer := newTestConsumer(func(ctx context.Context, msg *sarama.ConsumerMessage) error {
		return errors.New("permanent failure")
	}, nil, 2)

	msg := notificationMessage(t, "momo", map[string]interface{}{"status": "FAILED"})
	err := consumer.handleMessage(context.Background(), msg)
	if err == nil {
		t.Fatal("expected error without DLQ, got nil")
	}
}

func TestConsumer_HandleMessage_DLQPublishFailure(t *testing.T) {
	mockProducer := mocks.NewSyncProducer(t, nil)
	mockProducer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	dlq := &Producer{
		producer: mockProducer,
		logger:   log.WithField("component", "kafka-producer-test"),
	}

	consumer := newTestConsumer(func(ctx context.Context, msg *sarama.ConsumerMessage) error {
		return errors.New("permanent failure")
	}, dlq, 1)

	msg := notificationMessage(t, "momo", map[string]interface{}{"status": "FAILED"})
	err := consumer.handleMessage(context.Background(), msg)
	if err == nil {
		t.Fatal("expected error when DLQ publish fails, got nil")
	}

	if err := mockProducer.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestConsumer_HandleMessage_ContextCancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	consumer := newTestConsumer(func(ctx context.Context, msg *sarama.ConsumerMessage) error {
		calls++
		cancel()
		return errors.New("transient failure")
	}, nil, 5)
	consumer.retryBackoff = time.Minute

	msg := notificationMessage(t, "momo", map[string]interface{}{"status": "PENDING"})
	err := consumer.handleMessage(ctx, msg)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 handler call before cancellation, got %d", calls)
	}
}
