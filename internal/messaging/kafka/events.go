package kafka

import "time"

// EventType определяет тип события
type EventType string

const (
	// Order события
	EventTypeOrderCreated   EventType = "order.created"
	EventTypeOrderPaid      EventType = "order.paid"
	EventTypeOrderCancelled EventType = "order.cancelled"
	EventTypeOrderShipped   EventType = "order.shipped"
	EventTypeOrderDelivered EventType = "order.delivered"

	// Payment события
	EventTypePaymentInitiated EventType = "payment.initiated"
	EventTypePaymentSucceeded EventType = "payment.succeeded"
	EventTypePaymentFailed    EventType = "payment.failed"
	// EventTypePaymentSucceededAfterCancel — оплата подтвердилась, когда
	// заказ уже отменён; слушатель запускает возврат средств.
	EventTypePaymentSucceededAfterCancel EventType = "payment.succeeded_after_cancel"
)

// Topics для Kafka
const (
	TopicOrderEvents   = "storefront.order.events"
	TopicPaymentEvents = "storefront.payment.events"
	// TopicPaymentNotifications — входящие уведомления платёжных шлюзов,
	// которые доставляют исход платежа через Kafka вместо HTTP-вебхука.
	TopicPaymentNotifications = "storefront.payment.notifications"
	TopicDeadLetterQueue      = "storefront.dlq" // Dead Letter Queue для failed messages
)

// OrderEvent представляет событие заказа
type OrderEvent struct {
	EventType   EventType              `json:"event_type"`
	OrderID     string                 `json:"order_id"`
	OrderNumber string                 `json:"order_number"`
	UserID      string                 `json:"user_id"`
	Status      string                 `json:"status"`
	TotalMinor  int64                  `json:"total_minor"`
	Currency    string                 `json:"currency"`
	Timestamp   time.Time              `json:"timestamp"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
}

// PaymentEvent представляет событие платежа
type PaymentEvent struct {
	EventType    EventType              `json:"event_type"`
	PaymentID    string                 `json:"payment_id"`
	OrderID      string                 `json:"order_id"`
	Provider     string                 `json:"provider"`
	ProviderTxID string                 `json:"provider_tx_id"`
	Status       string                 `json:"status"`
	AmountMinor  int64                  `json:"amount_minor"`
	Currency     string                 `json:"currency"`
	Timestamp    time.Time              `json:"timestamp"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
}

// NewOrderEvent создает новое событие заказа
func NewOrderEvent(eventType EventType, orderID, orderNumber, userID, status string, metadata map[string]interface{}) *OrderEvent {
	return &OrderEvent{
		EventType:   eventType,
		OrderID:     orderID,
		OrderNumber: orderNumber,
		UserID:      userID,
		Status:      status,
		Timestamp:   time.Now(),
		Metadata:    metadata,
	}
}

// NewPaymentEvent создает новое событие платежа
func NewPaymentEvent(eventType EventType, paymentID, orderID, provider, status string, metadata map[string]interface{}) *PaymentEvent {
	return &PaymentEvent{
		EventType: eventType,
		PaymentID: paymentID,
		OrderID:   orderID,
		Provider:  provider,
		Status:    status,
		Timestamp: time.Now(),
		Metadata:  metadata,
	}
}
