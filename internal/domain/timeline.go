package domain

import "time"

// TimelineEvent описывает событие в жизненном цикле заказа.
type TimelineEvent struct {
	OrderID  string
	Type     string
	Reason   string
	Occurred time.Time
}

// Типы событий, которые пишет ядро. Внешние слои могут добавлять свои.
const (
	TimelineOrderCreated       = "OrderCreated"
	TimelineOrderStatusChanged = "OrderStatusChanged"
	TimelineOrderCancelled     = "OrderCancelled"
	TimelinePaymentInitiated   = "PaymentInitiated"
	TimelinePaymentReconciled  = "PaymentReconciled"
)
