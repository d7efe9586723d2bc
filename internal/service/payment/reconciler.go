package payment

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/skooli/storefront/internal/domain"
	"github.com/skooli/storefront/internal/metrics"
)

const (
	// defaultRecordTTL определяет, сколько хранится отметка об
	// обработанном внешнем событии.
	defaultRecordTTL = 24 * time.Hour
	// orderSaveAttempts ограничивает повторные version-guarded Save заказа.
	orderSaveAttempts = 3
)

// Notification — нормализованное внешнее событие о платеже: webhook
// провайдера или результат опроса. Status уже приведён к внутреннему
// словарю адаптером провайдера.
type Notification struct {
	Provider     string
	ProviderTxID string
	Status       domain.PaymentStatus
	Raw          []byte
}

// Reconciler сводит внешние платёжные события с состоянием платежа и
// заказа. Применение события at-most-once: повторная доставка того же
// webhook превращается в no-op через idempotency guard, а терминальный
// статус платежа никогда не откатывается.
type Reconciler struct {
	payments    domain.PaymentRepository
	orders      domain.OrderRepository
	timeline    domain.TimelineRepository
	outbox      domain.OutboxRepository
	idempotency domain.IdempotencyRepository
	logger      *log.Entry
	metrics     *metrics.CheckoutMetrics
	recordTTL   time.Duration
}

// NewReconciler собирает reconciler с TTL по умолчанию.
func NewReconciler(
	payments domain.PaymentRepository,
	orders domain.OrderRepository,
	timeline domain.TimelineRepository,
	outbox domain.OutboxRepository,
	idempotency domain.IdempotencyRepository,
	logger *log.Entry,
) *Reconciler {
	if logger == nil {
		logger = log.WithField("component", "reconciler")
	}
	return &Reconciler{
		payments:    payments,
		orders:      orders,
		timeline:    timeline,
		outbox:      outbox,
		idempotency: idempotency,
		logger:      logger,
		metrics:     metrics.NewCheckoutMetrics(),
		recordTTL:   defaultRecordTTL,
	}
}

// Apply применяет внешнее событие к платежу и, при успехе оплаты,
// продвигает заказ pending → processing. Повторная доставка события
// с тем же ключом возвращает текущее состояние платежа без изменений.
func (r *Reconciler) Apply(n Notification) (domain.Payment, error) {
	if n.Provider == "" || n.ProviderTxID == "" {
		return domain.Payment{}, domain.ErrPaymentProviderRequired
	}

	key := n.Provider + ":" + n.ProviderTxID
	hash := eventHash(n.Raw)

	record, err := r.idempotency.CreateProcessing(key, hash, time.Now().UTC().Add(r.recordTTL))
	if err != nil {
		if !errors.Is(err, domain.ErrIdempotencyKeyAlreadyExists) {
			return domain.Payment{}, err
		}
		// Повтор: завершённое или ещё применяемое событие не трогаем,
		// проваленное применение можно повторить.
		if record.Status != domain.IdempotencyStatusFailed {
			if record.EventHash != hash {
				r.logger.WithField("key", key).Warn("duplicate provider tx id with different payload")
			}
			return r.payments.GetByProviderTx(n.Provider, n.ProviderTxID)
		}
	}

	payment, err := r.apply(n)
	if err != nil {
		if markErr := r.idempotency.MarkFailed(key, err.Error()); markErr != nil {
			r.logger.WithError(markErr).WithField("key", key).Warn("failed to mark idempotency record failed")
		}
		return domain.Payment{}, err
	}

	if err := r.idempotency.MarkDone(key, string(payment.Status)); err != nil {
		r.logger.WithError(err).WithField("key", key).Warn("failed to mark idempotency record done")
	}
	return payment, nil
}

// Poll опрашивает провайдера о зависшем платеже и применяет результат
// тем же путём, что и webhook.
func (r *Reconciler) Poll(ctx context.Context, provider domain.PaymentProvider, paymentID string) (domain.Payment, error) {
	payment, err := r.payments.Get(paymentID)
	if err != nil {
		return domain.Payment{}, err
	}
	if payment.Status.Terminal() {
		return payment, nil
	}
	if payment.ProviderTxID == "" {
		return payment, nil
	}

	handle, err := provider.CheckStatus(ctx, payment.ProviderTxID)
	if err != nil {
		return domain.Payment{}, err
	}

	return r.Apply(Notification{
		Provider:     payment.Provider,
		ProviderTxID: payment.ProviderTxID,
		Status:       handle.Status,
		Raw:          handle.Raw,
	})
}

func (r *Reconciler) apply(n Notification) (domain.Payment, error) {
	payment, err := r.payments.GetByProviderTx(n.Provider, n.ProviderTxID)
	if err != nil {
		return domain.Payment{}, err
	}

	// Терминальный статус не откатывается, чем бы ни было событие.
	if payment.Status.Terminal() {
		return payment, nil
	}

	now := time.Now().UTC()
	payment.UpdatedAt = now
	if len(n.Raw) > 0 {
		payment.RawResponse = n.Raw
	}

	switch n.Status {
	case domain.PaymentStatusPending:
		// Провайдер ещё думает: обновляем только аудиторский след.
		if err := r.payments.Save(payment); err != nil {
			return domain.Payment{}, err
		}
		return payment, nil

	case domain.PaymentStatusSuccess:
		payment.Status = domain.PaymentStatusSuccess
		payment.PaidAt = &now
		if err := r.payments.Save(payment); err != nil {
			return domain.Payment{}, err
		}
		if err := r.settleOrder(payment, now); err != nil {
			return domain.Payment{}, err
		}
		r.recordResult("success")
		return payment, nil

	case domain.PaymentStatusFailed, domain.PaymentStatusCancelled:
		payment.Status = n.Status
		payment.FailedAt = &now
		if err := r.payments.Save(payment); err != nil {
			return domain.Payment{}, err
		}
		r.appendTimeline(payment.OrderID, domain.TimelinePaymentReconciled, string(n.Status))
		r.enqueueEvent("payment.failed", payment)
		r.recordResult("failed")
		r.logger.WithFields(log.Fields{
			"payment_id": payment.ID,
			"order_id":   payment.OrderID,
			"status":     n.Status,
		}).Info("payment attempt failed")
		return payment, nil

	default:
		return domain.Payment{}, fmt.Errorf("unknown payment status %q", n.Status)
	}
}

// settleOrder переводит оплаченный заказ pending → processing. Поздний
// успех по уже отменённому заказу не воскрешает заказ: факт публикуется
// событием, возврат средств выполняет внешний процесс.
func (r *Reconciler) settleOrder(payment domain.Payment, paidAt time.Time) error {
	order, err := r.orders.Get(payment.OrderID)
	if err != nil {
		return err
	}

	if order.Status == domain.OrderStatusCancelled || order.Status == domain.OrderStatusRefunded {
		r.appendTimeline(order.ID, domain.TimelinePaymentReconciled, "succeeded_after_cancel")
		r.enqueueEvent("payment.succeeded_after_cancel", payment)
		r.logger.WithFields(log.Fields{
			"payment_id": payment.ID,
			"order_id":   order.ID,
		}).Warn("payment succeeded after order cancellation, refund required")
		return nil
	}

	for attempt := 1; ; attempt++ {
		if order.PaymentStatus == domain.OrderPaymentPaid {
			return nil
		}

		order.PaymentStatus = domain.OrderPaymentPaid
		order.PaidAt = &paidAt
		if order.Status == domain.OrderStatusPending {
			order.Status = domain.OrderStatusProcessing
		}
		order.UpdatedAt = paidAt

		err = r.orders.Save(order)
		if err == nil {
			break
		}
		if !domain.IsVersionConflict(err) || attempt >= orderSaveAttempts {
			return err
		}

		order, err = r.orders.Get(payment.OrderID)
		if err != nil {
			return err
		}
		if order.Status == domain.OrderStatusCancelled || order.Status == domain.OrderStatusRefunded {
			r.appendTimeline(order.ID, domain.TimelinePaymentReconciled, "succeeded_after_cancel")
			r.enqueueEvent("payment.succeeded_after_cancel", payment)
			return nil
		}
	}

	r.appendTimeline(order.ID, domain.TimelinePaymentReconciled, "success")
	r.enqueueEvent("payment.succeeded", payment)
	r.logger.WithFields(log.Fields{
		"payment_id": payment.ID,
		"order_id":   order.ID,
	}).Info("order paid")
	return nil
}

func (r *Reconciler) appendTimeline(orderID, eventType, reason string) {
	event := domain.TimelineEvent{
		OrderID:  orderID,
		Type:     eventType,
		Reason:   reason,
		Occurred: time.Now().UTC(),
	}
	if err := r.timeline.Append(event); err != nil {
		r.logger.WithError(err).WithField("order_id", orderID).Warn("failed to append timeline event")
	}
}

func (r *Reconciler) enqueueEvent(eventType string, payment domain.Payment) {
	payload, err := paymentEventPayload(payment)
	if err != nil {
		r.logger.WithError(err).WithField("payment_id", payment.ID).Warn("failed to marshal payment event")
		return
	}
	if _, err := r.outbox.Enqueue(domain.OutboxMessage{
		AggregateType: "payment",
		AggregateID:   payment.ID,
		EventType:     eventType,
		Payload:       payload,
	}); err != nil {
		r.logger.WithError(err).WithField("payment_id", payment.ID).Warn("failed to enqueue payment event")
	}
}

func (r *Reconciler) recordResult(result string) {
	if r.metrics != nil {
		r.metrics.RecordPaymentReconciled(result)
	}
}

func eventHash(raw []byte) string {
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}
