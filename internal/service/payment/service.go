package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/skooli/storefront/internal/domain"
	"github.com/skooli/storefront/internal/metrics"
)

// Service инициирует попытки оплаты через зарегистрированных провайдеров.
// Провайдер выбирается по тегу метода; заказ допускает не более одной
// незавершённой попытки одновременно.
type Service struct {
	orders     domain.OrderRepository
	payments   domain.PaymentRepository
	timeline   domain.TimelineRepository
	outbox     domain.OutboxRepository
	reconciler *Reconciler
	providers  map[string]domain.PaymentProvider
	logger     *log.Entry
	metrics    *metrics.CheckoutMetrics
}

// NewService регистрирует провайдеров и собирает сервис оплаты.
// Reconciler нужен для синхронных вердиктов шлюза: терминальный статус
// из Initiate проводится тем же путём, что и webhook.
func NewService(
	orders domain.OrderRepository,
	payments domain.PaymentRepository,
	timeline domain.TimelineRepository,
	outbox domain.OutboxRepository,
	reconciler *Reconciler,
	logger *log.Entry,
	providers ...domain.PaymentProvider,
) *Service {
	if logger == nil {
		logger = log.WithField("component", "payment")
	}

	registry := make(map[string]domain.PaymentProvider, len(providers))
	for _, p := range providers {
		registry[p.Method()] = p
	}

	return &Service{
		orders:     orders,
		payments:   payments,
		timeline:   timeline,
		outbox:     outbox,
		reconciler: reconciler,
		providers:  registry,
		logger:     logger,
		metrics:    metrics.NewCheckoutMetrics(),
	}
}

// Provider возвращает провайдера по тегу метода.
func (s *Service) Provider(method string) (domain.PaymentProvider, error) {
	provider, ok := s.providers[method]
	if !ok {
		return nil, domain.ErrUnsupportedPaymentMethod
	}
	return provider, nil
}

// Initiate создаёт попытку оплаты и запускает списание у провайдера.
// Запись платежа создаётся до внешнего вызова и играет роль
// in-flight маркера против двойного списания.
func (s *Service) Initiate(ctx context.Context, userID, orderID, method string, details domain.ChargeDetails) (domain.Payment, domain.PaymentHandle, error) {
	if userID == "" {
		return domain.Payment{}, domain.PaymentHandle{}, domain.ErrUserRequired
	}

	provider, err := s.Provider(method)
	if err != nil {
		return domain.Payment{}, domain.PaymentHandle{}, err
	}

	order, err := s.orders.Get(orderID)
	if err != nil {
		return domain.Payment{}, domain.PaymentHandle{}, err
	}
	if order.UserID != userID {
		return domain.Payment{}, domain.PaymentHandle{}, domain.ErrOrderNotFound
	}
	if order.Status != domain.OrderStatusPending || order.PaymentStatus != domain.OrderPaymentPending {
		return domain.Payment{}, domain.PaymentHandle{}, domain.ErrOrderNotPayable
	}

	pending, err := s.payments.HasPending(orderID)
	if err != nil {
		return domain.Payment{}, domain.PaymentHandle{}, err
	}
	if pending {
		return domain.Payment{}, domain.PaymentHandle{}, domain.ErrPaymentInFlight
	}

	now := time.Now().UTC()
	payment := domain.Payment{
		ID:          uuid.NewString(),
		OrderID:     order.ID,
		Provider:    method,
		AmountMinor: order.TotalMinor,
		Currency:    order.Currency,
		Status:      domain.PaymentStatusPending,
		PhoneNumber: details.PhoneNumber,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.payments.Create(payment); err != nil {
		return domain.Payment{}, domain.PaymentHandle{}, err
	}

	handle, err := provider.Initiate(ctx, order, details)
	if err != nil {
		s.failAttempt(payment)
		return domain.Payment{}, domain.PaymentHandle{}, err
	}

	payment.ProviderTxID = handle.ProviderTxID
	payment.RawResponse = handle.Raw
	payment.UpdatedAt = time.Now().UTC()
	// Терминальный статус проставит reconciler, иначе он пропустит
	// транзакцию как уже завершённую.
	if !handle.Status.Terminal() {
		payment.Status = handle.Status
	}
	if err := s.payments.Save(payment); err != nil {
		return domain.Payment{}, domain.PaymentHandle{}, err
	}

	s.appendTimeline(order.ID, domain.TimelinePaymentInitiated, method)
	s.enqueueEvent("payment.initiated", payment)
	if s.metrics != nil {
		s.metrics.RecordPaymentInitiated(method)
	}

	// Синхронный вердикт шлюза сводится тем же путём, что и webhook:
	// успех переводит заказ pending → processing, а повторная доставка
	// webhook по этой транзакции становится no-op.
	if handle.Status.Terminal() {
		settled, err := s.reconciler.Apply(Notification{
			Provider:     method,
			ProviderTxID: handle.ProviderTxID,
			Status:       handle.Status,
			Raw:          handle.Raw,
		})
		if err != nil {
			return domain.Payment{}, domain.PaymentHandle{}, err
		}
		payment = settled
	}

	s.logger.WithFields(log.Fields{
		"payment_id":     payment.ID,
		"order_id":       order.ID,
		"provider":       method,
		"provider_tx_id": payment.ProviderTxID,
	}).Info("payment initiated")

	return payment, handle, nil
}

// GetForUser возвращает платёж, если заказ принадлежит пользователю.
// Чужой платёж неотличим от несуществующего.
func (s *Service) GetForUser(userID, paymentID string) (domain.Payment, error) {
	payment, err := s.payments.Get(paymentID)
	if err != nil {
		return domain.Payment{}, err
	}
	order, err := s.orders.Get(payment.OrderID)
	if err != nil {
		return domain.Payment{}, err
	}
	if order.UserID != userID {
		return domain.Payment{}, domain.ErrPaymentNotFound
	}
	return payment, nil
}

// Methods возвращает теги зарегистрированных методов оплаты.
func (s *Service) Methods() []string {
	methods := make([]string, 0, len(s.providers))
	for method := range s.providers {
		methods = append(methods, method)
	}
	sort.Strings(methods)
	return methods
}

// CancelAttempt отменяет незавершённую попытку оплаты владельца заказа,
// например брошенный mobile-money prompt, и освобождает заказ для
// оплаты другим методом. Терминальная попытка не отменяется.
func (s *Service) CancelAttempt(userID, paymentID string) (domain.Payment, error) {
	payment, err := s.GetForUser(userID, paymentID)
	if err != nil {
		return domain.Payment{}, err
	}
	if payment.Status.Terminal() {
		return domain.Payment{}, fmt.Errorf("%w: payment is %s", domain.ErrInvalidStateTransition, payment.Status)
	}

	now := time.Now().UTC()
	payment.Status = domain.PaymentStatusCancelled
	payment.FailedAt = &now
	payment.UpdatedAt = now
	if err := s.payments.Save(payment); err != nil {
		return domain.Payment{}, err
	}

	s.appendTimeline(payment.OrderID, domain.TimelinePaymentReconciled, "cancelled_by_customer")
	s.enqueueEvent("payment.cancelled", payment)
	s.logger.WithFields(log.Fields{
		"payment_id": payment.ID,
		"order_id":   payment.OrderID,
	}).Info("payment attempt cancelled")
	return payment, nil
}

// ListByOrder возвращает попытки оплаты заказа владельца.
func (s *Service) ListByOrder(userID, orderID string) ([]domain.Payment, error) {
	order, err := s.orders.Get(orderID)
	if err != nil {
		return nil, err
	}
	if order.UserID != userID {
		return nil, domain.ErrOrderNotFound
	}
	return s.payments.ListByOrder(orderID)
}

// failAttempt помечает попытку проваленной после ошибки провайдера.
func (s *Service) failAttempt(payment domain.Payment) {
	now := time.Now().UTC()
	payment.Status = domain.PaymentStatusFailed
	payment.FailedAt = &now
	payment.UpdatedAt = now
	if err := s.payments.Save(payment); err != nil {
		s.logger.WithError(err).WithField("payment_id", payment.ID).Error("failed to mark payment attempt failed")
	}
}

func (s *Service) appendTimeline(orderID, eventType, reason string) {
	event := domain.TimelineEvent{
		OrderID:  orderID,
		Type:     eventType,
		Reason:   reason,
		Occurred: time.Now().UTC(),
	}
	if err := s.timeline.Append(event); err != nil {
		s.logger.WithError(err).WithField("order_id", orderID).Warn("failed to append timeline event")
	}
}

func (s *Service) enqueueEvent(eventType string, payment domain.Payment) {
	payload, err := paymentEventPayload(payment)
	if err != nil {
		s.logger.WithError(err).WithField("payment_id", payment.ID).Warn("failed to marshal payment event")
		return
	}

	if _, err := s.outbox.Enqueue(domain.OutboxMessage{
		AggregateType: "payment",
		AggregateID:   payment.ID,
		EventType:     eventType,
		Payload:       payload,
	}); err != nil {
		s.logger.WithError(err).WithField("payment_id", payment.ID).Warn("failed to enqueue payment event")
	}
}

// paymentEventPayload сериализует платёж для outbox-события.
func paymentEventPayload(payment domain.Payment) ([]byte, error) {
	return json.Marshal(map[string]any{
		"payment_id":     payment.ID,
		"order_id":       payment.OrderID,
		"provider":       payment.Provider,
		"provider_tx_id": payment.ProviderTxID,
		"status":         string(payment.Status),
		"amount_minor":   payment.AmountMinor,
		"currency":       payment.Currency,
	})
}
