package checkout

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/skooli/storefront/internal/domain"
	"github.com/skooli/storefront/internal/metrics"
	"github.com/skooli/storefront/internal/service/pricing"
)

const (
	// orderNumberAttempts ограничивает количество повторных генераций
	// номера при коллизии уникального индекса.
	orderNumberAttempts = 3
	// saveAttempts ограничивает повторные попытки version-guarded Save.
	saveAttempts = 3
)

// Request описывает входные данные оформления заказа.
type Request struct {
	Identity        domain.Identity
	CouponCode      string
	PaymentMethod   string
	ShippingAddress domain.Address
	BillingAddress  domain.Address
	DeliveryNotes   string
}

// Milestone — одна веха трекинга заказа для покупателя.
type Milestone struct {
	Title    string     `json:"title"`
	Done     bool       `json:"done"`
	Occurred *time.Time `json:"occurred,omitempty"`
}

// TrackingInfo — агрегированный ответ трекинга.
type TrackingInfo struct {
	OrderID        string      `json:"order_id"`
	Number         string      `json:"number"`
	Status         string      `json:"status"`
	TrackingNumber string      `json:"tracking_number,omitempty"`
	Milestones     []Milestone `json:"milestones"`
}

// Orchestrator проводит заказ через конвейер: корзина → пересчёт цен →
// создание заказа → списание остатков с компенсацией при сбое.
type Orchestrator struct {
	carts    domain.CartRepository
	products domain.ProductRepository
	orders   domain.OrderRepository
	timeline domain.TimelineRepository
	outbox   domain.OutboxRepository
	pricing  *pricing.Engine
	logger   *log.Entry
	metrics  *metrics.CheckoutMetrics
}

// NewOrchestrator создаёт рабочий экземпляр оркестратора.
func NewOrchestrator(
	carts domain.CartRepository,
	products domain.ProductRepository,
	orders domain.OrderRepository,
	timeline domain.TimelineRepository,
	outbox domain.OutboxRepository,
	engine *pricing.Engine,
	logger *log.Entry,
) *Orchestrator {
	if logger == nil {
		logger = log.WithField("component", "checkout")
	}
	return &Orchestrator{
		carts:    carts,
		products: products,
		orders:   orders,
		timeline: timeline,
		outbox:   outbox,
		pricing:  engine,
		logger:   logger,
		metrics:  metrics.NewCheckoutMetrics(),
	}
}

// CreateOrder превращает корзину в заказ. Цены и налоги пересчитываются
// по текущему каталогу, остатки списываются атомарно по каждой позиции;
// при нехватке остатка уже списанные позиции возвращаются на склад,
// а заказ отменяется компенсацией.
func (o *Orchestrator) CreateOrder(req Request) (domain.Order, error) {
	start := time.Now()
	if o.metrics != nil {
		o.metrics.RecordCheckoutStarted()
	}

	order, err := o.createOrder(req)
	if o.metrics != nil {
		o.metrics.RecordCheckoutDuration(time.Since(start))
		if err != nil {
			o.metrics.RecordCheckoutFailed()
		} else {
			o.metrics.RecordCheckoutCompleted()
		}
	}
	return order, err
}

func (o *Orchestrator) createOrder(req Request) (domain.Order, error) {
	if req.Identity.UserID == "" {
		return domain.Order{}, domain.ErrUserRequired
	}
	if req.ShippingAddress.Empty() {
		return domain.Order{}, domain.ErrShippingAddressRequired
	}

	cart, err := o.carts.GetByIdentity(req.Identity)
	if err != nil {
		if errors.Is(err, domain.ErrCartNotFound) {
			return domain.Order{}, domain.ErrEmptyCart
		}
		return domain.Order{}, err
	}
	if cart.Empty() {
		return domain.Order{}, domain.ErrEmptyCart
	}

	// Пересчитываем позиции по актуальному каталогу: цена на момент
	// оформления авторитетна, цена в корзине — только witness.
	stepStart := time.Now()
	quoteLines := make([]pricing.Line, 0, len(cart.Lines))
	catalog := make([]domain.Product, 0, len(cart.Lines))
	for _, line := range cart.Lines {
		product, err := o.products.Get(line.ProductID)
		if err != nil {
			return domain.Order{}, err
		}
		if !product.Active {
			return domain.Order{}, domain.ErrProductInactive
		}
		if product.StockQty < line.Qty {
			return domain.Order{}, &domain.StockError{
				ProductID: product.ID,
				SKU:       product.SKU,
				Requested: line.Qty,
				Available: product.StockQty,
			}
		}
		catalog = append(catalog, product)
		quoteLines = append(quoteLines, pricing.Line{
			UnitPriceMinor: product.PriceMinor,
			Qty:            line.Qty,
		})
	}

	quote := o.pricing.Quote(quoteLines, req.CouponCode)
	o.recordStep("pricing", stepStart)

	now := time.Now().UTC()
	billing := req.BillingAddress
	if billing.Empty() {
		billing = req.ShippingAddress
	}

	order := domain.Order{
		ID:              uuid.NewString(),
		UserID:          req.Identity.UserID,
		Status:          domain.OrderStatusPending,
		PaymentStatus:   domain.OrderPaymentPending,
		PaymentMethod:   req.PaymentMethod,
		CouponCode:      req.CouponCode,
		Currency:        o.pricing.Currency(),
		SubtotalMinor:   quote.SubtotalMinor,
		TaxMinor:        quote.TaxMinor,
		ShippingMinor:   quote.ShippingMinor,
		DiscountMinor:   quote.DiscountMinor,
		TotalMinor:      quote.TotalMinor,
		ShippingAddress: req.ShippingAddress,
		BillingAddress:  billing,
		DeliveryNotes:   req.DeliveryNotes,
		Version:         1,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	for i, line := range cart.Lines {
		product := catalog[i]
		order.Lines = append(order.Lines, domain.OrderLine{
			ID:             uuid.NewString(),
			ProductID:      product.ID,
			SKU:            product.SKU,
			Name:           product.Name,
			Qty:            line.Qty,
			UnitPriceMinor: product.PriceMinor,
			SubtotalMinor:  product.PriceMinor * int64(line.Qty),
			CreatedAt:      now,
		})
	}

	stepStart = time.Now()
	if err := o.persistWithUniqueNumber(&order); err != nil {
		return domain.Order{}, err
	}
	o.recordStep("persist", stepStart)

	// Авторитетное списание остатков. Любая неудача компенсируется:
	// уже списанные позиции возвращаются, заказ отменяется.
	stepStart = time.Now()
	for i, line := range order.Lines {
		if err := o.products.DecrementStock(line.ProductID, line.Qty); err != nil {
			o.rollbackDecrements(order, i)
			o.cancelAfterStockFailure(order, err)
			return domain.Order{}, err
		}
	}
	o.recordStep("stock", stepStart)

	o.appendTimeline(order.ID, domain.TimelineOrderCreated, "")
	o.enqueueOrderEvent("order.created", order)

	if err := o.carts.Delete(req.Identity); err != nil {
		// Заказ уже создан, поэтому ошибка очистки корзины не фатальна.
		o.logger.WithError(err).WithField("order_id", order.ID).Warn("failed to clear cart after checkout")
	}

	o.logger.WithFields(log.Fields{
		"order_id":    order.ID,
		"number":      order.Number,
		"user_id":     order.UserID,
		"total_minor": order.TotalMinor,
	}).Info("order created")

	return order, nil
}

// Cancel отменяет заказ владельца и возвращает остатки на склад.
func (o *Orchestrator) Cancel(userID, orderID, reason string) (domain.Order, error) {
	order, err := o.getOwned(userID, orderID)
	if err != nil {
		return domain.Order{}, err
	}

	for attempt := 1; ; attempt++ {
		if !order.Cancellable() {
			return domain.Order{}, &domain.TransitionError{
				From: order.Status,
				To:   domain.OrderStatusCancelled,
			}
		}

		now := time.Now().UTC()
		order.Status = domain.OrderStatusCancelled
		order.CancelledAt = &now
		order.UpdatedAt = now

		err = o.orders.Save(order)
		if err == nil {
			break
		}
		if !domain.IsVersionConflict(err) || attempt >= saveAttempts {
			return domain.Order{}, err
		}

		// Конкурентное обновление: перечитываем и пробуем ещё раз.
		order, err = o.orders.Get(orderID)
		if err != nil {
			return domain.Order{}, err
		}
	}

	for _, line := range order.Lines {
		if err := o.products.RestoreStock(line.ProductID, line.Qty); err != nil {
			o.logger.WithError(err).WithFields(log.Fields{
				"order_id":   order.ID,
				"product_id": line.ProductID,
			}).Warn("failed to restore stock on cancel")
		}
	}

	if o.metrics != nil {
		o.metrics.RecordOrderCancelled()
	}
	o.appendTimeline(order.ID, domain.TimelineOrderCancelled, reason)
	o.enqueueOrderEvent("order.cancelled", order)

	o.logger.WithFields(log.Fields{
		"order_id": order.ID,
		"reason":   reason,
	}).Info("order cancelled")

	return o.orders.Get(orderID)
}

// Get возвращает заказ владельца.
func (o *Orchestrator) Get(userID, orderID string) (domain.Order, error) {
	return o.getOwned(userID, orderID)
}

// List возвращает заказы пользователя, новые первыми.
func (o *Orchestrator) List(userID string, limit int) ([]domain.Order, error) {
	if userID == "" {
		return nil, domain.ErrUserRequired
	}
	return o.orders.ListByUser(userID, limit)
}

// Timeline возвращает события жизненного цикла заказа владельца.
func (o *Orchestrator) Timeline(userID, orderID string) ([]domain.TimelineEvent, error) {
	if _, err := o.getOwned(userID, orderID); err != nil {
		return nil, err
	}
	return o.timeline.List(orderID)
}

// Track собирает вехи доставки из статуса заказа и его timeline.
func (o *Orchestrator) Track(userID, orderID string) (TrackingInfo, error) {
	order, err := o.getOwned(userID, orderID)
	if err != nil {
		return TrackingInfo{}, err
	}

	events, err := o.timeline.List(orderID)
	if err != nil {
		return TrackingInfo{}, err
	}

	return TrackingInfo{
		OrderID:        order.ID,
		Number:         order.Number,
		Status:         string(order.Status),
		TrackingNumber: order.TrackingNumber,
		Milestones:     buildMilestones(order, events),
	}, nil
}

func (o *Orchestrator) getOwned(userID, orderID string) (domain.Order, error) {
	if userID == "" {
		return domain.Order{}, domain.ErrUserRequired
	}

	order, err := o.orders.Get(orderID)
	if err != nil {
		return domain.Order{}, err
	}
	// Чужой заказ неотличим от несуществующего.
	if order.UserID != userID {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return order, nil
}

func (o *Orchestrator) persistWithUniqueNumber(order *domain.Order) error {
	var err error
	for attempt := 1; attempt <= orderNumberAttempts; attempt++ {
		order.Number = generateOrderNumber()
		err = o.orders.Create(*order)
		if err == nil {
			return nil
		}
		if !errors.Is(err, domain.ErrOrderNumberCollision) {
			return err
		}
	}
	return fmt.Errorf("order number generation exhausted %d attempts: %w", orderNumberAttempts, err)
}

func (o *Orchestrator) rollbackDecrements(order domain.Order, upto int) {
	for j := 0; j < upto; j++ {
		line := order.Lines[j]
		if err := o.products.RestoreStock(line.ProductID, line.Qty); err != nil {
			o.logger.WithError(err).WithFields(log.Fields{
				"order_id":   order.ID,
				"product_id": line.ProductID,
			}).Error("failed to roll back stock decrement")
		}
	}
}

func (o *Orchestrator) cancelAfterStockFailure(order domain.Order, cause error) {
	now := time.Now().UTC()
	order.Status = domain.OrderStatusCancelled
	order.CancelledAt = &now
	order.UpdatedAt = now

	if err := o.orders.Save(order); err != nil {
		o.logger.WithError(err).WithField("order_id", order.ID).Error("failed to cancel order after stock failure")
	}
	o.appendTimeline(order.ID, domain.TimelineOrderCancelled, cause.Error())
}

func (o *Orchestrator) appendTimeline(orderID, eventType, reason string) {
	event := domain.TimelineEvent{
		OrderID:  orderID,
		Type:     eventType,
		Reason:   reason,
		Occurred: time.Now().UTC(),
	}
	if err := o.timeline.Append(event); err != nil {
		o.logger.WithError(err).WithField("order_id", orderID).Warn("failed to append timeline event")
		return
	}
	if o.metrics != nil {
		o.metrics.RecordTimelineEvent()
	}
}

func (o *Orchestrator) enqueueOrderEvent(eventType string, order domain.Order) {
	payload, err := json.Marshal(map[string]any{
		"order_id":     order.ID,
		"order_number": order.Number,
		"user_id":      order.UserID,
		"status":       string(order.Status),
		"total_minor":  order.TotalMinor,
		"currency":     order.Currency,
	})
	if err != nil {
		o.logger.WithError(err).WithField("order_id", order.ID).Warn("failed to marshal order event")
		return
	}

	if _, err := o.outbox.Enqueue(domain.OutboxMessage{
		AggregateType: "order",
		AggregateID:   order.ID,
		EventType:     eventType,
		Payload:       payload,
	}); err != nil {
		o.logger.WithError(err).WithField("order_id", order.ID).Warn("failed to enqueue order event")
		return
	}
	if o.metrics != nil {
		o.metrics.RecordOutboxEvent()
	}
}

func (o *Orchestrator) recordStep(step string, start time.Time) {
	if o.metrics != nil {
		o.metrics.RecordStepDuration(step, time.Since(start))
	}
}

// statusRank задаёт порядок вех доставки. Отменённые и возвращённые
// заказы не ранжируются — для них строится отдельная ветка вех.
func statusRank(status domain.OrderStatus) int {
	switch status {
	case domain.OrderStatusPending:
		return 0
	case domain.OrderStatusProcessing:
		return 1
	case domain.OrderStatusPacked:
		return 2
	case domain.OrderStatusShipped:
		return 3
	case domain.OrderStatusDelivered:
		return 4
	default:
		return -1
	}
}

func buildMilestones(order domain.Order, events []domain.TimelineEvent) []Milestone {
	created := order.CreatedAt
	milestones := []Milestone{{Title: "Order Placed", Done: true, Occurred: &created}}

	if order.Status == domain.OrderStatusCancelled || order.Status == domain.OrderStatusRefunded {
		occurred := order.CancelledAt
		if occurred == nil {
			if at, ok := eventTime(events, domain.TimelineOrderCancelled); ok {
				occurred = &at
			}
		}
		return append(milestones, Milestone{Title: "Cancelled", Done: true, Occurred: occurred})
	}

	rank := statusRank(order.Status)

	paid := Milestone{Title: "Payment Confirmed", Done: order.PaymentStatus == domain.OrderPaymentPaid}
	if paid.Done {
		paid.Occurred = order.PaidAt
	}
	milestones = append(milestones, paid)

	steps := []struct {
		title string
		rank  int
	}{
		{"Processing", 1},
		{"Shipped", 3},
		{"Delivered", 4},
	}
	for _, step := range steps {
		m := Milestone{Title: step.title, Done: rank >= step.rank}
		if m.Done {
			if at, ok := statusChangeTime(events, step.rank); ok {
				m.Occurred = &at
			}
		}
		milestones = append(milestones, m)
	}
	return milestones
}

func eventTime(events []domain.TimelineEvent, eventType string) (time.Time, bool) {
	for _, e := range events {
		if e.Type == eventType {
			return e.Occurred, true
		}
	}
	return time.Time{}, false
}

// statusChangeTime ищет момент, когда заказ достиг вехи нужного ранга.
func statusChangeTime(events []domain.TimelineEvent, rank int) (time.Time, bool) {
	for _, e := range events {
		if e.Type != domain.TimelineOrderStatusChanged {
			continue
		}
		if statusRank(domain.OrderStatus(e.Reason)) == rank {
			return e.Occurred, true
		}
	}
	return time.Time{}, false
}

const orderNumberAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// generateOrderNumber собирает человекочитаемый номер из миллисекунд
// эпохи в base36 и пяти случайных символов. Уникальность гарантирует
// не генератор, а уникальный индекс по номеру.
func generateOrderNumber() string {
	millis := strconv.FormatInt(time.Now().UnixMilli(), 36)

	suffix := make([]byte, 5)
	if _, err := rand.Read(suffix); err != nil {
		// crypto/rand недоступен только в деградировавшей среде;
		// наносекунды дают приемлемый fallback.
		nanos := strconv.FormatInt(time.Now().UnixNano(), 36)
		suffix = []byte(nanos[len(nanos)-5:])
	} else {
		for i, b := range suffix {
			suffix[i] = orderNumberAlphabet[int(b)%len(orderNumberAlphabet)]
		}
	}

	return "ORD-" + strings.ToUpper(millis) + "-" + strings.ToUpper(string(suffix))
}
