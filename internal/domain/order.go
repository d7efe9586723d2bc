package domain

import "time"

// OrderStatus описывает жизненный цикл заказа.
type OrderStatus string

const (
	// OrderStatusPending — заказ создан, оплата ещё не подтверждена.
	OrderStatusPending OrderStatus = "pending"
	// OrderStatusProcessing — оплата подтверждена, заказ собирается.
	OrderStatusProcessing OrderStatus = "processing"
	// OrderStatusPacked — заказ собран и ожидает курьера.
	OrderStatusPacked OrderStatus = "packed"
	// OrderStatusShipped — заказ передан в доставку.
	OrderStatusShipped OrderStatus = "shipped"
	// OrderStatusDelivered — заказ доставлен покупателю.
	OrderStatusDelivered OrderStatus = "delivered"
	// OrderStatusCancelled — заказ отменён до исполнения.
	OrderStatusCancelled OrderStatus = "cancelled"
	// OrderStatusRefunded — деньги возвращены покупателю.
	OrderStatusRefunded OrderStatus = "refunded"
)

// OrderPaymentStatus — отдельная машина состояний оплаты заказа.
type OrderPaymentStatus string

const (
	OrderPaymentPending OrderPaymentStatus = "pending"
	OrderPaymentPaid    OrderPaymentStatus = "paid"
)

// Address — снимок адреса на момент оформления. Копируется в заказ,
// чтобы последующие правки адресной книги не меняли историю.
type Address struct {
	FullName string `json:"full_name"`
	Phone    string `json:"phone"`
	Line1    string `json:"line1"`
	City     string `json:"city"`
	Country  string `json:"country"`
}

// Empty проверяет, заполнен ли адрес хотя бы частично.
func (a Address) Empty() bool {
	return a == (Address{})
}

// OrderLine — неизменяемая позиция заказа с ценой на момент оформления.
type OrderLine struct {
	ID        string
	ProductID string
	SKU       string
	Name      string
	Qty       int32
	// UnitPriceMinor — цена за единицу, скопированная из каталога при оформлении.
	UnitPriceMinor int64
	// SubtotalMinor == UnitPriceMinor * Qty, фиксируется при создании.
	SubtotalMinor int64
	CreatedAt     time.Time
}

// Order агрегирует неизменяемый оформленный заказ и его позиции.
// Суммы вычисляются один раз при создании и никогда не пересчитываются.
type Order struct {
	ID string
	// Number — человекочитаемый глобально уникальный номер заказа.
	Number        string
	UserID        string
	Status        OrderStatus
	PaymentStatus OrderPaymentStatus
	PaymentMethod string
	CouponCode    string

	Currency      string
	SubtotalMinor int64
	TaxMinor      int64
	ShippingMinor int64
	DiscountMinor int64
	TotalMinor    int64

	ShippingAddress Address
	BillingAddress  Address
	DeliveryNotes   string
	TrackingNumber  string

	Lines []OrderLine

	PaidAt      *time.Time
	CancelledAt *time.Time
	// Version используется для optimistic locking при сохранении.
	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Cancellable сообщает, допускает ли текущий статус отмену.
// Отменить можно только не начавший исполняться заказ.
func (o *Order) Cancellable() bool {
	return o.Status == OrderStatusPending || o.Status == OrderStatusProcessing
}

// Terminal сообщает, достиг ли заказ конечного статуса.
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled || s == OrderStatusRefunded
}

// ValidateInvariants проверяет базовые инварианты заказа и возвращает список замечаний.
func (o *Order) ValidateInvariants() []error {
	var errs []error

	if o.UserID == "" {
		errs = append(errs, ErrUserRequired)
	}
	if o.Number == "" {
		errs = append(errs, ErrOrderNumberRequired)
	}
	if o.Currency == "" {
		errs = append(errs, ErrCurrencyRequired)
	}
	if len(o.Lines) == 0 {
		errs = append(errs, ErrOrderLinesRequired)
	}
	if o.SubtotalMinor < 0 || o.TaxMinor < 0 || o.ShippingMinor < 0 || o.DiscountMinor < 0 || o.TotalMinor < 0 {
		errs = append(errs, ErrAmountNegative)
	}

	// Сверяем сумму позиций с subtotal и тождество итога.
	var linesSum int64
	for _, line := range o.Lines {
		if line.Qty <= 0 {
			errs = append(errs, ErrLineQtyInvalid)
		}
		if line.UnitPriceMinor < 0 {
			errs = append(errs, ErrLinePriceInvalid)
		}
		if line.SubtotalMinor != line.UnitPriceMinor*int64(line.Qty) {
			errs = append(errs, ErrLineSubtotalMismatch)
		}
		linesSum += line.SubtotalMinor
	}
	if linesSum != o.SubtotalMinor {
		errs = append(errs, ErrSubtotalMismatch)
	}
	if o.TotalMinor != o.SubtotalMinor+o.TaxMinor+o.ShippingMinor-o.DiscountMinor {
		errs = append(errs, ErrTotalMismatch)
	}

	return errs
}
