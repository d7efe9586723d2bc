package domain

import (
	"errors"
	"fmt"
)

var (
	// Ошибка отсутствующего владельца корзины/заказа.
	ErrIdentityRequired = errors.New("identity is required")
	// Ошибка identity с одновременно заполненными user_id и session_id.
	ErrIdentityAmbiguous = errors.New("identity must be user or session, not both")
	// Ошибка отсутствующего идентификатора пользователя.
	ErrUserRequired = errors.New("user_id is required")
	// Ошибка отсутствующего номера заказа.
	ErrOrderNumberRequired = errors.New("order number is required")
	// Ошибка отсутствующего кода валюты.
	ErrCurrencyRequired = errors.New("currency is required")
	// Ошибка заказа без позиций.
	ErrOrderLinesRequired = errors.New("order must contain at least one line")
	// Ошибка отрицательной суммы.
	ErrAmountNegative = errors.New("amount must be non-negative")
	// Ошибка некорректного количества в позиции (<= 0).
	ErrLineQtyInvalid = errors.New("line qty must be greater than zero")
	// Ошибка отрицательной цены позиции.
	ErrLinePriceInvalid = errors.New("line price must be non-negative")
	// Ошибка несоответствия subtotal позиции произведению цены на количество.
	ErrLineSubtotalMismatch = errors.New("line subtotal does not match price*qty")
	// Ошибка несоответствия subtotal заказа сумме позиций.
	ErrSubtotalMismatch = errors.New("order subtotal does not match lines sum")
	// Ошибка нарушения тождества total == subtotal+tax+shipping-discount.
	ErrTotalMismatch = errors.New("order total does not match components")
	// Ошибка отсутствующего идентификатора заказа в платеже.
	ErrOrderIDRequired = errors.New("order_id is required")
	// Ошибка отсутствующего тега платёжного провайдера.
	ErrPaymentProviderRequired = errors.New("payment provider is required")
	// Ошибка отрицательной суммы платежа.
	ErrPaymentAmountNegative = errors.New("payment amount must be non-negative")

	// ErrShippingAddressRequired — оформление заказа без адреса доставки.
	ErrShippingAddressRequired = errors.New("shipping address is required")

	// ErrCartNotFound возвращается, если у identity нет активной корзины.
	ErrCartNotFound = errors.New("cart not found")
	// ErrEmptyCart — попытка оформить заказ из пустой корзины.
	ErrEmptyCart = errors.New("cart is empty")
	// ErrProductNotFound — товар отсутствует в каталоге.
	ErrProductNotFound = errors.New("product not found")
	// ErrProductInactive — товар снят с продажи и не может быть добавлен.
	ErrProductInactive = errors.New("product is not available for sale")
	// ErrOrderNotFound — заказ не найден или не принадлежит вызывающему.
	ErrOrderNotFound = errors.New("order not found")
	// ErrPaymentNotFound — платёж не найден или не принадлежит вызывающему.
	ErrPaymentNotFound = errors.New("payment not found")
	// ErrInsufficientStock — запрошенное количество превышает остаток.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrUnsupportedPaymentMethod — неизвестный тег платёжного метода.
	ErrUnsupportedPaymentMethod = errors.New("unsupported payment method")
	// ErrInvalidStateTransition — запрошенный переход запрещён машиной состояний.
	ErrInvalidStateTransition = errors.New("invalid state transition")
	// ErrProviderUnavailable — внешний платёжный вызов упал или не уложился в таймаут.
	ErrProviderUnavailable = errors.New("payment provider unavailable")
	// ErrPaymentInFlight — у заказа уже есть незавершённая попытка оплаты.
	ErrPaymentInFlight = errors.New("order already has a pending payment attempt")
	// ErrOrderNotPayable — заказ не в состоянии, допускающем оплату.
	ErrOrderNotPayable = errors.New("order is not payable")
	// ErrOrderVersionConflict сигнализирует о конфликте версий при сохранении.
	ErrOrderVersionConflict = errors.New("order version conflict")
	// ErrOrderNumberCollision — не удалось сгенерировать уникальный номер заказа.
	ErrOrderNumberCollision = errors.New("order number collision")
	// ErrOutboxPublish — ошибка при публикации сообщения из outbox.
	ErrOutboxPublish = errors.New("outbox publish failed")

	// ErrIdempotencyKeyRequired — пустой idempotency key.
	ErrIdempotencyKeyRequired = errors.New("idempotency key is required")
	// ErrIdempotencyKeyAlreadyExists — событие с таким ключом уже принято.
	ErrIdempotencyKeyAlreadyExists = errors.New("idempotency key already exists")
	// ErrIdempotencyKeyNotFound — ключ не найден в хранилище.
	ErrIdempotencyKeyNotFound = errors.New("idempotency key not found")
)

// StockError уточняет ErrInsufficientStock: какой товар и сколько не хватило.
type StockError struct {
	ProductID string
	SKU       string
	Requested int32
	Available int32
}

func (e *StockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s: requested %d, available %d", e.SKU, e.Requested, e.Available)
}

// Unwrap позволяет errors.Is(err, ErrInsufficientStock).
func (e *StockError) Unwrap() error {
	return ErrInsufficientStock
}

// TransitionError уточняет ErrInvalidStateTransition текущим и целевым статусом.
type TransitionError struct {
	From OrderStatus
	To   OrderStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot transition order from %q to %q", e.From, e.To)
}

func (e *TransitionError) Unwrap() error {
	return ErrInvalidStateTransition
}

// IsVersionConflict проверяет, является ли ошибка конфликтом версий.
func IsVersionConflict(err error) bool {
	return errors.Is(err, ErrOrderVersionConflict)
}
