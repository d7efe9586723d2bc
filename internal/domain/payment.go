package domain

import "time"

// PaymentStatus описывает нормализованное состояние платежа.
// Словарь каждого провайдера приводится к этим четырём значениям.
type PaymentStatus string

const (
	// PaymentStatusPending — платёж инициирован, подтверждение ещё не пришло.
	PaymentStatusPending PaymentStatus = "pending"
	// PaymentStatusSuccess — провайдер подтвердил списание средств.
	PaymentStatusSuccess PaymentStatus = "success"
	// PaymentStatusFailed — провайдер отклонил платёж.
	PaymentStatusFailed PaymentStatus = "failed"
	// PaymentStatusCancelled — попытка оплаты отменена до подтверждения.
	PaymentStatusCancelled PaymentStatus = "cancelled"
)

// Terminal сообщает, является ли статус конечным: конечные статусы
// никогда не откатываются назад.
func (s PaymentStatus) Terminal() bool {
	return s == PaymentStatusSuccess || s == PaymentStatusFailed || s == PaymentStatusCancelled
}

// Payment описывает одну попытку оплаты заказа. Заказ может иметь
// несколько попыток, но не более одной незавершённой одновременно.
type Payment struct {
	ID      string
	OrderID string
	// Provider — тег платёжного метода (momo/card/paypal).
	Provider string
	// ProviderTxID — идентификатор транзакции на стороне провайдера.
	// Пустой, пока провайдер его не назначил.
	ProviderTxID string
	AmountMinor  int64
	Currency     string
	Status       PaymentStatus
	// RawResponse — непрозрачный ответ провайдера, хранится для аудита и replay.
	RawResponse []byte
	// PhoneNumber заполняется для mobile-money платежей.
	PhoneNumber string
	PaidAt      *time.Time
	FailedAt    *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Validate проверяет корректность ключевых полей платежа.
func (p *Payment) Validate() []error {
	var errs []error

	if p.OrderID == "" {
		errs = append(errs, ErrOrderIDRequired)
	}
	if p.Provider == "" {
		errs = append(errs, ErrPaymentProviderRequired)
	}
	if p.AmountMinor < 0 {
		errs = append(errs, ErrPaymentAmountNegative)
	}
	if p.Currency == "" {
		errs = append(errs, ErrCurrencyRequired)
	}

	return errs
}

// PaymentHandle — нормализованный результат обращения к провайдеру:
// то, что отдаётся клиенту для завершения оплаты, плюс сырой ответ.
type PaymentHandle struct {
	ProviderTxID string
	Status       PaymentStatus
	// Raw — ответ провайдера как есть.
	Raw []byte
	// Провайдеро-специфичные реквизиты для клиента; заполняются выборочно.
	RedirectURL  string
	Reference    string
	ClientSecret string
	Instructions string
}

// ChargeDetails — провайдеро-специфичные детали, передаваемые клиентом
// при инициализации платежа.
type ChargeDetails struct {
	PhoneNumber string
	Email       string
	ReturnURL   string
	CancelURL   string
}
