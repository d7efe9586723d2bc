package domain

import "time"

// IdempotencyStatus описывает жизненный цикл принятого внешнего события.
type IdempotencyStatus string

const (
	// IdempotencyStatusProcessing — событие принято и ещё применяется.
	IdempotencyStatusProcessing IdempotencyStatus = "processing"
	// IdempotencyStatusDone — событие применено к платежу/заказу.
	IdempotencyStatusDone IdempotencyStatus = "done"
	// IdempotencyStatusFailed — применение завершилось ошибкой.
	IdempotencyStatusFailed IdempotencyStatus = "failed"
)

// IdempotencyRecord — guard для at-most-once применения платёжных событий.
// Key строится как "<provider>:<providerTxID>", поэтому повторная доставка
// того же webhook безопасно превращается в no-op.
type IdempotencyRecord struct {
	Key string
	// EventHash — хэш сырого payload; расхождение при том же ключе
	// означает, что провайдер прислал другое событие под тем же ID.
	EventHash string
	// Outcome — нормализованный статус платежа после применения.
	Outcome   string
	Status    IdempotencyStatus
	TTLAt     time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Valid проверяет, что статус относится к поддерживаемым значениям.
func (s IdempotencyStatus) Valid() bool {
	switch s {
	case IdempotencyStatusProcessing, IdempotencyStatusDone, IdempotencyStatusFailed:
		return true
	default:
		return false
	}
}
