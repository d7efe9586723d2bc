package domain

import (
	"context"
	"time"
)

// CartRepository хранит активные корзины. На одну identity — не более одной.
type CartRepository interface {
	// GetByIdentity возвращает корзину владельца или ErrCartNotFound.
	GetByIdentity(identity Identity) (Cart, error)
	// Upsert создаёт или перезаписывает корзину владельца.
	Upsert(cart Cart) (Cart, error)
	// Delete удаляет корзину владельца; отсутствие корзины не ошибка.
	Delete(identity Identity) error
}

// ProductRepository читает каталог и двигает авторитетный остаток.
type ProductRepository interface {
	// Get возвращает товар или ErrProductNotFound.
	Get(id string) (Product, error)
	// DecrementStock атомарно уменьшает остаток на qty.
	// Возвращает *StockError, если остатка не хватает: проверка и
	// списание выполняются одним условным обновлением, не read-then-write.
	DecrementStock(id string, qty int32) error
	// RestoreStock возвращает qty единиц на склад (компенсация/отмена).
	RestoreStock(id string, qty int32) error
}

// OrderRepository описывает требования к хранилищу заказов.
type OrderRepository interface {
	// Create сохраняет новый заказ вместе с позициями.
	// Возвращает ErrOrderNumberCollision при конфликте номера.
	Create(order Order) error
	// Get возвращает заказ по идентификатору или ErrOrderNotFound.
	Get(id string) (Order, error)
	// GetByNumber возвращает заказ по человекочитаемому номеру.
	GetByNumber(number string) (Order, error)
	// ListByUser возвращает заказы пользователя, новые первыми.
	ListByUser(userID string, limit int) ([]Order, error)
	// Save применяет обновления с учётом optimistic locking.
	Save(order Order) error
}

// PaymentRepository хранит попытки оплаты.
type PaymentRepository interface {
	Create(payment Payment) error
	// Get возвращает платёж или ErrPaymentNotFound.
	Get(id string) (Payment, error)
	// GetByProviderTx ищет платёж по паре (provider, providerTxID).
	GetByProviderTx(provider, providerTxID string) (Payment, error)
	// ListByOrder возвращает все попытки оплаты заказа, старые первыми.
	ListByOrder(orderID string) ([]Payment, error)
	// Save перезаписывает платёж.
	Save(payment Payment) error
	// HasPending сообщает, есть ли у заказа незавершённая попытка.
	HasPending(orderID string) (bool, error)
}

// PaymentProvider — единый интерфейс над внешним платёжным процессором.
// Одна реализация на провайдера; статусы всегда нормализованы.
type PaymentProvider interface {
	// Method возвращает тег метода, по которому выбирается реализация.
	Method() string
	// Initiate запускает списание. Для асинхронных провайдеров
	// (mobile-money) возвращает pending, итог приходит через webhook.
	Initiate(ctx context.Context, order Order, details ChargeDetails) (PaymentHandle, error)
	// CheckStatus опрашивает провайдера по его идентификатору транзакции.
	CheckStatus(ctx context.Context, providerTxID string) (PaymentHandle, error)
}

// OutboxPublisher публикует события из transactional outbox.
type OutboxPublisher interface {
	// Publish передаёт событие наружу; должен быть идемпотентным.
	Publish(event OutboxMessage) error
}

// OutboxRepository позволяет сохранять события для последующей публикации.
type OutboxRepository interface {
	Enqueue(msg OutboxMessage) (OutboxMessage, error)
	PullPending(limit int) ([]OutboxMessage, error)
	Stats() (OutboxStats, error)
	MarkSent(id string) error
	MarkFailed(id string) error
}

// TimelineRepository хранит события жизненного цикла заказа.
type TimelineRepository interface {
	Append(event TimelineEvent) error
	List(orderID string) ([]TimelineEvent, error)
}

// IdempotencyRepository хранит обработанные внешние платёжные события,
// ключ — "<provider>:<providerTxID>".
type IdempotencyRepository interface {
	// CreateProcessing регистрирует новое событие. Возвращает существующую
	// запись и ErrIdempotencyKeyAlreadyExists при повторной доставке.
	CreateProcessing(key, eventHash string, ttlAt time.Time) (IdempotencyRecord, error)
	Get(key string) (IdempotencyRecord, error)
	MarkDone(key, outcome string) error
	MarkFailed(key, outcome string) error
	DeleteExpired(before time.Time, limit int) (int, error)
}
