package memory

import (
	"sort"
	"sync"
	"time"

	"github.com/skooli/storefront/internal/domain"
)

// paymentRepositoryInMemory хранит попытки оплаты в памяти.
type paymentRepositoryInMemory struct {
	mu    sync.RWMutex
	items map[string]domain.Payment
}

// NewPaymentRepository возвращает in-memory реализацию PaymentRepository.
func NewPaymentRepository() domain.PaymentRepository {
	return &paymentRepositoryInMemory{items: make(map[string]domain.Payment)}
}

// Create сохраняет новую попытку оплаты.
func (r *paymentRepositoryInMemory) Create(payment domain.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.items[payment.ID]; exists {
		return domain.ErrPaymentNotFound
	}
	if payment.CreatedAt.IsZero() {
		payment.CreatedAt = time.Now().UTC()
	}
	r.items[payment.ID] = clonePayment(payment)
	return nil
}

// Get возвращает платёж или ErrPaymentNotFound.
func (r *paymentRepositoryInMemory) Get(id string) (domain.Payment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	payment, ok := r.items[id]
	if !ok {
		return domain.Payment{}, domain.ErrPaymentNotFound
	}
	return clonePayment(payment), nil
}

// GetByProviderTx ищет платёж по паре (provider, providerTxID).
func (r *paymentRepositoryInMemory) GetByProviderTx(provider, providerTxID string) (domain.Payment, error) {
	if provider == "" || providerTxID == "" {
		return domain.Payment{}, domain.ErrPaymentNotFound
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, payment := range r.items {
		if payment.Provider == provider && payment.ProviderTxID == providerTxID {
			return clonePayment(payment), nil
		}
	}
	return domain.Payment{}, domain.ErrPaymentNotFound
}

// ListByOrder возвращает попытки оплаты заказа, старые первыми.
func (r *paymentRepositoryInMemory) ListByOrder(orderID string) ([]domain.Payment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]domain.Payment, 0)
	for _, payment := range r.items {
		if payment.OrderID == orderID {
			result = append(result, clonePayment(payment))
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.Before(result[j].CreatedAt)
		}
		return result[i].ID < result[j].ID
	})

	return result, nil
}

// Save перезаписывает платёж.
func (r *paymentRepositoryInMemory) Save(payment domain.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.items[payment.ID]; !ok {
		return domain.ErrPaymentNotFound
	}
	payment.UpdatedAt = time.Now().UTC()
	r.items[payment.ID] = clonePayment(payment)
	return nil
}

// HasPending сообщает, есть ли у заказа незавершённая попытка оплаты.
func (r *paymentRepositoryInMemory) HasPending(orderID string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, payment := range r.items {
		if payment.OrderID == orderID && !payment.Status.Terminal() {
			return true, nil
		}
	}
	return false, nil
}

func clonePayment(src domain.Payment) domain.Payment {
	dst := src
	dst.RawResponse = append([]byte(nil), src.RawResponse...)
	if src.PaidAt != nil {
		paidAt := *src.PaidAt
		dst.PaidAt = &paidAt
	}
	if src.FailedAt != nil {
		failedAt := *src.FailedAt
		dst.FailedAt = &failedAt
	}
	return dst
}

var _ domain.PaymentRepository = (*paymentRepositoryInMemory)(nil)
