package payment

import (
	"context"
	"fmt"
	"sync"

	"github.com/skooli/storefront/internal/domain"
)

// MockProvider — конфигурируемая заглушка PaymentProvider для тестов
// и локального запуска без внешних шлюзов.
type MockProvider struct {
	MethodTag      string
	InitiateStatus domain.PaymentStatus
	InitiateErr    error
	CheckStatuses  map[string]domain.PaymentStatus
	CheckErr       error

	mu            sync.Mutex
	initiateCalls int
	checkCalls    int
}

// NewMockProvider возвращает mock с асинхронным успешным сценарием:
// Initiate отдаёт pending, CheckStatus — success.
func NewMockProvider(method string) *MockProvider {
	return &MockProvider{
		MethodTag:      method,
		InitiateStatus: domain.PaymentStatusPending,
	}
}

func (m *MockProvider) Method() string { return m.MethodTag }

// Initiate возвращает заранее настроенный результат и считает вызовы.
func (m *MockProvider) Initiate(ctx context.Context, order domain.Order, details domain.ChargeDetails) (domain.PaymentHandle, error) {
	m.mu.Lock()
	m.initiateCalls++
	n := m.initiateCalls
	m.mu.Unlock()

	if m.InitiateErr != nil {
		return domain.PaymentHandle{}, m.InitiateErr
	}
	return domain.PaymentHandle{
		ProviderTxID: fmt.Sprintf("%s-tx-%d", m.MethodTag, n),
		Status:       m.InitiateStatus,
		Raw:          []byte(`{"mock":true}`),
		Reference:    order.Number,
	}, nil
}

// CheckStatus возвращает статус из CheckStatuses либо success.
func (m *MockProvider) CheckStatus(ctx context.Context, providerTxID string) (domain.PaymentHandle, error) {
	m.mu.Lock()
	m.checkCalls++
	m.mu.Unlock()

	if m.CheckErr != nil {
		return domain.PaymentHandle{}, m.CheckErr
	}

	status := domain.PaymentStatusSuccess
	if s, ok := m.CheckStatuses[providerTxID]; ok {
		status = s
	}
	return domain.PaymentHandle{
		ProviderTxID: providerTxID,
		Status:       status,
		Raw:          []byte(`{"mock":true}`),
	}, nil
}

// InitiateCalls возвращает количество обращений к Initiate.
func (m *MockProvider) InitiateCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.initiateCalls
}

var _ domain.PaymentProvider = (*MockProvider)(nil)
