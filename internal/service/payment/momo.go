package payment

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/skooli/storefront/internal/domain"
)

// Словарь статусов mobile-money шлюза.
const (
	momoStatusSuccessful = "SUCCESSFUL"
	momoStatusFailed     = "FAILED"
	momoStatusPending    = "PENDING"
)

// MoMoConfig — настройки подключения к mobile-money шлюзу.
type MoMoConfig struct {
	BaseURL         string
	SubscriptionKey string
	Timeout         time.Duration
}

// MoMoProvider — адаптер mobile-money оплаты. Списание обычно
// асинхронное: Initiate возвращает pending, итог приходит webhook'ом
// или добирается опросом CheckStatus.
type MoMoProvider struct {
	client *resty.Client
}

var _ domain.PaymentProvider = (*MoMoProvider)(nil)

// NewMoMoProvider создаёт адаптер mobile-money.
func NewMoMoProvider(cfg MoMoConfig) *MoMoProvider {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetHeader("Ocp-Apim-Subscription-Key", cfg.SubscriptionKey)
	return &MoMoProvider{client: client}
}

func (p *MoMoProvider) Method() string { return "momo" }

type momoChargeRequest struct {
	Amount      int64  `json:"amount"`
	Currency    string `json:"currency"`
	PhoneNumber string `json:"phone_number"`
	ExternalID  string `json:"external_id"`
	Narration   string `json:"narration"`
}

type momoChargeResponse struct {
	TransactionID string `json:"transaction_id"`
	Status        string `json:"status"`
	Message       string `json:"message"`
}

// Initiate запускает запрос на списание с мобильного кошелька.
func (p *MoMoProvider) Initiate(ctx context.Context, order domain.Order, details domain.ChargeDetails) (domain.PaymentHandle, error) {
	phone, err := NormalizeUgandanPhone(details.PhoneNumber)
	if err != nil {
		return domain.PaymentHandle{}, err
	}

	var out momoChargeResponse
	resp, err := p.client.R().
		SetContext(ctx).
		SetBody(momoChargeRequest{
			Amount:      order.TotalMinor,
			Currency:    order.Currency,
			PhoneNumber: phone,
			ExternalID:  order.Number,
			Narration:   "Skooli order " + order.Number,
		}).
		SetResult(&out).
		Post("/collections/requesttopay")
	if err != nil {
		return domain.PaymentHandle{}, fmt.Errorf("%w: %v", domain.ErrProviderUnavailable, err)
	}
	if resp.IsError() {
		return domain.PaymentHandle{}, fmt.Errorf("%w: momo returned %s", domain.ErrProviderUnavailable, resp.Status())
	}

	return domain.PaymentHandle{
		ProviderTxID: out.TransactionID,
		Status:       normalizeMomoStatus(out.Status),
		Raw:          resp.Body(),
		Reference:    order.Number,
		Instructions: "Approve the payment prompt on " + phone,
	}, nil
}

// CheckStatus опрашивает шлюз по идентификатору транзакции.
func (p *MoMoProvider) CheckStatus(ctx context.Context, providerTxID string) (domain.PaymentHandle, error) {
	var out momoChargeResponse
	resp, err := p.client.R().
		SetContext(ctx).
		SetResult(&out).
		Get("/collections/requesttopay/" + providerTxID)
	if err != nil {
		return domain.PaymentHandle{}, fmt.Errorf("%w: %v", domain.ErrProviderUnavailable, err)
	}
	if resp.IsError() {
		return domain.PaymentHandle{}, fmt.Errorf("%w: momo returned %s", domain.ErrProviderUnavailable, resp.Status())
	}

	return domain.PaymentHandle{
		ProviderTxID: providerTxID,
		Status:       normalizeMomoStatus(out.Status),
		Raw:          resp.Body(),
	}, nil
}

func normalizeMomoStatus(status string) domain.PaymentStatus {
	switch strings.ToUpper(status) {
	case momoStatusSuccessful:
		return domain.PaymentStatusSuccess
	case momoStatusFailed:
		return domain.PaymentStatusFailed
	default:
		return domain.PaymentStatusPending
	}
}

// NormalizeUgandanPhone приводит номер к международному формату 2567XXXXXXXX.
// Принимаются формы +256..., 256..., 07... и 7... с пробелами и дефисами.
func NormalizeUgandanPhone(raw string) (string, error) {
	cleaned := strings.Map(func(r rune) rune {
		if r == ' ' || r == '-' || r == '(' || r == ')' {
			return -1
		}
		return r
	}, strings.TrimSpace(raw))
	cleaned = strings.TrimPrefix(cleaned, "+")

	switch {
	case strings.HasPrefix(cleaned, "256"):
		// уже международный
	case strings.HasPrefix(cleaned, "0"):
		cleaned = "256" + cleaned[1:]
	case cleaned != "" && cleaned[0] == '7':
		cleaned = "256" + cleaned
	}

	if len(cleaned) != 12 || !strings.HasPrefix(cleaned, "2567") {
		return "", fmt.Errorf("invalid ugandan phone number %q", raw)
	}
	for _, r := range cleaned {
		if r < '0' || r > '9' {
			return "", fmt.Errorf("invalid ugandan phone number %q", raw)
		}
	}
	return cleaned, nil
}
