package payment

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/skooli/storefront/internal/domain"
)

// CardConfig — настройки карточного процессинга.
type CardConfig struct {
	BaseURL   string
	SecretKey string
	Timeout   time.Duration
}

// CardProvider — адаптер карточного процессинга. Создаёт charge intent
// и возвращает клиенту client secret для подтверждения 3DS на фронте.
type CardProvider struct {
	client *resty.Client
}

var _ domain.PaymentProvider = (*CardProvider)(nil)

// NewCardProvider создаёт адаптер карточной оплаты.
func NewCardProvider(cfg CardConfig) *CardProvider {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetAuthToken(cfg.SecretKey)
	return &CardProvider{client: client}
}

func (p *CardProvider) Method() string { return "card" }

type cardChargeRequest struct {
	Amount      int64  `json:"amount"`
	Currency    string `json:"currency"`
	Reference   string `json:"reference"`
	Description string `json:"description"`
}

type cardChargeResponse struct {
	ID           string `json:"id"`
	Status       string `json:"status"`
	ClientSecret string `json:"client_secret"`
}

func (p *CardProvider) Initiate(ctx context.Context, order domain.Order, details domain.ChargeDetails) (domain.PaymentHandle, error) {
	var out cardChargeResponse
	resp, err := p.client.R().
		SetContext(ctx).
		SetBody(cardChargeRequest{
			Amount:      order.TotalMinor,
			Currency:    order.Currency,
			Reference:   order.Number,
			Description: "Skooli order " + order.Number,
		}).
		SetResult(&out).
		Post("/v1/charges")
	if err != nil {
		return domain.PaymentHandle{}, fmt.Errorf("%w: %v", domain.ErrProviderUnavailable, err)
	}
	if resp.IsError() {
		return domain.PaymentHandle{}, fmt.Errorf("%w: card gateway returned %s", domain.ErrProviderUnavailable, resp.Status())
	}

	return domain.PaymentHandle{
		ProviderTxID: out.ID,
		Status:       normalizeCardStatus(out.Status),
		Raw:          resp.Body(),
		Reference:    order.Number,
		ClientSecret: out.ClientSecret,
	}, nil
}

func (p *CardProvider) CheckStatus(ctx context.Context, providerTxID string) (domain.PaymentHandle, error) {
	var out cardChargeResponse
	resp, err := p.client.R().
		SetContext(ctx).
		SetResult(&out).
		Get("/v1/charges/" + providerTxID)
	if err != nil {
		return domain.PaymentHandle{}, fmt.Errorf("%w: %v", domain.ErrProviderUnavailable, err)
	}
	if resp.IsError() {
		return domain.PaymentHandle{}, fmt.Errorf("%w: card gateway returned %s", domain.ErrProviderUnavailable, resp.Status())
	}

	return domain.PaymentHandle{
		ProviderTxID: providerTxID,
		Status:       normalizeCardStatus(out.Status),
		Raw:          resp.Body(),
	}, nil
}

func normalizeCardStatus(status string) domain.PaymentStatus {
	switch strings.ToLower(status) {
	case "succeeded":
		return domain.PaymentStatusSuccess
	case "failed", "canceled":
		return domain.PaymentStatusFailed
	default:
		// requires_confirmation, requires_action, processing.
		return domain.PaymentStatusPending
	}
}
