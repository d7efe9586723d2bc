package payment

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/skooli/storefront/internal/domain"
)

// PayPalConfig — настройки PayPal REST API.
type PayPalConfig struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	Timeout      time.Duration
}

/// PayPalProvider — адаптер redirect-провайдера: Initiate создаёт order
// на стороне PayPal и возвращает покупателю approval URL.
type PayPalProvider struct {
	client *resty.Client
}

var _ domain.PaymentProvider = (*PayPalProvider)(nil)

// NewPayPalProvider создаёт адаптер PayPal.
func NewPayPalProvider(cfg PayPalConfig) *PayPalProvider {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetBasicAuth(cfg.ClientID, cfg.ClientSecret)
	return &PayPalProvider{client: client}
}

func (p *PayPalProvider) Method() string { return "paypal" }

type paypalAmount struct {
	CurrencyCode string `json:"currency_code"`
	Value        string `json:"value"`
}

type paypalPurchaseUnit struct {
	ReferenceID string       `json:"reference_id"`
	Amount      paypalAmount `json:"amount"`
}

type paypalCreateOrderRequest struct {
	Intent        string               `json:"intent"`
	PurchaseUnits []paypalPurchaseUnit `json:"purchase_units"`
	ReturnURL     string               `json:"return_url,omitempty"`
	CancelURL     string               `json:"cancel_url,omitempty"`
}

type paypalLink struct {
	Href string `json:"href"`
	Rel  string `json:"rel"`
}

type paypalOrderResponse struct {
	ID     string       `json:"id"`
	Status string       `json:"status"`
	Links  []paypalLink `json:"links"`
}

func (p *PayPalProvider) Initiate(ctx context.Context, order domain.Order, details domain.ChargeDetails) (domain.PaymentHandle, error) {
	var out paypalOrderResponse
	resp, err := p.client.R().
		SetContext(ctx).
		SetBody(paypalCreateOrderRequest{
			Intent: "CAPTURE",
			PurchaseUnits: []paypalPurchaseUnit{{
				ReferenceID: order.Number,
				Amount: paypalAmount{
					CurrencyCode: order.Currency,
					Value:        strconv.FormatInt(order.TotalMinor, 10),
				},
			}},
			ReturnURL: details.ReturnURL,
			CancelURL: details.CancelURL,
		}).
		SetResult(&out).
		Post("/v2/checkout/orders")
	if err != nil {
		return domain.PaymentHandle{}, fmt.Errorf("%w: %v", domain.ErrProviderUnavailable, err)
	}
	if resp.IsError() {
		return domain.PaymentHandle{}, fmt.Errorf("%w: paypal returned %s", domain.ErrProviderUnavailable, resp.Status())
	}

	return domain.PaymentHandle{
		ProviderTxID: out.ID,
		Status:       normalizePayPalStatus(out.Status),
		Raw:          resp.Body(),
		Reference:    order.Number,
		RedirectURL:  approvalLink(out.Links),
	}, nil
}

func (p *PayPalProvider) CheckStatus(ctx context.Context, providerTxID string) (domain.PaymentHandle, error) {
	var out paypalOrderResponse
	resp, err := p.client.R().
		SetContext(ctx).
		SetResult(&out).
		Get("/v2/checkout/orders/" + providerTxID)
	if err != nil {
		return domain.PaymentHandle{}, fmt.Errorf("%w: %v", domain.ErrProviderUnavailable, err)
	}
	if resp.IsError() {
		return domain.PaymentHandle{}, fmt.Errorf("%w: paypal returned %s", domain.ErrProviderUnavailable, resp.Status())
	}

	return domain.PaymentHandle{
		ProviderTxID: providerTxID,
		Status:       normalizePayPalStatus(out.Status),
		Raw:          resp.Body(),
	}, nil
}

func approvalLink(links []paypalLink) string {
	for _, link := range links {
		if link.Rel == "approve" {
			return link.Href
		}
	}
	return ""
}

func normalizePayPalStatus(status string) domain.PaymentStatus {
	switch strings.ToUpper(status) {
	case "COMPLETED", "APPROVED":
		return domain.PaymentStatusSuccess
	case "VOIDED", "DECLINED":
		return domain.PaymentStatusFailed
	default:
		// CREATED, SAVED, PAYER_ACTION_REQUIRED.
		return domain.PaymentStatusPending
	}
}
