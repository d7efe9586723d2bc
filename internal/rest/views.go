package rest

import (
	"time"

	"github.com/skooli/storefront/internal/domain"
)

// Представления API отделены от доменных типов: домен не несёт
// json-тегов и может меняться, не ломая контракт клиентов.

type cartLineView struct {
	ProductID     string `json:"product_id"`
	SKU           string `json:"sku"`
	Name          string `json:"name"`
	PriceMinor    int64  `json:"price_minor"`
	Qty           int32  `json:"qty"`
	SubtotalMinor int64  `json:"subtotal_minor"`
}

type cartView struct {
	ID         string         `json:"id"`
	Lines      []cartLineView `json:"lines"`
	TotalMinor int64          `json:"total_minor"`
}

func newCartView(c domain.Cart) cartView {
	view := cartView{
		ID:         c.ID,
		Lines:      make([]cartLineView, 0, len(c.Lines)),
		TotalMinor: c.TotalMinor,
	}
	for _, line := range c.Lines {
		view.Lines = append(view.Lines, cartLineView{
			ProductID:     line.ProductID,
			SKU:           line.SKU,
			Name:          line.Name,
			PriceMinor:    line.PriceMinor,
			Qty:           line.Qty,
			SubtotalMinor: line.PriceMinor * int64(line.Qty),
		})
	}
	return view
}

type orderLineView struct {
	ProductID      string `json:"product_id"`
	SKU            string `json:"sku"`
	Name           string `json:"name"`
	Qty            int32  `json:"qty"`
	UnitPriceMinor int64  `json:"unit_price_minor"`
	SubtotalMinor  int64  `json:"subtotal_minor"`
}

type orderView struct {
	ID              string          `json:"id"`
	Number          string          `json:"number"`
	Status          string          `json:"status"`
	PaymentStatus   string          `json:"payment_status"`
	PaymentMethod   string          `json:"payment_method,omitempty"`
	CouponCode      string          `json:"coupon_code,omitempty"`
	Currency        string          `json:"currency"`
	SubtotalMinor   int64           `json:"subtotal_minor"`
	TaxMinor        int64           `json:"tax_minor"`
	ShippingMinor   int64           `json:"shipping_minor"`
	DiscountMinor   int64           `json:"discount_minor"`
	TotalMinor      int64           `json:"total_minor"`
	Lines           []orderLineView `json:"lines"`
	ShippingAddress domain.Address  `json:"shipping_address"`
	BillingAddress  domain.Address  `json:"billing_address"`
	DeliveryNotes   string          `json:"delivery_notes,omitempty"`
	TrackingNumber  string          `json:"tracking_number,omitempty"`
	PaidAt          *time.Time      `json:"paid_at,omitempty"`
	CancelledAt     *time.Time      `json:"cancelled_at,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
}

func newOrderView(o domain.Order) orderView {
	view := orderView{
		ID:              o.ID,
		Number:          o.Number,
		Status:          string(o.Status),
		PaymentStatus:   string(o.PaymentStatus),
		PaymentMethod:   o.PaymentMethod,
		CouponCode:      o.CouponCode,
		Currency:        o.Currency,
		SubtotalMinor:   o.SubtotalMinor,
		TaxMinor:        o.TaxMinor,
		ShippingMinor:   o.ShippingMinor,
		DiscountMinor:   o.DiscountMinor,
		TotalMinor:      o.TotalMinor,
		Lines:           make([]orderLineView, 0, len(o.Lines)),
		ShippingAddress: o.ShippingAddress,
		BillingAddress:  o.BillingAddress,
		DeliveryNotes:   o.DeliveryNotes,
		TrackingNumber:  o.TrackingNumber,
		PaidAt:          o.PaidAt,
		CancelledAt:     o.CancelledAt,
		CreatedAt:       o.CreatedAt,
	}
	for _, line := range o.Lines {
		view.Lines = append(view.Lines, orderLineView{
			ProductID:      line.ProductID,
			SKU:            line.SKU,
			Name:           line.Name,
			Qty:            line.Qty,
			UnitPriceMinor: line.UnitPriceMinor,
			SubtotalMinor:  line.SubtotalMinor,
		})
	}
	return view
}

func newOrderViews(orders []domain.Order) []orderView {
	views := make([]orderView, 0, len(orders))
	for _, o := range orders {
		views = append(views, newOrderView(o))
	}
	return views
}

type paymentView struct {
	ID           string     `json:"id"`
	OrderID      string     `json:"order_id"`
	Provider     string     `json:"provider"`
	ProviderTxID string     `json:"provider_tx_id,omitempty"`
	AmountMinor  int64      `json:"amount_minor"`
	Currency     string     `json:"currency"`
	Status       string     `json:"status"`
	PaidAt       *time.Time `json:"paid_at,omitempty"`
	FailedAt     *time.Time `json:"failed_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

func newPaymentView(p domain.Payment) paymentView {
	return paymentView{
		ID:           p.ID,
		OrderID:      p.OrderID,
		Provider:     p.Provider,
		ProviderTxID: p.ProviderTxID,
		AmountMinor:  p.AmountMinor,
		Currency:     p.Currency,
		Status:       string(p.Status),
		PaidAt:       p.PaidAt,
		FailedAt:     p.FailedAt,
		CreatedAt:    p.CreatedAt,
	}
}

func newPaymentViews(payments []domain.Payment) []paymentView {
	views := make([]paymentView, 0, len(payments))
	for _, p := range payments {
		views = append(views, newPaymentView(p))
	}
	return views
}

type timelineEventView struct {
	Type     string    `json:"type"`
	Reason   string    `json:"reason,omitempty"`
	Occurred time.Time `json:"occurred"`
}

func newTimelineViews(events []domain.TimelineEvent) []timelineEventView {
	views := make([]timelineEventView, 0, len(events))
	for _, e := range events {
		views = append(views, timelineEventView{Type: e.Type, Reason: e.Reason, Occurred: e.Occurred})
	}
	return views
}

type paymentMethodView struct {
	Method string `json:"method"`
	Label  string `json:"label"`
}

// methodLabels — человекочитаемые названия методов оплаты для витрины.
var methodLabels = map[string]string{
	"momo":   "MTN Mobile Money",
	"card":   "Debit / Credit Card",
	"paypal": "PayPal",
}

func newPaymentMethodViews(methods []string) []paymentMethodView {
	views := make([]paymentMethodView, 0, len(methods))
	for _, method := range methods {
		label, ok := methodLabels[method]
		if !ok {
			label = method
		}
		views = append(views, paymentMethodView{Method: method, Label: label})
	}
	return views
}

// paymentInitiationView объединяет попытку оплаты с реквизитами,
// которые нужны клиенту для её завершения.
type paymentInitiationView struct {
	Payment      paymentView `json:"payment"`
	RedirectURL  string      `json:"redirect_url,omitempty"`
	ClientSecret string      `json:"client_secret,omitempty"`
	Reference    string      `json:"reference,omitempty"`
	Instructions string      `json:"instructions,omitempty"`
}
