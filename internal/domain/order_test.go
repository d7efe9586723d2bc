package domain_test

import (
	"testing"
	"time"

	"github.com/skooli/storefront/internal/domain"
)

// helper для создания валидного заказа с одной позицией.
func makeOrder() domain.Order {
	now := time.Now().UTC()
	return domain.Order{
		ID:            "order-1",
		Number:        "ORD-TEST-00001",
		UserID:        "user-1",
		Status:        domain.OrderStatusPending,
		PaymentStatus: domain.OrderPaymentPending,
		PaymentMethod: "momo",
		Currency:      "UGX",
		SubtotalMinor: 5000,
		TaxMinor:      750,
		ShippingMinor: 10,
		DiscountMinor: 0,
		TotalMinor:    5760,
		ShippingAddress: domain.Address{
			FullName: "Jane Doe",
			Phone:    "0770000000",
			Line1:    "Plot 12",
			City:     "Kampala",
			Country:  "UG",
		},
		Lines: []domain.OrderLine{{
			ID:             "line-1",
			ProductID:      "prod-1",
			SKU:            "SKU-1",
			Name:           "Exercise Book",
			Qty:            2,
			UnitPriceMinor: 2500,
			SubtotalMinor:  5000,
			CreatedAt:      now,
		}},
		Version:   0,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestOrderValidateInvariants_Ok(t *testing.T) {
	order := makeOrder()
	if errs := order.ValidateInvariants(); len(errs) != 0 {
		t.Fatalf("expected no validation errors, got %v", errs)
	}
}

func TestOrderValidateInvariants_Errors(t *testing.T) {
	cases := []struct {
		name string
		mut  func(o *domain.Order)
	}{
		{
			name: "no user",
			mut: func(o *domain.Order) {
				o.UserID = ""
			},
		},
		{
			name: "no number",
			mut: func(o *domain.Order) {
				o.Number = ""
			},
		},
		{
			name: "no lines",
			mut: func(o *domain.Order) {
				o.Lines = nil
			},
		},
		{
			name: "qty invalid",
			mut: func(o *domain.Order) {
				o.Lines[0].Qty = 0
			},
		},
		{
			name: "line subtotal mismatch",
			mut: func(o *domain.Order) {
				o.Lines[0].SubtotalMinor = 1
			},
		},
		{
			name: "subtotal mismatch",
			mut: func(o *domain.Order) {
				o.SubtotalMinor = 999
			},
		},
		{
			name: "total mismatch",
			mut: func(o *domain.Order) {
				o.TotalMinor = 1
			},
		},
		{
			name: "negative discount",
			mut: func(o *domain.Order) {
				o.DiscountMinor = -1
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			order := makeOrder()
			mutOrder := order
			tc.mut(&mutOrder)

			if len(mutOrder.ValidateInvariants()) == 0 {
				t.Fatalf("expected validation errors for case %s", tc.name)
			}
		})
	}
}

func TestOrderCancellable(t *testing.T) {
	cases := []struct {
		status domain.OrderStatus
		want   bool
	}{
		{domain.OrderStatusPending, true},
		{domain.OrderStatusProcessing, true},
		{domain.OrderStatusPacked, false},
		{domain.OrderStatusShipped, false},
		{domain.OrderStatusDelivered, false},
		{domain.OrderStatusCancelled, false},
		{domain.OrderStatusRefunded, false},
	}

	for _, tc := range cases {
		order := makeOrder()
		order.Status = tc.status
		if got := order.Cancellable(); got != tc.want {
			t.Errorf("Cancellable() for %s = %v, want %v", tc.status, got, tc.want)
		}
	}
}

func TestOrderStatusTerminal(t *testing.T) {
	terminal := []domain.OrderStatus{
		domain.OrderStatusDelivered,
		domain.OrderStatusCancelled,
		domain.OrderStatusRefunded,
	}
	for _, s := range terminal {
		if !s.Terminal() {
			t.Errorf("expected %s to be terminal", s)
		}
	}
	if domain.OrderStatusProcessing.Terminal() {
		t.Error("processing must not be terminal")
	}
}
