package app

import (
	"time"

	"github.com/skooli/storefront/internal/domain"
)

// newTestOrder создаёт тестовый заказ для использования в тестах.
func newTestOrder() domain.Order {
	now := time.Now().UTC()
	return domain.Order{
		ID:            "test-order-1",
		Number:        "ORD-TEST0-00001",
		UserID:        "test-user-1",
		Status:        domain.OrderStatusPending,
		PaymentStatus: domain.OrderPaymentPending,
		PaymentMethod: "momo",
		Currency:      "UGX",
		SubtotalMinor: 25000,
		TaxMinor:      4500,
		ShippingMinor: 15000,
		TotalMinor:    44500,
		ShippingAddress: domain.Address{
			FullName: "Test Parent",
			Phone:    "256700123456",
			Line1:    "Plot 12, Kira Road",
			City:     "Kampala",
			Country:  "UG",
		},
		Lines: []domain.OrderLine{
			{
				ID:             "line-1",
				ProductID:      "prod-1",
				SKU:            "SKU-TEST",
				Name:           "Exercise Book A5",
				Qty:            1,
				UnitPriceMinor: 25000,
				SubtotalMinor:  25000,
				CreatedAt:      now,
			},
		},
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
