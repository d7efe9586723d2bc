package postgres

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/skooli/storefront/internal/domain"
)

func sampleStoredOrder(id, number, userID string, createdAt time.Time) domain.Order {
	return domain.Order{
		ID:            id,
		Number:        number,
		UserID:        userID,
		Status:        domain.OrderStatusPending,
		PaymentStatus: domain.OrderPaymentPending,
		PaymentMethod: "momo",
		Currency:      "UGX",
		SubtotalMinor: 50000,
		TaxMinor:      9000,
		ShippingMinor: 15000,
		DiscountMinor: 0,
		TotalMinor:    74000,
		ShippingAddress: domain.Address{
			FullName: "Jane Okello",
			Phone:    "256700000001",
			Line1:    "Plot 12 Kampala Rd",
			City:     "Kampala",
			Country:  "UG",
		},
		Lines: []domain.OrderLine{
			{
				ID:             uuid.NewString(),
				ProductID:      "prod-1",
				SKU:            "PEN-BLUE",
				Name:           "Blue Pen",
				Qty:            10,
				UnitPriceMinor: 5000,
				SubtotalMinor:  50000,
				CreatedAt:      createdAt,
			},
		},
		Version:   1,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
}

func TestOrderRepository_PostgresCreateGetListAndSave(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewOrderRepository(store)

	now := time.Now().UTC().Round(time.Microsecond)
	order1 := sampleStoredOrder("order-1", "ORD-AAA-00001", "user-1", now.Add(-2*time.Minute))
	order2 := sampleStoredOrder("order-2", "ORD-AAA-00002", "user-1", now.Add(-time.Minute))

	if err := repo.Create(order1); err != nil {
		t.Fatalf("create order1: %v", err)
	}
	if err := repo.Create(order2); err != nil {
		t.Fatalf("create order2: %v", err)
	}

	got, err := repo.Get(order1.ID)
	if err != nil {
		t.Fatalf("get order1: %v", err)
	}
	if got.Number != order1.Number || got.UserID != order1.UserID || got.Status != order1.Status {
		t.Fatalf("unexpected order payload: %+v", got)
	}
	if got.ShippingAddress != order1.ShippingAddress {
		t.Fatalf("shipping address snapshot mismatch: %+v", got.ShippingAddress)
	}
	if len(got.Lines) != len(order1.Lines) {
		t.Fatalf("unexpected lines count: got=%d want=%d", len(got.Lines), len(order1.Lines))
	}

	byNumber, err := repo.GetByNumber(order2.Number)
	if err != nil {
		t.Fatalf("get by number: %v", err)
	}
	if byNumber.ID != order2.ID {
		t.Fatalf("unexpected order by number: %+v", byNumber)
	}

	listed, err := repo.ListByUser("user-1", 1)
	if err != nil {
		t.Fatalf("list by user with limit: %v", err)
	}
	if len(listed) != 1 || listed[0].ID != order2.ID {
		t.Fatalf("unexpected list result with limit: %+v", listed)
	}

	got.Status = domain.OrderStatusProcessing
	got.PaymentStatus = domain.OrderPaymentPaid
	paidAt := now
	got.PaidAt = &paidAt
	got.UpdatedAt = now.Add(time.Minute)
	if err := repo.Save(got); err != nil {
		t.Fatalf("save order: %v", err)
	}

	updated, err := repo.Get(order1.ID)
	if err != nil {
		t.Fatalf("get updated order: %v", err)
	}
	if updated.Status != domain.OrderStatusProcessing || updated.PaymentStatus != domain.OrderPaymentPaid {
		t.Fatalf("unexpected state after save: %s/%s", updated.Status, updated.PaymentStatus)
	}
	if updated.PaidAt == nil {
		t.Fatal("paid_at must be persisted")
	}
	if updated.Version != got.Version+1 {
		t.Fatalf("unexpected version after save: got=%d want=%d", updated.Version, got.Version+1)
	}
}

func TestOrderRepository_PostgresErrors(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewOrderRepository(store)

	now := time.Now().UTC().Round(time.Microsecond)
	base := sampleStoredOrder("order-errors", "ORD-BBB-00001", "user-2", now)

	if _, err := repo.Get("missing-order"); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}

	if err := repo.Create(base); err != nil {
		t.Fatalf("create base order: %v", err)
	}

	// Повтор номера заказа должен упираться в уникальный индекс.
	dup := sampleStoredOrder("order-errors-dup", base.Number, "user-2", now)
	if err := repo.Create(dup); !errors.Is(err, domain.ErrOrderNumberCollision) {
		t.Fatalf("expected ErrOrderNumberCollision, got %v", err)
	}

	stale := base
	stale.Version = base.Version + 10
	stale.Status = domain.OrderStatusCancelled
	if err := repo.Save(stale); !errors.Is(err, domain.ErrOrderVersionConflict) {
		t.Fatalf("expected ErrOrderVersionConflict, got %v", err)
	}
}

func TestProductRepository_PostgresConditionalDecrement(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewProductRepository(store).(*productRepository)

	if err := repo.Seed([]domain.Product{
		{ID: "prod-1", SKU: "PEN-BLUE", Name: "Blue Pen", PriceMinor: 5000, StockQty: 3, Active: true},
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	if err := repo.DecrementStock("prod-1", 2); err != nil {
		t.Fatalf("decrement: %v", err)
	}

	var stockErr *domain.StockError
	err := repo.DecrementStock("prod-1", 2)
	if !errors.As(err, &stockErr) {
		t.Fatalf("expected StockError, got %v", err)
	}
	if stockErr.Available != 1 || stockErr.Requested != 2 {
		t.Fatalf("unexpected stock error: %+v", stockErr)
	}

	if err := repo.RestoreStock("prod-1", 2); err != nil {
		t.Fatalf("restore: %v", err)
	}
	product, err := repo.Get("prod-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if product.StockQty != 3 {
		t.Fatalf("stock = %d, want 3", product.StockQty)
	}
}
