package cart

import (
	"errors"
	"testing"

	"github.com/skooli/storefront/internal/domain"
	"github.com/skooli/storefront/internal/storage/memory"
)

func newTestService(t *testing.T) (*Service, domain.ProductRepository) {
	t.Helper()

	products := memory.NewProductRepository()
	products.Seed(domain.Product{ID: "prod-1", SKU: "PEN-BLUE", Name: "Blue Pen", PriceMinor: 2500, StockQty: 10, Active: true})
	products.Seed(domain.Product{ID: "prod-2", SKU: "BOOK-EX96", Name: "Exercise Book 96pg", PriceMinor: 4000, StockQty: 2, Active: true})
	products.Seed(domain.Product{ID: "prod-3", SKU: "RULER-30", Name: "Ruler 30cm", PriceMinor: 1500, StockQty: 5, Active: false})

	return NewService(memory.NewCartRepository(), products, nil), products
}

func userIdentity() domain.Identity {
	return domain.Identity{UserID: "user-1"}
}

func TestAddLineCreatesCart(t *testing.T) {
	svc, _ := newTestService(t)

	cart, err := svc.AddLine(userIdentity(), "prod-1", 2)
	if err != nil {
		t.Fatalf("add line: %v", err)
	}
	if cart.ID == "" {
		t.Fatal("cart must get an id on first add")
	}
	if len(cart.Lines) != 1 || cart.Lines[0].Qty != 2 {
		t.Fatalf("unexpected lines: %+v", cart.Lines)
	}
	if cart.TotalMinor != 5000 {
		t.Fatalf("total = %d, want 5000", cart.TotalMinor)
	}
	if cart.Lines[0].PriceMinor != 2500 {
		t.Fatalf("line must capture catalog price, got %d", cart.Lines[0].PriceMinor)
	}
}

func TestAddLineMergesSameProduct(t *testing.T) {
	svc, _ := newTestService(t)
	identity := userIdentity()

	if _, err := svc.AddLine(identity, "prod-1", 2); err != nil {
		t.Fatalf("first add: %v", err)
	}
	cart, err := svc.AddLine(identity, "prod-1", 3)
	if err != nil {
		t.Fatalf("second add: %v", err)
	}
	if len(cart.Lines) != 1 || cart.Lines[0].Qty != 5 {
		t.Fatalf("expected merged line with qty 5, got %+v", cart.Lines)
	}
}

func TestAddLineSoftStockCheck(t *testing.T) {
	svc, _ := newTestService(t)
	identity := userIdentity()

	if _, err := svc.AddLine(identity, "prod-2", 2); err != nil {
		t.Fatalf("add within stock: %v", err)
	}

	// Суммарное количество превышает остаток.
	var stockErr *domain.StockError
	_, err := svc.AddLine(identity, "prod-2", 1)
	if !errors.As(err, &stockErr) {
		t.Fatalf("expected StockError, got %v", err)
	}
	if stockErr.Requested != 3 || stockErr.Available != 2 {
		t.Fatalf("unexpected stock error: %+v", stockErr)
	}
}

func TestAddLineRejectsInactiveProduct(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.AddLine(userIdentity(), "prod-3", 1)
	if !errors.Is(err, domain.ErrProductInactive) {
		t.Fatalf("expected ErrProductInactive, got %v", err)
	}
}

func TestAddLineValidation(t *testing.T) {
	svc, _ := newTestService(t)

	if _, err := svc.AddLine(userIdentity(), "prod-1", 0); !errors.Is(err, domain.ErrLineQtyInvalid) {
		t.Fatalf("expected ErrLineQtyInvalid, got %v", err)
	}
	if _, err := svc.AddLine(domain.Identity{}, "prod-1", 1); !errors.Is(err, domain.ErrIdentityRequired) {
		t.Fatalf("expected ErrIdentityRequired, got %v", err)
	}
	if _, err := svc.AddLine(userIdentity(), "missing", 1); !errors.Is(err, domain.ErrProductNotFound) {
		t.Fatalf("expected ErrProductNotFound, got %v", err)
	}
}

func TestSetLineQuantity(t *testing.T) {
	svc, _ := newTestService(t)
	identity := userIdentity()

	if _, err := svc.AddLine(identity, "prod-1", 2); err != nil {
		t.Fatalf("add: %v", err)
	}

	cart, err := svc.SetLineQuantity(identity, "prod-1", 4)
	if err != nil {
		t.Fatalf("set quantity: %v", err)
	}
	if cart.Lines[0].Qty != 4 || cart.TotalMinor != 10000 {
		t.Fatalf("unexpected cart after set: %+v", cart)
	}

	// Нулевое количество удаляет позицию, пустая корзина исчезает.
	cart, err = svc.SetLineQuantity(identity, "prod-1", 0)
	if err != nil {
		t.Fatalf("remove line: %v", err)
	}
	if !cart.Empty() {
		t.Fatalf("cart must be empty, got %+v", cart.Lines)
	}

	got, err := svc.Get(identity)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.ID != "" || !got.Empty() {
		t.Fatalf("empty cart must not persist: %+v", got)
	}
}

func TestSetLineQuantityUnknownLine(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.SetLineQuantity(userIdentity(), "prod-1", 1)
	if !errors.Is(err, domain.ErrProductNotFound) {
		t.Fatalf("expected ErrProductNotFound, got %v", err)
	}
}

func TestGetReturnsEmptyCartForNewIdentity(t *testing.T) {
	svc, _ := newTestService(t)

	cart, err := svc.Get(domain.Identity{SessionID: "sess-9"})
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !cart.Empty() || cart.SessionID != "sess-9" {
		t.Fatalf("unexpected cart: %+v", cart)
	}
}

func TestClear(t *testing.T) {
	svc, _ := newTestService(t)
	identity := userIdentity()

	if _, err := svc.AddLine(identity, "prod-1", 1); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := svc.Clear(identity); err != nil {
		t.Fatalf("clear: %v", err)
	}

	cart, err := svc.Get(identity)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !cart.Empty() {
		t.Fatalf("cart must be empty after clear: %+v", cart)
	}
}
