package memory

import (
	"errors"
	"testing"

	"github.com/skooli/storefront/internal/domain"
)

func TestCartUpsertAndGet(t *testing.T) {
	repo := NewCartRepository()
	identity := domain.Identity{UserID: "user-1"}

	cart, err := repo.Upsert(domain.Cart{
		UserID: "user-1",
		Lines:  []domain.CartLine{{ProductID: "p1", PriceMinor: 100, Qty: 2}},
	})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if cart.ID == "" {
		t.Fatal("expected cart ID to be assigned")
	}

	got, err := repo.GetByIdentity(identity)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got.Lines) != 1 || got.Lines[0].ProductID != "p1" {
		t.Fatalf("unexpected cart: %+v", got)
	}
}

func TestCartIdentityIsolation(t *testing.T) {
	repo := NewCartRepository()

	if _, err := repo.Upsert(domain.Cart{UserID: "user-1"}); err != nil {
		t.Fatalf("upsert user cart: %v", err)
	}
	if _, err := repo.Upsert(domain.Cart{SessionID: "sess-1"}); err != nil {
		t.Fatalf("upsert session cart: %v", err)
	}

	// Гостевая сессия не видит корзину пользователя и наоборот.
	if _, err := repo.GetByIdentity(domain.Identity{SessionID: "user-1"}); !errors.Is(err, domain.ErrCartNotFound) {
		t.Fatalf("expected ErrCartNotFound, got %v", err)
	}
	if _, err := repo.GetByIdentity(domain.Identity{UserID: "sess-1"}); !errors.Is(err, domain.ErrCartNotFound) {
		t.Fatalf("expected ErrCartNotFound, got %v", err)
	}
}

func TestCartDelete(t *testing.T) {
	repo := NewCartRepository()
	identity := domain.Identity{SessionID: "sess-1"}

	if _, err := repo.Upsert(domain.Cart{SessionID: "sess-1"}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := repo.Delete(identity); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := repo.GetByIdentity(identity); !errors.Is(err, domain.ErrCartNotFound) {
		t.Fatalf("expected ErrCartNotFound after delete, got %v", err)
	}

	// Повторное удаление — no-op.
	if err := repo.Delete(identity); err != nil {
		t.Fatalf("second delete: %v", err)
	}
}

func TestCartInvalidIdentity(t *testing.T) {
	repo := NewCartRepository()

	if _, err := repo.GetByIdentity(domain.Identity{}); !errors.Is(err, domain.ErrIdentityRequired) {
		t.Fatalf("expected ErrIdentityRequired, got %v", err)
	}
	if _, err := repo.Upsert(domain.Cart{UserID: "u", SessionID: "s"}); !errors.Is(err, domain.ErrIdentityAmbiguous) {
		t.Fatalf("expected ErrIdentityAmbiguous, got %v", err)
	}
}
