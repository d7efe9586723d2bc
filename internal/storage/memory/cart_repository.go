package memory

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/skooli/storefront/internal/domain"
)

// cartRepositoryInMemory хранит не более одной корзины на identity.
type cartRepositoryInMemory struct {
	mu    sync.RWMutex
	items map[string]domain.Cart // ключ — owner key
}

// NewCartRepository возвращает in-memory реализацию CartRepository.
func NewCartRepository() domain.CartRepository {
	return &cartRepositoryInMemory{items: make(map[string]domain.Cart)}
}

func ownerKey(identity domain.Identity) string {
	if identity.UserID != "" {
		return "user:" + identity.UserID
	}
	return "session:" + identity.SessionID
}

// GetByIdentity возвращает копию корзины владельца или ErrCartNotFound.
func (r *cartRepositoryInMemory) GetByIdentity(identity domain.Identity) (domain.Cart, error) {
	if err := identity.Validate(); err != nil {
		return domain.Cart{}, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	cart, ok := r.items[ownerKey(identity)]
	if !ok {
		return domain.Cart{}, domain.ErrCartNotFound
	}
	return cloneCart(cart), nil
}

// Upsert создаёт или перезаписывает корзину владельца.
func (r *cartRepositoryInMemory) Upsert(cart domain.Cart) (domain.Cart, error) {
	identity := cart.Identity()
	if err := identity.Validate(); err != nil {
		return domain.Cart{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	if cart.ID == "" {
		cart.ID = uuid.NewString()
		cart.CreatedAt = now
	}
	cart.UpdatedAt = now

	r.items[ownerKey(identity)] = cloneCart(cart)
	return cart, nil
}

// Delete удаляет корзину владельца; отсутствие корзины не ошибка.
func (r *cartRepositoryInMemory) Delete(identity domain.Identity) error {
	if err := identity.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.items, ownerKey(identity))
	return nil
}

// cloneCart копирует корзину вместе с позициями, чтобы избежать
// непредсказуемых мутаций извне.
func cloneCart(src domain.Cart) domain.Cart {
	dst := src
	dst.Lines = append([]domain.CartLine(nil), src.Lines...)
	return dst
}

var _ domain.CartRepository = (*cartRepositoryInMemory)(nil)
