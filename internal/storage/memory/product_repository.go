package memory

import (
	"sync"

	"github.com/skooli/storefront/internal/domain"
)

// productRepositoryInMemory — in-memory реализация ProductRepository.
// Условное списание остатка выполняется целиком под мьютексом, поэтому
// конкурентные decrement не могут увести остаток в минус.
type productRepositoryInMemory struct {
	mu    sync.RWMutex
	items map[string]domain.Product
}

// NewProductRepository возвращает in-memory каталог для разработки и тестов.
func NewProductRepository() *productRepositoryInMemory {
	return &productRepositoryInMemory{items: make(map[string]domain.Product)}
}

// Seed кладёт товар в каталог (разработка/тесты).
func (r *productRepositoryInMemory) Seed(product domain.Product) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[product.ID] = product
}

// Get возвращает товар или ErrProductNotFound.
func (r *productRepositoryInMemory) Get(id string) (domain.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	product, ok := r.items[id]
	if !ok {
		return domain.Product{}, domain.ErrProductNotFound
	}
	return product, nil
}

// DecrementStock атомарно уменьшает остаток; нехватка — *StockError.
func (r *productRepositoryInMemory) DecrementStock(id string, qty int32) error {
	if qty <= 0 {
		return domain.ErrLineQtyInvalid
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	product, ok := r.items[id]
	if !ok {
		return domain.ErrProductNotFound
	}
	if product.StockQty < qty {
		return &domain.StockError{
			ProductID: product.ID,
			SKU:       product.SKU,
			Requested: qty,
			Available: product.StockQty,
		}
	}

	product.StockQty -= qty
	r.items[id] = product
	return nil
}

// RestoreStock возвращает qty единиц на склад.
func (r *productRepositoryInMemory) RestoreStock(id string, qty int32) error {
	if qty <= 0 {
		return domain.ErrLineQtyInvalid
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	product, ok := r.items[id]
	if !ok {
		return domain.ErrProductNotFound
	}

	product.StockQty += qty
	r.items[id] = product
	return nil
}

var _ domain.ProductRepository = (*productRepositoryInMemory)(nil)
