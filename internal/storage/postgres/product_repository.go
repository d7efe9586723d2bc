package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/skooli/storefront/internal/domain"
)

const (
	opTimeout = 5 * time.Second
)

type productRepository struct {
	db *sql.DB
}

// NewProductRepository создаёт PostgreSQL-реализацию ProductRepository.
func NewProductRepository(store *Store) domain.ProductRepository {
	return &productRepository{db: store.DB()}
}

func (r *productRepository) Get(id string) (domain.Product, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	var product domain.Product
	err := r.db.QueryRowContext(ctx, `
		SELECT id, sku, name, price_minor, stock_qty, active, created_at, updated_at
		FROM products
		WHERE id = $1
	`, id).Scan(
		&product.ID, &product.SKU, &product.Name, &product.PriceMinor,
		&product.StockQty, &product.Active, &product.CreatedAt, &product.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Product{}, domain.ErrProductNotFound
		}
		return domain.Product{}, fmt.Errorf("select product: %w", err)
	}

	return product, nil
}

// DecrementStock списывает qty единиц одним условным UPDATE: строка
// меняется только когда остатка хватает, поэтому конкурентные списания
// не могут увести stock_qty в минус.
func (r *productRepository) DecrementStock(id string, qty int32) error {
	if qty <= 0 {
		return domain.ErrLineQtyInvalid
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `
		UPDATE products
		SET stock_qty = stock_qty - $2,
		    updated_at = NOW()
		WHERE id = $1
		  AND stock_qty >= $2
	`, id, qty)
	if err != nil {
		return fmt.Errorf("decrement stock: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected for stock decrement: %w", err)
	}
	if affected > 0 {
		return nil
	}

	// Списание не прошло: либо товара нет, либо остатка не хватает.
	product, err := r.Get(id)
	if err != nil {
		return err
	}
	return &domain.StockError{
		ProductID: product.ID,
		SKU:       product.SKU,
		Requested: qty,
		Available: product.StockQty,
	}
}

func (r *productRepository) RestoreStock(id string, qty int32) error {
	if qty <= 0 {
		return domain.ErrLineQtyInvalid
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `
		UPDATE products
		SET stock_qty = stock_qty + $2,
		    updated_at = NOW()
		WHERE id = $1
	`, id, qty)
	if err != nil {
		return fmt.Errorf("restore stock: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected for stock restore: %w", err)
	}
	if affected == 0 {
		return domain.ErrProductNotFound
	}

	return nil
}

// Seed вставляет или обновляет товары каталога (используется миграционной
// утилитой и интеграционными тестами).
func (r *productRepository) Seed(products []domain.Product) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	for _, p := range products {
		if _, err := r.db.ExecContext(ctx, `
			INSERT INTO products (id, sku, name, price_minor, stock_qty, active, created_at, updated_at)
			VALUES ($1,$2,$3,$4,$5,$6,NOW(),NOW())
			ON CONFLICT (id) DO UPDATE
			SET sku = EXCLUDED.sku,
			    name = EXCLUDED.name,
			    price_minor = EXCLUDED.price_minor,
			    stock_qty = EXCLUDED.stock_qty,
			    active = EXCLUDED.active,
			    updated_at = NOW()
		`, p.ID, p.SKU, p.Name, p.PriceMinor, p.StockQty, p.Active); err != nil {
			return fmt.Errorf("seed product %s: %w", p.SKU, err)
		}
	}

	return nil
}

var _ domain.ProductRepository = (*productRepository)(nil)
