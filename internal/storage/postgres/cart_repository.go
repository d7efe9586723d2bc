package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/skooli/storefront/internal/domain"
)

type cartRepository struct {
	db *sql.DB
}

// NewCartRepository создаёт PostgreSQL-реализацию CartRepository.
func NewCartRepository(store *Store) domain.CartRepository {
	return &cartRepository{db: store.DB()}
}

func (r *cartRepository) GetByIdentity(identity domain.Identity) (domain.Cart, error) {
	if err := identity.Validate(); err != nil {
		return domain.Cart{}, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	var cart domain.Cart
	err := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, session_id, total_minor, created_at, updated_at
		FROM carts
		WHERE (user_id = $1 AND user_id <> '')
		   OR (session_id = $2 AND session_id <> '')
	`, identity.UserID, identity.SessionID).Scan(
		&cart.ID, &cart.UserID, &cart.SessionID, &cart.TotalMinor,
		&cart.CreatedAt, &cart.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Cart{}, domain.ErrCartNotFound
		}
		return domain.Cart{}, fmt.Errorf("select cart: %w", err)
	}

	lines, err := r.loadLines(ctx, cart.ID)
	if err != nil {
		return domain.Cart{}, err
	}
	cart.Lines = lines

	return cart, nil
}

// Upsert перезаписывает корзину владельца целиком: строки корзины
// мелкие и немногочисленные, поэтому replace проще дифа.
func (r *cartRepository) Upsert(cart domain.Cart) (domain.Cart, error) {
	if err := cart.Identity().Validate(); err != nil {
		return domain.Cart{}, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	if cart.ID == "" {
		cart.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if cart.CreatedAt.IsZero() {
		cart.CreatedAt = now
	}
	cart.UpdatedAt = now

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Cart{}, fmt.Errorf("begin tx: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO carts (id, user_id, session_id, total_minor, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (id) DO UPDATE
		SET total_minor = EXCLUDED.total_minor,
		    updated_at = EXCLUDED.updated_at
	`, cart.ID, cart.UserID, cart.SessionID, cart.TotalMinor, cart.CreatedAt, cart.UpdatedAt)
	if err != nil {
		return domain.Cart{}, fmt.Errorf("upsert cart: %w", err)
	}

	if _, err = tx.ExecContext(ctx, `DELETE FROM cart_lines WHERE cart_id = $1`, cart.ID); err != nil {
		return domain.Cart{}, fmt.Errorf("clear cart lines: %w", err)
	}

	for i, line := range cart.Lines {
		if _, err = tx.ExecContext(ctx, `
			INSERT INTO cart_lines (cart_id, product_id, sku, name, price_minor, qty, position)
			VALUES ($1,$2,$3,$4,$5,$6,$7)
		`, cart.ID, line.ProductID, line.SKU, line.Name, line.PriceMinor, line.Qty, i); err != nil {
			return domain.Cart{}, fmt.Errorf("insert cart line: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return domain.Cart{}, fmt.Errorf("commit upsert cart: %w", err)
	}

	return cart, nil
}

func (r *cartRepository) Delete(identity domain.Identity) error {
	if err := identity.Validate(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	// Отсутствие корзины не ошибка: удаление идемпотентно.
	if _, err := r.db.ExecContext(ctx, `
		DELETE FROM carts
		WHERE (user_id = $1 AND user_id <> '')
		   OR (session_id = $2 AND session_id <> '')
	`, identity.UserID, identity.SessionID); err != nil {
		return fmt.Errorf("delete cart: %w", err)
	}

	return nil
}

func (r *cartRepository) loadLines(ctx context.Context, cartID string) ([]domain.CartLine, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT product_id, sku, name, price_minor, qty
		FROM cart_lines
		WHERE cart_id = $1
		ORDER BY position ASC
	`, cartID)
	if err != nil {
		return nil, fmt.Errorf("load cart lines: %w", err)
	}
	defer rows.Close()

	lines := make([]domain.CartLine, 0)
	for rows.Next() {
		var line domain.CartLine
		if err := rows.Scan(&line.ProductID, &line.SKU, &line.Name, &line.PriceMinor, &line.Qty); err != nil {
			return nil, fmt.Errorf("scan cart line: %w", err)
		}
		lines = append(lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cart lines: %w", err)
	}

	return lines, nil
}

var _ domain.CartRepository = (*cartRepository)(nil)
