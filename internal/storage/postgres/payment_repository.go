package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/skooli/storefront/internal/domain"
)

type paymentRepository struct {
	db *sql.DB
}

// NewPaymentRepository создаёт PostgreSQL-реализацию PaymentRepository.
func NewPaymentRepository(store *Store) domain.PaymentRepository {
	return &paymentRepository{db: store.DB()}
}

const paymentColumns = `
	id, order_id, provider, provider_tx_id, amount_minor, currency, status,
	raw_response, phone_number, paid_at, failed_at, created_at, updated_at
`

func (r *paymentRepository) Create(payment domain.Payment) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO payments (`+paymentColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
	`,
		payment.ID, payment.OrderID, payment.Provider, payment.ProviderTxID,
		payment.AmountMinor, payment.Currency, string(payment.Status),
		payment.RawResponse, payment.PhoneNumber,
		payment.PaidAt, payment.FailedAt, payment.CreatedAt, payment.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert payment: %w", err)
	}

	return nil
}

func (r *paymentRepository) Get(id string) (domain.Payment, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	row := r.db.QueryRowContext(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id = $1`, id)
	return scanPayment(row)
}

func (r *paymentRepository) GetByProviderTx(provider, providerTxID string) (domain.Payment, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	row := r.db.QueryRowContext(ctx, `
		SELECT `+paymentColumns+`
		FROM payments
		WHERE provider = $1 AND provider_tx_id = $2 AND provider_tx_id <> ''
	`, provider, providerTxID)
	return scanPayment(row)
}

func (r *paymentRepository) ListByOrder(orderID string) ([]domain.Payment, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT `+paymentColumns+`
		FROM payments
		WHERE order_id = $1
		ORDER BY created_at ASC, id ASC
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	defer rows.Close()

	payments := make([]domain.Payment, 0)
	for rows.Next() {
		payment, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, payment)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate payment rows: %w", err)
	}

	return payments, nil
}

func (r *paymentRepository) Save(payment domain.Payment) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `
		UPDATE payments
		SET provider_tx_id = $1,
		    status = $2,
		    raw_response = $3,
		    phone_number = $4,
		    paid_at = $5,
		    failed_at = $6,
		    updated_at = $7
		WHERE id = $8
	`,
		payment.ProviderTxID, string(payment.Status), payment.RawResponse,
		payment.PhoneNumber, payment.PaidAt, payment.FailedAt, payment.UpdatedAt,
		payment.ID,
	)
	if err != nil {
		return fmt.Errorf("update payment: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected for payment update: %w", err)
	}
	if affected == 0 {
		return domain.ErrPaymentNotFound
	}

	return nil
}

func (r *paymentRepository) HasPending(orderID string) (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	var count int
	if err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM payments
		WHERE order_id = $1
		  AND status = 'pending'
	`, orderID).Scan(&count); err != nil {
		return false, fmt.Errorf("count pending payments: %w", err)
	}

	return count > 0, nil
}

func scanPayment(row rowScanner) (domain.Payment, error) {
	var (
		payment  domain.Payment
		status   string
		paidAt   sql.NullTime
		failedAt sql.NullTime
	)

	if err := row.Scan(
		&payment.ID, &payment.OrderID, &payment.Provider, &payment.ProviderTxID,
		&payment.AmountMinor, &payment.Currency, &status,
		&payment.RawResponse, &payment.PhoneNumber,
		&paidAt, &failedAt, &payment.CreatedAt, &payment.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Payment{}, domain.ErrPaymentNotFound
		}
		return domain.Payment{}, fmt.Errorf("scan payment row: %w", err)
	}

	payment.Status = domain.PaymentStatus(status)
	if paidAt.Valid {
		t := paidAt.Time.UTC()
		payment.PaidAt = &t
	}
	if failedAt.Valid {
		t := failedAt.Time.UTC()
		payment.FailedAt = &t
	}

	return payment, nil
}

var _ domain.PaymentRepository = (*paymentRepository)(nil)
