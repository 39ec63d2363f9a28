package repository

import (
	"context"
	"database/sql"
	"fmt"

	"tienda-pos/internal/domain"

	"github.com/google/uuid"
)

// PaymentRepository is the append-only payment ledger. Payments are never
// edited; the sale's settlement fields are derived from the log.
type PaymentRepository interface {
	// Create appends the payment and re-derives the owning sale's
	// total_paid and status inside the same transaction, so a reader never
	// observes a payment without its settlement effect.
	Create(ctx context.Context, payment *domain.Payment) error
	ListBySale(ctx context.Context, saleID uuid.UUID) ([]*domain.Payment, error)
}

type paymentRepository struct {
	db *sql.DB
}

// NewPaymentRepository creates a new instance of PaymentRepository
func NewPaymentRepository(db *sql.DB) PaymentRepository {
	return &paymentRepository{db: db}
}

func (r *paymentRepository) Create(ctx context.Context, payment *domain.Payment) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin payment transaction: %w", err)
	}
	defer tx.Rollback()

	insert := `
		INSERT INTO payments (id, sale_id, amount, currency, rate_at_payment, amount_usd, method, reference, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	var reference any
	if payment.Reference != "" {
		reference = payment.Reference
	}

	_, err = tx.ExecContext(
		ctx,
		insert,
		payment.ID,
		payment.SaleID,
		payment.Amount,
		payment.Currency,
		payment.RateAtPayment,
		payment.AmountUSD,
		payment.Method,
		reference,
		payment.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create payment: %w", err)
	}

	var total, totalPaid float64
	err = tx.QueryRowContext(ctx, `
		SELECT s.total, COALESCE(SUM(p.amount_usd), 0)
		FROM sales s
		LEFT JOIN payments p ON p.sale_id = s.id
		WHERE s.id = $1
		GROUP BY s.total
	`, payment.SaleID).Scan(&total, &totalPaid)
	if err != nil {
		if err == sql.ErrNoRows {
			return ErrSaleNotFound
		}
		return fmt.Errorf("failed to sum payments: %w", err)
	}

	status := domain.DeriveSaleStatus(total, totalPaid)

	_, err = tx.ExecContext(
		ctx,
		`UPDATE sales SET total_paid = $2, status = $3 WHERE id = $1`,
		payment.SaleID,
		totalPaid,
		status,
	)
	if err != nil {
		return fmt.Errorf("failed to update sale settlement: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit payment transaction: %w", err)
	}

	return nil
}

// ListBySale retrieves the payment history newest first
func (r *paymentRepository) ListBySale(ctx context.Context, saleID uuid.UUID) ([]*domain.Payment, error) {
	query := `
		SELECT id, sale_id, amount, currency, rate_at_payment, amount_usd, method, reference, created_at
		FROM payments
		WHERE sale_id = $1
		ORDER BY created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query, saleID)
	if err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	defer rows.Close()

	payments := []*domain.Payment{}
	for rows.Next() {
		payment := &domain.Payment{}
		var reference sql.NullString
		err := rows.Scan(
			&payment.ID,
			&payment.SaleID,
			&payment.Amount,
			&payment.Currency,
			&payment.RateAtPayment,
			&payment.AmountUSD,
			&payment.Method,
			&reference,
			&payment.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		payment.Reference = reference.String
		payments = append(payments, payment)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating payments: %w", err)
	}

	return payments, nil
}
