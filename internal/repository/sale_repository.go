package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"tienda-pos/internal/domain"

	"github.com/google/uuid"
)

var (
	ErrSaleNotFound = errors.New("sale not found")
)

// SaleFilter narrows the sale listing. Zero values mean "no filter".
type SaleFilter struct {
	CustomerQuery string
	ProductQuery  string
	Status        domain.SaleStatus
	From          *time.Time
	To            *time.Time
}

// SaleRepository defines the interface for sale data access
type SaleRepository interface {
	// CreateWithItems persists the sale, its line items and the per-product
	// stock decrements in a single transaction. A decrement that would
	// drive stock negative aborts the whole checkout with
	// ErrInsufficientStock.
	CreateWithItems(ctx context.Context, sale *domain.Sale, items []*domain.SaleItem) error
	List(ctx context.Context, filter SaleFilter, page, pageSize int) ([]*domain.Sale, int, error)
	ListAll(ctx context.Context) ([]*domain.Sale, error)
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Sale, error)
	Delete(ctx context.Context, id uuid.UUID) error
	// ReconcileSettlements re-derives total_paid and status from the
	// payment log for every sale whose stored values drifted, returning
	// the number of rows healed.
	ReconcileSettlements(ctx context.Context) (int64, error)
}

type saleRepository struct {
	db *sql.DB
}

// NewSaleRepository creates a new instance of SaleRepository
func NewSaleRepository(db *sql.DB) SaleRepository {
	return &saleRepository{db: db}
}

const saleColumns = "id, customer_name, total, notes, rate_usd_cop, rate_usd_ves, sale_currency, total_paid, status, created_at"

func scanSale(row interface{ Scan(...any) error }) (*domain.Sale, error) {
	sale := &domain.Sale{}
	var notes sql.NullString
	err := row.Scan(
		&sale.ID,
		&sale.CustomerName,
		&sale.Total,
		&notes,
		&sale.RateUSDCOP,
		&sale.RateUSDVES,
		&sale.SaleCurrency,
		&sale.TotalPaid,
		&sale.Status,
		&sale.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	sale.Notes = notes.String
	return sale, nil
}

func (r *saleRepository) CreateWithItems(ctx context.Context, sale *domain.Sale, items []*domain.SaleItem) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin checkout transaction: %w", err)
	}
	defer tx.Rollback()

	insertSale := `
		INSERT INTO sales (id, customer_name, total, notes, rate_usd_cop, rate_usd_ves, sale_currency, total_paid, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	var notes any
	if sale.Notes != "" {
		notes = sale.Notes
	}

	_, err = tx.ExecContext(
		ctx,
		insertSale,
		sale.ID,
		sale.CustomerName,
		sale.Total,
		notes,
		sale.RateUSDCOP,
		sale.RateUSDVES,
		sale.SaleCurrency,
		sale.TotalPaid,
		sale.Status,
		sale.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create sale: %w", err)
	}

	insertItem := `
		INSERT INTO sale_items (id, sale_id, product_id, product_name, quantity, unit_price, subtotal)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	// Guarded decrement: matching zero rows means the product no longer has
	// the stock the cart was built against.
	decrementStock := `
		UPDATE products
		SET stock = stock - $2, updated_at = NOW()
		WHERE id = $1 AND stock >= $2
	`

	for _, item := range items {
		_, err = tx.ExecContext(
			ctx,
			insertItem,
			item.ID,
			item.SaleID,
			item.ProductID,
			item.ProductName,
			item.Quantity,
			item.UnitPrice,
			item.Subtotal,
		)
		if err != nil {
			return fmt.Errorf("failed to create sale item: %w", err)
		}

		if item.ProductID == nil {
			continue
		}

		result, err := tx.ExecContext(ctx, decrementStock, *item.ProductID, item.Quantity)
		if err != nil {
			return fmt.Errorf("failed to decrement stock: %w", err)
		}

		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if rowsAffected == 0 {
			return ErrInsufficientStock
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit checkout transaction: %w", err)
	}

	return nil
}

// List retrieves sales newest first with optional filtering and pagination
func (r *saleRepository) List(ctx context.Context, filter SaleFilter, page, pageSize int) ([]*domain.Sale, int, error) {
	whereClause := "WHERE 1=1"
	args := []interface{}{}
	argIndex := 1

	if filter.CustomerQuery != "" {
		whereClause += fmt.Sprintf(" AND customer_name ILIKE $%d", argIndex)
		args = append(args, "%"+filter.CustomerQuery+"%")
		argIndex++
	}

	if filter.ProductQuery != "" {
		whereClause += fmt.Sprintf(
			" AND EXISTS (SELECT 1 FROM sale_items si WHERE si.sale_id = sales.id AND si.product_name ILIKE $%d)",
			argIndex,
		)
		args = append(args, "%"+filter.ProductQuery+"%")
		argIndex++
	}

	if filter.Status != "" {
		whereClause += fmt.Sprintf(" AND status = $%d", argIndex)
		args = append(args, filter.Status)
		argIndex++
	}

	if filter.From != nil {
		whereClause += fmt.Sprintf(" AND created_at >= $%d", argIndex)
		args = append(args, *filter.From)
		argIndex++
	}

	if filter.To != nil {
		whereClause += fmt.Sprintf(" AND created_at < $%d", argIndex)
		args = append(args, *filter.To)
		argIndex++
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM sales %s", whereClause)
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count sales: %w", err)
	}

	offset := (page - 1) * pageSize

	query := fmt.Sprintf(`
		SELECT %s
		FROM sales
		%s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d
	`, saleColumns, whereClause, argIndex, argIndex+1)

	args = append(args, pageSize, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list sales: %w", err)
	}
	defer rows.Close()

	sales := []*domain.Sale{}
	for rows.Next() {
		sale, err := scanSale(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan sale: %w", err)
		}
		sales = append(sales, sale)
	}

	if err = rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating sales: %w", err)
	}

	return sales, total, nil
}

// ListAll retrieves every sale newest first, used by the customer
// aggregation which needs the full history.
func (r *saleRepository) ListAll(ctx context.Context) ([]*domain.Sale, error) {
	query := fmt.Sprintf(`SELECT %s FROM sales ORDER BY created_at DESC`, saleColumns)

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list sales: %w", err)
	}
	defer rows.Close()

	sales := []*domain.Sale{}
	for rows.Next() {
		sale, err := scanSale(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sale: %w", err)
		}
		sales = append(sales, sale)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sales: %w", err)
	}

	return sales, nil
}

// FindByID retrieves a sale with its line items and payment history
func (r *saleRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Sale, error) {
	query := fmt.Sprintf(`SELECT %s FROM sales WHERE id = $1`, saleColumns)

	sale, err := scanSale(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrSaleNotFound
		}
		return nil, fmt.Errorf("failed to find sale by ID: %w", err)
	}

	itemsQuery := `
		SELECT id, sale_id, product_id, product_name, quantity, unit_price, subtotal
		FROM sale_items
		WHERE sale_id = $1
	`

	rows, err := r.db.QueryContext(ctx, itemsQuery, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list sale items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		item := &domain.SaleItem{}
		err := rows.Scan(
			&item.ID,
			&item.SaleID,
			&item.ProductID,
			&item.ProductName,
			&item.Quantity,
			&item.UnitPrice,
			&item.Subtotal,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sale item: %w", err)
		}
		sale.Items = append(sale.Items, item)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sale items: %w", err)
	}

	paymentsQuery := `
		SELECT id, sale_id, amount, currency, rate_at_payment, amount_usd, method, reference, created_at
		FROM payments
		WHERE sale_id = $1
		ORDER BY created_at DESC
	`

	payRows, err := r.db.QueryContext(ctx, paymentsQuery, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	defer payRows.Close()

	for payRows.Next() {
		payment := &domain.Payment{}
		var reference sql.NullString
		err := payRows.Scan(
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
		sale.Payments = append(sale.Payments, payment)
	}
	if err = payRows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating payments: %w", err)
	}

	return sale, nil
}

// Delete removes a sale; items and payments cascade
func (r *saleRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM sales WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete sale: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrSaleNotFound
	}

	return nil
}

func (r *saleRepository) ReconcileSettlements(ctx context.Context) (int64, error) {
	query := `
		UPDATE sales s
		SET total_paid = x.paid,
		    status = CASE
		        WHEN x.paid <= 0 THEN 'pending'
		        WHEN x.paid < s.total THEN 'partial'
		        ELSE 'paid'
		    END
		FROM (
		    SELECT s2.id, COALESCE(SUM(p.amount_usd), 0) AS paid
		    FROM sales s2
		    LEFT JOIN payments p ON p.sale_id = s2.id
		    GROUP BY s2.id
		) x
		WHERE x.id = s.id
		  AND s.total_paid IS DISTINCT FROM x.paid
	`

	result, err := r.db.ExecContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("failed to reconcile settlements: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected, nil
}
