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
	ErrCustomerNotFound = errors.New("customer not found")
)

// CustomerRepository defines the interface for customer data access.
// Customers are never created explicitly; checkout upserts them by name.
type CustomerRepository interface {
	UpsertByName(ctx context.Context, name string) (*domain.Customer, error)
	FindByName(ctx context.Context, name string) (*domain.Customer, error)
	List(ctx context.Context) ([]*domain.Customer, error)
}

type customerRepository struct {
	db *sql.DB
}

// NewCustomerRepository creates a new instance of CustomerRepository
func NewCustomerRepository(db *sql.DB) CustomerRepository {
	return &customerRepository{db: db}
}

// UpsertByName inserts a customer unless one with the same name (compared
// case-insensitively) already exists, and returns the surviving row.
func (r *customerRepository) UpsertByName(ctx context.Context, name string) (*domain.Customer, error) {
	query := `
		INSERT INTO customers (id, name, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (LOWER(name)) DO NOTHING
	`

	_, err := r.db.ExecContext(ctx, query, uuid.New(), name, time.Now())
	if err != nil {
		return nil, fmt.Errorf("failed to upsert customer: %w", err)
	}

	return r.FindByName(ctx, name)
}

// FindByName retrieves a customer by case-insensitive name match
func (r *customerRepository) FindByName(ctx context.Context, name string) (*domain.Customer, error) {
	query := `
		SELECT id, name, created_at
		FROM customers
		WHERE LOWER(name) = LOWER($1)
	`

	customer := &domain.Customer{}
	err := r.db.QueryRowContext(ctx, query, name).Scan(
		&customer.ID,
		&customer.Name,
		&customer.CreatedAt,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrCustomerNotFound
		}
		return nil, fmt.Errorf("failed to find customer by name: %w", err)
	}

	return customer, nil
}

// List retrieves all customers ordered by name
func (r *customerRepository) List(ctx context.Context) ([]*domain.Customer, error) {
	query := `
		SELECT id, name, created_at
		FROM customers
		ORDER BY name ASC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list customers: %w", err)
	}
	defer rows.Close()

	customers := []*domain.Customer{}
	for rows.Next() {
		customer := &domain.Customer{}
		err := rows.Scan(&customer.ID, &customer.Name, &customer.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan customer: %w", err)
		}
		customers = append(customers, customer)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating customers: %w", err)
	}

	return customers, nil
}
