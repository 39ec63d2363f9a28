package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"tienda-pos/internal/domain"
)

var (
	ErrRateNotFound      = errors.New("exchange rate not found")
	ErrBaseRateImmutable = errors.New("the base currency rate cannot be changed")
)

// RateRepository defines the interface for exchange rate data access
type RateRepository interface {
	ListActive(ctx context.Context) ([]*domain.ExchangeRate, error)
	FindByCode(ctx context.Context, code string) (*domain.ExchangeRate, error)
	// UpdateRate sets the units-per-USD value for a currency. The base
	// currency's rate is pinned to 1 and rejected here.
	UpdateRate(ctx context.Context, code string, rate float64) error
}

type rateRepository struct {
	db *sql.DB
}

// NewRateRepository creates a new instance of RateRepository
func NewRateRepository(db *sql.DB) RateRepository {
	return &rateRepository{db: db}
}

const rateColumns = "id, code, name, symbol, rate, active, updated_at"

// ListActive retrieves the active currencies with the base currency first
func (r *rateRepository) ListActive(ctx context.Context) ([]*domain.ExchangeRate, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM exchange_rates
		WHERE active = TRUE
		ORDER BY (code = $1) DESC, code ASC
	`, rateColumns)

	rows, err := r.db.QueryContext(ctx, query, domain.BaseCurrency)
	if err != nil {
		return nil, fmt.Errorf("failed to list exchange rates: %w", err)
	}
	defer rows.Close()

	rates := []*domain.ExchangeRate{}
	for rows.Next() {
		rate := &domain.ExchangeRate{}
		err := rows.Scan(
			&rate.ID,
			&rate.Code,
			&rate.Name,
			&rate.Symbol,
			&rate.Rate,
			&rate.Active,
			&rate.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan exchange rate: %w", err)
		}
		rates = append(rates, rate)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating exchange rates: %w", err)
	}

	return rates, nil
}

// FindByCode retrieves an active exchange rate by currency code
func (r *rateRepository) FindByCode(ctx context.Context, code string) (*domain.ExchangeRate, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM exchange_rates
		WHERE code = $1 AND active = TRUE
	`, rateColumns)

	rate := &domain.ExchangeRate{}
	err := r.db.QueryRowContext(ctx, query, code).Scan(
		&rate.ID,
		&rate.Code,
		&rate.Name,
		&rate.Symbol,
		&rate.Rate,
		&rate.Active,
		&rate.UpdatedAt,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrRateNotFound
		}
		return nil, fmt.Errorf("failed to find exchange rate by code: %w", err)
	}

	return rate, nil
}

func (r *rateRepository) UpdateRate(ctx context.Context, code string, rate float64) error {
	if code == domain.BaseCurrency {
		return ErrBaseRateImmutable
	}

	query := `
		UPDATE exchange_rates
		SET rate = $2, updated_at = $3
		WHERE code = $1 AND active = TRUE
	`

	result, err := r.db.ExecContext(ctx, query, code, rate, time.Now())
	if err != nil {
		return fmt.Errorf("failed to update exchange rate: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrRateNotFound
	}

	return nil
}
