package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"tienda-pos/internal/domain"
	"tienda-pos/internal/repository"

	"github.com/google/uuid"
)

var (
	ErrInvalidPaymentAmount = errors.New("payment amount must be greater than zero")
	ErrSaleAlreadyPaid      = errors.New("sale is already fully paid")
)

// SuggestedPayment is the amount that settles a sale's remaining balance,
// expressed in the requested currency at the current rate.
type SuggestedPayment struct {
	Currency     string  `json:"currency"`
	Amount       float64 `json:"amount"`
	Rate         float64 `json:"rate"`
	RemainingUSD float64 `json:"remaining_usd"`
}

// PaymentService records payments against sales
type PaymentService interface {
	// RecordPayment appends a payment in any configured currency. The
	// amount is normalized to the base currency at the current rate, which
	// is snapshotted on the payment row.
	RecordPayment(ctx context.Context, saleID uuid.UUID, amount float64, currency, method, reference string) (*domain.Payment, error)
	// SuggestRemaining converts the sale's outstanding balance into the
	// requested currency at the current rate.
	SuggestRemaining(ctx context.Context, saleID uuid.UUID, currency string) (*SuggestedPayment, error)
	ListPayments(ctx context.Context, saleID uuid.UUID) ([]*domain.Payment, error)
}

type paymentService struct {
	saleRepo    repository.SaleRepository
	paymentRepo repository.PaymentRepository
	currency    CurrencyService
}

// NewPaymentService creates a new instance of PaymentService
func NewPaymentService(
	saleRepo repository.SaleRepository,
	paymentRepo repository.PaymentRepository,
	currency CurrencyService,
) PaymentService {
	return &paymentService{
		saleRepo:    saleRepo,
		paymentRepo: paymentRepo,
		currency:    currency,
	}
}

func (s *paymentService) RecordPayment(ctx context.Context, saleID uuid.UUID, amount float64, currency, method, reference string) (*domain.Payment, error) {
	if amount <= 0 {
		return nil, ErrInvalidPaymentAmount
	}

	sale, err := s.saleRepo.FindByID(ctx, saleID)
	if err != nil {
		return nil, err
	}
	if sale.Status == domain.SaleStatusPaid {
		return nil, ErrSaleAlreadyPaid
	}

	currency = strings.ToUpper(strings.TrimSpace(currency))
	if currency == "" {
		currency = domain.BaseCurrency
	}

	rate := s.currency.GetRate(currency)
	amountUSD := amount
	if currency != domain.BaseCurrency {
		amountUSD = amount / rate
	}

	payment := &domain.Payment{
		ID:            uuid.New(),
		SaleID:        saleID,
		Amount:        amount,
		Currency:      currency,
		RateAtPayment: rate,
		AmountUSD:     amountUSD,
		Method:        method,
		Reference:     reference,
		CreatedAt:     time.Now(),
	}

	if err := s.paymentRepo.Create(ctx, payment); err != nil {
		return nil, fmt.Errorf("failed to record payment: %w", err)
	}

	return payment, nil
}

func (s *paymentService) SuggestRemaining(ctx context.Context, saleID uuid.UUID, currency string) (*SuggestedPayment, error) {
	sale, err := s.saleRepo.FindByID(ctx, saleID)
	if err != nil {
		return nil, err
	}

	currency = strings.ToUpper(strings.TrimSpace(currency))
	if currency == "" {
		currency = domain.BaseCurrency
	}

	remaining := sale.RemainingBalance()
	rate := s.currency.GetRate(currency)

	return &SuggestedPayment{
		Currency:     currency,
		Amount:       s.currency.Convert(remaining, currency),
		Rate:         rate,
		RemainingUSD: remaining,
	}, nil
}

func (s *paymentService) ListPayments(ctx context.Context, saleID uuid.UUID) ([]*domain.Payment, error) {
	if _, err := s.saleRepo.FindByID(ctx, saleID); err != nil {
		return nil, err
	}
	return s.paymentRepo.ListBySale(ctx, saleID)
}
