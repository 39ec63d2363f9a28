package service

import (
	"context"
	"math"
	"testing"
	"time"

	"tienda-pos/internal/domain"
	"tienda-pos/internal/repository"

	"github.com/google/uuid"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func newPaymentFixture() (*mockSaleRepository, PaymentService) {
	products := newMockProductRepository()
	sales := newMockSaleRepository(products)
	payments := newMockPaymentRepository(sales)
	currency := newTestCurrencyService()
	return sales, NewPaymentService(sales, payments, currency)
}

func seedOpenSale(sales *mockSaleRepository, total float64) uuid.UUID {
	id := uuid.New()
	sales.sales[id] = &domain.Sale{
		ID:           id,
		CustomerName: "Ana",
		Total:        total,
		Status:       domain.SaleStatusPending,
		SaleCurrency: domain.BaseCurrency,
		CreatedAt:    time.Now(),
	}
	return id
}

func TestRecordPaymentInPesosSettlesDollarSale(t *testing.T) {
	sales, payments := newPaymentFixture()
	ctx := context.Background()

	saleID := seedOpenSale(sales, 10)

	// 41,500 pesos at 4,150 per dollar settles a $10 sale
	payment, err := payments.RecordPayment(ctx, saleID, 41500, "COP", "cash", "")
	if err != nil {
		t.Fatalf("record payment failed: %v", err)
	}

	if payment.RateAtPayment != 4150 {
		t.Errorf("snapshotted rate = %v, want 4150", payment.RateAtPayment)
	}
	if math.Abs(payment.AmountUSD-10) > 1e-9 {
		t.Errorf("normalized amount = %v, want 10", payment.AmountUSD)
	}

	sale, _ := sales.FindByID(ctx, saleID)
	if sale.Status != domain.SaleStatusPaid {
		t.Errorf("sale status = %s, want paid", sale.Status)
	}
	if math.Abs(sale.TotalPaid-10) > 1e-9 {
		t.Errorf("total paid = %v, want 10", sale.TotalPaid)
	}
}

func TestRecordPartialPayment(t *testing.T) {
	sales, payments := newPaymentFixture()
	ctx := context.Background()

	saleID := seedOpenSale(sales, 20)

	if _, err := payments.RecordPayment(ctx, saleID, 5, "USD", "cash", ""); err != nil {
		t.Fatalf("record payment failed: %v", err)
	}

	sale, _ := sales.FindByID(ctx, saleID)
	if sale.Status != domain.SaleStatusPartial {
		t.Errorf("sale status = %s, want partial", sale.Status)
	}
	if sale.RemainingBalance() != 15 {
		t.Errorf("remaining = %v, want 15", sale.RemainingBalance())
	}
}

func TestRecordPaymentValidation(t *testing.T) {
	sales, payments := newPaymentFixture()
	ctx := context.Background()

	saleID := seedOpenSale(sales, 10)

	if _, err := payments.RecordPayment(ctx, saleID, 0, "USD", "cash", ""); err != ErrInvalidPaymentAmount {
		t.Errorf("zero amount error = %v, want ErrInvalidPaymentAmount", err)
	}
	if _, err := payments.RecordPayment(ctx, saleID, -5, "USD", "cash", ""); err != ErrInvalidPaymentAmount {
		t.Errorf("negative amount error = %v, want ErrInvalidPaymentAmount", err)
	}
	if _, err := payments.RecordPayment(ctx, uuid.New(), 5, "USD", "cash", ""); err != repository.ErrSaleNotFound {
		t.Errorf("unknown sale error = %v, want ErrSaleNotFound", err)
	}

	// Settle the sale, further payments are rejected
	if _, err := payments.RecordPayment(ctx, saleID, 10, "USD", "cash", ""); err != nil {
		t.Fatalf("settling payment failed: %v", err)
	}
	if _, err := payments.RecordPayment(ctx, saleID, 1, "USD", "cash", ""); err != ErrSaleAlreadyPaid {
		t.Errorf("paid sale error = %v, want ErrSaleAlreadyPaid", err)
	}
}

func TestSuggestRemaining(t *testing.T) {
	sales, payments := newPaymentFixture()
	ctx := context.Background()

	saleID := seedOpenSale(sales, 10)
	if _, err := payments.RecordPayment(ctx, saleID, 4, "USD", "cash", ""); err != nil {
		t.Fatalf("record payment failed: %v", err)
	}

	suggestion, err := payments.SuggestRemaining(ctx, saleID, "COP")
	if err != nil {
		t.Fatalf("suggest failed: %v", err)
	}

	if suggestion.RemainingUSD != 6 {
		t.Errorf("remaining USD = %v, want 6", suggestion.RemainingUSD)
	}
	if want := 6 * 4150.0; math.Abs(suggestion.Amount-want) > 1e-9 {
		t.Errorf("suggested amount = %v, want %v", suggestion.Amount, want)
	}
	if suggestion.Rate != 4150 {
		t.Errorf("rate = %v, want 4150", suggestion.Rate)
	}

	// Paying the suggested amount settles the sale exactly
	if _, err := payments.RecordPayment(ctx, saleID, suggestion.Amount, "COP", "transfer", "ref-1"); err != nil {
		t.Fatalf("settling payment failed: %v", err)
	}
	sale, _ := sales.FindByID(ctx, saleID)
	if sale.Status != domain.SaleStatusPaid {
		t.Errorf("sale status = %s, want paid", sale.Status)
	}
}

func TestProperty_StatusPartitionsByPaidAmount(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("status is pending, partial or paid exactly by the paid amount", prop.ForAll(
		func(totalCents int, paidCents int) bool {
			total := float64(totalCents) / 100
			paid := float64(paidCents) / 100

			status := domain.DeriveSaleStatus(total, paid)

			switch {
			case paid <= 0:
				return status == domain.SaleStatusPending
			case paid < total:
				return status == domain.SaleStatusPartial
			default:
				return status == domain.SaleStatusPaid
			}
		},
		gen.IntRange(1, 1000000),
		gen.IntRange(0, 2000000),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestProperty_RemainingBalanceNeverNegative(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("overpaid sales report a zero remaining balance", prop.ForAll(
		func(totalCents int, paidCents int) bool {
			sale := &domain.Sale{
				Total:     float64(totalCents) / 100,
				TotalPaid: float64(paidCents) / 100,
			}
			return sale.RemainingBalance() >= 0
		},
		gen.IntRange(0, 1000000),
		gen.IntRange(0, 2000000),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestReconcilerHealsDriftedSettlements(t *testing.T) {
	products := newMockProductRepository()
	sales := newMockSaleRepository(products)
	ctx := context.Background()

	saleID := seedOpenSale(sales, 10)
	sale := sales.sales[saleID]
	sale.Payments = append(sale.Payments, &domain.Payment{
		ID:        uuid.New(),
		SaleID:    saleID,
		Amount:    10,
		Currency:  domain.BaseCurrency,
		AmountUSD: 10,
		CreatedAt: time.Now(),
	})
	// The stored settlement fields were not updated with the payment

	healed, err := sales.ReconcileSettlements(ctx)
	if err != nil {
		t.Fatalf("reconcile failed: %v", err)
	}
	if healed != 1 {
		t.Errorf("healed = %d, want 1", healed)
	}
	if sale.TotalPaid != 10 || sale.Status != domain.SaleStatusPaid {
		t.Errorf("sale not healed: paid=%v status=%s", sale.TotalPaid, sale.Status)
	}

	// A second pass is a no-op
	healed, _ = sales.ReconcileSettlements(ctx)
	if healed != 0 {
		t.Errorf("second pass healed = %d, want 0", healed)
	}
}
