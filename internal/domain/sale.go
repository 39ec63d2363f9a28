package domain

import (
	"time"

	"github.com/google/uuid"
)

// SaleStatus is the settlement state of a sale. It is derived from the
// payment log, never set independently.
type SaleStatus string

const (
	SaleStatusPending SaleStatus = "pending"
	SaleStatusPartial SaleStatus = "partial"
	SaleStatusPaid    SaleStatus = "paid"
)

// DeriveSaleStatus computes the settlement state from the invoiced total
// and the sum of payments in base currency.
func DeriveSaleStatus(total, totalPaid float64) SaleStatus {
	switch {
	case totalPaid <= 0:
		return SaleStatusPending
	case totalPaid < total:
		return SaleStatusPartial
	default:
		return SaleStatusPaid
	}
}

// Sale is an invoiced transaction. Total and TotalPaid are in USD; the
// rates in effect at sale time are snapshotted so historical sales stay
// readable after rate edits.
type Sale struct {
	ID           uuid.UUID  `json:"id" db:"id"`
	CustomerName string     `json:"customer_name" db:"customer_name"`
	Total        float64    `json:"total" db:"total"`
	Notes        string     `json:"notes" db:"notes"`
	RateUSDCOP   float64    `json:"rate_usd_cop" db:"rate_usd_cop"`
	RateUSDVES   float64    `json:"rate_usd_ves" db:"rate_usd_ves"`
	SaleCurrency string     `json:"sale_currency" db:"sale_currency"`
	TotalPaid    float64    `json:"total_paid" db:"total_paid"`
	Status       SaleStatus `json:"status" db:"status"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`

	Items    []*SaleItem `json:"items,omitempty"`
	Payments []*Payment  `json:"payments,omitempty"`
}

// RemainingBalance is the unpaid part of the sale in USD, never negative.
func (s *Sale) RemainingBalance() float64 {
	if rest := s.Total - s.TotalPaid; rest > 0 {
		return rest
	}
	return 0
}

// SaleItem snapshots the product name and unit price at sale time so later
// product edits do not rewrite history.
type SaleItem struct {
	ID          uuid.UUID  `json:"id" db:"id"`
	SaleID      uuid.UUID  `json:"sale_id" db:"sale_id"`
	ProductID   *uuid.UUID `json:"product_id,omitempty" db:"product_id"`
	ProductName string     `json:"product_name" db:"product_name"`
	Quantity    int        `json:"quantity" db:"quantity"`
	UnitPrice   float64    `json:"unit_price" db:"unit_price"`
	Subtotal    float64    `json:"subtotal" db:"subtotal"`
}

// Payment is an append-only ledger entry against a sale. AmountUSD is the
// amount converted at the rate in effect when the payment was recorded.
type Payment struct {
	ID            uuid.UUID `json:"id" db:"id"`
	SaleID        uuid.UUID `json:"sale_id" db:"sale_id"`
	Amount        float64   `json:"amount" db:"amount"`
	Currency      string    `json:"currency" db:"currency"`
	RateAtPayment float64   `json:"rate_at_payment" db:"rate_at_payment"`
	AmountUSD     float64   `json:"amount_usd" db:"amount_usd"`
	Method        string    `json:"method" db:"method"`
	Reference     string    `json:"reference" db:"reference"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}
