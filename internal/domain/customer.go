package domain

import (
	"time"

	"github.com/google/uuid"
)

// Customer is created implicitly the first time a sale references a new
// name; identity is the lowercased name.
type Customer struct {
	ID        uuid.UUID `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// CustomerStats is a customer joined with aggregates derived from its sales.
type CustomerStats struct {
	Customer
	PurchaseCount int        `json:"purchase_count"`
	Invoiced      float64    `json:"invoiced"`
	Paid          float64    `json:"paid"`
	PendingDebt   float64    `json:"pending_debt"`
	HasDebt       bool       `json:"has_debt"`
	LastPurchase  *time.Time `json:"last_purchase,omitempty"`
}
