package domain

import (
	"time"

	"github.com/google/uuid"
)

// BaseCurrency is the currency all monetary values are stored in. Its own
// rate is always 1.
const BaseCurrency = "USD"

// ExchangeRate maps a currency code to its rate relative to the base
// currency (units per 1 USD). At most one active row exists per code.
type ExchangeRate struct {
	ID        uuid.UUID `json:"id" db:"id"`
	Code      string    `json:"code" db:"code"`
	Name      string    `json:"name" db:"name"`
	Symbol    string    `json:"symbol" db:"symbol"`
	Rate      float64   `json:"rate" db:"rate"`
	Active    bool      `json:"active" db:"active"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Setting is a row in the key-value configuration table.
type Setting struct {
	Key       string    `json:"key" db:"key"`
	Value     string    `json:"value" db:"value"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// SettingDisplayCurrency stores the preferred currency for price display.
const SettingDisplayCurrency = "display_currency"

// FallbackRates is the rate set used when the rates table is unreachable
// or empty.
func FallbackRates() []*ExchangeRate {
	now := time.Now()
	return []*ExchangeRate{
		{Code: "USD", Name: "Dólar", Symbol: "$", Rate: 1, Active: true, UpdatedAt: now},
		{Code: "COP", Name: "Peso Colombiano", Symbol: "$", Rate: 4150, Active: true, UpdatedAt: now},
		{Code: "VES", Name: "Bolívar", Symbol: "Bs.", Rate: 52, Active: true, UpdatedAt: now},
	}
}
