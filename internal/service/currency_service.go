package service

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"tienda-pos/internal/domain"
	"tienda-pos/internal/repository"

	"go.uber.org/zap"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// CurrencyService converts and formats monetary amounts. All amounts are
// stored in the base currency; display currencies are derived from the
// configured rates. Rates are cached in memory and refreshed explicitly so
// a request never blocks on the database for formatting.
type CurrencyService interface {
	// Refresh reloads the active rates from storage. On failure the
	// previous cache survives; an empty cache falls back to the built-in
	// rate set so the app keeps rendering prices.
	Refresh(ctx context.Context) error
	Rates() []*domain.ExchangeRate
	// GetRate returns the units-per-base rate for a currency code, or 1
	// when the code is unknown.
	GetRate(code string) float64
	// Convert translates an amount in the base currency into the target
	// currency. Unknown codes return the amount unchanged.
	Convert(amountBase float64, code string) float64
	// Format renders an amount already expressed in the given currency as
	// "symbol number" with Latin American grouping. The base currency keeps
	// two decimals; the rest round to whole units. Unknown codes format as
	// base-currency dollars.
	Format(amount float64, code string) string
	// FormatBase converts from the base currency and formats in one step
	FormatBase(amountBase float64, code string) string
	DisplayCurrency(ctx context.Context) string
	SetDisplayCurrency(ctx context.Context, code string) error
}

type currencyService struct {
	rateRepo     repository.RateRepository
	settingsRepo repository.SettingsRepository
	logger       *zap.Logger

	mu    sync.RWMutex
	rates map[string]*domain.ExchangeRate
	order []string

	printer  *message.Printer
	fallback *message.Printer
}

// NewCurrencyService creates a new instance of CurrencyService seeded with
// the built-in fallback rates.
func NewCurrencyService(
	rateRepo repository.RateRepository,
	settingsRepo repository.SettingsRepository,
	logger *zap.Logger,
) CurrencyService {
	s := &currencyService{
		rateRepo:     rateRepo,
		settingsRepo: settingsRepo,
		logger:       logger,
		printer:      message.NewPrinter(language.MustParse("es-CO")),
		fallback:     message.NewPrinter(language.AmericanEnglish),
	}
	s.install(domain.FallbackRates())
	return s
}

func (s *currencyService) install(rates []*domain.ExchangeRate) {
	byCode := make(map[string]*domain.ExchangeRate, len(rates))
	order := make([]string, 0, len(rates))
	for _, rate := range rates {
		byCode[rate.Code] = rate
		order = append(order, rate.Code)
	}

	s.mu.Lock()
	s.rates = byCode
	s.order = order
	s.mu.Unlock()
}

func (s *currencyService) Refresh(ctx context.Context) error {
	rates, err := s.rateRepo.ListActive(ctx)
	if err != nil {
		s.logger.Warn("failed to refresh exchange rates, keeping cached set", zap.Error(err))
		return fmt.Errorf("failed to refresh exchange rates: %w", err)
	}

	if len(rates) == 0 {
		s.logger.Warn("no active exchange rates configured, using fallback set")
		s.install(domain.FallbackRates())
		return nil
	}

	s.install(rates)
	return nil
}

func (s *currencyService) Rates() []*domain.ExchangeRate {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rates := make([]*domain.ExchangeRate, 0, len(s.order))
	for _, code := range s.order {
		rates = append(rates, s.rates[code])
	}
	return rates
}

func (s *currencyService) GetRate(code string) float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rate, ok := s.rates[strings.ToUpper(code)]
	if !ok || rate.Rate <= 0 {
		return 1
	}
	return rate.Rate
}

func (s *currencyService) Convert(amountBase float64, code string) float64 {
	return amountBase * s.GetRate(code)
}

func (s *currencyService) Format(amount float64, code string) string {
	code = strings.ToUpper(code)

	s.mu.RLock()
	rate, known := s.rates[code]
	s.mu.RUnlock()

	if !known {
		// Unconfigured codes convert at rate 1, so the amount is still in
		// dollars; render it as US currency.
		return "$" + s.fallback.Sprint(number.Decimal(
			amount,
			number.MinFractionDigits(2),
			number.MaxFractionDigits(2),
		))
	}

	decimals := 0
	if code == domain.BaseCurrency {
		decimals = 2
	}

	formatted := s.printer.Sprint(number.Decimal(
		amount,
		number.MinFractionDigits(decimals),
		number.MaxFractionDigits(decimals),
	))

	return fmt.Sprintf("%s %s", rate.Symbol, formatted)
}

func (s *currencyService) FormatBase(amountBase float64, code string) string {
	return s.Format(s.Convert(amountBase, code), code)
}

// DisplayCurrency returns the app-wide preferred display currency, falling
// back to the base currency when unset or unknown.
func (s *currencyService) DisplayCurrency(ctx context.Context) string {
	value, err := s.settingsRepo.Get(ctx, domain.SettingDisplayCurrency)
	if err != nil {
		if err != repository.ErrSettingNotFound {
			s.logger.Warn("failed to read display currency setting", zap.Error(err))
		}
		return domain.BaseCurrency
	}

	code := strings.ToUpper(strings.TrimSpace(value))

	s.mu.RLock()
	_, known := s.rates[code]
	s.mu.RUnlock()

	if !known {
		return domain.BaseCurrency
	}
	return code
}

func (s *currencyService) SetDisplayCurrency(ctx context.Context, code string) error {
	code = strings.ToUpper(strings.TrimSpace(code))

	s.mu.RLock()
	_, known := s.rates[code]
	s.mu.RUnlock()

	if !known {
		return repository.ErrRateNotFound
	}

	if err := s.settingsRepo.Upsert(ctx, domain.SettingDisplayCurrency, code); err != nil {
		return fmt.Errorf("failed to save display currency: %w", err)
	}
	return nil
}
