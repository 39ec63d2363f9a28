package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"tienda-pos/internal/domain"
	"tienda-pos/internal/repository"

	"go.uber.org/zap"
)

var (
	ErrInvalidRate = errors.New("exchange rate must be greater than zero")
)

// RateProposal pairs a configured currency with the market rate fetched from
// the external provider. Proposals are suggestions only; nothing is applied
// until the operator saves an update.
type RateProposal struct {
	Code        string  `json:"code"`
	Name        string  `json:"name"`
	CurrentRate float64 `json:"current_rate"`
	MarketRate  float64 `json:"market_rate"`
}

// RateUpdate is a single currency edit submitted by the operator
type RateUpdate struct {
	Code string  `json:"code"`
	Rate float64 `json:"rate"`
}

// RatesService manages the configured exchange rates
type RatesService interface {
	ListRates(ctx context.Context) ([]*domain.ExchangeRate, error)
	// UpdateRates applies the submitted edits and refreshes the currency
	// cache. The base currency cannot be edited.
	UpdateRates(ctx context.Context, updates []RateUpdate) error
	// FetchMarketRates queries the external provider and returns proposals
	// for the configured non-base currencies.
	FetchMarketRates(ctx context.Context) ([]*RateProposal, error)
}

type ratesService struct {
	rateRepo repository.RateRepository
	currency CurrencyService
	client   *http.Client
	apiURL   string
	logger   *zap.Logger
}

// NewRatesService creates a new instance of RatesService
func NewRatesService(
	rateRepo repository.RateRepository,
	currency CurrencyService,
	apiURL string,
	logger *zap.Logger,
) RatesService {
	return &ratesService{
		rateRepo: rateRepo,
		currency: currency,
		client:   &http.Client{Timeout: 10 * time.Second},
		apiURL:   apiURL,
		logger:   logger,
	}
}

func (s *ratesService) ListRates(ctx context.Context) ([]*domain.ExchangeRate, error) {
	rates, err := s.rateRepo.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list rates: %w", err)
	}
	return rates, nil
}

func (s *ratesService) UpdateRates(ctx context.Context, updates []RateUpdate) error {
	for _, update := range updates {
		if update.Rate <= 0 {
			return ErrInvalidRate
		}
	}

	for _, update := range updates {
		if err := s.rateRepo.UpdateRate(ctx, update.Code, update.Rate); err != nil {
			return fmt.Errorf("failed to update rate %s: %w", update.Code, err)
		}
	}

	if err := s.currency.Refresh(ctx); err != nil {
		// Saved rates take effect on the next refresh cycle
		s.logger.Warn("rates saved but cache refresh failed", zap.Error(err))
	}

	return nil
}

// marketRatesResponse mirrors the provider's payload, rates keyed by
// currency code in units per base currency.
type marketRatesResponse struct {
	Base  string             `json:"base"`
	Rates map[string]float64 `json:"rates"`
}

func (s *ratesService) FetchMarketRates(ctx context.Context) ([]*RateProposal, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.apiURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build market rates request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch market rates: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("market rates provider returned status %d", resp.StatusCode)
	}

	var payload marketRatesResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode market rates: %w", err)
	}

	configured, err := s.rateRepo.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list rates: %w", err)
	}

	proposals := []*RateProposal{}
	for _, rate := range configured {
		if rate.Code == domain.BaseCurrency {
			continue
		}
		market, ok := payload.Rates[rate.Code]
		if !ok {
			s.logger.Debug("provider has no quote for currency", zap.String("code", rate.Code))
			continue
		}
		proposals = append(proposals, &RateProposal{
			Code:        rate.Code,
			Name:        rate.Name,
			CurrentRate: rate.Rate,
			MarketRate:  market,
		})
	}

	return proposals, nil
}
