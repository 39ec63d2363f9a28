package transport

import (
	"errors"
	"net/http"
	"time"

	"tienda-pos/internal/domain"
	"tienda-pos/internal/middleware"
	"tienda-pos/internal/repository"
	"tienda-pos/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// RateUpdateRequest represents one currency edit
type RateUpdateRequest struct {
	Code string  `json:"code" validate:"required,len=3"`
	Rate float64 `json:"rate" validate:"required,gt=0"`
}

// RatesUpdateRequest represents the save-rates payload
type RatesUpdateRequest struct {
	Rates []RateUpdateRequest `json:"rates" validate:"required,min=1,dive"`
}

// DisplayCurrencyRequest represents the display currency preference payload
type DisplayCurrencyRequest struct {
	Currency string `json:"currency" validate:"required,len=3"`
}

// RateResponse represents one configured exchange rate
type RateResponse struct {
	Code      string  `json:"code"`
	Name      string  `json:"name"`
	Symbol    string  `json:"symbol"`
	Rate      float64 `json:"rate"`
	UpdatedAt string  `json:"updated_at"`
}

func toRateResponse(rate *domain.ExchangeRate) RateResponse {
	return RateResponse{
		Code:      rate.Code,
		Name:      rate.Name,
		Symbol:    rate.Symbol,
		Rate:      rate.Rate,
		UpdatedAt: rate.UpdatedAt.Format(time.RFC3339),
	}
}

// RatesHandler handles HTTP requests for currency configuration
type RatesHandler struct {
	ratesService    service.RatesService
	currencyService service.CurrencyService
	logger          *zap.Logger
}

// NewRatesHandler creates a new RatesHandler
func NewRatesHandler(
	ratesService service.RatesService,
	currencyService service.CurrencyService,
	logger *zap.Logger,
) *RatesHandler {
	return &RatesHandler{
		ratesService:    ratesService,
		currencyService: currencyService,
		logger:          logger,
	}
}

// RegisterRoutes registers all rate routes
func (h *RatesHandler) RegisterRoutes(r chi.Router, adminOnly func(http.Handler) http.Handler) {
	r.Route("/api/rates", func(r chi.Router) {
		r.Get("/", h.List)
		r.Get("/display-currency", h.GetDisplayCurrency)

		r.Group(func(r chi.Router) {
			r.Use(adminOnly)
			r.Put("/", h.Update)
			r.Get("/market", h.Market)
			r.Put("/display-currency", h.SetDisplayCurrency)
		})
	})
}

// List handles the configured rates listing
func (h *RatesHandler) List(w http.ResponseWriter, r *http.Request) {
	rates, err := h.ratesService.ListRates(r.Context())
	if err != nil {
		h.logger.Error("Rate listing failed", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to list rates")
		return
	}

	response := make([]RateResponse, 0, len(rates))
	for _, rate := range rates {
		response = append(response, toRateResponse(rate))
	}

	middleware.RespondWithJSON(w, http.StatusOK, response)
}

// Update handles saving operator-edited rates
func (h *RatesHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req RatesUpdateRequest

	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		if validationErrors := middleware.FormatValidationErrors(err); len(validationErrors) > 0 {
			middleware.RespondWithValidationErrors(w, validationErrors)
			return
		}

		middleware.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	updates := make([]service.RateUpdate, 0, len(req.Rates))
	for _, rate := range req.Rates {
		updates = append(updates, service.RateUpdate{Code: rate.Code, Rate: rate.Rate})
	}

	if err := h.ratesService.UpdateRates(r.Context(), updates); err != nil {
		switch {
		case err == service.ErrInvalidRate:
			middleware.RespondWithError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, repository.ErrBaseRateImmutable):
			middleware.RespondWithError(w, http.StatusBadRequest, "the base currency rate cannot be changed")
		case errors.Is(err, repository.ErrRateNotFound):
			middleware.RespondWithError(w, http.StatusNotFound, "unknown currency code")
		default:
			h.logger.Error("Rate update failed", zap.Error(err))
			middleware.RespondWithError(w, http.StatusInternalServerError, "failed to update rates")
		}
		return
	}

	h.logger.Info("Exchange rates updated", zap.Int("count", len(updates)))
	w.WriteHeader(http.StatusNoContent)
}

// Market handles fetching provider quotes as editable proposals
func (h *RatesHandler) Market(w http.ResponseWriter, r *http.Request) {
	proposals, err := h.ratesService.FetchMarketRates(r.Context())
	if err != nil {
		h.logger.Warn("Market rate fetch failed", zap.Error(err))
		middleware.RespondWithError(w, http.StatusBadGateway, "market rates are currently unavailable")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, proposals)
}

// GetDisplayCurrency handles reading the display currency preference
func (h *RatesHandler) GetDisplayCurrency(w http.ResponseWriter, r *http.Request) {
	middleware.RespondWithJSON(w, http.StatusOK, map[string]string{
		"currency": h.currencyService.DisplayCurrency(r.Context()),
	})
}

// SetDisplayCurrency handles saving the display currency preference
func (h *RatesHandler) SetDisplayCurrency(w http.ResponseWriter, r *http.Request) {
	var req DisplayCurrencyRequest

	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		if validationErrors := middleware.FormatValidationErrors(err); len(validationErrors) > 0 {
			middleware.RespondWithValidationErrors(w, validationErrors)
			return
		}

		middleware.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.currencyService.SetDisplayCurrency(r.Context(), req.Currency); err != nil {
		if err == repository.ErrRateNotFound {
			middleware.RespondWithError(w, http.StatusBadRequest, "unknown currency code")
			return
		}

		h.logger.Error("Display currency update failed", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to save display currency")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
