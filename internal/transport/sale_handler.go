package transport

import (
	"net/http"
	"strconv"
	"time"

	"tienda-pos/internal/domain"
	"tienda-pos/internal/middleware"
	"tienda-pos/internal/repository"
	"tienda-pos/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CheckoutItemRequest is one cart line in a checkout request
type CheckoutItemRequest struct {
	ProductID string `json:"product_id" validate:"required,uuid"`
	Quantity  int    `json:"quantity" validate:"required,gt=0"`
}

// CheckoutRequest represents the checkout payload
type CheckoutRequest struct {
	CustomerName string                `json:"customer_name" validate:"required,min=1,max=200"`
	Notes        string                `json:"notes" validate:"max=1000"`
	Items        []CheckoutItemRequest `json:"items" validate:"required,min=1,dive"`
}

// PaymentRequest represents the record-payment payload
type PaymentRequest struct {
	Amount    float64 `json:"amount" validate:"required,gt=0"`
	Currency  string  `json:"currency" validate:"omitempty,len=3"`
	Method    string  `json:"method" validate:"omitempty,max=50"`
	Reference string  `json:"reference" validate:"omitempty,max=200"`
}

// SaleItemResponse represents one sale line item
type SaleItemResponse struct {
	ID          string  `json:"id"`
	ProductID   *string `json:"product_id"`
	ProductName string  `json:"product_name"`
	Quantity    int     `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
	Subtotal    float64 `json:"subtotal"`
}

// PaymentResponse represents one recorded payment
type PaymentResponse struct {
	ID            string  `json:"id"`
	Amount        float64 `json:"amount"`
	Currency      string  `json:"currency"`
	RateAtPayment float64 `json:"rate_at_payment"`
	AmountUSD     float64 `json:"amount_usd"`
	Method        string  `json:"method"`
	Reference     string  `json:"reference,omitempty"`
	CreatedAt     string  `json:"created_at"`
}

// SaleResponse represents sale data returned to clients
type SaleResponse struct {
	ID           string             `json:"id"`
	CustomerName string             `json:"customer_name"`
	Total        float64            `json:"total"`
	TotalPaid    float64            `json:"total_paid"`
	Remaining    float64            `json:"remaining"`
	Status       string             `json:"status"`
	Notes        string             `json:"notes,omitempty"`
	SaleCurrency string             `json:"sale_currency"`
	RateUSDCOP   float64            `json:"rate_usd_cop"`
	RateUSDVES   float64            `json:"rate_usd_ves"`
	CreatedAt    string             `json:"created_at"`
	Items        []SaleItemResponse `json:"items,omitempty"`
	Payments     []PaymentResponse  `json:"payments,omitempty"`
}

// SaleListResponse is one page of the sale history
type SaleListResponse struct {
	Sales    []SaleResponse `json:"sales"`
	Total    int            `json:"total"`
	Page     int            `json:"page"`
	PageSize int            `json:"page_size"`
}

func toPaymentResponse(p *domain.Payment) PaymentResponse {
	return PaymentResponse{
		ID:            p.ID.String(),
		Amount:        p.Amount,
		Currency:      p.Currency,
		RateAtPayment: p.RateAtPayment,
		AmountUSD:     p.AmountUSD,
		Method:        p.Method,
		Reference:     p.Reference,
		CreatedAt:     p.CreatedAt.Format(time.RFC3339),
	}
}

func toSaleResponse(s *domain.Sale) SaleResponse {
	resp := SaleResponse{
		ID:           s.ID.String(),
		CustomerName: s.CustomerName,
		Total:        s.Total,
		TotalPaid:    s.TotalPaid,
		Remaining:    s.RemainingBalance(),
		Status:       string(s.Status),
		Notes:        s.Notes,
		SaleCurrency: s.SaleCurrency,
		RateUSDCOP:   s.RateUSDCOP,
		RateUSDVES:   s.RateUSDVES,
		CreatedAt:    s.CreatedAt.Format(time.RFC3339),
	}

	for _, item := range s.Items {
		itemResp := SaleItemResponse{
			ID:          item.ID.String(),
			ProductName: item.ProductName,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
			Subtotal:    item.Subtotal,
		}
		if item.ProductID != nil {
			id := item.ProductID.String()
			itemResp.ProductID = &id
		}
		resp.Items = append(resp.Items, itemResp)
	}

	for _, payment := range s.Payments {
		resp.Payments = append(resp.Payments, toPaymentResponse(payment))
	}

	return resp
}

// SaleHandler handles HTTP requests for sales and payments
type SaleHandler struct {
	salesService    service.SalesService
	checkoutService service.CheckoutService
	paymentService  service.PaymentService
	logger          *zap.Logger
}

// NewSaleHandler creates a new SaleHandler
func NewSaleHandler(
	salesService service.SalesService,
	checkoutService service.CheckoutService,
	paymentService service.PaymentService,
	logger *zap.Logger,
) *SaleHandler {
	return &SaleHandler{
		salesService:    salesService,
		checkoutService: checkoutService,
		paymentService:  paymentService,
		logger:          logger,
	}
}

// RegisterRoutes registers all sale routes
func (h *SaleHandler) RegisterRoutes(r chi.Router, adminOnly func(http.Handler) http.Handler) {
	r.Route("/api/sales", func(r chi.Router) {
		r.Get("/", h.List)
		r.Get("/{id}", h.Get)
		r.Get("/{id}/suggested-payment", h.SuggestedPayment)

		r.Group(func(r chi.Router) {
			r.Use(adminOnly)
			r.Post("/", h.Checkout)
			r.Post("/{id}/payments", h.RecordPayment)
			r.Delete("/{id}", h.Delete)
		})
	})
}

// Checkout handles creating a sale from a cart
func (h *SaleHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	var req CheckoutRequest

	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		h.logger.Debug("Checkout validation failed", zap.Error(err))

		if validationErrors := middleware.FormatValidationErrors(err); len(validationErrors) > 0 {
			middleware.RespondWithValidationErrors(w, validationErrors)
			return
		}

		middleware.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	lines := make([]service.CartLine, 0, len(req.Items))
	for _, item := range req.Items {
		productID, err := uuid.Parse(item.ProductID)
		if err != nil {
			middleware.RespondWithError(w, http.StatusBadRequest, "invalid product id")
			return
		}
		lines = append(lines, service.CartLine{ProductID: productID, Quantity: item.Quantity})
	}

	sale, err := h.checkoutService.Checkout(r.Context(), req.CustomerName, req.Notes, lines)
	if err != nil {
		switch err {
		case service.ErrEmptyCart, service.ErrInvalidQuantity, service.ErrMissingCustomer, service.ErrDuplicateCartLine:
			middleware.RespondWithError(w, http.StatusBadRequest, err.Error())
		case repository.ErrProductNotFound:
			middleware.RespondWithError(w, http.StatusBadRequest, "product does not exist")
		case repository.ErrInsufficientStock:
			middleware.RespondWithError(w, http.StatusConflict, "insufficient stock")
		default:
			h.logger.Error("Checkout failed", zap.Error(err))
			middleware.RespondWithError(w, http.StatusInternalServerError, "failed to complete checkout")
		}
		return
	}

	h.logger.Info("Sale created",
		zap.String("sale_id", sale.ID.String()),
		zap.String("customer", sale.CustomerName),
		zap.Float64("total", sale.Total),
	)
	middleware.RespondWithJSON(w, http.StatusCreated, toSaleResponse(sale))
}

// List handles the paginated, filterable sale history
func (h *SaleHandler) List(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	page, _ := strconv.Atoi(query.Get("page"))

	filter := repository.SaleFilter{
		CustomerQuery: query.Get("customer"),
		ProductQuery:  query.Get("product"),
	}

	if status := query.Get("status"); status != "" {
		switch domain.SaleStatus(status) {
		case domain.SaleStatusPending, domain.SaleStatusPartial, domain.SaleStatusPaid:
			filter.Status = domain.SaleStatus(status)
		default:
			middleware.RespondWithError(w, http.StatusBadRequest, "invalid status filter")
			return
		}
	}

	if raw := query.Get("from"); raw != "" {
		from, err := time.Parse("2006-01-02", raw)
		if err != nil {
			middleware.RespondWithError(w, http.StatusBadRequest, "invalid from date, expected YYYY-MM-DD")
			return
		}
		filter.From = &from
	}

	if raw := query.Get("to"); raw != "" {
		to, err := time.Parse("2006-01-02", raw)
		if err != nil {
			middleware.RespondWithError(w, http.StatusBadRequest, "invalid to date, expected YYYY-MM-DD")
			return
		}
		// Inclusive end date
		to = to.AddDate(0, 0, 1)
		filter.To = &to
	}

	pageResult, err := h.salesService.ListSales(r.Context(), filter, page)
	if err != nil {
		h.logger.Error("Sale listing failed", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to list sales")
		return
	}

	sales := make([]SaleResponse, 0, len(pageResult.Sales))
	for _, sale := range pageResult.Sales {
		sales = append(sales, toSaleResponse(sale))
	}

	middleware.RespondWithJSON(w, http.StatusOK, SaleListResponse{
		Sales:    sales,
		Total:    pageResult.Total,
		Page:     pageResult.Page,
		PageSize: service.SalePageSize,
	})
}

// Get handles fetching a sale with its items and payments
func (h *SaleHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid sale id")
		return
	}

	sale, err := h.salesService.GetSale(r.Context(), id)
	if err != nil {
		if err == repository.ErrSaleNotFound {
			middleware.RespondWithError(w, http.StatusNotFound, "sale not found")
			return
		}

		h.logger.Error("Sale fetch failed", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to fetch sale")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, toSaleResponse(sale))
}

// Delete handles sale removal
func (h *SaleHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid sale id")
		return
	}

	if err := h.salesService.DeleteSale(r.Context(), id); err != nil {
		if err == repository.ErrSaleNotFound {
			middleware.RespondWithError(w, http.StatusNotFound, "sale not found")
			return
		}

		h.logger.Error("Sale deletion failed", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to delete sale")
		return
	}

	h.logger.Info("Sale deleted", zap.String("sale_id", id.String()))
	w.WriteHeader(http.StatusNoContent)
}

// RecordPayment handles appending a payment to a sale
func (h *SaleHandler) RecordPayment(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid sale id")
		return
	}

	var req PaymentRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		if validationErrors := middleware.FormatValidationErrors(err); len(validationErrors) > 0 {
			middleware.RespondWithValidationErrors(w, validationErrors)
			return
		}

		middleware.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	payment, err := h.paymentService.RecordPayment(r.Context(), id, req.Amount, req.Currency, req.Method, req.Reference)
	if err != nil {
		switch err {
		case repository.ErrSaleNotFound:
			middleware.RespondWithError(w, http.StatusNotFound, "sale not found")
		case service.ErrInvalidPaymentAmount:
			middleware.RespondWithError(w, http.StatusBadRequest, err.Error())
		case service.ErrSaleAlreadyPaid:
			middleware.RespondWithError(w, http.StatusConflict, err.Error())
		default:
			h.logger.Error("Payment recording failed", zap.Error(err))
			middleware.RespondWithError(w, http.StatusInternalServerError, "failed to record payment")
		}
		return
	}

	h.logger.Info("Payment recorded",
		zap.String("sale_id", id.String()),
		zap.Float64("amount", payment.Amount),
		zap.String("currency", payment.Currency),
	)
	middleware.RespondWithJSON(w, http.StatusCreated, toPaymentResponse(payment))
}

// SuggestedPayment handles computing the settle-the-rest amount
func (h *SaleHandler) SuggestedPayment(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid sale id")
		return
	}

	suggestion, err := h.paymentService.SuggestRemaining(r.Context(), id, r.URL.Query().Get("currency"))
	if err != nil {
		if err == repository.ErrSaleNotFound {
			middleware.RespondWithError(w, http.StatusNotFound, "sale not found")
			return
		}

		h.logger.Error("Payment suggestion failed", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to compute suggested payment")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, suggestion)
}
