package transport

import (
	"net/http"
	"strconv"
	"time"

	"tienda-pos/internal/domain"
	"tienda-pos/internal/middleware"
	"tienda-pos/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CustomerStatsResponse represents one customer row in the listing
type CustomerStatsResponse struct {
	ID            string  `json:"id,omitempty"`
	Name          string  `json:"name"`
	PurchaseCount int     `json:"purchase_count"`
	Invoiced      float64 `json:"invoiced"`
	Paid          float64 `json:"paid"`
	PendingDebt   float64 `json:"pending_debt"`
	HasDebt       bool    `json:"has_debt"`
	LastPurchase  *string `json:"last_purchase"`
}

// CustomerListResponse is one page of the customer listing
type CustomerListResponse struct {
	Customers []CustomerStatsResponse `json:"customers"`
	Total     int                     `json:"total"`
	Page      int                     `json:"page"`
	PageSize  int                     `json:"page_size"`
}

func toCustomerStatsResponse(s *domain.CustomerStats) CustomerStatsResponse {
	resp := CustomerStatsResponse{
		Name:          s.Name,
		PurchaseCount: s.PurchaseCount,
		Invoiced:      s.Invoiced,
		Paid:          s.Paid,
		PendingDebt:   s.PendingDebt,
		HasDebt:       s.HasDebt,
	}
	if s.ID != uuid.Nil {
		resp.ID = s.ID.String()
	}
	if s.LastPurchase != nil {
		last := s.LastPurchase.Format(time.RFC3339)
		resp.LastPurchase = &last
	}
	return resp
}

// CustomerHandler handles HTTP requests for customer statistics
type CustomerHandler struct {
	statsService service.StatsService
	logger       *zap.Logger
}

// NewCustomerHandler creates a new CustomerHandler
func NewCustomerHandler(statsService service.StatsService, logger *zap.Logger) *CustomerHandler {
	return &CustomerHandler{
		statsService: statsService,
		logger:       logger,
	}
}

// RegisterRoutes registers all customer routes
func (h *CustomerHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api/customers", func(r chi.Router) {
		r.Get("/", h.List)
		r.Get("/overview", h.Overview)
	})
}

// List handles the paginated customer statistics listing
func (h *CustomerHandler) List(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	page, _ := strconv.Atoi(query.Get("page"))
	nameFilter := query.Get("q")

	stats, total, err := h.statsService.ListCustomerStats(r.Context(), nameFilter, page)
	if err != nil {
		h.logger.Error("Customer listing failed", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to list customers")
		return
	}

	if page < 1 {
		page = 1
	}

	customers := make([]CustomerStatsResponse, 0, len(stats))
	for _, row := range stats {
		customers = append(customers, toCustomerStatsResponse(row))
	}

	middleware.RespondWithJSON(w, http.StatusOK, CustomerListResponse{
		Customers: customers,
		Total:     total,
		Page:      page,
		PageSize:  service.CustomerPageSize,
	})
}

// Overview handles the aggregated customer totals
func (h *CustomerHandler) Overview(w http.ResponseWriter, r *http.Request) {
	overview, err := h.statsService.Overview(r.Context())
	if err != nil {
		h.logger.Error("Customer overview failed", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to compute customer overview")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, overview)
}
