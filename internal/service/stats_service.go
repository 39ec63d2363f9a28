package service

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"tienda-pos/internal/domain"
	"tienda-pos/internal/repository"
)

// CustomerPageSize is the fixed page size of the customer listing
const CustomerPageSize = 15

// CustomerOverview aggregates the whole customer base
type CustomerOverview struct {
	TotalCustomers int     `json:"total_customers"`
	TotalInvoiced  float64 `json:"total_invoiced"`
	TotalPaid      float64 `json:"total_paid"`
	TotalPending   float64 `json:"total_pending"`
	Debtors        int     `json:"debtors"`
}

// StatsService derives per-customer purchase statistics from the sale
// history. Customers are identified by case-insensitive name.
type StatsService interface {
	// ListCustomerStats returns one row per customer, debtors first, then
	// by pending balance and invoiced total descending. The name filter
	// matches substrings case-insensitively.
	ListCustomerStats(ctx context.Context, nameFilter string, page int) ([]*domain.CustomerStats, int, error)
	Overview(ctx context.Context) (*CustomerOverview, error)
}

type statsService struct {
	saleRepo     repository.SaleRepository
	customerRepo repository.CustomerRepository
}

// NewStatsService creates a new instance of StatsService
func NewStatsService(saleRepo repository.SaleRepository, customerRepo repository.CustomerRepository) StatsService {
	return &statsService{saleRepo: saleRepo, customerRepo: customerRepo}
}

func (s *statsService) aggregate(ctx context.Context) ([]*domain.CustomerStats, error) {
	sales, err := s.saleRepo.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load sale history: %w", err)
	}

	// Storage order is not part of the contract here, so sort before
	// grouping: the first sale seen per customer must be the latest one.
	sort.SliceStable(sales, func(i, j int) bool {
		return sales[i].CreatedAt.After(sales[j].CreatedAt)
	})

	byName := map[string]*domain.CustomerStats{}
	order := []string{}

	for _, sale := range sales {
		key := strings.ToLower(strings.TrimSpace(sale.CustomerName))
		stats, ok := byName[key]
		if !ok {
			stats = &domain.CustomerStats{
				Customer: domain.Customer{Name: sale.CustomerName},
			}
			last := sale.CreatedAt
			stats.LastPurchase = &last
			byName[key] = stats
			order = append(order, key)
		}

		stats.PurchaseCount++
		stats.Invoiced += sale.Total
		stats.Paid += sale.TotalPaid
	}

	customers, err := s.customerRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list customers: %w", err)
	}
	for _, customer := range customers {
		key := strings.ToLower(strings.TrimSpace(customer.Name))
		stats, ok := byName[key]
		if !ok {
			// Registered but never bought anything
			stats = &domain.CustomerStats{Customer: *customer}
			byName[key] = stats
			order = append(order, key)
			continue
		}
		// The stored row's name casing is canonical
		stats.Customer = *customer
	}

	result := make([]*domain.CustomerStats, 0, len(order))
	for _, key := range order {
		stats := byName[key]
		pending := stats.Invoiced - stats.Paid
		if pending < 0 {
			pending = 0
		}
		stats.PendingDebt = pending
		stats.HasDebt = pending > 0
		result = append(result, stats)
	}

	return result, nil
}

func (s *statsService) ListCustomerStats(ctx context.Context, nameFilter string, page int) ([]*domain.CustomerStats, int, error) {
	all, err := s.aggregate(ctx)
	if err != nil {
		return nil, 0, err
	}

	if filter := strings.ToLower(strings.TrimSpace(nameFilter)); filter != "" {
		filtered := all[:0]
		for _, stats := range all {
			if strings.Contains(strings.ToLower(stats.Name), filter) {
				filtered = append(filtered, stats)
			}
		}
		all = filtered
	}

	sort.SliceStable(all, func(i, j int) bool {
		a, b := all[i], all[j]
		if a.HasDebt != b.HasDebt {
			return a.HasDebt
		}
		if a.PendingDebt != b.PendingDebt {
			return a.PendingDebt > b.PendingDebt
		}
		return a.Invoiced > b.Invoiced
	})

	total := len(all)

	if page < 1 {
		page = 1
	}
	start := (page - 1) * CustomerPageSize
	if start >= total {
		return []*domain.CustomerStats{}, total, nil
	}
	end := start + CustomerPageSize
	if end > total {
		end = total
	}

	return all[start:end], total, nil
}

func (s *statsService) Overview(ctx context.Context) (*CustomerOverview, error) {
	all, err := s.aggregate(ctx)
	if err != nil {
		return nil, err
	}

	overview := &CustomerOverview{TotalCustomers: len(all)}
	for _, stats := range all {
		overview.TotalInvoiced += stats.Invoiced
		overview.TotalPaid += stats.Paid
		overview.TotalPending += stats.PendingDebt
		if stats.HasDebt {
			overview.Debtors++
		}
	}

	return overview, nil
}
