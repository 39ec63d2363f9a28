package service

import (
	"context"
	"fmt"

	"tienda-pos/internal/domain"
	"tienda-pos/internal/repository"

	"github.com/google/uuid"
)

// SalePageSize is the fixed page size of the sale history listing
const SalePageSize = 10

// SalePage is one page of the sale history
type SalePage struct {
	Sales []*domain.Sale
	Total int
	Page  int
}

// SalesService exposes the sale history
type SalesService interface {
	ListSales(ctx context.Context, filter repository.SaleFilter, page int) (*SalePage, error)
	GetSale(ctx context.Context, id uuid.UUID) (*domain.Sale, error)
	// DeleteSale removes the sale with its items and payments. Stock is
	// not restored; a deletion is a correction, not a return.
	DeleteSale(ctx context.Context, id uuid.UUID) error
}

type salesService struct {
	saleRepo repository.SaleRepository
}

// NewSalesService creates a new instance of SalesService
func NewSalesService(saleRepo repository.SaleRepository) SalesService {
	return &salesService{saleRepo: saleRepo}
}

func (s *salesService) ListSales(ctx context.Context, filter repository.SaleFilter, page int) (*SalePage, error) {
	if page < 1 {
		page = 1
	}

	sales, total, err := s.saleRepo.List(ctx, filter, page, SalePageSize)
	if err != nil {
		return nil, fmt.Errorf("failed to list sales: %w", err)
	}

	return &SalePage{Sales: sales, Total: total, Page: page}, nil
}

func (s *salesService) GetSale(ctx context.Context, id uuid.UUID) (*domain.Sale, error) {
	return s.saleRepo.FindByID(ctx, id)
}

func (s *salesService) DeleteSale(ctx context.Context, id uuid.UUID) error {
	return s.saleRepo.Delete(ctx, id)
}
