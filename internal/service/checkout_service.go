package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"tienda-pos/internal/domain"
	"tienda-pos/internal/repository"

	"github.com/google/uuid"
)

var (
	ErrEmptyCart         = errors.New("cart is empty")
	ErrInvalidQuantity   = errors.New("quantity must be greater than zero")
	ErrMissingCustomer   = errors.New("customer name is required")
	ErrDuplicateCartLine = errors.New("product appears more than once in the cart")
)

// CartLine is one product with its requested quantity. UnitPrice is the
// price seen when the line entered the cart; the checkout snapshots the
// live price again before persisting.
type CartLine struct {
	ProductID uuid.UUID
	Quantity  int
	UnitPrice float64
}

// Cart accumulates lines before checkout. Lines keep insertion order and
// stay keyed by product, so adding the same product twice merges quantities.
type Cart struct {
	lines []CartLine
	index map[uuid.UUID]int
}

// NewCart creates an empty cart
func NewCart() *Cart {
	return &Cart{index: map[uuid.UUID]int{}}
}

// Add merges quantity into the line for the product, capped by stock
func (c *Cart) Add(product *domain.Product, quantity int) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}

	current := 0
	if i, ok := c.index[product.ID]; ok {
		current = c.lines[i].Quantity
	}

	if current+quantity > product.Stock {
		return repository.ErrInsufficientStock
	}

	if i, ok := c.index[product.ID]; ok {
		c.lines[i].Quantity += quantity
		c.lines[i].UnitPrice = product.Price
		return nil
	}

	c.index[product.ID] = len(c.lines)
	c.lines = append(c.lines, CartLine{ProductID: product.ID, Quantity: quantity, UnitPrice: product.Price})
	return nil
}

// SetQuantity replaces the line's quantity; zero removes the line
func (c *Cart) SetQuantity(product *domain.Product, quantity int) error {
	if quantity < 0 {
		return ErrInvalidQuantity
	}
	if quantity == 0 {
		c.Remove(product.ID)
		return nil
	}
	if quantity > product.Stock {
		return repository.ErrInsufficientStock
	}

	if i, ok := c.index[product.ID]; ok {
		c.lines[i].Quantity = quantity
		c.lines[i].UnitPrice = product.Price
		return nil
	}

	c.index[product.ID] = len(c.lines)
	c.lines = append(c.lines, CartLine{ProductID: product.ID, Quantity: quantity, UnitPrice: product.Price})
	return nil
}

// Remove drops the line for the product if present
func (c *Cart) Remove(productID uuid.UUID) {
	i, ok := c.index[productID]
	if !ok {
		return
	}
	c.lines = append(c.lines[:i], c.lines[i+1:]...)
	delete(c.index, productID)
	for j := i; j < len(c.lines); j++ {
		c.index[c.lines[j].ProductID] = j
	}
}

// Total is the cart value in the base currency
func (c *Cart) Total() float64 {
	total := 0.0
	for _, line := range c.lines {
		total += line.UnitPrice * float64(line.Quantity)
	}
	return total
}

// Lines returns the cart contents in insertion order
func (c *Cart) Lines() []CartLine {
	out := make([]CartLine, len(c.lines))
	copy(out, c.lines)
	return out
}

// Clear empties the cart
func (c *Cart) Clear() {
	c.lines = nil
	c.index = map[uuid.UUID]int{}
}

// CheckoutService turns a cart into a persisted sale
type CheckoutService interface {
	// Checkout validates the lines against live stock, upserts the
	// customer, snapshots product names, prices and the current exchange
	// rates, and persists everything in one transaction. Stock changed
	// since the cart was built surfaces as ErrInsufficientStock.
	Checkout(ctx context.Context, customerName, notes string, lines []CartLine) (*domain.Sale, error)
}

type checkoutService struct {
	productRepo  repository.ProductRepository
	customerRepo repository.CustomerRepository
	saleRepo     repository.SaleRepository
	currency     CurrencyService
}

// NewCheckoutService creates a new instance of CheckoutService
func NewCheckoutService(
	productRepo repository.ProductRepository,
	customerRepo repository.CustomerRepository,
	saleRepo repository.SaleRepository,
	currency CurrencyService,
) CheckoutService {
	return &checkoutService{
		productRepo:  productRepo,
		customerRepo: customerRepo,
		saleRepo:     saleRepo,
		currency:     currency,
	}
}

func (s *checkoutService) Checkout(ctx context.Context, customerName, notes string, lines []CartLine) (*domain.Sale, error) {
	customerName = strings.TrimSpace(customerName)
	if customerName == "" {
		return nil, ErrMissingCustomer
	}
	if len(lines) == 0 {
		return nil, ErrEmptyCart
	}

	seen := map[uuid.UUID]bool{}
	for _, line := range lines {
		if line.Quantity <= 0 {
			return nil, ErrInvalidQuantity
		}
		if seen[line.ProductID] {
			return nil, ErrDuplicateCartLine
		}
		seen[line.ProductID] = true
	}

	customer, err := s.customerRepo.UpsertByName(ctx, customerName)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert customer: %w", err)
	}

	saleID := uuid.New()
	now := time.Now()

	sale := &domain.Sale{
		ID:           saleID,
		CustomerName: customer.Name,
		Notes:        notes,
		RateUSDCOP:   s.currency.GetRate("COP"),
		RateUSDVES:   s.currency.GetRate("VES"),
		SaleCurrency: domain.BaseCurrency,
		TotalPaid:    0,
		Status:       domain.SaleStatusPending,
		CreatedAt:    now,
	}

	items := make([]*domain.SaleItem, 0, len(lines))
	for _, line := range lines {
		product, err := s.productRepo.FindByID(ctx, line.ProductID)
		if err != nil {
			return nil, fmt.Errorf("failed to load product: %w", err)
		}
		if line.Quantity > product.Stock {
			return nil, repository.ErrInsufficientStock
		}

		productID := product.ID
		subtotal := product.Price * float64(line.Quantity)
		items = append(items, &domain.SaleItem{
			ID:          uuid.New(),
			SaleID:      saleID,
			ProductID:   &productID,
			ProductName: product.Name,
			Quantity:    line.Quantity,
			UnitPrice:   product.Price,
			Subtotal:    subtotal,
		})
		sale.Total += subtotal
	}

	if err := s.saleRepo.CreateWithItems(ctx, sale, items); err != nil {
		return nil, err
	}

	sale.Items = items
	return sale, nil
}
