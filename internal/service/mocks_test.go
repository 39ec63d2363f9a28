package service

import (
	"context"
	"sort"
	"strings"
	"time"

	"tienda-pos/internal/domain"
	"tienda-pos/internal/repository"

	"github.com/google/uuid"
)

// Map-backed repository mocks shared by the service tests

type mockProductRepository struct {
	products map[uuid.UUID]*domain.Product
}

func newMockProductRepository() *mockProductRepository {
	return &mockProductRepository{products: make(map[uuid.UUID]*domain.Product)}
}

func (m *mockProductRepository) Create(ctx context.Context, product *domain.Product) error {
	m.products[product.ID] = product
	return nil
}

func (m *mockProductRepository) Update(ctx context.Context, product *domain.Product) error {
	if _, ok := m.products[product.ID]; !ok {
		return repository.ErrProductNotFound
	}
	m.products[product.ID] = product
	return nil
}

func (m *mockProductRepository) Delete(ctx context.Context, id uuid.UUID) error {
	if _, ok := m.products[id]; !ok {
		return repository.ErrProductNotFound
	}
	delete(m.products, id)
	return nil
}

func (m *mockProductRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	product, ok := m.products[id]
	if !ok {
		return nil, repository.ErrProductNotFound
	}
	copied := *product
	return &copied, nil
}

func (m *mockProductRepository) List(ctx context.Context, categoryID *uuid.UUID, page, pageSize int, sortBy string, sortOrder repository.SortOrder) ([]*domain.Product, int, error) {
	all, _ := m.ListAll(ctx)
	return all, len(all), nil
}

func (m *mockProductRepository) Search(ctx context.Context, query string, page, pageSize int) ([]*domain.Product, int, error) {
	all, _ := m.ListAll(ctx)
	matched := []*domain.Product{}
	for _, product := range all {
		if strings.Contains(strings.ToLower(product.Name), strings.ToLower(query)) {
			matched = append(matched, product)
		}
	}
	return matched, len(matched), nil
}

func (m *mockProductRepository) ListAll(ctx context.Context) ([]*domain.Product, error) {
	all := make([]*domain.Product, 0, len(m.products))
	for _, product := range m.products {
		all = append(all, product)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Name < all[j].Name })
	return all, nil
}

type mockCustomerRepository struct {
	customers map[string]*domain.Customer
}

func newMockCustomerRepository() *mockCustomerRepository {
	return &mockCustomerRepository{customers: make(map[string]*domain.Customer)}
}

func (m *mockCustomerRepository) UpsertByName(ctx context.Context, name string) (*domain.Customer, error) {
	key := strings.ToLower(name)
	if customer, ok := m.customers[key]; ok {
		return customer, nil
	}
	customer := &domain.Customer{ID: uuid.New(), Name: name, CreatedAt: time.Now()}
	m.customers[key] = customer
	return customer, nil
}

func (m *mockCustomerRepository) FindByName(ctx context.Context, name string) (*domain.Customer, error) {
	customer, ok := m.customers[strings.ToLower(name)]
	if !ok {
		return nil, repository.ErrCustomerNotFound
	}
	return customer, nil
}

func (m *mockCustomerRepository) List(ctx context.Context) ([]*domain.Customer, error) {
	all := make([]*domain.Customer, 0, len(m.customers))
	for _, customer := range m.customers {
		all = append(all, customer)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Name < all[j].Name })
	return all, nil
}

// mockSaleRepository stores sales and applies the same transactional
// guarantees as the real one: stock decrements fail atomically.
type mockSaleRepository struct {
	sales    map[uuid.UUID]*domain.Sale
	products *mockProductRepository
}

func newMockSaleRepository(products *mockProductRepository) *mockSaleRepository {
	return &mockSaleRepository{
		sales:    make(map[uuid.UUID]*domain.Sale),
		products: products,
	}
}

func (m *mockSaleRepository) CreateWithItems(ctx context.Context, sale *domain.Sale, items []*domain.SaleItem) error {
	// Validate all decrements before mutating anything
	for _, item := range items {
		if item.ProductID == nil {
			continue
		}
		product, ok := m.products.products[*item.ProductID]
		if !ok || product.Stock < item.Quantity {
			return repository.ErrInsufficientStock
		}
	}

	for _, item := range items {
		if item.ProductID != nil {
			m.products.products[*item.ProductID].Stock -= item.Quantity
		}
	}

	copied := *sale
	copied.Items = items
	m.sales[sale.ID] = &copied
	return nil
}

func (m *mockSaleRepository) List(ctx context.Context, filter repository.SaleFilter, page, pageSize int) ([]*domain.Sale, int, error) {
	all, _ := m.ListAll(ctx)

	filtered := []*domain.Sale{}
	for _, sale := range all {
		if filter.CustomerQuery != "" &&
			!strings.Contains(strings.ToLower(sale.CustomerName), strings.ToLower(filter.CustomerQuery)) {
			continue
		}
		if filter.Status != "" && sale.Status != filter.Status {
			continue
		}
		filtered = append(filtered, sale)
	}

	total := len(filtered)
	start := (page - 1) * pageSize
	if start >= total {
		return []*domain.Sale{}, total, nil
	}
	end := start + pageSize
	if end > total {
		end = total
	}
	return filtered[start:end], total, nil
}

func (m *mockSaleRepository) ListAll(ctx context.Context) ([]*domain.Sale, error) {
	all := make([]*domain.Sale, 0, len(m.sales))
	for _, sale := range m.sales {
		all = append(all, sale)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	return all, nil
}

func (m *mockSaleRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Sale, error) {
	sale, ok := m.sales[id]
	if !ok {
		return nil, repository.ErrSaleNotFound
	}
	return sale, nil
}

func (m *mockSaleRepository) Delete(ctx context.Context, id uuid.UUID) error {
	if _, ok := m.sales[id]; !ok {
		return repository.ErrSaleNotFound
	}
	delete(m.sales, id)
	return nil
}

func (m *mockSaleRepository) ReconcileSettlements(ctx context.Context) (int64, error) {
	var healed int64
	for _, sale := range m.sales {
		paid := 0.0
		for _, payment := range sale.Payments {
			paid += payment.AmountUSD
		}
		if sale.TotalPaid != paid {
			sale.TotalPaid = paid
			sale.Status = domain.DeriveSaleStatus(sale.Total, paid)
			healed++
		}
	}
	return healed, nil
}

// mockPaymentRepository appends payments and settles the owning sale, the
// way the transactional implementation does.
type mockPaymentRepository struct {
	sales *mockSaleRepository
}

func newMockPaymentRepository(sales *mockSaleRepository) *mockPaymentRepository {
	return &mockPaymentRepository{sales: sales}
}

func (m *mockPaymentRepository) Create(ctx context.Context, payment *domain.Payment) error {
	sale, ok := m.sales.sales[payment.SaleID]
	if !ok {
		return repository.ErrSaleNotFound
	}

	sale.Payments = append(sale.Payments, payment)

	paid := 0.0
	for _, p := range sale.Payments {
		paid += p.AmountUSD
	}
	sale.TotalPaid = paid
	sale.Status = domain.DeriveSaleStatus(sale.Total, paid)
	return nil
}

func (m *mockPaymentRepository) ListBySale(ctx context.Context, saleID uuid.UUID) ([]*domain.Payment, error) {
	sale, ok := m.sales.sales[saleID]
	if !ok {
		return nil, repository.ErrSaleNotFound
	}
	return sale.Payments, nil
}

type mockRateRepository struct {
	rates map[string]*domain.ExchangeRate
}

func newMockRateRepository() *mockRateRepository {
	m := &mockRateRepository{rates: make(map[string]*domain.ExchangeRate)}
	for _, rate := range domain.FallbackRates() {
		m.rates[rate.Code] = rate
	}
	return m
}

func (m *mockRateRepository) ListActive(ctx context.Context) ([]*domain.ExchangeRate, error) {
	all := make([]*domain.ExchangeRate, 0, len(m.rates))
	for _, rate := range m.rates {
		all = append(all, rate)
	}
	sort.Slice(all, func(i, j int) bool {
		if (all[i].Code == domain.BaseCurrency) != (all[j].Code == domain.BaseCurrency) {
			return all[i].Code == domain.BaseCurrency
		}
		return all[i].Code < all[j].Code
	})
	return all, nil
}

func (m *mockRateRepository) FindByCode(ctx context.Context, code string) (*domain.ExchangeRate, error) {
	rate, ok := m.rates[code]
	if !ok {
		return nil, repository.ErrRateNotFound
	}
	return rate, nil
}

func (m *mockRateRepository) UpdateRate(ctx context.Context, code string, value float64) error {
	if code == domain.BaseCurrency {
		return repository.ErrBaseRateImmutable
	}
	rate, ok := m.rates[code]
	if !ok {
		return repository.ErrRateNotFound
	}
	rate.Rate = value
	rate.UpdatedAt = time.Now()
	return nil
}

type mockSettingsRepository struct {
	settings map[string]string
}

func newMockSettingsRepository() *mockSettingsRepository {
	return &mockSettingsRepository{settings: make(map[string]string)}
}

func (m *mockSettingsRepository) Get(ctx context.Context, key string) (string, error) {
	value, ok := m.settings[key]
	if !ok {
		return "", repository.ErrSettingNotFound
	}
	return value, nil
}

func (m *mockSettingsRepository) Upsert(ctx context.Context, key, value string) error {
	m.settings[key] = value
	return nil
}
