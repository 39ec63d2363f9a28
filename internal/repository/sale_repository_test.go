package repository

import (
	"context"
	"database/sql"
	"log"
	"testing"
	"time"

	"tienda-pos/internal/database"
	"tienda-pos/internal/domain"

	"github.com/google/uuid"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"

	_ "github.com/jackc/pgx/v5/stdlib"
)

var testDB *sql.DB

func setupTestDB() (func(context.Context, ...testcontainers.TerminateOption) error, error) {
	var (
		dbName = "testdb"
		dbPwd  = "password"
		dbUser = "user"
	)

	dbContainer, err := postgres.Run(
		context.Background(),
		"postgres:15",
		postgres.WithDatabase(dbName),
		postgres.WithUsername(dbUser),
		postgres.WithPassword(dbPwd),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(5*time.Second)),
	)
	if err != nil {
		return nil, err
	}

	dbHost, err := dbContainer.Host(context.Background())
	if err != nil {
		return dbContainer.Terminate, err
	}

	dbPort, err := dbContainer.MappedPort(context.Background(), "5432/tcp")
	if err != nil {
		return dbContainer.Terminate, err
	}

	connStr := "postgres://" + dbUser + ":" + dbPwd + "@" + dbHost + ":" + dbPort.Port() + "/" + dbName + "?sslmode=disable"
	testDB, err = sql.Open("pgx", connStr)
	if err != nil {
		return dbContainer.Terminate, err
	}

	if err := database.RunMigrations(testDB, "../../migrations", zap.NewNop()); err != nil {
		return dbContainer.Terminate, err
	}

	return dbContainer.Terminate, nil
}

func TestMain(m *testing.M) {
	teardown, err := setupTestDB()
	if err != nil {
		log.Fatalf("could not start postgres container: %v", err)
	}

	m.Run()

	if teardown != nil {
		if err := teardown(context.Background()); err != nil {
			log.Fatalf("could not teardown postgres container: %v", err)
		}
	}
}

func createTestProduct(t *testing.T, stock int) *domain.Product {
	t.Helper()

	repo := NewProductRepository(testDB)
	product := &domain.Product{
		ID:        uuid.New(),
		Name:      "test-" + uuid.NewString(),
		Price:     2.5,
		Stock:     stock,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	if err := repo.Create(context.Background(), product); err != nil {
		t.Fatalf("failed to create product: %v", err)
	}
	return product
}

func buildSale(customer string) *domain.Sale {
	return &domain.Sale{
		ID:           uuid.New(),
		CustomerName: customer,
		RateUSDCOP:   4150,
		RateUSDVES:   52,
		SaleCurrency: domain.BaseCurrency,
		Status:       domain.SaleStatusPending,
		CreatedAt:    time.Now(),
	}
}

func buildItem(sale *domain.Sale, product *domain.Product, quantity int) *domain.SaleItem {
	productID := product.ID
	return &domain.SaleItem{
		ID:          uuid.New(),
		SaleID:      sale.ID,
		ProductID:   &productID,
		ProductName: product.Name,
		Quantity:    quantity,
		UnitPrice:   product.Price,
		Subtotal:    product.Price * float64(quantity),
	}
}

func TestCreateWithItemsDecrementsStock(t *testing.T) {
	ctx := context.Background()
	saleRepo := NewSaleRepository(testDB)
	productRepo := NewProductRepository(testDB)

	product := createTestProduct(t, 10)

	sale := buildSale("Ana")
	item := buildItem(sale, product, 4)
	sale.Total = item.Subtotal

	if err := saleRepo.CreateWithItems(ctx, sale, []*domain.SaleItem{item}); err != nil {
		t.Fatalf("checkout failed: %v", err)
	}

	stored, err := productRepo.FindByID(ctx, product.ID)
	if err != nil {
		t.Fatalf("failed to reload product: %v", err)
	}
	if stored.Stock != 6 {
		t.Errorf("stock = %d, want 6", stored.Stock)
	}

	loaded, err := saleRepo.FindByID(ctx, sale.ID)
	if err != nil {
		t.Fatalf("failed to reload sale: %v", err)
	}
	if len(loaded.Items) != 1 || loaded.Items[0].ProductName != product.Name {
		t.Errorf("unexpected items: %+v", loaded.Items)
	}
}

func TestCreateWithItemsRollsBackOnInsufficientStock(t *testing.T) {
	ctx := context.Background()
	saleRepo := NewSaleRepository(testDB)
	productRepo := NewProductRepository(testDB)

	plenty := createTestProduct(t, 10)
	scarce := createTestProduct(t, 1)

	sale := buildSale("Luis")
	items := []*domain.SaleItem{
		buildItem(sale, plenty, 5),
		buildItem(sale, scarce, 2),
	}

	err := saleRepo.CreateWithItems(ctx, sale, items)
	if err != ErrInsufficientStock {
		t.Fatalf("error = %v, want ErrInsufficientStock", err)
	}

	// Nothing was persisted, including the first item's decrement
	if _, err := saleRepo.FindByID(ctx, sale.ID); err != ErrSaleNotFound {
		t.Errorf("sale lookup error = %v, want ErrSaleNotFound", err)
	}
	stored, _ := productRepo.FindByID(ctx, plenty.ID)
	if stored.Stock != 10 {
		t.Errorf("stock after rollback = %d, want 10", stored.Stock)
	}
}

func TestPaymentCreateSettlesSaleAtomically(t *testing.T) {
	ctx := context.Background()
	saleRepo := NewSaleRepository(testDB)
	paymentRepo := NewPaymentRepository(testDB)

	product := createTestProduct(t, 5)
	sale := buildSale("Maria")
	item := buildItem(sale, product, 4)
	sale.Total = item.Subtotal // 10.00

	if err := saleRepo.CreateWithItems(ctx, sale, []*domain.SaleItem{item}); err != nil {
		t.Fatalf("checkout failed: %v", err)
	}

	payment := &domain.Payment{
		ID:            uuid.New(),
		SaleID:        sale.ID,
		Amount:        41500,
		Currency:      "COP",
		RateAtPayment: 4150,
		AmountUSD:     10,
		Method:        "cash",
		CreatedAt:     time.Now(),
	}
	if err := paymentRepo.Create(ctx, payment); err != nil {
		t.Fatalf("payment failed: %v", err)
	}

	loaded, err := saleRepo.FindByID(ctx, sale.ID)
	if err != nil {
		t.Fatalf("failed to reload sale: %v", err)
	}
	if loaded.Status != domain.SaleStatusPaid {
		t.Errorf("status = %s, want paid", loaded.Status)
	}
	if loaded.TotalPaid != 10 {
		t.Errorf("total paid = %v, want 10", loaded.TotalPaid)
	}
	if len(loaded.Payments) != 1 || loaded.Payments[0].Currency != "COP" {
		t.Errorf("unexpected payments: %+v", loaded.Payments)
	}
}

func TestReconcileSettlementsHealsDrift(t *testing.T) {
	ctx := context.Background()
	saleRepo := NewSaleRepository(testDB)

	product := createTestProduct(t, 5)
	sale := buildSale("Pedro")
	item := buildItem(sale, product, 2)
	sale.Total = item.Subtotal

	if err := saleRepo.CreateWithItems(ctx, sale, []*domain.SaleItem{item}); err != nil {
		t.Fatalf("checkout failed: %v", err)
	}

	// Insert a payment behind the repository's back so the stored
	// settlement fields drift from the payment log.
	_, err := testDB.Exec(`
		INSERT INTO payments (id, sale_id, amount, currency, rate_at_payment, amount_usd, method, created_at)
		VALUES ($1, $2, $3, 'USD', 1, $3, 'cash', NOW())
	`, uuid.New(), sale.ID, sale.Total)
	if err != nil {
		t.Fatalf("failed to insert drifted payment: %v", err)
	}

	healed, err := saleRepo.ReconcileSettlements(ctx)
	if err != nil {
		t.Fatalf("reconcile failed: %v", err)
	}
	if healed < 1 {
		t.Errorf("healed = %d, want at least 1", healed)
	}

	loaded, _ := saleRepo.FindByID(ctx, sale.ID)
	if loaded.Status != domain.SaleStatusPaid || loaded.TotalPaid != sale.Total {
		t.Errorf("sale not healed: status=%s paid=%v", loaded.Status, loaded.TotalPaid)
	}
}

func TestCustomerUpsertIsCaseInsensitive(t *testing.T) {
	ctx := context.Background()
	repo := NewCustomerRepository(testDB)

	name := "Upsert-" + uuid.NewString()

	first, err := repo.UpsertByName(ctx, name)
	if err != nil {
		t.Fatalf("first upsert failed: %v", err)
	}

	second, err := repo.UpsertByName(ctx, "UPSERT-"+name[len("Upsert-"):])
	if err != nil {
		t.Fatalf("second upsert failed: %v", err)
	}

	if first.ID != second.ID {
		t.Errorf("upsert created a duplicate customer: %s vs %s", first.ID, second.ID)
	}
	if second.Name != first.Name {
		t.Errorf("surviving name = %q, want %q", second.Name, first.Name)
	}
}
