package database

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestMigrationFilesExist(t *testing.T) {
	migrationsDir := "../../migrations"

	// Check if migrations directory exists
	if _, err := os.Stat(migrationsDir); os.IsNotExist(err) {
		t.Fatal("Migrations directory does not exist")
	}

	// Expected migration files
	expectedMigrations := []string{
		"00001_create_customers_table.sql",
		"00002_create_categories_table.sql",
		"00003_create_products_table.sql",
		"00004_create_sales_table.sql",
		"00005_create_sale_items_table.sql",
		"00006_create_payments_table.sql",
		"00007_create_exchange_rates_table.sql",
		"00008_create_settings_table.sql",
	}

	for _, migration := range expectedMigrations {
		path := filepath.Join(migrationsDir, migration)
		if _, err := os.Stat(path); os.IsNotExist(err) {
			t.Errorf("Migration file %s does not exist", migration)
		}
	}
}

func TestMigrationFilesHaveUpAndDown(t *testing.T) {
	migrationsDir := "../../migrations"

	files, err := os.ReadDir(migrationsDir)
	if err != nil {
		t.Fatalf("Failed to read migrations directory: %v", err)
	}

	sqlFileCount := 0
	for _, file := range files {
		if file.IsDir() || !strings.HasSuffix(file.Name(), ".sql") {
			continue
		}

		sqlFileCount++
		content, err := os.ReadFile(filepath.Join(migrationsDir, file.Name()))
		if err != nil {
			t.Errorf("Failed to read migration file %s: %v", file.Name(), err)
			continue
		}

		contentStr := string(content)

		// Check for goose Up directive
		if !strings.Contains(contentStr, "-- +goose Up") {
			t.Errorf("Migration file %s missing '-- +goose Up' directive", file.Name())
		}

		// Check for goose Down directive
		if !strings.Contains(contentStr, "-- +goose Down") {
			t.Errorf("Migration file %s missing '-- +goose Down' directive", file.Name())
		}

		// Check for StatementBegin/End
		if !strings.Contains(contentStr, "-- +goose StatementBegin") {
			t.Errorf("Migration file %s missing '-- +goose StatementBegin' directive", file.Name())
		}

		if !strings.Contains(contentStr, "-- +goose StatementEnd") {
			t.Errorf("Migration file %s missing '-- +goose StatementEnd' directive", file.Name())
		}
	}

	if sqlFileCount == 0 {
		t.Error("No SQL migration files found")
	}
}

func TestSchemaEnforcesDomainConstraints(t *testing.T) {
	migrationsDir := "../../migrations"

	constraints := []struct {
		file     string
		fragment string
		reason   string
	}{
		{"00001_create_customers_table.sql", "LOWER(name)", "customers dedupe case-insensitively"},
		{"00003_create_products_table.sql", "stock >= 0", "stock can never go negative"},
		{"00003_create_products_table.sql", "ON DELETE SET NULL", "products outlive their category"},
		{"00004_create_sales_table.sql", "'pending', 'partial', 'paid'", "status values are fixed"},
		{"00005_create_sale_items_table.sql", "ON DELETE CASCADE", "items follow their sale"},
		{"00005_create_sale_items_table.sql", "quantity > 0", "line quantities are positive"},
		{"00006_create_payments_table.sql", "amount > 0", "payments are positive"},
		{"00006_create_payments_table.sql", "ON DELETE CASCADE", "payments follow their sale"},
		{"00007_create_exchange_rates_table.sql", "WHERE active", "one active row per currency"},
		{"00008_create_settings_table.sql", "key", "settings are keyed"},
	}

	for _, c := range constraints {
		content, err := os.ReadFile(filepath.Join(migrationsDir, c.file))
		if err != nil {
			t.Errorf("Failed to read %s: %v", c.file, err)
			continue
		}
		if !strings.Contains(string(content), c.fragment) {
			t.Errorf("%s missing %q (%s)", c.file, c.fragment, c.reason)
		}
	}
}
