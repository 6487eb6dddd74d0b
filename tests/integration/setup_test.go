package integration

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/safar/autoparts-store/internal/database"
	"github.com/safar/autoparts-store/internal/models"
	"github.com/safar/autoparts-store/internal/store"
)

func setupTestDB(t *testing.T) (*sql.DB, func()) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:14-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "testuser",
			"POSTGRES_PASSWORD": "testpass",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	postgres, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start postgres container: %v", err)
	}

	host, err := postgres.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := postgres.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	dsn := fmt.Sprintf("postgres://testuser:testpass@%s:%s/testdb?sslmode=disable", host, port.Port())

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		t.Fatalf("Failed to connect to database: %v", err)
	}

	if err := db.Ping(); err != nil {
		t.Fatalf("Failed to ping database: %v", err)
	}

	if err := database.MigrateUp(db, "../../migrations"); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	cleanup := func() {
		if err := db.Close(); err != nil {
			t.Logf("Failed to close database: %v", err)
		}
		if err := postgres.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate container: %v", err)
		}
	}

	return db, cleanup
}

func createTestUser(t *testing.T, db *sql.DB, email string) *models.User {
	user, err := store.CreateUser(context.Background(), db, email, "Test User", "")
	if err != nil {
		t.Fatalf("Failed to create user: %v", err)
	}
	return user
}

// seedCatalog creates one category and one brand for product fixtures.
func seedCatalog(t *testing.T, db *sql.DB) (categoryID, brandID int64) {
	err := db.QueryRow(
		`INSERT INTO categories (name) VALUES ('Filtros') ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name RETURNING id`,
	).Scan(&categoryID)
	if err != nil {
		t.Fatalf("Failed to seed category: %v", err)
	}

	err = db.QueryRow(
		`INSERT INTO brands (name) VALUES ('Bosch') ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name RETURNING id`,
	).Scan(&brandID)
	if err != nil {
		t.Fatalf("Failed to seed brand: %v", err)
	}

	return categoryID, brandID
}

func createTestProduct(t *testing.T, db *sql.DB, sku, name string, price decimal.Decimal, stock int) *models.Product {
	categoryID, brandID := seedCatalog(t, db)

	product, err := store.CreateProduct(context.Background(), db, sku, name, "", price, stock, categoryID, brandID)
	if err != nil {
		t.Fatalf("Failed to create product: %v", err)
	}
	return product
}

func currentStock(t *testing.T, db *sql.DB, productID int64) int {
	var stock int
	if err := db.QueryRow(
		`SELECT stock_quantity FROM products WHERE id = $1`, productID).Scan(&stock); err != nil {
		t.Fatalf("Failed to read stock: %v", err)
	}
	return stock
}
