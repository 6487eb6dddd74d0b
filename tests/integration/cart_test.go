package integration

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/safar/autoparts-store/internal/database"
	"github.com/safar/autoparts-store/internal/store"
)

func TestGetCartLazilyCreates(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	user := createTestUser(t, db, "cart-lazy@example.com")

	cart, err := store.GetCart(ctx, db, user.ID)
	if err != nil {
		t.Fatalf("Failed to get cart: %v", err)
	}

	if cart.UserID != user.ID {
		t.Errorf("Expected cart for user %d, got %d", user.ID, cart.UserID)
	}
	if len(cart.Items) != 0 {
		t.Errorf("Expected empty cart, got %d items", len(cart.Items))
	}
	if !cart.Total.IsZero() {
		t.Errorf("Expected zero total, got %s", cart.Total)
	}

	again, err := store.GetCart(ctx, db, user.ID)
	if err != nil {
		t.Fatalf("Failed to get cart again: %v", err)
	}
	if again.ID != cart.ID {
		t.Errorf("Expected same cart %d on second access, got %d", cart.ID, again.ID)
	}
}

func TestAddItemMergesQuantities(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	user := createTestUser(t, db, "cart-merge@example.com")
	product := createTestProduct(t, db, "FIL-001", "Filtro de aceite", decimal.NewFromInt(3500), 10)

	if _, err := store.AddItem(ctx, db, user.ID, product.ID, 2); err != nil {
		t.Fatalf("Failed to add item: %v", err)
	}
	item, err := store.AddItem(ctx, db, user.ID, product.ID, 3)
	if err != nil {
		t.Fatalf("Failed to add item again: %v", err)
	}

	if item.Quantity != 5 {
		t.Errorf("Expected merged quantity 5, got %d", item.Quantity)
	}

	cart, err := store.GetCart(ctx, db, user.ID)
	if err != nil {
		t.Fatalf("Failed to get cart: %v", err)
	}
	if len(cart.Items) != 1 {
		t.Fatalf("Expected a single merged line, got %d", len(cart.Items))
	}
	if !cart.Total.Equal(decimal.NewFromInt(17500)) {
		t.Errorf("Expected total 17500, got %s", cart.Total)
	}
	if cart.TotalItems != 5 {
		t.Errorf("Expected 5 total items, got %d", cart.TotalItems)
	}
}

func TestAddItemCumulativeStockCheck(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	user := createTestUser(t, db, "cart-stock@example.com")
	product := createTestProduct(t, db, "FIL-002", "Filtro de aire", decimal.NewFromInt(2800), 5)

	if _, err := store.AddItem(ctx, db, user.ID, product.ID, 4); err != nil {
		t.Fatalf("Failed to add item: %v", err)
	}

	// 4 already in the cart, 2 more would exceed the 5 in stock.
	_, err := store.AddItem(ctx, db, user.ID, product.ID, 2)
	if !errors.Is(err, database.ErrInsufficientStock) {
		t.Fatalf("Expected insufficient stock error, got %v", err)
	}

	var stockErr *database.InsufficientStockError
	if !errors.As(err, &stockErr) {
		t.Fatalf("Expected detailed stock error, got %v", err)
	}
	if stockErr.Available != 5 {
		t.Errorf("Expected available 5, got %d", stockErr.Available)
	}

	cart, err := store.GetCart(ctx, db, user.ID)
	if err != nil {
		t.Fatalf("Failed to get cart: %v", err)
	}
	if cart.Items[0].Quantity != 4 {
		t.Errorf("Expected quantity unchanged at 4, got %d", cart.Items[0].Quantity)
	}
}

func TestAddItemValidation(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	user := createTestUser(t, db, "cart-validate@example.com")
	product := createTestProduct(t, db, "FIL-003", "Filtro de nafta", decimal.NewFromInt(1900), 5)

	if _, err := store.AddItem(ctx, db, user.ID, product.ID, 0); !errors.Is(err, database.ErrInvalidQuantity) {
		t.Errorf("Expected invalid quantity error, got %v", err)
	}
	if _, err := store.AddItem(ctx, db, user.ID, product.ID, -1); !errors.Is(err, database.ErrInvalidQuantity) {
		t.Errorf("Expected invalid quantity error, got %v", err)
	}
	if _, err := store.AddItem(ctx, db, user.ID, 99999, 1); !errors.Is(err, database.ErrProductNotFound) {
		t.Errorf("Expected product not found, got %v", err)
	}
}

func TestUpdateItemEnforcesOwnership(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	owner := createTestUser(t, db, "cart-owner@example.com")
	other := createTestUser(t, db, "cart-other@example.com")
	product := createTestProduct(t, db, "BUJ-001", "Bujía NGK", decimal.NewFromInt(1200), 10)

	item, err := store.AddItem(ctx, db, owner.ID, product.ID, 1)
	if err != nil {
		t.Fatalf("Failed to add item: %v", err)
	}

	if _, err := store.UpdateItem(ctx, db, item.ID, other.ID, 3); !errors.Is(err, database.ErrCartItemNotFound) {
		t.Errorf("Expected not found for foreign caller, got %v", err)
	}
	if err := store.RemoveItem(ctx, db, item.ID, other.ID); !errors.Is(err, database.ErrCartItemNotFound) {
		t.Errorf("Expected not found for foreign caller, got %v", err)
	}

	updated, err := store.UpdateItem(ctx, db, item.ID, owner.ID, 3)
	if err != nil {
		t.Fatalf("Failed to update own item: %v", err)
	}
	if updated.Quantity != 3 {
		t.Errorf("Expected quantity 3, got %d", updated.Quantity)
	}
}

func TestUpdateItemStockCheck(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	user := createTestUser(t, db, "cart-update-stock@example.com")
	product := createTestProduct(t, db, "BUJ-002", "Bujía Champion", decimal.NewFromInt(950), 3)

	item, err := store.AddItem(ctx, db, user.ID, product.ID, 1)
	if err != nil {
		t.Fatalf("Failed to add item: %v", err)
	}

	if _, err := store.UpdateItem(ctx, db, item.ID, user.ID, 4); !errors.Is(err, database.ErrInsufficientStock) {
		t.Errorf("Expected insufficient stock error, got %v", err)
	}
}

func TestRemoveAndClearCart(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	user := createTestUser(t, db, "cart-clear@example.com")
	filter := createTestProduct(t, db, "FIL-004", "Filtro de aceite", decimal.NewFromInt(3500), 10)
	plug := createTestProduct(t, db, "BUJ-003", "Bujía NGK", decimal.NewFromInt(1200), 10)

	item, err := store.AddItem(ctx, db, user.ID, filter.ID, 1)
	if err != nil {
		t.Fatalf("Failed to add item: %v", err)
	}
	if _, err := store.AddItem(ctx, db, user.ID, plug.ID, 2); err != nil {
		t.Fatalf("Failed to add item: %v", err)
	}

	if err := store.RemoveItem(ctx, db, item.ID, user.ID); err != nil {
		t.Fatalf("Failed to remove item: %v", err)
	}

	cart, err := store.GetCart(ctx, db, user.ID)
	if err != nil {
		t.Fatalf("Failed to get cart: %v", err)
	}
	if len(cart.Items) != 1 {
		t.Fatalf("Expected 1 remaining line, got %d", len(cart.Items))
	}

	if err := store.ClearCart(ctx, db, user.ID); err != nil {
		t.Fatalf("Failed to clear cart: %v", err)
	}

	cart, err = store.GetCart(ctx, db, user.ID)
	if err != nil {
		t.Fatalf("Failed to get cart: %v", err)
	}
	if len(cart.Items) != 0 {
		t.Errorf("Expected empty cart after clear, got %d items", len(cart.Items))
	}
}
