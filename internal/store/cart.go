package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/safar/autoparts-store/internal/database"
	"github.com/safar/autoparts-store/internal/models"
	"github.com/shopspring/decimal"
)

// Stock checks in this file are advisory: they catch doomed checkouts early
// but the authoritative gate is the locked re-validation in PlaceOrder.

// GetCart returns the user's cart with resolved lines and derived totals,
// lazily creating the cart on first access.
func GetCart(ctx context.Context, db *sql.DB, userID int64) (*models.Cart, error) {
	cart, err := ensureCart(ctx, db, userID)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT ci.id, ci.cart_id, ci.product_id, ci.quantity,
		       p.sku, p.name, p.description, p.price, p.stock_quantity,
		       p.category_id, p.brand_id, c.name, b.name
		FROM cart_items ci
		JOIN products p ON p.id = ci.product_id
		JOIN categories c ON c.id = p.category_id
		JOIN brands b ON b.id = p.brand_id
		WHERE ci.cart_id = $1
		ORDER BY ci.id`

	rows, err := db.QueryContext(ctx, query, cart.ID)
	if err != nil {
		return nil, fmt.Errorf("list cart items: %w", err)
	}
	defer rows.Close()

	cart.Total = decimal.Zero
	for rows.Next() {
		var item models.CartItem
		var product models.Product
		var categoryName, brandName string
		err := rows.Scan(
			&item.ID,
			&item.CartID,
			&item.ProductID,
			&item.Quantity,
			&product.SKU,
			&product.Name,
			&product.Description,
			&product.Price,
			&product.StockQuantity,
			&product.CategoryID,
			&product.BrandID,
			&categoryName,
			&brandName,
		)
		if err != nil {
			return nil, fmt.Errorf("scan cart item: %w", err)
		}
		product.ID = item.ProductID
		product.Category = &models.Category{ID: product.CategoryID, Name: categoryName}
		product.Brand = &models.Brand{ID: product.BrandID, Name: brandName}
		item.Product = &product

		cart.Total = cart.Total.Add(product.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
		cart.TotalItems += item.Quantity
		cart.Items = append(cart.Items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	if cart.Items == nil {
		cart.Items = []models.CartItem{}
	}

	return cart, nil
}

// AddItem merges quantity into an existing line for the same product, so
// the stock check runs against the cumulative quantity, not just the delta.
func AddItem(ctx context.Context, db *sql.DB, userID, productID int64, quantity int) (*models.CartItem, error) {
	if quantity <= 0 {
		return nil, database.ErrInvalidQuantity
	}

	product, err := GetProduct(ctx, db, productID)
	if err != nil {
		return nil, err
	}

	cart, err := ensureCart(ctx, db, userID)
	if err != nil {
		return nil, err
	}

	var itemID int64
	var existing int
	err = db.QueryRowContext(ctx,
		`SELECT id, quantity FROM cart_items WHERE cart_id = $1 AND product_id = $2`,
		cart.ID, productID).Scan(&itemID, &existing)
	if err != nil && err != sql.ErrNoRows {
		return nil, fmt.Errorf("get cart item: %w", err)
	}

	if product.StockQuantity < existing+quantity {
		return nil, &database.InsufficientStockError{
			ProductName: product.Name,
			Available:   product.StockQuantity,
		}
	}

	if itemID == 0 {
		err = db.QueryRowContext(ctx,
			`INSERT INTO cart_items (cart_id, product_id, quantity)
			 VALUES ($1, $2, $3)
			 ON CONFLICT (cart_id, product_id)
			 DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity
			 RETURNING id`,
			cart.ID, productID, quantity).Scan(&itemID)
	} else {
		_, err = db.ExecContext(ctx,
			`UPDATE cart_items SET quantity = quantity + $1 WHERE id = $2`,
			quantity, itemID)
	}
	if err != nil {
		return nil, fmt.Errorf("upsert cart item: %w", err)
	}

	if err := touchCart(ctx, db, cart.ID); err != nil {
		return nil, err
	}

	return getCartItem(ctx, db, itemID)
}

// UpdateItem replaces a line's quantity. Ownership is enforced by joining
// the line to the caller's cart, so a foreign line id reads as not found.
func UpdateItem(ctx context.Context, db *sql.DB, cartItemID, userID int64, quantity int) (*models.CartItem, error) {
	if quantity <= 0 {
		return nil, database.ErrInvalidQuantity
	}

	var cartID int64
	var productName string
	var stock int
	err := db.QueryRowContext(ctx,
		`SELECT ci.cart_id, p.name, p.stock_quantity
		 FROM cart_items ci
		 JOIN carts c ON c.id = ci.cart_id AND c.user_id = $2
		 JOIN products p ON p.id = ci.product_id
		 WHERE ci.id = $1`,
		cartItemID, userID).Scan(&cartID, &productName, &stock)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, database.ErrCartItemNotFound
		}
		return nil, fmt.Errorf("get cart item: %w", err)
	}

	if stock < quantity {
		return nil, &database.InsufficientStockError{ProductName: productName, Available: stock}
	}

	_, err = db.ExecContext(ctx,
		`UPDATE cart_items SET quantity = $1 WHERE id = $2`,
		quantity, cartItemID)
	if err != nil {
		return nil, fmt.Errorf("update cart item: %w", err)
	}

	if err := touchCart(ctx, db, cartID); err != nil {
		return nil, err
	}

	return getCartItem(ctx, db, cartItemID)
}

func RemoveItem(ctx context.Context, db *sql.DB, cartItemID, userID int64) error {
	var cartID int64
	err := db.QueryRowContext(ctx,
		`DELETE FROM cart_items ci
		 USING carts c
		 WHERE ci.id = $1
		   AND c.id = ci.cart_id
		   AND c.user_id = $2
		 RETURNING ci.cart_id`,
		cartItemID, userID).Scan(&cartID)
	if err != nil {
		if err == sql.ErrNoRows {
			return database.ErrCartItemNotFound
		}
		return fmt.Errorf("remove cart item: %w", err)
	}

	return touchCart(ctx, db, cartID)
}

func ClearCart(ctx context.Context, db *sql.DB, userID int64) error {
	var cartID int64
	err := db.QueryRowContext(ctx,
		`SELECT id FROM carts WHERE user_id = $1`, userID).Scan(&cartID)
	if err != nil {
		if err == sql.ErrNoRows {
			return database.ErrCartNotFound
		}
		return fmt.Errorf("get cart: %w", err)
	}

	if _, err := db.ExecContext(ctx,
		`DELETE FROM cart_items WHERE cart_id = $1`, cartID); err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}

	return touchCart(ctx, db, cartID)
}

func ensureCart(ctx context.Context, db *sql.DB, userID int64) (*models.Cart, error) {
	cart := &models.Cart{}

	// Upsert keeps the unique (user_id) invariant even when two requests
	// race to create the first cart.
	err := db.QueryRowContext(ctx,
		`INSERT INTO carts (user_id, updated_at)
		 VALUES ($1, NOW())
		 ON CONFLICT (user_id) DO UPDATE SET user_id = EXCLUDED.user_id
		 RETURNING id, user_id, updated_at`,
		userID).Scan(&cart.ID, &cart.UserID, &cart.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("ensure cart: %w", err)
	}

	return cart, nil
}

func touchCart(ctx context.Context, db *sql.DB, cartID int64) error {
	if _, err := db.ExecContext(ctx,
		`UPDATE carts SET updated_at = NOW() WHERE id = $1`, cartID); err != nil {
		return fmt.Errorf("touch cart: %w", err)
	}
	return nil
}

func getCartItem(ctx context.Context, db *sql.DB, cartItemID int64) (*models.CartItem, error) {
	item := &models.CartItem{}
	product := &models.Product{}
	var categoryName, brandName string

	err := db.QueryRowContext(ctx,
		`SELECT ci.id, ci.cart_id, ci.product_id, ci.quantity,
		        p.sku, p.name, p.description, p.price, p.stock_quantity,
		        p.category_id, p.brand_id, c.name, b.name
		 FROM cart_items ci
		 JOIN products p ON p.id = ci.product_id
		 JOIN categories c ON c.id = p.category_id
		 JOIN brands b ON b.id = p.brand_id
		 WHERE ci.id = $1`,
		cartItemID).Scan(
		&item.ID,
		&item.CartID,
		&item.ProductID,
		&item.Quantity,
		&product.SKU,
		&product.Name,
		&product.Description,
		&product.Price,
		&product.StockQuantity,
		&product.CategoryID,
		&product.BrandID,
		&categoryName,
		&brandName,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, database.ErrCartItemNotFound
		}
		return nil, fmt.Errorf("get cart item: %w", err)
	}

	product.ID = item.ProductID
	product.Category = &models.Category{ID: product.CategoryID, Name: categoryName}
	product.Brand = &models.Brand{ID: product.BrandID, Name: brandName}
	item.Product = product

	return item, nil
}
