package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/safar/autoparts-store/internal/database"
	"github.com/safar/autoparts-store/internal/models"
	"github.com/shopspring/decimal"
)

// querier is satisfied by both *sql.DB and *sql.Tx so order
// materialization can run inside or outside a transaction.
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

type Caller struct {
	UserID int64
	Role   string
}

func (c Caller) IsAdmin() bool { return c.Role == models.RoleAdmin }

type OrderFilters struct {
	Status   string
	UserID   int64
	DateFrom *time.Time
	DateTo   *time.Time
}

func generateOrderNumber() string {
	return fmt.Sprintf("ORD-%s", uuid.NewString())
}

type cartLine struct {
	productID   int64
	quantity    int
	productName string
	unitPrice   decimal.Decimal
	stock       int
}

// PlaceOrder converts the user's cart into a committed order atomically.
//
// Everything runs in one serializable transaction: the cart lines and their
// products are read with the product rows locked, all stock is validated
// before any mutation, and the order, its item snapshots, the pending
// payment, the stock decrements and the cart sweep commit together or not
// at all. A failure at any step leaves the cart and stock untouched.
func PlaceOrder(ctx context.Context, db *sql.DB, userID int64, shippingAddress, paymentMethod string) (*models.Order, error) {
	var order *models.Order

	err := database.WithRetry(ctx, db, database.SerializableTxOptions(), func(tx *sql.Tx) error {
		var cartID int64
		err := tx.QueryRowContext(ctx,
			`SELECT id FROM carts WHERE user_id = $1`, userID).Scan(&cartID)
		if err != nil {
			if err == sql.ErrNoRows {
				return database.ErrEmptyCart
			}
			return fmt.Errorf("get cart: %w", err)
		}

		lines, err := lockCartLines(ctx, tx, cartID)
		if err != nil {
			return err
		}
		if len(lines) == 0 {
			return database.ErrEmptyCart
		}

		// Validate every line before mutating anything.
		for _, line := range lines {
			if line.stock < line.quantity {
				return &database.InsufficientStockError{
					ProductName: line.productName,
					Available:   line.stock,
				}
			}
		}

		total := decimal.Zero
		for _, line := range lines {
			total = total.Add(line.unitPrice.Mul(decimal.NewFromInt(int64(line.quantity))))
		}
		total = total.Round(2)

		var orderID int64
		err = tx.QueryRowContext(ctx,
			`INSERT INTO orders (user_id, order_number, status, total, shipping_address, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
			 RETURNING id`,
			userID, generateOrderNumber(), models.OrderStatusPending, total, shippingAddress).Scan(&orderID)
		if err != nil {
			return fmt.Errorf("create order: %w", err)
		}

		for _, line := range lines {
			subtotal := line.unitPrice.Mul(decimal.NewFromInt(int64(line.quantity)))
			_, err = tx.ExecContext(ctx,
				`INSERT INTO order_items (order_id, product_id, quantity, unit_price, subtotal, created_at)
				 VALUES ($1, $2, $3, $4, $5, NOW())`,
				orderID, line.productID, line.quantity, line.unitPrice, subtotal)
			if err != nil {
				return fmt.Errorf("create order item: %w", err)
			}

			if err := DecrementStock(ctx, tx, line.productID, line.quantity); err != nil {
				return err
			}
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO payments (order_id, method, status, created_at, updated_at)
			 VALUES ($1, $2, $3, NOW(), NOW())`,
			orderID, paymentMethod, models.PaymentStatusPending)
		if err != nil {
			return fmt.Errorf("create payment: %w", err)
		}

		if _, err = tx.ExecContext(ctx,
			`DELETE FROM cart_items WHERE cart_id = $1`, cartID); err != nil {
			return fmt.Errorf("empty cart: %w", err)
		}
		if _, err = tx.ExecContext(ctx,
			`UPDATE carts SET updated_at = NOW() WHERE id = $1`, cartID); err != nil {
			return fmt.Errorf("touch cart: %w", err)
		}

		order, err = materializeOrder(ctx, tx, orderID)
		return err
	})

	if err != nil {
		return nil, err
	}

	return order, nil
}

// lockCartLines reads the cart's lines together with each product's current
// price and stock, taking row locks on the products. Locking in product-id
// order keeps concurrent checkouts from deadlocking on each other.
func lockCartLines(ctx context.Context, tx *sql.Tx, cartID int64) ([]cartLine, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT ci.product_id, ci.quantity, p.name, p.price, p.stock_quantity
		 FROM cart_items ci
		 JOIN products p ON p.id = ci.product_id
		 WHERE ci.cart_id = $1
		 ORDER BY ci.product_id
		 FOR UPDATE OF p`,
		cartID)
	if err != nil {
		return nil, fmt.Errorf("lock cart lines: %w", err)
	}
	defer rows.Close()

	var lines []cartLine
	for rows.Next() {
		var line cartLine
		if err := rows.Scan(&line.productID, &line.quantity, &line.productName, &line.unitPrice, &line.stock); err != nil {
			return nil, fmt.Errorf("scan cart line: %w", err)
		}
		lines = append(lines, line)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return lines, nil
}

// GetOrder fetches an order with items and payment. Non-admin callers are
// scoped to their own orders in the query itself, so a foreign order id
// reads as not found rather than leaking its existence.
func GetOrder(ctx context.Context, db *sql.DB, orderID int64, caller Caller) (*models.Order, error) {
	query := `
		SELECT id FROM orders WHERE id = $1`
	args := []any{orderID}
	if !caller.IsAdmin() {
		query += ` AND user_id = $2`
		args = append(args, caller.UserID)
	}

	var id int64
	if err := db.QueryRowContext(ctx, query, args...).Scan(&id); err != nil {
		if err == sql.ErrNoRows {
			return nil, database.ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}

	return materializeOrder(ctx, db, id)
}

// ListOrders returns a page of orders, newest first. Non-admin callers see
// only their own orders no matter what filters they supply; admins may
// filter by user, status and creation-date range.
func ListOrders(ctx context.Context, db *sql.DB, caller Caller, page, pageSize int, filters OrderFilters) (*OffsetPage, error) {
	where := "WHERE 1=1"
	var args []any

	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if caller.IsAdmin() {
		if filters.UserID != 0 {
			where += " AND o.user_id = " + arg(filters.UserID)
		}
	} else {
		where += " AND o.user_id = " + arg(caller.UserID)
	}
	if filters.Status != "" {
		where += " AND o.status = " + arg(filters.Status)
	}
	if filters.DateFrom != nil {
		where += " AND o.created_at >= " + arg(*filters.DateFrom)
	}
	if filters.DateTo != nil {
		where += " AND o.created_at <= " + arg(*filters.DateTo)
	}

	var total int64
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM orders o `+where, args...).Scan(&total)
	if err != nil {
		return nil, fmt.Errorf("count orders: %w", err)
	}

	query := `
		SELECT o.id, o.user_id, o.order_number, o.status, o.total, o.shipping_address,
		       o.created_at, o.updated_at, p.method, p.status
		FROM orders o
		LEFT JOIN payments p ON p.order_id = o.id
		` + where + `
		ORDER BY o.created_at DESC, o.id DESC
		LIMIT ` + arg(pageSize) + ` OFFSET ` + arg((page-1)*pageSize)

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	var orders []models.Order
	for rows.Next() {
		var order models.Order
		var method, status sql.NullString
		err := rows.Scan(
			&order.ID,
			&order.UserID,
			&order.OrderNumber,
			&order.Status,
			&order.Total,
			&order.ShippingAddress,
			&order.CreatedAt,
			&order.UpdatedAt,
			&method,
			&status,
		)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		if method.Valid {
			order.Payment = &models.Payment{OrderID: order.ID, Method: method.String, Status: status.String}
		}
		orders = append(orders, order)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return newOffsetPage(orders, total, page, pageSize), nil
}

// ListUserOrdersCursor pages through a user's own order history with a
// keyset cursor, for clients that scroll rather than jump to a page.
func ListUserOrdersCursor(ctx context.Context, db *sql.DB, userID int64, cursor string, limit int) (*CursorPage, error) {
	cursorData, err := DecodeCursor(cursor)
	if err != nil {
		return nil, fmt.Errorf("decode cursor: %w", err)
	}

	query := `
		SELECT id, user_id, order_number, status, total, shipping_address, created_at, updated_at
		FROM orders
		WHERE user_id = $1
		  AND (created_at, id) < ($2, $3)
		ORDER BY created_at DESC, id DESC
		LIMIT $4`

	rows, err := db.QueryContext(ctx, query, userID, cursorData.CreatedAt, cursorData.ID, limit+1)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	var orders []models.Order
	for rows.Next() {
		var order models.Order
		err := rows.Scan(
			&order.ID,
			&order.UserID,
			&order.OrderNumber,
			&order.Status,
			&order.Total,
			&order.ShippingAddress,
			&order.CreatedAt,
			&order.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, order)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	hasMore := len(orders) > limit
	if hasMore {
		orders = orders[:limit]
	}

	var nextCursor string
	if hasMore && len(orders) > 0 {
		lastOrder := orders[len(orders)-1]
		nextCursor = EncodeCursor(OrderCursor{
			CreatedAt: lastOrder.CreatedAt,
			ID:        lastOrder.ID,
		})
	}

	return &CursorPage{
		Items:      orders,
		NextCursor: nextCursor,
		HasMore:    hasMore,
	}, nil
}

// UpdateOrderStatus applies a status transition from the fixed graph and
// returns the order along with the status it held before the write, read
// under the same row lock. Cancellation restores each item's quantity to
// its product's stock inside the same transaction as the status write, so
// a cancelled-but-unrestocked state is never observable. Terminal states
// reject further transitions, which also rules out double restitution.
func UpdateOrderStatus(ctx context.Context, db *sql.DB, orderID int64, newStatus string) (*models.Order, string, error) {
	if !models.IsOrderStatus(newStatus) {
		return nil, "", database.ErrInvalidTransition
	}

	var order *models.Order
	var prevStatus string

	err := database.WithRetry(ctx, db, database.SerializableTxOptions(), func(tx *sql.Tx) error {
		var current string
		err := tx.QueryRowContext(ctx,
			`SELECT status FROM orders WHERE id = $1 FOR UPDATE`, orderID).Scan(&current)
		if err != nil {
			if err == sql.ErrNoRows {
				return database.ErrOrderNotFound
			}
			return fmt.Errorf("lock order: %w", err)
		}

		if !models.CanTransition(current, newStatus) {
			return fmt.Errorf("%w: %s -> %s", database.ErrInvalidTransition, current, newStatus)
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE orders SET status = $1, updated_at = NOW() WHERE id = $2`,
			newStatus, orderID); err != nil {
			return fmt.Errorf("update order status: %w", err)
		}

		if newStatus == models.OrderStatusCancelled {
			if err := restockOrderItems(ctx, tx, orderID); err != nil {
				return err
			}
		}

		prevStatus = current
		order, err = materializeOrder(ctx, tx, orderID)
		return err
	})

	if err != nil {
		return nil, "", err
	}

	return order, prevStatus, nil
}

func restockOrderItems(ctx context.Context, tx *sql.Tx, orderID int64) error {
	rows, err := tx.QueryContext(ctx,
		`SELECT product_id, quantity FROM order_items WHERE order_id = $1 ORDER BY product_id`,
		orderID)
	if err != nil {
		return fmt.Errorf("list order items: %w", err)
	}
	defer rows.Close()

	type restock struct {
		productID int64
		quantity  int
	}
	var restocks []restock
	for rows.Next() {
		var r restock
		if err := rows.Scan(&r.productID, &r.quantity); err != nil {
			return fmt.Errorf("scan order item: %w", err)
		}
		restocks = append(restocks, r)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("rows error: %w", err)
	}

	for _, r := range restocks {
		if err := IncrementStock(ctx, tx, r.productID, r.quantity); err != nil {
			return err
		}
	}

	return nil
}

type StatusCount struct {
	Status string          `json:"status"`
	Count  int64           `json:"count"`
	Total  decimal.Decimal `json:"total"`
}

type OrderStats struct {
	ByStatus     []StatusCount   `json:"by_status"`
	TotalOrders  int64           `json:"total_orders"`
	TotalRevenue decimal.Decimal `json:"total_revenue"`
}

func GetOrderStats(ctx context.Context, db *sql.DB) (*OrderStats, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT status, COUNT(*), COALESCE(SUM(total), 0)
		 FROM orders
		 GROUP BY status
		 ORDER BY status`)
	if err != nil {
		return nil, fmt.Errorf("order stats: %w", err)
	}
	defer rows.Close()

	stats := &OrderStats{TotalRevenue: decimal.Zero}
	for rows.Next() {
		var sc StatusCount
		if err := rows.Scan(&sc.Status, &sc.Count, &sc.Total); err != nil {
			return nil, fmt.Errorf("scan stats: %w", err)
		}
		stats.ByStatus = append(stats.ByStatus, sc)
		stats.TotalOrders += sc.Count
		stats.TotalRevenue = stats.TotalRevenue.Add(sc.Total)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return stats, nil
}

func materializeOrder(ctx context.Context, q querier, orderID int64) (*models.Order, error) {
	order := &models.Order{}

	err := q.QueryRowContext(ctx,
		`SELECT id, user_id, order_number, status, total, shipping_address, created_at, updated_at
		 FROM orders WHERE id = $1`,
		orderID).Scan(
		&order.ID,
		&order.UserID,
		&order.OrderNumber,
		&order.Status,
		&order.Total,
		&order.ShippingAddress,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, database.ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}

	rows, err := q.QueryContext(ctx,
		`SELECT id, order_id, product_id, quantity, unit_price, subtotal, created_at
		 FROM order_items
		 WHERE order_id = $1
		 ORDER BY id`,
		orderID)
	if err != nil {
		return nil, fmt.Errorf("get order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var item models.OrderItem
		err := rows.Scan(
			&item.ID,
			&item.OrderID,
			&item.ProductID,
			&item.Quantity,
			&item.UnitPrice,
			&item.Subtotal,
			&item.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		order.Items = append(order.Items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	payment := &models.Payment{}
	err = q.QueryRowContext(ctx,
		`SELECT id, order_id, method, status, created_at, updated_at
		 FROM payments WHERE order_id = $1`,
		orderID).Scan(
		&payment.ID,
		&payment.OrderID,
		&payment.Method,
		&payment.Status,
		&payment.CreatedAt,
		&payment.UpdatedAt,
	)
	if err != nil && err != sql.ErrNoRows {
		return nil, fmt.Errorf("get payment: %w", err)
	}
	if err == nil {
		order.Payment = payment
	}

	return order, nil
}
