package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/safar/autoparts-store/internal/database"
	"github.com/safar/autoparts-store/internal/models"
)

// UpdatePaymentStatus records the provider's asynchronous verdict for the
// payment attached to an order. Driven by the webhook handler.
func UpdatePaymentStatus(ctx context.Context, db *sql.DB, orderID int64, status string) (*models.Payment, error) {
	payment := &models.Payment{}

	err := db.QueryRowContext(ctx,
		`UPDATE payments
		 SET status = $1, updated_at = NOW()
		 WHERE order_id = $2
		 RETURNING id, order_id, method, status, created_at, updated_at`,
		status, orderID).Scan(
		&payment.ID,
		&payment.OrderID,
		&payment.Method,
		&payment.Status,
		&payment.CreatedAt,
		&payment.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, database.ErrPaymentNotFound
		}
		return nil, fmt.Errorf("update payment status: %w", err)
	}

	return payment, nil
}
