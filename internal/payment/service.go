package payment

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/safar/autoparts-store/internal/models"
	"github.com/safar/autoparts-store/internal/store"
)

var (
	ErrNoItems      = errors.New("no items to pay for")
	ErrBadWebhook   = errors.New("malformed webhook event")
	ErrUnknownEvent = errors.New("unhandled webhook event type")
)

// Service fronts the payment provider. It never touches stock or carts:
// preference creation is a pass-through for a total the caller already
// computed, and the webhook path only updates the Payment row.
type Service struct {
	db     *sql.DB
	client Client
}

func NewService(db *sql.DB, client Client) *Service {
	return &Service{db: db, client: client}
}

func (s *Service) CreatePreference(ctx context.Context, req PreferenceRequest) (*Preference, error) {
	if len(req.Items) == 0 {
		return nil, ErrNoItems
	}
	return s.client.CreatePreference(ctx, req)
}

// WebhookEvent is the provider's asynchronous notification payload.
// ExternalReference carries the order id the preference was created with.
type WebhookEvent struct {
	ID                string `json:"id"`
	Status            string `json:"status"`
	ExternalReference string `json:"external_reference"`
}

var providerStatus = map[string]string{
	"approved":     models.PaymentStatusApproved,
	"rejected":     models.PaymentStatusRejected,
	"cancelled":    models.PaymentStatusRejected,
	"pending":      models.PaymentStatusPending,
	"in_process":   models.PaymentStatusPending,
	"in_mediation": models.PaymentStatusPending,
}

// HandleWebhook reconciles the Payment row with the provider's verdict.
// Only "payment" events are persisted; other event types are acknowledged
// without side effects.
func (s *Service) HandleWebhook(ctx context.Context, eventType string, event WebhookEvent) (*models.Payment, error) {
	if eventType != "payment" {
		return nil, ErrUnknownEvent
	}

	orderID, err := strconv.ParseInt(event.ExternalReference, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: external_reference %q", ErrBadWebhook, event.ExternalReference)
	}

	status, ok := providerStatus[event.Status]
	if !ok {
		return nil, fmt.Errorf("%w: status %q", ErrBadWebhook, event.Status)
	}

	return store.UpdatePaymentStatus(ctx, s.db, orderID, status)
}
