package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/safar/autoparts-store/internal/config"
	"github.com/sony/gobreaker/v2"
)

// PreferenceItem is one line of the checkout the provider should present.
type PreferenceItem struct {
	ID          string  `json:"id,omitempty"`
	Title       string  `json:"title"`
	Description string  `json:"description,omitempty"`
	Quantity    int     `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
	CurrencyID  string  `json:"currency_id,omitempty"`
}

type Payer struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email"`
}

type BackURLs struct {
	Success string `json:"success"`
	Pending string `json:"pending,omitempty"`
	Failure string `json:"failure,omitempty"`
}

// PreferenceRequest is everything the caller supplies; backend-controlled
// fields (expiry window, statement descriptor, auto return) are added by
// the client before the provider call.
type PreferenceRequest struct {
	Items             []PreferenceItem  `json:"items"`
	Payer             Payer             `json:"payer"`
	BackURLs          BackURLs          `json:"back_urls"`
	ExternalReference string            `json:"external_reference"`
	NotificationURL   string            `json:"notification_url,omitempty"`
	Metadata          map[string]string `json:"metadata,omitempty"`
}

// Preference is the provider-side checkout session handle returned to the
// client as a redirect target.
type Preference struct {
	ID               string `json:"id"`
	InitPoint        string `json:"init_point"`
	SandboxInitPoint string `json:"sandbox_init_point,omitempty"`
}

type Client interface {
	CreatePreference(ctx context.Context, req PreferenceRequest) (*Preference, error)
}

// NewClient picks the provider implementation from configuration; anything
// other than "mercadopago" gets the fake, so environments without gateway
// credentials still work end to end.
func NewClient(cfg config.PaymentConfig) Client {
	switch cfg.Provider {
	case "mercadopago":
		return NewMercadoPagoClient(cfg)
	default:
		return &FakeClient{}
	}
}

// MercadoPagoClient creates checkout preferences against the Mercado Pago
// REST API. Calls go through a circuit breaker so a degraded provider
// fails fast instead of tying up request handlers.
type MercadoPagoClient struct {
	baseURL             string
	accessToken         string
	statementDescriptor string
	httpClient          *http.Client
	breaker             *gobreaker.CircuitBreaker[*Preference]
}

func NewMercadoPagoClient(cfg config.PaymentConfig) *MercadoPagoClient {
	return &MercadoPagoClient{
		baseURL:             cfg.BaseURL,
		accessToken:         cfg.AccessToken,
		statementDescriptor: cfg.StatementDescriptor,
		httpClient:          &http.Client{Timeout: cfg.Timeout},
		breaker: gobreaker.NewCircuitBreaker[*Preference](gobreaker.Settings{
			Name:    "mercadopago",
			Timeout: 30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
		}),
	}
}

type preferenceBody struct {
	PreferenceRequest
	AutoReturn          string `json:"auto_return"`
	StatementDescriptor string `json:"statement_descriptor"`
	Expires             bool   `json:"expires"`
	ExpirationDateFrom  string `json:"expiration_date_from"`
	ExpirationDateTo    string `json:"expiration_date_to"`
}

func (c *MercadoPagoClient) CreatePreference(ctx context.Context, req PreferenceRequest) (*Preference, error) {
	now := time.Now().UTC()
	body := preferenceBody{
		PreferenceRequest:   req,
		AutoReturn:          "approved",
		StatementDescriptor: c.statementDescriptor,
		Expires:             true,
		ExpirationDateFrom:  now.Format(time.RFC3339),
		ExpirationDateTo:    now.Add(24 * time.Hour).Format(time.RFC3339),
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal preference: %w", err)
	}

	return c.breaker.Execute(func() (*Preference, error) {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
			c.baseURL+"/checkout/preferences", bytes.NewReader(payload))
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("Authorization", "Bearer "+c.accessToken)

		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			return nil, fmt.Errorf("create preference: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			return nil, fmt.Errorf("create preference: provider returned %d: %s", resp.StatusCode, detail)
		}

		pref := &Preference{}
		if err := json.NewDecoder(resp.Body).Decode(pref); err != nil {
			return nil, fmt.Errorf("decode preference: %w", err)
		}

		return pref, nil
	})
}

// FakeClient stands in for the gateway in tests and in environments
// without provider credentials. Redirects land on the success back URL.
type FakeClient struct{}

func (f *FakeClient) CreatePreference(_ context.Context, req PreferenceRequest) (*Preference, error) {
	return &Preference{
		ID:               "fake-" + uuid.NewString(),
		InitPoint:        req.BackURLs.Success,
		SandboxInitPoint: req.BackURLs.Success,
	}, nil
}
