package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/safar/autoparts-store/internal/payment"
	"go.uber.org/zap"
)

type PaymentsHandler struct {
	Svc    *payment.Service
	Logger *zap.Logger
}

func (h *PaymentsHandler) Register(r chi.Router) {
	r.Route("/payments", func(r chi.Router) {
		r.With(RequireUser).Post("/preference", h.createPreference)
		// The provider calls back unauthenticated.
		r.Post("/webhook", h.webhook)
	})
}

type preferenceResponse struct {
	Success          bool   `json:"success"`
	PreferenceID     string `json:"preference_id"`
	InitPoint        string `json:"init_point"`
	SandboxInitPoint string `json:"sandbox_init_point,omitempty"`
}

func (h *PaymentsHandler) createPreference(w http.ResponseWriter, r *http.Request) {
	var req payment.PreferenceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", "")
		return
	}

	pref, err := h.Svc.CreatePreference(r.Context(), req)
	if err != nil {
		if errors.Is(err, payment.ErrNoItems) {
			writeError(w, http.StatusBadRequest, "no items to pay for", "NO_ITEMS")
			return
		}
		h.Logger.Error("create preference failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not create payment preference", "")
		return
	}

	writeJSON(w, http.StatusOK, preferenceResponse{
		Success:          true,
		PreferenceID:     pref.ID,
		InitPoint:        pref.InitPoint,
		SandboxInitPoint: pref.SandboxInitPoint,
	})
}

type webhookRequest struct {
	Type string               `json:"type"`
	Data payment.WebhookEvent `json:"data"`
}

func (h *PaymentsHandler) webhook(w http.ResponseWriter, r *http.Request) {
	var req webhookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", "")
		return
	}

	_, err := h.Svc.HandleWebhook(r.Context(), req.Type, req.Data)
	switch {
	case err == nil, errors.Is(err, payment.ErrUnknownEvent):
		// Unknown event types are acknowledged so the provider stops
		// retrying them.
		writeJSON(w, http.StatusOK, messageResponse{Msg: "ok"})
	case errors.Is(err, payment.ErrBadWebhook):
		writeError(w, http.StatusBadRequest, err.Error(), "BAD_WEBHOOK")
	default:
		writeStoreError(w, h.Logger, err)
	}
}
