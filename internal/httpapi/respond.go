package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/safar/autoparts-store/internal/database"
	"github.com/safar/autoparts-store/internal/payment"
	"go.uber.org/zap"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

type messageResponse struct {
	Msg string `json:"msg"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, message, errCode string) {
	writeJSON(w, code, errorResponse{Error: message, Code: errCode})
}

// writeStoreError maps business errors to structured 4xx responses.
// Anything unrecognized is a storage failure: opaque 500, details logged
// only server side.
func writeStoreError(w http.ResponseWriter, logger *zap.Logger, err error) {
	var stockErr *database.InsufficientStockError
	switch {
	case errors.As(err, &stockErr):
		writeError(w, http.StatusBadRequest, stockErr.Error(), "INSUFFICIENT_STOCK")
	case errors.Is(err, database.ErrInsufficientStock):
		writeError(w, http.StatusBadRequest, "insufficient stock", "INSUFFICIENT_STOCK")
	case errors.Is(err, database.ErrEmptyCart):
		writeError(w, http.StatusBadRequest, "cart is empty", "EMPTY_CART")
	case errors.Is(err, database.ErrInvalidQuantity):
		writeError(w, http.StatusBadRequest, "quantity must be a positive integer", "INVALID_QUANTITY")
	case errors.Is(err, database.ErrInvalidTransition):
		writeError(w, http.StatusBadRequest, err.Error(), "INVALID_TRANSITION")
	case errors.Is(err, payment.ErrNoItems):
		writeError(w, http.StatusBadRequest, "no items to pay for", "NO_ITEMS")
	case errors.Is(err, database.ErrProductNotFound):
		writeError(w, http.StatusNotFound, "product not found", "PRODUCT_NOT_FOUND")
	case errors.Is(err, database.ErrCartItemNotFound):
		writeError(w, http.StatusNotFound, "cart item not found", "CART_ITEM_NOT_FOUND")
	case errors.Is(err, database.ErrCartNotFound):
		writeError(w, http.StatusNotFound, "cart not found", "CART_NOT_FOUND")
	case errors.Is(err, database.ErrOrderNotFound):
		writeError(w, http.StatusNotFound, "order not found", "ORDER_NOT_FOUND")
	case errors.Is(err, database.ErrUserNotFound):
		writeError(w, http.StatusNotFound, "user not found", "USER_NOT_FOUND")
	case errors.Is(err, database.ErrPaymentNotFound):
		writeError(w, http.StatusNotFound, "payment not found", "PAYMENT_NOT_FOUND")
	default:
		if logger != nil {
			logger.Error("storage failure", zap.Error(err))
		}
		writeError(w, http.StatusInternalServerError, "internal server error", "")
	}
}
