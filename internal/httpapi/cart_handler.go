package httpapi

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/safar/autoparts-store/internal/store"
	"go.uber.org/zap"
)

type CartHandler struct {
	DB     *sql.DB
	Logger *zap.Logger
}

func (h *CartHandler) Register(r chi.Router) {
	r.Route("/cart", func(r chi.Router) {
		r.Use(RequireUser)
		r.Get("/", h.get)
		r.Post("/items", h.addItem)
		r.Put("/items/{id}", h.updateItem)
		r.Delete("/items/{id}", h.removeItem)
		r.Delete("/", h.clear)
	})
}

func (h *CartHandler) get(w http.ResponseWriter, r *http.Request) {
	caller, _ := callerFrom(r.Context())

	cart, err := store.GetCart(r.Context(), h.DB, caller.UserID)
	if err != nil {
		writeStoreError(w, h.Logger, err)
		return
	}

	writeJSON(w, http.StatusOK, cart)
}

type addItemRequest struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

func (h *CartHandler) addItem(w http.ResponseWriter, r *http.Request) {
	caller, _ := callerFrom(r.Context())

	var req addItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", "")
		return
	}
	if req.ProductID <= 0 || req.Quantity <= 0 {
		writeError(w, http.StatusBadRequest, "product_id and a positive quantity are required", "")
		return
	}

	item, err := store.AddItem(r.Context(), h.DB, caller.UserID, req.ProductID, req.Quantity)
	if err != nil {
		writeStoreError(w, h.Logger, err)
		return
	}

	writeJSON(w, http.StatusOK, item)
}

type updateItemRequest struct {
	Quantity int `json:"quantity"`
}

func (h *CartHandler) updateItem(w http.ResponseWriter, r *http.Request) {
	caller, _ := callerFrom(r.Context())

	itemID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid cart item id", "")
		return
	}

	var req updateItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", "")
		return
	}
	if req.Quantity <= 0 {
		writeError(w, http.StatusBadRequest, "a positive quantity is required", "")
		return
	}

	item, err := store.UpdateItem(r.Context(), h.DB, itemID, caller.UserID, req.Quantity)
	if err != nil {
		writeStoreError(w, h.Logger, err)
		return
	}

	writeJSON(w, http.StatusOK, item)
}

func (h *CartHandler) removeItem(w http.ResponseWriter, r *http.Request) {
	caller, _ := callerFrom(r.Context())

	itemID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid cart item id", "")
		return
	}

	if err := store.RemoveItem(r.Context(), h.DB, itemID, caller.UserID); err != nil {
		writeStoreError(w, h.Logger, err)
		return
	}

	writeJSON(w, http.StatusOK, messageResponse{Msg: "item removed from cart"})
}

func (h *CartHandler) clear(w http.ResponseWriter, r *http.Request) {
	caller, _ := callerFrom(r.Context())

	if err := store.ClearCart(r.Context(), h.DB, caller.UserID); err != nil {
		writeStoreError(w, h.Logger, err)
		return
	}

	writeJSON(w, http.StatusOK, messageResponse{Msg: "cart cleared"})
}
