package httpapi

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/safar/autoparts-store/internal/cache"
	"github.com/safar/autoparts-store/internal/events"
	"github.com/safar/autoparts-store/internal/models"
	"github.com/safar/autoparts-store/internal/store"
	"go.uber.org/zap"
)

type OrdersHandler struct {
	DB     *sql.DB
	Events events.Publisher
	Cache  cache.StatusCache
	Logger *zap.Logger
}

func (h *OrdersHandler) Register(r chi.Router) {
	r.Route("/orders", func(r chi.Router) {
		r.With(RequireUser).Post("/", h.place)
		r.With(RequireUser).Get("/", h.list)
		r.With(RequireUser).Get("/history", h.history)
		r.With(RequireUser).Get("/{id}", h.get)
		r.With(RequireUser).Get("/{id}/status", h.getStatus)
		r.With(RequireAdmin).Put("/{id}/status", h.updateStatus)
		r.With(RequireAdmin).Get("/stats", h.stats)
	})
}

type placeOrderRequest struct {
	ShippingAddress string `json:"shipping_address"`
	PaymentMethod   string `json:"payment_method"`
}

type placeOrderResponse struct {
	Msg   string        `json:"msg"`
	Order *models.Order `json:"order"`
}

func (h *OrdersHandler) place(w http.ResponseWriter, r *http.Request) {
	caller, _ := callerFrom(r.Context())

	var req placeOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", "")
		return
	}
	if req.PaymentMethod == "" {
		req.PaymentMethod = "card"
	}

	order, err := store.PlaceOrder(r.Context(), h.DB, caller.UserID, req.ShippingAddress, req.PaymentMethod)
	if err != nil {
		writeStoreError(w, h.Logger, err)
		return
	}

	h.Events.Publish(events.EventOrderPlaced, order.ID, events.OrderPlacedPayload{
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		UserID:      order.UserID,
		Total:       order.Total,
		ItemCount:   len(order.Items),
	})
	h.Cache.SetStatus(r.Context(), order.ID, order.Status)

	writeJSON(w, http.StatusCreated, placeOrderResponse{Msg: "order placed", Order: order})
}

func (h *OrdersHandler) list(w http.ResponseWriter, r *http.Request) {
	caller, _ := callerFrom(r.Context())

	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	if page < 1 {
		page = 1
	}
	pageSize, _ := strconv.Atoi(q.Get("page_size"))
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	filters := store.OrderFilters{Status: q.Get("status")}
	if v := q.Get("user_id"); v != "" {
		filters.UserID, _ = strconv.ParseInt(v, 10, 64)
	}
	if v := q.Get("date_from"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			filters.DateFrom = &t
		}
	}
	if v := q.Get("date_to"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			filters.DateTo = &t
		}
	}

	result, err := store.ListOrders(r.Context(), h.DB, caller, page, pageSize, filters)
	if err != nil {
		writeStoreError(w, h.Logger, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (h *OrdersHandler) history(w http.ResponseWriter, r *http.Request) {
	caller, _ := callerFrom(r.Context())

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit < 1 || limit > 100 {
		limit = 20
	}

	result, err := store.ListUserOrdersCursor(r.Context(), h.DB, caller.UserID, r.URL.Query().Get("cursor"), limit)
	if err != nil {
		writeStoreError(w, h.Logger, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (h *OrdersHandler) get(w http.ResponseWriter, r *http.Request) {
	caller, _ := callerFrom(r.Context())

	orderID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid order id", "")
		return
	}

	order, err := store.GetOrder(r.Context(), h.DB, orderID, caller)
	if err != nil {
		writeStoreError(w, h.Logger, err)
		return
	}

	writeJSON(w, http.StatusOK, order)
}

type orderStatusResponse struct {
	OrderID int64  `json:"order_id"`
	Status  string `json:"status"`
}

func (h *OrdersHandler) getStatus(w http.ResponseWriter, r *http.Request) {
	caller, _ := callerFrom(r.Context())

	orderID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid order id", "")
		return
	}

	// Admins may hit the cache directly; regular callers go through the
	// ownership-scoped query first.
	if caller.IsAdmin() {
		if status, ok := h.Cache.GetStatus(r.Context(), orderID); ok {
			writeJSON(w, http.StatusOK, orderStatusResponse{OrderID: orderID, Status: status})
			return
		}
	}

	order, err := store.GetOrder(r.Context(), h.DB, orderID, caller)
	if err != nil {
		writeStoreError(w, h.Logger, err)
		return
	}

	h.Cache.SetStatus(r.Context(), order.ID, order.Status)
	writeJSON(w, http.StatusOK, orderStatusResponse{OrderID: order.ID, Status: order.Status})
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

type updateStatusResponse struct {
	Msg   string        `json:"msg"`
	Order *models.Order `json:"order"`
}

func (h *OrdersHandler) updateStatus(w http.ResponseWriter, r *http.Request) {
	orderID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid order id", "")
		return
	}

	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", "")
		return
	}
	if !models.IsOrderStatus(req.Status) {
		writeError(w, http.StatusBadRequest, "unknown order status", "INVALID_STATUS")
		return
	}

	order, oldStatus, err := store.UpdateOrderStatus(r.Context(), h.DB, orderID, req.Status)
	if err != nil {
		writeStoreError(w, h.Logger, err)
		return
	}

	h.Events.Publish(events.EventOrderStatusChanged, order.ID, events.OrderStatusChangedPayload{
		OrderID:   order.ID,
		OldStatus: oldStatus,
		NewStatus: order.Status,
	})
	h.Cache.SetStatus(r.Context(), order.ID, order.Status)

	writeJSON(w, http.StatusOK, updateStatusResponse{Msg: "order status updated", Order: order})
}

func (h *OrdersHandler) stats(w http.ResponseWriter, r *http.Request) {
	stats, err := store.GetOrderStats(r.Context(), h.DB)
	if err != nil {
		writeStoreError(w, h.Logger, err)
		return
	}

	writeJSON(w, http.StatusOK, stats)
}
