package httpapi

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/safar/autoparts-store/internal/store"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type ProductsHandler struct {
	DB     *sql.DB
	Logger *zap.Logger
}

func (h *ProductsHandler) Register(r chi.Router) {
	r.Route("/products", func(r chi.Router) {
		r.Get("/", h.list)
		r.Get("/{id}", h.get)
		r.With(RequireAdmin).Post("/", h.create)
	})
}

func (h *ProductsHandler) list(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("page_size"))
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	result, err := store.ListProducts(r.Context(), h.DB, page, pageSize)
	if err != nil {
		writeStoreError(w, h.Logger, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (h *ProductsHandler) get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid product id", "")
		return
	}

	product, err := store.GetProduct(r.Context(), h.DB, id)
	if err != nil {
		writeStoreError(w, h.Logger, err)
		return
	}

	writeJSON(w, http.StatusOK, product)
}

type createProductRequest struct {
	SKU         string `json:"sku"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Price       string `json:"price"`
	Stock       int    `json:"stock"`
	CategoryID  int64  `json:"category_id"`
	BrandID     int64  `json:"brand_id"`
}

func (h *ProductsHandler) create(w http.ResponseWriter, r *http.Request) {
	var req createProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", "")
		return
	}

	price, err := decimal.NewFromString(req.Price)
	if err != nil || price.IsNegative() {
		writeError(w, http.StatusBadRequest, "invalid price", "")
		return
	}
	if req.SKU == "" || req.Name == "" || req.Stock < 0 {
		writeError(w, http.StatusBadRequest, "sku, name and a non-negative stock are required", "")
		return
	}

	product, err := store.CreateProduct(r.Context(), h.DB, req.SKU, req.Name, req.Description, price, req.Stock, req.CategoryID, req.BrandID)
	if err != nil {
		writeStoreError(w, h.Logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, product)
}
