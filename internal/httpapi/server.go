package httpapi

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/safar/autoparts-store/internal/cache"
	"github.com/safar/autoparts-store/internal/events"
	"github.com/safar/autoparts-store/internal/payment"
	"go.uber.org/zap"
)

type Deps struct {
	DB      *sql.DB
	Events  events.Publisher
	Cache   cache.StatusCache
	Payment *payment.Service
	Logger  *zap.Logger
}

func NewRouter(deps Deps) *chi.Mux {
	if deps.Events == nil {
		deps.Events = events.NopPublisher{}
	}
	if deps.Cache == nil {
		deps.Cache = cache.NopStatusCache{}
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer)
	r.Use(middleware.Timeout(15 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	(&ProductsHandler{DB: deps.DB, Logger: deps.Logger}).Register(r)
	(&CartHandler{DB: deps.DB, Logger: deps.Logger}).Register(r)
	(&OrdersHandler{DB: deps.DB, Events: deps.Events, Cache: deps.Cache, Logger: deps.Logger}).Register(r)
	(&PaymentsHandler{Svc: deps.Payment, Logger: deps.Logger}).Register(r)

	return r
}
