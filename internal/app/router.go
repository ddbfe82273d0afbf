package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/stockroom/stockroom/internal/dashboard"
	"github.com/stockroom/stockroom/internal/inventory"
	"github.com/stockroom/stockroom/internal/masterdata/products"
	"github.com/stockroom/stockroom/internal/masterdata/suppliers"
	"github.com/stockroom/stockroom/internal/observability"
	"github.com/stockroom/stockroom/internal/procurement"
	"github.com/stockroom/stockroom/internal/sales/customers"
	"github.com/stockroom/stockroom/internal/sales/orders"
	"github.com/stockroom/stockroom/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger             *slog.Logger
	Config             *Config
	ProductsHandler    *products.Handler
	SuppliersHandler   *suppliers.Handler
	CustomersHandler   *customers.Handler
	OrdersHandler      *orders.Handler
	ProcurementHandler *procurement.Handler
	InventoryHandler   *inventory.Handler
	DashboardHandler   *dashboard.Handler
	JobHandler         *jobs.Handler
	Metrics            *observability.Metrics
}

// NewRouter constructs the chi.Router with the API defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api", func(r chi.Router) {
		if params.ProductsHandler != nil {
			var movements http.HandlerFunc
			if params.InventoryHandler != nil {
				movements = params.InventoryHandler.ProductMovements
			}
			r.Route("/products", func(r chi.Router) {
				params.ProductsHandler.MountRoutes(r, movements)
			})
		}
		if params.SuppliersHandler != nil {
			r.Route("/suppliers", params.SuppliersHandler.MountRoutes)
		}
		if params.CustomersHandler != nil {
			r.Route("/customers", params.CustomersHandler.MountRoutes)
		}
		if params.OrdersHandler != nil {
			r.Route("/customer-orders", params.OrdersHandler.MountRoutes)
		}
		if params.ProcurementHandler != nil {
			r.Route("/supplier-purchases", params.ProcurementHandler.MountRoutes)
		}
		if params.InventoryHandler != nil {
			r.Route("/inventory", params.InventoryHandler.MountRoutes)
		}
		if params.DashboardHandler != nil {
			r.Route("/dashboard", params.DashboardHandler.MountRoutes)
		}
	})

	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}
	return r
}
