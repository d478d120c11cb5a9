// Package server assembles the HTTP API from the per-context handlers.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dmehra2102/inventory-hub/internal/auth"
	catalogapp "github.com/dmehra2102/inventory-hub/internal/catalog/application"
	cataloghttp "github.com/dmehra2102/inventory-hub/internal/catalog/infrastructure/http"
	dashboardapp "github.com/dmehra2102/inventory-hub/internal/dashboard/application"
	dashboardhttp "github.com/dmehra2102/inventory-hub/internal/dashboard/infrastructure/http"
	inventoryapp "github.com/dmehra2102/inventory-hub/internal/inventory/application"
	inventoryhttp "github.com/dmehra2102/inventory-hub/internal/inventory/infrastructure/http"
	orderapp "github.com/dmehra2102/inventory-hub/internal/order/application"
	orderhttp "github.com/dmehra2102/inventory-hub/internal/order/infrastructure/http"
	"github.com/dmehra2102/inventory-hub/pkg/httpx"
)

type Deps struct {
	Log       *slog.Logger
	Verifier  auth.Verifier
	Catalog   *catalogapp.Service
	Inventory *inventoryapp.Service
	Orders    *orderapp.Engine
	Dashboard *dashboardapp.Service
	// Idempotency guards POST /api/orders; optional.
	Idempotency func(http.Handler) http.Handler
	// Ready backs /healthz; optional.
	Ready func(ctx context.Context) error
}

func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(httpx.AccessLog(d.Log))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if d.Ready != nil {
			if err := d.Ready(r.Context()); err != nil {
				httpx.WriteError(w, http.StatusServiceUnavailable, "unavailable", err.Error())
				return
			}
		}
		httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(auth.Authenticate(d.Verifier))
		r.Mount("/products", cataloghttp.NewHandler(d.Log, d.Catalog).Routes())
		r.Mount("/inventory", inventoryhttp.NewHandler(d.Log, d.Inventory).Routes())
		r.Mount("/orders", orderhttp.NewHandler(d.Log, d.Orders, d.Idempotency).Routes())
		r.Get("/dashboard", dashboardhttp.NewHandler(d.Log, d.Dashboard).Stats)
	})
	return r
}

// CallerScope keys idempotency records by the authenticated caller.
func CallerScope(r *http.Request) string {
	if c, ok := auth.FromContext(r.Context()); ok {
		return c.ID
	}
	return "anonymous"
}
