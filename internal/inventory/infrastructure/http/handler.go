package http

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/dmehra2102/inventory-hub/internal/apierr"
	"github.com/dmehra2102/inventory-hub/internal/auth"
	"github.com/dmehra2102/inventory-hub/internal/inventory/application"
	"github.com/dmehra2102/inventory-hub/internal/inventory/domain"
	"github.com/dmehra2102/inventory-hub/pkg/httpx"
)

type Handler struct {
	log     *slog.Logger
	service *application.Service
	tracer  trace.Tracer
}

func NewHandler(log *slog.Logger, service *application.Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
		tracer:  otel.Tracer("inventory-http"),
	}
}

func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Get("/", h.list)
	r.Get("/{productID}", h.get)

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireRole(auth.RoleAdmin))
		r.Put("/{productID}", h.updateSettings)
		r.Post("/{productID}/adjust", h.adjust)
	})
	return r
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	items, err := h.service.List(r.Context(), application.ListFilter{
		LowStock: q.Get("lowStock") == "true",
		Query:    q.Get("q"),
	})
	if err != nil {
		apierr.Write(w, h.log, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"total": len(items), "items": items})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	caller, _ := auth.FromContext(r.Context())
	view, err := h.service.Get(r.Context(), caller, chi.URLParam(r, "productID"))
	if err != nil {
		apierr.Write(w, h.log, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, view)
}

func (h *Handler) updateSettings(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "UpdateStockSettings")
	defer span.End()

	var req domain.Settings
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "invalid body: "+err.Error())
		return
	}
	caller, _ := auth.FromContext(ctx)
	rec, err := h.service.UpdateSettings(ctx, caller, chi.URLParam(r, "productID"), req)
	if err != nil {
		apierr.Write(w, h.log, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"message": "Inventory settings updated", "inventory": rec})
}

type adjustReq struct {
	Type   domain.Direction `json:"type"`
	Amount int              `json:"amount"`
}

func (h *Handler) adjust(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "AdjustStock")
	defer span.End()

	var req adjustReq
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "invalid body: "+err.Error())
		return
	}
	caller, _ := auth.FromContext(ctx)
	res, err := h.service.Adjust(ctx, caller, chi.URLParam(r, "productID"), req.Type, req.Amount)
	if err != nil {
		apierr.Write(w, h.log, err)
		return
	}

	verb := "reduced"
	if req.Type == domain.DirectionIn {
		verb = "added"
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"message":   fmt.Sprintf("Stock %s successfully", verb),
		"lowStock":  res.LowStock,
		"inventory": res.Record,
	})
}
