package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/dmehra2102/inventory-hub/internal/apierr"
	"github.com/dmehra2102/inventory-hub/internal/auth"
	"github.com/dmehra2102/inventory-hub/internal/order/application"
	"github.com/dmehra2102/inventory-hub/pkg/httpx"
)

type Handler struct {
	log         *slog.Logger
	engine      *application.Engine
	tracer      trace.Tracer
	idempotency func(http.Handler) http.Handler
}

// NewHandler wires the order routes. idempotency guards order creation and
// may be nil.
func NewHandler(log *slog.Logger, engine *application.Engine, idempotency func(http.Handler) http.Handler) *Handler {
	if idempotency == nil {
		idempotency = func(next http.Handler) http.Handler { return next }
	}
	return &Handler{
		log:         log,
		engine:      engine,
		tracer:      otel.Tracer("order-http"),
		idempotency: idempotency,
	}
}

func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.With(h.idempotency).Post("/", h.createOrder)
	r.Get("/", h.listOrders)
	r.Get("/{id}", h.getOrder)
	r.With(auth.RequireRole(auth.RoleAdmin)).Put("/{id}/status", h.updateStatus)
	return r
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "CreateOrder")
	defer span.End()

	var req application.PlaceOrder
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "invalid body: "+err.Error())
		return
	}
	span.SetAttributes(attribute.Int("order.items", len(req.Items)))

	caller, _ := auth.FromContext(ctx)
	o, err := h.engine.CreateOrder(ctx, caller, req)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		apierr.Write(w, h.log, err)
		return
	}
	span.SetAttributes(attribute.String("order.id", o.ID))
	httpx.WriteJSON(w, http.StatusCreated, map[string]any{"message": "Order placed successfully", "order": o})
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	caller, _ := auth.FromContext(r.Context())
	orders, err := h.engine.ListOrders(r.Context(), caller)
	if err != nil {
		apierr.Write(w, h.log, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"total": len(orders), "orders": orders})
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	caller, _ := auth.FromContext(r.Context())
	o, err := h.engine.GetOrder(r.Context(), caller, chi.URLParam(r, "id"))
	if err != nil {
		apierr.Write(w, h.log, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, o)
}

type updateStatusReq struct {
	Status string `json:"status"`
}

func (h *Handler) updateStatus(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "UpdateOrderStatus")
	defer span.End()

	var req updateStatusReq
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "invalid body: "+err.Error())
		return
	}
	o, err := h.engine.UpdateStatus(ctx, chi.URLParam(r, "id"), req.Status)
	if err != nil {
		apierr.Write(w, h.log, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"message": "Order status updated", "order": o})
}
