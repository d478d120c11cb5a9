package http

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/dmehra2102/inventory-hub/internal/apierr"
	"github.com/dmehra2102/inventory-hub/internal/auth"
	"github.com/dmehra2102/inventory-hub/internal/catalog/application"
	"github.com/dmehra2102/inventory-hub/internal/catalog/domain"
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
		tracer:  otel.Tracer("catalog-http"),
	}
}

func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Get("/", h.list)
	r.Get("/{id}", h.get)

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireRole(auth.RoleAdmin))
		r.Post("/", h.create)
		r.Put("/{id}", h.update)
		r.Delete("/{id}", h.delete)
	})
	return r
}

type createProductReq struct {
	Name     string           `json:"name"`
	SKU      string           `json:"sku"`
	Category string           `json:"category"`
	Price    *decimal.Decimal `json:"price"`
	Status   domain.Status    `json:"status"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "CreateProduct")
	defer span.End()

	var req createProductReq
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "invalid body: "+err.Error())
		return
	}
	if req.Price == nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_product", "name, sku, price are required")
		return
	}

	caller, _ := auth.FromContext(ctx)
	p, err := h.service.Create(ctx, caller, application.CreateProduct{
		Name:     req.Name,
		SKU:      req.SKU,
		Category: req.Category,
		Price:    *req.Price,
		Status:   req.Status,
	})
	if err != nil {
		apierr.Write(w, h.log, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, map[string]any{"message": "Product created", "product": p})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	limit, _ := strconv.Atoi(q.Get("limit"))

	res, err := h.service.List(r.Context(), domain.ListFilter{
		Query:    q.Get("q"),
		Status:   domain.Status(q.Get("status")),
		Category: q.Get("category"),
		Page:     page,
		Limit:    limit,
	})
	if err != nil {
		apierr.Write(w, h.log, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, res)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	p, err := h.service.Lookup(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		apierr.Write(w, h.log, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, p)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "UpdateProduct")
	defer span.End()

	var req application.UpdateProduct
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "invalid body: "+err.Error())
		return
	}
	p, err := h.service.Update(ctx, chi.URLParam(r, "id"), req)
	if err != nil {
		apierr.Write(w, h.log, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"message": "Product updated", "product": p})
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		apierr.Write(w, h.log, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"message": "Product deleted"})
}
