package http

import (
	"log/slog"
	"net/http"

	"github.com/dmehra2102/inventory-hub/internal/apierr"
	"github.com/dmehra2102/inventory-hub/internal/dashboard/application"
	"github.com/dmehra2102/inventory-hub/pkg/httpx"
)

type Handler struct {
	log     *slog.Logger
	service *application.Service
}

func NewHandler(log *slog.Logger, service *application.Service) *Handler {
	return &Handler{log: log, service: service}
}

func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Stats(r.Context())
	if err != nil {
		apierr.Write(w, h.log, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, stats)
}
