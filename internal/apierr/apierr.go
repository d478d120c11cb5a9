// Package apierr maps domain errors onto HTTP and gRPC status codes.
package apierr

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"google.golang.org/grpc/codes"

	catalogdomain "github.com/dmehra2102/inventory-hub/internal/catalog/domain"
	inventorydomain "github.com/dmehra2102/inventory-hub/internal/inventory/domain"
	orderdomain "github.com/dmehra2102/inventory-hub/internal/order/domain"
	"github.com/dmehra2102/inventory-hub/pkg/httpx"
)

type class struct {
	http int
	grpc codes.Code
	code string
}

var classes = []struct {
	err error
	class
}{
	{orderdomain.ErrInvalidRequest, class{http.StatusBadRequest, codes.InvalidArgument, "invalid_request"}},
	{orderdomain.ErrInvalidStatus, class{http.StatusBadRequest, codes.InvalidArgument, "invalid_status"}},
	{inventorydomain.ErrInvalidAdjustment, class{http.StatusBadRequest, codes.InvalidArgument, "invalid_adjustment"}},
	{catalogdomain.ErrInvalidProduct, class{http.StatusBadRequest, codes.InvalidArgument, "invalid_product"}},
	{catalogdomain.ErrProductNotFound, class{http.StatusNotFound, codes.NotFound, "product_not_found"}},
	{orderdomain.ErrOrderNotFound, class{http.StatusNotFound, codes.NotFound, "order_not_found"}},
	{orderdomain.ErrAccessDenied, class{http.StatusForbidden, codes.PermissionDenied, "access_denied"}},
	{inventorydomain.ErrInsufficientStock, class{http.StatusConflict, codes.FailedPrecondition, "insufficient_stock"}},
	{catalogdomain.ErrDuplicateSKU, class{http.StatusConflict, codes.AlreadyExists, "duplicate_sku"}},
	{context.Canceled, class{499, codes.Canceled, "canceled"}},
	{context.DeadlineExceeded, class{http.StatusGatewayTimeout, codes.DeadlineExceeded, "timeout"}},
}

var unknown = class{http.StatusInternalServerError, codes.Internal, "internal"}

func classify(err error) class {
	for _, c := range classes {
		if errors.Is(err, c.err) {
			return c.class
		}
	}
	return unknown
}

// HTTPStatus returns the status code and machine-readable code for err.
func HTTPStatus(err error) (int, string) {
	c := classify(err)
	return c.http, c.code
}

func GRPCCode(err error) codes.Code {
	return classify(err).grpc
}

// Write renders err as a JSON error body. Unclassified errors are logged and
// reported without detail.
func Write(w http.ResponseWriter, log *slog.Logger, err error) {
	c := classify(err)
	if c == unknown {
		log.Error("request failed", "err", err)
		httpx.WriteError(w, c.http, c.code, "internal server error")
		return
	}

	var ise *inventorydomain.InsufficientStockError
	if errors.As(err, &ise) {
		httpx.WriteJSON(w, c.http, insufficientStock{
			ErrorResponse: httpx.ErrorResponse{Error: c.code, Message: err.Error()},
			ProductID:     ise.ProductID,
			Available:     ise.Available,
			Required:      ise.Required,
		})
		return
	}
	httpx.WriteError(w, c.http, c.code, err.Error())
}

type insufficientStock struct {
	httpx.ErrorResponse
	ProductID string `json:"productId"`
	Available int    `json:"available"`
	Required  int    `json:"required"`
}
