package application

import (
	"context"
	"time"

	catalogdomain "github.com/dmehra2102/inventory-hub/internal/catalog/domain"
	inventoryapp "github.com/dmehra2102/inventory-hub/internal/inventory/application"
	"github.com/dmehra2102/inventory-hub/internal/order/domain"
)

// OrderStore is bound to one transaction.
type OrderStore interface {
	Insert(ctx context.Context, o domain.Order) error
	// GetForUpdate fails with domain.ErrOrderNotFound for unknown ids.
	GetForUpdate(ctx context.Context, id string) (domain.Order, error)
	UpdateStatus(ctx context.Context, id string, status domain.Status, at time.Time) error
}

// Tx extends the stock transaction with order writes so placement commits
// stock and order together.
type Tx interface {
	inventoryapp.Tx
	Orders() OrderStore
}

type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

type OrderReader interface {
	GetOrder(ctx context.Context, id string) (domain.Order, error)
	ListOrders(ctx context.Context, f domain.ListFilter) ([]domain.Order, error)
	OrderStats(ctx context.Context) (domain.Stats, error)
}

type Catalog interface {
	Resolve(ctx context.Context, id string) (catalogdomain.Product, error)
}
