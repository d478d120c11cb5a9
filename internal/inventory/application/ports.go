package application

import (
	"context"

	catalogdomain "github.com/dmehra2102/inventory-hub/internal/catalog/domain"
	"github.com/dmehra2102/inventory-hub/internal/inventory/domain"
	"github.com/dmehra2102/inventory-hub/pkg/outbox"
)

// StockStore is bound to one transaction. Records returned by Lock stay
// locked until that transaction ends.
type StockStore interface {
	// Lock creates missing records with defaults, then locks every id in
	// ascending order and returns the current values.
	Lock(ctx context.Context, productIDs []string) (map[string]domain.StockRecord, error)
	// Decrement re-checks the persisted quantity and fails with
	// *domain.InsufficientStockError rather than going negative.
	Decrement(ctx context.Context, productID string, qty int, by string) (domain.StockRecord, error)
	Increment(ctx context.Context, productID string, qty int, by string) (domain.StockRecord, error)
	UpdateSettings(ctx context.Context, productID string, s domain.Settings, by string) (domain.StockRecord, error)
}

// Tx is the explicit scope shared by every write of one unit of work.
type Tx interface {
	Stock() StockStore
	Outbox() outbox.Writer
}

type StockTransactor interface {
	WithinStockTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

type StockFilter struct {
	LowStockOnly bool
}

// StockReader serves committed reads outside any transaction.
type StockReader interface {
	GetStock(ctx context.Context, productID string) (domain.StockRecord, bool, error)
	ListStock(ctx context.Context, f StockFilter) ([]domain.StockRecord, error)
	CountLowStock(ctx context.Context) (int, error)
}

type ProductLookup interface {
	Lookup(ctx context.Context, id string) (catalogdomain.Product, error)
}
