// Package postgres binds the per-context repositories to one pgx transaction.
package postgres

import (
	"context"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	inventoryapp "github.com/dmehra2102/inventory-hub/internal/inventory/application"
	inventorypg "github.com/dmehra2102/inventory-hub/internal/inventory/infrastructure/postgres"
	orderapp "github.com/dmehra2102/inventory-hub/internal/order/application"
	orderpg "github.com/dmehra2102/inventory-hub/internal/order/infrastructure/postgres"
	"github.com/dmehra2102/inventory-hub/pkg/outbox"
	"github.com/dmehra2102/inventory-hub/pkg/postgres"
)

// UnitOfWork runs order and stock writes at READ COMMITTED. Isolation for the
// check-and-decrement comes from row locks taken in product id order and from
// conditional updates, so serializable isolation is not needed.
type UnitOfWork struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewUnitOfWork(log *slog.Logger, pool *pgxpool.Pool) *UnitOfWork {
	return &UnitOfWork{log: log, pool: pool}
}

var txOptions = pgx.TxOptions{IsoLevel: pgx.ReadCommitted}

func (u *UnitOfWork) WithinTx(ctx context.Context, fn func(ctx context.Context, tx orderapp.Tx) error) error {
	return postgres.InTx(ctx, u.pool, txOptions, func(tx pgx.Tx) error {
		return fn(ctx, u.bind(tx))
	})
}

func (u *UnitOfWork) WithinStockTx(ctx context.Context, fn func(ctx context.Context, tx inventoryapp.Tx) error) error {
	return postgres.InTx(ctx, u.pool, txOptions, func(tx pgx.Tx) error {
		return fn(ctx, u.bind(tx))
	})
}

func (u *UnitOfWork) bind(tx pgx.Tx) *boundTx {
	return &boundTx{
		stock:  inventorypg.NewRepository(u.log, tx),
		orders: orderpg.NewRepository(u.log, tx),
		outbox: outbox.NewPGWriter(tx),
	}
}

type boundTx struct {
	stock  *inventorypg.Repository
	orders *orderpg.Repository
	outbox *outbox.PGWriter
}

func (t *boundTx) Stock() inventoryapp.StockStore { return t.stock }
func (t *boundTx) Orders() orderapp.OrderStore    { return t.orders }
func (t *boundTx) Outbox() outbox.Writer          { return t.outbox }
