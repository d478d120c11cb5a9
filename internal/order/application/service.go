package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dmehra2102/inventory-hub/internal/auth"
	catalogdomain "github.com/dmehra2102/inventory-hub/internal/catalog/domain"
	inventoryapp "github.com/dmehra2102/inventory-hub/internal/inventory/application"
	inventorydomain "github.com/dmehra2102/inventory-hub/internal/inventory/domain"
	"github.com/dmehra2102/inventory-hub/internal/order/domain"
	"github.com/dmehra2102/inventory-hub/pkg/outbox"
)

type Engine struct {
	log     *slog.Logger
	tx      Transactor
	reader  OrderReader
	catalog Catalog
	now     func() time.Time
	newID   func() string
}

func NewEngine(log *slog.Logger, tx Transactor, reader OrderReader, catalog Catalog) *Engine {
	return &Engine{
		log:     log,
		tx:      tx,
		reader:  reader,
		catalog: catalog,
		now:     time.Now,
		newID:   uuid.NewString,
	}
}

type Item struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

type PlaceOrder struct {
	Items    []Item          `json:"items"`
	Tax      decimal.Decimal `json:"tax"`
	Discount decimal.Decimal `json:"discount"`
	Notes    string          `json:"notes"`
}

func (p PlaceOrder) validate() error {
	if len(p.Items) == 0 {
		return fmt.Errorf("%w: items array is required", domain.ErrInvalidRequest)
	}
	for i, it := range p.Items {
		if strings.TrimSpace(it.ProductID) == "" || it.Quantity < 1 {
			return fmt.Errorf("%w: item %d needs productId and quantity > 0", domain.ErrInvalidRequest, i)
		}
		if it.Quantity > domain.MaxQuantity {
			return fmt.Errorf("%w: item %d quantity exceeds %d", domain.ErrInvalidRequest, i, domain.MaxQuantity)
		}
	}
	if !catalogdomain.ValidAmount(p.Tax) || !catalogdomain.ValidAmount(p.Discount) {
		return fmt.Errorf("%w: tax and discount must be between 0 and %s with at most %d decimals",
			domain.ErrInvalidRequest, catalogdomain.MaxAmount, catalogdomain.MoneyScale)
	}
	return nil
}

// CreateOrder reserves stock for every item and records the order in one
// transaction. Any failure leaves stock and orders untouched.
func (e *Engine) CreateOrder(ctx context.Context, caller auth.Caller, in PlaceOrder) (domain.Order, error) {
	if err := in.validate(); err != nil {
		return domain.Order{}, err
	}

	var placed domain.Order
	err := e.tx.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		products := make(map[string]catalogdomain.Product, len(in.Items))
		var missing error
		ids := make([]string, 0, len(in.Items))
		for _, it := range in.Items {
			if _, ok := products[it.ProductID]; ok {
				continue
			}
			p, err := e.catalog.Resolve(ctx, it.ProductID)
			if errors.Is(err, catalogdomain.ErrProductNotFound) {
				if missing == nil {
					missing = fmt.Errorf("%w: %s", catalogdomain.ErrProductNotFound, it.ProductID)
				}
				continue
			}
			if err != nil {
				return err
			}
			products[it.ProductID] = p
			ids = append(ids, it.ProductID)
		}

		ledger := inventoryapp.NewLedger(tx, caller)
		if _, err := ledger.EnsureAll(ctx, ids); err != nil {
			return err
		}

		items := make([]domain.LineItem, 0, len(in.Items))
		for _, it := range in.Items {
			p, ok := products[it.ProductID]
			if !ok {
				return missing
			}
			if _, err := ledger.CheckAndReserve(ctx, it.ProductID, it.Quantity); err != nil {
				var ise *inventorydomain.InsufficientStockError
				if errors.As(err, &ise) {
					ise.ProductName = p.Name
				}
				return err
			}
			items = append(items, domain.LineItem{
				ProductID: p.ID,
				Name:      p.Name,
				SKU:       p.SKU,
				Price:     p.Price,
				Quantity:  it.Quantity,
			})
		}

		sub := domain.SubTotal(items)
		if !catalogdomain.ValidAmount(sub.Add(in.Tax)) {
			return fmt.Errorf("%w: order amount exceeds %s", domain.ErrInvalidRequest, catalogdomain.MaxAmount)
		}

		now := e.now().UTC()
		o := domain.Order{
			ID:        e.newID(),
			Items:     items,
			SubTotal:  sub,
			Tax:       in.Tax,
			Discount:  in.Discount,
			Total:     domain.Total(sub, in.Tax, in.Discount),
			Status:    domain.StatusPlaced,
			Notes:     in.Notes,
			CreatedBy: caller.ID,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := tx.Orders().Insert(ctx, o); err != nil {
			return err
		}

		ev, err := outbox.NewEvent(ctx, "order", o.ID, domain.EventOrderPlaced, domain.OrderPlaced{
			OrderID:   o.ID,
			Items:     o.Items,
			Total:     o.Total,
			CreatedBy: o.CreatedBy,
			At:        now,
		})
		if err != nil {
			return err
		}
		if err := tx.Outbox().Append(ctx, ev); err != nil {
			return err
		}
		placed = o
		return nil
	})
	if err != nil {
		e.log.Warn("order rejected", "created_by", caller.ID, "items", len(in.Items), "err", err)
		return domain.Order{}, err
	}

	e.log.Info("order placed",
		"order_id", placed.ID,
		"created_by", caller.ID,
		"items", len(placed.Items),
		"total", placed.Total.String(),
	)
	return placed, nil
}

// UpdateStatus changes only the status; stock is never touched.
func (e *Engine) UpdateStatus(ctx context.Context, id, status string) (domain.Order, error) {
	next, err := domain.ParseStatus(status)
	if err != nil {
		return domain.Order{}, err
	}

	var updated domain.Order
	err = e.tx.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		o, err := tx.Orders().GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		now := e.now().UTC()
		if err := tx.Orders().UpdateStatus(ctx, id, next, now); err != nil {
			return err
		}

		ev, err := outbox.NewEvent(ctx, "order", id, domain.EventOrderStatusChanged, domain.OrderStatusChanged{
			OrderID: id,
			From:    o.Status,
			To:      next,
			At:      now,
		})
		if err != nil {
			return err
		}
		if err := tx.Outbox().Append(ctx, ev); err != nil {
			return err
		}

		o.Status = next
		o.UpdatedAt = now
		updated = o
		return nil
	})
	if err != nil {
		return domain.Order{}, err
	}
	e.log.Info("order status updated", "order_id", id, "status", next)
	return updated, nil
}

// ListOrders returns newest first; non-admins only see their own orders.
func (e *Engine) ListOrders(ctx context.Context, caller auth.Caller) ([]domain.Order, error) {
	var f domain.ListFilter
	if !caller.IsAdmin() {
		f.CreatedBy = caller.ID
	}
	return e.reader.ListOrders(ctx, f)
}

func (e *Engine) GetOrder(ctx context.Context, caller auth.Caller, id string) (domain.Order, error) {
	o, err := e.reader.GetOrder(ctx, id)
	if err != nil {
		return domain.Order{}, err
	}
	if !o.VisibleTo(caller) {
		return domain.Order{}, domain.ErrAccessDenied
	}
	return o, nil
}

func (e *Engine) Recent(ctx context.Context, limit int) ([]domain.Order, error) {
	return e.reader.ListOrders(ctx, domain.ListFilter{Limit: limit})
}

func (e *Engine) Stats(ctx context.Context) (domain.Stats, error) {
	return e.reader.OrderStats(ctx)
}
