package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/dmehra2102/inventory-hub/internal/order/domain"
	"github.com/dmehra2102/inventory-hub/pkg/postgres"
)

type Repository struct {
	log *slog.Logger
	db  postgres.DBTX
}

func NewRepository(log *slog.Logger, db postgres.DBTX) *Repository {
	return &Repository{log: log, db: db}
}

const orderColumns = `id::text, sub_total, tax, discount, total, status, notes, created_by, created_at, updated_at`

func (r *Repository) Insert(ctx context.Context, o domain.Order) error {
	_, err := r.db.Exec(ctx, `INSERT INTO orders (id, sub_total, tax, discount, total, status, notes, created_by, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		o.ID, o.SubTotal, o.Tax, o.Discount, o.Total, o.Status, o.Notes, o.CreatedBy, o.CreatedAt, o.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	batch := &pgx.Batch{}
	for i, it := range o.Items {
		batch.Queue(`INSERT INTO order_items (order_id, line_no, product_id, name, sku, price, quantity)
			VALUES ($1,$2,$3,$4,$5,$6,$7)`,
			o.ID, i, it.ProductID, it.Name, it.SKU, it.Price, it.Quantity)
	}
	if err := r.db.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert order items: %w", err)
	}
	return nil
}

func (r *Repository) GetForUpdate(ctx context.Context, id string) (domain.Order, error) {
	return r.get(ctx, id, " FOR UPDATE")
}

func (r *Repository) GetOrder(ctx context.Context, id string) (domain.Order, error) {
	return r.get(ctx, id, "")
}

func (r *Repository) get(ctx context.Context, id, suffix string) (domain.Order, error) {
	if _, err := uuid.Parse(id); err != nil {
		return domain.Order{}, fmt.Errorf("%w: %s", domain.ErrOrderNotFound, id)
	}
	o, err := scanOrder(r.db.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`+suffix, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Order{}, fmt.Errorf("%w: %s", domain.ErrOrderNotFound, id)
	}
	if err != nil {
		return domain.Order{}, fmt.Errorf("get order: %w", err)
	}

	items, err := r.items(ctx, []string{o.ID})
	if err != nil {
		return domain.Order{}, err
	}
	o.Items = items[o.ID]
	return o, nil
}

func (r *Repository) UpdateStatus(ctx context.Context, id string, status domain.Status, at time.Time) error {
	ct, err := r.db.Exec(ctx, `UPDATE orders SET status = $2, updated_at = $3 WHERE id = $1`, id, status, at)
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", domain.ErrOrderNotFound, id)
	}
	return nil
}

func (r *Repository) ListOrders(ctx context.Context, f domain.ListFilter) ([]domain.Order, error) {
	limit := any(nil)
	if f.Limit > 0 {
		limit = f.Limit
	}
	rows, err := r.db.Query(ctx, `SELECT `+orderColumns+` FROM orders
		WHERE $1 = '' OR created_by = $1
		ORDER BY created_at DESC, id
		LIMIT $2`, f.CreatedBy, limit)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	orders := []domain.Order{}
	var ids []string
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
		ids = append(ids, o.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return orders, nil
	}

	items, err := r.items(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range orders {
		orders[i].Items = items[orders[i].ID]
	}
	return orders, nil
}

func (r *Repository) OrderStats(ctx context.Context) (domain.Stats, error) {
	var st domain.Stats
	err := r.db.QueryRow(ctx, `SELECT count(*), COALESCE(sum(total), 0) FROM orders`).Scan(&st.Count, &st.Revenue)
	if err != nil {
		return domain.Stats{}, fmt.Errorf("order stats: %w", err)
	}
	return st, nil
}

func (r *Repository) items(ctx context.Context, orderIDs []string) (map[string][]domain.LineItem, error) {
	rows, err := r.db.Query(ctx, `SELECT order_id::text, product_id, name, sku, price, quantity
		FROM order_items WHERE order_id = ANY($1::uuid[]) ORDER BY order_id, line_no`, orderIDs)
	if err != nil {
		return nil, fmt.Errorf("list order items: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]domain.LineItem, len(orderIDs))
	for rows.Next() {
		var (
			orderID string
			it      domain.LineItem
		)
		if err := rows.Scan(&orderID, &it.ProductID, &it.Name, &it.SKU, &it.Price, &it.Quantity); err != nil {
			return nil, err
		}
		out[orderID] = append(out[orderID], it)
	}
	return out, rows.Err()
}

func scanOrder(row pgx.Row) (domain.Order, error) {
	var o domain.Order
	err := row.Scan(&o.ID, &o.SubTotal, &o.Tax, &o.Discount, &o.Total, &o.Status, &o.Notes, &o.CreatedBy, &o.CreatedAt, &o.UpdatedAt)
	return o, err
}
