package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/jackc/pgx/v5"

	"github.com/dmehra2102/inventory-hub/internal/inventory/application"
	"github.com/dmehra2102/inventory-hub/internal/inventory/domain"
	"github.com/dmehra2102/inventory-hub/pkg/postgres"
)

// Repository serves both roles: bound to a pgx.Tx it is the transaction's
// StockStore, bound to the pool it answers committed reads.
type Repository struct {
	log *slog.Logger
	db  postgres.DBTX
}

func NewRepository(log *slog.Logger, db postgres.DBTX) *Repository {
	return &Repository{
		log: log,
		db:  db,
	}
}

const stockColumns = `product_id, quantity, reorder_level, location, last_modified_by, updated_at`

func (r *Repository) Lock(ctx context.Context, productIDs []string) (map[string]domain.StockRecord, error) {
	ids := slices.Clone(productIDs)
	slices.Sort(ids)
	ids = slices.Compact(ids)

	_, err := r.db.Exec(ctx, `INSERT INTO stock_records (product_id, quantity, reorder_level, location)
		SELECT id, 0, $2, $3 FROM unnest($1::text[]) AS id
		ON CONFLICT (product_id) DO NOTHING`,
		ids, domain.DefaultReorderLevel, domain.DefaultLocation)
	if err != nil {
		return nil, fmt.Errorf("ensure stock records: %w", err)
	}

	rows, err := r.db.Query(ctx, `SELECT `+stockColumns+` FROM stock_records
		WHERE product_id = ANY($1)
		ORDER BY product_id COLLATE "C"
		FOR UPDATE`, ids)
	if err != nil {
		return nil, fmt.Errorf("lock stock records: %w", err)
	}
	defer rows.Close()

	out := make(map[string]domain.StockRecord, len(ids))
	for rows.Next() {
		rec, err := scanStock(rows)
		if err != nil {
			return nil, err
		}
		out[rec.ProductID] = rec
	}
	return out, rows.Err()
}

func (r *Repository) Decrement(ctx context.Context, productID string, qty int, by string) (domain.StockRecord, error) {
	row := r.db.QueryRow(ctx, `UPDATE stock_records
		SET quantity = quantity - $2, last_modified_by = $3, updated_at = now()
		WHERE product_id = $1 AND quantity >= $2
		RETURNING `+stockColumns, productID, qty, by)
	rec, err := scanStock(row)
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return domain.StockRecord{}, fmt.Errorf("decrement stock: %w", err)
	}

	var available int
	err = r.db.QueryRow(ctx, `SELECT quantity FROM stock_records WHERE product_id = $1`, productID).Scan(&available)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return domain.StockRecord{}, fmt.Errorf("read stock: %w", err)
	}
	return domain.StockRecord{}, &domain.InsufficientStockError{
		ProductID: productID,
		Available: available,
		Required:  qty,
	}
}

func (r *Repository) Increment(ctx context.Context, productID string, qty int, by string) (domain.StockRecord, error) {
	row := r.db.QueryRow(ctx, `INSERT INTO stock_records (product_id, quantity, reorder_level, location, last_modified_by)
		VALUES ($1, $2, $4, $5, $3)
		ON CONFLICT (product_id) DO UPDATE
		SET quantity = stock_records.quantity + EXCLUDED.quantity, last_modified_by = EXCLUDED.last_modified_by, updated_at = now()
		RETURNING `+stockColumns, productID, qty, by, domain.DefaultReorderLevel, domain.DefaultLocation)
	rec, err := scanStock(row)
	if err != nil {
		return domain.StockRecord{}, fmt.Errorf("increment stock: %w", err)
	}
	return rec, nil
}

func (r *Repository) UpdateSettings(ctx context.Context, productID string, s domain.Settings, by string) (domain.StockRecord, error) {
	row := r.db.QueryRow(ctx, `UPDATE stock_records
		SET reorder_level = COALESCE($2, reorder_level),
		    location = COALESCE($3, location),
		    last_modified_by = $4,
		    updated_at = now()
		WHERE product_id = $1
		RETURNING `+stockColumns, productID, s.ReorderLevel, s.Location, by)
	rec, err := scanStock(row)
	if err != nil {
		return domain.StockRecord{}, fmt.Errorf("update stock settings: %w", err)
	}
	return rec, nil
}

func (r *Repository) GetStock(ctx context.Context, productID string) (domain.StockRecord, bool, error) {
	rec, err := scanStock(r.db.QueryRow(ctx, `SELECT `+stockColumns+` FROM stock_records WHERE product_id = $1`, productID))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.StockRecord{}, false, nil
	}
	if err != nil {
		return domain.StockRecord{}, false, fmt.Errorf("get stock: %w", err)
	}
	return rec, true, nil
}

func (r *Repository) ListStock(ctx context.Context, f application.StockFilter) ([]domain.StockRecord, error) {
	rows, err := r.db.Query(ctx, `SELECT `+stockColumns+` FROM stock_records
		WHERE NOT $1 OR quantity <= reorder_level
		ORDER BY updated_at DESC, product_id`, f.LowStockOnly)
	if err != nil {
		return nil, fmt.Errorf("list stock: %w", err)
	}
	defer rows.Close()

	var out []domain.StockRecord
	for rows.Next() {
		rec, err := scanStock(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (r *Repository) CountLowStock(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRow(ctx, `SELECT count(*) FROM stock_records WHERE quantity <= reorder_level`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count low stock: %w", err)
	}
	return n, nil
}

func scanStock(row pgx.Row) (domain.StockRecord, error) {
	var rec domain.StockRecord
	err := row.Scan(&rec.ProductID, &rec.Quantity, &rec.ReorderLevel, &rec.Location, &rec.LastModifiedBy, &rec.UpdatedAt)
	return rec, err
}
