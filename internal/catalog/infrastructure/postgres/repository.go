package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/dmehra2102/inventory-hub/internal/catalog/domain"
	"github.com/dmehra2102/inventory-hub/pkg/postgres"
)

type Repository struct {
	log *slog.Logger
	db  postgres.DBTX
}

func NewRepository(log *slog.Logger, db postgres.DBTX) *Repository {
	return &Repository{log: log, db: db}
}

const (
	productColumns = `id, name, sku, category, price, status, deleted, created_by, created_at, updated_at`
	selectColumns  = `id::text, name, sku, category, price, status, deleted, created_by, created_at, updated_at`
)

func (r *Repository) Create(ctx context.Context, p domain.Product) error {
	_, err := r.db.Exec(ctx, `INSERT INTO products (`+productColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,false,$7,$8,$9)`,
		p.ID, p.Name, p.SKU, p.Category, p.Price, p.Status, p.CreatedBy, p.CreatedAt, p.UpdatedAt)
	if postgres.IsUniqueViolation(err) {
		return domain.ErrDuplicateSKU
	}
	if err != nil {
		return fmt.Errorf("insert product: %w", err)
	}
	return nil
}

func (r *Repository) Get(ctx context.Context, id string) (domain.Product, error) {
	if !validID(id) {
		return domain.Product{}, fmt.Errorf("%w: %s", domain.ErrProductNotFound, id)
	}
	row := r.db.QueryRow(ctx, `SELECT `+selectColumns+` FROM products WHERE id = $1 AND deleted = false`, id)
	p, err := scanProduct(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Product{}, fmt.Errorf("%w: %s", domain.ErrProductNotFound, id)
	}
	if err != nil {
		return domain.Product{}, fmt.Errorf("get product: %w", err)
	}
	return p, nil
}

func (r *Repository) Update(ctx context.Context, p domain.Product) error {
	ct, err := r.db.Exec(ctx, `UPDATE products
		SET name = $2, sku = $3, category = $4, price = $5, status = $6, updated_at = $7
		WHERE id = $1 AND deleted = false`,
		p.ID, p.Name, p.SKU, p.Category, p.Price, p.Status, p.UpdatedAt)
	if postgres.IsUniqueViolation(err) {
		return domain.ErrDuplicateSKU
	}
	if err != nil {
		return fmt.Errorf("update product: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", domain.ErrProductNotFound, p.ID)
	}
	return nil
}

func (r *Repository) List(ctx context.Context, f domain.ListFilter) ([]domain.Product, int, error) {
	where, args := listWhere(f)

	var total int
	if err := r.db.QueryRow(ctx, `SELECT count(*) FROM products WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count products: %w", err)
	}

	args = append(args, f.Limit, f.Offset())
	rows, err := r.db.Query(ctx, fmt.Sprintf(`SELECT %s FROM products WHERE %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		selectColumns, where, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	var items []domain.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, p)
	}
	return items, total, rows.Err()
}

func listWhere(f domain.ListFilter) (string, []any) {
	clauses := []string{"deleted = false"}
	var args []any
	if f.Query != "" {
		args = append(args, "%"+f.Query+"%")
		n := len(args)
		clauses = append(clauses, fmt.Sprintf("(name ILIKE $%d OR sku ILIKE $%d OR category ILIKE $%d)", n, n, n))
	}
	if f.Status != "" {
		args = append(args, f.Status)
		clauses = append(clauses, fmt.Sprintf("status = $%d", len(args)))
	}
	if f.Category != "" {
		args = append(args, f.Category)
		clauses = append(clauses, fmt.Sprintf("category = $%d", len(args)))
	}
	return strings.Join(clauses, " AND "), args
}

func (r *Repository) SoftDelete(ctx context.Context, id string) error {
	if !validID(id) {
		return fmt.Errorf("%w: %s", domain.ErrProductNotFound, id)
	}
	ct, err := r.db.Exec(ctx, `UPDATE products SET deleted = true, updated_at = now() WHERE id = $1 AND deleted = false`, id)
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", domain.ErrProductNotFound, id)
	}
	return nil
}

func (r *Repository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRow(ctx, `SELECT count(*) FROM products WHERE deleted = false`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count products: %w", err)
	}
	return n, nil
}

func scanProduct(row pgx.Row) (domain.Product, error) {
	var p domain.Product
	err := row.Scan(&p.ID, &p.Name, &p.SKU, &p.Category, &p.Price, &p.Status, &p.Deleted, &p.CreatedBy, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return domain.Product{}, err
	}
	return p, nil
}

// validID guards the uuid column from malformed ids, which are simply unknown.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
