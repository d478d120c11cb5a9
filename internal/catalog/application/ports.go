package application

import (
	"context"

	"github.com/dmehra2102/inventory-hub/internal/catalog/domain"
)

// ProductRepository never returns soft-deleted products from Get or List.
type ProductRepository interface {
	Create(ctx context.Context, p domain.Product) error
	Get(ctx context.Context, id string) (domain.Product, error)
	Update(ctx context.Context, p domain.Product) error
	List(ctx context.Context, f domain.ListFilter) ([]domain.Product, int, error)
	SoftDelete(ctx context.Context, id string) error
	Count(ctx context.Context) (int, error)
}

type LoadFunc func(ctx context.Context, id string) (domain.Product, error)

type Cache interface {
	Get(ctx context.Context, id string, load LoadFunc) (domain.Product, error)
	Invalidate(ctx context.Context, id string) error
}
