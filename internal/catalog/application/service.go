package application

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dmehra2102/inventory-hub/internal/auth"
	"github.com/dmehra2102/inventory-hub/internal/catalog/domain"
)

type Service struct {
	log   *slog.Logger
	repo  ProductRepository
	cache Cache
	now   func() time.Time
}

// NewService builds the catalog service. cache may be nil.
func NewService(log *slog.Logger, repo ProductRepository, cache Cache) *Service {
	return &Service{log: log, repo: repo, cache: cache, now: time.Now}
}

type CreateProduct struct {
	Name     string
	SKU      string
	Category string
	Price    decimal.Decimal
	Status   domain.Status
}

func (s *Service) Create(ctx context.Context, caller auth.Caller, in CreateProduct) (domain.Product, error) {
	now := s.now().UTC()
	p := domain.Product{
		ID:        uuid.NewString(),
		Name:      strings.TrimSpace(in.Name),
		SKU:       domain.NormalizeSKU(in.SKU),
		Category:  strings.TrimSpace(in.Category),
		Price:     in.Price,
		Status:    in.Status,
		CreatedBy: caller.ID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if p.Category == "" {
		p.Category = "General"
	}
	if p.Status == "" {
		p.Status = domain.StatusActive
	}
	if err := validate(p); err != nil {
		return domain.Product{}, err
	}

	if err := s.repo.Create(ctx, p); err != nil {
		return domain.Product{}, err
	}
	s.log.Info("product created", "product_id", p.ID, "sku", p.SKU)
	return p, nil
}

// UpdateProduct is a partial update; nil fields are left unchanged.
type UpdateProduct struct {
	Name     *string          `json:"name"`
	SKU      *string          `json:"sku"`
	Category *string          `json:"category"`
	Price    *decimal.Decimal `json:"price"`
	Status   *domain.Status   `json:"status"`
}

// Update edits a visible product. Orders already placed keep their snapshots.
func (s *Service) Update(ctx context.Context, id string, in UpdateProduct) (domain.Product, error) {
	p, err := s.repo.Get(ctx, id)
	if err != nil {
		return domain.Product{}, err
	}
	if in.Name != nil {
		p.Name = strings.TrimSpace(*in.Name)
	}
	if in.SKU != nil {
		p.SKU = domain.NormalizeSKU(*in.SKU)
	}
	if in.Category != nil {
		p.Category = strings.TrimSpace(*in.Category)
	}
	if in.Price != nil {
		p.Price = *in.Price
	}
	if in.Status != nil {
		p.Status = *in.Status
	}
	if err := validate(p); err != nil {
		return domain.Product{}, err
	}

	p.UpdatedAt = s.now().UTC()
	if err := s.repo.Update(ctx, p); err != nil {
		return domain.Product{}, err
	}
	s.invalidate(ctx, id)
	s.log.Info("product updated", "product_id", id)
	return p, nil
}

func validate(p domain.Product) error {
	if p.Name == "" || p.SKU == "" {
		return fmt.Errorf("%w: name and sku are required", domain.ErrInvalidProduct)
	}
	if !domain.ValidAmount(p.Price) {
		return fmt.Errorf("%w: price must be between 0 and %s with at most %d decimals", domain.ErrInvalidProduct, domain.MaxAmount, domain.MoneyScale)
	}
	switch p.Status {
	case domain.StatusActive, domain.StatusInactive:
	default:
		return fmt.Errorf("%w: unknown status %q", domain.ErrInvalidProduct, p.Status)
	}
	return nil
}

// Lookup resolves a visible product, going through the cache when one is configured.
func (s *Service) Lookup(ctx context.Context, id string) (domain.Product, error) {
	if s.cache == nil {
		return s.repo.Get(ctx, id)
	}
	return s.cache.Get(ctx, id, s.repo.Get)
}

// Resolve reads a visible product from the repository, skipping the cache.
// Order placement uses it so a deleted product or an old price is never acted on.
func (s *Service) Resolve(ctx context.Context, id string) (domain.Product, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, f domain.ListFilter) (domain.Page, error) {
	f = f.Normalize()
	items, total, err := s.repo.List(ctx, f)
	if err != nil {
		return domain.Page{}, err
	}
	return domain.NewPage(items, f, total), nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.repo.SoftDelete(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx, id)
	s.log.Info("product deleted", "product_id", id)
	return nil
}

func (s *Service) invalidate(ctx context.Context, id string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, id); err != nil {
		s.log.Warn("product cache invalidate failed", "product_id", id, "err", err)
	}
}

func (s *Service) Count(ctx context.Context) (int, error) {
	return s.repo.Count(ctx)
}
