package application

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmehra2102/inventory-hub/internal/auth"
	"github.com/dmehra2102/inventory-hub/internal/catalog/domain"
	"github.com/dmehra2102/inventory-hub/pkg/logging"
)

type fakeRepo struct {
	mu       sync.Mutex
	products map[string]domain.Product
	gets     int
}

func newFakeRepo() *fakeRepo { return &fakeRepo{products: map[string]domain.Product{}} }

func (r *fakeRepo) Create(_ context.Context, p domain.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.products {
		if existing.SKU == p.SKU && !existing.Deleted {
			return domain.ErrDuplicateSKU
		}
	}
	r.products[p.ID] = p
	return nil
}

func (r *fakeRepo) Get(_ context.Context, id string) (domain.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gets++
	p, ok := r.products[id]
	if !ok || p.Deleted {
		return domain.Product{}, domain.ErrProductNotFound
	}
	return p, nil
}

func (r *fakeRepo) Update(_ context.Context, p domain.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, existing := range r.products {
		if id != p.ID && existing.SKU == p.SKU {
			return domain.ErrDuplicateSKU
		}
	}
	r.products[p.ID] = p
	return nil
}

func (r *fakeRepo) List(_ context.Context, f domain.ListFilter) ([]domain.Product, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Product
	for _, p := range r.products {
		if !p.Deleted && p.Matches(f.Query) {
			out = append(out, p)
		}
	}
	return out, len(out), nil
}

func (r *fakeRepo) SoftDelete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.products[id]
	if !ok || p.Deleted {
		return domain.ErrProductNotFound
	}
	p.Deleted = true
	r.products[id] = p
	return nil
}

func (r *fakeRepo) Count(_ context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, p := range r.products {
		if !p.Deleted {
			n++
		}
	}
	return n, nil
}

type mapCache struct {
	entries     map[string]domain.Product
	invalidated []string
}

func (c *mapCache) Get(ctx context.Context, id string, load LoadFunc) (domain.Product, error) {
	if p, ok := c.entries[id]; ok {
		return p, nil
	}
	p, err := load(ctx, id)
	if err != nil {
		return domain.Product{}, err
	}
	c.entries[id] = p
	return p, nil
}

func (c *mapCache) Invalidate(_ context.Context, id string) error {
	delete(c.entries, id)
	c.invalidated = append(c.invalidated, id)
	return nil
}

var admin = auth.Caller{ID: "u-admin", Role: auth.RoleAdmin}

func TestCreateAppliesDefaults(t *testing.T) {
	svc := NewService(logging.Discard(), newFakeRepo(), nil)
	fixed := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }

	p, err := svc.Create(context.Background(), admin, CreateProduct{
		Name:  "  Blue Mug ",
		SKU:   " mug-01 ",
		Price: decimal.RequireFromString("4.25"),
	})
	require.NoError(t, err)
	assert.NotEmpty(t, p.ID)
	assert.Equal(t, "Blue Mug", p.Name)
	assert.Equal(t, "MUG-01", p.SKU)
	assert.Equal(t, "General", p.Category)
	assert.Equal(t, domain.StatusActive, p.Status)
	assert.Equal(t, "u-admin", p.CreatedBy)
	assert.Equal(t, fixed, p.CreatedAt)
}

func TestCreateRejectsInvalidInput(t *testing.T) {
	svc := NewService(logging.Discard(), newFakeRepo(), nil)
	cases := map[string]CreateProduct{
		"missing name":   {SKU: "A", Price: decimal.NewFromInt(1)},
		"missing sku":    {Name: "A", Price: decimal.NewFromInt(1)},
		"negative price": {Name: "A", SKU: "A", Price: decimal.NewFromInt(-1)},
		"bad status":     {Name: "A", SKU: "A", Price: decimal.NewFromInt(1), Status: "archived"},
		"sub-cent price": {Name: "A", SKU: "A", Price: decimal.RequireFromString("0.005")},
		"huge price":     {Name: "A", SKU: "A", Price: decimal.RequireFromString("1000000000000")},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), admin, in)
			assert.ErrorIs(t, err, domain.ErrInvalidProduct)
		})
	}
}

func TestCreateDuplicateSKU(t *testing.T) {
	svc := NewService(logging.Discard(), newFakeRepo(), nil)
	in := CreateProduct{Name: "A", SKU: "dup", Price: decimal.NewFromInt(1)}
	_, err := svc.Create(context.Background(), admin, in)
	require.NoError(t, err)
	_, err = svc.Create(context.Background(), admin, in)
	assert.ErrorIs(t, err, domain.ErrDuplicateSKU)
}

func TestLookupUsesCache(t *testing.T) {
	repo := newFakeRepo()
	cache := &mapCache{entries: map[string]domain.Product{}}
	svc := NewService(logging.Discard(), repo, cache)

	p, err := svc.Create(context.Background(), admin, CreateProduct{Name: "A", SKU: "A", Price: decimal.NewFromInt(1)})
	require.NoError(t, err)

	for range 3 {
		got, err := svc.Lookup(context.Background(), p.ID)
		require.NoError(t, err)
		assert.Equal(t, p.ID, got.ID)
	}
	assert.Equal(t, 1, repo.gets)
}

func TestResolveSkipsStaleCacheEntry(t *testing.T) {
	repo := newFakeRepo()
	cache := &mapCache{entries: map[string]domain.Product{}}
	svc := NewService(logging.Discard(), repo, cache)
	ctx := context.Background()

	p, err := svc.Create(ctx, admin, CreateProduct{Name: "A", SKU: "A", Price: decimal.NewFromInt(1)})
	require.NoError(t, err)
	require.NoError(t, svc.Delete(ctx, p.ID))
	// A fill that lost the race with Delete left the old product behind.
	cache.entries[p.ID] = p

	_, err = svc.Lookup(ctx, p.ID)
	require.NoError(t, err)
	_, err = svc.Resolve(ctx, p.ID)
	assert.ErrorIs(t, err, domain.ErrProductNotFound)
}

func TestDeleteHidesProductAndInvalidates(t *testing.T) {
	repo := newFakeRepo()
	cache := &mapCache{entries: map[string]domain.Product{}}
	svc := NewService(logging.Discard(), repo, cache)
	ctx := context.Background()

	p, err := svc.Create(ctx, admin, CreateProduct{Name: "A", SKU: "A", Price: decimal.NewFromInt(1)})
	require.NoError(t, err)
	_, err = svc.Lookup(ctx, p.ID)
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, p.ID))
	assert.Equal(t, []string{p.ID}, cache.invalidated)

	_, err = svc.Lookup(ctx, p.ID)
	assert.ErrorIs(t, err, domain.ErrProductNotFound)
	assert.ErrorIs(t, svc.Delete(ctx, p.ID), domain.ErrProductNotFound)

	n, err := svc.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestListNormalizesPaging(t *testing.T) {
	svc := NewService(logging.Discard(), newFakeRepo(), nil)
	page, err := svc.List(context.Background(), domain.ListFilter{Page: -3, Limit: 500})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, 100, page.Limit)
	assert.NotNil(t, page.Items)
	assert.Zero(t, page.TotalPages)
}

func TestUpdateAppliesPartialChanges(t *testing.T) {
	repo := newFakeRepo()
	cache := &mapCache{entries: map[string]domain.Product{}}
	svc := NewService(logging.Discard(), repo, cache)
	ctx := context.Background()

	p, err := svc.Create(ctx, admin, CreateProduct{Name: "Mug", SKU: "mug", Price: decimal.NewFromInt(3)})
	require.NoError(t, err)
	other, err := svc.Create(ctx, admin, CreateProduct{Name: "Bowl", SKU: "bowl", Price: decimal.NewFromInt(4)})
	require.NoError(t, err)

	price := decimal.RequireFromString("3.75")
	got, err := svc.Update(ctx, p.ID, UpdateProduct{Price: &price})
	require.NoError(t, err)
	assert.True(t, got.Price.Equal(price))
	assert.Equal(t, "Mug", got.Name)
	assert.Contains(t, cache.invalidated, p.ID)

	sku := " bowl "
	_, err = svc.Update(ctx, p.ID, UpdateProduct{SKU: &sku})
	assert.ErrorIs(t, err, domain.ErrDuplicateSKU)

	bad := domain.Status("archived")
	_, err = svc.Update(ctx, other.ID, UpdateProduct{Status: &bad})
	assert.ErrorIs(t, err, domain.ErrInvalidProduct)

	_, err = svc.Update(ctx, "missing", UpdateProduct{})
	assert.ErrorIs(t, err, domain.ErrProductNotFound)
}
