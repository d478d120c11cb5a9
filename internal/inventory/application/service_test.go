package application_test

import (
	"context"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/dmehra2102/inventory-hub/internal/auth"
	catalogapp "github.com/dmehra2102/inventory-hub/internal/catalog/application"
	catalogdomain "github.com/dmehra2102/inventory-hub/internal/catalog/domain"
	"github.com/dmehra2102/inventory-hub/internal/inventory/application"
	"github.com/dmehra2102/inventory-hub/internal/inventory/domain"
	"github.com/dmehra2102/inventory-hub/internal/storage/memory"
	"github.com/dmehra2102/inventory-hub/pkg/logging"
)

var admin = auth.Caller{ID: "admin-1", Role: auth.RoleAdmin}

type fixture struct {
	store   *memory.Store
	catalog *catalogapp.Service
	svc     *application.Service
}

func newFixture() *fixture {
	store := memory.New()
	catalog := catalogapp.NewService(logging.Discard(), store, nil)
	return &fixture{
		store:   store,
		catalog: catalog,
		svc:     application.NewService(logging.Discard(), store, store, catalog),
	}
}

func (f *fixture) product(t testing.TB, name string) catalogdomain.Product {
	p, err := f.catalog.Create(context.Background(), admin, catalogapp.CreateProduct{
		Name:     name,
		SKU:      name,
		Category: "Tools",
		Price:    decimal.NewFromInt(1),
	})
	require.NoError(t, err)
	return p
}

func TestAdjustInAndOut(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	p := f.product(t, "Hammer")

	res, err := f.svc.Adjust(ctx, admin, p.ID, domain.DirectionIn, 15)
	require.NoError(t, err)
	assert.Equal(t, 15, res.Record.Quantity)
	assert.False(t, res.LowStock)
	assert.Equal(t, "admin-1", res.Record.LastModifiedBy)

	res, err = f.svc.Adjust(ctx, admin, p.ID, domain.DirectionOut, 5)
	require.NoError(t, err)
	assert.Equal(t, 10, res.Record.Quantity)
	assert.True(t, res.LowStock)

	_, err = f.svc.Adjust(ctx, admin, p.ID, domain.DirectionOut, 11)
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)

	view, err := f.svc.Get(ctx, admin, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, view.Quantity)
	assert.Equal(t, "Hammer", view.Name)

	events := f.store.Outbox().Events()
	require.Len(t, events, 2)
	assert.Equal(t, "StockAdjusted", events[1].Type)
	assert.JSONEq(t, `true`, jsonField(t, events[1].Payload, "lowStock"))
}

func TestAdjustValidation(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	p := f.product(t, "Saw")

	_, err := f.svc.Adjust(ctx, admin, p.ID, "sideways", 1)
	assert.ErrorIs(t, err, domain.ErrInvalidAdjustment)
	_, err = f.svc.Adjust(ctx, admin, p.ID, domain.DirectionIn, 0)
	assert.ErrorIs(t, err, domain.ErrInvalidAdjustment)
	_, err = f.svc.Adjust(ctx, admin, "unknown", domain.DirectionIn, 1)
	assert.ErrorIs(t, err, catalogdomain.ErrProductNotFound)
}

func TestAdjustInRefusesOverflow(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	p := f.product(t, "Nails")

	_, err := f.svc.Adjust(ctx, admin, p.ID, domain.DirectionIn, 100)
	require.NoError(t, err)

	_, err = f.svc.Adjust(ctx, admin, p.ID, domain.DirectionIn, domain.MaxQuantity-99)
	require.ErrorIs(t, err, domain.ErrInvalidAdjustment)
	_, err = f.svc.Adjust(ctx, admin, p.ID, domain.DirectionIn, domain.MaxQuantity+1)
	require.ErrorIs(t, err, domain.ErrInvalidAdjustment)

	res, err := f.svc.Adjust(ctx, admin, p.ID, domain.DirectionIn, domain.MaxQuantity-100)
	require.NoError(t, err)
	assert.Equal(t, domain.MaxQuantity, res.Record.Quantity)
}

func TestUpdateSettingsLeavesQuantity(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	p := f.product(t, "Drill")
	_, err := f.svc.Adjust(ctx, admin, p.ID, domain.DirectionIn, 4)
	require.NoError(t, err)

	level, loc := 2, "Warehouse B"
	rec, err := f.svc.UpdateSettings(ctx, admin, p.ID, domain.Settings{ReorderLevel: &level, Location: &loc})
	require.NoError(t, err)
	assert.Equal(t, 4, rec.Quantity)
	assert.Equal(t, 2, rec.ReorderLevel)
	assert.Equal(t, "Warehouse B", rec.Location)
	assert.False(t, rec.LowStock())

	neg := -3
	_, err = f.svc.UpdateSettings(ctx, admin, p.ID, domain.Settings{ReorderLevel: &neg})
	assert.ErrorIs(t, err, domain.ErrInvalidAdjustment)
}

func TestGetCreatesDefaultRecord(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	p := f.product(t, "Level")

	view, err := f.svc.Get(ctx, admin, p.ID)
	require.NoError(t, err)
	assert.Zero(t, view.Quantity)
	assert.Equal(t, domain.DefaultLocation, view.Location)
	assert.True(t, view.LowStock)

	_, found, err := f.store.GetStock(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, found)
}

func TestListHidesDeletedProductsAndFilters(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	wrench := f.product(t, "Wrench")
	pliers := f.product(t, "Pliers")
	gone := f.product(t, "Chisel")

	_, err := f.svc.Adjust(ctx, admin, wrench.ID, domain.DirectionIn, 50)
	require.NoError(t, err)
	_, err = f.svc.Adjust(ctx, admin, pliers.ID, domain.DirectionIn, 3)
	require.NoError(t, err)
	_, err = f.svc.Adjust(ctx, admin, gone.ID, domain.DirectionIn, 1)
	require.NoError(t, err)
	require.NoError(t, f.catalog.Delete(ctx, gone.ID))

	all, err := f.svc.List(ctx, application.ListFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	low, err := f.svc.List(ctx, application.ListFilter{LowStock: true})
	require.NoError(t, err)
	require.Len(t, low, 1)
	assert.Equal(t, pliers.ID, low[0].ProductID)

	byName, err := f.svc.List(ctx, application.ListFilter{Query: "WRE"})
	require.NoError(t, err)
	require.Len(t, byName, 1)
	assert.Equal(t, wrench.ID, byName[0].ProductID)

	n, err := f.svc.CountLow(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n, "stock of hidden products still counts toward low stock")
}

func TestConcurrentAdjustOutNeverOversells(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	p := f.product(t, "Nail")
	_, err := f.svc.Adjust(ctx, admin, p.ID, domain.DirectionIn, 10)
	require.NoError(t, err)

	var (
		wg sync.WaitGroup
		mu sync.Mutex
		ok int
	)
	for range 25 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.svc.Adjust(ctx, admin, p.ID, domain.DirectionOut, 1); err == nil {
				mu.Lock()
				ok++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, ok)
	view, err := f.svc.Get(ctx, admin, p.ID)
	require.NoError(t, err)
	assert.Zero(t, view.Quantity)
}

func TestQuantityNeverNegative(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		store := memory.New()
		ctx := context.Background()
		ids := []string{"a", "b", "c"}
		model := map[string]int{}

		steps := rapid.IntRange(1, 40).Draw(t, "steps")
		for range steps {
			id := rapid.SampledFrom(ids).Draw(t, "product")
			dir := rapid.SampledFrom([]domain.Direction{domain.DirectionIn, domain.DirectionOut}).Draw(t, "direction")
			amount := rapid.IntRange(1, 20).Draw(t, "amount")

			err := store.WithinStockTx(ctx, func(ctx context.Context, tx application.Tx) error {
				_, err := application.NewLedger(tx, admin).Adjust(ctx, id, dir, amount)
				return err
			})

			switch {
			case dir == domain.DirectionIn:
				if err != nil {
					t.Fatalf("stock in failed: %v", err)
				}
				model[id] += amount
			case model[id] >= amount:
				if err != nil {
					t.Fatalf("stock out of %d with %d available failed: %v", amount, model[id], err)
				}
				model[id] -= amount
			default:
				if err == nil {
					t.Fatalf("stock out of %d with %d available succeeded", amount, model[id])
				}
			}

			rec, _, err := store.GetStock(ctx, id)
			if err != nil {
				t.Fatal(err)
			}
			if rec.Quantity < 0 || rec.Quantity != model[id] {
				t.Fatalf("quantity %d, model %d", rec.Quantity, model[id])
			}
		}
	})
}
