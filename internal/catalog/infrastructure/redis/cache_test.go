package redis

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmehra2102/inventory-hub/internal/catalog/domain"
	"github.com/dmehra2102/inventory-hub/pkg/logging"
)

func sampleProduct() domain.Product {
	return domain.Product{
		ID:     "p1",
		Name:   "Widget",
		SKU:    "W-1",
		Price:  decimal.RequireFromString("10.50"),
		Status: domain.StatusActive,
	}
}

func TestCacheHit(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	c := NewCache(logging.Discard(), rdb, time.Minute)

	raw, err := json.Marshal(sampleProduct())
	require.NoError(t, err)
	mock.ExpectGet("product:p1").SetVal(string(raw))

	p, err := c.Get(context.Background(), "p1", func(context.Context, string) (domain.Product, error) {
		t.Fatal("loader must not run on a hit")
		return domain.Product{}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "Widget", p.Name)
	assert.True(t, p.Price.Equal(decimal.RequireFromString("10.5")))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCacheMissLoadsAndStores(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	c := NewCache(logging.Discard(), rdb, time.Minute)

	want := sampleProduct()
	raw, err := json.Marshal(want)
	require.NoError(t, err)
	mock.ExpectGet("product:p1").RedisNil()
	mock.ExpectSetNX("product:p1", raw, time.Minute).SetVal(true)

	calls := 0
	p, err := c.Get(context.Background(), "p1", func(context.Context, string) (domain.Product, error) {
		calls++
		return want, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, want.ID, p.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCacheMissPropagatesNotFound(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	c := NewCache(logging.Discard(), rdb, time.Minute)

	mock.ExpectGet("product:gone").RedisNil()

	_, err := c.Get(context.Background(), "gone", func(context.Context, string) (domain.Product, error) {
		return domain.Product{}, domain.ErrProductNotFound
	})
	assert.ErrorIs(t, err, domain.ErrProductNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCacheReadErrorFallsBackToLoader(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	c := NewCache(logging.Discard(), rdb, time.Minute)

	want := sampleProduct()
	raw, err := json.Marshal(want)
	require.NoError(t, err)
	mock.ExpectGet("product:p1").SetErr(errors.New("connection refused"))
	mock.ExpectSetNX("product:p1", raw, time.Minute).SetErr(errors.New("connection refused"))

	p, err := c.Get(context.Background(), "p1", func(context.Context, string) (domain.Product, error) {
		return want, nil
	})
	require.NoError(t, err)
	assert.Equal(t, want.Name, p.Name)
}

func TestCacheInvalidate(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	c := NewCache(logging.Discard(), rdb, time.Minute)

	mock.ExpectSet("product:p1", tombstone, TombstoneTTL).SetVal("OK")
	require.NoError(t, c.Invalidate(context.Background(), "p1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCacheFillAfterInvalidateIsRefused(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	c := NewCache(logging.Discard(), rdb, time.Minute)
	ctx := context.Background()

	stale := sampleProduct()
	raw, err := json.Marshal(stale)
	require.NoError(t, err)

	// The product is deleted between the loader's read and the cache fill.
	mock.ExpectGet("product:p1").RedisNil()
	mock.ExpectSet("product:p1", tombstone, TombstoneTTL).SetVal("OK")
	mock.ExpectSetNX("product:p1", raw, time.Minute).SetVal(false)

	p, err := c.Get(ctx, "p1", func(ctx context.Context, id string) (domain.Product, error) {
		require.NoError(t, c.Invalidate(ctx, id))
		return stale, nil
	})
	require.NoError(t, err)
	assert.Equal(t, stale.ID, p.ID)
	require.NoError(t, mock.ExpectationsWereMet())

	// While the tombstone lives, reads go to the repository.
	mock.ExpectGet("product:p1").SetVal(tombstone)

	_, err = c.Get(ctx, "p1", func(context.Context, string) (domain.Product, error) {
		return domain.Product{}, domain.ErrProductNotFound
	})
	assert.ErrorIs(t, err, domain.ErrProductNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
