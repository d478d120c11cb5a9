package application

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	orderdomain "github.com/dmehra2102/inventory-hub/internal/order/domain"
)

const recentOrders = 5

type ProductCounter interface {
	Count(ctx context.Context) (int, error)
}

type LowStockCounter interface {
	CountLow(ctx context.Context) (int, error)
}

type OrderSource interface {
	Stats(ctx context.Context) (orderdomain.Stats, error)
	Recent(ctx context.Context, limit int) ([]orderdomain.Order, error)
}

type RecentOrder struct {
	ID        string             `json:"id"`
	Total     decimal.Decimal    `json:"total"`
	Status    orderdomain.Status `json:"status"`
	CreatedBy string             `json:"createdBy"`
	CreatedAt time.Time          `json:"createdAt"`
}

type Stats struct {
	TotalProducts int             `json:"totalProducts"`
	LowStockCount int             `json:"lowStockCount"`
	TotalOrders   int             `json:"totalOrders"`
	TotalRevenue  decimal.Decimal `json:"totalRevenue"`
	RecentOrders  []RecentOrder   `json:"recentOrders"`
}

type Service struct {
	products ProductCounter
	stock    LowStockCounter
	orders   OrderSource
}

func NewService(products ProductCounter, stock LowStockCounter, orders OrderSource) *Service {
	return &Service{products: products, stock: stock, orders: orders}
}

// Stats gathers the figures concurrently; they are not a consistent snapshot.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	var (
		out    Stats
		recent []orderdomain.Order
		totals orderdomain.Stats
	)
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		out.TotalProducts, err = s.products.Count(ctx)
		return err
	})
	g.Go(func() (err error) {
		out.LowStockCount, err = s.stock.CountLow(ctx)
		return err
	})
	g.Go(func() (err error) {
		totals, err = s.orders.Stats(ctx)
		return err
	})
	g.Go(func() (err error) {
		recent, err = s.orders.Recent(ctx, recentOrders)
		return err
	})
	if err := g.Wait(); err != nil {
		return Stats{}, fmt.Errorf("dashboard stats: %w", err)
	}

	out.TotalOrders = totals.Count
	out.TotalRevenue = totals.Revenue
	out.RecentOrders = make([]RecentOrder, 0, len(recent))
	for _, o := range recent {
		out.RecentOrders = append(out.RecentOrders, RecentOrder{
			ID:        o.ID,
			Total:     o.Total,
			Status:    o.Status,
			CreatedBy: o.CreatedBy,
			CreatedAt: o.CreatedAt,
		})
	}
	return out, nil
}
