package application

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/dmehra2102/inventory-hub/internal/auth"
	catalogdomain "github.com/dmehra2102/inventory-hub/internal/catalog/domain"
	"github.com/dmehra2102/inventory-hub/internal/inventory/domain"
)

type Service struct {
	log     *slog.Logger
	tx      StockTransactor
	reader  StockReader
	catalog ProductLookup
}

func NewService(log *slog.Logger, tx StockTransactor, reader StockReader, catalog ProductLookup) *Service {
	return &Service{log: log, tx: tx, reader: reader, catalog: catalog}
}

// StockView joins a stock record with the product it counts.
type StockView struct {
	domain.StockRecord
	Name     string `json:"name"`
	SKU      string `json:"sku"`
	Category string `json:"category"`
	LowStock bool   `json:"lowStock"`
}

func newView(r domain.StockRecord, p catalogdomain.Product) StockView {
	return StockView{StockRecord: r, Name: p.Name, SKU: p.SKU, Category: p.Category, LowStock: r.LowStock()}
}

func (s *Service) Adjust(ctx context.Context, caller auth.Caller, productID string, dir domain.Direction, amount int) (AdjustResult, error) {
	if err := domain.ValidateAdjustment(dir, amount); err != nil {
		return AdjustResult{}, err
	}
	if _, err := s.catalog.Lookup(ctx, productID); err != nil {
		return AdjustResult{}, err
	}

	var res AdjustResult
	err := s.tx.WithinStockTx(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		res, err = NewLedger(tx, caller).Adjust(ctx, productID, dir, amount)
		return err
	})
	if err != nil {
		return AdjustResult{}, err
	}

	s.log.Info("stock adjusted",
		"product_id", productID,
		"direction", dir,
		"amount", amount,
		"quantity", res.Record.Quantity,
		"low_stock", res.LowStock,
		"by", caller.ID,
	)
	return res, nil
}

func (s *Service) UpdateSettings(ctx context.Context, caller auth.Caller, productID string, settings domain.Settings) (domain.StockRecord, error) {
	if err := settings.Validate(); err != nil {
		return domain.StockRecord{}, err
	}
	if _, err := s.catalog.Lookup(ctx, productID); err != nil {
		return domain.StockRecord{}, err
	}

	var rec domain.StockRecord
	err := s.tx.WithinStockTx(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		rec, err = NewLedger(tx, caller).UpdateSettings(ctx, productID, settings)
		return err
	})
	if err != nil {
		return domain.StockRecord{}, err
	}
	s.log.Info("stock settings updated", "product_id", productID, "by", caller.ID)
	return rec, nil
}

// Get returns the stock of a visible product, creating its record on first use.
func (s *Service) Get(ctx context.Context, caller auth.Caller, productID string) (StockView, error) {
	p, err := s.catalog.Lookup(ctx, productID)
	if err != nil {
		return StockView{}, err
	}

	rec, found, err := s.reader.GetStock(ctx, productID)
	if err != nil {
		return StockView{}, err
	}
	if !found {
		err = s.tx.WithinStockTx(ctx, func(ctx context.Context, tx Tx) error {
			rec, err = NewLedger(tx, caller).Ensure(ctx, productID)
			return err
		})
		if err != nil {
			return StockView{}, err
		}
	}
	return newView(rec, p), nil
}

type ListFilter struct {
	LowStock bool
	Query    string
}

// List returns stock of products still visible in the catalog.
func (s *Service) List(ctx context.Context, f ListFilter) ([]StockView, error) {
	recs, err := s.reader.ListStock(ctx, StockFilter{LowStockOnly: f.LowStock})
	if err != nil {
		return nil, err
	}

	q := strings.ToLower(strings.TrimSpace(f.Query))
	out := make([]StockView, 0, len(recs))
	for _, r := range recs {
		p, err := s.catalog.Lookup(ctx, r.ProductID)
		if errors.Is(err, catalogdomain.ErrProductNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if !p.Matches(q) {
			continue
		}
		out = append(out, newView(r, p))
	}
	return out, nil
}

func (s *Service) CountLow(ctx context.Context) (int, error) {
	return s.reader.CountLowStock(ctx)
}

// Snapshot is the read-only view served over gRPC.
type Snapshot struct {
	ProductID string    `json:"productId"`
	Quantity  int       `json:"quantity"`
	LowStock  bool      `json:"lowStock"`
	Location  string    `json:"location"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Peek reads committed stock without creating a record. Unknown products
// report zero.
func (s *Service) Peek(ctx context.Context, productID string) (Snapshot, error) {
	rec, found, err := s.reader.GetStock(ctx, productID)
	if err != nil {
		return Snapshot{}, err
	}
	if !found {
		rec = domain.NewStockRecord(productID, time.Time{})
	}
	return Snapshot{
		ProductID: rec.ProductID,
		Quantity:  rec.Quantity,
		LowStock:  rec.LowStock(),
		Location:  rec.Location,
		UpdatedAt: rec.UpdatedAt,
	}, nil
}
