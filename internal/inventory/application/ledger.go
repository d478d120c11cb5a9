package application

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/dmehra2102/inventory-hub/internal/auth"
	"github.com/dmehra2102/inventory-hub/internal/inventory/domain"
	"github.com/dmehra2102/inventory-hub/pkg/outbox"
)

// Ledger runs stock operations for one caller inside one transaction.
type Ledger struct {
	tx     Tx
	caller auth.Caller
	now    func() time.Time
}

func NewLedger(tx Tx, caller auth.Caller) *Ledger {
	return &Ledger{tx: tx, caller: caller, now: time.Now}
}

// Ensure returns the record for productID, creating a default one if needed.
func (l *Ledger) Ensure(ctx context.Context, productID string) (domain.StockRecord, error) {
	recs, err := l.tx.Stock().Lock(ctx, []string{productID})
	if err != nil {
		return domain.StockRecord{}, err
	}
	return recs[productID], nil
}

// EnsureAll ensures and locks a set of records in ascending id order, so two
// transactions touching overlapping products cannot deadlock.
func (l *Ledger) EnsureAll(ctx context.Context, productIDs []string) (map[string]domain.StockRecord, error) {
	ids := slices.Clone(productIDs)
	slices.Sort(ids)
	return l.tx.Stock().Lock(ctx, slices.Compact(ids))
}

func (l *Ledger) CheckAndReserve(ctx context.Context, productID string, qty int) (domain.StockRecord, error) {
	if qty <= 0 {
		return domain.StockRecord{}, fmt.Errorf("%w: quantity must be positive", domain.ErrInvalidAdjustment)
	}
	return l.tx.Stock().Decrement(ctx, productID, qty, l.caller.ID)
}

type AdjustResult struct {
	Record   domain.StockRecord `json:"record"`
	LowStock bool               `json:"lowStock"`
}

func (l *Ledger) Adjust(ctx context.Context, productID string, dir domain.Direction, amount int) (AdjustResult, error) {
	if err := domain.ValidateAdjustment(dir, amount); err != nil {
		return AdjustResult{}, err
	}
	cur, err := l.Ensure(ctx, productID)
	if err != nil {
		return AdjustResult{}, err
	}
	if dir == domain.DirectionIn && amount > domain.MaxQuantity-cur.Quantity {
		return AdjustResult{}, fmt.Errorf("%w: quantity would exceed %d", domain.ErrInvalidAdjustment, domain.MaxQuantity)
	}

	var rec domain.StockRecord
	if dir == domain.DirectionIn {
		rec, err = l.tx.Stock().Increment(ctx, productID, amount, l.caller.ID)
	} else {
		rec, err = l.tx.Stock().Decrement(ctx, productID, amount, l.caller.ID)
	}
	if err != nil {
		return AdjustResult{}, err
	}

	ev, err := outbox.NewEvent(ctx, "stock", productID, "StockAdjusted", domain.StockAdjusted{
		ProductID:  productID,
		Direction:  dir,
		Amount:     amount,
		Quantity:   rec.Quantity,
		LowStock:   rec.LowStock(),
		AdjustedBy: l.caller.ID,
		At:         l.now().UTC(),
	})
	if err != nil {
		return AdjustResult{}, err
	}
	if err := l.tx.Outbox().Append(ctx, ev); err != nil {
		return AdjustResult{}, err
	}
	return AdjustResult{Record: rec, LowStock: rec.LowStock()}, nil
}

func (l *Ledger) UpdateSettings(ctx context.Context, productID string, s domain.Settings) (domain.StockRecord, error) {
	if err := s.Validate(); err != nil {
		return domain.StockRecord{}, err
	}
	if _, err := l.Ensure(ctx, productID); err != nil {
		return domain.StockRecord{}, err
	}
	return l.tx.Stock().UpdateSettings(ctx, productID, s, l.caller.ID)
}
