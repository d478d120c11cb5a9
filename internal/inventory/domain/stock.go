package domain

import (
	"errors"
	"fmt"
	"math"
	"time"
)

const (
	DefaultReorderLevel = 10
	DefaultLocation     = "Main"
)

var (
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalidAdjustment = errors.New("invalid stock adjustment")
)

// StockRecord tracks the physical quantity of one product. A product with no
// record has zero stock.
type StockRecord struct {
	ProductID      string    `json:"productId"`
	Quantity       int       `json:"quantity"`
	ReorderLevel   int       `json:"reorderLevel"`
	Location       string    `json:"location"`
	LastModifiedBy string    `json:"lastModifiedBy,omitempty"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

func NewStockRecord(productID string, now time.Time) StockRecord {
	return StockRecord{
		ProductID:    productID,
		ReorderLevel: DefaultReorderLevel,
		Location:     DefaultLocation,
		UpdatedAt:    now,
	}
}

// LowStock reports quantity at or below the reorder level.
func (r StockRecord) LowStock() bool { return r.Quantity <= r.ReorderLevel }

type Direction string

const (
	DirectionIn  Direction = "in"
	DirectionOut Direction = "out"
)

func (d Direction) Valid() bool { return d == DirectionIn || d == DirectionOut }

// MaxQuantity bounds a stock quantity; the column is a 32-bit integer.
const MaxQuantity = math.MaxInt32

func ValidateAdjustment(dir Direction, amount int) error {
	if !dir.Valid() {
		return fmt.Errorf("%w: type must be 'in' or 'out'", ErrInvalidAdjustment)
	}
	if amount <= 0 || amount > MaxQuantity {
		return fmt.Errorf("%w: amount must be between 1 and %d", ErrInvalidAdjustment, MaxQuantity)
	}
	return nil
}

// InsufficientStockError matches ErrInsufficientStock with errors.Is.
type InsufficientStockError struct {
	ProductID   string
	ProductName string
	Available   int
	Required    int
}

func (e *InsufficientStockError) Error() string {
	name := e.ProductName
	if name == "" {
		name = e.ProductID
	}
	return fmt.Sprintf("insufficient stock for %s: available %d, required %d", name, e.Available, e.Required)
}

func (e *InsufficientStockError) Is(target error) bool { return target == ErrInsufficientStock }

// Settings is a partial update; nil fields are left unchanged.
type Settings struct {
	ReorderLevel *int    `json:"reorderLevel,omitempty"`
	Location     *string `json:"location,omitempty"`
}

func (s Settings) Validate() error {
	if s.ReorderLevel != nil && *s.ReorderLevel < 0 {
		return fmt.Errorf("%w: reorder level must be >= 0", ErrInvalidAdjustment)
	}
	return nil
}

func (s Settings) Apply(r StockRecord) StockRecord {
	if s.ReorderLevel != nil {
		r.ReorderLevel = *s.ReorderLevel
	}
	if s.Location != nil {
		r.Location = *s.Location
	}
	return r
}

// StockAdjusted is published whenever quantity changes outside order placement.
type StockAdjusted struct {
	ProductID  string    `json:"productId"`
	Direction  Direction `json:"direction"`
	Amount     int       `json:"amount"`
	Quantity   int       `json:"quantity"`
	LowStock   bool      `json:"lowStock"`
	AdjustedBy string    `json:"adjustedBy"`
	At         time.Time `json:"at"`
}
