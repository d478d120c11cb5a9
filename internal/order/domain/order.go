package domain

import (
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dmehra2102/inventory-hub/internal/auth"
)

type Status string

const (
	StatusPlaced     Status = "placed"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

// ParseStatus only checks enum membership; any status may follow any other.
func ParseStatus(s string) (Status, error) {
	switch st := Status(s); st {
	case StatusPlaced, StatusProcessing, StatusCompleted, StatusCancelled:
		return st, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
}

// LineItem freezes the product fields as they were when the order was placed.
type LineItem struct {
	ProductID string          `json:"productId"`
	Name      string          `json:"name"`
	SKU       string          `json:"sku"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
}

func (l LineItem) Total() decimal.Decimal {
	return l.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

type Order struct {
	ID        string          `json:"id"`
	Items     []LineItem      `json:"items"`
	SubTotal  decimal.Decimal `json:"subTotal"`
	Tax       decimal.Decimal `json:"tax"`
	Discount  decimal.Decimal `json:"discount"`
	Total     decimal.Decimal `json:"total"`
	Status    Status          `json:"status"`
	Notes     string          `json:"notes"`
	CreatedBy string          `json:"createdBy"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// MaxQuantity is the largest quantity one line item may request.
const MaxQuantity = math.MaxInt32

func SubTotal(items []LineItem) decimal.Decimal {
	sum := decimal.Zero
	for _, it := range items {
		sum = sum.Add(it.Total())
	}
	return sum
}

// Total is subTotal + tax - discount, never below zero.
func Total(subTotal, tax, discount decimal.Decimal) decimal.Decimal {
	t := subTotal.Add(tax).Sub(discount)
	if t.IsNegative() {
		return decimal.Zero
	}
	return t
}

func (o Order) VisibleTo(c auth.Caller) bool {
	return c.IsAdmin() || o.CreatedBy == c.ID
}

type ListFilter struct {
	// CreatedBy restricts the list to one creator when non-empty.
	CreatedBy string
	Limit     int
}

// Stats aggregates every order ever placed.
type Stats struct {
	Count   int             `json:"totalOrders"`
	Revenue decimal.Decimal `json:"totalRevenue"`
}
