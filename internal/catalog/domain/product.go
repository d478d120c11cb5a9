package domain

import (
	"errors"
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrProductNotFound = errors.New("product not found")
	ErrInvalidProduct  = errors.New("invalid product")
	ErrDuplicateSKU    = errors.New("sku already exists")
)

type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

type Product struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	SKU       string          `json:"sku"`
	Category  string          `json:"category"`
	Price     decimal.Decimal `json:"price"`
	Status    Status          `json:"status"`
	Deleted   bool            `json:"-"`
	CreatedBy string          `json:"createdBy"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

func (p Product) Active() bool { return p.Status == StatusActive }

// NormalizeSKU trims and upper-cases a stock keeping unit.
func NormalizeSKU(sku string) string {
	return strings.ToUpper(strings.TrimSpace(sku))
}

// Matches reports whether q (already lower-cased) occurs in the name, sku or category.
func (p Product) Matches(q string) bool {
	if q == "" {
		return true
	}
	return strings.Contains(strings.ToLower(p.Name), q) ||
		strings.Contains(strings.ToLower(p.SKU), q) ||
		strings.Contains(strings.ToLower(p.Category), q)
}

type ListFilter struct {
	Query    string
	Status   Status
	Category string
	Page     int
	Limit    int
}

// MaxPage bounds the page number so the offset always fits an int.
const MaxPage = 1_000_000

// Normalize clamps paging to 1 <= page <= MaxPage and 1 <= limit <= 100.
func (f ListFilter) Normalize() ListFilter {
	switch {
	case f.Page < 1:
		f.Page = 1
	case f.Page > MaxPage:
		f.Page = MaxPage
	}
	switch {
	case f.Limit < 1:
		f.Limit = 10
	case f.Limit > 100:
		f.Limit = 100
	}
	f.Query = strings.ToLower(strings.TrimSpace(f.Query))
	return f
}

// Offset is the number of rows to skip. It is never negative, even for an
// unnormalized filter.
func (f ListFilter) Offset() int {
	if f.Page <= 1 || f.Limit <= 0 {
		return 0
	}
	if f.Page-1 > math.MaxInt/f.Limit {
		return math.MaxInt
	}
	return (f.Page - 1) * f.Limit
}

type Page struct {
	Items      []Product `json:"items"`
	Page       int       `json:"page"`
	Limit      int       `json:"limit"`
	Total      int       `json:"total"`
	TotalPages int       `json:"totalPages"`
}

func NewPage(items []Product, f ListFilter, total int) Page {
	pages := 0
	if f.Limit > 0 {
		pages = (total + f.Limit - 1) / f.Limit
	}
	if items == nil {
		items = []Product{}
	}
	return Page{Items: items, Page: f.Page, Limit: f.Limit, Total: total, TotalPages: pages}
}

// Money columns are NUMERIC(14,2).
const MoneyScale = 2

var MaxAmount = decimal.RequireFromString("999999999999.99")

// ValidAmount reports whether d is non-negative, has at most MoneyScale
// decimal places and fits the money columns.
func ValidAmount(d decimal.Decimal) bool {
	return !d.IsNegative() && d.Equal(d.Truncate(MoneyScale)) && d.LessThanOrEqual(MaxAmount)
}
