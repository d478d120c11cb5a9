package grpc

import (
	"time"
)

type GetStockRequest struct {
	ProductID string `json:"productId"`
}

type GetStockResponse struct {
	ProductID string    `json:"productId"`
	Quantity  int       `json:"quantity"`
	LowStock  bool      `json:"lowStock"`
	Location  string    `json:"location"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type Item struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

type CheckAvailabilityRequest struct {
	Items []Item `json:"items"`
}

type Shortage struct {
	ProductID string `json:"productId"`
	Available int    `json:"available"`
	Required  int    `json:"required"`
}

type CheckAvailabilityResponse struct {
	Available bool       `json:"available"`
	Shortages []Shortage `json:"shortages,omitempty"`
}
